package cli

import (
	"fmt"
	"io"
	"newsfeed/internal/chunker"
	"os"

	"github.com/spf13/cobra"
)

func newChunkCommand(st *state) *cobra.Command {
	var size, overlap int
	cmd := &cobra.Command{
		Use:   "chunk [file]",
		Short: "Split text from a file or stdin into sentence-aligned chunks, one per line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}
			text, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			if !cmd.Flags().Changed("size") {
				size = st.cfg.App.ChunkSize
			}
			out := cmd.OutOrStdout()
			for _, chunk := range chunker.Split(string(text), size, overlap) {
				if _, err := fmt.Fprintln(out, chunk); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 0, "max chunk size in characters (default from config)")
	cmd.Flags().IntVar(&overlap, "overlap", 0, "characters carried over from the previous chunk")
	return cmd
}
