package cli

import (
	"newsfeed/internal/domain"
	server "newsfeed/internal/transport/http"

	"github.com/spf13/cobra"
)

func newFetchCommand(st *state) *cobra.Command {
	var (
		source    string
		chunkSize int
		overlap   bool
		detailed  bool
		verbose   bool
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one aggregation and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.newApp(verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			news := a.News()
			opts := news.Options(chunkSize, overlap)
			var result domain.NewsResult
			if source != "" {
				result, err = news.BySource(cmd.Context(), source, opts)
			} else {
				result, err = news.All(cmd.Context(), opts)
			}
			if err != nil {
				return err
			}
			return server.WriteNews(cmd.OutOrStdout(), result, detailed)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "only this feed (by name)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "chunk size in characters (default from config)")
	cmd.Flags().BoolVar(&overlap, "overlap", false, "enable the configured chunk overlap")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include typed chunk records")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "keep the configured log level")
	return cmd
}
