package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newFeedsCommand(st *state) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "List the effective feeds (config plus database)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.newApp(verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tURL")
			for _, feed := range a.Feeds() {
				fmt.Fprintf(tw, "%s\t%s\n", feed.Name, feed.URL)
			}
			return tw.Flush()
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "keep the configured log level")
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Store the configured feeds in PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.newApp(verbose)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.SyncFeeds(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d feeds\n", n)
			return nil
		},
	})
	return cmd
}
