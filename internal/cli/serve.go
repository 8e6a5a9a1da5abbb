package cli

import (
	"newsfeed/internal/app"

	"github.com/spf13/cobra"
)

func newServeCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the cache warm-up worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(st.cfg)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
}
