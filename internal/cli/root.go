// Package cli содержит команды newsfeed: serve, fetch, chunk и feeds.
package cli

import (
	"fmt"
	"newsfeed/internal/app"
	"newsfeed/internal/config"

	"github.com/spf13/cobra"
)

// state хранит значения глобальных флагов и загруженную конфигурацию.
type state struct {
	configPath string
	cfg        *config.Config
}

// NewRootCommand собирает дерево команд. Конфигурация читается один раз перед
// выполнением любой подкоманды.
func NewRootCommand() *cobra.Command {
	st := &state{}
	root := &cobra.Command{
		Use:          "newsfeed",
		Short:        "RSS news aggregator with article extraction and chunking",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			st.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", "", "config file (default: ./config.{json,yaml} or configs/)")

	root.AddCommand(
		newServeCommand(st),
		newFetchCommand(st),
		newChunkCommand(st),
		newFeedsCommand(st),
	)
	return root
}

// Execute запускает корневую команду.
func Execute() error {
	return NewRootCommand().Execute()
}

// newApp создает приложение для одноразовых команд. Без verbose в лог попадают только
// ошибки, чтобы не смешивать его с выводом команды.
func (st *state) newApp(verbose bool) (*app.App, error) {
	cfg := *st.cfg
	if !verbose {
		cfg.Logger.Level = "error"
	}
	return app.New(&cfg)
}
