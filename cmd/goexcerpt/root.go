package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/goexcerpt/internal/app"
)

// options carries flag values and the configuration resolved from them.
type options struct {
	flags      app.Config
	configPath string
	envFiles   []string
	cfg        app.Config
}

func newRootCmd() *cobra.Command {
	o := &options{flags: app.Defaults()}
	root := &cobra.Command{
		Use:   "goexcerpt",
		Short: "Collect quantitative excerpts for topic queries",
		Long: `goexcerpt searches the web for each job in a job file, fetches the
candidate pages and documents, and asks a language model for the single most
relevant excerpt. Results go to SQLite (and optionally Kafka); processed
sources are remembered so later runs skip them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: o.resolve,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "YAML or JSON config file")
	pf.StringSliceVar(&o.envFiles, "env", []string{".env"}, "dotenv files loaded before reading the environment")
	app.BindFlags(pf, &o.flags)

	root.AddCommand(
		newRunCmd(o),
		newSearchCmd(o),
		newFetchCmd(o),
		newDedupCmd(o),
		newExportCmd(o),
		newVersionCmd(),
	)
	return root
}

// resolve layers defaults, config file, environment and explicit flags.
func (o *options) resolve(cmd *cobra.Command, _ []string) error {
	if err := app.LoadEnvFiles(o.envFiles...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	base := app.Defaults()
	if strings.TrimSpace(o.configPath) != "" {
		fc, err := app.LoadConfigFile(o.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		app.ApplyFileConfig(&base, fc)
	}
	app.ApplyEnvOverrides(&base)
	cfg, err := app.Layer(base, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	o.cfg = cfg
	return nil
}
