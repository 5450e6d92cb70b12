package main

import (
	"github.com/spf13/cobra"

	"github.com/ahrav/shinise-scout/internal/config"
	"github.com/ahrav/shinise-scout/internal/logger"
)

type rootOptions struct {
	configFile string
	envFiles   []string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "shinise",
		Short:         "Find long-established shops near a station",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default ./config.yaml or ./configs/config.yaml)")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level")

	cmd.AddCommand(
		newServeCmd(opts),
		newSearchCmd(opts),
		newAgentCmd(opts),
		newAgentsCmd(),
		newConfigCmd(opts),
	)
	return cmd
}

// load reads the configuration and builds the logger it names.
func (o *rootOptions) load() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(config.Options{ConfigFile: o.configFile, EnvFiles: o.envFiles})
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, logger.NewStructured(cfg.Log.Level, cfg.Log.Format), nil
}
