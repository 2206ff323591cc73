package main

import (
	"github.com/spf13/cobra"

	"github.com/eringen/pagecms"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "pagecms",
	Short: "Serve rendered CMS pages as JSON",
	Long: `pagecms renders published pages into cached JSON payloads with
structured data and navigation menus.

Configuration is read from the --config file and PAGECMS_* environment
variables (PAGECMS_DATABASE_DSN, PAGECMS_CACHE_DRIVER, ...). A .env file in
the working directory is loaded first.

Examples:
  pagecms serve --watch content.yaml
  pagecms import content.yaml
  pagecms purge about pricing`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")
}

// newApp loads configuration and builds an App logging to the command's
// stderr.
func newApp(cmd *cobra.Command, opts ...pagecms.Option) (*pagecms.App, error) {
	cfg, err := pagecms.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger := pagecms.NewLogger(cfg.Log, cmd.ErrOrStderr())
	return pagecms.New(cfg, append([]pagecms.Option{pagecms.WithLogger(logger)}, opts...)...), nil
}
