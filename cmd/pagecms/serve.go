package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eringen/pagecms"
)

var watchFile string

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the HTTP server",
	Long: `Start the HTTP server on the configured address.

Routes:
  GET /api/pages            render the home page
  GET /api/pages/:slug      render a page
  GET /api/menus/:location  menu tree for a location
  GET /sitemap.xml          published pages

With --watch the given fixture is imported on start and again on every
change, purging the cache each time.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&watchFile, "watch", "w", "", "fixture file to import and watch for changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	var opts []pagecms.Option
	if watchFile != "" {
		opts = append(opts, pagecms.WithWatchFile(watchFile))
	}
	app, err := newApp(cmd, opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchFile != "" {
		if err := app.Open(); err != nil {
			return err
		}
		if _, err := app.Importer.ImportFile(ctx, watchFile); err != nil {
			return err
		}
	}
	return app.Start(ctx)
}
