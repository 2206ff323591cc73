package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var purgeMenus bool

var purgeCmd = &cobra.Command{
	Use:   "purge [slug...]",
	Short: "Drop cached render payloads",
	Long: `Drop cached payloads for the given slugs. Without arguments every page
payload and every menu tree is dropped. Use --menus to also drop menu trees
when slugs are given.`,
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().BoolVar(&purgeMenus, "menus", false, "also drop cached menu trees")
}

func runPurge(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := app.Open(); err != nil {
		return err
	}
	if app.Config.Cache.Driver == "memory" {
		app.Logger().Warn("memory cache is per process; nothing shared to purge")
	}

	ctx := cmd.Context()
	slugs := args
	if len(slugs) == 0 {
		if slugs, err = app.Store.ListSlugs(ctx); err != nil {
			return err
		}
	}
	var locations []string
	if len(args) == 0 || purgeMenus {
		if locations, err = app.Locations(ctx); err != nil {
			return err
		}
	}

	if err := app.Renderer.Purge(ctx, slugs, locations); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "purged %d pages, %d menus\n", len(slugs), len(locations))
	return nil
}
