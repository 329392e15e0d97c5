package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/libractl/internal/config"
	"github.com/blackwell-systems/libractl/internal/seed"
)

func newInitCmd() *cobra.Command {
	var (
		localBackend  string
		remoteBackend string
		remoteURL     string
		writeConfig   bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the config file and seed an empty library",
		Long: `Seed the local store with the three branches, a demo admin and two
patrons, and a starter catalog. Existing data is kept; only missing keys
are filled. When fewer than 5 books exist, well-known titles are fetched
from the metadata API (a single fallback book is used offline).

Examples:
  libractl init
  libractl init --write-config --local sqlite --remote http --remote-url http://127.0.0.1:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if writeConfig {
				path := flagConfig
				if path == "" {
					path = config.DefaultPath()
				}
				if _, err := os.Stat(path); err == nil {
					warn("Config already exists at %s; leaving it alone", path)
				} else {
					c := *cfg
					if localBackend != "" {
						c.Local.Backend = localBackend
					}
					if remoteBackend != "" {
						c.Remote.Backend = remoteBackend
					}
					if remoteURL != "" {
						c.Remote.URL = remoteURL
					}
					if err := config.Save(&c, path); err != nil {
						return fmt.Errorf("writing config: %w", err)
					}
					ok("Wrote %s", path)
				}
			}

			rep, err := seed.New(kv, store, meta, log).Initialize(commandContext(cmd))
			if err != nil {
				return err
			}
			printWarnings(rep.Warnings)
			printSeedReport(rep)
			return nil
		},
	}

	cmd.Flags().BoolVar(&writeConfig, "write-config", false, "Write a config file if none exists")
	cmd.Flags().StringVar(&localBackend, "local", "", "Local store backend for the new config (file or sqlite)")
	cmd.Flags().StringVar(&remoteBackend, "remote", "", "Remote backend for the new config (none, http or mongo)")
	cmd.Flags().StringVar(&remoteURL, "remote-url", "", "Remote store URL for the new config")
	return cmd
}

func newResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard the local catalog and seed it again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm(yes, "Discard every locally stored book?") {
				return fmt.Errorf("reset cancelled (use --yes to skip the prompt)")
			}
			rep, err := seed.New(kv, store, meta, log).ResetBooks(commandContext(cmd))
			if err != nil {
				return err
			}
			printWarnings(rep.Warnings)
			printSeedReport(rep)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func printSeedReport(rep seed.Report) {
	if rep.Branches > 0 {
		ok("Created %d branches", rep.Branches)
	}
	if rep.Accounts > 0 {
		ok("Created %d sample accounts", rep.Accounts)
	}
	switch {
	case rep.Fallback:
		warn("Metadata API returned nothing; added the fallback book")
	case rep.Fetched > 0:
		ok("Fetched %d sample books", rep.Fetched)
	}
	ok("Catalog holds %d books", rep.Books)
}
