package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/libractl/internal/config"
	"github.com/blackwell-systems/libractl/internal/docstore"
	"github.com/blackwell-systems/libractl/internal/localstore"
	"github.com/blackwell-systems/libractl/internal/logging"
	"github.com/blackwell-systems/libractl/internal/metadata"
	"github.com/blackwell-systems/libractl/internal/mongostore"
	"github.com/blackwell-systems/libractl/internal/remote"
	"github.com/blackwell-systems/libractl/internal/util"
)

var (
	cfg   *config.Config
	log   *zap.Logger
	kv    localstore.KV
	store remote.Store
	meta  metadata.Source

	closeStores func()

	flagNoColor bool
	flagOffline bool
	flagConfig  string
)

// commands that never touch the library data
var storeless = map[string]bool{
	"version":    true,
	"completion": true,
	"serve":      true,
	"help":       true,
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "libractl",
		Short: "Run a library circulation desk from the command line",
		Long: `libractl manages a library catalog, its patrons and their loans.

Data lives in a local store (a directory of JSON files or a SQLite file)
and is mirrored best-effort to a remote document store when one is
configured. Run 'libractl serve' to host a remote store yourself.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVar(&flagOffline, "offline", false, "Work on the local store only")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/libractl/config.yml)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		util.InitColor(flagNoColor)

		var err error
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		log = logging.New("cli", cfg.Log.Level)

		if storeless[cmd.Name()] {
			return nil
		}
		return openStores(commandContext(cmd))
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if closeStores != nil {
			closeStores()
			closeStores = nil
		}
		_ = log.Sync()
	}

	root.AddCommand(
		newInitCmd(),
		newResetCmd(),
		newBooksCmd(),
		newUsersCmd(),
		newBorrowCmd(),
		newReturnCmd(),
		newLoansCmd(),
		newHistoryCmd(),
		newFineCmd(),
		newSettingsCmd(),
		newSyncCmd(),
		newMigrateCmd(),
		newServeCmd(),
		newVersionCmd(),
		newCompletionCmd(),
	)
	return root
}

// Execute is the entry point called from main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if closeStores != nil {
		closeStores()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		stop()
		os.Exit(1)
	}
}

// openStores opens the local store, the remote mirror and the metadata
// source. A remote that cannot be reached is reported and replaced by
// remote.Disabled.
func openStores(ctx context.Context) error {
	dataDir := config.DataDir()
	var err error
	kv, err = localstore.Open(cfg.Local.EffectiveBackend(), cfg.Local.EffectivePath(dataDir))
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	closers := []func(){func() { _ = kv.Close() }}

	store = remote.Disabled{}
	meta = metadata.None{}
	if !flagOffline {
		meta = metadata.NewGoogleBooks(cfg.Metadata.APIBase, cfg.Metadata.EffectiveMaxResults(), log)

		switch cfg.Remote.EffectiveBackend() {
		case "http":
			if cfg.Remote.URL == "" {
				warn("remote.url is not set; working locally")
				break
			}
			store = docstore.New(cfg.Remote.URL, cfg.Remote.Token)
		case "mongo":
			ms, err := mongostore.Connect(ctx, cfg.Remote.URL, cfg.Remote.EffectiveDatabase(), log)
			if err != nil {
				warn("Remote store unavailable, working locally: %v", err)
				break
			}
			store = ms
			closers = append(closers, func() { _ = ms.Close(context.Background()) })
		}
	}

	closeStores = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// ok prints a green success line.
func ok(format string, a ...interface{}) {
	fmt.Println(color.GreenString("✓"), fmt.Sprintf(format, a...))
}

// warn prints a yellow warning line.
func warn(format string, a ...interface{}) {
	fmt.Fprintln(os.Stderr, color.YellowString("!"), fmt.Sprintf(format, a...))
}

// header prints a cyan section heading.
func header(format string, a ...interface{}) {
	fmt.Println(color.CyanString(fmt.Sprintf(format, a...)))
}

func printField(label, value string) {
	fmt.Printf("  %-16s %s\n", color.CyanString(label+":"), value)
}
