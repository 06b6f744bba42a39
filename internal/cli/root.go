// Package cli provides the bibledl command-line interface: the download
// pipeline run in the foreground against a local downloads directory.
package cli

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"bibledownloader/internal/catalog"
	"bibledownloader/internal/fetch"
	"bibledownloader/internal/infra"
	"bibledownloader/internal/pipeline"
	"bibledownloader/internal/storage"
)

// Version is set at build time.
var Version = "0.1.0"

// app carries what every subcommand needs once the root pre-run has loaded
// configuration.
type app struct {
	cfg     *infra.Config
	logger  zerolog.Logger
	catalog *catalog.Catalog
	files   *storage.FileStore

	// overridable in tests
	newFetcher func(timeout time.Duration) fetch.Fetcher
	runnerOpts []pipeline.Option
	progress   time.Duration

	verbose      bool
	downloadsDir string
	catalogPath  string
}

func newApp() *app {
	return &app{
		newFetcher: func(timeout time.Duration) fetch.Fetcher { return fetch.NewHTTPFetcher(timeout) },
		progress:   time.Second,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "bibledl",
		Short: "Download and assemble Bible translations",
		Long: `bibledl fetches every chapter of a configured translation, resuming
from payloads already on disk, and assembles them into a .bible text file
and per-book JSON.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			return a.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose logging")
	root.PersistentFlags().StringVarP(&a.downloadsDir, "dir", "d", "", "downloads directory (default $DOWNLOADS_DIR)")
	root.PersistentFlags().StringVar(&a.catalogPath, "catalog", "", "catalogue YAML (default embedded)")

	root.AddCommand(newListCmd(a))
	root.AddCommand(newDisclaimerCmd(a))
	root.AddCommand(newDownloadCmd(a))
	root.AddCommand(newScanCmd(a))
	root.AddCommand(newExportCmd(a))
	return root
}

// load resolves configuration, logger, catalogue and store.
func (a *app) load(logOut io.Writer) error {
	infra.LoadDotEnv()
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	if a.downloadsDir != "" {
		cfg.DownloadsDir = a.downloadsDir
	}
	if a.catalogPath != "" {
		cfg.CatalogPath = a.catalogPath
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if level == "" {
		level = "warn"
	}
	if a.verbose {
		level = "debug"
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: logOut, TimeFormat: time.Kitchen}).
		Level(parseLevel(level)).With().Timestamp().Logger()

	if a.catalog, err = catalog.Load(cfg.CatalogPath); err != nil {
		return err
	}
	if a.files, err = storage.NewFileStore(cfg.DownloadsDir); err != nil {
		return err
	}
	return nil
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.WarnLevel
	}
	return lvl
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd(newApp()).Execute()
}
