package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/h0rv/postergrid/internal/anilist"
	"github.com/h0rv/postergrid/internal/auth"
	"github.com/h0rv/postergrid/internal/config"
	"github.com/h0rv/postergrid/internal/grid"
	"github.com/h0rv/postergrid/internal/log"
	"github.com/h0rv/postergrid/internal/preload"
	"github.com/h0rv/postergrid/internal/store"
	"github.com/h0rv/postergrid/internal/tui"
)

var (
	// CLI flags
	configFlag    string
	typeFlag      string
	genreFlag     string
	sortFlag      string
	pageSizeFlag  int
	priorityFlag  int
	logLevelFlag  string
	logFormatFlag string
	logFileFlag   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "postergrid",
		Short: "Terminal poster grid for the AniList catalog",
		Long: `postergrid browses the AniList anime and manga catalog as a grid of
poster cards that loads more titles as you scroll.

Authentication (optional, needed to edit your list and write notes):
  1. Environment variable: Set ANILIST_TOKEN
  2. Token file: $XDG_CONFIG_HOME/postergrid/token

Without a token the public catalog is browsed anonymously.`,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file. Defaults to $XDG_CONFIG_HOME/postergrid/config.yaml.")
	rootCmd.PersistentFlags().StringVar(&typeFlag, "type", "", "Catalog type, ANIME or MANGA. Skips catalog picker.")
	rootCmd.PersistentFlags().StringVar(&genreFlag, "genre", "", `Genre to browse, or "all". Skips genre picker.`)
	rootCmd.PersistentFlags().StringVar(&sortFlag, "sort", "", "AniList sort, e.g. TRENDING_DESC or SCORE_DESC. Skips sort picker.")
	rootCmd.PersistentFlags().IntVar(&pageSizeFlag, "page-size", 0, "Titles requested per page (1-50).")
	rootCmd.PersistentFlags().IntVar(&priorityFlag, "priority", 0, "Leading titles rendered and preloaded first. 0 disables priority.")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn or error.")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Log format: logfmt, json or text.")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "Log file. Defaults to the user cache directory.")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("type") {
		cfg.Type = typeFlag
	}
	if flags.Changed("genre") {
		cfg.Genre = genreFlag
	}
	if flags.Changed("sort") {
		cfg.Sort = sortFlag
	}
	if flags.Changed("page-size") {
		cfg.PageSize = pageSizeFlag
	}
	if flags.Changed("priority") {
		cfg.Priority = priorityFlag
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevelFlag
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormatFlag
	}
	if flags.Changed("log-file") {
		cfg.Log.File = logFileFlag
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	closer, err := log.Setup(cfg.Log.File, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	token, err := auth.GetToken(auth.DefaultProviders()...)
	switch {
	case errors.Is(err, auth.ErrNoToken):
		slog.Info("no AniList token, browsing anonymously")
	case err != nil:
		return fmt.Errorf("failed to read AniList token: %w", err)
	}

	client := anilist.New(cfg.Endpoint, token, anilist.WithLogger(slog.Default()))

	var posters *preload.Preloader
	if cfg.Preload.Enabled {
		posters = preload.New(
			preload.WithConcurrency(cfg.Preload.Concurrency),
			preload.WithTimeout(cfg.PreloadTimeout()),
		)
		defer posters.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := tui.NewAppModel(ctx, client, store.New(), tui.AppOptions{
		Type:  cfg.Type,
		Genre: cfg.Genre,
		Sort:  cfg.Sort,
		Browse: tui.BrowseOptions{
			PageSize: cfg.PageSize,
			Posters:  posters,
			Grid: grid.Config{
				PriorityCount: cfg.GridPriority(),
				Resolver:      cfg.Resolver(),
				DetectorOpts: []grid.DetectorOpt{
					grid.WithThreshold(cfg.Grid.Threshold),
					grid.WithDebounce(cfg.Debounce()),
				},
			},
		},
	})

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}

	slog.Info("exit")
	return nil
}
