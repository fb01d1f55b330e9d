package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jscyril/spotgpt_player/api"
	"github.com/jscyril/spotgpt_player/internal/audio"
	"github.com/jscyril/spotgpt_player/internal/catalog"
	"github.com/jscyril/spotgpt_player/internal/config"
	"github.com/jscyril/spotgpt_player/internal/logger"
	"github.com/jscyril/spotgpt_player/internal/player"
	"github.com/jscyril/spotgpt_player/internal/ui"
)

var (
	configPath string
	endpoint   string
	musicDirs  []string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:          "player",
	Short:        "Terminal music player for the SpotGPT song catalogue",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlayer(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.GetConfigPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "song list endpoint (overrides config)")
	rootCmd.PersistentFlags().StringSliceVar(&musicDirs, "dir", nil, "play local directories instead of the endpoint")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(songsCmd)
}

// loadConfig reads the config file and applies flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if endpoint != "" {
		cfg.SongsEndpoint = endpoint
	}
	if len(musicDirs) > 0 {
		cfg.MusicDirectories = musicDirs
		cfg.SongsEndpoint = ""
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newSource picks local directories when no endpoint is configured
func newSource(cfg *config.Config, log *zap.Logger) api.TrackSource {
	if cfg.SongsEndpoint == "" && len(cfg.MusicDirectories) > 0 {
		return catalog.NewDirSource(cfg.MusicDirectories, 0, log.Named("catalog"))
	}
	return catalog.NewHTTPSource(cfg.SongsEndpoint, time.Duration(cfg.RequestTimeout))
}

func runPlayer(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogPath(),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := audio.NewAudioEngine(audio.NewLoader(time.Duration(cfg.RequestTimeout)), log.Named("audio"))
	engine.Start(ctx)

	ctrl := player.NewController(newSource(cfg, log), log)
	defer ctrl.Close()
	ctrl.Attach(engine)

	go func() {
		// Failures are logged and surface in the UI as error events
		_ = ctrl.Initialize(ctx)
	}()

	log.Info("player started",
		zap.String("endpoint", cfg.SongsEndpoint),
		zap.Strings("directories", cfg.MusicDirectories),
	)

	if err := ui.Run(ctrl, engine, cfg.KeyBindings); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
