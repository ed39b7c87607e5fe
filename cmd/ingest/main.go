package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/timmy/musiclip/internal/app"
	"github.com/timmy/musiclip/internal/config"
	"github.com/timmy/musiclip/internal/driver"
	"github.com/timmy/musiclip/internal/logger"
	"github.com/timmy/musiclip/internal/service"
)

type ingestFlags struct {
	configPath     string
	playlistID     string
	songID         string
	interactive    bool
	noSkipExisting bool
	override       bool
	workers        int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &ingestFlags{}
	cmd := &cobra.Command{
		Use:           "musiclip-ingest",
		Short:         "Build the audio clip catalogue from playlists",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.configPath, "config", os.Getenv("CONFIG_PATH"), "Path to config file")
	cmd.Flags().StringVar(&f.playlistID, "playlist-id", "", "Playlist to ingest")
	cmd.Flags().StringVar(&f.songID, "song-id", "", "Single song to ingest")
	cmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "Prompt for playlists and songs")
	cmd.Flags().BoolVar(&f.noSkipExisting, "no-skip-existing", false, "Reprocess tracks already in the catalogue")
	cmd.Flags().BoolVar(&f.override, "override", false, "Replace existing entries")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Concurrent tracks (0 uses the config value)")
	cmd.MarkFlagsMutuallyExclusive("playlist-id", "song-id", "interactive")
	return cmd
}

func runIngest(cmd *cobra.Command, f *ingestFlags) error {
	if f.playlistID == "" && f.songID == "" && !f.interactive {
		return errors.New("one of --playlist-id, --song-id or --interactive is required")
	}

	appLogger := app.NewLogger("musiclip-ingest")
	defer logger.Sync()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if f.workers > 0 {
		cfg.Ingest.Workers = f.workers
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel on SIGINT/SIGTERM; tracks already in flight still finish.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, stopping ingestion...")
		cancel()
	}()

	a, err := app.New(ctx, cfg, appLogger, app.RoleIngest)
	if err != nil {
		return err
	}
	defer a.Close()

	ingestService, err := a.NewIngestService()
	if err != nil {
		return err
	}

	opts := service.DefaultIngestOptions()
	opts.SkipExisting = cfg.Ingest.SkipExisting && !f.noSkipExisting
	opts.OverrideExisting = f.override

	appLogger.WithFields(logger.Fields{
		"playlist_id":   f.playlistID,
		"song_id":       f.songID,
		"interactive":   f.interactive,
		"skip_existing": opts.SkipExisting,
		"override":      opts.OverrideExisting,
		"workers":       cfg.Ingest.Workers,
	}).Info("Starting ingestion")

	out := cmd.OutOrStdout()
	switch {
	case f.interactive:
		return driver.NewIngestShell(cmd.InOrStdin(), out, ingestService, opts).Run(ctx)
	case f.songID != "":
		_, err = driver.RunSong(ctx, out, ingestService, f.songID, opts)
	default:
		_, err = driver.RunPlaylist(ctx, out, ingestService, f.playlistID, opts)
	}
	return err
}
