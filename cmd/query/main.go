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
)

type queryFlags struct {
	configPath  string
	text        string
	similar     string
	topK        int
	interactive bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:           "musiclip-query",
		Short:         "Search the audio clip catalogue by text or by song",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.configPath, "config", os.Getenv("CONFIG_PATH"), "Path to config file")
	cmd.Flags().StringVar(&f.text, "text", "", "Free-text description to search for")
	cmd.Flags().StringVar(&f.similar, "similar", "", "Song id to find similar songs for")
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", 0, "Number of results (0 uses the config default)")
	cmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "Start the interactive query shell")
	cmd.MarkFlagsMutuallyExclusive("text", "similar", "interactive")
	return cmd
}

func runQuery(cmd *cobra.Command, f *queryFlags) error {
	if f.text == "" && f.similar == "" && !f.interactive {
		return errors.New("one of --text, --similar or --interactive is required")
	}

	appLogger := app.NewLogger("musiclip-query")
	defer logger.Sync()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, appLogger, app.RoleQuery)
	if err != nil {
		return err
	}
	defer a.Close()

	searchService := a.NewSearchService()
	topK := f.topK
	if topK == 0 {
		topK = searchService.DefaultTopK()
	}

	out := cmd.OutOrStdout()
	switch {
	case f.interactive:
		return driver.NewQueryShell(cmd.InOrStdin(), out, searchService, topK).Run(ctx)
	case f.similar != "":
		return driver.RunQuery(ctx, out, searchService, "["+f.similar+"]", topK)
	default:
		return driver.RunQuery(ctx, out, searchService, f.text, topK)
	}
}
