package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"podrepo-agent/internal/api"
	"podrepo-agent/internal/catalog"
	"podrepo-agent/internal/lifecycle"
	"podrepo-agent/internal/version"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var listenAddr string

// serveCmd runs the agent as a long-lived service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent as a long-lived service",
	Long: `Watch the project for completed pod installs, keep the repository catalog
fresh and serve it over HTTP. Repository status changes are streamed to
websocket clients on /events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkNotRoot(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServe(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "address for the status API (default from config)")
}

func runServe(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a := newAgent()
	defer a.Close()

	project, err := filepath.Abs(projectDirOrDefault())
	if err != nil {
		return fmt.Errorf("invalid project directory: %w", err)
	}
	addr := listenAddr
	if addr == "" {
		addr = a.cfg.ListenAddr
	}

	logger.WithFields(logrus.Fields{
		"version": version.Version,
		"project": project,
		"repos":   a.cfg.ReposDir,
		"listen":  addr,
	}).Info("Starting podrepo-agent")

	sub := a.catalog.Subscribe(func(e catalog.Event) {
		if e.Type == catalog.EventStatus {
			logger.WithFields(logrus.Fields{
				"address":  e.Repo.Address,
				"updating": e.Repo.IsUpdating,
			}).Info("Repository status changed")
		}
	})
	defer a.catalog.Unsubscribe(sub)

	watcher := lifecycle.NewWatcher(logger, project)
	signals, err := watcher.Start(ctx)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.coordinator.Run(ctx, signals)
	}()

	server := api.New(logger, a.catalog, a.coordinator, api.Options{
		ProjectDir:     project,
		MetricsHandler: promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		Metrics:        a.metrics,
	})
	err = server.ListenAndServe(ctx, addr)

	// the API can fail before ctx ends; the watcher loop must stop either way
	cancel()
	wg.Wait()

	if err != nil {
		return fmt.Errorf("status API: %w", err)
	}
	logger.Info("podrepo-agent stopped")
	return nil
}
