package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"topomerge/internal/fixture"
	"topomerge/internal/handler"
	"topomerge/internal/hub"
	"topomerge/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference merge backend over a fixture file",
	Long: `Serve runs an in-memory merge backend for local development. Records,
domains and hub-and-spoke topologies come from a YAML or JSON fixture:

  domains:            {<uuid>: <name>}
  devices:            {<device id>: [point-to-point topologies]}
  hns_topologies:     [hub-and-spoke topologies]
  hns_p2p_topologies: {<hub-and-spoke id>: [mergeable topologies]}

The fixture is reloaded when it changes unless --watch=false.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", "", "HTTP listen address (default :8000)")
	f.String("fixture", "", "fixture file")
	f.Duration("task-delay", 0, "duration of the simulated topology fetch")
	f.Bool("watch", true, "reload the fixture when it changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var data *fixture.Data
	if path := cfg.Serve.Fixture; path != "" {
		d, err := fixture.LoadFile(path)
		if err != nil {
			return err
		}
		data = d
		log.Printf("Fixture loaded: %s (%d devices)", path, len(d.Devices))
	} else {
		log.Println("No fixture given, serving an empty backend")
	}

	store := fixture.NewStore(data, cfg.Serve.TaskDelay.Duration())
	defer store.Close()

	statusHub := hub.New(store)
	store.OnTaskDone(statusHub.Notify)
	go statusHub.Run(ctx)

	if cfg.Serve.Watch && cfg.Serve.Fixture != "" {
		w := watcher.New(cfg.Serve.Fixture, func(path string) error {
			d, err := fixture.LoadFile(path)
			if err != nil {
				return err
			}
			store.Replace(d)
			return nil
		})
		go func() {
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Fixture watch stopped: %v", err)
			}
		}()
	}

	// No write timeout: /status streams until the task completes.
	server := &http.Server{
		Addr:        cfg.Serve.Addr,
		Handler:     handler.New(store, statusHub).Routes(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", cfg.Serve.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
	return nil
}
