package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blogcore/config"
	"blogcore/config/database"
	"blogcore/internal/backend"
	"blogcore/internal/backend/memory"
	"blogcore/internal/backend/postgres"
	"blogcore/internal/backend/remote"
	"blogcore/internal/boot"
	"blogcore/internal/guard"
	postService "blogcore/internal/post/service"
	sessionService "blogcore/internal/session/service"
	"blogcore/pkg/logger"
	"blogcore/router"
	"blogcore/socket"
	"blogcore/store"
)

func main() {
	// 1. Configuration comes first: .env, optional config file, BLOG_* variables.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Sugar.Errorf("Exiting: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	// 2. The backend: hosted, or in-process for offline development.
	var (
		accounts  backend.Accounts
		documents backend.Documents
		files     backend.Files
		client    *remote.Client
	)
	switch cfg.Backend.Driver {
	case config.DriverMemory:
		logger.Sugar.Warn("Using the in-memory backend; nothing survives a restart")
		mem := memory.New()
		accounts, documents, files = mem.Accounts, mem.Documents, mem.Files
	default:
		var err error
		client, err = remote.New(remote.Config{
			Endpoint:     cfg.Backend.Endpoint,
			ProjectID:    cfg.Backend.ProjectID,
			DatabaseID:   cfg.Backend.DatabaseID,
			CollectionID: cfg.Backend.CollectionID,
			BucketID:     cfg.Backend.BucketID,
			Timeout:      cfg.Backend.Timeout,
		})
		if err != nil {
			return err
		}
		accounts = remote.NewAccounts(client)
		documents = remote.NewDocuments(client)
		files = remote.NewFiles(client)
	}

	// 3. Documents may move to a local Postgres; accounts and files stay put.
	if cfg.Documents.Driver == config.DriverPostgres {
		db, err := database.Connect(ctx, cfg.Documents.DSN)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Migrate(db); err != nil {
			return err
		}
		documents = postgres.New(db, postgres.Config{PageSize: cfg.Documents.PageSize})
	}

	sessions := sessionService.NewSessionService(accounts)
	posts := postService.NewPostService(documents, files,
		postService.WithPageSize(cfg.Documents.PageSize))

	// 4. The auth store and the local hub that pushes its state to /ws clients.
	st := store.New()
	hub := socket.NewHub()
	go hub.Run(ctx)
	go hub.Follow(ctx, st)

	// Local clients are told where to go when the session drops.
	sessionGuard := guard.New(hub, guard.RequireAuth(true))
	go func() { _ = sessionGuard.Run(ctx, st) }()

	// 5. Resolve the session before anything leaves the loading state.
	boot.Restore(ctx, sessions, st)

	// The realtime feed only exists on the hosted backend.
	if cfg.Realtime.Enabled && client != nil {
		listener := socket.NewListener(client.Endpoint(), client.ProjectID(), sessions, st,
			socket.WithJar(client.Jar()),
			socket.WithEventHandler(func(ev socket.Event) {
				payload, err := json.Marshal(ev)
				if err != nil {
					logger.Sugar.Errorf("Error marshalling session event: %v", err)
					return
				}
				select {
				case hub.Broadcast <- socket.WSMessage{Type: socket.SessionEventType, Payload: payload}:
				default:
					logger.Sugar.Warn("Hub is busy, dropping session event")
				}
			}))
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Sugar.Errorf("Realtime listener stopped: %v", err)
			}
		}()
	}

	// 6. The HTTP surface.
	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: router.Setup(ctx, router.Deps{
			Sessions:       sessions,
			Posts:          posts,
			Store:          st,
			Hub:            hub,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Sugar.Infof("Blog backend listening on %s", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Sugar.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
