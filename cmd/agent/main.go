package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/andrei1031/dash-q-v2-front-sub000/config"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/geofence"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/infra/redis"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/metrics"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/notify"
	repo "github.com/andrei1031/dash-q-v2-front-sub000/internal/repository/redis"
	"github.com/andrei1031/dash-q-v2-front-sub000/internal/service"
	pkgLog "github.com/andrei1031/dash-q-v2-front-sub000/pkg/logger"
	"github.com/andrei1031/dash-q-v2-front-sub000/pkg/queueapi"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})
	defer l.Sync()

	clientID, err := resolveClientID(cfg.Customer)
	if err != nil {
		l.Fatalf(ctx, "Failed to resolve client id: %v", err)
	}
	l.Infof(ctx, "Agent client_id: %s", clientID)

	redisCli, err := redis.Connect(ctx, cfg.Redis, l)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer redis.Disconnect(context.Background(), redisCli, l)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, cfg.Metrics.Namespace)

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			l.Infof(ctx, "Metrics server is listening on %s", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				l.Errorf(ctx, "Metrics server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	api := queueapi.NewClient(cfg.API)
	bus := service.NewEventBus(m, l)

	// Initialize services
	ssRepo := repo.NewRedisSessionRepository(redisCli, clientID, l)
	ssSvc := service.NewSessionService(ssRepo, bus, m, l)
	fetcher := service.NewSnapshotFetcher(api, m, l)
	probe := service.NewRecoveryProbe(api, ssSvc, bus, cfg.Customer.CustomerID, m, l)
	rec := service.NewReconciler(ssSvc, probe, bus, cfg.Poll.DisappearanceThreshold, m, l)
	qSvc := service.NewQueueService(api, ssSvc, bus, l)
	scanner := service.NewOpportunityScanner(api, ssSvc, qSvc, bus, l)

	feed, err := newChangeFeed(cfg, clientID, redisCli, l)
	if err != nil {
		l.Fatalf(ctx, "Failed to initialize change feed: %v", err)
	}

	// Alerts
	term := notify.NewTerminal(os.Stdout, l)
	blinker := notify.NewTitleBlinker(term, cfg.Notify.BaseTitle, cfg.Notify.BlinkInterval)
	defer blinker.Stop()
	director := notify.NewDirector(term, blinker, l)
	bus.Subscribe(director.Handle)
	bus.Subscribe(newEventPrinter(os.Stdout).Handle)

	deps := service.AgentDeps{
		API:        api,
		Sessions:   ssSvc,
		Fetcher:    fetcher,
		Reconciler: rec,
		Probe:      probe,
		Queue:      qSvc,
		Scanner:    scanner,
		Feed:       feed,
		Bus:        bus,
		Notifier:   director,
	}
	if cfg.Geofence.Enabled {
		deps.Geo = geofence.NewFileSource(cfg.Geofence.Source)
		deps.Tracker = geofence.NewTracker(cfg.Geofence)
	}

	agent := service.NewAgent(service.AgentConfig{
		SnapshotInterval:    cfg.Poll.SnapshotInterval,
		OpportunityInterval: cfg.Poll.OpportunityInterval,
		BrowseBarberID:      cfg.Customer.BarberID,
		Join: queueapi.JoinRequest{
			BarberID:     cfg.Customer.BarberID,
			ServiceID:    cfg.Customer.ServiceID,
			CustomerID:   cfg.Customer.CustomerID,
			CustomerName: cfg.Customer.Name,
			HeadCount:    cfg.Customer.HeadCount,
			IsVIP:        cfg.Customer.IsVIP,
		},
		AutoJoin: cfg.Customer.AutoJoin,
	}, deps, m, l)

	runErr := make(chan error, 1)
	go func() {
		runErr <- agent.Run(ctx)
	}()

	go newCommandLoop(agent, os.Stdout, l).Run(ctx, os.Stdin)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-runErr:
		if err != nil {
			l.Errorf(ctx, "Agent exited: %v", err)
		}
	}

	l.Info(ctx, "Agent shutting down...")

	agent.Stop()
	cancel()

	l.Info(ctx, "Agent exited")
}

// resolveClientID keeps the session key stable across restarts: an explicit
// CLIENT_ID wins, then one derived from the customer id, then one generated
// once and kept in ClientIDFile.
func resolveClientID(c config.CustomerConfig) (string, error) {
	switch {
	case c.ClientID != "":
		return c.ClientID, nil
	case c.CustomerID != "":
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte("dashq:"+c.CustomerID)).String(), nil
	default:
		return loadOrCreateClientID(c.ClientIDFile)
	}
}

func loadOrCreateClientID(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no client id file configured")
	}

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if id, perr := uuid.Parse(strings.TrimSpace(string(b))); perr == nil {
			return id.String(), nil
		}
	case !stderrors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("read client id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("write client id: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write client id: %w", err)
	}

	return id, nil
}
