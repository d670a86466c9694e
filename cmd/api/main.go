package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcelsud/chainhook/config"
	"github.com/marcelsud/chainhook/delivery"
	"github.com/marcelsud/chainhook/delivery/format"
	"github.com/marcelsud/chainhook/delivery/httpclient"
	"github.com/marcelsud/chainhook/delivery/memory"
	"github.com/marcelsud/chainhook/delivery/postgres"
	deliveryredis "github.com/marcelsud/chainhook/delivery/redis"
	"github.com/marcelsud/chainhook/internal/http/chi"
	"github.com/marcelsud/chainhook/metrics"
	"github.com/marcelsud/chainhook/subscription"
)

const TIMEOUT = 30 * time.Second

/* main é a porta de entrada e saída da aplicação: é aqui que as
 * dependências são iniciadas e amarradas
 * As importações seguem apenas uma direção: a aplicação importa as
 * camadas de negócio, que importam a camada de armazenamento
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	// Subscription cache; a failed initial load keeps an empty cache and
	// the process serves, waiting for a refresh
	loader := subscription.NewLoader(cfg.WebhooksFile)
	provider := subscription.NewProvider(loader, logger)
	if err := provider.LoadWebhookConfigs(ctx); err != nil {
		logger.Error("initial config load failed, serving with empty cache", "error", err)
	}

	// Delivery log: postgres when configured, in-memory otherwise
	var tracker delivery.Tracker
	if cfg.PostgresDSN != "" {
		pgTracker, err := postgres.NewTracker(cfg.PostgresDSN)
		if err != nil {
			fmt.Println(err)
			return
		}
		defer pgTracker.Close(ctx)
		if err := postgres.NewMigrator(pgTracker.DB).Up(ctx); err != nil {
			fmt.Println(err)
			return
		}
		tracker = pgTracker
	} else {
		tracker = memory.NewTracker()
	}

	// Job store: redis when configured, in-memory otherwise
	var store delivery.Store
	if cfg.RedisAddr != "" {
		redisStore, err := deliveryredis.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			fmt.Println(err)
			return
		}
		store = redisStore
	} else {
		store = memory.NewStore()
	}
	defer store.Close(ctx)

	monitor := metrics.NewMonitor()
	exporter, err := metrics.NewOTelExporter(monitor)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer exporter.Shutdown(ctx)
	monitor.SetLatencyRecorder(exporter)

	client := httpclient.New()
	defer client.CloseIdleConnections()

	sender := delivery.NewSender(provider, format.NewRegistry(), client, logger)
	policy := delivery.NewPolicy(cfg.RetryBase(), cfg.RetryCap())

	dispatcher := delivery.NewDispatcher(delivery.DispatcherConfig{
		Workers:      cfg.Workers,
		QueueSize:    cfg.QueueSize,
		DrainTimeout: cfg.DrainTimeout(),
	}, provider, sender, policy, tracker, store, monitor, logger)
	dispatcher.Start()

	r := chi.Handlers(ctx, dispatcher, store, tracker, provider, monitor, exporter.ServeHTTP())
	http.Handle("/", r)
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      http.DefaultServeMux,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	fmt.Printf("Listening on port %s\n", cfg.Port)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		fmt.Println(err)
		return
	}

	// the ingress is closed; drain in-flight deliveries
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout())
	defer cancel()
	if err := dispatcher.Shutdown(drainCtx); err != nil {
		fmt.Println(err)
	}

	err = <-errShutdown
	if err != nil {
		fmt.Println(err)
		return
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	}
}
