package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/adapters/events"
	"github.com/layer-3/walletauth/adapters/networks"
	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/internal/config"
	"github.com/layer-3/walletauth/internal/eth"
	"github.com/layer-3/walletauth/internal/ids"
	"github.com/layer-3/walletauth/internal/logger"
	"github.com/layer-3/walletauth/metrics"
	"github.com/layer-3/walletauth/ports"
	"github.com/layer-3/walletauth/service"
	transport "github.com/layer-3/walletauth/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// loads .env first so the logger sees LOG_* from it
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	lg, err := logger.Init(logger.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("walletauth stopped", zap.Error(err))
	}
}

func run(cfg config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen, err := ids.NewGenerator(cfg.SnowflakeNode)
	if err != nil {
		return err
	}

	if cfg.SigningKeyFile == "" {
		lg.Warn("JWT_SIGNING_KEY_FILE not set, using an ephemeral key; sessions end on restart")
	}
	signKey, err := tokenizer.LoadSigningKey(cfg.SigningKeyFile)
	if err != nil {
		return err
	}

	directory, err := networks.Load(cfg.NetworksFile)
	if err != nil {
		return err
	}

	mem := store.NewMemoryStore(gen)
	var (
		registry ports.Registry        = mem
		sessions ports.SessionStore    = mem
		ledger   ports.ChallengeLedger = mem
	)

	if cfg.DatabaseURL != "" {
		db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		pg := store.NewPostgresStore(db, gen)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		registry, sessions, ledger = pg, pg, pg
		lg.Info("using postgres registry")
	} else {
		lg.Warn("DATABASE_URL not set, accounts are kept in memory")
	}

	wmLogger := logger.NewWatermillAdapter(lg.Named("watermill"))
	var publisher message.Publisher
	if cfg.RedisURL != "" {
		client, err := store.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		rs := store.NewRedisStore(client)
		defer rs.Close()
		sessions, ledger = rs, rs

		// Initialize Watermill Redis publisher
		publisher, err = redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, wmLogger)
		if err != nil {
			return fmt.Errorf("failed to create redis publisher: %w", err)
		}
		lg.Info("using redis sessions and event stream")
	} else {
		publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	authService := service.NewAuthService(
		tokenizer.NewJWTTokenizer(signKey, cfg.Issuer),
		eth.NewVerifier(),
		registry,
		sessions,
		ledger,
		events.NewWatermillPublisher(publisher),
		directory,
		service.Options{
			SessionTTL:       cfg.SessionTTL,
			ChallengeTTL:     cfg.ChallengeTTL,
			RequireChallenge: cfg.RequireChallenge,
			LoginNetwork:     cfg.LoginNetwork,
			Metrics:          m,
			Logger:           lg,
		},
	)

	if os.Getenv("LOG_DEV") != "1" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           transport.SetupRouter(authService, m, reg, lg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	lg.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		lg.Warn("http server shutdown failed", zap.Error(err))
	}

	lg.Info("goodbye")
	return nil
}
