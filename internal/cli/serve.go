package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/hybrid-relay/internal/auth"
	"github.com/weiawesome/hybrid-relay/internal/config"
	"github.com/weiawesome/hybrid-relay/internal/domain"
	"github.com/weiawesome/hybrid-relay/internal/handler"
	"github.com/weiawesome/hybrid-relay/internal/hub"
	"github.com/weiawesome/hybrid-relay/internal/kafka"
	"github.com/weiawesome/hybrid-relay/internal/registry"
	"github.com/weiawesome/hybrid-relay/internal/relay"
	"github.com/weiawesome/hybrid-relay/internal/repository"
	"github.com/weiawesome/hybrid-relay/internal/service"
	"github.com/weiawesome/hybrid-relay/pkg/database"
	"github.com/weiawesome/hybrid-relay/pkg/jwt"
	"github.com/weiawesome/hybrid-relay/pkg/log"
	"github.com/weiawesome/hybrid-relay/pkg/middleware"
	"github.com/weiawesome/hybrid-relay/pkg/pubsub"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket relay and status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	instanceID := cfg.Cluster.InstanceID
	if instanceID == "" {
		instanceID = uuid.New().String()
	}
	log.Init(log.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: serviceName,
		InstanceID:  instanceID,
	})
	logger := log.L()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db, domain.Models()...); err != nil {
			return fmt.Errorf("failed to auto-migrate: %w", err)
		}
		logger.Info().Msg("database migration completed")
	}

	users := repository.NewGormUserRepository(db)
	streams := repository.NewGormStreamRepository(db)
	codeSessions := repository.NewGormCodeSessionRepository(db)

	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		return err
	}

	reg, err := registry.New(cfg.Registry)
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}
	defer reg.Close()
	logger.Info().
		Str("driver", cfg.Registry.Driver).
		Str("conflict_policy", cfg.Registry.ConflictPolicy).
		Msg("session registry ready")

	h := hub.NewHub(cfg.WebSocket)

	var rl relay.Relay
	if cfg.Cluster.Enabled {
		busCfg := cfg.Cluster.PubSub
		// Every instance must see every cluster event.
		busCfg.Kafka.GroupID = busCfg.Kafka.GroupID + "-" + instanceID
		bus, err := pubsub.NewPubSub(busCfg)
		if err != nil {
			return fmt.Errorf("failed to create cluster bus: %w", err)
		}
		defer bus.Close()
		rl = relay.NewClusterRelay(h, bus, instanceID)
		logger.Info().Str("driver", busCfg.Driver).Msg("cluster relay enabled")
	} else {
		rl = relay.NewLocalRelay(h)
	}
	defer rl.Close()

	producer, err := kafka.New(cfg.Kafka.Enabled, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions, instanceID)
	if err != nil {
		return err
	}
	defer producer.Close()

	svc := service.NewRealtimeService(h, rl, reg, streams, codeSessions, producer, service.NewPollScheduler(), instanceID)

	ws := handler.NewWSHandler(h, svc, auth.NewAuthenticator(tokens, users), cfg.WebSocket.AllowedOrigins)
	httpHandler := handler.NewHandler(h, reg, ws, middleware.NewAuthMiddleware(tokens), instanceID)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinMiddleware(logger))
	httpHandler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if err := rl.Start(gctx); err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}

	g.Go(func() error {
		h.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("relay starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		svc.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Disconnect cleanup still needs the registry, relay and database, which
	// the deferred closes above tear down.
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if derr := h.Drain(drainCtx); derr != nil {
		logger.Warn().Err(derr).Msg("connections still open after shutdown timeout")
	}
	return err
}
