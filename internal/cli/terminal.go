package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shibarkan/cafe/internal/channel"
	"github.com/Shibarkan/cafe/internal/config"
	"github.com/Shibarkan/cafe/internal/localstore"
	"github.com/Shibarkan/cafe/internal/repository"
	"github.com/Shibarkan/cafe/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// terminal holds the connections shared by every role running in one process.
type terminal struct {
	device *localstore.Device
	repo   *repository.Repository
	remote channel.Channel

	closers []func()
}

func (t *terminal) Close() {
	for i := len(t.closers) - 1; i >= 0; i-- {
		t.closers[i]()
	}
}

// openTerminal opens the device store and the remote channel. needRepo forces a
// postgres connection even when the channel runs on another backend.
func openTerminal(ctx context.Context, cfg *config.Config, log *logrus.Logger, needRepo bool) (*terminal, error) {
	t := &terminal{}

	device, err := localstore.Open(cfg.Device.DBPath)
	if err != nil {
		return nil, err
	}
	t.closers = append(t.closers, func() { device.Close() })
	t.device = device

	if err := device.RunMigrations(cfg.Device.MigrationsDir); err != nil {
		t.Close()
		return nil, err
	}

	if needRepo || cfg.Channel.Backend == config.BackendPostgres {
		repo, err := openRepository(cfg)
		if err != nil {
			t.Close()
			return nil, err
		}
		t.closers = append(t.closers, func() { repo.Close() })
		t.repo = repo
	}

	remote, err := t.openChannel(ctx, cfg, logger.Component(log, "channel"))
	if err != nil {
		t.Close()
		return nil, err
	}
	t.remote = remote

	return t, nil
}

func (t *terminal) openChannel(ctx context.Context, cfg *config.Config, log *logrus.Entry) (channel.Channel, error) {
	switch cfg.Channel.Backend {
	case config.BackendPostgres:
		return channel.NewPostgresChannel(t.repo.DB(), credentials(cfg).DSN(), log), nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		t.closers = append(t.closers, func() { client.Close() })
		return channel.NewRedisChannel(client, log), nil

	case config.BackendMongo:
		db, err := channel.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		t.closers = append(t.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			db.Client().Disconnect(ctx)
		})
		return channel.NewMongoChannel(db, log), nil

	case config.BackendMemory:
		log.Warn("memory channel only syncs roles inside this process")
		return channel.NewMemoryChannel(), nil
	}
	return nil, fmt.Errorf("unknown channel backend %q", cfg.Channel.Backend)
}

func credentials(cfg *config.Config) *repository.Credentials {
	return &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsDir,
	}
}

func openRepository(cfg *config.Config) (*repository.Repository, error) {
	creds := credentials(cfg)
	repo, err := repository.NewRepository(creds)
	if err != nil {
		return nil, err
	}
	if err := repo.RunMigrations(creds); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command, log *logrus.Logger) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.WithField("signal", sig.String()).Info("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// serve runs the HTTP server until ctx is cancelled, then drains it.
func serve(ctx context.Context, cfg *config.Config, handler http.Handler, log *logrus.Logger) error {
	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3*cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("port", cfg.HTTP.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("server shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
