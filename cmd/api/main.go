package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/example/inventory-control/internal/api"
	"github.com/example/inventory-control/internal/auth"
	"github.com/example/inventory-control/internal/config"
	"github.com/example/inventory-control/internal/domain/inventory"
	"github.com/example/inventory-control/internal/infrastructure/kafka"
	"github.com/example/inventory-control/internal/infrastructure/lock"
	"github.com/example/inventory-control/internal/infrastructure/store"
	"github.com/example/inventory-control/internal/logger"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.Load()
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("[API] invalid configuration: %v", err)
	}

	appLogger, err := logger.New(logger.Config{
		Development: cfg.IsDevelopment(),
		Level:       cfg.Logger.Level,
		Encoding:    cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("[API] failed to build logger: %v", err)
	}
	defer appLogger.Sync()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Fatal("api stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, appLogger *zap.Logger) error {
	appLogger.Info("starting inventory api",
		zap.String("store", cfg.Store.Driver),
		zap.String("lock", cfg.Lock.Driver),
		zap.Bool("kafka", cfg.Kafka.Enabled),
	)

	repo, closeRepo, err := openRepository(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeRepo()

	locker, closeLocker, err := openLocker(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeLocker()

	opts := []inventory.Option{inventory.WithLogger(appLogger)}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		opts = append(opts, inventory.WithPublisher(producer))
		appLogger.Info("publishing events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	svc := inventory.NewService(repo, locker, opts...)

	users := auth.NewUserRegistry(0)
	if cfg.Auth.AdminPassword != "" {
		if _, err := users.Register(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, auth.RoleAdmin); err != nil {
			return fmt.Errorf("seed admin user: %w", err)
		}
		appLogger.Info("seeded admin user", zap.String("username", cfg.Auth.AdminUsername))
	} else {
		appLogger.Warn("ADMIN_PASSWORD not set, no admin account was created")
	}

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	revocations := auth.NewRevocationList()

	router := api.NewRouter(api.RouterConfig{
		Handlers:     api.NewHandlers(svc, appLogger),
		AuthHandlers: api.NewAuthHandlers(users, jwtService, revocations, appLogger),
		JWTService:   jwtService,
		Revocations:  revocations,
		Logger:       appLogger,
	})

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("server started", zap.String("addr", cfg.Server.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	appLogger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func openRepository(ctx context.Context, cfg *config.Config, appLogger *zap.Logger) (inventory.Repository, func(), error) {
	switch cfg.Store.Driver {
	case config.StorePostgres, config.StoreMySQL:
		dialect := store.Dialect(cfg.Store.Driver)
		db, err := store.Connect(ctx, dialect, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Store.AutoMigrate {
			if err := store.Migrate(ctx, db, dialect); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		appLogger.Info("connected to database", zap.String("dialect", string(dialect)))
		return store.NewSQLRepository(db), func() { db.Close() }, nil

	case config.StoreDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Store.AWSRegion))
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		appLogger.Info("using dynamodb",
			zap.String("table", cfg.Store.DynamoTable),
			zap.String("region", cfg.Store.AWSRegion),
		)
		return store.NewDynamoRepository(dynamodb.NewFromConfig(awsCfg), cfg.Store.DynamoTable), func() {}, nil

	default:
		appLogger.Warn("using in-memory store, data is lost on restart")
		return store.NewMemoryRepository(), func() {}, nil
	}
}

func openLocker(ctx context.Context, cfg *config.Config, appLogger *zap.Logger) (inventory.Locker, func(), error) {
	if cfg.Lock.Driver != config.LockRedis {
		return lock.NewKeyedMutex(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}
	appLogger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	locker := lock.NewRedisLocker(client, lock.RedisConfig{TTL: cfg.Lock.TTL}, appLogger)
	return locker, func() { client.Close() }, nil
}
