package main

import (
	"context"
	"database/sql"
	"time"

	"garage-layout/internal/common/database"
	commonmqtt "garage-layout/internal/common/mqtt"
	commonredis "garage-layout/internal/common/redis"
	"garage-layout/internal/config"
	"garage-layout/internal/dispatch"
	"garage-layout/internal/mqtt"
	"garage-layout/internal/repository"
	"garage-layout/internal/service"
	"garage-layout/internal/store"
	"garage-layout/internal/workbook"

	"go.uber.org/zap"
)

// stack the writers and clients one process runs with.
type stack struct {
	files    *store.FileStore
	writer   dispatch.Writer
	notifier *mqtt.Notifier

	db     *sql.DB
	redis  *commonredis.Client
	broker *commonmqtt.Client
}

// buildStack wires the file store plus whichever of Redis, the Postgres
// archive and MQTT are enabled. An enabled backend that cannot be reached is
// logged and left out.
func buildStack(ctx context.Context, cfg *config.Config, logger *zap.Logger) *stack {
	s := &stack{
		files: store.NewFileStore(store.FileLayout{
			Dir:               cfg.Output.Dir,
			CameraHubFile:     cfg.Output.CameraHubFile,
			DevicesConfigFile: cfg.Output.DevicesConfigFile,
			FLIDir:            cfg.Output.FLIDir,
		}),
	}
	writers := store.MultiWriter{s.files}

	if cfg.Redis.Enabled {
		client := commonredis.NewRedisClient(&cfg.Redis.RedisConfig)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := commonredis.Ping(pingCtx, client)
		cancel()
		if err != nil {
			logger.Warn("Redis enabled but unreachable, documents go to files only", zap.Error(err))
			_ = client.Close()
		} else {
			s.redis = client
			writers = append(writers, store.NewKVDocuments(store.NewRedisKV(client), cfg.Redis.KeyPrefix))
			logger.Info("Redis document store enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	if cfg.DB.Enabled {
		if db, err := database.NewPostgresDB(ctx, &cfg.DB.DatabaseConfig); err == nil {
			repo := repository.NewPostgresConfigVersionsRepository(db)
			if err := repo.EnsureSchema(ctx); err != nil {
				logger.Warn("Config archive schema setup failed, archive disabled", zap.Error(err))
				_ = database.Close(db)
			} else {
				s.db = db
				writers = append(writers, repository.NewArchiveWriter(repo, nil))
				logger.Info("Config archive enabled")
			}
		} else {
			logger.Warn("DB enabled but connection failed, archive disabled", zap.Error(err))
		}
	}
	s.writer = writers

	if cfg.MQTT.Enabled {
		broker, err := commonmqtt.NewClient(&cfg.MQTT.MQTTConfig, logger)
		if err != nil {
			logger.Warn("MQTT enabled but connection failed, change notices disabled", zap.Error(err))
		} else {
			s.broker = broker
			s.notifier = mqtt.NewNotifier(s.writer, broker, cfg.MQTT.Topic, 1, nil, logger)
		}
	}
	return s
}

func (s *stack) siteService(cfg *config.Config, logger *zap.Logger) *service.SiteService {
	svcCfg := service.SiteServiceConfig{
		Importer:   workbook.NewImporter(workbook.WithLimits(cfg.ImportLimits()), workbook.WithLogger(logger)),
		Dispatcher: dispatch.New(logger),
		Writer:     s.writer,
		Reader:     s.files,
		Fetcher:    service.NewWorkbookClient(cfg.Workbook.Timeout, logger),
		DefaultURL: cfg.Workbook.URL,
		Logger:     logger,
	}
	if s.notifier != nil {
		svcCfg.Notifier = s.notifier
	}
	return service.NewSiteService(svcCfg)
}

func (s *stack) Close() {
	if s.broker != nil {
		s.broker.Disconnect()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = database.Close(s.db)
	}
}
