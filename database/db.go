package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kbukum/diarkit/logger"
	"github.com/kbukum/diarkit/observability"
)

// DB wraps a gorm database with diarkit logging.
type DB struct {
	GormDB *gorm.DB
	log    *logger.Logger
	cfg    Config
	closed bool
	mu     sync.Mutex
}

// Open connects with retries, applies pool settings and migrates the
// transcript schema.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*DB, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("database")

	slowThreshold, _ := time.ParseDuration(cfg.SlowQueryThreshold)
	gormCfg := &gorm.Config{
		Logger: newGormLogger(log, slowThreshold, parseLogLevel(cfg.LogLevel)),
	}

	var (
		db  *gorm.DB
		err error
	)
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("database connection canceled: %w", ctx.Err())
		}

		db, err = gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
		if err == nil {
			if err = configurePool(ctx, db, cfg); err == nil {
				log.Info("database connection established", logger.Fields("attempt", attempt, logger.FieldBackend, cfg.Driver))
				d := &DB{GormDB: db, log: log, cfg: cfg}
				if err := d.AutoMigrate(ctx); err != nil {
					_ = d.Close()
					return nil, err
				}
				return d, nil
			}
		}

		if attempt < cfg.MaxRetries {
			wait := time.Duration(attempt) * 500 * time.Millisecond
			log.Warn("database connection attempt failed, retrying", logger.Fields(
				"attempt", attempt,
				logger.FieldError, err.Error(),
				"backoff", wait.String(),
			))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("database connection canceled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", cfg.MaxRetries, err)
}

func configurePool(ctx context.Context, db *gorm.DB, cfg Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	if lifetime, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
		sqlDB.SetConnMaxLifetime(lifetime)
	}
	return nil
}

// AutoMigrate creates or updates the transcript table.
func (d *DB) AutoMigrate(ctx context.Context) error {
	if err := d.GormDB.WithContext(ctx).AutoMigrate(&TranscriptRecord{}); err != nil {
		return fmt.Errorf("failed to migrate transcripts: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool. Safe to call multiple times.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	sqlDB, err := d.GormDB.DB()
	if err != nil {
		return err
	}
	d.log.Info("closing database connection")
	d.closed = true
	return sqlDB.Close()
}

// PingContext verifies the connection is alive.
func (d *DB) PingContext(ctx context.Context) error {
	sqlDB, err := d.GormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// WithContext returns a gorm session scoped to ctx.
func (d *DB) WithContext(ctx context.Context) *gorm.DB {
	return d.GormDB.WithContext(ctx)
}

// CheckHealth pings the database and reports pool usage.
func (d *DB) CheckHealth(ctx context.Context) observability.Health {
	h := observability.Health{Name: "database", Status: observability.HealthStatusUp}
	start := time.Now()
	if err := d.PingContext(ctx); err != nil {
		h.Status = observability.HealthStatusDown
		h.Message = err.Error()
		return h
	}
	sqlDB, _ := d.GormDB.DB()
	stats := sqlDB.Stats()
	h.Details = map[string]string{
		"driver":     d.cfg.Driver,
		"latency":    time.Since(start).String(),
		"open_conns": fmt.Sprint(stats.OpenConnections),
		"in_use":     fmt.Sprint(stats.InUse),
	}
	return h
}
