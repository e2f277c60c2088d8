// Package bootstrap wires storage, caches, the event bus and the use cases
// shared by the API and worker processes.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nardi-attend/attendance-hub/config"
	"github.com/nardi-attend/attendance-hub/internal/application/command"
	"github.com/nardi-attend/attendance-hub/internal/domain/attendance"
	"github.com/nardi-attend/attendance-hub/internal/domain/member"
	"github.com/nardi-attend/attendance-hub/internal/domain/notification"
	"github.com/nardi-attend/attendance-hub/internal/domain/schedule"
	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
	"github.com/nardi-attend/attendance-hub/internal/infrastructure/messaging"
	"github.com/nardi-attend/attendance-hub/internal/infrastructure/notify"
	"github.com/nardi-attend/attendance-hub/internal/infrastructure/persistence/memory"
	"github.com/nardi-attend/attendance-hub/internal/infrastructure/persistence/postgres"
	"github.com/nardi-attend/attendance-hub/internal/infrastructure/persistence/redis"
	"github.com/nardi-attend/attendance-hub/internal/interface/http/handlers"
	"github.com/nardi-attend/attendance-hub/pkg/logger"
	"github.com/nardi-attend/attendance-hub/pkg/timeutil"
)

// Role selects how the process joins the event bus.
type Role string

const (
	// RoleAPI publishes events. Without Redis it also consumes them locally.
	RoleAPI Role = "api"

	// RoleWorker subscribes to events published by API instances.
	RoleWorker Role = "worker"
)

// EventBus is both sides of the event bus plus shutdown.
type EventBus interface {
	shared.EventPublisher
	shared.EventSubscriber
	Close() error
}

// Components holds everything a process needs after startup.
type Components struct {
	Config *config.Config
	Logger *slog.Logger
	Offset timeutil.Offset

	Members   member.Repository
	Records   attendance.Repository
	Schedules schedule.Source
	SweepRuns attendance.SweepRunRepository

	Ledger  *command.Ledger
	Sweep   *command.AbsenceSweep
	Ranking *command.RankingAggregator

	// RankingCache is nil when Redis is disabled.
	RankingCache *redis.RankingCache

	Bus    EventBus
	Health *handlers.Health

	// LocalEvents is true when published events never leave this process.
	LocalEvents bool

	closers []func()
}

// New connects to the configured backends and builds the use cases.
// Call Close when done, even after an error.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, role Role) (c *Components, err error) {
	c = &Components{
		Config: cfg,
		Logger: log,
		Offset: cfg.App.Offset(),
		Health: handlers.NewHealth(cfg.App.Version, cfg.HTTP.HealthTimeout),
	}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	var fallback *schedule.WeeklySchedule
	if cfg.Attendance.UseDefaultSchedule {
		fallback = schedule.DefaultSchedule()
	}

	if cfg.Database.URL != "" {
		if err := c.connectPostgres(ctx, fallback); err != nil {
			return c, err
		}
	} else {
		log.Warn("DATABASE_URL is empty, using the in-memory store")
		store := memory.NewStore()
		c.Members = store.Members()
		c.Records = store.Attendance()
		c.Schedules = store.Schedules(fallback)
		c.SweepRuns = store.SweepRuns()
	}
	c.Health.TrackSweeps(c.lastSweepDate)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. REDIS: cache, lock, event bus
	// ─────────────────────────────────────────────────────────────────────────
	var (
		locker       command.Locker = memory.NewLocker()
		rankingCache command.RankingCache
	)

	if !cfg.Redis.Disabled {
		cache, err := redis.NewCache(redisConfig(cfg.Redis))
		if err != nil {
			return c, fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.closers = append(c.closers, func() { _ = cache.Close() })
		c.Health.Register("redis", cache)

		c.RankingCache = redis.NewRankingCache(cache)
		rankingCache = c.RankingCache
		locker = redis.NewLocker(cache)

		bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redis.NewPubSubClient(cache),
			ChannelName:    redis.PubSubChannel("attendance_events"),
			Listen:         role == RoleWorker,
			LocalBusConfig: messaging.DefaultInMemoryEventBusConfig(),
			Logger:         log,
		})
		if err != nil {
			return c, fmt.Errorf("failed to start event bus: %w", err)
		}
		c.Bus = bus
		log.Info("redis connection established")
	} else {
		log.Warn("redis disabled, events and locks stay in this process")
		busCfg := messaging.DefaultInMemoryEventBusConfig()
		busCfg.Logger = log
		c.Bus = messaging.NewInMemoryEventBus(busCfg)
		c.LocalEvents = true
	}
	c.closers = append(c.closers, func() { _ = c.Bus.Close() })

	// ─────────────────────────────────────────────────────────────────────────
	// 3. NOTIFICATIONS
	// ─────────────────────────────────────────────────────────────────────────
	sender, err := newSender(cfg.Notification, log)
	if err != nil {
		return c, err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. USE CASES
	// ─────────────────────────────────────────────────────────────────────────
	resolver := schedule.NewResolver(c.Offset)

	c.Ledger = command.NewLedger(
		c.Members,
		c.Records,
		c.Schedules,
		resolver,
		attendance.NewPolicy(c.Offset, cfg.Attendance.CheckInLead),
		c.Bus,
		log,
		command.LedgerConfig{DuplicateScanGrace: cfg.Attendance.DuplicateScanGrace},
	)

	c.Ranking = command.NewRankingAggregator(c.Members, c.Records, rankingCache, log)

	c.Sweep = command.NewAbsenceSweep(command.SweepDependencies{
		Members:        c.Members,
		Records:        c.Records,
		Schedules:      c.Schedules,
		Resolver:       resolver,
		Sender:         sender,
		Runs:           c.SweepRuns,
		Locker:         locker,
		Ranking:        c.Ranking,
		EventPublisher: c.Bus,
		Logger:         log,
	}, command.AbsenceSweepConfig{
		WarnAtStreak:  cfg.Attendance.WarnAtStreak,
		BlockAtStreak: cfg.Attendance.BlockAtStreak,
		LockTTL:       cfg.Scheduler.SweepLockTTL,
		NotifyTimeout: cfg.Notification.Timeout,
	})

	return c, nil
}

func (c *Components) connectPostgres(ctx context.Context, fallback *schedule.WeeklySchedule) error {
	cfg := c.Config.Database

	c.Logger.Info("connecting to database...")
	opts := postgres.DefaultPoolOptions()
	opts.MaxConns = int32(cfg.MaxConns)
	opts.MinConns = int32(cfg.MinConns)
	opts.MaxConnLifetime = cfg.ConnMaxLifetime
	opts.MaxConnIdleTime = cfg.ConnMaxIdleTime

	conn, err := postgres.NewConnectionFromURL(ctx, cfg.URL, opts)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.closers = append(c.closers, conn.Close)
	c.Health.Register("postgres", conn)
	c.Logger.Info("database connection established")

	if cfg.AutoMigrate {
		c.Logger.Info("running database migrations...")
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		c.Logger.Info("database schema is up to date")
	}

	c.Members = postgres.NewMemberRepository(conn)
	c.Records = postgres.NewAttendanceRepository(conn)
	c.Schedules = postgres.NewScheduleRepository(conn, fallback)
	c.SweepRuns = postgres.NewSweepRunRepository(conn)
	return nil
}

func (c *Components) lastSweepDate(ctx context.Context) (string, error) {
	run, err := c.SweepRuns.LastRun(ctx)
	if err != nil {
		if shared.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return run.Date, nil
}

// Close releases connections in reverse order of creation.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func redisConfig(cfg config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = cfg.URL
	if cfg.Host != "" {
		rc.Host = cfg.Host
	}
	if cfg.Port > 0 {
		rc.Port = cfg.Port
	}
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	if cfg.PoolSize > 0 {
		rc.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		rc.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		rc.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		rc.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		rc.WriteTimeout = cfg.WriteTimeout
	}
	return rc
}

func newSender(cfg config.NotificationConfig, log *slog.Logger) (notification.Sender, error) {
	if !cfg.Enabled {
		log.Info("email disabled, escalation messages are only logged")
		return notify.NewLogSender(log), nil
	}

	sender, err := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:         cfg.SendGridAPIKey,
		FromEmail:      cfg.FromEmail,
		FromName:       cfg.FromName,
		SubjectPrefix:  cfg.SubjectPrefix,
		RequestTimeout: cfg.Timeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to configure sendgrid: %w", err)
	}
	return sender, nil
}

// NewLogger builds the process logger from the log and app settings.
func NewLogger(cfg *config.Config) *slog.Logger {
	opts := logger.ForEnvironment(string(cfg.App.Environment), cfg.App.Debug)
	if cfg.Log.Level != "" {
		opts.Level = logger.ParseLevel(cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case string(logger.FormatJSON):
		opts.Format = logger.FormatJSON
	case string(logger.FormatText):
		opts.Format = logger.FormatText
	}

	log := logger.New(opts).With(slog.String("service", cfg.App.Name))
	slog.SetDefault(log)
	return log
}
