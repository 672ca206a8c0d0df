package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskflow/core/internal/adapters/cache"
	"github.com/taskflow/core/internal/adapters/repository"
	"github.com/taskflow/core/internal/adapters/repository/memory"
	"github.com/taskflow/core/internal/adapters/repository/mongostore"
	"github.com/taskflow/core/internal/application/services"
	"github.com/taskflow/core/internal/infrastructure/config"
	"github.com/taskflow/core/internal/infrastructure/database"
	"github.com/taskflow/core/internal/infrastructure/identity"
	"github.com/taskflow/core/internal/infrastructure/logger"
	"github.com/taskflow/core/internal/infrastructure/mailer"
	"github.com/taskflow/core/internal/infrastructure/pubsub"
	"github.com/taskflow/core/internal/ports"
)

type repositories struct {
	users         ports.UserRepository
	auth          ports.AuthRepository
	boards        ports.BoardRepository
	notifications ports.NotificationRepository
	activities    ports.ActivityRepository
}

type notificationHub interface {
	ports.NotificationPublisher
	ports.NotificationSubscriber
}

// Runtime owns the connections and services of one process. Commands other
// than serve use it directly.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger

	DB       *database.DB
	Mongo    *database.Mongo
	Redis    *redis.Client
	Verifier *identity.Verifier
	Hub      notificationHub

	Identity      *services.IdentityService
	Boards        *services.BoardService
	Members       *services.MemberService
	Notifications *services.NotificationService
	Activity      *services.ActivityService
	Dashboard     *services.DashboardService
	Reminders     *services.ReminderService
}

// NewRuntime connects the configured stores and builds the services.
func NewRuntime(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: log}

	repos, err := rt.openStores(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	if cfg.Redis.Enabled {
		rt.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rt.Redis.Ping(ctx).Err(); err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		repos.boards = cache.NewBoardCache(repos.boards, rt.Redis, cfg.Redis.CacheTTL)
		rt.Hub = pubsub.NewRedis(rt.Redis, cfg.Redis.ChannelPrefix, log)
	} else {
		rt.Hub = pubsub.NewLocal()
	}

	var verifier ports.IdentityVerifier
	if cfg.Identity.Provider == "oidc" {
		rt.Verifier, err = identity.Dial(cfg.Identity, func(err error) {
			log.Warnw("JWKS refresh failed", "error", err)
		})
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to load identity provider keys: %w", err)
		}
		verifier = rt.Verifier
	}

	mail, err := mailer.New(cfg.Mail, log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to configure mailer: %w", err)
	}

	rt.Notifications = services.NewNotificationService(repos.notifications, rt.Hub, log)
	rt.Activity = services.NewActivityService(repos.activities, repos.boards, log)
	rt.Identity = services.NewIdentityService(repos.users, repos.auth, repos.boards, verifier, mail, cfg.JWT, cfg.App.PublicURL, log)
	rt.Boards = services.NewBoardService(repos.boards, rt.Notifications, rt.Activity, log)
	rt.Members = services.NewMemberService(repos.boards, repos.users, rt.Notifications, rt.Activity, mail, cfg.App.PublicURL, log)
	rt.Dashboard = services.NewDashboardService(repos.boards, repos.notifications)
	rt.Reminders = services.NewReminderService(repos.boards, repos.notifications, rt.Notifications, cfg.Scheduler.DueDateWindow, log)

	return rt, nil
}

func (rt *Runtime) openStores(ctx context.Context) (*repositories, error) {
	cfg := rt.Config

	if cfg.Storage.Driver == config.StorageDriverMemory {
		rt.Logger.Warnw("Using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			users:         store.Users(),
			auth:          store.Auth(),
			boards:        store.Boards(),
			notifications: store.Notifications(),
			activities:    store.Activities(),
		}, nil
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	rt.DB = db

	repos := &repositories{
		users:         repository.NewUserRepository(db.DB),
		auth:          repository.NewAuthRepository(db),
		boards:        repository.NewBoardRepository(db.DB),
		notifications: repository.NewNotificationRepository(db.DB),
		activities:    repository.NewActivityRepository(db.DB),
	}

	if cfg.Storage.Driver == config.StorageDriverMongo {
		m, err := database.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		rt.Mongo = m

		if err := mongostore.EnsureIndexes(ctx, m.DB); err != nil {
			return nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		repos.boards = mongostore.NewBoardRepository(m.DB)
		repos.notifications = mongostore.NewNotificationRepository(m.DB)
		repos.activities = mongostore.NewActivityRepository(m.DB)
	}

	return repos, nil
}

// HealthCheck pings every configured backing service.
func (rt *Runtime) HealthCheck(ctx context.Context) map[string]error {
	checks := make(map[string]error)
	if rt.DB != nil {
		checks["database"] = rt.DB.HealthCheck(ctx)
	}
	if rt.Mongo != nil {
		checks["mongo"] = rt.Mongo.HealthCheck(ctx)
	}
	if rt.Redis != nil {
		checks["redis"] = rt.Redis.Ping(ctx).Err()
	}
	return checks
}

// Close releases every connection that was opened. It is safe on a partially
// built Runtime.
func (rt *Runtime) Close() error {
	var errs []error

	if rt.Verifier != nil {
		rt.Verifier.Close()
	}
	if rt.Redis != nil {
		errs = append(errs, rt.Redis.Close())
	}
	if rt.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, rt.Mongo.Close(ctx))
		cancel()
	}
	if rt.DB != nil {
		errs = append(errs, rt.DB.Close())
	}

	return errors.Join(errs...)
}
