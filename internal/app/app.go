package app

import (
	"context"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/openlearn/gradecore/internal/coursegraph"
	"github.com/openlearn/gradecore/internal/data/db"
	"github.com/openlearn/gradecore/internal/events"
	"github.com/openlearn/gradecore/internal/pkg/logger"
	"github.com/openlearn/gradecore/internal/scores"
)

// App is the composed grading core. The content store and submissions
// snapshot are owned by the embedding process; the defaults are the
// in-memory implementations.
type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Services Services

	Content     *coursegraph.MemStore
	Submissions *scores.MemSubmissionsStore

	forwarder *events.Forwarder
	cancel    context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	content := coursegraph.NewMemStore()
	submissions := scores.NewMemSubmissionsStore()

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(cfg, log, reposet, content, submissions)
	if err != nil {
		log.Sync()
		return nil, err
	}

	return &App{
		Log:         log,
		DB:          theDB,
		Cfg:         cfg,
		Repos:       reposet,
		Services:    serviceset,
		Content:     content,
		Submissions: submissions,
	}, nil
}

// Start begins consuming inbound signals when a broker is configured.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Cfg.RedisAddr == "" {
		a.Log.Warn("REDIS_ADDR not set; inbound signals must be emitted in-process")
		return nil
	}
	forwarder, err := events.NewRedisForwarder(a.Services.Bus, a.Log)
	if err != nil {
		return err
	}
	a.forwarder = forwarder
	return forwarder.Start(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.forwarder != nil {
		_ = a.forwarder.Close()
		a.forwarder = nil
	}
	if a.Services.Publisher != nil {
		_ = a.Services.Publisher.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
