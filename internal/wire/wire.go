// Package wire provides dependency injection for the gate application.
// It creates singleton services with lazy initialization.
package wire

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/example/contentgate/internal/adapters/httpcheck"
	"github.com/example/contentgate/internal/adapters/notify"
	"github.com/example/contentgate/internal/adapters/sqlite"
	"github.com/example/contentgate/internal/app"
	"github.com/example/contentgate/internal/config"
	"github.com/example/contentgate/internal/core/content"
	"github.com/example/contentgate/internal/core/rulesync"
	"github.com/example/contentgate/internal/db"
	"github.com/example/contentgate/internal/logging"
	"github.com/example/contentgate/internal/metrics"
	"github.com/example/contentgate/internal/ports/primary"
	"github.com/example/contentgate/internal/ports/secondary"
	"github.com/example/contentgate/internal/rules"
)

// Services holds every primary port plus the shared infrastructure the CLI
// needs to report on.
type Services struct {
	Config      *config.Config
	DB          *sql.DB
	Logger      logging.Logger
	Metrics     *metrics.Metrics
	Gate        primary.GateService
	Expiry      primary.ExpiryService
	Content     primary.ContentService
	SourceTrust primary.SourceTrustService
	Rules       primary.RuleService
}

// Options configures Build. Nil fields get production defaults.
type Options struct {
	Config  *config.Config
	DB      *sql.DB
	Logger  logging.Logger
	Checker secondary.URLChecker
	Now     func() time.Time
}

// Build constructs the full object graph over an open database.
func Build(opts Options) (*Services, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.DB == nil {
		return nil, fmt.Errorf("a database connection is required")
	}
	logger := logging.OrDiscard(opts.Logger)

	registry, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	platforms, err := parsePlatforms(cfg.Platforms)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	// Repositories (secondary ports)
	contentRepo := sqlite.NewContentRepository(opts.DB)
	passRepo := sqlite.NewConditionalPassRepository(opts.DB)
	logRepo := sqlite.NewVerificationLogRepository(opts.DB)
	reviewRepo := sqlite.NewReviewQueueRepository(opts.DB)
	decisionRepo := sqlite.NewDecisionLogRepository(opts.DB)

	checker := opts.Checker
	if checker == nil {
		checker = httpcheck.New(httpcheck.WithMaxRedirects(cfg.MaxRedirects))
	}

	notifier := notify.NewDispatcher(notify.DispatcherConfig{
		Channels: notificationChannels(cfg, logger),
		Metrics:  m,
		Logger:   logger,
	})

	retry := app.NewRetryController(notifier, m, logger,
		app.WithSpacing(cfg.URLCheckSpacing()),
		app.WithAttemptTimeout(cfg.URLCheckTimeout()),
	)

	lock := app.NewBlockLock()
	verifier := app.NewSourceVerifier(app.SourceVerifierConfig{
		PassRepo:   passRepo,
		LogRepo:    logRepo,
		ReviewRepo: reviewRepo,
		Checker:    checker,
		Retry:      retry,
		Registry:   registry,
		Metrics:    m,
		Logger:     logger,
		MaxRetries: cfg.URLCheckAttempts - 1,
		Now:        opts.Now,
	})

	gate := app.NewGateService(app.GateServiceConfig{
		ContentRepo:  contentRepo,
		PassRepo:     passRepo,
		DecisionRepo: decisionRepo,
		Verifier:     verifier,
		Registry:     registry,
		Lock:         lock,
		Options: app.GateOptions{
			Platforms: platforms,
			Assets: content.AssetRequirements{
				MinCount:  cfg.MinAssetCount,
				MinWidth:  cfg.MinAssetWidth,
				MinHeight: cfg.MinAssetHeight,
			},
			RuleSync: rulesync.Options{
				MinHashLength: cfg.MinRuleHashLength,
				Strict:        cfg.StrictRuleHash,
			},
			DefaultConcurrency: cfg.CheckConcurrency,
		},
		Metrics: m,
		Logger:  logger,
		Now:     opts.Now,
	})

	expiry := app.NewExpiryService(app.ExpiryServiceConfig{
		PassRepo:    passRepo,
		ReviewRepo:  reviewRepo,
		Executor:    app.NewEffectExecutor(passRepo, notifier, logger),
		Verifier:    verifier,
		Lock:        lock,
		Metrics:     m,
		Logger:      logger,
		WarningDays: cfg.WarningDays,
		PushURL:     cfg.Pushgateway,
		Now:         opts.Now,
	})

	trust := app.NewSourceTrustService(app.SourceTrustServiceConfig{
		ContentRepo: contentRepo,
		PassRepo:    passRepo,
		LogRepo:     logRepo,
		ReviewRepo:  reviewRepo,
		Verifier:    verifier,
		Lock:        lock,
		Logger:      logger,
		Now:         opts.Now,
	})

	return &Services{
		Config:      cfg,
		DB:          opts.DB,
		Logger:      logger,
		Metrics:     m,
		Gate:        gate,
		Expiry:      expiry,
		Content:     app.NewContentService(contentRepo, decisionRepo, lock, logger),
		SourceTrust: trust,
		Rules:       app.NewRuleService(registry),
	}, nil
}

// NewSweepJob creates the scheduled expiry sweep used by the daemon.
func (s *Services) NewSweepJob(interval time.Duration, onReport func(*primary.SweepReport)) *app.SweepJob {
	return app.NewSweepJob(app.SweepJobConfig{
		Service:  s.Expiry,
		Logger:   s.Logger,
		Interval: interval,
		OnReport: onReport,
	})
}

func notificationChannels(cfg *config.Config, logger logging.Logger) []secondary.Notifier {
	channels := []secondary.Notifier{notify.NewLogNotifier(logger)}
	telegram := notify.NewTelegramNotifier(notify.TelegramConfig{
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
	}, logger)
	if telegram.IsConfigured() {
		channels = append(channels, telegram)
	} else {
		logger.Debug("Telegram not configured; notifications go to the log only")
	}
	return channels
}

func parsePlatforms(names []string) ([]content.Platform, error) {
	platforms := make([]content.Platform, 0, len(names))
	for _, name := range names {
		p, err := content.ParsePlatform(name)
		if err != nil {
			return nil, fmt.Errorf("invalid platform in config: %w", err)
		}
		platforms = append(platforms, p)
	}
	return platforms, nil
}

var (
	services *Services
	initErr  error
	workDir  = "."
	once     sync.Once
)

// SetWorkDir sets the workspace directory holding .gate/. Must be called
// before the first Get.
func SetWorkDir(dir string) {
	workDir = dir
}

// WorkDir returns the workspace directory.
func WorkDir() string {
	return workDir
}

// Get returns the singleton Services, initializing them on first use.
func Get() (*Services, error) {
	once.Do(initServices)
	return services, initErr
}

// initServices loads configuration, opens the database and builds the graph.
// This is called once via sync.Once.
func initServices() {
	logger := logging.NewLogger()
	config.LoadEnv(logger)
	logger.SetLevel(config.GetLogLevel())

	cfg, err := config.LoadOrDefault(workDir)
	if err != nil {
		initErr = err
		return
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = config.DefaultDBPath(workDir)
	}

	database, err := db.GetDB(dbPath)
	if err != nil {
		initErr = fmt.Errorf("failed to initialize database: %w", err)
		return
	}

	services, initErr = Build(Options{Config: cfg, DB: database, Logger: logger})
}
