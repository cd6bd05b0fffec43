package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"event-analytics/internal/alerting"
	"event-analytics/internal/config"
	"event-analytics/internal/scheduler"
	"event-analytics/internal/service"
	"event-analytics/internal/source"
	"event-analytics/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives rendered reports.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Out:    os.Stdout,
	}
}

func (a *App) newREST() *source.REST {
	cfg := a.Config.Supabase
	return source.NewREST(source.RESTOptions{
		BaseURL:     cfg.URL,
		APIKey:      cfg.APIKey,
		SeriesTable: cfg.SeriesTable,
		FunnelTable: cfg.FunnelTable,
		Timeout:     cfg.RequestTimeout,
		UserAgent:   cfg.UserAgent,
	}, a.Logger)
}

// newSources prefers the database when a DSN is configured and falls back to the
// Supabase REST endpoint otherwise.
func (a *App) newSources(store *storage.Store) (source.SeriesSource, source.FunnelSource, error) {
	if store != nil {
		return store, store, nil
	}
	if a.Config.Supabase.URL != "" {
		rest := a.newREST()
		return rest, rest, nil
	}
	return nil, nil, errors.New("no data source configured: set database.dsn or supabase.url")
}

// newNotifier registers every enabled channel. It returns nil when none is enabled.
func (a *App) newNotifier() alerting.Notifier {
	multi := alerting.NewMulti(a.Logger)

	if tg := a.Config.Alerting.Telegram; tg.Enabled {
		multi.Register("telegram", alerting.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBase, 10*time.Second, a.Logger))
	}
	if wh := a.Config.Alerting.Webhook; wh.Enabled {
		multi.Register("webhook", alerting.NewWebhookNotifier(wh.URL, wh.Secret, wh.Timeout, a.Logger))
	}

	if multi.Len() == 0 {
		return nil
	}
	return multi
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// colored reports whether terminal output should carry ANSI colors.
func colored() bool {
	return !color.NoColor
}

// Run executes the long-running dashboard refresh service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; snapshots and alert history disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	src, _, err := a.newSources(store)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
	}, a.Logger)
	if err != nil {
		return err
	}

	notifier := a.newNotifier()
	if a.Config.Alerting.Enabled && notifier == nil {
		a.Logger.Warn().Msg("alerting enabled but no channel configured")
	}

	var snapshotStore storage.SnapshotStore
	var alertStore storage.AlertStore
	if store != nil {
		snapshotStore = store
		alertStore = store
	}

	svc := service.New(a.Config, sched, src, snapshotStore, alertStore, notifier, a.Logger)

	a.Logger.Info().Strs("series", a.Config.Analytics.Series).Dur("interval", a.Config.Scheduler.Interval).Msg("starting refresh service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("refresh service stopped")
	return nil
}

// AnalyzeOptions configure a one-off series report.
type AnalyzeOptions struct {
	Series      string
	CSVPath     string
	Periods     int
	Threshold   float64
	Period      int
	Format      string
	Backtest    int
	CompareWith string
	ScanAll     bool
	// Bucket, when positive, reads the CSV as a raw event log and sums it into
	// buckets of this width.
	Bucket time.Duration
}

// FunnelOptions configure the funnel report.
type FunnelOptions struct {
	Event  string
	Stages string
	Format string
}

// ExportOptions hold parameters for exporting a series and its forecast.
type ExportOptions struct {
	Series    string
	Before    *time.Time
	PNGPath   string
	CSVPath   string
	Periods   int
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit  int
	Series string
	Format string
}

// BackfillOptions configure the backfill job.
type BackfillOptions struct {
	From         time.Time
	To           time.Time
	DryRun       bool
	SkipExisting bool
}

// SimulateOptions configure a simulated anomaly alert.
type SimulateOptions struct {
	Series   string
	Value    float64
	Baseline []float64
}
