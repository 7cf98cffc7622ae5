package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/habitforge/challenge-engine/pkg/announce"
	"github.com/habitforge/challenge-engine/pkg/catalog"
	"github.com/habitforge/challenge-engine/pkg/ledger"
	"github.com/habitforge/challenge-engine/pkg/logging"
	redisw "github.com/habitforge/challenge-engine/pkg/redis"
	"github.com/habitforge/challenge-engine/pkg/retry"
	"github.com/habitforge/challenge-engine/pkg/rotation"
	"github.com/habitforge/challenge-engine/pkg/utils"
)

// Job names used for cron registration, locks, and the status endpoint.
const (
	JobPoll     = "poll"
	JobDeploy   = "deploy"
	JobReminder = "reminder"
	JobEvaluate = "evaluate"
)

// App drives the weekly challenge cycle: four cron jobs orchestrating the
// catalog, the rotation state, the announcement channel, and the ledger.
type App struct {
	Logger *zap.Logger

	// Cron fires the four weekly jobs at fixed wall-clock slots.
	Cron *cron.Cron

	// Server is the HTTP surface for health probes and manual triggers.
	Server *http.Server

	Catalog *catalog.Catalog
	State   *rotation.Store
	Ledger  ledger.Ledger
	Channel announce.Channel
	Redis   *redisw.Client

	// Now is the clock, injectable for tests.
	Now func() time.Time

	// RewardAmount is the fixed credit issued per completion, never
	// prorated.
	RewardAmount int
	RewardTerms  string

	// JobTimeout bounds every job run; a hung collaborator call becomes a
	// logged job failure instead of a stalled trigger slot.
	JobTimeout time.Duration

	// TieBreak and Fallback are the named winner-selection policies.
	TieBreak TieBreakPolicy
	Fallback FallbackPolicy

	// rootCtx outlives individual HTTP requests so a manual trigger is not
	// cancelled by a disconnecting client.
	rootCtx context.Context

	// locks serializes each job kind; a concurrent invocation of the same
	// kind is rejected rather than queued.
	locks    *xsync.Map[string, *sync.Mutex]
	lastRuns *xsync.Map[string, JobStatus]
}

// JobStatus is the last observed outcome of a job kind, served by /status.
type JobStatus struct {
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Error      string    `json:"error,omitempty"`
}

// Initialize wires logging, Redis, ClickHouse, the rotation state backend,
// and the cron schedule.
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	var redisClient *redisw.Client
	err = retry.WithBackoff(ctx, retry.DefaultConfig(), logger, "redis_connection", func() error {
		var connErr error
		redisClient, connErr = redisw.NewClient(ctx, logger)
		return connErr
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	ledgerStore, err := ledger.NewStore(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize ledger: %w", err)
	}

	cat := catalog.Default()

	backend, err := stateBackend(redisClient)
	if err != nil {
		return nil, err
	}
	state, err := rotation.NewStore(ctx, logger, backend, cat.GroupCount())
	if err != nil {
		return nil, fmt.Errorf("initialize rotation state: %w", err)
	}

	rewardAmount := utils.EnvInt("CHALLENGE_REWARD_AMOUNT", 1)

	app := &App{
		Logger:       logger,
		Catalog:      cat,
		State:        state,
		Ledger:       ledgerStore,
		Channel:      announce.NewRedisChannel(redisClient, logger),
		Redis:        redisClient,
		Now:          time.Now,
		RewardAmount: rewardAmount,
		RewardTerms:  fmt.Sprintf("%d credit for completing the challenge!", rewardAmount),
		JobTimeout:   utils.EnvDuration("JOB_TIMEOUT", 2*time.Minute),
		TieBreak:     FirstOptionWins,
		Fallback:     SequentialRotation,
		rootCtx:      ctx,
		locks:        xsync.NewMap[string, *sync.Mutex](),
		lastRuns:     xsync.NewMap[string, JobStatus](),
	}

	if err := app.SetupScheduler(ctx); err != nil {
		return nil, err
	}

	return app, nil
}

// stateBackend selects the rotation state backend from STATE_BACKEND
// ("redis" or "file").
func stateBackend(redisClient *redisw.Client) (rotation.Backend, error) {
	switch backend := utils.Env("STATE_BACKEND", "redis"); backend {
	case "redis":
		return rotation.NewRedisBackend(
			redisClient.GetClient(),
			utils.Env("STATE_REDIS_KEY", "challenge:rotation:state"),
		), nil
	case "file":
		return rotation.NewFileBackend(utils.Env("STATE_FILE", "challenge-state.json")), nil
	default:
		return nil, fmt.Errorf("unknown STATE_BACKEND %q", backend)
	}
}

// SetupScheduler registers the four weekly jobs. Specs carry a seconds
// field; defaults match the reference deployment (poll Saturday 15:00,
// evaluate Sunday 09:00, deploy Sunday 15:00, reminder Wednesday 12:00).
func (a *App) SetupScheduler(ctx context.Context) error {
	loc, err := time.LoadLocation(utils.Env("TIMEZONE", "Europe/Berlin"))
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	a.Cron = cron.New(
		cron.WithSeconds(),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)

	entries := []struct {
		name string
		env  string
		spec string
		fn   func(context.Context) error
	}{
		{JobPoll, "CRON_POLL", "0 0 15 * * 6", a.SendChallengePoll},
		{JobEvaluate, "CRON_EVALUATE", "0 0 9 * * 0", a.RunWeeklyEvaluation},
		{JobDeploy, "CRON_DEPLOY", "0 0 15 * * 0", a.DeployChallenge},
		{JobReminder, "CRON_REMINDER", "0 0 12 * * 3", a.SendMidWeekReminder},
	}

	for _, entry := range entries {
		entry := entry
		spec := utils.Env(entry.env, entry.spec)
		if _, err := a.Cron.AddFunc(spec, func() {
			a.runJob(ctx, entry.name, entry.fn)
		}); err != nil {
			return fmt.Errorf("schedule %s job: %w", entry.name, err)
		}
		a.Logger.Info("Job scheduled",
			zap.String("job", entry.name),
			zap.String("spec", spec))
	}

	return nil
}

// runJob is the error boundary around every job invocation. A failure in
// one run never prevents subsequent scheduled runs; nothing escapes to
// crash the host process.
func (a *App) runJob(ctx context.Context, name string, fn func(context.Context) error) {
	lock, _ := a.locks.LoadOrStore(name, &sync.Mutex{})
	if !lock.TryLock() {
		a.Logger.Warn("Job already running, rejecting concurrent invocation",
			zap.String("job", name))
		return
	}
	defer lock.Unlock()

	jctx, cancel := context.WithTimeout(ctx, a.JobTimeout)
	defer cancel()

	status := JobStatus{Name: name, StartedAt: a.Now()}
	err := fn(jctx)
	status.FinishedAt = a.Now()

	if err != nil {
		status.Error = err.Error()
		a.Logger.Error("Job failed",
			zap.String("job", name),
			zap.Duration("elapsed", status.FinishedAt.Sub(status.StartedAt)),
			zap.Error(err))
	} else {
		a.Logger.Info("Job completed",
			zap.String("job", name),
			zap.Duration("elapsed", status.FinishedAt.Sub(status.StartedAt)))
	}

	a.lastRuns.Store(name, status)
}

// Manual trigger hooks for operational testing; each invokes the job body
// out of its normal time slot under the same lock and timeout.

func (a *App) ManualSendPoll() { a.runJob(a.rootCtx, JobPoll, a.SendChallengePoll) }

func (a *App) ManualDeployChallenge() { a.runJob(a.rootCtx, JobDeploy, a.DeployChallenge) }

func (a *App) ManualSendReminder() { a.runJob(a.rootCtx, JobReminder, a.SendMidWeekReminder) }

func (a *App) ManualRunEvaluation() { a.runJob(a.rootCtx, JobEvaluate, a.RunWeeklyEvaluation) }

// StartCron starts the cron scheduler.
func (a *App) StartCron() {
	a.Cron.Start()
	a.Logger.Info("Challenge cycle cron started")
}

// StopCron stops the cron scheduler and waits for a running job to finish.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
}

// Ready reports whether the app can serve its schedule: both backing stores
// must answer a ping.
func (a *App) Ready() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if a.Redis != nil && a.Redis.Health(ctx) != nil {
		return false
	}
	if a.Ledger != nil && a.Ledger.Health(ctx) != nil {
		return false
	}
	return true
}

// Start runs the HTTP server until the context is cancelled, then shuts
// everything down.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()
	_ = a.Server.Close()
	a.Logger.Info("Shutting down challenge scheduler")
	a.StopCron()
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}
