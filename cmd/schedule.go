package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/monitoring"
)

// scheduledJob is one cron entry. An empty Spec disables the job.
type scheduledJob struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

func (e *appEnv) scheduledJobs() []scheduledJob {
	sc := e.cfg.Schedule
	return []scheduledJob{
		{Name: "ingest", Spec: sc.Ingest, Run: func(ctx context.Context) error {
			s, err := e.IngestAll(ctx)
			logSummary(s)
			return err
		}},
		{Name: "news", Spec: sc.News, Run: func(ctx context.Context) error {
			_, err := e.FetchNews(ctx)
			return err
		}},
		{Name: "classify", Spec: sc.Classify, Run: func(ctx context.Context) error {
			_, err := e.ClassifyNews(ctx)
			return err
		}},
		{Name: "embed", Spec: sc.Embed, Run: func(ctx context.Context) error {
			_, err := e.EmbedPending(ctx, 0)
			return err
		}},
		{Name: "briefing", Spec: sc.Briefing, Run: func(ctx context.Context) error {
			s, err := e.BriefAll(ctx, time.Now().UTC())
			logSummary(s)
			return err
		}},
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

// newCron registers jobs on a UTC cron. A job still running when its next
// tick fires is skipped.
func newCron(ctx context.Context, jobs []scheduledJob) (*cron.Cron, error) {
	logger := cronLogger{l: zap.S()}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	for _, j := range jobs {
		if j.Spec == "" {
			zap.L().Info("schedule: job disabled", zap.String("job", j.Name))
			continue
		}
		job := j
		if _, err := c.AddFunc(job.Spec, func() { runScheduled(ctx, job) }); err != nil {
			return nil, eris.Wrapf(err, "schedule: invalid spec for %s: %q", job.Name, job.Spec)
		}
		zap.L().Info("schedule: job registered", zap.String("job", job.Name), zap.String("spec", job.Spec))
	}
	return c, nil
}

func runScheduled(ctx context.Context, job scheduledJob) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	log := zap.L().With(zap.String("job", job.Name))
	log.Info("schedule: job starting")
	if err := job.Run(ctx); err != nil {
		log.Error("schedule: job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	log.Info("schedule: job complete", zap.Duration("elapsed", time.Since(start)))
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline jobs on their cron schedules",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "schedule")
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := newCron(ctx, env.scheduledJobs())
		if err != nil {
			return err
		}

		checker := monitoring.NewChecker(
			monitoring.NewCollector(env.Store),
			monitoring.NewAlerter(cfg.Monitoring),
			env.Metrics,
			cfg.Monitoring,
		)
		go checker.Run(ctx)

		c.Start()
		zap.L().Info("scheduler started", zap.Int("entries", len(c.Entries())))

		<-ctx.Done()
		zap.L().Info("scheduler stopping, waiting for running jobs")
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
