package crontab

import (
	"context"
	"time"

	"github.com/mileusna/crontab"

	"chatdesk/chat-api/internal/config"
	"chatdesk/chat-api/internal/domain/aiusage"
	"chatdesk/chat-api/internal/infrastructure/logger"
	"chatdesk/chat-api/internal/utils/platformerrors"
)

const CronJobTimeout = 10 * time.Minute

// Crontab schedules the daily usage rollup.
type Crontab struct {
	ctab         *crontab.Crontab
	usageService *aiusage.Service
	cfg          *config.Config
}

func NewCrontab(usageService *aiusage.Service, cfg *config.Config) *Crontab {
	return &Crontab{
		ctab:         crontab.New(),
		usageService: usageService,
		cfg:          cfg,
	}
}

// Run blocks until ctx is cancelled. The rollup re-aggregates yesterday once
// on start so a restart never leaves a day half rolled up.
func (c *Crontab) Run(ctx context.Context) error {
	if !c.cfg.UsageRollupEnabled {
		<-ctx.Done()
		return nil
	}

	c.rollupYesterday(ctx)

	if err := c.ctab.AddJob(c.cfg.UsageRollupCron, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
		defer cancel()
		c.rollupYesterday(jobCtx)
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to schedule usage rollup job")
	}
	log := logger.GetLogger()
	log.Info().Str("cron", c.cfg.UsageRollupCron).Msg("usage rollup scheduled")

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) rollupYesterday(ctx context.Context) {
	log := logger.GetLogger()
	day := time.Now().UTC().AddDate(0, 0, -1)
	if err := c.usageService.RollupDay(ctx, day); err != nil {
		log.Error().Err(err).Time("day", day).Msg("usage rollup failed")
		return
	}
	log.Info().Str("day", day.Format("2006-01-02")).Msg("usage rollup complete")
}
