package scheduler

import (
	"context"
	"fmt"
	"time"

	"chatify-realtime/pkg/logger"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"
)

const DefaultCron = "* * * * *"

// Runner fires the processor on a cron schedule. Each tick runs in its own
// goroutine, so a slow cycle never delays the next one.
type Runner struct {
	processor *Processor
	cron      string
	logger    *logger.Logger
}

func NewRunner(processor *Processor, cron string, log *logger.Logger) (*Runner, error) {
	if cron == "" {
		cron = DefaultCron
	}
	if !gronx.IsValid(cron) {
		return nil, fmt.Errorf("invalid scheduler cron expression: %s", cron)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{processor: processor, cron: cron, logger: log.Named("scheduler")}, nil
}

func (r *Runner) Start(ctx context.Context) {
	go r.run(ctx)
}

// Trigger runs one cycle synchronously, outside the timer.
func (r *Runner) Trigger(ctx context.Context) (CycleResult, error) {
	return r.processor.RunOnce(ctx)
}

func (r *Runner) run(ctx context.Context) {
	r.logger.Info("scheduler started", zap.String("cron", r.cron))
	for {
		next, err := gronx.NextTickAfter(r.cron, time.Now(), false)
		if err != nil {
			r.logger.Error("failed to compute next tick", zap.String("cron", r.cron), zap.Error(err))
			select {
			case <-time.After(30 * time.Second):
				continue
			case <-ctx.Done():
				r.logger.Info("scheduler stopping")
				return
			}
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("scheduler stopping")
			return
		case <-timer.C:
			go func() {
				if _, err := r.processor.RunOnce(ctx); err != nil {
					r.logger.Error("dispatch cycle failed", zap.Error(err))
				}
			}()
		}
	}
}
