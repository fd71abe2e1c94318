// Package checkin sends scheduled proactive check-in prompts to
// configured users. Disabled unless a schedule and user list are set.
package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/quietroomlabs/haven/pkg/config"
	"github.com/quietroomlabs/haven/pkg/logger"
)

// SendFunc delivers one check-in prompt to a user. The gateway supplies
// an implementation that routes through the user's last-seen channel.
type SendFunc func(ctx context.Context, userID, message string)

type Scheduler struct {
	cfg  config.CheckinConfig
	send SendFunc
	cron *gronx.Gronx
}

// New validates the cron expression up front; a bad schedule is a
// configuration error and fails startup.
func New(cfg config.CheckinConfig, send SendFunc) (*Scheduler, error) {
	g := gronx.New()
	if cfg.Enabled && !g.IsValid(cfg.Schedule) {
		return nil, fmt.Errorf("checkin.schedule: invalid cron expression %q", cfg.Schedule)
	}
	return &Scheduler{cfg: cfg, send: send, cron: g}, nil
}

// Run ticks once a minute and fires the schedule when due. Blocks until
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.cfg.Enabled || len(s.cfg.Users) == 0 {
		return
	}
	logger.InfoCF("checkin", "Check-in scheduler started", map[string]interface{}{
		"schedule": s.cfg.Schedule,
		"users":    len(s.cfg.Users),
	})

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := s.cron.IsDue(s.cfg.Schedule, time.Now())
			if err != nil || !due {
				continue
			}
			for _, userID := range s.cfg.Users {
				s.send(ctx, userID, s.cfg.Message)
			}
			logger.InfoCF("checkin", "Check-in prompts sent", map[string]interface{}{
				"users": len(s.cfg.Users),
			})
		}
	}
}
