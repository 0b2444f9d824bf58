// Package audit periodically samples the magic-link token table into
// gauges. Tokens are never deleted (the table is the audit trail and the
// rate-limit source), so expired-unused counts only ever grow between
// deploys; the gauge makes send failures and abuse visible.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/ledgerbook/identity/internal/metrics"
	"github.com/ledgerbook/identity/internal/repository"
	"github.com/robfig/cron/v3"
)

type Sampler struct {
	tokens repository.TokenRepository
	logger *slog.Logger
	cron   *cron.Cron
}

func NewSampler(tokens repository.TokenRepository, logger *slog.Logger) *Sampler {
	return &Sampler{
		tokens: tokens,
		logger: logger.With("component", "audit_sampler"),
		cron:   cron.New(),
	}
}

// Start samples once immediately, then every minute until Stop.
func (s *Sampler) Start(ctx context.Context) error {
	s.sample(ctx)
	_, err := s.cron.AddFunc("@every 1m", func() { s.sample(ctx) })
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sample to finish.
func (s *Sampler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sampler) sample(ctx context.Context) {
	sampleCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	active, expiredUnused, err := s.tokens.CountOutstanding(sampleCtx)
	if err != nil {
		s.logger.Warn("token audit sample failed", "error", err)
		return
	}
	metrics.TokensActive.Set(float64(active))
	metrics.TokensExpiredUnused.Set(float64(expiredUnused))
}
