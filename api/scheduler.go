/*
scheduler.go - Automated overdue penalty scheduler

PURPOSE:
  Periodically sweeps active loans and posts a flat misc penalty on each
  installment that is past due beyond the grace period. Penalties land
  in the misc penalty bucket, which is the first stop of the payment
  waterfall, so the next repayment covers them before anything else.

DESIGN:
  - Driven by a cron expression (default: daily at 01:00)
  - One penalty per installment per calendar day, tracked in memory;
    a restart may re-assess the same day, which posts at most one
    extra penalty and is accepted for now
  - Paid installments and closed loans are never assessed
  - The flat penalty is configured in one currency; loans in any other
    currency are skipped with a warning rather than assessed

CONFIGURATION:
  - CronSpec:  When to sweep (cron expression)
  - GraceDays: Days past due before a penalty applies
  - Penalty:   Flat amount charged per overdue installment

USAGE:
  scheduler := NewPenaltyScheduler(store, clock, log, cfg)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - loan/schedule.go: ApplyMiscCharge
  - cmd/server/main.go: Wiring and flags
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/warp/loan-engine/loan"
	"github.com/warp/loan-engine/money"
)

// PenaltyConfig controls the overdue sweep.
type PenaltyConfig struct {
	CronSpec  string
	GraceDays int
	Penalty   money.Money
}

// PenaltyScheduler assesses overdue penalties on a cron schedule.
type PenaltyScheduler struct {
	store loan.Store
	clock loan.Clock
	log   *logrus.Logger
	cfg   PenaltyConfig

	cron *cron.Cron

	mu           sync.Mutex
	lastAssessed map[string]string // loanID/installmentID -> date assessed
}

// NewPenaltyScheduler creates a scheduler. Start must be called to arm it.
func NewPenaltyScheduler(store loan.Store, clock loan.Clock, log *logrus.Logger, cfg PenaltyConfig) *PenaltyScheduler {
	return &PenaltyScheduler{
		store:        store,
		clock:        clock,
		log:          log,
		cfg:          cfg,
		lastAssessed: make(map[string]string),
	}
}

// Start arms the cron schedule. Returns an error for a bad cron spec.
// A panicking sweep is recovered and logged; the cron stays armed.
func (ps *PenaltyScheduler) Start() error {
	ps.cron = cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(ps.log))))
	if _, err := ps.cron.AddFunc(ps.cfg.CronSpec, ps.Sweep); err != nil {
		return fmt.Errorf("bad penalty cron spec %q: %w", ps.cfg.CronSpec, err)
	}
	ps.cron.Start()
	ps.log.WithField("cron", ps.cfg.CronSpec).Info("penalty scheduler started")
	return nil
}

// Stop halts the cron schedule and waits for a running sweep to finish.
func (ps *PenaltyScheduler) Stop() {
	if ps.cron != nil {
		<-ps.cron.Stop().Done()
		ps.log.Info("penalty scheduler stopped")
	}
}

// Sweep assesses every active loan once. Exported so an admin endpoint or
// test can trigger it outside the cron schedule.
func (ps *PenaltyScheduler) Sweep() {
	ctx := context.Background()
	today := ps.clock.Today()
	cutoff := today.AddDate(0, 0, -ps.cfg.GraceDays)

	loans, err := ps.store.ListActiveLoans(ctx)
	if err != nil {
		ps.log.WithError(err).Error("penalty sweep: listing loans failed")
		return
	}

	assessed := 0
	for _, sched := range loans {
		if sched.Currency() != ps.cfg.Penalty.Currency {
			ps.log.WithFields(logrus.Fields{
				"loan_id":  sched.LoanID(),
				"currency": sched.Currency(),
				"penalty":  ps.cfg.Penalty.Currency,
			}).Warn("penalty sweep: currency mismatch, loan skipped")
			continue
		}
		n, err := ps.assessLoan(ctx, sched, today, cutoff)
		if err != nil {
			ps.log.WithError(err).WithField("loan_id", sched.LoanID()).Error("penalty sweep: loan failed")
			continue
		}
		assessed += n
	}

	if assessed > 0 {
		ps.log.WithFields(logrus.Fields{
			"loans":     len(loans),
			"penalties": assessed,
		}).Info("penalty sweep completed")
	}
}

func (ps *PenaltyScheduler) assessLoan(ctx context.Context, sched *loan.Schedule, today, cutoff time.Time) (int, error) {
	dayKey := today.Format("2006-01-02")
	assessed := 0

	for _, in := range sched.Installments() {
		if in.Status() == loan.StatusPaid || !in.DueDate().Before(cutoff) {
			continue
		}

		key := fmt.Sprintf("%s/%d", sched.LoanID(), in.ID())
		ps.mu.Lock()
		done := ps.lastAssessed[key] == dayKey
		ps.mu.Unlock()
		if done {
			continue
		}

		if err := sched.ApplyMiscCharge(in.ID(), loan.ChargeMiscPenalty, ps.cfg.Penalty); err != nil {
			return assessed, err
		}

		ps.mu.Lock()
		ps.lastAssessed[key] = dayKey
		ps.mu.Unlock()
		assessed++
	}

	if assessed == 0 {
		return 0, nil
	}
	if err := ps.store.SaveLoan(ctx, sched); err != nil {
		return assessed, err
	}
	return assessed, nil
}
