package ledger

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/isaccanedo/fineract-sub004/pkg/loan"
	"github.com/isaccanedo/fineract-sub004/pkg/money"
	"github.com/isaccanedo/fineract-sub004/pkg/store"
)

// PostingConfig tunes the interest-posting batch job.
type PostingConfig struct {
	Workers        int
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultPostingConfig matches the batch defaults used in production.
func DefaultPostingConfig() PostingConfig {
	return PostingConfig{Workers: 8, MaxRetries: 3, InitialBackoff: 50 * time.Millisecond}
}

// PostingResult summarizes one batch run. Failed loans are excluded from the
// run's persistence but never abort their siblings.
type PostingResult struct {
	Posted  int
	Skipped int
	Failed  []uuid.UUID
}

// PostInterest records an interest-accrual transaction on every active loan
// with interest due as of the given date. Loans are partitioned by ID across
// a fixed-size worker pool, so no loan is ever touched by two workers; each
// loan's unit of work is retried on optimistic-lock conflicts with
// exponential backoff and jitter.
func (l *Ledger) PostInterest(ctx context.Context, asOf time.Time, cfg PostingConfig) (*PostingResult, error) {
	loans, err := l.storage.GetActiveLoans()
	if err != nil {
		return nil, err
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 50 * time.Millisecond
	}

	var mu sync.Mutex
	result := &PostingResult{}

	g := &errgroup.Group{}
	g.SetLimit(cfg.Workers)
	for _, ln := range loans {
		id := ln.ID
		g.Go(func() error {
			posted, err := l.postLoanInterest(ctx, id, asOf, cfg)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed = append(result.Failed, id)
				l.logger.Warn("interest posting failed for loan",
					zap.String("loan_id", id.String()), zap.Error(err))
			case posted:
				result.Posted++
			default:
				result.Skipped++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.logger.Info("interest posting run complete",
		zap.Int("posted", result.Posted),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

// postLoanInterest retries one loan's posting on conflict. Non-conflict
// errors fail immediately.
func (l *Ledger) postLoanInterest(ctx context.Context, id uuid.UUID, asOf time.Time, cfg PostingConfig) (bool, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		posted, err := l.postOnce(id, asOf)
		if err == nil {
			return posted, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return false, err
		}
		lastErr = err

		if attempt < cfg.MaxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * cfg.InitialBackoff
			jitter := time.Duration(rand.Int63n(int64(backoff/2) + 1))
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}
	}
	return false, lastErr
}

// postOnce loads a fresh copy of the loan, sums the interest outstanding on
// installments that are due, and persists a single accrual transaction.
func (l *Ledger) postOnce(id uuid.UUID, asOf time.Time) (bool, error) {
	ln, err := l.storage.GetLoan(id)
	if err != nil {
		return false, err
	}
	if ln.DisbursementDate == nil {
		return false, nil
	}

	due := dueInterest(ln, asOf)
	if !due.IsGreaterThanZero() {
		return false, nil
	}

	tx := loan.NewTransaction(loan.TransactionTypeAccrual, asOf, due.Amount())
	tx.InterestPortion = due.Amount()
	ln.AddTransaction(tx)
	if err := l.save(ln); err != nil {
		return false, err
	}
	return true, nil
}

// dueInterest sums outstanding interest across installments due on or
// before the given date, net of interest already accrued by earlier runs.
func dueInterest(ln *loan.Loan, asOf time.Time) (due money.Money) {
	due = money.Zero(ln.Currency)
	for _, installment := range ln.Installments {
		if loan.DateIsAfter(installment.DueDate, asOf) {
			continue
		}
		due = due.Add(installment.InterestOutstanding(ln.Currency))
	}
	for _, tx := range ln.Transactions {
		if tx.Reversed || !tx.IsAccrual() {
			continue
		}
		due = due.SubAmount(tx.InterestPortion)
	}
	return due.FlooredAtZero()
}
