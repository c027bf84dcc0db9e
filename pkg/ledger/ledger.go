// Package ledger orchestrates the loan lifecycle: it owns the persistence
// boundary and drives the repayment-schedule transaction processor whenever
// a financial event is created, edited or reversed.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/isaccanedo/fineract-sub004/pkg/loan"
	"github.com/isaccanedo/fineract-sub004/pkg/money"
	"github.com/isaccanedo/fineract-sub004/pkg/processor"
	"github.com/isaccanedo/fineract-sub004/pkg/store"
)

// ErrTransactionNotFound is returned when a referenced transaction does not
// exist on the loan.
var ErrTransactionNotFound = errors.New("transaction not found")

// Ledger handles the business logic for loans and their transactions.
type Ledger struct {
	storage store.Storage
	logger  *zap.Logger
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{storage: s, logger: logger}
}

// CreateLoan registers a new loan in approved state. The strategy code is
// validated up front so disbursement can't fail on it later.
func (l *Ledger) CreateLoan(customerKey string, currency money.Currency, principal decimal.Decimal, numberOfInstallments int, strategyCode string) (*loan.Loan, error) {
	if strategyCode == "" {
		strategyCode = processor.DefaultStrategy
	}
	if _, err := processor.New(strategyCode); err != nil {
		return nil, err
	}
	if !principal.GreaterThan(decimal.Zero) {
		return nil, errors.New("principal must be positive")
	}

	ln := &loan.Loan{
		ID:                   uuid.New(),
		CustomerKey:          customerKey,
		Currency:             currency,
		Principal:            principal,
		NumberOfInstallments: numberOfInstallments,
		StrategyCode:         strategyCode,
		Status:               loan.StatusApproved,
		OverpaidBalance:      decimal.Zero,
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
	}
	if err := l.storage.CreateLoan(ln); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}
	return ln, nil
}

// DisburseLoan activates the loan, generates its schedule and persists the
// disbursement transaction.
func (l *Ledger) DisburseLoan(id uuid.UUID, date time.Time, interestPerInstallment decimal.Decimal) (*loan.Loan, error) {
	ln, err := l.storage.GetLoan(id)
	if err != nil {
		return nil, err
	}
	if err := ln.Disburse(date, interestPerInstallment); err != nil {
		return nil, err
	}
	if err := l.reprocessAndSave(ln); err != nil {
		return nil, err
	}
	l.logger.Info("loan disbursed",
		zap.String("loan_id", ln.ID.String()),
		zap.Int("installments", len(ln.Installments)))
	return ln, nil
}

// AddCharge attaches a fee or penalty to the loan and reprocesses so
// per-installment due amounts pick it up.
func (l *Ledger) AddCharge(id uuid.UUID, charge *loan.LoanCharge) (*loan.Loan, error) {
	ln, err := l.storage.GetLoan(id)
	if err != nil {
		return nil, err
	}
	ln.Charges = append(ln.Charges, charge)
	if err := l.reprocessAndSave(ln); err != nil {
		return nil, err
	}
	return ln, nil
}

// SubmitTransaction records a new financial event (repayment, waiver,
// recovery, charge payment, charge-back or refund) and replays the loan's
// transaction history through the processor.
func (l *Ledger) SubmitTransaction(id uuid.UUID, txType loan.TransactionType, date time.Time, amount decimal.Decimal) (*loan.LoanTransaction, error) {
	ln, err := l.storage.GetLoan(id)
	if err != nil {
		return nil, err
	}
	if ln.DisbursementDate == nil {
		return nil, loan.ErrNotDisbursed
	}
	if !amount.GreaterThan(decimal.Zero) {
		return nil, errors.New("amount must be positive")
	}

	tx := loan.NewTransaction(txType, date, amount)
	ln.AddTransaction(tx)
	if err := l.reprocessAndSave(ln); err != nil {
		return nil, err
	}
	l.logger.Info("transaction processed",
		zap.String("loan_id", ln.ID.String()),
		zap.String("type", string(txType)),
		zap.String("amount", amount.String()))
	return tx, nil
}

// AdjustTransaction edits a persisted transaction's amount (and optionally
// date) and reprocesses. The processor reverses the original and substitutes
// a replacement; both end up persisted.
func (l *Ledger) AdjustTransaction(id uuid.UUID, txID int64, newAmount decimal.Decimal, newDate *time.Time) (*loan.ChangedTransactionDetail, error) {
	ln, err := l.storage.GetLoan(id)
	if err != nil {
		return nil, err
	}
	tx := ln.FindTransaction(txID)
	if tx == nil || tx.Reversed {
		return nil, ErrTransactionNotFound
	}

	tx.Amount = newAmount
	if newDate != nil {
		tx.Date = *newDate
	}

	changed, err := l.reprocess(ln)
	if err != nil {
		return nil, err
	}
	if err := l.save(ln); err != nil {
		return nil, err
	}
	for originalID, replacement := range changed.NewTransactionMappings {
		l.logger.Info("transaction reversed and replaced",
			zap.String("loan_id", ln.ID.String()),
			zap.Int64("original_id", originalID),
			zap.Int64("replacement_id", replacement.ID))
	}
	return changed, nil
}

// UndoTransaction reverses a persisted transaction and reprocesses the rest
// of the history without it.
func (l *Ledger) UndoTransaction(id uuid.UUID, txID int64) (*loan.Loan, error) {
	ln, err := l.storage.GetLoan(id)
	if err != nil {
		return nil, err
	}
	tx := ln.FindTransaction(txID)
	if tx == nil || tx.Reversed {
		return nil, ErrTransactionNotFound
	}
	tx.Reverse()
	if err := l.reprocessAndSave(ln); err != nil {
		return nil, err
	}
	return ln, nil
}

// WriteOffLoan closes out everything outstanding as of the given date.
func (l *Ledger) WriteOffLoan(id uuid.UUID, date time.Time) (*loan.LoanTransaction, error) {
	ln, err := l.storage.GetLoan(id)
	if err != nil {
		return nil, err
	}
	if ln.DisbursementDate == nil {
		return nil, loan.ErrNotDisbursed
	}

	tx := loan.NewTransaction(loan.TransactionTypeWriteOff, date, decimal.Zero)
	ln.AddTransaction(tx)
	if _, err := l.reprocess(ln); err != nil {
		return nil, err
	}
	ln.Status = loan.StatusWrittenOff
	if err := l.save(ln); err != nil {
		return nil, err
	}
	l.logger.Info("loan written off",
		zap.String("loan_id", ln.ID.String()),
		zap.String("amount", tx.Amount.String()))
	return tx, nil
}

// PreviewSchedule runs the lightweight schedule-impact variant over the
// loan's current transaction stream plus the given candidate transactions.
// Nothing is persisted; the loan's live state is untouched because the
// preview runs against a deep copy of the schedule.
func (l *Ledger) PreviewSchedule(id uuid.UUID, candidates []*loan.LoanTransaction) (money.Money, error) {
	ln, err := l.storage.GetLoan(id)
	if err != nil {
		return money.Money{}, err
	}
	if ln.DisbursementDate == nil {
		return money.Money{}, loan.ErrNotDisbursed
	}
	proc, err := processor.New(ln.StrategyCode)
	if err != nil {
		return money.Money{}, err
	}

	installments := make([]*loan.RepaymentInstallment, len(ln.Installments))
	for idx, installment := range ln.Installments {
		copied := *installment
		installments[idx] = &copied
	}
	stream := append(ln.RepaymentStream(), candidates...)
	return proc.HandleRepaymentSchedule(stream, ln.Currency, installments), nil
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(id uuid.UUID) (*loan.Loan, error) {
	return l.storage.GetLoan(id)
}

// GetAllLoans retrieves all loans.
func (l *Ledger) GetAllLoans() ([]*loan.Loan, error) {
	return l.storage.GetAllLoans()
}

// DeleteLoan deletes a loan.
func (l *Ledger) DeleteLoan(id uuid.UUID) error {
	return l.storage.DeleteLoan(id)
}

// reprocess replays the full post-disbursement stream through the processor
// and folds the change-set's replacement transactions into the history.
func (l *Ledger) reprocess(ln *loan.Loan) (*loan.ChangedTransactionDetail, error) {
	if ln.DisbursementDate == nil {
		return loan.NewChangedTransactionDetail(), nil
	}
	proc, err := processor.New(ln.StrategyCode)
	if err != nil {
		return nil, err
	}
	stream := ln.RepaymentStream()
	changed := proc.HandleTransaction(*ln.DisbursementDate, stream, ln.Currency, &ln.Installments, ln.Charges)
	for _, replacement := range changed.NewTransactionMappings {
		ln.AddTransaction(replacement)
	}
	ln.RefreshStatus()
	return changed, nil
}

func (l *Ledger) save(ln *loan.Loan) error {
	ln.UpdatedAt = time.Now()
	if err := l.storage.SaveLoan(ln); err != nil {
		return fmt.Errorf("failed to save loan state: %w", err)
	}
	return nil
}

func (l *Ledger) reprocessAndSave(ln *loan.Loan) error {
	if _, err := l.reprocess(ln); err != nil {
		return err
	}
	return l.save(ln)
}
