package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/isaccanedo/fineract-sub004/pkg/loan"
	"github.com/isaccanedo/fineract-sub004/pkg/money"
	"github.com/isaccanedo/fineract-sub004/pkg/processor"
	"github.com/isaccanedo/fineract-sub004/pkg/store"
)

var usd = money.Currency{Code: "USD", Digits: 2}

// MockStore is a simple in-memory implementation of the Storage interface for
// testing. Like the real store it assigns IDs to not-yet-persisted
// transactions on save.
type MockStore struct {
	loans    map[uuid.UUID]*loan.Loan
	nextTxID int64
}

func NewMockStore() *MockStore {
	return &MockStore{
		loans:    make(map[uuid.UUID]*loan.Loan),
		nextTxID: 1,
	}
}

func (m *MockStore) CreateLoan(l *loan.Loan) error {
	m.loans[l.ID] = l
	return nil
}

func (m *MockStore) SaveLoan(l *loan.Loan) error {
	if _, ok := m.loans[l.ID]; !ok {
		return store.ErrLoanNotFound
	}
	for _, tx := range l.Transactions {
		if tx.IsNew() {
			tx.ID = m.nextTxID
			m.nextTxID++
		}
	}
	l.Version++
	m.loans[l.ID] = l
	return nil
}

func (m *MockStore) GetLoan(id uuid.UUID) (*loan.Loan, error) {
	l, ok := m.loans[id]
	if !ok {
		return nil, store.ErrLoanNotFound
	}
	return l, nil
}

func (m *MockStore) GetAllLoans() ([]*loan.Loan, error) {
	loans := []*loan.Loan{}
	for _, l := range m.loans {
		loans = append(loans, l)
	}
	return loans, nil
}

func (m *MockStore) GetActiveLoans() ([]*loan.Loan, error) {
	loans := []*loan.Loan{}
	for _, l := range m.loans {
		if l.Status == loan.StatusActive {
			loans = append(loans, l)
		}
	}
	return loans, nil
}

func (m *MockStore) DeleteLoan(id uuid.UUID) error {
	delete(m.loans, id)
	return nil
}

func (m *MockStore) Close() error {
	return nil
}

// conflictStore wraps MockStore and fails the first n saves with ErrConflict.
type conflictStore struct {
	*MockStore
	failures int
}

func (c *conflictStore) SaveLoan(l *loan.Loan) error {
	if c.failures > 0 {
		c.failures--
		return store.ErrConflict
	}
	return c.MockStore.SaveLoan(l)
}

var disbursementDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newActiveLoan(t *testing.T, l *Ledger, principal float64, installments int, interest float64) *loan.Loan {
	t.Helper()
	ln, err := l.CreateLoan("cust123", usd, decimal.NewFromFloat(principal), installments, processor.StrategyInterestPrincipalPenaltyFee)
	if err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}
	ln, err = l.DisburseLoan(ln.ID, disbursementDate, decimal.NewFromFloat(interest))
	if err != nil {
		t.Fatalf("Failed to disburse loan: %v", err)
	}
	return ln
}

func TestCreateLoan(t *testing.T) {
	st := NewMockStore()
	l := NewLedger(st, nil)

	principal := decimal.NewFromFloat(1000.0)
	ln, err := l.CreateLoan("cust123", usd, principal, 10, "")
	if err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	if !ln.Principal.Equal(principal) {
		t.Errorf("Expected principal %s, got %s", principal, ln.Principal)
	}
	if ln.StrategyCode != processor.DefaultStrategy {
		t.Errorf("Expected default strategy, got %s", ln.StrategyCode)
	}
	if ln.Status != loan.StatusApproved {
		t.Errorf("Expected approved status, got %s", ln.Status)
	}
}

func TestCreateLoanValidation(t *testing.T) {
	l := NewLedger(NewMockStore(), nil)

	if _, err := l.CreateLoan("cust123", usd, decimal.NewFromFloat(1000), 10, "no-such-strategy"); err == nil {
		t.Error("Expected error for unknown strategy")
	}
	if _, err := l.CreateLoan("cust123", usd, decimal.Zero, 10, ""); err == nil {
		t.Error("Expected error for non-positive principal")
	}
}

func TestDisburseLoan(t *testing.T) {
	st := NewMockStore()
	l := NewLedger(st, nil)

	ln := newActiveLoan(t, l, 1200, 12, 10)

	if len(ln.Installments) != 12 {
		t.Fatalf("Expected 12 installments, got %d", len(ln.Installments))
	}
	if ln.Status != loan.StatusActive {
		t.Errorf("Expected active status, got %s", ln.Status)
	}
	if len(ln.Transactions) != 1 || ln.Transactions[0].Type != loan.TransactionTypeDisbursement {
		t.Fatalf("Expected a single disbursement transaction, got %d", len(ln.Transactions))
	}
	if ln.Transactions[0].IsNew() {
		t.Error("Expected disbursement transaction to have an ID assigned on save")
	}
}

func TestSubmitRepayment(t *testing.T) {
	st := NewMockStore()
	l := NewLedger(st, nil)
	ln := newActiveLoan(t, l, 200, 2, 5)

	tx, err := l.SubmitTransaction(ln.ID, loan.TransactionTypeRepayment, disbursementDate.AddDate(0, 1, 0), decimal.NewFromFloat(105))
	if err != nil {
		t.Fatalf("Failed to submit repayment: %v", err)
	}

	// Interest-first: 5 interest then 100 principal on installment 1.
	if !tx.InterestPortion.Equal(decimal.NewFromFloat(5)) {
		t.Errorf("Expected interest portion 5, got %s", tx.InterestPortion)
	}
	if !tx.PrincipalPortion.Equal(decimal.NewFromFloat(100)) {
		t.Errorf("Expected principal portion 100, got %s", tx.PrincipalPortion)
	}
	if !ln.Installments[0].IsObligationsMet(usd) {
		t.Error("Expected first installment to be fully settled")
	}
	if ln.Status != loan.StatusActive {
		t.Errorf("Expected loan to stay active, got %s", ln.Status)
	}
}

func TestOverpaymentClosesLoanAsOverpaid(t *testing.T) {
	st := NewMockStore()
	l := NewLedger(st, nil)
	ln := newActiveLoan(t, l, 100, 1, 0)

	tx, err := l.SubmitTransaction(ln.ID, loan.TransactionTypeRepayment, disbursementDate.AddDate(0, 1, 0), decimal.NewFromFloat(130))
	if err != nil {
		t.Fatalf("Failed to submit repayment: %v", err)
	}

	if !tx.OverpaymentPortion.Equal(decimal.NewFromFloat(30)) {
		t.Errorf("Expected overpayment portion 30, got %s", tx.OverpaymentPortion)
	}
	if ln.Status != loan.StatusOverpaid {
		t.Errorf("Expected overpaid status, got %s", ln.Status)
	}
	if !ln.OverpaidBalance.Equal(decimal.NewFromFloat(30)) {
		t.Errorf("Expected overpaid balance 30, got %s", ln.OverpaidBalance)
	}
}

func TestSubmitTransactionRequiresDisbursement(t *testing.T) {
	l := NewLedger(NewMockStore(), nil)
	ln, err := l.CreateLoan("cust123", usd, decimal.NewFromFloat(100), 1, "")
	if err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	_, err = l.SubmitTransaction(ln.ID, loan.TransactionTypeRepayment, time.Now(), decimal.NewFromFloat(50))
	if err != loan.ErrNotDisbursed {
		t.Errorf("Expected ErrNotDisbursed, got %v", err)
	}
}

func TestAdjustTransactionReversesAndReplaces(t *testing.T) {
	st := NewMockStore()
	l := NewLedger(st, nil)
	ln := newActiveLoan(t, l, 200, 2, 0)

	tx, err := l.SubmitTransaction(ln.ID, loan.TransactionTypeRepayment, disbursementDate.AddDate(0, 1, 0), decimal.NewFromFloat(50))
	if err != nil {
		t.Fatalf("Failed to submit repayment: %v", err)
	}

	changed, err := l.AdjustTransaction(ln.ID, tx.ID, decimal.NewFromFloat(80), nil)
	if err != nil {
		t.Fatalf("Failed to adjust transaction: %v", err)
	}

	if changed.IsEmpty() {
		t.Fatal("Expected the adjustment to produce a replacement transaction")
	}
	if !tx.Reversed {
		t.Error("Expected the original transaction to be reversed")
	}
	replacement := changed.NewTransactionMappings[tx.ID]
	if replacement == nil {
		t.Fatal("Expected replacement keyed by the original transaction ID")
	}
	if replacement.IsNew() {
		t.Error("Expected replacement to be persisted with its own ID")
	}
	if !replacement.Amount.Equal(decimal.NewFromFloat(80)) {
		t.Errorf("Expected replacement amount 80, got %s", replacement.Amount)
	}
	if !ln.Installments[0].PrincipalPaid.Equal(decimal.NewFromFloat(80)) {
		t.Errorf("Expected 80 principal paid after adjustment, got %s", ln.Installments[0].PrincipalPaid)
	}
}

func TestUndoTransaction(t *testing.T) {
	st := NewMockStore()
	l := NewLedger(st, nil)
	ln := newActiveLoan(t, l, 100, 1, 0)

	tx, err := l.SubmitTransaction(ln.ID, loan.TransactionTypeRepayment, disbursementDate.AddDate(0, 1, 0), decimal.NewFromFloat(100))
	if err != nil {
		t.Fatalf("Failed to submit repayment: %v", err)
	}
	if ln.Status != loan.StatusClosed {
		t.Fatalf("Expected loan to close after full repayment, got %s", ln.Status)
	}

	ln, err = l.UndoTransaction(ln.ID, tx.ID)
	if err != nil {
		t.Fatalf("Failed to undo transaction: %v", err)
	}

	if ln.Status != loan.StatusActive {
		t.Errorf("Expected loan to reopen, got %s", ln.Status)
	}
	if !ln.Installments[0].PrincipalPaid.IsZero() {
		t.Errorf("Expected principal paid to reset, got %s", ln.Installments[0].PrincipalPaid)
	}

	if _, err := l.UndoTransaction(ln.ID, tx.ID); err != ErrTransactionNotFound {
		t.Errorf("Expected ErrTransactionNotFound for an already reversed transaction, got %v", err)
	}
}

func TestWriteOffLoan(t *testing.T) {
	st := NewMockStore()
	l := NewLedger(st, nil)
	ln := newActiveLoan(t, l, 200, 2, 10)

	if _, err := l.SubmitTransaction(ln.ID, loan.TransactionTypeRepayment, disbursementDate.AddDate(0, 1, 0), decimal.NewFromFloat(110)); err != nil {
		t.Fatalf("Failed to submit repayment: %v", err)
	}

	tx, err := l.WriteOffLoan(ln.ID, disbursementDate.AddDate(0, 3, 0))
	if err != nil {
		t.Fatalf("Failed to write off loan: %v", err)
	}

	if !tx.Amount.Equal(decimal.NewFromFloat(110)) {
		t.Errorf("Expected write-off amount 110, got %s", tx.Amount)
	}
	ln, _ = l.GetLoan(ln.ID)
	if ln.Status != loan.StatusWrittenOff {
		t.Errorf("Expected written-off status, got %s", ln.Status)
	}
	if !ln.TotalOutstanding().IsZero() {
		t.Errorf("Expected zero outstanding after write-off, got %s", ln.TotalOutstanding())
	}
}

func TestPreviewScheduleDoesNotMutate(t *testing.T) {
	st := NewMockStore()
	l := NewLedger(st, nil)
	ln := newActiveLoan(t, l, 100, 1, 0)

	candidate := loan.NewTransaction(loan.TransactionTypeRepayment, disbursementDate.AddDate(0, 1, 0), decimal.NewFromFloat(130))
	remainder, err := l.PreviewSchedule(ln.ID, []*loan.LoanTransaction{candidate})
	if err != nil {
		t.Fatalf("Failed to preview schedule: %v", err)
	}

	if remainder.String() != "30.00 USD" {
		t.Errorf("Expected remainder 30.00 USD, got %s", remainder)
	}
	if !ln.Installments[0].PrincipalPaid.IsZero() {
		t.Error("Expected preview to leave the live schedule untouched")
	}
	if len(ln.Transactions) != 1 {
		t.Errorf("Expected preview to leave the transaction history untouched, got %d entries", len(ln.Transactions))
	}
}

func TestAddChargeReprocessesSchedule(t *testing.T) {
	st := NewMockStore()
	l := NewLedger(st, nil)
	ln := newActiveLoan(t, l, 100, 1, 0)

	due := disbursementDate.AddDate(0, 0, 15)
	ln, err := l.AddCharge(ln.ID, &loan.LoanCharge{Name: "service fee", Amount: decimal.NewFromFloat(12), DueDate: &due})
	if err != nil {
		t.Fatalf("Failed to add charge: %v", err)
	}

	if !ln.Installments[0].FeeCharges.Equal(decimal.NewFromFloat(12)) {
		t.Errorf("Expected 12 of fees on installment 1, got %s", ln.Installments[0].FeeCharges)
	}
	if ln.TotalOutstanding().String() != "112.00 USD" {
		t.Errorf("Expected outstanding 112.00 USD, got %s", ln.TotalOutstanding())
	}
}

func TestPostInterest(t *testing.T) {
	st := NewMockStore()
	l := NewLedger(st, nil)
	ln := newActiveLoan(t, l, 200, 2, 10)

	asOf := disbursementDate.AddDate(0, 1, 0)
	result, err := l.PostInterest(context.Background(), asOf, DefaultPostingConfig())
	if err != nil {
		t.Fatalf("Failed to post interest: %v", err)
	}

	if result.Posted != 1 || result.Skipped != 0 || len(result.Failed) != 0 {
		t.Fatalf("Expected 1 posted, got %+v", result)
	}

	ln, _ = l.GetLoan(ln.ID)
	var accrual *loan.LoanTransaction
	for _, tx := range ln.Transactions {
		if tx.IsAccrual() {
			accrual = tx
		}
	}
	if accrual == nil {
		t.Fatal("Expected an accrual transaction on the loan")
	}
	if !accrual.InterestPortion.Equal(decimal.NewFromFloat(10)) {
		t.Errorf("Expected 10 of accrued interest, got %s", accrual.InterestPortion)
	}

	// A second run as of the same date has nothing left to post.
	result, err = l.PostInterest(context.Background(), asOf, DefaultPostingConfig())
	if err != nil {
		t.Fatalf("Failed to post interest: %v", err)
	}
	if result.Posted != 0 || result.Skipped != 1 {
		t.Errorf("Expected the second run to skip the loan, got %+v", result)
	}
}

func TestPostInterestRetriesOnConflict(t *testing.T) {
	mock := NewMockStore()
	st := &conflictStore{MockStore: mock}
	l := NewLedger(st, nil)
	ln := newActiveLoan(t, l, 100, 1, 10)
	st.failures = 2

	cfg := PostingConfig{Workers: 2, MaxRetries: 3, InitialBackoff: time.Millisecond}
	result, err := l.PostInterest(context.Background(), disbursementDate.AddDate(0, 1, 0), cfg)
	if err != nil {
		t.Fatalf("Failed to post interest: %v", err)
	}
	if result.Posted != 1 {
		t.Fatalf("Expected posting to succeed after retries, got %+v", result)
	}

	// With retries exhausted the loan lands in Failed without erroring the
	// run. The prior accrual must be undone first so there is interest due.
	ln, _ = l.GetLoan(ln.ID)
	for _, tx := range ln.Transactions {
		if tx.IsAccrual() {
			tx.Reversed = true
		}
	}
	st.failures = 10
	result, err = l.PostInterest(context.Background(), disbursementDate.AddDate(0, 1, 0), cfg)
	if err != nil {
		t.Fatalf("Failed to run posting batch: %v", err)
	}
	if len(result.Failed) != 1 || result.Failed[0] != ln.ID {
		t.Errorf("Expected the loan to be reported failed, got %+v", result)
	}
}
