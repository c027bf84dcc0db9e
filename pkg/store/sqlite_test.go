package store

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/isaccanedo/fineract-sub004/pkg/loan"
	"github.com/isaccanedo/fineract-sub004/pkg/money"
)

var usd = money.Currency{Code: "USD", Digits: 2}

func newTestStore(t *testing.T, dbFile string) *SQLiteStore {
	t.Helper()
	os.Remove(dbFile)
	t.Cleanup(func() { os.Remove(dbFile) })

	s, err := NewSQLiteStore(dbFile)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestLoan() *loan.Loan {
	return &loan.Loan{
		ID:                   uuid.New(),
		CustomerKey:          "cust_test",
		Currency:             usd,
		Principal:            decimal.NewFromFloat(2000.0),
		NumberOfInstallments: 2,
		StrategyCode:         "interest-principal-penalty-fee",
		Status:               loan.StatusApproved,
		OverpaidBalance:      decimal.Zero,
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
	}
}

func TestSQLiteStore_CreateAndGetLoan(t *testing.T) {
	s := newTestStore(t, "test_store_create.db")

	l := newTestLoan()
	if err := s.CreateLoan(l); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	fetched, err := s.GetLoan(l.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}

	if fetched.CustomerKey != l.CustomerKey {
		t.Errorf("Expected CustomerKey %s, got %s", l.CustomerKey, fetched.CustomerKey)
	}
	if !fetched.Principal.Equal(l.Principal) {
		t.Errorf("Expected Principal %s, got %s", l.Principal, fetched.Principal)
	}
	if fetched.Currency != usd {
		t.Errorf("Expected currency %v, got %v", usd, fetched.Currency)
	}
	if fetched.Status != loan.StatusApproved {
		t.Errorf("Expected status approved, got %s", fetched.Status)
	}
	if fetched.DisbursementDate != nil {
		t.Error("Expected no disbursement date on an approved loan")
	}
}

func TestSQLiteStore_GetLoanNotFound(t *testing.T) {
	s := newTestStore(t, "test_store_missing.db")

	if _, err := s.GetLoan(uuid.New()); err != ErrLoanNotFound {
		t.Errorf("Expected ErrLoanNotFound, got %v", err)
	}
}

func TestSQLiteStore_SaveLoanRoundTrip(t *testing.T) {
	s := newTestStore(t, "test_store_roundtrip.db")

	l := newTestLoan()
	if err := s.CreateLoan(l); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	disbursed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := l.Disburse(disbursed, decimal.NewFromFloat(25)); err != nil {
		t.Fatalf("Failed to disburse: %v", err)
	}

	feeDue := disbursed.AddDate(0, 0, 10)
	charge := &loan.LoanCharge{
		Name:    "processing fee",
		Amount:  decimal.NewFromFloat(40),
		DueDate: &feeDue,
		InstallmentCharges: []*loan.LoanInstallmentCharge{
			{InstallmentNumber: 1, Amount: decimal.NewFromFloat(40), AmountPaid: decimal.NewFromFloat(15)},
		},
	}
	l.Charges = append(l.Charges, charge)

	repayment := loan.NewTransaction(loan.TransactionTypeRepayment, disbursed.AddDate(0, 1, 0), decimal.NewFromFloat(500))
	repayment.PrincipalPortion = decimal.NewFromFloat(460)
	repayment.InterestPortion = decimal.NewFromFloat(25)
	repayment.FeeChargesPortion = decimal.NewFromFloat(15)
	repayment.MappingFor(l.Installments[0]).AddComponents(
		money.NewFromFloat(usd, 460), money.NewFromFloat(usd, 25), money.NewFromFloat(usd, 15), money.Zero(usd))
	repayment.PayCharge(charge, money.NewFromFloat(usd, 15), 1)
	l.AddTransaction(repayment)

	if err := s.SaveLoan(l); err != nil {
		t.Fatalf("Failed to save loan: %v", err)
	}
	if repayment.IsNew() {
		t.Fatal("Expected SaveLoan to assign an ID to the new transaction")
	}
	if charge.ID == 0 {
		t.Fatal("Expected SaveLoan to assign an ID to the new charge")
	}

	fetched, err := s.GetLoan(l.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}

	if len(fetched.Installments) != 2 {
		t.Fatalf("Expected 2 installments, got %d", len(fetched.Installments))
	}
	if fetched.Installments[0].InstallmentNumber != 1 {
		t.Errorf("Expected installments ordered by number, got %d first", fetched.Installments[0].InstallmentNumber)
	}
	if !fetched.Installments[0].Principal.Equal(decimal.NewFromFloat(1000)) {
		t.Errorf("Expected installment principal 1000, got %s", fetched.Installments[0].Principal)
	}

	if len(fetched.Charges) != 1 {
		t.Fatalf("Expected 1 charge, got %d", len(fetched.Charges))
	}
	gotCharge := fetched.Charges[0]
	if gotCharge.Name != "processing fee" || gotCharge.DueDate == nil {
		t.Errorf("Charge did not round-trip: %+v", gotCharge)
	}
	if len(gotCharge.InstallmentCharges) != 1 || !gotCharge.InstallmentCharges[0].AmountPaid.Equal(decimal.NewFromFloat(15)) {
		t.Errorf("Installment charge did not round-trip: %+v", gotCharge.InstallmentCharges)
	}

	if len(fetched.Transactions) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(fetched.Transactions))
	}
	var gotRepayment *loan.LoanTransaction
	for _, tx := range fetched.Transactions {
		if tx.IsRepayment() {
			gotRepayment = tx
		}
	}
	if gotRepayment == nil {
		t.Fatal("Repayment transaction did not round-trip")
	}
	if gotRepayment.ID != repayment.ID {
		t.Errorf("Expected transaction to keep ID %d, got %d", repayment.ID, gotRepayment.ID)
	}
	if gotRepayment.ExternalRef != repayment.ExternalRef {
		t.Error("External reference did not round-trip")
	}
	if len(gotRepayment.Mappings) != 1 {
		t.Fatalf("Expected 1 mapping, got %d", len(gotRepayment.Mappings))
	}
	mapping := gotRepayment.Mappings[0]
	if mapping.Installment != fetched.Installments[0] {
		t.Error("Expected mapping to reference the loaded installment instance")
	}
	if !mapping.PrincipalPortion.Equal(decimal.NewFromFloat(460)) {
		t.Errorf("Expected mapped principal 460, got %s", mapping.PrincipalPortion)
	}
	if len(gotRepayment.ChargesPaid) != 1 {
		t.Fatalf("Expected 1 charge payment link, got %d", len(gotRepayment.ChargesPaid))
	}
	if gotRepayment.ChargesPaid[0].Charge != gotCharge {
		t.Error("Expected charge payment link to reference the loaded charge instance")
	}
}

func TestSQLiteStore_SaveLoanConflict(t *testing.T) {
	s := newTestStore(t, "test_store_conflict.db")

	l := newTestLoan()
	if err := s.CreateLoan(l); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	first, err := s.GetLoan(l.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}
	second, err := s.GetLoan(l.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}

	if err := s.SaveLoan(first); err != nil {
		t.Fatalf("Failed to save first copy: %v", err)
	}
	if err := s.SaveLoan(second); err != ErrConflict {
		t.Errorf("Expected ErrConflict for the stale copy, got %v", err)
	}

	// The winner carries the bumped version and can keep saving.
	if err := s.SaveLoan(first); err != nil {
		t.Errorf("Expected the fresh copy to save again, got %v", err)
	}
}

func TestSQLiteStore_SaveLoanNotFound(t *testing.T) {
	s := newTestStore(t, "test_store_save_missing.db")

	if err := s.SaveLoan(newTestLoan()); err != ErrLoanNotFound {
		t.Errorf("Expected ErrLoanNotFound, got %v", err)
	}
}

func TestSQLiteStore_GetActiveLoans(t *testing.T) {
	s := newTestStore(t, "test_store_active.db")

	active := newTestLoan()
	active.Status = loan.StatusActive
	closed := newTestLoan()
	closed.Status = loan.StatusClosed
	if err := s.CreateLoan(active); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}
	if err := s.CreateLoan(closed); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	loans, err := s.GetActiveLoans()
	if err != nil {
		t.Fatalf("Failed to get active loans: %v", err)
	}
	if len(loans) != 1 || loans[0].ID != active.ID {
		t.Errorf("Expected only the active loan, got %d loans", len(loans))
	}

	all, err := s.GetAllLoans()
	if err != nil {
		t.Fatalf("Failed to get all loans: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 loans, got %d", len(all))
	}
}

func TestSQLiteStore_DeleteLoan(t *testing.T) {
	s := newTestStore(t, "test_store_delete.db")

	l := newTestLoan()
	if err := s.CreateLoan(l); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}
	if err := l.Disburse(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), decimal.Zero); err != nil {
		t.Fatalf("Failed to disburse: %v", err)
	}
	if err := s.SaveLoan(l); err != nil {
		t.Fatalf("Failed to save loan: %v", err)
	}

	if err := s.DeleteLoan(l.ID); err != nil {
		t.Fatalf("Failed to delete loan: %v", err)
	}
	if _, err := s.GetLoan(l.ID); err != ErrLoanNotFound {
		t.Errorf("Expected ErrLoanNotFound after delete, got %v", err)
	}
}
