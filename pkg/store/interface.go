package store

import (
	"errors"

	"github.com/google/uuid"

	"github.com/isaccanedo/fineract-sub004/pkg/loan"
)

// ErrLoanNotFound is returned when the requested loan does not exist.
var ErrLoanNotFound = errors.New("loan not found")

// ErrConflict is returned when an optimistic-lock check fails on save; the
// caller owns retrying.
var ErrConflict = errors.New("loan was modified concurrently")

// Storage defines the persistence boundary for loans and their full
// servicing state (schedule, charges, transactions, allocation mappings).
type Storage interface {
	CreateLoan(l *loan.Loan) error

	// SaveLoan rewrites the loan's complete state in a single database
	// transaction, assigning identifiers to not-yet-persisted loan
	// transactions. Returns ErrConflict when the stored version moved on.
	SaveLoan(l *loan.Loan) error

	GetLoan(id uuid.UUID) (*loan.Loan, error)
	GetAllLoans() ([]*loan.Loan, error)
	GetActiveLoans() ([]*loan.Loan, error)
	DeleteLoan(id uuid.UUID) error

	Close() error
}
