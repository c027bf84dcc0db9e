// Package loan holds the domain model for loan servicing: the loan
// aggregate, its repayment schedule, charges, transactions and the records
// tying allocations together.
package loan

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/isaccanedo/fineract-sub004/pkg/money"
)

// LoanStatus tracks where a loan is in its lifecycle.
type LoanStatus string

const (
	StatusApproved   LoanStatus = "approved"
	StatusActive     LoanStatus = "active"
	StatusClosed     LoanStatus = "closed"
	StatusOverpaid   LoanStatus = "overpaid"
	StatusWrittenOff LoanStatus = "written_off"
)

// ErrNotDisbursed is returned when a lifecycle operation requires an active
// schedule.
var ErrNotDisbursed = errors.New("loan has not been disbursed")

// Loan is the aggregate root: schedule, charges and the full transaction
// history, all in one currency.
type Loan struct {
	ID                   uuid.UUID       `json:"id"`
	CustomerKey          string          `json:"customer_key"`
	Currency             money.Currency  `json:"currency"`
	Principal            decimal.Decimal `json:"principal"`
	NumberOfInstallments int             `json:"number_of_installments"`
	StrategyCode         string          `json:"strategy_code"`
	Status               LoanStatus      `json:"status"`
	DisbursementDate     *time.Time      `json:"disbursement_date,omitempty"`
	OverpaidBalance      decimal.Decimal `json:"overpaid_balance"`
	Version              int64           `json:"version"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`

	Installments []*RepaymentInstallment `json:"installments,omitempty"`
	Charges      []*LoanCharge           `json:"charges,omitempty"`
	Transactions []*LoanTransaction      `json:"transactions,omitempty"`
}

// Disburse activates the loan on the given date and generates an
// equal-principal monthly schedule. interestPerInstallment is a flat amount
// per period; rate formulas are a product concern handled upstream.
func (l *Loan) Disburse(date time.Time, interestPerInstallment decimal.Decimal) error {
	if l.Status != StatusApproved {
		return errors.New("loan is not in an approvable state for disbursement")
	}
	if l.NumberOfInstallments <= 0 {
		return errors.New("loan has no installments configured")
	}

	n := int64(l.NumberOfInstallments)
	principal := money.New(l.Currency, l.Principal)
	share := money.New(l.Currency, l.Principal.Div(decimal.NewFromInt(n)))

	l.Installments = nil
	allocated := money.Zero(l.Currency)
	from := date
	for k := 1; k <= l.NumberOfInstallments; k++ {
		due := date.AddDate(0, k, 0)
		p := share
		if k == l.NumberOfInstallments {
			// Remainder from rounding lands on the last installment.
			p = principal.Sub(allocated)
		}
		allocated = allocated.Add(p)
		l.Installments = append(l.Installments, NewInstallment(k, from, due, p.Amount(), interestPerInstallment))
		from = due
	}

	d := date
	l.DisbursementDate = &d
	l.Status = StatusActive

	disbursement := NewTransaction(TransactionTypeDisbursement, date, l.Principal)
	l.Transactions = append(l.Transactions, disbursement)
	return nil
}

// AddTransaction appends a transaction to the history.
func (l *Loan) AddTransaction(tx *LoanTransaction) {
	l.Transactions = append(l.Transactions, tx)
}

// FindTransaction returns the persisted transaction with the given ID, or
// nil.
func (l *Loan) FindTransaction(id int64) *LoanTransaction {
	for _, tx := range l.Transactions {
		if tx.ID == id {
			return tx
		}
	}
	return nil
}

// RepaymentStream returns the non-reversed post-disbursement transactions
// that feed the processor, in temporal order. Disbursements and accruals are
// not allocated against the schedule.
func (l *Loan) RepaymentStream() []*LoanTransaction {
	var stream []*LoanTransaction
	for _, tx := range l.Transactions {
		if tx.Reversed || tx.IsDisbursement() || tx.IsAccrual() {
			continue
		}
		stream = append(stream, tx)
	}
	sort.SliceStable(stream, func(a, b int) bool {
		return DateIsBefore(stream[a].Date, stream[b].Date)
	})
	return stream
}

// TotalOutstanding sums the outstanding amount over the whole schedule.
func (l *Loan) TotalOutstanding() money.Money {
	total := money.Zero(l.Currency)
	for _, installment := range l.Installments {
		total = total.Add(installment.TotalOutstanding(l.Currency))
	}
	for _, charge := range l.Charges {
		if charge.DueAtDisbursement {
			continue
		}
		total = total.Add(charge.AmountOutstanding(l.Currency))
	}
	return total
}

// ComputeOverpaidBalance derives the running overpaid balance: overpayment
// recorded on non-reversed transactions, less the part charge-backs have
// drawn back down.
func (l *Loan) ComputeOverpaidBalance() money.Money {
	balance := money.Zero(l.Currency)
	for _, tx := range l.Transactions {
		if tx.Reversed {
			continue
		}
		if tx.IsChargeback() {
			balance = balance.SubAmount(tx.OverpaymentPortion)
			continue
		}
		balance = balance.AddAmount(tx.OverpaymentPortion)
	}
	return balance.FlooredAtZero()
}

// RefreshStatus recomputes status and overpaid balance after processing.
func (l *Loan) RefreshStatus() {
	if l.Status == StatusWrittenOff || l.Status == StatusApproved {
		return
	}
	l.OverpaidBalance = l.ComputeOverpaidBalance().Amount()
	switch {
	case l.OverpaidBalance.GreaterThan(decimal.Zero):
		l.Status = StatusOverpaid
	case l.TotalOutstanding().IsZero():
		l.Status = StatusClosed
	default:
		l.Status = StatusActive
	}
}
