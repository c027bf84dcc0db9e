package loan

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/isaccanedo/fineract-sub004/pkg/money"
)

// LoanCharge is a fee or penalty owed on the loan. A charge is either due on
// a specific date or spread per installment; per-installment charges carry a
// child record for every installment they touch.
type LoanCharge struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`

	AmountPaid   decimal.Decimal `json:"amount_paid"`
	AmountWaived decimal.Decimal `json:"amount_waived"`

	DueDate           *time.Time `json:"due_date,omitempty"`
	Penalty           bool       `json:"penalty"`
	DueAtDisbursement bool       `json:"due_at_disbursement"`
	PerInstallment    bool       `json:"per_installment"`

	InstallmentCharges []*LoanInstallmentCharge `json:"installment_charges,omitempty"`
}

// LoanInstallmentCharge is the per-installment slice of a per-installment
// charge.
type LoanInstallmentCharge struct {
	InstallmentNumber int             `json:"installment_number"`
	Amount            decimal.Decimal `json:"amount"`
	AmountPaid        decimal.Decimal `json:"amount_paid"`
	AmountWaived      decimal.Decimal `json:"amount_waived"`
}

// Outstanding returns the unpaid, unwaived remainder of the slice.
func (ic *LoanInstallmentCharge) Outstanding(currency money.Currency) money.Money {
	return money.New(currency, ic.Amount).
		SubAmount(ic.AmountPaid).
		SubAmount(ic.AmountWaived).
		FlooredAtZero()
}

// AmountOutstanding returns the charge's unpaid, unwaived remainder, floored
// at zero.
func (c *LoanCharge) AmountOutstanding(currency money.Currency) money.Money {
	return money.New(currency, c.Amount).
		SubAmount(c.AmountPaid).
		SubAmount(c.AmountWaived).
		FlooredAtZero()
}

// IsFullyPaid reports whether nothing remains outstanding.
func (c *LoanCharge) IsFullyPaid(currency money.Currency) bool {
	return c.AmountOutstanding(currency).IsZero()
}

// ResetPaidAmount zeroes paid-amount tracking ahead of a reprocessing pass.
func (c *LoanCharge) ResetPaidAmount() {
	c.AmountPaid = decimal.Zero
	for _, ic := range c.InstallmentCharges {
		ic.AmountPaid = decimal.Zero
	}
}

// InstallmentChargeFor returns the per-installment slice for the given
// installment number, or nil.
func (c *LoanCharge) InstallmentChargeFor(installmentNumber int) *LoanInstallmentCharge {
	for _, ic := range c.InstallmentCharges {
		if ic.InstallmentNumber == installmentNumber {
			return ic
		}
	}
	return nil
}

// UpdatePaidAmountBy consumes up to amount against the charge's outstanding
// balance and returns the portion actually applied. For per-installment
// charges the matching slice is updated alongside the overall total.
func (c *LoanCharge) UpdatePaidAmountBy(currency money.Currency, amount money.Money, installmentNumber int) money.Money {
	portion := c.AmountOutstanding(currency).Min(amount)
	if c.PerInstallment {
		if ic := c.InstallmentChargeFor(installmentNumber); ic != nil {
			portion = ic.Outstanding(currency).Min(amount)
			ic.AmountPaid = ic.AmountPaid.Add(portion.Amount())
		}
	}
	c.AmountPaid = c.AmountPaid.Add(portion.Amount())
	return portion
}

// UndoPaidAmountBy reverses up to amount of previously recorded payment
// (refund processing) and returns the portion reversed.
func (c *LoanCharge) UndoPaidAmountBy(currency money.Currency, amount money.Money) money.Money {
	portion := money.New(currency, c.AmountPaid).Min(amount)
	c.AmountPaid = c.AmountPaid.Sub(portion.Amount())
	left := portion.Amount()
	for idx := len(c.InstallmentCharges) - 1; idx >= 0 && !left.IsZero(); idx-- {
		ic := c.InstallmentCharges[idx]
		undo := decimal.Min(ic.AmountPaid, left)
		ic.AmountPaid = ic.AmountPaid.Sub(undo)
		left = left.Sub(undo)
	}
	return portion
}

// IsDueInPeriod reports whether the charge's due date falls inside
// (from, to], or [from, to] when the period is the schedule's first.
func (c *LoanCharge) IsDueInPeriod(from, to time.Time, firstPeriod bool) bool {
	if c.DueDate == nil {
		return false
	}
	if firstPeriod && SameDate(*c.DueDate, from) {
		return true
	}
	return DateIsAfter(*c.DueDate, from) && !DateIsAfter(*c.DueDate, to)
}

// RelevantDueDate returns the date used to order charge allocation: the
// charge's own due date, or for a per-installment charge the due date of the
// earliest installment slice still outstanding.
func (c *LoanCharge) RelevantDueDate(currency money.Currency, installments []*RepaymentInstallment) *time.Time {
	if !c.PerInstallment {
		return c.DueDate
	}
	for _, installment := range installments {
		ic := c.InstallmentChargeFor(installment.InstallmentNumber)
		if ic != nil && ic.Outstanding(currency).IsGreaterThanZero() {
			due := installment.DueDate
			return &due
		}
	}
	return nil
}
