package loan

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/isaccanedo/fineract-sub004/pkg/money"
)

// RepaymentInstallment is one period of a loan's repayment schedule. Due
// amounts are fixed at schedule generation; paid, waived and written-off
// amounts are derived fields recomputed from scratch on every reprocessing
// pass. Fee and penalty due amounts are also derived: they are reassigned
// from the loan's charges before each pass.
type RepaymentInstallment struct {
	InstallmentNumber int       `json:"installment_number"`
	FromDate          time.Time `json:"from_date"`
	DueDate           time.Time `json:"due_date"`

	Principal      decimal.Decimal `json:"principal"`
	Interest       decimal.Decimal `json:"interest"`
	FeeCharges     decimal.Decimal `json:"fee_charges"`
	PenaltyCharges decimal.Decimal `json:"penalty_charges"`

	PrincipalPaid      decimal.Decimal `json:"principal_paid"`
	InterestPaid       decimal.Decimal `json:"interest_paid"`
	FeeChargesPaid     decimal.Decimal `json:"fee_charges_paid"`
	PenaltyChargesPaid decimal.Decimal `json:"penalty_charges_paid"`

	InterestWaived       decimal.Decimal `json:"interest_waived"`
	FeeChargesWaived     decimal.Decimal `json:"fee_charges_waived"`
	PenaltyChargesWaived decimal.Decimal `json:"penalty_charges_waived"`

	PrincipalWrittenOff      decimal.Decimal `json:"principal_written_off"`
	InterestWrittenOff       decimal.Decimal `json:"interest_written_off"`
	FeeChargesWrittenOff     decimal.Decimal `json:"fee_charges_written_off"`
	PenaltyChargesWrittenOff decimal.Decimal `json:"penalty_charges_written_off"`

	// CreditedPrincipal is principal re-opened by charge-back transactions.
	// It is already included in Principal; this field only records how much
	// of the due principal came from credits.
	CreditedPrincipal decimal.Decimal `json:"credited_principal"`

	// Additional marks an installment appended by the processor beyond the
	// generated schedule (the charge-back N+1 case). Such installments may
	// break strict due-date ordering.
	Additional bool `json:"additional"`
}

// NewInstallment creates a schedule period with the given due amounts and
// zeroed derived fields.
func NewInstallment(number int, fromDate, dueDate time.Time, principal, interest decimal.Decimal) *RepaymentInstallment {
	return &RepaymentInstallment{
		InstallmentNumber: number,
		FromDate:          fromDate,
		DueDate:           dueDate,
		Principal:         principal,
		Interest:          interest,
	}
}

// PrincipalOutstanding returns due principal minus paid and written-off,
// floored at zero.
func (i *RepaymentInstallment) PrincipalOutstanding(currency money.Currency) money.Money {
	due := money.New(currency, i.Principal)
	return due.SubAmount(i.PrincipalPaid).SubAmount(i.PrincipalWrittenOff).FlooredAtZero()
}

// InterestOutstanding returns due interest minus paid, waived and
// written-off, floored at zero.
func (i *RepaymentInstallment) InterestOutstanding(currency money.Currency) money.Money {
	due := money.New(currency, i.Interest)
	return due.SubAmount(i.InterestPaid).SubAmount(i.InterestWaived).SubAmount(i.InterestWrittenOff).FlooredAtZero()
}

// FeeChargesOutstanding returns due fees minus paid, waived and written-off,
// floored at zero.
func (i *RepaymentInstallment) FeeChargesOutstanding(currency money.Currency) money.Money {
	due := money.New(currency, i.FeeCharges)
	return due.SubAmount(i.FeeChargesPaid).SubAmount(i.FeeChargesWaived).SubAmount(i.FeeChargesWrittenOff).FlooredAtZero()
}

// PenaltyChargesOutstanding returns due penalties minus paid, waived and
// written-off, floored at zero.
func (i *RepaymentInstallment) PenaltyChargesOutstanding(currency money.Currency) money.Money {
	due := money.New(currency, i.PenaltyCharges)
	return due.SubAmount(i.PenaltyChargesPaid).SubAmount(i.PenaltyChargesWaived).SubAmount(i.PenaltyChargesWrittenOff).FlooredAtZero()
}

// TotalOutstanding sums the outstanding amount of all four components.
func (i *RepaymentInstallment) TotalOutstanding(currency money.Currency) money.Money {
	return i.PrincipalOutstanding(currency).
		Add(i.InterestOutstanding(currency)).
		Add(i.FeeChargesOutstanding(currency)).
		Add(i.PenaltyChargesOutstanding(currency))
}

// IsObligationsMet reports whether every component is fully settled.
func (i *RepaymentInstallment) IsObligationsMet(currency money.Currency) bool {
	return i.TotalOutstanding(currency).IsZero()
}

// PayPrincipalComponent applies up to amount against outstanding principal
// and returns the portion actually consumed.
func (i *RepaymentInstallment) PayPrincipalComponent(currency money.Currency, amount money.Money) money.Money {
	portion := i.PrincipalOutstanding(currency).Min(amount)
	i.PrincipalPaid = i.PrincipalPaid.Add(portion.Amount())
	return portion
}

// PayInterestComponent applies up to amount against outstanding interest and
// returns the portion actually consumed.
func (i *RepaymentInstallment) PayInterestComponent(currency money.Currency, amount money.Money) money.Money {
	portion := i.InterestOutstanding(currency).Min(amount)
	i.InterestPaid = i.InterestPaid.Add(portion.Amount())
	return portion
}

// PayFeeChargesComponent applies up to amount against outstanding fees and
// returns the portion actually consumed.
func (i *RepaymentInstallment) PayFeeChargesComponent(currency money.Currency, amount money.Money) money.Money {
	portion := i.FeeChargesOutstanding(currency).Min(amount)
	i.FeeChargesPaid = i.FeeChargesPaid.Add(portion.Amount())
	return portion
}

// PayPenaltyChargesComponent applies up to amount against outstanding
// penalties and returns the portion actually consumed.
func (i *RepaymentInstallment) PayPenaltyChargesComponent(currency money.Currency, amount money.Money) money.Money {
	portion := i.PenaltyChargesOutstanding(currency).Min(amount)
	i.PenaltyChargesPaid = i.PenaltyChargesPaid.Add(portion.Amount())
	return portion
}

// WaiveInterestComponent waives up to amount of the outstanding interest and
// returns the portion actually waived.
func (i *RepaymentInstallment) WaiveInterestComponent(currency money.Currency, amount money.Money) money.Money {
	portion := i.InterestOutstanding(currency).Min(amount)
	i.InterestWaived = i.InterestWaived.Add(portion.Amount())
	return portion
}

// UnpayPrincipalComponent reverses up to amount of previously paid principal
// (refund processing) and returns the portion reversed.
func (i *RepaymentInstallment) UnpayPrincipalComponent(currency money.Currency, amount money.Money) money.Money {
	portion := money.New(currency, i.PrincipalPaid).Min(amount)
	i.PrincipalPaid = i.PrincipalPaid.Sub(portion.Amount())
	return portion
}

// UnpayInterestComponent reverses up to amount of previously paid interest
// and returns the portion reversed.
func (i *RepaymentInstallment) UnpayInterestComponent(currency money.Currency, amount money.Money) money.Money {
	portion := money.New(currency, i.InterestPaid).Min(amount)
	i.InterestPaid = i.InterestPaid.Sub(portion.Amount())
	return portion
}

// UnpayFeeChargesComponent reverses up to amount of previously paid fees and
// returns the portion reversed.
func (i *RepaymentInstallment) UnpayFeeChargesComponent(currency money.Currency, amount money.Money) money.Money {
	portion := money.New(currency, i.FeeChargesPaid).Min(amount)
	i.FeeChargesPaid = i.FeeChargesPaid.Sub(portion.Amount())
	return portion
}

// UnpayPenaltyChargesComponent reverses up to amount of previously paid
// penalties and returns the portion reversed.
func (i *RepaymentInstallment) UnpayPenaltyChargesComponent(currency money.Currency, amount money.Money) money.Money {
	portion := money.New(currency, i.PenaltyChargesPaid).Min(amount)
	i.PenaltyChargesPaid = i.PenaltyChargesPaid.Sub(portion.Amount())
	return portion
}

// WriteOffOutstanding writes off whatever remains outstanding on every
// component and returns the written-off amounts per component.
func (i *RepaymentInstallment) WriteOffOutstanding(currency money.Currency) (principal, interest, fees, penalties money.Money) {
	principal = i.PrincipalOutstanding(currency)
	interest = i.InterestOutstanding(currency)
	fees = i.FeeChargesOutstanding(currency)
	penalties = i.PenaltyChargesOutstanding(currency)

	i.PrincipalWrittenOff = i.PrincipalWrittenOff.Add(principal.Amount())
	i.InterestWrittenOff = i.InterestWrittenOff.Add(interest.Amount())
	i.FeeChargesWrittenOff = i.FeeChargesWrittenOff.Add(fees.Amount())
	i.PenaltyChargesWrittenOff = i.PenaltyChargesWrittenOff.Add(penalties.Amount())
	return principal, interest, fees, penalties
}

// AddToPrincipal re-opens principal on this installment (charge-back). The
// amount is added both to the due principal and to the credited total.
func (i *RepaymentInstallment) AddToPrincipal(amount money.Money) {
	i.Principal = i.Principal.Add(amount.Amount())
	i.CreditedPrincipal = i.CreditedPrincipal.Add(amount.Amount())
}

// ResetDerivedComponents zeroes every derived field ahead of a reprocessing
// pass. Principal previously re-opened by charge-backs is removed again; the
// charge-back transactions in the stream will re-apply it.
func (i *RepaymentInstallment) ResetDerivedComponents() {
	i.Principal = i.Principal.Sub(i.CreditedPrincipal)
	i.CreditedPrincipal = decimal.Zero

	i.PrincipalPaid = decimal.Zero
	i.InterestPaid = decimal.Zero
	i.FeeChargesPaid = decimal.Zero
	i.PenaltyChargesPaid = decimal.Zero

	i.InterestWaived = decimal.Zero
	i.FeeChargesWaived = decimal.Zero
	i.PenaltyChargesWaived = decimal.Zero

	i.PrincipalWrittenOff = decimal.Zero
	i.InterestWrittenOff = decimal.Zero
	i.FeeChargesWrittenOff = decimal.Zero
	i.PenaltyChargesWrittenOff = decimal.Zero
}

// TotalPaid sums all component payments on this installment.
func (i *RepaymentInstallment) TotalPaid(currency money.Currency) money.Money {
	return money.Zero(currency).
		AddAmount(i.PrincipalPaid).
		AddAmount(i.InterestPaid).
		AddAmount(i.FeeChargesPaid).
		AddAmount(i.PenaltyChargesPaid)
}

// TotalDue sums the due amount of all four components.
func (i *RepaymentInstallment) TotalDue(currency money.Currency) money.Money {
	return money.Zero(currency).
		AddAmount(i.Principal).
		AddAmount(i.Interest).
		AddAmount(i.FeeCharges).
		AddAmount(i.PenaltyCharges)
}
