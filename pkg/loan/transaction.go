package loan

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/isaccanedo/fineract-sub004/pkg/money"
)

// TransactionType classifies a loan transaction.
type TransactionType string

const (
	TransactionTypeDisbursement       TransactionType = "disbursement"
	TransactionTypeRepayment          TransactionType = "repayment"
	TransactionTypeWaiveInterest      TransactionType = "waive_interest"
	TransactionTypeWriteOff           TransactionType = "write_off"
	TransactionTypeRecoveryRepayment  TransactionType = "recovery_repayment"
	TransactionTypeChargePayment      TransactionType = "charge_payment"
	TransactionTypeRefundForActiveLoan TransactionType = "refund_for_active_loan"
	TransactionTypeChargeback         TransactionType = "chargeback"
	TransactionTypeAccrual            TransactionType = "accrual"
	TransactionTypeInterestPosting    TransactionType = "interest_posting"
)

// LoanTransaction is one financial event on a loan. A transaction with
// ID == 0 has not been persisted yet. Once processed it carries a breakdown
// of its amount into component portions, a mapping record per installment
// touched, and a ChargePaidBy record per charge touched.
type LoanTransaction struct {
	ID          int64           `json:"id"`
	ExternalRef uuid.UUID       `json:"external_ref"`
	Type        TransactionType `json:"type"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`

	PrincipalPortion      decimal.Decimal `json:"principal_portion"`
	InterestPortion       decimal.Decimal `json:"interest_portion"`
	FeeChargesPortion     decimal.Decimal `json:"fee_charges_portion"`
	PenaltyChargesPortion decimal.Decimal `json:"penalty_charges_portion"`
	OverpaymentPortion    decimal.Decimal `json:"overpayment_portion"`

	Reversed bool `json:"reversed"`

	Mappings    []*ScheduleMapping `json:"mappings,omitempty"`
	ChargesPaid []*ChargePaidBy    `json:"charges_paid,omitempty"`
}

// NewTransaction creates an unpersisted transaction with a fresh external
// reference.
func NewTransaction(txType TransactionType, date time.Time, amount decimal.Decimal) *LoanTransaction {
	return &LoanTransaction{
		ExternalRef: uuid.New(),
		Type:        txType,
		Date:        date,
		Amount:      amount,
	}
}

// IsNew reports whether the transaction has never been persisted.
func (t *LoanTransaction) IsNew() bool { return t.ID == 0 }

func (t *LoanTransaction) IsRepayment() bool          { return t.Type == TransactionTypeRepayment }
func (t *LoanTransaction) IsInterestWaiver() bool     { return t.Type == TransactionTypeWaiveInterest }
func (t *LoanTransaction) IsRecoveryRepayment() bool  { return t.Type == TransactionTypeRecoveryRepayment }
func (t *LoanTransaction) IsChargePayment() bool      { return t.Type == TransactionTypeChargePayment }
func (t *LoanTransaction) IsWriteOff() bool           { return t.Type == TransactionTypeWriteOff }
func (t *LoanTransaction) IsRefundForActiveLoan() bool {
	return t.Type == TransactionTypeRefundForActiveLoan
}
func (t *LoanTransaction) IsChargeback() bool    { return t.Type == TransactionTypeChargeback }
func (t *LoanTransaction) IsAccrual() bool       { return t.Type == TransactionTypeAccrual }
func (t *LoanTransaction) IsDisbursement() bool  { return t.Type == TransactionTypeDisbursement }

// IsAllocatable reports whether the transaction's amount is spread across
// installments by the forward allocation walk.
func (t *LoanTransaction) IsAllocatable() bool {
	return t.IsRepayment() || t.IsInterestWaiver() || t.IsRecoveryRepayment()
}

// MonetaryAmount returns the transaction total as Money.
func (t *LoanTransaction) MonetaryAmount(currency money.Currency) money.Money {
	return money.New(currency, t.Amount)
}

// ResetDerivedComponents clears portions, mappings and charge links ahead of
// (re)allocation.
func (t *LoanTransaction) ResetDerivedComponents() {
	t.PrincipalPortion = decimal.Zero
	t.InterestPortion = decimal.Zero
	t.FeeChargesPortion = decimal.Zero
	t.PenaltyChargesPortion = decimal.Zero
	t.OverpaymentPortion = decimal.Zero
	t.Mappings = nil
	t.ChargesPaid = nil
}

// UpdateComponents accumulates allocated amounts into the transaction's
// component portions.
func (t *LoanTransaction) UpdateComponents(principal, interest, fees, penalties money.Money) {
	t.PrincipalPortion = t.PrincipalPortion.Add(principal.Amount())
	t.InterestPortion = t.InterestPortion.Add(interest.Amount())
	t.FeeChargesPortion = t.FeeChargesPortion.Add(fees.Amount())
	t.PenaltyChargesPortion = t.PenaltyChargesPortion.Add(penalties.Amount())
}

// UpdateComponentsAndTotal overwrites the component portions and recomputes
// the transaction total from them (write-off bookkeeping).
func (t *LoanTransaction) UpdateComponentsAndTotal(principal, interest, fees, penalties money.Money) {
	t.PrincipalPortion = principal.Amount()
	t.InterestPortion = interest.Amount()
	t.FeeChargesPortion = fees.Amount()
	t.PenaltyChargesPortion = penalties.Amount()
	t.Amount = principal.Add(interest).Add(fees).Add(penalties).Amount()
}

// SetOverpaymentPortion records the part of the amount that exceeded all
// outstanding obligations.
func (t *LoanTransaction) SetOverpaymentPortion(overpayment money.Money) {
	t.OverpaymentPortion = overpayment.Amount()
}

// Reverse marks the transaction reversed and clears its external reference
// so the replacement can take it over.
func (t *LoanTransaction) Reverse() {
	t.Reversed = true
	t.ExternalRef = uuid.Nil
}

// ShadowCopy builds an unpersisted copy carrying only the input fields
// (type, date, amount, external reference). Reprocessing allocates the copy
// from scratch and compares it against the original.
func (t *LoanTransaction) ShadowCopy() *LoanTransaction {
	return &LoanTransaction{
		ExternalRef: t.ExternalRef,
		Type:        t.Type,
		Date:        t.Date,
		Amount:      t.Amount,
	}
}

// EquivalentComponents reports whether two processed transactions carry the
// same total and the same component breakdown, compared at currency
// precision.
func (t *LoanTransaction) EquivalentComponents(currency money.Currency, other *LoanTransaction) bool {
	eq := func(a, b decimal.Decimal) bool {
		return money.New(currency, a).IsEqual(money.New(currency, b))
	}
	return eq(t.Amount, other.Amount) &&
		eq(t.PrincipalPortion, other.PrincipalPortion) &&
		eq(t.InterestPortion, other.InterestPortion) &&
		eq(t.FeeChargesPortion, other.FeeChargesPortion) &&
		eq(t.PenaltyChargesPortion, other.PenaltyChargesPortion) &&
		eq(t.OverpaymentPortion, other.OverpaymentPortion)
}

// AdoptAllocation copies the freshly computed allocation (mappings and charge
// links) from a shadow copy whose amounts matched the original's.
func (t *LoanTransaction) AdoptAllocation(shadow *LoanTransaction) {
	t.Mappings = shadow.Mappings
	t.ChargesPaid = shadow.ChargesPaid
}

// MappingFor returns the mapping record for the given installment, creating
// one when the installment is touched for the first time.
func (t *LoanTransaction) MappingFor(installment *RepaymentInstallment) *ScheduleMapping {
	for _, m := range t.Mappings {
		if m.Installment == installment {
			return m
		}
	}
	m := &ScheduleMapping{Installment: installment}
	t.Mappings = append(t.Mappings, m)
	return m
}

// PayCharge records that part of this transaction settled a charge.
func (t *LoanTransaction) PayCharge(charge *LoanCharge, amount money.Money, installmentNumber int) {
	t.ChargesPaid = append(t.ChargesPaid, &ChargePaidBy{
		Charge:            charge,
		Amount:            amount.Amount(),
		InstallmentNumber: installmentNumber,
	})
}
