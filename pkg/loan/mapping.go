package loan

import (
	"github.com/shopspring/decimal"

	"github.com/isaccanedo/fineract-sub004/pkg/money"
)

// ScheduleMapping records how much of one transaction was applied to one
// installment, per component. It holds a structural reference to the
// installment instance so the record stays valid across schedule growth.
type ScheduleMapping struct {
	Installment *RepaymentInstallment `json:"installment"`

	PrincipalPortion      decimal.Decimal `json:"principal_portion"`
	InterestPortion       decimal.Decimal `json:"interest_portion"`
	FeeChargesPortion     decimal.Decimal `json:"fee_charges_portion"`
	PenaltyChargesPortion decimal.Decimal `json:"penalty_charges_portion"`
}

// AddComponents accumulates allocated amounts into the mapping.
func (m *ScheduleMapping) AddComponents(principal, interest, fees, penalties money.Money) {
	m.PrincipalPortion = m.PrincipalPortion.Add(principal.Amount())
	m.InterestPortion = m.InterestPortion.Add(interest.Amount())
	m.FeeChargesPortion = m.FeeChargesPortion.Add(fees.Amount())
	m.PenaltyChargesPortion = m.PenaltyChargesPortion.Add(penalties.Amount())
}

// TotalAmount sums the mapping's component portions.
func (m *ScheduleMapping) TotalAmount(currency money.Currency) money.Money {
	return money.Zero(currency).
		AddAmount(m.PrincipalPortion).
		AddAmount(m.InterestPortion).
		AddAmount(m.FeeChargesPortion).
		AddAmount(m.PenaltyChargesPortion)
}

// ChargePaidBy links a transaction to a charge it settled (fully or in
// part). InstallmentNumber is zero for charges not tied to an installment.
type ChargePaidBy struct {
	Charge            *LoanCharge     `json:"charge"`
	Amount            decimal.Decimal `json:"amount"`
	InstallmentNumber int             `json:"installment_number,omitempty"`
}

// ChangedTransactionDetail is the output of a reprocessing pass: for every
// persisted transaction whose recomputed allocation no longer matched, the
// original (now reversed) transaction ID mapped to its replacement.
type ChangedTransactionDetail struct {
	NewTransactionMappings map[int64]*LoanTransaction
}

// NewChangedTransactionDetail returns an empty change-set.
func NewChangedTransactionDetail() *ChangedTransactionDetail {
	return &ChangedTransactionDetail{NewTransactionMappings: make(map[int64]*LoanTransaction)}
}

// IsEmpty reports whether the pass reversed nothing.
func (c *ChangedTransactionDetail) IsEmpty() bool { return len(c.NewTransactionMappings) == 0 }
