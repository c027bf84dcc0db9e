package processor

import (
	"fmt"

	"github.com/isaccanedo/fineract-sub004/pkg/loan"
	"github.com/isaccanedo/fineract-sub004/pkg/money"
)

// component identifies one of the four installment components a transaction
// amount can be applied to.
type component int

const (
	componentPrincipal component = iota
	componentInterest
	componentFee
	componentPenalty
)

// Strategy codes selectable per loan product.
const (
	StrategyPrincipalInterestPenaltyFee = "principal-interest-penalty-fee"
	StrategyInterestPrincipalPenaltyFee = "interest-principal-penalty-fee"
	StrategyFeePenaltyInterestPrincipal = "fee-penalty-interest-principal"
)

// DefaultStrategy is used when a loan product does not pick one.
const DefaultStrategy = StrategyPrincipalInterestPenaltyFee

// allocationStrategy supplies the order-sensitive hooks. Everything else
// (the allocation walk, overpayment detection, charge distribution,
// write-off, charge-back) lives in the shared engine and must not vary per
// strategy.
type allocationStrategy interface {
	Code() string
	InterestFirst() bool

	HandleTransactionThatIsALateRepaymentOfInstallment(currency money.Currency, installment *loan.RepaymentInstallment, tx *loan.LoanTransaction, amount money.Money) money.Money
	HandleTransactionThatIsOnTimePaymentOfInstallment(currency money.Currency, installment *loan.RepaymentInstallment, tx *loan.LoanTransaction, amount money.Money) money.Money
	HandleTransactionThatIsPaymentInAdvanceOfInstallment(currency money.Currency, installment *loan.RepaymentInstallment, tx *loan.LoanTransaction, amount money.Money) money.Money
	HandleRefundTransactionPaymentOfInstallment(currency money.Currency, installment *loan.RepaymentInstallment, tx *loan.LoanTransaction, amount money.Money) money.Money
}

// orderedStrategy implements the hooks by walking a fixed component order.
// The three shipped strategies differ only in this order.
type orderedStrategy struct {
	code  string
	order [4]component
}

func newOrderedStrategy(code string, order [4]component) *orderedStrategy {
	return &orderedStrategy{code: code, order: order}
}

func (s *orderedStrategy) Code() string { return s.code }

// InterestFirst reports whether interest is consumed before principal.
func (s *orderedStrategy) InterestFirst() bool {
	for _, c := range s.order {
		if c == componentInterest {
			return true
		}
		if c == componentPrincipal {
			return false
		}
	}
	return false
}

func (s *orderedStrategy) HandleTransactionThatIsALateRepaymentOfInstallment(currency money.Currency, installment *loan.RepaymentInstallment, tx *loan.LoanTransaction, amount money.Money) money.Money {
	return s.payInOrder(currency, installment, tx, amount)
}

func (s *orderedStrategy) HandleTransactionThatIsOnTimePaymentOfInstallment(currency money.Currency, installment *loan.RepaymentInstallment, tx *loan.LoanTransaction, amount money.Money) money.Money {
	return s.payInOrder(currency, installment, tx, amount)
}

func (s *orderedStrategy) HandleTransactionThatIsPaymentInAdvanceOfInstallment(currency money.Currency, installment *loan.RepaymentInstallment, tx *loan.LoanTransaction, amount money.Money) money.Money {
	return s.payInOrder(currency, installment, tx, amount)
}

// payInOrder consumes as much of amount as the installment's outstanding
// components allow, in the strategy's order, and returns the remainder.
// Interest waivers only ever touch interest regardless of the order.
func (s *orderedStrategy) payInOrder(currency money.Currency, installment *loan.RepaymentInstallment, tx *loan.LoanTransaction, amount money.Money) money.Money {
	remaining := amount
	principal := money.Zero(currency)
	interest := money.Zero(currency)
	fees := money.Zero(currency)
	penalties := money.Zero(currency)

	if tx.IsInterestWaiver() {
		interest = installment.WaiveInterestComponent(currency, remaining)
		remaining = remaining.Sub(interest)
	} else {
		for _, comp := range s.order {
			if !remaining.IsGreaterThanZero() {
				break
			}
			var portion money.Money
			switch comp {
			case componentPrincipal:
				portion = installment.PayPrincipalComponent(currency, remaining)
				principal = principal.Add(portion)
			case componentInterest:
				portion = installment.PayInterestComponent(currency, remaining)
				interest = interest.Add(portion)
			case componentFee:
				portion = installment.PayFeeChargesComponent(currency, remaining)
				fees = fees.Add(portion)
			case componentPenalty:
				portion = installment.PayPenaltyChargesComponent(currency, remaining)
				penalties = penalties.Add(portion)
			}
			remaining = remaining.Sub(portion)
		}
	}

	allocated := principal.Add(interest).Add(fees).Add(penalties)
	if allocated.IsGreaterThanZero() {
		tx.UpdateComponents(principal, interest, fees, penalties)
		tx.MappingFor(installment).AddComponents(principal, interest, fees, penalties)
	}
	return remaining
}

// HandleRefundTransactionPaymentOfInstallment undoes previously paid
// components in the reverse of the strategy's payment order and returns the
// unconsumed refund remainder.
func (s *orderedStrategy) HandleRefundTransactionPaymentOfInstallment(currency money.Currency, installment *loan.RepaymentInstallment, tx *loan.LoanTransaction, amount money.Money) money.Money {
	remaining := amount
	principal := money.Zero(currency)
	interest := money.Zero(currency)
	fees := money.Zero(currency)
	penalties := money.Zero(currency)

	for idx := len(s.order) - 1; idx >= 0; idx-- {
		if !remaining.IsGreaterThanZero() {
			break
		}
		var portion money.Money
		switch s.order[idx] {
		case componentPrincipal:
			portion = installment.UnpayPrincipalComponent(currency, remaining)
			principal = principal.Add(portion)
		case componentInterest:
			portion = installment.UnpayInterestComponent(currency, remaining)
			interest = interest.Add(portion)
		case componentFee:
			portion = installment.UnpayFeeChargesComponent(currency, remaining)
			fees = fees.Add(portion)
		case componentPenalty:
			portion = installment.UnpayPenaltyChargesComponent(currency, remaining)
			penalties = penalties.Add(portion)
		}
		remaining = remaining.Sub(portion)
	}

	refunded := principal.Add(interest).Add(fees).Add(penalties)
	if refunded.IsGreaterThanZero() {
		tx.UpdateComponents(principal, interest, fees, penalties)
		tx.MappingFor(installment).AddComponents(principal, interest, fees, penalties)
	}
	return remaining
}

// strategyFor resolves a strategy code to its hook implementation.
func strategyFor(code string) (allocationStrategy, error) {
	switch code {
	case StrategyPrincipalInterestPenaltyFee:
		return newOrderedStrategy(code, [4]component{componentPrincipal, componentInterest, componentPenalty, componentFee}), nil
	case StrategyInterestPrincipalPenaltyFee:
		return newOrderedStrategy(code, [4]component{componentInterest, componentPrincipal, componentPenalty, componentFee}), nil
	case StrategyFeePenaltyInterestPrincipal:
		return newOrderedStrategy(code, [4]component{componentFee, componentPenalty, componentInterest, componentPrincipal}), nil
	default:
		return nil, fmt.Errorf("unknown repayment strategy %q", code)
	}
}
