// Package processor implements the repayment-schedule transaction
// processor: it consumes a loan's date-ordered transaction stream and
// allocates each amount across the schedule's principal, interest, fee and
// penalty components. The engine is pure in-memory computation over the
// mutable collections supplied by the caller; it performs no I/O and is safe
// to re-run, since every pass resets derived state and replays the stream.
package processor

import (
	"sort"
	"time"

	"github.com/isaccanedo/fineract-sub004/pkg/loan"
	"github.com/isaccanedo/fineract-sub004/pkg/money"
)

// Processor is the call boundary exposed to the loan lifecycle orchestrator.
// Implementations differ only in the order transaction amounts are applied
// to installment components.
type Processor interface {
	// Strategy returns the allocation-order code the processor was built
	// with.
	Strategy() string

	// IsInterestFirstRepaymentScheduleTransactionProcessor reports whether
	// the strategy consumes interest before principal.
	IsInterestFirstRepaymentScheduleTransactionProcessor() bool

	// HandleTransaction replays the complete post-disbursement transaction
	// stream against the schedule, recomputing all derived state. The
	// installment list may grow (charge-back beyond the schedule). The
	// returned change-set maps reversed persisted transactions to their
	// replacements.
	HandleTransaction(disbursementDate time.Time, transactions []*loan.LoanTransaction, currency money.Currency, installments *[]*loan.RepaymentInstallment, charges []*loan.LoanCharge) *loan.ChangedTransactionDetail

	// HandleWriteOff writes off every not-fully-paid installment's
	// outstanding components as of the transaction date and records the
	// totals on the transaction.
	HandleWriteOff(tx *loan.LoanTransaction, currency money.Currency, installments []*loan.RepaymentInstallment)

	// HandleRefund undoes payments from the latest installment backwards
	// until the refund amount is exhausted.
	HandleRefund(tx *loan.LoanTransaction, currency money.Currency, installments []*loan.RepaymentInstallment, charges []*loan.LoanCharge)

	// HandleChargeback re-opens principal for the part of the charge-back
	// not covered by the loan's overpaid balance, appending an additional
	// installment when the schedule has no future period to carry it.
	HandleChargeback(tx *loan.LoanTransaction, currency money.Currency, overpaidAmount money.Money, installments *[]*loan.RepaymentInstallment)

	// HandleRepaymentSchedule is the schedule-impact preview: it allocates
	// the transactions with no reversal bookkeeping and returns the total
	// unprocessed remainder.
	HandleRepaymentSchedule(transactions []*loan.LoanTransaction, currency money.Currency, installments []*loan.RepaymentInstallment) money.Money

	// ProcessTransactionsFromDerivedFields re-applies each transaction's
	// stored component portions to the schedule without reallocating.
	ProcessTransactionsFromDerivedFields(transactions []*loan.LoanTransaction, currency money.Currency, installments []*loan.RepaymentInstallment, charges []*loan.LoanCharge)
}

// engine carries the shared allocation algorithm; the strategy supplies the
// four order-sensitive hooks.
type engine struct {
	strategy allocationStrategy
}

// New builds a Processor for the given strategy code.
func New(strategyCode string) (Processor, error) {
	s, err := strategyFor(strategyCode)
	if err != nil {
		return nil, err
	}
	return &engine{strategy: s}, nil
}

func (e *engine) Strategy() string { return e.strategy.Code() }

func (e *engine) IsInterestFirstRepaymentScheduleTransactionProcessor() bool {
	return e.strategy.InterestFirst()
}

func (e *engine) HandleTransaction(disbursementDate time.Time, transactions []*loan.LoanTransaction, currency money.Currency, installments *[]*loan.RepaymentInstallment, charges []*loan.LoanCharge) *loan.ChangedTransactionDetail {
	changed := loan.NewChangedTransactionDetail()

	for _, charge := range charges {
		if !charge.DueAtDisbursement {
			charge.ResetPaidAmount()
		}
	}
	for _, installment := range *installments {
		installment.ResetDerivedComponents()
	}
	ReassignCharges(currency, *installments, charges)

	var chargePayments, others []*loan.LoanTransaction
	for _, tx := range transactions {
		if tx.IsChargePayment() {
			chargePayments = append(chargePayments, tx)
		} else {
			others = append(others, tx)
		}
	}

	for _, tx := range chargePayments {
		e.processChargePayment(tx, currency, *installments, charges)
	}

	overpaid := money.Zero(currency)
	for _, tx := range others {
		effective := tx
		switch {
		case tx.IsAllocatable():
			if tx.IsNew() {
				e.processAllocatable(tx, currency, *installments, charges)
			} else {
				shadow := tx.ShadowCopy()
				e.processAllocatable(shadow, currency, *installments, charges)
				if tx.EquivalentComponents(currency, shadow) {
					tx.AdoptAllocation(shadow)
				} else {
					tx.Reverse()
					changed.NewTransactionMappings[tx.ID] = shadow
					effective = shadow
				}
			}
		case tx.IsWriteOff():
			e.HandleWriteOff(tx, currency, *installments)
		case tx.IsRefundForActiveLoan():
			e.HandleRefund(tx, currency, *installments, charges)
		case tx.IsChargeback():
			e.HandleChargeback(tx, currency, overpaid, installments)
		}

		if tx.IsChargeback() {
			overpaid = overpaid.SubAmount(effective.OverpaymentPortion).FlooredAtZero()
		} else {
			overpaid = overpaid.AddAmount(effective.OverpaymentPortion)
		}
	}

	return changed
}

// processAllocatable walks installments in due-date order, classifying the
// transaction against each visited installment (advance, on-time or late)
// and delegating to the matching strategy hook. The remainder after the last
// installment becomes overpayment; an interest-waiver remainder is simply
// capped at the interest actually waived.
func (e *engine) processAllocatable(tx *loan.LoanTransaction, currency money.Currency, installments []*loan.RepaymentInstallment, charges []*loan.LoanCharge) money.Money {
	tx.ResetDerivedComponents()
	remaining := tx.MonetaryAmount(currency)

	for _, installment := range installments {
		if !remaining.IsGreaterThanZero() {
			break
		}
		if installment.IsObligationsMet(currency) {
			continue
		}
		switch {
		case loan.DateIsBefore(tx.Date, installment.DueDate):
			remaining = e.strategy.HandleTransactionThatIsPaymentInAdvanceOfInstallment(currency, installment, tx, remaining)
		case loan.DateIsAfter(tx.Date, installment.DueDate):
			remaining = e.strategy.HandleTransactionThatIsALateRepaymentOfInstallment(currency, installment, tx, remaining)
		default:
			remaining = e.strategy.HandleTransactionThatIsOnTimePaymentOfInstallment(currency, installment, tx, remaining)
		}
	}

	e.updateChargesPaidBy(tx, currency, installments, charges)

	if remaining.IsGreaterThanZero() && !tx.IsInterestWaiver() {
		tx.SetOverpaymentPortion(remaining)
	}
	return remaining
}

// updateChargesPaidBy drains the transaction's fee and penalty portions into
// the loan's charges, earliest-due unpaid charge first.
func (e *engine) updateChargesPaidBy(tx *loan.LoanTransaction, currency money.Currency, installments []*loan.RepaymentInstallment, charges []*loan.LoanCharge) {
	e.distributeToCharges(tx, currency, installments, charges, money.New(currency, tx.FeeChargesPortion), false)
	e.distributeToCharges(tx, currency, installments, charges, money.New(currency, tx.PenaltyChargesPortion), true)
}

func (e *engine) distributeToCharges(tx *loan.LoanTransaction, currency money.Currency, installments []*loan.RepaymentInstallment, charges []*loan.LoanCharge, amount money.Money, penalty bool) {
	for amount.IsGreaterThanZero() {
		charge := earliestUnpaidCharge(currency, charges, installments, penalty)
		if charge == nil {
			return
		}
		installmentNumber := 0
		if charge.PerInstallment {
			if due := charge.RelevantDueDate(currency, installments); due != nil {
				for _, installment := range installments {
					if loan.SameDate(installment.DueDate, *due) {
						installmentNumber = installment.InstallmentNumber
						break
					}
				}
			}
		}
		paid := charge.UpdatePaidAmountBy(currency, amount, installmentNumber)
		if !paid.IsGreaterThanZero() {
			return
		}
		tx.PayCharge(charge, paid, installmentNumber)
		amount = amount.Sub(paid)
	}
}

// processChargePayment allocates a charge-payment transaction: the paid
// charge falls into the installment whose (from, due] interval contains its
// due date; any amount left after all installments is overpayment.
func (e *engine) processChargePayment(tx *loan.LoanTransaction, currency money.Currency, installments []*loan.RepaymentInstallment, charges []*loan.LoanCharge) {
	tx.ResetDerivedComponents()
	remaining := tx.MonetaryAmount(currency)

	for idx, installment := range installments {
		if !remaining.IsGreaterThanZero() {
			break
		}
		firstPeriod := idx == 0
		for _, charge := range charges {
			if !remaining.IsGreaterThanZero() {
				break
			}
			if charge.DueAtDisbursement || charge.IsFullyPaid(currency) {
				continue
			}

			inPeriod := false
			if charge.PerInstallment {
				ic := charge.InstallmentChargeFor(installment.InstallmentNumber)
				inPeriod = ic != nil && ic.Outstanding(currency).IsGreaterThanZero()
			} else {
				inPeriod = charge.IsDueInPeriod(installment.FromDate, installment.DueDate, firstPeriod)
			}
			if !inPeriod {
				continue
			}

			paid := charge.UpdatePaidAmountBy(currency, remaining, installment.InstallmentNumber)
			if !paid.IsGreaterThanZero() {
				continue
			}
			tx.PayCharge(charge, paid, installment.InstallmentNumber)

			zero := money.Zero(currency)
			if charge.Penalty {
				portion := installment.PayPenaltyChargesComponent(currency, paid)
				tx.UpdateComponents(zero, zero, zero, portion)
				tx.MappingFor(installment).AddComponents(zero, zero, zero, portion)
			} else {
				portion := installment.PayFeeChargesComponent(currency, paid)
				tx.UpdateComponents(zero, zero, portion, zero)
				tx.MappingFor(installment).AddComponents(zero, zero, portion, zero)
			}
			remaining = remaining.Sub(paid)
		}
	}

	if remaining.IsGreaterThanZero() {
		tx.SetOverpaymentPortion(remaining)
	}
}

func (e *engine) HandleWriteOff(tx *loan.LoanTransaction, currency money.Currency, installments []*loan.RepaymentInstallment) {
	tx.ResetDerivedComponents()

	principal := money.Zero(currency)
	interest := money.Zero(currency)
	fees := money.Zero(currency)
	penalties := money.Zero(currency)

	for _, installment := range installments {
		if installment.IsObligationsMet(currency) {
			continue
		}
		p, i, f, pen := installment.WriteOffOutstanding(currency)
		principal = principal.Add(p)
		interest = interest.Add(i)
		fees = fees.Add(f)
		penalties = penalties.Add(pen)
		tx.MappingFor(installment).AddComponents(p, i, f, pen)
	}

	tx.UpdateComponentsAndTotal(principal, interest, fees, penalties)
}

func (e *engine) HandleRefund(tx *loan.LoanTransaction, currency money.Currency, installments []*loan.RepaymentInstallment, charges []*loan.LoanCharge) {
	tx.ResetDerivedComponents()
	remaining := tx.MonetaryAmount(currency)

	ordered := make([]*loan.RepaymentInstallment, len(installments))
	copy(ordered, installments)
	sort.SliceStable(ordered, func(a, b int) bool {
		return loan.DateIsAfter(ordered[a].DueDate, ordered[b].DueDate)
	})

	for _, installment := range ordered {
		if !remaining.IsGreaterThanZero() {
			break
		}
		if !installment.TotalPaid(currency).IsGreaterThanZero() {
			continue
		}
		remaining = e.strategy.HandleRefundTransactionPaymentOfInstallment(currency, installment, tx, remaining)
	}

	e.undoChargesPaidBy(tx, currency, installments, charges)
}

// undoChargesPaidBy unwinds charge payments for the refunded fee and penalty
// portions, latest-paid charge first.
func (e *engine) undoChargesPaidBy(tx *loan.LoanTransaction, currency money.Currency, installments []*loan.RepaymentInstallment, charges []*loan.LoanCharge) {
	for _, penalty := range []bool{false, true} {
		amount := money.New(currency, tx.FeeChargesPortion)
		if penalty {
			amount = money.New(currency, tx.PenaltyChargesPortion)
		}
		for amount.IsGreaterThanZero() {
			charge := latestPaidCharge(currency, charges, installments, penalty)
			if charge == nil {
				break
			}
			undone := charge.UndoPaidAmountBy(currency, amount)
			if !undone.IsGreaterThanZero() {
				break
			}
			amount = amount.Sub(undone)
		}
	}
}

func (e *engine) HandleChargeback(tx *loan.LoanTransaction, currency money.Currency, overpaidAmount money.Money, installments *[]*loan.RepaymentInstallment) {
	tx.ResetDerivedComponents()

	sort.SliceStable(*installments, func(a, b int) bool {
		return loan.DateIsBefore((*installments)[a].DueDate, (*installments)[b].DueDate)
	})

	amount := tx.MonetaryAmount(currency)
	unprocessed := amount.Sub(overpaidAmount).FlooredAtZero()
	tx.SetOverpaymentPortion(amount.Sub(unprocessed))
	if !unprocessed.IsGreaterThanZero() {
		return
	}

	var target *loan.RepaymentInstallment
	for _, installment := range *installments {
		if !installment.Additional && loan.DateIsAfter(installment.DueDate, tx.Date) {
			target = installment
			break
		}
	}

	if target == nil {
		for _, installment := range *installments {
			if installment.Additional {
				target = installment
			}
		}
		if target != nil {
			if loan.DateIsAfter(tx.Date, target.DueDate) {
				target.DueDate = tx.Date
			}
		} else {
			last := (*installments)[len(*installments)-1]
			target = &loan.RepaymentInstallment{
				InstallmentNumber: len(*installments) + 1,
				FromDate:          last.DueDate,
				DueDate:           last.DueDate,
				Additional:        true,
			}
			*installments = append(*installments, target)
		}
	}

	target.AddToPrincipal(unprocessed)
	zero := money.Zero(currency)
	tx.UpdateComponents(unprocessed, zero, zero, zero)
	tx.MappingFor(target).AddComponents(unprocessed, zero, zero, zero)
}

func (e *engine) HandleRepaymentSchedule(transactions []*loan.LoanTransaction, currency money.Currency, installments []*loan.RepaymentInstallment) money.Money {
	for _, installment := range installments {
		installment.ResetDerivedComponents()
	}

	unprocessed := money.Zero(currency)
	for _, tx := range transactions {
		if !tx.IsAllocatable() {
			continue
		}
		unprocessed = e.processAllocatable(tx, currency, installments, nil)
	}
	return unprocessed
}

func (e *engine) ProcessTransactionsFromDerivedFields(transactions []*loan.LoanTransaction, currency money.Currency, installments []*loan.RepaymentInstallment, charges []*loan.LoanCharge) {
	for _, tx := range transactions {
		if tx.Reversed || !(tx.IsAllocatable() || tx.IsChargePayment()) {
			continue
		}
		e.applyDerivedComponents(tx, currency, installments, charges)
	}
}

// applyDerivedComponents re-applies a transaction's stored portions to the
// schedule in forward order, without recomputing the allocation itself.
func (e *engine) applyDerivedComponents(tx *loan.LoanTransaction, currency money.Currency, installments []*loan.RepaymentInstallment, charges []*loan.LoanCharge) {
	principal := money.New(currency, tx.PrincipalPortion)
	interest := money.New(currency, tx.InterestPortion)
	fees := money.New(currency, tx.FeeChargesPortion)
	penalties := money.New(currency, tx.PenaltyChargesPortion)

	for _, installment := range installments {
		if principal.IsGreaterThanZero() {
			principal = principal.Sub(installment.PayPrincipalComponent(currency, principal))
		}
		if interest.IsGreaterThanZero() {
			if tx.IsInterestWaiver() {
				interest = interest.Sub(installment.WaiveInterestComponent(currency, interest))
			} else {
				interest = interest.Sub(installment.PayInterestComponent(currency, interest))
			}
		}
		if fees.IsGreaterThanZero() {
			fees = fees.Sub(installment.PayFeeChargesComponent(currency, fees))
		}
		if penalties.IsGreaterThanZero() {
			penalties = penalties.Sub(installment.PayPenaltyChargesComponent(currency, penalties))
		}
	}

	feePortion := money.New(currency, tx.FeeChargesPortion)
	penaltyPortion := money.New(currency, tx.PenaltyChargesPortion)
	scratch := &loan.LoanTransaction{}
	e.distributeToCharges(scratch, currency, installments, charges, feePortion, false)
	e.distributeToCharges(scratch, currency, installments, charges, penaltyPortion, true)
}
