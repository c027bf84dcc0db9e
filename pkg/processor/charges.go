package processor

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/isaccanedo/fineract-sub004/pkg/loan"
	"github.com/isaccanedo/fineract-sub004/pkg/money"
)

// ReassignCharges recomputes every installment's fee and penalty due amounts
// from the loan's active charges. It runs at the start of each reprocessing
// pass so per-installment charges reflect the current schedule shape.
// Charges due at disbursement are excluded from post-disbursement
// allocation; a date-based charge falling beyond the last due date attaches
// to the final installment.
func ReassignCharges(currency money.Currency, installments []*loan.RepaymentInstallment, charges []*loan.LoanCharge) {
	for idx, installment := range installments {
		fees := decimal.Zero
		penalties := decimal.Zero
		firstPeriod := idx == 0
		lastPeriod := idx == len(installments)-1

		for _, charge := range charges {
			if charge.DueAtDisbursement {
				continue
			}
			amount := decimal.Zero
			if charge.PerInstallment {
				if ic := charge.InstallmentChargeFor(installment.InstallmentNumber); ic != nil {
					amount = ic.Amount
				}
			} else if charge.IsDueInPeriod(installment.FromDate, installment.DueDate, firstPeriod) {
				amount = charge.Amount
			} else if lastPeriod && charge.DueDate != nil && loan.DateIsAfter(*charge.DueDate, installment.DueDate) {
				amount = charge.Amount
			}

			if charge.Penalty {
				penalties = penalties.Add(amount)
			} else {
				fees = fees.Add(amount)
			}
		}

		installment.FeeCharges = fees
		installment.PenaltyCharges = penalties
	}
}

// earliestUnpaidCharge picks the next charge a fee or penalty portion should
// settle: the unpaid, non-disbursement charge with the earliest relevant due
// date. Per-installment charges compare by the due date of their earliest
// outstanding slice.
func earliestUnpaidCharge(currency money.Currency, charges []*loan.LoanCharge, installments []*loan.RepaymentInstallment, penalty bool) *loan.LoanCharge {
	var best *loan.LoanCharge
	var bestDue *time.Time
	for _, charge := range charges {
		if charge.Penalty != penalty || charge.DueAtDisbursement || charge.IsFullyPaid(currency) {
			continue
		}
		due := charge.RelevantDueDate(currency, installments)
		if best == nil || earlierDue(due, bestDue) {
			best = charge
			bestDue = due
		}
	}
	return best
}

// latestPaidCharge picks the charge a refund should unwind next: the charge
// with payment recorded whose relevant due date is latest. Mirror of
// earliestUnpaidCharge.
func latestPaidCharge(currency money.Currency, charges []*loan.LoanCharge, installments []*loan.RepaymentInstallment, penalty bool) *loan.LoanCharge {
	var best *loan.LoanCharge
	var bestDue *time.Time
	for _, charge := range charges {
		if charge.Penalty != penalty || charge.DueAtDisbursement || !charge.AmountPaid.GreaterThan(decimal.Zero) {
			continue
		}
		due := charge.RelevantDueDate(currency, installments)
		if best == nil || earlierDue(bestDue, due) {
			best = charge
			bestDue = due
		}
	}
	return best
}

// earlierDue orders optional due dates; a dated charge sorts before an
// undated one.
func earlierDue(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return loan.DateIsBefore(*a, *b)
	}
}
