// Package money holds the pure integer-cents arithmetic behind enrollment
// and payout accounting. All rates are expressed in basis points and all
// rounding is half-up to the nearest cent, so results are deterministic and
// free of floating-point drift.
package money

import "pawpay/internal/domain"

// bpsDenom is the basis-point denominator: 10_000 bps = 100%.
const bpsDenom int64 = 10_000

// Rates carries the platform economics. Values are basis points.
type Rates struct {
	FeeBps         int64 // platform fee added on top of the bill
	DepositBps     int64 // deposit share of the total with fee
	RiskPoolBps    int64 // risk-pool contribution on enrollment/success
	ReserveBps     int64 // reserve withheld from the bill portion at payout
	ClinicShareBps int64 // clinic bonus share of the full payment amount
}

// DefaultRates are the production defaults: 6% fee, 25% deposit, 1% risk
// pool, 1% payout reserve, 2% clinic share.
func DefaultRates() Rates {
	return Rates{
		FeeBps:         600,
		DepositBps:     2500,
		RiskPoolBps:    100,
		ReserveBps:     100,
		ClinicShareBps: 200,
	}
}

// PercentOfCents returns rateBps of amountCents rounded half-up to the
// nearest cent. Negative inputs yield 0; validation belongs to callers.
func PercentOfCents(amountCents, rateBps int64) int64 {
	if amountCents <= 0 || rateBps <= 0 {
		return 0
	}
	return (amountCents*rateBps + bpsDenom/2) / bpsDenom
}

// Contribution is the risk-pool contribution owed on a plan total.
// Contribution(0) == 0.
func (r Rates) Contribution(totalWithFeeCents int64) int64 {
	return PercentOfCents(totalWithFeeCents, r.RiskPoolBps)
}

// Breakdown splits one succeeded payment between platform fee, risk
// reserve, and clinic transfer.
//
// BillPortionCents + PlatformFeeCents always equals the payment amount.
type Breakdown struct {
	BillPortionCents int64
	PlatformFeeCents int64
	RiskPoolCents    int64
	ClinicShareCents int64
	TransferCents    int64
}

// PayoutBreakdown reverses the platform fee out of a payment amount and
// computes the clinic transfer. Returns RangeError for amounts <= 0.
func (r Rates) PayoutBreakdown(paymentAmountCents int64) (Breakdown, error) {
	if paymentAmountCents <= 0 {
		return Breakdown{}, &domain.RangeError{Message: "payment amount must be positive cents"}
	}

	// billPortion = round(amount / (1 + feeRate)), in integer bps space
	den := bpsDenom + r.FeeBps
	billPortion := (paymentAmountCents*bpsDenom + den/2) / den
	platformFee := paymentAmountCents - billPortion

	riskPool := PercentOfCents(billPortion, r.ReserveBps)
	clinicShare := PercentOfCents(paymentAmountCents, r.ClinicShareBps)

	return Breakdown{
		BillPortionCents: billPortion,
		PlatformFeeCents: platformFee,
		RiskPoolCents:    riskPool,
		ClinicShareCents: clinicShare,
		TransferCents:    billPortion - riskPool + clinicShare,
	}, nil
}

// PlanAmounts is the computed payment structure of a new plan.
type PlanAmounts struct {
	FeeCents             int64
	TotalWithFeeCents    int64
	DepositCents         int64
	InstallmentCents     int64
	LastInstallmentCents int64 // absorbs the rounding remainder
	NumInstallments      int
}

// PlanAmounts derives fee, deposit, and the installment split for a bill.
// The last installment absorbs any remainder so that
// deposit + installments == total with fee, exactly.
func (r Rates) PlanAmounts(totalBillCents int64, numInstallments int) (PlanAmounts, error) {
	if totalBillCents <= 0 {
		return PlanAmounts{}, &domain.RangeError{Message: "bill amount must be positive cents"}
	}
	if numInstallments <= 0 {
		return PlanAmounts{}, &domain.RangeError{Message: "installment count must be positive"}
	}

	fee := PercentOfCents(totalBillCents, r.FeeBps)
	total := totalBillCents + fee
	deposit := PercentOfCents(total, r.DepositBps)

	financed := total - deposit
	installment := financed / int64(numInstallments)
	last := financed - installment*int64(numInstallments-1)

	return PlanAmounts{
		FeeCents:             fee,
		TotalWithFeeCents:    total,
		DepositCents:         deposit,
		InstallmentCents:     installment,
		LastInstallmentCents: last,
		NumInstallments:      numInstallments,
	}, nil
}
