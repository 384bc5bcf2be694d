package money

import (
	"testing"

	"pawpay/internal/domain"
)

func TestPercentOfCents_RoundsToNearest(t *testing.T) {
	cases := []struct {
		amount int64
		bps    int64
		want   int64
	}{
		{77_777, 100, 778}, // 777.77 rounds up
		{77_749, 100, 777}, // 777.49 rounds down
		{127_200, 100, 1_272},
		{0, 100, 0},
		{-5, 100, 0},
		{100, 0, 0},
	}
	for _, tc := range cases {
		if got := PercentOfCents(tc.amount, tc.bps); got != tc.want {
			t.Errorf("PercentOfCents(%d, %d) = %d, want %d", tc.amount, tc.bps, got, tc.want)
		}
	}
}

func TestContribution(t *testing.T) {
	r := DefaultRates()
	if got := r.Contribution(0); got != 0 {
		t.Fatalf("Contribution(0) = %d, want 0", got)
	}
	if got := r.Contribution(127_200); got != 1_272 {
		t.Fatalf("Contribution(127200) = %d, want 1272", got)
	}
}

func TestPayoutBreakdown_SumsExactly(t *testing.T) {
	r := DefaultRates()
	amounts := []int64{1, 99, 100, 15_900, 31_800, 127_200, 1_000_000, 2_000_001}
	for _, amount := range amounts {
		b, err := r.PayoutBreakdown(amount)
		if err != nil {
			t.Fatalf("PayoutBreakdown(%d): %v", amount, err)
		}
		if b.BillPortionCents+b.PlatformFeeCents != amount {
			t.Errorf("bill %d + fee %d != amount %d", b.BillPortionCents, b.PlatformFeeCents, amount)
		}
		if want := b.BillPortionCents - b.RiskPoolCents + b.ClinicShareCents; b.TransferCents != want {
			t.Errorf("transfer %d != bill - reserve + share %d", b.TransferCents, want)
		}
	}
}

func TestPayoutBreakdown_Deterministic(t *testing.T) {
	r := DefaultRates()
	a, _ := r.PayoutBreakdown(15_900)
	b, _ := r.PayoutBreakdown(15_900)
	if a != b {
		t.Fatalf("breakdown not deterministic: %+v vs %+v", a, b)
	}
}

func TestPayoutBreakdown_RejectsNonPositive(t *testing.T) {
	r := DefaultRates()
	for _, amount := range []int64{0, -1, -127_200} {
		if _, err := r.PayoutBreakdown(amount); !domain.IsRange(err) {
			t.Errorf("PayoutBreakdown(%d) err = %v, want RangeError", amount, err)
		}
	}
}

func TestPlanAmounts_TwelveHundredDollarBill(t *testing.T) {
	r := DefaultRates()
	pa, err := r.PlanAmounts(120_000, 6)
	if err != nil {
		t.Fatal(err)
	}
	if pa.FeeCents != 7_200 {
		t.Errorf("fee = %d, want 7200", pa.FeeCents)
	}
	if pa.TotalWithFeeCents != 127_200 {
		t.Errorf("total = %d, want 127200", pa.TotalWithFeeCents)
	}
	if pa.DepositCents != 31_800 {
		t.Errorf("deposit = %d, want 31800", pa.DepositCents)
	}
	if pa.InstallmentCents != 15_900 || pa.LastInstallmentCents != 15_900 {
		t.Errorf("installments = %d/%d, want 15900/15900", pa.InstallmentCents, pa.LastInstallmentCents)
	}
}

func TestPlanAmounts_LastInstallmentAbsorbsRemainder(t *testing.T) {
	r := DefaultRates()
	// an amount that does not divide evenly
	pa, err := r.PlanAmounts(99_999, 6)
	if err != nil {
		t.Fatal(err)
	}
	sum := pa.DepositCents + pa.InstallmentCents*int64(pa.NumInstallments-1) + pa.LastInstallmentCents
	if sum != pa.TotalWithFeeCents {
		t.Fatalf("schedule sums to %d, want total %d", sum, pa.TotalWithFeeCents)
	}
	if pa.LastInstallmentCents < pa.InstallmentCents {
		t.Fatalf("last installment %d smaller than base %d", pa.LastInstallmentCents, pa.InstallmentCents)
	}
}

func TestPlanAmounts_RejectsBadInput(t *testing.T) {
	r := DefaultRates()
	if _, err := r.PlanAmounts(0, 6); !domain.IsRange(err) {
		t.Errorf("zero bill err = %v, want RangeError", err)
	}
	if _, err := r.PlanAmounts(120_000, 0); !domain.IsRange(err) {
		t.Errorf("zero installments err = %v, want RangeError", err)
	}
}
