/*
allocate_test.go - Executable behavior tests for the allocation algorithm

ORGANIZATION:
  1. Component-order scenarios (the bank behavior table)
  2. Ordering across installments, due vs advance windows
  3. Boundary-date policy
  4. Waivers
  5. Error conditions and atomicity
  6. Conservation and non-negativity invariants

Each test states the scenario with GIVEN/WHEN/THEN comments and asserts
with explanatory messages.
*/
package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/warp/loan-engine/dates"
	"github.com/warp/loan-engine/engine"
	"github.com/warp/loan-engine/money"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var eur = money.NewCurrency("EUR", 2)

func m(v float64) money.Money { return money.NewFromFloat(v, eur) }

func d(year int, month time.Month, day int) dates.Date { return dates.New(year, month, day) }

func installment(period int, from, due dates.Date, pri, intr, fee, pen float64) *engine.Installment {
	return engine.NewInstallment(period, from, due, engine.ComponentAmounts{
		Principal: m(pri),
		Interest:  m(intr),
		Fee:       m(fee),
		Penalty:   m(pen),
	})
}

// standardInstallments builds a three-period monthly schedule starting Jan 1.
func standardInstallments() []*engine.Installment {
	return []*engine.Installment{
		installment(1, d(2025, time.January, 1), d(2025, time.February, 1), 1000, 100, 50, 25),
		installment(2, d(2025, time.February, 1), d(2025, time.March, 1), 1000, 75, 40, 25),
		installment(3, d(2025, time.March, 1), d(2025, time.April, 1), 1000, 80, 30, 20),
	}
}

func mustStrategy(t *testing.T, code string) engine.Strategy {
	t.Helper()
	s, err := engine.StrategyByCode(code)
	if err != nil {
		t.Fatalf("strategy %q: %v", code, err)
	}
	return s
}

func repayment(amount float64, date dates.Date) engine.Transaction {
	return engine.Transaction{
		ID:     "tx-1",
		LoanID: "loan-1",
		Amount: m(amount),
		Date:   date,
		Type:   engine.TxRepayment,
	}
}

func assertMoney(t *testing.T, want float64, got money.Money, msg string) {
	t.Helper()
	if !got.Equal(m(want)) {
		t.Errorf("%s: want %v, got %v", msg, m(want), got)
	}
}

// =============================================================================
// COMPONENT-ORDER SCENARIOS
// =============================================================================

func TestAllocate_PenaltyInterestPrincipalFee_PartialPayment(t *testing.T) {
	// GIVEN: one due installment with principal=1000, interest=100, fee=50,
	//        penalty=25 (total 1175)
	// WHEN: 600 is repaid under the penalty->interest->principal->fee order
	// THEN: penalty and interest fully paid (125), principal paid 475,
	//       fee untouched; outstanding principal 525, fee 50, total 575

	installments := []*engine.Installment{
		installment(1, d(2025, time.January, 1), d(2025, time.February, 1), 1000, 100, 50, 25),
	}
	eng := engine.NewAllocationEngine(mustStrategy(t, "due-pen-int-pri-fee-in-advance-pen-int-pri-fee"))

	result, err := eng.Allocate(repayment(600, d(2025, time.February, 1)), eur, installments)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	inst := installments[0]
	assertMoney(t, 25, inst.Paid.Penalty, "penalty paid")
	assertMoney(t, 100, inst.Paid.Interest, "interest paid")
	assertMoney(t, 475, inst.Paid.Principal, "principal paid")
	assertMoney(t, 0, inst.Paid.Fee, "fee paid")
	assertMoney(t, 525, inst.Outstanding(engine.ComponentPrincipal), "principal outstanding")
	assertMoney(t, 50, inst.Outstanding(engine.ComponentFee), "fee outstanding")
	assertMoney(t, 575, inst.TotalOutstanding(), "total outstanding")
	assertMoney(t, 0, result.Unallocated, "unallocated")
	assertMoney(t, 600, result.TotalAllocated(), "allocated total")
}

func TestAllocate_AdvancePaymentCoversFutureInstallment(t *testing.T) {
	// GIVEN: a single future installment (window starts after the payment
	//        date) totaling 1175
	// WHEN: 1175 arrives in advance
	// THEN: all four components reach zero outstanding regardless of the
	//       advance component order, since the amount is sufficient

	for _, code := range []string{"standard", "due-pen-fee-int-pri-in-advance-pri-int-fee-pen", "creocore"} {
		installments := []*engine.Installment{
			installment(2, d(2025, time.March, 1), d(2025, time.April, 1), 1000, 100, 50, 25),
		}
		eng := engine.NewAllocationEngine(mustStrategy(t, code))

		_, err := eng.Allocate(repayment(1175, d(2025, time.February, 10)), eur, installments)
		if err != nil {
			t.Fatalf("%s: allocate: %v", code, err)
		}
		if !installments[0].TotalOutstanding().IsZero() {
			t.Errorf("%s: advance payment should clear the installment, outstanding %v",
				code, installments[0].TotalOutstanding())
		}
		if !installments[0].ObligationsMet {
			t.Errorf("%s: obligations should be met", code)
		}
	}
}

func TestAllocate_SpillsAcrossInstallments(t *testing.T) {
	// GIVEN: three installments totaling 1175, 1140 and 1130
	// WHEN: 2500 is repaid after all are due
	// THEN: installments 1 and 2 fully paid (2315), installment 3 partially
	//       paid 185, leaving 945 outstanding

	installments := standardInstallments()
	eng := engine.NewAllocationEngine(mustStrategy(t, "standard"))

	result, err := eng.Allocate(repayment(2500, d(2025, time.April, 1)), eur, installments)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if !installments[0].ObligationsMet || !installments[1].ObligationsMet {
		t.Error("installments 1 and 2 should be fully paid")
	}
	assertMoney(t, 185, installments[2].Paid.Total(), "installment 3 paid")
	assertMoney(t, 945, installments[2].TotalOutstanding(), "installment 3 outstanding")
	assertMoney(t, 2500, result.TotalAllocated(), "allocated total")
}

func TestAllocate_ComponentAcrossPeriods(t *testing.T) {
	// GIVEN: two overdue installments and the "heavensfamily" cross-period
	//        order (principal first across ALL due periods)
	// WHEN: 2000 is repaid, exactly both periods' principal
	// THEN: both principals are cleared and no interest/fee/penalty is paid

	installments := []*engine.Installment{
		installment(1, d(2025, time.January, 1), d(2025, time.February, 1), 1000, 100, 50, 25),
		installment(2, d(2025, time.February, 1), d(2025, time.March, 1), 1000, 75, 40, 25),
	}
	eng := engine.NewAllocationEngine(mustStrategy(t, "heavensfamily"))

	_, err := eng.Allocate(repayment(2000, d(2025, time.March, 10)), eur, installments)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	for i, inst := range installments {
		if !inst.Outstanding(engine.ComponentPrincipal).IsZero() {
			t.Errorf("installment %d: principal should be cleared", i+1)
		}
		if !inst.Paid.Interest.IsZero() || !inst.Paid.Fee.IsZero() || !inst.Paid.Penalty.IsZero() {
			t.Errorf("installment %d: only principal should be paid", i+1)
		}
	}
}

// =============================================================================
// BOUNDARY-DATE POLICY
// =============================================================================

func TestAllocate_BoundaryDates(t *testing.T) {
	// GIVEN: period 2 spans (Feb 1, Mar 1]
	// WHEN: a transaction is dated exactly Feb 1 (period 2's from-date)
	// THEN: period 2 is NOT due (the payment is an advance for it), while a
	//       transaction dated exactly Mar 1 (its due date) IS due

	fromDate := d(2025, time.February, 1)
	dueDate := d(2025, time.March, 1)
	second := installment(2, fromDate, dueDate, 1000, 75, 40, 25)

	if second.IsDueOn(fromDate, false) {
		t.Error("period 2 must not be due on its from-date")
	}
	if !second.IsDueOn(dueDate, false) {
		t.Error("period 2 must be due on its due date")
	}

	// The first period's from-date is inclusive.
	first := installment(1, d(2025, time.January, 1), fromDate, 1000, 100, 50, 25)
	if !first.IsDueOn(d(2025, time.January, 1), true) {
		t.Error("period 1 must be due on its from-date")
	}
}

func TestAllocate_AdvanceOrderAppliesBeforeDueWindow(t *testing.T) {
	// GIVEN: a strategy whose due order starts with penalty but whose
	//        advance order starts with principal
	// WHEN: 1000 arrives before the installment's window opens
	// THEN: the advance order applies: principal is paid, penalty is not

	installments := []*engine.Installment{
		installment(2, d(2025, time.March, 1), d(2025, time.April, 1), 1000, 100, 50, 25),
	}
	eng := engine.NewAllocationEngine(mustStrategy(t, "due-pen-fee-int-pri-in-advance-pri-int-fee-pen"))

	_, err := eng.Allocate(repayment(1000, d(2025, time.February, 10)), eur, installments)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	assertMoney(t, 1000, installments[0].Paid.Principal, "principal paid in advance")
	assertMoney(t, 0, installments[0].Paid.Penalty, "penalty untouched in advance")
}

// =============================================================================
// WAIVERS
// =============================================================================

func TestAllocate_WaiverCappedAtInterestOutstanding(t *testing.T) {
	// GIVEN: one installment with 100 interest outstanding
	// WHEN: a waiver of 160 arrives
	// THEN: 100 is waived against interest, the other components stay
	//       untouched, and 60 is surfaced as unallocated

	installments := []*engine.Installment{
		installment(1, d(2025, time.January, 1), d(2025, time.February, 1), 1000, 100, 50, 25),
	}
	eng := engine.NewAllocationEngine(mustStrategy(t, "standard"))

	waiver := engine.Transaction{
		ID: "waiver-1", LoanID: "loan-1",
		Amount: m(160), Date: d(2025, time.February, 1), Type: engine.TxWaiver,
	}
	result, err := eng.Allocate(waiver, eur, installments)
	if err != nil {
		t.Fatalf("waiver: %v", err)
	}

	assertMoney(t, 100, installments[0].Waived.Interest, "interest waived")
	assertMoney(t, 0, installments[0].Paid.Total(), "nothing paid by a waiver")
	assertMoney(t, 0, installments[0].Waived.Penalty, "penalty not waived")
	assertMoney(t, 60, result.Unallocated, "waiver remainder")
}

func TestAllocate_WaiverSpillsToNextInstallmentInterest(t *testing.T) {
	// GIVEN: two installments with 100 and 75 interest outstanding
	// WHEN: a waiver of 150 arrives
	// THEN: 100 is waived on installment 1 and 50 on installment 2

	installments := standardInstallments()
	eng := engine.NewAllocationEngine(mustStrategy(t, "standard"))

	waiver := engine.Transaction{
		ID: "waiver-1", LoanID: "loan-1",
		Amount: m(150), Date: d(2025, time.March, 1), Type: engine.TxWaiver,
	}
	result, err := eng.Allocate(waiver, eur, installments)
	if err != nil {
		t.Fatalf("waiver: %v", err)
	}

	assertMoney(t, 100, installments[0].Waived.Interest, "installment 1 interest waived")
	assertMoney(t, 50, installments[1].Waived.Interest, "installment 2 interest waived")
	assertMoney(t, 0, result.Unallocated, "no remainder")
}

// =============================================================================
// ERROR CONDITIONS AND ATOMICITY
// =============================================================================

func TestAllocate_CurrencyMismatchLeavesStateUntouched(t *testing.T) {
	installments := standardInstallments()
	eng := engine.NewAllocationEngine(mustStrategy(t, "standard"))

	usd := money.NewCurrency("USD", 2)
	tx := engine.Transaction{
		ID: "tx-1", Amount: money.NewFromFloat(600, usd),
		Date: d(2025, time.February, 1), Type: engine.TxRepayment,
	}

	_, err := eng.Allocate(tx, eur, installments)
	if !errors.Is(err, engine.ErrCurrencyMismatch) {
		t.Fatalf("want ErrCurrencyMismatch, got %v", err)
	}
	for i, inst := range installments {
		if !inst.Paid.Total().IsZero() {
			t.Errorf("installment %d mutated by failed allocation", i+1)
		}
	}
}

func TestAllocate_NegativeAmountRejected(t *testing.T) {
	installments := standardInstallments()
	eng := engine.NewAllocationEngine(mustStrategy(t, "standard"))

	_, err := eng.Allocate(repayment(-100, d(2025, time.February, 1)), eur, installments)
	if !errors.Is(err, engine.ErrInvalidAmount) {
		t.Fatalf("want ErrInvalidAmount, got %v", err)
	}
}

func TestAllocate_EmptyScheduleSurfacesRemainder(t *testing.T) {
	// GIVEN: no installments
	// WHEN: 500 is repaid under a crediting strategy
	// THEN: the full amount is surfaced as unallocated, never dropped

	eng := engine.NewAllocationEngine(mustStrategy(t, "standard"))

	result, err := eng.Allocate(repayment(500, d(2025, time.February, 1)), eur, nil)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	assertMoney(t, 500, result.Unallocated, "full amount unallocated")
}

func TestAllocate_RejectPolicyAbortsOnOverpayment(t *testing.T) {
	// GIVEN: one installment totaling 1175 and the rejecting "strict"
	//        strategy
	// WHEN: 1500 is repaid
	// THEN: the allocation aborts with ErrUnallocatableAmount and the
	//       installment is left exactly as it was

	installments := []*engine.Installment{
		installment(1, d(2025, time.January, 1), d(2025, time.February, 1), 1000, 100, 50, 25),
	}
	eng := engine.NewAllocationEngine(mustStrategy(t, "strict"))

	_, err := eng.Allocate(repayment(1500, d(2025, time.February, 1)), eur, installments)
	if !errors.Is(err, engine.ErrUnallocatableAmount) {
		t.Fatalf("want ErrUnallocatableAmount, got %v", err)
	}

	var ua *engine.UnallocatableAmountError
	if !errors.As(err, &ua) {
		t.Fatal("want typed UnallocatableAmountError")
	}
	assertMoney(t, 325, ua.Remainder, "remainder carried on the error")

	if !installments[0].Paid.Total().IsZero() {
		t.Error("rejected allocation must not mutate installments")
	}
}

func TestAllocate_ChargebackRoutedToWrongEntryPoint(t *testing.T) {
	eng := engine.NewAllocationEngine(mustStrategy(t, "standard"))
	tx := engine.Transaction{ID: "cb-1", Amount: m(100), Date: d(2025, time.February, 1), Type: engine.TxChargeback}

	_, err := eng.Allocate(tx, eur, standardInstallments())
	if !errors.Is(err, engine.ErrWrongTransactionType) {
		t.Fatalf("want ErrWrongTransactionType, got %v", err)
	}
}

// =============================================================================
// INVARIANTS
// =============================================================================

func TestAllocate_MoneyConservation(t *testing.T) {
	// For every strategy and several amounts: allocated + unallocated
	// equals the transaction amount exactly.

	amounts := []float64{0.01, 125.37, 600, 1175, 2500, 5000}
	for _, strategy := range engine.Strategies() {
		for _, amount := range amounts {
			installments := standardInstallments()
			eng := engine.NewAllocationEngine(strategy)

			result, err := eng.Allocate(repayment(amount, d(2025, time.March, 10)), eur, installments)
			if errors.Is(err, engine.ErrUnallocatableAmount) {
				continue // rejecting strategies abort instead of crediting
			}
			if err != nil {
				t.Fatalf("%s/%v: allocate: %v", strategy.Code, amount, err)
			}
			if !result.Total().Equal(m(amount)) {
				t.Errorf("%s/%v: conservation violated: allocated %v + unallocated %v",
					strategy.Code, amount, result.TotalAllocated(), result.Unallocated)
			}
		}
	}
}

func TestAllocate_OutstandingNeverNegative(t *testing.T) {
	for _, strategy := range engine.Strategies() {
		installments := standardInstallments()
		eng := engine.NewAllocationEngine(strategy)

		_, err := eng.Allocate(repayment(10000, d(2025, time.March, 10)), eur, installments)
		if errors.Is(err, engine.ErrUnallocatableAmount) {
			continue
		}
		if err != nil {
			t.Fatalf("%s: allocate: %v", strategy.Code, err)
		}
		for i, inst := range installments {
			for _, c := range engine.Components {
				if inst.Outstanding(c).IsNegative() {
					t.Errorf("%s: installment %d %s outstanding negative", strategy.Code, i+1, c)
				}
			}
		}
	}
}
