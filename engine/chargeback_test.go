/*
chargeback_test.go - Inverse allocation behavior

Covers the inverse law (allocate then fully charge back restores the
starting state), partial LIFO unwinding, the excess remainder, and the
entry-point guards.
*/
package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/warp/loan-engine/engine"
)

func chargeback(amount float64, relatedID string) engine.Transaction {
	return engine.Transaction{
		ID:        "cb-1",
		LoanID:    "loan-1",
		Amount:    m(amount),
		Date:      d(2025, time.April, 20),
		Type:      engine.TxChargeback,
		RelatedID: engine.TransactionID(relatedID),
	}
}

func TestChargeback_FullReversalRestoresOutstanding(t *testing.T) {
	// GIVEN: 600 allocated against a partially covered installment
	// WHEN: the full 600 is charged back
	// THEN: every component's outstanding returns to its pre-payment value

	installments := []*engine.Installment{
		installment(1, d(2025, time.January, 1), d(2025, time.February, 1), 1000, 100, 50, 25),
	}
	eng := engine.NewAllocationEngine(mustStrategy(t, "standard"))

	before := make(map[engine.Component]string)
	for _, c := range engine.Components {
		before[c] = installments[0].Outstanding(c).String()
	}

	original, err := eng.Allocate(repayment(600, d(2025, time.February, 1)), eur, installments)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	result, err := eng.Chargeback(chargeback(600, "tx-1"), original, eur, installments)
	if err != nil {
		t.Fatalf("chargeback: %v", err)
	}

	for _, c := range engine.Components {
		if got := installments[0].Outstanding(c).String(); got != before[c] {
			t.Errorf("%s outstanding not restored: want %s, got %s", c, before[c], got)
		}
	}
	assertMoney(t, 600, result.TotalAllocated(), "reinstated total")
	assertMoney(t, 0, result.Unallocated, "no excess")
	if installments[0].ObligationsMet {
		t.Error("obligations flag must clear after the reversal")
	}
}

func TestChargeback_PartialUnwindsNewestEntriesFirst(t *testing.T) {
	// GIVEN: 600 allocated under penalty->fee->interest->principal, so the
	//        last recorded entry is principal 425
	// WHEN: 200 is charged back
	// THEN: only principal is reinstated; penalty, fee and interest stay paid

	installments := []*engine.Installment{
		installment(1, d(2025, time.January, 1), d(2025, time.February, 1), 1000, 100, 50, 25),
	}
	eng := engine.NewAllocationEngine(mustStrategy(t, "standard"))

	original, err := eng.Allocate(repayment(600, d(2025, time.February, 1)), eur, installments)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	assertMoney(t, 425, installments[0].Paid.Principal, "principal paid before reversal")

	_, err = eng.Chargeback(chargeback(200, "tx-1"), original, eur, installments)
	if err != nil {
		t.Fatalf("chargeback: %v", err)
	}

	assertMoney(t, 225, installments[0].Paid.Principal, "principal after reversal")
	assertMoney(t, 25, installments[0].Paid.Penalty, "penalty untouched")
	assertMoney(t, 50, installments[0].Paid.Fee, "fee untouched")
	assertMoney(t, 100, installments[0].Paid.Interest, "interest untouched")
}

func TestChargeback_ExcessSurfacedAsUnallocated(t *testing.T) {
	// GIVEN: an original allocation of 600
	// WHEN: 800 is charged back
	// THEN: 600 is reinstated and the excess 200 is surfaced, never forced
	//       onto installments

	installments := []*engine.Installment{
		installment(1, d(2025, time.January, 1), d(2025, time.February, 1), 1000, 100, 50, 25),
	}
	eng := engine.NewAllocationEngine(mustStrategy(t, "standard"))

	original, err := eng.Allocate(repayment(600, d(2025, time.February, 1)), eur, installments)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	result, err := eng.Chargeback(chargeback(800, "tx-1"), original, eur, installments)
	if err != nil {
		t.Fatalf("chargeback: %v", err)
	}

	assertMoney(t, 600, result.TotalAllocated(), "reinstated total")
	assertMoney(t, 200, result.Unallocated, "excess remainder")
	assertMoney(t, 1175, installments[0].TotalOutstanding(), "fully restored")
}

func TestChargeback_CapsAtCurrentlyPaid(t *testing.T) {
	// GIVEN: two partial chargebacks against the same 600 original
	// WHEN: the second would reinstate amounts the first already unwound
	// THEN: reinstatement is capped at what is still paid

	installments := []*engine.Installment{
		installment(1, d(2025, time.January, 1), d(2025, time.February, 1), 1000, 100, 50, 25),
	}
	eng := engine.NewAllocationEngine(mustStrategy(t, "standard"))

	original, err := eng.Allocate(repayment(600, d(2025, time.February, 1)), eur, installments)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if _, err := eng.Chargeback(chargeback(500, "tx-1"), original, eur, installments); err != nil {
		t.Fatalf("first chargeback: %v", err)
	}
	second, err := eng.Chargeback(chargeback(500, "tx-1"), original, eur, installments)
	if err != nil {
		t.Fatalf("second chargeback: %v", err)
	}

	// Only 100 was still paid after the first 500 was unwound.
	assertMoney(t, 100, second.TotalAllocated(), "second reinstatement capped")
	assertMoney(t, 400, second.Unallocated, "second remainder")
	assertMoney(t, 0, installments[0].Paid.Total(), "nothing left paid")
}

func TestChargeback_WaiverReversalReducesWaived(t *testing.T) {
	// GIVEN: a waiver of 100 interest
	// WHEN: the waiver is charged back in full
	// THEN: the waived amount returns to zero and interest is outstanding again

	installments := []*engine.Installment{
		installment(1, d(2025, time.January, 1), d(2025, time.February, 1), 1000, 100, 50, 25),
	}
	eng := engine.NewAllocationEngine(mustStrategy(t, "standard"))

	waiver := engine.Transaction{
		ID: "waiver-1", LoanID: "loan-1",
		Amount: m(100), Date: d(2025, time.February, 1), Type: engine.TxWaiver,
	}
	original, err := eng.Allocate(waiver, eur, installments)
	if err != nil {
		t.Fatalf("waiver: %v", err)
	}
	assertMoney(t, 0, installments[0].Outstanding(engine.ComponentInterest), "interest waived away")

	if _, err := eng.Chargeback(chargeback(100, "waiver-1"), original, eur, installments); err != nil {
		t.Fatalf("chargeback: %v", err)
	}

	assertMoney(t, 0, installments[0].Waived.Interest, "waived amount reversed")
	assertMoney(t, 100, installments[0].Outstanding(engine.ComponentInterest), "interest outstanding again")
}

func TestChargeback_RequiresMatchingOriginal(t *testing.T) {
	installments := standardInstallments()
	eng := engine.NewAllocationEngine(mustStrategy(t, "standard"))

	original, err := eng.Allocate(repayment(600, d(2025, time.February, 1)), eur, installments)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	t.Run("nil original", func(t *testing.T) {
		_, err := eng.Chargeback(chargeback(100, "tx-1"), nil, eur, installments)
		if !errors.Is(err, engine.ErrOriginalAllocationRequired) {
			t.Fatalf("want ErrOriginalAllocationRequired, got %v", err)
		}
	})
	t.Run("mismatched related id", func(t *testing.T) {
		_, err := eng.Chargeback(chargeback(100, "some-other-tx"), original, eur, installments)
		if !errors.Is(err, engine.ErrOriginalAllocationRequired) {
			t.Fatalf("want ErrOriginalAllocationRequired, got %v", err)
		}
	})
	t.Run("wrong transaction type", func(t *testing.T) {
		_, err := eng.Chargeback(repayment(100, d(2025, time.April, 1)), original, eur, installments)
		if !errors.Is(err, engine.ErrWrongTransactionType) {
			t.Fatalf("want ErrWrongTransactionType, got %v", err)
		}
	})
}

func TestChargeback_SkipsPeriodsRemovedFromSchedule(t *testing.T) {
	// GIVEN: an original allocation against period 1, but the schedule was
	//        regenerated without it
	// WHEN: the chargeback runs against the new schedule
	// THEN: nothing is reinstated and the full amount is surfaced

	installments := []*engine.Installment{
		installment(1, d(2025, time.January, 1), d(2025, time.February, 1), 1000, 100, 50, 25),
	}
	eng := engine.NewAllocationEngine(mustStrategy(t, "standard"))

	original, err := eng.Allocate(repayment(600, d(2025, time.February, 1)), eur, installments)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	regenerated := []*engine.Installment{
		installment(7, d(2025, time.July, 1), d(2025, time.August, 1), 500, 40, 0, 0),
	}
	result, err := eng.Chargeback(chargeback(600, "tx-1"), original, eur, regenerated)
	if err != nil {
		t.Fatalf("chargeback: %v", err)
	}

	assertMoney(t, 600, result.Unallocated, "full amount surfaced")
	if len(result.Entries) != 0 {
		t.Errorf("no entries expected, got %d", len(result.Entries))
	}
	assertMoney(t, 0, regenerated[0].Paid.Total(), "regenerated schedule untouched")
}
