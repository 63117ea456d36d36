package calculator

import (
	"testing"

	"github.com/mmynk/settleup/internal/models"
)

func TestAllocatePayments_TargetedPaymentDoesNotSpillOver(t *testing.T) {
	// U2 owes U1 60,000 and U3 40,000.
	debts := BuildLedger([]*models.Expense{
		expense(1, 1, "120000", day(1), 1, 2),
		expense(2, 3, "80000", day(2), 3, 2),
	})

	alloc := AllocatePayments(debts, []*models.Payment{
		payment(10, 2, idPtr(1), "100000", day(3)),
	})

	assertRemainingInRange(t, alloc.Debts)
	assertAmount(t, "U2->U1 remaining", findDebt(t, alloc.Debts, 2, 1, 1).Remaining, "0")
	assertAmount(t, "U2->U3 remaining", findDebt(t, alloc.Debts, 2, 3, 2).Remaining, "40000")

	if len(alloc.Applications) != 1 {
		t.Fatalf("expected 1 application, got %d", len(alloc.Applications))
	}
	app := alloc.Applications[0]
	assertAmount(t, "applied", app.Applied, "60000")
	assertAmount(t, "unapplied", app.Unapplied, "40000")
}

func TestAllocatePayments_UntargetedOldestFirst(t *testing.T) {
	debts := BuildLedger([]*models.Expense{
		expense(1, 1, "100", day(5), 1, 2), // U2 owes U1 50 (newer)
		expense(2, 3, "60", day(1), 3, 2),  // U2 owes U3 30 (older)
	})

	alloc := AllocatePayments(debts, []*models.Payment{
		payment(1, 2, nil, "45", day(6)),
	})

	assertAmount(t, "U2->U3 remaining", findDebt(t, alloc.Debts, 2, 3, 2).Remaining, "0")
	assertAmount(t, "U2->U1 remaining", findDebt(t, alloc.Debts, 2, 1, 1).Remaining, "35")
	assertAmount(t, "unapplied", alloc.Applications[0].Unapplied, "0")
}

func TestAllocatePayments_PaymentOrder(t *testing.T) {
	debts := BuildLedger([]*models.Expense{
		expense(1, 1, "100", day(1), 1, 2), // U2 owes U1 50
		expense(2, 3, "100", day(2), 3, 2), // U2 owes U3 50
	})

	// The later untargeted payment must see the targeted one already applied.
	alloc := AllocatePayments(debts, []*models.Payment{
		payment(2, 2, nil, "50", day(10)),
		payment(1, 2, idPtr(1), "50", day(3)),
	})

	assertAmount(t, "U2->U1 remaining", findDebt(t, alloc.Debts, 2, 1, 1).Remaining, "0")
	assertAmount(t, "U2->U3 remaining", findDebt(t, alloc.Debts, 2, 3, 2).Remaining, "0")
	for _, app := range alloc.Applications {
		assertAmount(t, "unapplied", app.Unapplied, "0")
	}
}

func TestAllocatePayments_IgnoresPendingAndLeavesInputUntouched(t *testing.T) {
	debts := BuildLedger([]*models.Expense{expense(1, 1, "100", day(1), 1, 2)})
	pending := payment(1, 2, nil, "50", day(2))
	pending.Status = models.PaymentPending

	alloc := AllocatePayments(debts, []*models.Payment{pending})

	assertAmount(t, "remaining", findDebt(t, alloc.Debts, 2, 1, 1).Remaining, "50")
	if len(alloc.Applications) != 0 {
		t.Errorf("expected no applications, got %d", len(alloc.Applications))
	}

	AllocatePayments(debts, []*models.Payment{payment(2, 2, nil, "50", day(2))})
	assertAmount(t, "input remaining", debts[0].Remaining, "50")
}

func TestAllocatePayments_OverpaymentNeverGoesNegative(t *testing.T) {
	debts := BuildLedger([]*models.Expense{
		expense(1, 1, "90", day(1), 1, 2, 3),
		expense(2, 2, "40", day(2), 2, 1),
	})

	alloc := AllocatePayments(debts, []*models.Payment{
		payment(1, 2, nil, "1000", day(3)),
		payment(2, 3, idPtr(1), "10", day(3)),
		payment(3, 3, idPtr(1), "100", day(4)),
		payment(4, 1, idPtr(2), "5", day(4)),
	})

	assertRemainingInRange(t, alloc.Debts)
	assertAmount(t, "U2->U1", findDebt(t, alloc.Debts, 2, 1, 1).Remaining, "0")
	assertAmount(t, "U3->U1", findDebt(t, alloc.Debts, 3, 1, 1).Remaining, "0")
	assertAmount(t, "U1->U2", findDebt(t, alloc.Debts, 1, 2, 2).Remaining, "15")
}

func TestAllocatePayments_UserSummaries(t *testing.T) {
	debts := BuildLedger([]*models.Expense{expense(1, 1, "300", day(1), 1, 2, 3)})
	alloc := AllocatePayments(debts, []*models.Payment{payment(1, 2, idPtr(1), "40", day(2))})

	byID := make(map[int64]UserSummary)
	for _, u := range alloc.Users {
		byID[u.UserID] = u
	}
	if len(byID) != 3 {
		t.Fatalf("expected 3 users, got %d", len(byID))
	}
	assertAmount(t, "U2 owed", byID[2].TotalOwed, "100")
	assertAmount(t, "U2 paid", byID[2].TotalPaid, "40")
	assertAmount(t, "U2 remaining", byID[2].Remaining, "60")
	assertAmount(t, "U1 owed", byID[1].TotalOwed, "0")
}
