package orders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
	"github.com/qz-yi/Satha-Choice-sub000/internal/wallet"
)

// acceptAndStart drives an order through accepted, arrived and in_progress.
func (f *fixture) acceptAndStart(t *testing.T, orderID, driverID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.Accept(ctx, orderID, driverID, models.DriverInfo{}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.UpdateStage(ctx, orderID, models.StatusArrived, driverID, nil); err != nil {
		t.Fatalf("arrived: %v", err)
	}
	if _, err := f.svc.UpdateStage(ctx, orderID, models.StatusInProgress, driverID, nil); err != nil {
		t.Fatalf("in_progress: %v", err)
	}
}

func countFees(t *testing.T, f *fixture, driverID string) int {
	t.Helper()
	txs, err := f.ledger.Transactions(context.Background(), models.OwnerDriver, driverID)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	n := 0
	for _, tx := range txs {
		if tx.Kind == models.TxFee {
			n++
		}
	}
	return n
}

func TestCompleteDebitsCommissionOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	f.addDriver(t, "D1", "بابل", models.DriverApproved, true, 2000)
	req := f.createRequest(t, "بابل")
	f.acceptAndStart(t, req.ID, "D1")

	got, err := f.svc.Complete(ctx, req.ID, "D1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
	if b, _ := f.ledger.Balance(ctx, models.OwnerDriver, "D1"); b != 1000 {
		t.Fatalf("balance = %d, want 1000", b)
	}
	if n := countFees(t, f, "D1"); n != 1 {
		t.Fatalf("fee transactions = %d", n)
	}

	// Duplicate completion signal: same result, no second debit.
	again, err := f.svc.Complete(ctx, req.ID, "D1")
	if err != nil {
		t.Fatalf("duplicate complete: %v", err)
	}
	if again.Status != models.StatusCompleted {
		t.Fatalf("status = %s", again.Status)
	}
	if b, _ := f.ledger.Balance(ctx, models.OwnerDriver, "D1"); b != 1000 {
		t.Fatalf("balance after duplicate = %d", b)
	}
	if n := countFees(t, f, "D1"); n != 1 {
		t.Fatalf("fee transactions after duplicate = %d", n)
	}
	if len(f.events.closed) != 1 {
		t.Fatalf("close signals = %d, want 1", len(f.events.closed))
	}
}

func TestConcurrentCompleteSingleDebit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	f.addDriver(t, "d1", "بابل", models.DriverApproved, true, 5000)
	req := f.createRequest(t, "بابل")
	f.acceptAndStart(t, req.ID, "d1")

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Complete(ctx, req.ID, "d1")
		}()
	}
	wg.Wait()

	if n := countFees(t, f, "d1"); n != 1 {
		t.Fatalf("fee transactions = %d, want 1", n)
	}
	if b, _ := f.ledger.Balance(ctx, models.OwnerDriver, "d1"); b != 4000 {
		t.Fatalf("balance = %d, want 4000", b)
	}
}

// flakyLedger fails a fixed number of appends before delegating.
type flakyLedger struct {
	wallet.Ledger
	failures int
}

func (f *flakyLedger) Append(ctx context.Context, ownerType models.OwnerType, ownerID string, amount int64, kind models.TransactionKind) (*models.Transaction, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("ledger unavailable")
	}
	return f.Ledger.Append(ctx, ownerType, ownerID, amount, kind)
}

func TestCompleteDebitFailureReopensSettlement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	f.addDriver(t, "d1", "بابل", models.DriverApproved, true, 2000)
	req := f.createRequest(t, "بابل")
	f.acceptAndStart(t, req.ID, "d1")

	f.svc.Ledger = &flakyLedger{Ledger: f.ledger, failures: 1}

	if _, err := f.svc.Complete(ctx, req.ID, "d1"); err == nil {
		t.Fatal("expected debit failure to surface")
	}
	// The completion was rolled back, so the retry settles for real.
	got, _ := f.store.Get(ctx, req.ID)
	if got.Status != models.StatusInProgress {
		t.Fatalf("status after failed debit = %s", got.Status)
	}

	got, err := f.svc.Complete(ctx, req.ID, "d1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
	if b, _ := f.ledger.Balance(ctx, models.OwnerDriver, "d1"); b != 1000 {
		t.Fatalf("balance = %d, want 1000", b)
	}
	if n := countFees(t, f, "d1"); n != 1 {
		t.Fatalf("fee transactions = %d, want 1", n)
	}
}

func TestCompleteRejectsWrongDriver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	f.addDriver(t, "d1", "بابل", models.DriverApproved, true, 2000)
	f.addDriver(t, "d2", "بابل", models.DriverApproved, true, 2000)
	req := f.createRequest(t, "بابل")
	f.acceptAndStart(t, req.ID, "d1")

	if _, err := f.svc.Complete(ctx, req.ID, "d2"); !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("err = %v", err)
	}
	if b, _ := f.ledger.Balance(ctx, models.OwnerDriver, "d2"); b != 2000 {
		t.Fatalf("wrong driver charged: %d", b)
	}
}

func TestDeleteEmitsTerminalSignalAndToleratesMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	req := f.createRequest(t, "بابل")

	if err := f.svc.Delete(ctx, req.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.store.Get(ctx, req.ID); err == nil {
		t.Fatal("request still present")
	}
	// Already gone: stays a no-op, still tears the room down.
	if err := f.svc.Delete(ctx, req.ID); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}

	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	if len(f.events.closed) != 2 {
		t.Fatalf("close signals = %d", len(f.events.closed))
	}
	if len(f.events.statuses) == 0 || f.events.statuses[len(f.events.statuses)-1] != statusDeleted {
		t.Fatalf("statuses = %v", f.events.statuses)
	}
}

func TestAdjustWalletValidatesKind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	f.addDriver(t, "d1", "بابل", models.DriverApproved, true, 0)

	tx, err := f.svc.AdjustWallet(ctx, models.OwnerDriver, "d1", 5000, models.TxDeposit)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if tx.Amount != 5000 || tx.Kind != models.TxDeposit {
		t.Fatalf("tx = %+v", tx)
	}
	if b, _ := f.ledger.Balance(ctx, models.OwnerDriver, "d1"); b != 5000 {
		t.Fatalf("balance = %d", b)
	}

	if _, err := f.svc.AdjustWallet(ctx, models.OwnerDriver, "d1", 1, models.TransactionKind("refund")); err == nil {
		t.Fatal("unknown kind accepted")
	}
}
