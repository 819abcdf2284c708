package store

import (
	"context"
	"testing"

	"github.com/solveiti/trgscout/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSeedNew_InsertsOnlyUnknownURLs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	inserted, err := s.SeedNew(ctx, []string{"https://site.hr/trgovina/a", "https://site.hr/trgovina/b"})
	if err != nil {
		t.Fatalf("SeedNew: %v", err)
	}
	if len(inserted) != 2 {
		t.Fatalf("inserted = %d, want 2", len(inserted))
	}

	// S5/S7: re-seeding the same URLs is idempotent.
	inserted, err = s.SeedNew(ctx, []string{"https://site.hr/trgovina/a", "https://site.hr/trgovina/b"})
	if err != nil {
		t.Fatalf("SeedNew (second call): %v", err)
	}
	if len(inserted) != 0 {
		t.Fatalf("inserted on second call = %d, want 0", len(inserted))
	}
}

func TestUpsertOutcome_FirstVisitHasZeroDeltas(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.SeedNew(ctx, []string{"https://site.hr/trgovina/a"}); err != nil {
		t.Fatalf("SeedNew: %v", err)
	}

	snap, err := s.UpsertOutcome(ctx, "https://site.hr/trgovina/a", types.Outcome{
		IsValid: true, IsAutoMoto: true, New: 12, Used: 3, Test: 0,
	})
	if err != nil {
		t.Fatalf("UpsertOutcome: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a snapshot row for a valid visit")
	}
	if snap.DeltaNew != 0 || snap.DeltaUsed != 0 || snap.DeltaTest != 0 || snap.DeltaTotal != 0 {
		t.Errorf("first-visit deltas = %+v, want all zero", snap)
	}
	if snap.ActiveTotal != 15 {
		t.Errorf("ActiveTotal = %d, want 15", snap.ActiveTotal)
	}

	st, err := s.GetStore(ctx, "https://site.hr/trgovina/a")
	if err != nil {
		t.Fatalf("GetStore: %v", err)
	}
	if st.TotalVehicleCount != st.NewVehicleCount+st.UsedVehicleCount+st.TestVehicleCount {
		t.Errorf("invariant 1 violated: %+v", st)
	}
}

func TestUpsertOutcome_SecondVisitComputesDelta(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	url := "https://site.hr/trgovina/a"

	if _, err := s.SeedNew(ctx, []string{url}); err != nil {
		t.Fatalf("SeedNew: %v", err)
	}
	if _, err := s.UpsertOutcome(ctx, url, types.Outcome{IsValid: true, IsAutoMoto: true, New: 12, Used: 3}); err != nil {
		t.Fatalf("first UpsertOutcome: %v", err)
	}

	snap, err := s.UpsertOutcome(ctx, url, types.Outcome{IsValid: true, IsAutoMoto: true, New: 9, Used: 3})
	if err != nil {
		t.Fatalf("second UpsertOutcome: %v", err)
	}
	// S2: store previously had active_new=12, now 9 -> delta_new = -3.
	if snap.DeltaNew != -3 {
		t.Errorf("DeltaNew = %d, want -3", snap.DeltaNew)
	}
	if snap.ActiveNew != 9 {
		t.Errorf("ActiveNew = %d, want 9", snap.ActiveNew)
	}
}

func TestUpsertOutcome_InvalidVisitPreservesCountsAndSkipsSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	url := "https://site.hr/trgovina/d"

	if _, err := s.SeedNew(ctx, []string{url}); err != nil {
		t.Fatalf("SeedNew: %v", err)
	}
	if _, err := s.UpsertOutcome(ctx, url, types.Outcome{IsValid: true, IsAutoMoto: true, New: 5, Used: 3}); err != nil {
		t.Fatalf("seed visit: %v", err)
	}

	snap, err := s.UpsertOutcome(ctx, url, types.Outcome{IsValid: false})
	if err != nil {
		t.Fatalf("UpsertOutcome (invalid visit): %v", err)
	}
	if snap != nil {
		t.Errorf("expected no snapshot row for an invalid visit, got %+v", snap)
	}

	st, err := s.GetStore(ctx, url)
	if err != nil {
		t.Fatalf("GetStore: %v", err)
	}
	if st.IsValid {
		t.Error("IsValid should be false after an unreachable visit")
	}
	if st.NewVehicleCount != 5 || st.UsedVehicleCount != 3 {
		t.Errorf("counts should be preserved on an unreachable visit, got %+v", st)
	}
}

func TestListToScrape_OrderedByUpdatedAtAscending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	urls := []string{"https://site.hr/trgovina/a", "https://site.hr/trgovina/b", "https://site.hr/trgovina/c"}
	if _, err := s.SeedNew(ctx, urls); err != nil {
		t.Fatalf("SeedNew: %v", err)
	}
	// Touch "b" so it becomes most-recently-updated.
	if _, err := s.UpsertOutcome(ctx, "https://site.hr/trgovina/b", types.Outcome{IsValid: true}); err != nil {
		t.Fatalf("UpsertOutcome: %v", err)
	}

	got, err := s.ListToScrape(ctx, 0)
	if err != nil {
		t.Fatalf("ListToScrape: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[len(got)-1] != "https://site.hr/trgovina/b" {
		t.Errorf("most recently scraped URL should sort last, got order %v", got)
	}
}

func TestUpsertOutcome_TotalAlwaysMatchesTypedSum(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	url := "https://site.hr/trgovina/e"
	if _, err := s.SeedNew(ctx, []string{url}); err != nil {
		t.Fatalf("SeedNew: %v", err)
	}

	snap, err := s.UpsertOutcome(ctx, url, types.Outcome{IsValid: true, New: 1, Used: 1, Test: 1})
	if err != nil {
		t.Fatalf("UpsertOutcome: %v", err)
	}
	if snap.ActiveTotal != snap.ActiveNew+snap.ActiveUsed+snap.ActiveTest {
		t.Errorf("invariant 1 violated on ledger row: %+v", snap)
	}
}
