package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"opsdesk/internal/platform/metrics"
)

func newTestService(hour, minute int) (*Service, *MemoryStore, *metrics.Collector) {
	gate, _ := gateAt(hour, minute)
	store := NewMemoryStore()
	collector := metrics.New()
	return NewService(store, gate, collector), store, collector
}

func TestServiceCheckInPersistsAndCounts(t *testing.T) {
	svc, store, collector := newTestService(9, 1)
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, CheckInRequest{Subject: rahim, Verdict: allowed, Position: desk}); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected reason required, got %v", err)
	}
	rec, err := svc.CheckIn(ctx, CheckInRequest{Subject: rahim, Verdict: allowed, Position: desk, Reason: "bus"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, err := store.Get(ctx, rec.ID)
	if err != nil || stored.Status != StatusLate {
		t.Fatalf("expected stored LATE record, got %+v %v", stored, err)
	}
	if _, err := svc.CheckIn(ctx, CheckInRequest{Subject: rahim, Verdict: allowed, Position: desk, Reason: "again"}); !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	if collector.Outcome("check_in", "reason_required") != 1 || collector.Outcome("check_in", StatusLate) != 1 || collector.Outcome("check_in", "duplicate") != 1 {
		t.Fatalf("unexpected outcomes: %v", collector.Snapshot()["gateOutcomes"])
	}
}

func TestServiceCheckInWithoutVerdictStoresNothing(t *testing.T) {
	svc, store, _ := newTestService(8, 0)
	if _, err := svc.CheckIn(context.Background(), CheckInRequest{Subject: rahim}); !errors.Is(err, ErrNoVerdict) {
		t.Fatalf("expected no verdict, got %v", err)
	}
	records, _ := store.ListRange(context.Background(), "2000-01-01", "2100-01-01")
	if len(records) != 0 {
		t.Fatalf("expected empty store, got %d", len(records))
	}
}

func TestServiceCheckOut(t *testing.T) {
	svc, store, _ := newTestService(8, 0)
	ctx := context.Background()
	subject := rahim
	subject.RequireCheckoutLocation = true

	rec, err := svc.CheckIn(ctx, CheckInRequest{Subject: subject, Verdict: allowed, Position: desk})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.CheckOut(ctx, subject, rec.ID, false, nil); !errors.Is(err, ErrNoVerdict) {
		t.Fatalf("expected no verdict, got %v", err)
	}
	out, err := svc.CheckOut(ctx, subject, rec.ID, false, allowed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, _ := store.Get(ctx, rec.ID)
	if stored.CheckOutTime == nil || !stored.CheckOutTime.Equal(*out.CheckOutTime) {
		t.Fatalf("checkout not persisted: %+v", stored)
	}
}

func TestStoreCheckOutIsWrittenOnce(t *testing.T) {
	svc, store, _ := newTestService(8, 0)
	ctx := context.Background()
	rec, err := svc.CheckIn(ctx, CheckInRequest{Subject: rahim, Verdict: allowed, Position: desk})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := rec
	firstOut := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	first.CheckOutTime = &firstOut
	if err := store.CheckOut(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	late := rec
	lateOut := firstOut.Add(time.Minute)
	late.CheckOutTime = &lateOut
	if err := store.CheckOut(ctx, late); !errors.Is(err, ErrAlreadyCheckedOut) {
		t.Fatalf("expected already checked out, got %v", err)
	}
	stored, _ := store.Get(ctx, rec.ID)
	if !stored.CheckOutTime.Equal(firstOut) {
		t.Fatalf("check-out time overwritten: %v", stored.CheckOutTime)
	}
	missing := rec
	missing.ID = "nope"
	if err := store.CheckOut(ctx, missing); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServiceConcurrentCheckOutsSucceedOnce(t *testing.T) {
	svc, _, collector := newTestService(8, 0)
	ctx := context.Background()
	rec, err := svc.CheckIn(ctx, CheckInRequest{Subject: rahim, Verdict: allowed, Position: desk})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CheckOut(ctx, rahim, rec.ID, false, allowed)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, ErrAlreadyCheckedOut):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one check-out, got %d", ok)
	}
	if collector.Outcome("check_out", "ok") != 1 || collector.Outcome("check_out", "already_checked_out") != callers-1 {
		t.Fatalf("unexpected outcomes: %v", collector.Snapshot()["gateOutcomes"])
	}
}

func TestServiceMarkAbsences(t *testing.T) {
	svc, _, _ := newTestService(8, 0)
	ctx := context.Background()
	if _, err := svc.CheckIn(ctx, CheckInRequest{Subject: rahim, Verdict: allowed, Position: desk}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	roster := []Member{{StaffID: "s-1", StaffName: "Rahim"}, {StaffID: "s-2", StaffName: "Karim"}}
	created, err := svc.MarkAbsences(ctx, roster, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 || created[0].StaffID != "s-2" {
		t.Fatalf("unexpected absences: %+v", created)
	}
	again, err := svc.MarkAbsences(ctx, roster, "")
	if err != nil || len(again) != 0 {
		t.Fatalf("second run should be a no-op, got %d %v", len(again), err)
	}
}

func TestServiceHistory(t *testing.T) {
	svc, _, _ := newTestService(8, 0)
	ctx := context.Background()
	day := time.Date(2026, 2, 27, 0, 0, 0, 0, dhaka).Format(DayLayout)
	if _, err := svc.FileManual(ctx, ManualEntry{Subject: rahim, Day: day, Status: StatusLeave, Note: "family"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.FileManual(ctx, ManualEntry{Subject: Subject{StaffID: "s-2", StaffName: "Karim"}, Status: StatusPresent, Note: "kiosk down"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mine, err := svc.History(ctx, "s-1", "2026-02-01", "2026-03-31")
	if err != nil || len(mine) != 1 || mine[0].Status != StatusLeave {
		t.Fatalf("unexpected history: %+v %v", mine, err)
	}
	all, err := svc.History(ctx, "", "2026-02-01", "2026-03-31")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected two records, got %d %v", len(all), err)
	}
}
