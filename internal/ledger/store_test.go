package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"narrate/internal/ledger"
)

func openLedger(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAdvancesStatus(t *testing.T) {
	store := openLedger(t)
	ctx := context.Background()

	events := []ledger.Event{
		{RunID: "r1", Work: "book", Chapter: 1, Stage: "script", Outcome: ledger.OutcomeDone, Reached: ledger.StatusScripted},
		{RunID: "r1", Work: "book", Chapter: 1, Stage: "characters", Outcome: ledger.OutcomeSkipped, Reached: ledger.StatusRegistered},
	}
	for _, ev := range events {
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	state, ok, err := store.Chapter(ctx, "book", 1)
	if err != nil || !ok {
		t.Fatalf("Chapter: ok=%v err=%v", ok, err)
	}
	if state.Status != ledger.StatusRegistered || state.Failed() {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestRecordFailureKeepsStatus(t *testing.T) {
	store := openLedger(t)
	ctx := context.Background()

	if err := store.Record(ctx, ledger.Event{RunID: "r1", Work: "book", Chapter: 2, Stage: "script", Outcome: ledger.OutcomeDone, Reached: ledger.StatusScripted}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Record(ctx, ledger.Event{RunID: "r2", Work: "book", Chapter: 2, Stage: "assemble", Outcome: ledger.OutcomeFailed, ErrorKind: "unbound_role", ErrorMessage: "unbound role: 苏晚"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	state, _, err := store.Chapter(ctx, "book", 2)
	if err != nil {
		t.Fatalf("Chapter: %v", err)
	}
	if state.Status != ledger.StatusScripted || state.FailedStage != "assemble" || state.ErrorKind != "unbound_role" || state.RunID != "r2" {
		t.Fatalf("unexpected state %+v", state)
	}

	if err := store.Record(ctx, ledger.Event{RunID: "r3", Work: "book", Chapter: 2, Stage: "assemble", Outcome: ledger.OutcomeDone, Reached: ledger.StatusAssembled, Artifact: "/x/full_drama.wav"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	state, _, _ = store.Chapter(ctx, "book", 2)
	if state.Failed() || state.Status != ledger.StatusAssembled || state.Artifact != "/x/full_drama.wav" {
		t.Fatalf("failure not cleared: %+v", state)
	}

	events, err := store.Events(ctx, "book", 2, 0)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 3 || events[0].RunID != "r3" || events[1].Outcome != ledger.OutcomeFailed {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestRewindAndChapters(t *testing.T) {
	store := openLedger(t)
	ctx := context.Background()
	for _, chapter := range []int{3, 1, 2} {
		if err := store.Record(ctx, ledger.Event{RunID: "r", Work: "book", Chapter: chapter, Stage: "assemble", Outcome: ledger.OutcomeDone, Reached: ledger.StatusAssembled}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := store.Rewind(ctx, "book", 2, ledger.StatusScripted); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	states, err := store.Chapters(ctx, "book")
	if err != nil {
		t.Fatalf("Chapters: %v", err)
	}
	if len(states) != 3 || states[0].Chapter != 1 || states[2].Chapter != 3 {
		t.Fatalf("chapters not ordered: %+v", states)
	}
	if states[1].Status != ledger.StatusScripted {
		t.Fatalf("rewind not applied: %+v", states[1])
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	first, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.Record(context.Background(), ledger.Event{RunID: "r", Work: "w", Chapter: 1, Stage: "script", Outcome: ledger.OutcomeDone, Reached: ledger.StatusScripted}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	_ = first.Close()

	second, err := ledger.Open(path)
	if errors.Is(err, ledger.ErrSchemaMismatch) || err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if _, ok, _ := second.Chapter(context.Background(), "w", 1); !ok {
		t.Fatalf("state lost across reopen")
	}
}

func TestStatusRank(t *testing.T) {
	if ledger.StatusSplit.Rank() >= ledger.StatusAssembled.Rank() {
		t.Fatalf("status order broken")
	}
	if ledger.Status("bogus").Rank() != -1 {
		t.Fatalf("unknown status should rank lowest")
	}
}
