package stageexec

import (
	"context"
	"errors"
	"testing"

	"narrate/internal/ledger"
	"narrate/internal/logging"
	"narrate/internal/services"
	"narrate/internal/stage"
)

type recorder struct {
	events []ledger.Event
	err    error
}

func (r *recorder) Record(_ context.Context, ev ledger.Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestRunRecordsSuccess(t *testing.T) {
	rec := &recorder{}
	var sawStage string
	handler := stage.HandlerFunc(func(ctx context.Context, target stage.Target) (stage.Report, error) {
		sawStage, _ = services.StageFromContext(ctx)
		return stage.Report{Artifact: "/tmp/script.json"}, nil
	})

	report, err := Run(context.Background(), Options{
		Logger:    logging.NewNop(),
		Ledger:    rec,
		Handler:   handler,
		StageName: "script",
		Reached:   ledger.StatusScripted,
		Target:    stage.Target{Work: "novel", Chapter: 3},
		RunID:     "run-1",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Artifact != "/tmp/script.json" {
		t.Fatalf("unexpected report %+v", report)
	}
	if sawStage != "script" {
		t.Fatalf("expected stage in context, got %q", sawStage)
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected one event, got %d", len(rec.events))
	}
	ev := rec.events[0]
	if ev.Outcome != ledger.OutcomeDone || ev.Reached != ledger.StatusScripted || ev.Chapter != 3 || ev.RunID != "run-1" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRunRecordsSkip(t *testing.T) {
	rec := &recorder{}
	handler := stage.HandlerFunc(func(context.Context, stage.Target) (stage.Report, error) {
		return stage.Report{Skipped: true}, nil
	})
	if _, err := Run(context.Background(), Options{Ledger: rec, Handler: handler, StageName: "characters", Reached: ledger.StatusRegistered}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.events[0].Outcome != ledger.OutcomeSkipped || rec.events[0].Reached != ledger.StatusRegistered {
		t.Fatalf("unexpected event %+v", rec.events[0])
	}
}

func TestRunRecordsFailure(t *testing.T) {
	rec := &recorder{}
	stageErr := services.Wrap(services.ErrUnboundRole, "assemble", "resolve voices", "unbound roles: 老周", nil)
	handler := stage.HandlerFunc(func(context.Context, stage.Target) (stage.Report, error) {
		return stage.Report{}, stageErr
	})
	_, err := Run(context.Background(), Options{Ledger: rec, Handler: handler, StageName: "assemble", Reached: ledger.StatusAssembled})
	if !errors.Is(err, stageErr) {
		t.Fatalf("expected handler error, got %v", err)
	}
	ev := rec.events[0]
	if ev.Outcome != ledger.OutcomeFailed || ev.ErrorKind != "unbound_role" || ev.Reached != "" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRunIgnoresLedgerErrors(t *testing.T) {
	rec := &recorder{err: errors.New("disk full")}
	handler := stage.HandlerFunc(func(context.Context, stage.Target) (stage.Report, error) {
		return stage.Report{}, nil
	})
	if _, err := Run(context.Background(), Options{Ledger: rec, Handler: handler, StageName: "voices"}); err != nil {
		t.Fatalf("ledger failure should not fail the stage: %v", err)
	}
}

func TestRunRequiresHandler(t *testing.T) {
	if _, err := Run(context.Background(), Options{StageName: "script"}); err == nil {
		t.Fatal("expected error without handler")
	}
}

func TestStageLabel(t *testing.T) {
	if got := stageLabel("voice_sync"); got != "Voice Sync" {
		t.Fatalf("unexpected label %q", got)
	}
}
