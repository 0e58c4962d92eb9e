package core

import (
	"context"
	"errors"
	"testing"
)

type fakeService struct {
	name  string
	err   error
	calls int
}

func (f *fakeService) Name() string                   { return f.name }
func (f *fakeService) Init(ctx context.Context) error { return nil }
func (f *fakeService) Cleanup() error                 { return nil }

func TestRunFailsOverOnUpstreamError(t *testing.T) {
	primary := &fakeService{name: "a", err: NewStageError(StageGenerate, KindUpstreamUnavailable, errors.New("down"))}
	backup := &fakeService{name: "b"}
	h := NewBaseHandler[*fakeService](primary, []*fakeService{backup}, NewNopLogger())

	used, err := h.Run(context.Background(), StageGenerate, func(s *fakeService) error {
		s.calls++
		return s.err
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if used.Name() != "b" {
		t.Fatalf("used=%q", used.Name())
	}
	if h.Service().Name() != "b" {
		t.Fatalf("active=%q", h.Service().Name())
	}
	if primary.calls != 1 || backup.calls != 1 {
		t.Fatalf("calls primary=%d backup=%d", primary.calls, backup.calls)
	}
}

func TestRunDoesNotFailOverOnClientError(t *testing.T) {
	primary := &fakeService{name: "a", err: NewStageError(StageTranscribe, KindUnsupportedAudio, errors.New("bad"))}
	backup := &fakeService{name: "b"}
	h := NewBaseHandler[*fakeService](primary, []*fakeService{backup}, NewNopLogger())

	_, err := h.Run(context.Background(), StageTranscribe, func(s *fakeService) error {
		s.calls++
		return s.err
	})
	if KindOf(err) != KindUnsupportedAudio {
		t.Fatalf("kind=%q", KindOf(err))
	}
	if backup.calls != 0 {
		t.Fatalf("backup called %d times", backup.calls)
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := &fakeService{name: "a"}
	backup := &fakeService{name: "b"}
	h := NewBaseHandler[*fakeService](primary, []*fakeService{backup}, NewNopLogger())

	_, err := h.Run(ctx, StageGenerate, func(s *fakeService) error {
		s.calls++
		cancel()
		return errors.New("connection reset")
	})
	if KindOf(err) != KindUserCancelled {
		t.Fatalf("kind=%q", KindOf(err))
	}
	if backup.calls != 0 {
		t.Fatalf("backup called after cancel")
	}
}

func TestRunReturnsLastErrorWhenAllFail(t *testing.T) {
	a := &fakeService{name: "a"}
	b := &fakeService{name: "b"}
	h := NewBaseHandler[*fakeService](a, []*fakeService{b}, NewNopLogger())

	_, err := h.Run(context.Background(), StageSynthesize, func(s *fakeService) error {
		s.calls++
		return errors.New(s.name + " down")
	})
	var se *StageError
	if !errors.As(err, &se) || se.Provider != "b" || se.Kind != KindUpstreamUnavailable {
		t.Fatalf("err=%v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Fatalf("calls a=%d b=%d", a.calls, b.calls)
	}
}

func TestSwitchToBackupServiceWithoutBackups(t *testing.T) {
	h := NewBaseHandler[*fakeService](&fakeService{name: "a"}, nil, NewNopLogger())
	if err := h.SwitchToBackupService(h.Service()); !errors.Is(err, ErrNoBackupService) {
		t.Fatalf("err=%v", err)
	}
}
