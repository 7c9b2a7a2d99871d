package scanner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSource counts grabs and closes so resource-safety can be asserted
type fakeSource struct {
	grabs  int64
	closes int64
}

func (f *fakeSource) Grab(ctx context.Context) ([]byte, error) {
	atomic.AddInt64(&f.grabs, 1)
	return []byte("frame"), nil
}

func (f *fakeSource) Close() error {
	atomic.AddInt64(&f.closes, 1)
	return nil
}

// scriptedRecognizer returns canned texts, repeating the last one
type scriptedRecognizer struct {
	mu    sync.Mutex
	texts []string
	calls int
}

func (r *scriptedRecognizer) Recognize(ctx context.Context, frame []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.calls
	r.calls++
	if idx >= len(r.texts) {
		idx = len(r.texts) - 1
	}
	text := r.texts[idx]
	if text == "ERROR" {
		return "", fmt.Errorf("engine fault")
	}
	return text, nil
}

// captureSink records every match event it receives
type captureSink struct {
	mu     sync.Mutex
	events []MatchEvent
}

func (s *captureSink) HandleMatch(ctx context.Context, ev MatchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *captureSink) last() MatchEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

func corpusProvider() func() *Corpus {
	c := NewCorpus(1, map[string]string{"#EPR1875": "1231232112312321"})
	return func() *Corpus { return c }
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func newTestSession(src FrameSource, rec Recognizer, sink Sink, cfg Config) *Session {
	open := func(ctx context.Context) (FrameSource, error) { return src, nil }
	if cfg.Interval == 0 {
		cfg.Interval = 10 * time.Millisecond
	}
	return NewSession("test-session", cfg, open, rec, corpusProvider(), sink)
}

func TestScanSessionMatchFlow(t *testing.T) {
	src := &fakeSource{}
	rec := &scriptedRecognizer{texts: []string{"nothing", "noise #EPR1875 noise"}}
	sink := &captureSink{}
	s := newTestSession(src, rec, sink, Config{Mode: ModeOrder})
	defer s.Stop()

	if s.State() != StateIdle {
		t.Fatalf("expected idle before start, got %s", s.State())
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return s.State() == StateWaitingForContinue })

	if sink.count() != 1 {
		t.Fatalf("expected exactly one sink invocation, got %d", sink.count())
	}
	ev := sink.last()
	if ev.OrderID != "#EPR1875" {
		t.Errorf("expected order id #EPR1875, got %q", ev.OrderID)
	}
	if ev.PrintCode != "1231232112312321" {
		t.Errorf("expected print code 1231232112312321, got %q", ev.PrintCode)
	}
	if atomic.LoadInt64(&src.closes) == 0 {
		t.Error("camera not released after match")
	}
}

func TestSinkFiresAtMostOncePerCycle(t *testing.T) {
	src := &fakeSource{}
	rec := &scriptedRecognizer{texts: []string{"#EPR1875"}}
	sink := &captureSink{}
	s := newTestSession(src, rec, sink, Config{Mode: ModeOrder})
	defer s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return s.State() == StateWaitingForContinue })

	// no ticks may fire while waiting for continue
	time.Sleep(60 * time.Millisecond)
	if sink.count() != 1 {
		t.Fatalf("expected one sink invocation, got %d", sink.count())
	}
}

func TestContinueResumesScanning(t *testing.T) {
	src := &fakeSource{}
	rec := &scriptedRecognizer{texts: []string{"#EPR1875"}}
	sink := &captureSink{}
	s := newTestSession(src, rec, sink, Config{Mode: ModeOrder})
	defer s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return s.State() == StateWaitingForContinue })

	if err := s.Continue(); err != nil {
		t.Fatalf("Continue failed: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return sink.count() == 2 })
}

func TestContinueOnlyValidWhileWaiting(t *testing.T) {
	src := &fakeSource{}
	rec := &scriptedRecognizer{texts: []string{"nothing"}}
	s := newTestSession(src, rec, &captureSink{}, Config{Mode: ModeOrder})
	defer s.Stop()

	if err := s.Continue(); err == nil {
		t.Error("expected Continue to fail from idle")
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Continue(); err == nil {
		t.Error("expected Continue to fail while scanning")
	}
}

func TestStopReleasesCameraAndIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	rec := &scriptedRecognizer{texts: []string{"nothing"}}
	s := newTestSession(src, rec, &captureSink{}, Config{Mode: ModeOrder})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Stop()
	s.Stop()

	if s.State() != StateIdle {
		t.Errorf("expected idle after stop, got %s", s.State())
	}
	if atomic.LoadInt64(&src.closes) == 0 {
		t.Error("camera not released on stop")
	}
}

func TestStartFailsWhenCameraUnavailable(t *testing.T) {
	open := func(ctx context.Context) (FrameSource, error) {
		return nil, fmt.Errorf("permission denied")
	}
	rec := &scriptedRecognizer{texts: []string{"nothing"}}
	s := NewSession("broken", Config{Mode: ModeOrder, Interval: 10 * time.Millisecond},
		open, rec, corpusProvider(), &captureSink{})

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail")
	}
	if s.State() != StateIdle {
		t.Errorf("expected idle after failed start, got %s", s.State())
	}
	if s.Snapshot().Error == "" {
		t.Error("expected the acquisition error to be surfaced")
	}
}

func TestRecognitionErrorsAreTransient(t *testing.T) {
	src := &fakeSource{}
	rec := &scriptedRecognizer{texts: []string{"ERROR", "ERROR", "#EPR1875"}}
	sink := &captureSink{}
	s := newTestSession(src, rec, sink, Config{Mode: ModeOrder})
	defer s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// two engine faults must not kill the loop
	waitFor(t, 2*time.Second, func() bool { return sink.count() == 1 })
}

func TestBusyGateSkipsTicks(t *testing.T) {
	src := &fakeSource{}
	release := make(chan struct{})
	var inFlight int64
	rec := RecognizerFunc(func(ctx context.Context, frame []byte) (string, error) {
		atomic.AddInt64(&inFlight, 1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return "", nil
	})

	s := newTestSession(src, rec, &captureSink{}, Config{Mode: ModeOrder, Interval: 5 * time.Millisecond})
	defer s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// many ticks fire while the first recognition hangs; none may start a
	// second call
	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt64(&inFlight); n != 1 {
		t.Errorf("expected exactly one in-flight recognition, got %d", n)
	}
	close(release)
}

func TestAutoResumeAfterMatch(t *testing.T) {
	src := &fakeSource{}
	rec := &scriptedRecognizer{texts: []string{"#EPR1875", "nothing"}}
	sink := &captureSink{}
	s := newTestSession(src, rec, sink, Config{
		Mode:        ModeOrder,
		ResumeAfter: 30 * time.Millisecond,
	})
	defer s.Stop()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return sink.count() == 1 })
	waitFor(t, 2*time.Second, func() bool {
		st := s.State()
		return st == StateScanning || st == StateProcessing
	})
}

func TestCancellationReleasesCamera(t *testing.T) {
	src := &fakeSource{}
	rec := &scriptedRecognizer{texts: []string{"nothing"}}
	s := newTestSession(src, rec, &captureSink{}, Config{Mode: ModeOrder})
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return atomic.LoadInt64(&src.grabs) > 0 })

	cancel()
	waitFor(t, 2*time.Second, func() bool { return s.State() == StateIdle })

	if atomic.LoadInt64(&src.closes) == 0 {
		t.Fatal("camera not released after context cancellation")
	}

	// the dead loop must not grab again
	grabs := atomic.LoadInt64(&src.grabs)
	time.Sleep(60 * time.Millisecond)
	if n := atomic.LoadInt64(&src.grabs); n != grabs {
		t.Errorf("grabs continued after cancellation: %d -> %d", grabs, n)
	}

	// a cancelled session is restartable, not wedged
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart after cancellation failed: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return atomic.LoadInt64(&src.grabs) > grabs })
}

func TestManagerLifecycle(t *testing.T) {
	src := &fakeSource{}
	rec := &scriptedRecognizer{texts: []string{"nothing"}}
	m := NewManager(ManagerConfig{
		Recognizer: rec,
		Sink:       &captureSink{},
		Corpus:     corpusProvider(),
		OpenSource: func(ctx context.Context, cameraURL string) (FrameSource, error) {
			return src, nil
		},
		CameraURL: "http://camera.local/snapshot",
		Interval:  10 * time.Millisecond,
	})

	session, err := m.StartSession(context.Background(), ModeOrder, "")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if _, ok := m.Get(session.ID); !ok {
		t.Fatal("session not registered in manager")
	}

	if _, err := m.StartSession(context.Background(), Mode("bogus"), ""); err == nil {
		t.Error("expected error for unknown mode")
	}

	if err := m.Stop(session.ID); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if _, ok := m.Get(session.ID); ok {
		t.Error("session still registered after stop")
	}
	if err := m.Stop(session.ID); err == nil {
		t.Error("expected error stopping unknown session")
	}
}

func TestManagerSessionOutlivesCallerContext(t *testing.T) {
	src := &fakeSource{}
	rec := &scriptedRecognizer{texts: []string{"nothing"}}
	m := NewManager(ManagerConfig{
		Recognizer: rec,
		Sink:       &captureSink{},
		Corpus:     corpusProvider(),
		OpenSource: func(ctx context.Context, cameraURL string) (FrameSource, error) {
			return src, nil
		},
		CameraURL: "http://camera.local/snapshot",
		Interval:  10 * time.Millisecond,
	})
	defer m.StopAll()

	// the caller's context dies right after the start call, the way a
	// request context does once the response is written
	ctx, cancel := context.WithCancel(context.Background())
	session, err := m.StartSession(ctx, ModeOrder, "")
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	cancel()

	grabs := atomic.LoadInt64(&src.grabs)
	waitFor(t, 2*time.Second, func() bool { return atomic.LoadInt64(&src.grabs) > grabs+2 })
	if st := session.State(); st != StateScanning && st != StateProcessing {
		t.Errorf("expected session still scanning after caller context died, got %s", st)
	}

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	if _, err := m.StartSession(ctx, ModeOrder, ""); err == nil {
		t.Error("expected error starting with an already-cancelled context")
	}
}
