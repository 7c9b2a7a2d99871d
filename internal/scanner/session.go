package scanner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"scanprint/internal/metrics"
)

// State is the lifecycle state of a scan session
type State string

const (
	// StateIdle means no camera held and no timer running
	StateIdle State = "idle"
	// StateScanning means the camera is acquired and ticks are firing
	StateScanning State = "scanning"
	// StateProcessing means one capture/recognize/match cycle is in flight
	StateProcessing State = "processing"
	// StateMatched means a hit occurred and the sink is being invoked
	StateMatched State = "matched"
	// StateWaitingForContinue means the operator must confirm before the
	// session scans again
	StateWaitingForContinue State = "waiting_for_continue"
)

// MatchEvent is what the sink receives on a confirmed match
type MatchEvent struct {
	SessionID string `json:"session_id"`
	Mode      Mode   `json:"mode"`
	OrderID   string `json:"order_id"`
	PrintCode string `json:"print_code"`
	Value     string `json:"value"`
}

// Sink receives confirmed matches. Invoked at most once per scan cycle.
type Sink interface {
	HandleMatch(ctx context.Context, ev MatchEvent) error
}

// SinkFunc adapts a plain function to the Sink interface
type SinkFunc func(ctx context.Context, ev MatchEvent) error

// HandleMatch implements Sink
func (f SinkFunc) HandleMatch(ctx context.Context, ev MatchEvent) error {
	return f(ctx, ev)
}

// Config tunes one scan session
type Config struct {
	Mode Mode
	// Interval between capture ticks. Defaults to one second.
	Interval time.Duration
	// ResumeAfter auto-continues scanning this long after a match.
	// Zero means the operator must continue explicitly.
	ResumeAfter time.Duration
	// Issuers overrides the order id issuer codes
	Issuers []string
}

// Status is a point-in-time snapshot of a session for the status endpoint
type Status struct {
	ID            string `json:"id"`
	Mode          Mode   `json:"mode"`
	State         State  `json:"state"`
	LastText      string `json:"last_text"`
	MatchedValue  string `json:"matched_value,omitempty"`
	Error         string `json:"error,omitempty"`
	CorpusVersion uint64 `json:"corpus_version"`
}

// Session drives one camera through the scan lifecycle:
// Idle -> Scanning -> Processing -> (miss: Scanning | hit: Matched) ->
// WaitingForContinue -> Scanning or Idle.
//
// At most one recognition call is in flight per session; ticks that arrive
// while one is outstanding are skipped, not queued.
type Session struct {
	ID string

	cfg        Config
	recognizer Recognizer
	matcher    *Matcher
	corpus     func() *Corpus
	sink       Sink
	open       SourceFactory

	mu          sync.Mutex
	state       State
	source      FrameSource
	busy        bool
	lastText    string
	lastValue   string
	lastErr     string
	parent      context.Context
	loopCancel  context.CancelFunc
	resumeTimer *time.Timer
	wg          sync.WaitGroup
}

// NewSession wires a session from its collaborators. Start must be called
// before any ticks fire.
func NewSession(id string, cfg Config, open SourceFactory, recognizer Recognizer, corpus func() *Corpus, sink Sink) *Session {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Session{
		ID:         id,
		cfg:        cfg,
		recognizer: recognizer,
		matcher:    NewMatcher(cfg.Issuers...),
		corpus:     corpus,
		sink:       sink,
		open:       open,
		state:      StateIdle,
	}
}

// Start acquires the camera and begins scanning. Camera acquisition failure
// leaves the session in Idle with the error recorded; there is no automatic
// retry.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("scan session %s already running", s.ID)
	}
	s.mu.Unlock()

	src, err := s.open(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err.Error()
		s.mu.Unlock()
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.state != StateIdle {
		// lost a race with another Start
		s.mu.Unlock()
		cancel()
		src.Close()
		return fmt.Errorf("scan session %s already running", s.ID)
	}
	s.parent = ctx
	s.source = src
	s.loopCancel = cancel
	s.state = StateScanning
	s.lastErr = ""
	s.lastValue = ""
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(loopCtx)

	return nil
}

// Continue resumes scanning after a match. Only valid in WaitingForContinue.
func (s *Session) Continue() error {
	s.mu.Lock()
	if s.state != StateWaitingForContinue {
		s.mu.Unlock()
		return fmt.Errorf("scan session %s has nothing to continue", s.ID)
	}
	s.stopResumeTimerLocked()
	parent := s.parent
	s.mu.Unlock()

	if parent == nil {
		parent = context.Background()
	}

	src, err := s.open(parent)
	if err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.lastErr = err.Error()
		s.mu.Unlock()
		return err
	}

	loopCtx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	if s.state != StateWaitingForContinue {
		// a Stop won the race, give the camera back
		s.mu.Unlock()
		cancel()
		src.Close()
		return nil
	}
	s.source = src
	s.loopCancel = cancel
	s.state = StateScanning
	s.lastValue = ""
	s.lastErr = ""
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(loopCtx)

	return nil
}

// Stop tears the session down from any state: timer cleared, camera
// released, transient state reset. Safe to call repeatedly.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopResumeTimerLocked()
	if s.loopCancel != nil {
		s.loopCancel()
		s.loopCancel = nil
	}
	s.closeSourceLocked()
	s.state = StateIdle
	s.busy = false
	s.lastValue = ""
	s.mu.Unlock()

	s.wg.Wait()
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the session status for the UI
func (s *Session) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		ID:           s.ID,
		Mode:         s.cfg.Mode,
		State:        s.state,
		LastText:     s.lastText,
		MatchedValue: s.lastValue,
		Error:        s.lastErr,
	}
	if c := s.corpus(); c != nil {
		st.CorpusVersion = c.Version()
	}
	return st
}

// loop fires capture ticks until its context is cancelled
func (s *Session) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.teardownOnCancel()
			return
		case <-ticker.C:
			metrics.ScanTicksTotal.Inc()

			s.mu.Lock()
			if s.state != StateScanning || s.busy {
				if s.busy {
					metrics.ScanTicksSkippedTotal.Inc()
				}
				s.mu.Unlock()
				continue
			}
			s.busy = true
			s.state = StateProcessing
			src := s.source
			s.mu.Unlock()

			s.wg.Add(1)
			go s.processTick(ctx, src)
		}
	}
}

// processTick runs one capture/recognize/match cycle. Errors here are
// transient: logged, counted, and treated as a miss.
func (s *Session) processTick(ctx context.Context, src FrameSource) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.busy = false
		if s.state == StateProcessing {
			s.state = StateScanning
		}
		s.mu.Unlock()
	}()

	frame, err := src.Grab(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("WARNING: scan session %s frame capture failed: %v", s.ID, err)
		}
		return
	}

	start := time.Now()
	text, err := s.recognizer.Recognize(ctx, frame)
	metrics.RecognitionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecognitionErrorsTotal.Inc()
		if ctx.Err() == nil {
			log.Printf("WARNING: scan session %s recognition failed: %v", s.ID, err)
		}
		return
	}

	s.mu.Lock()
	s.lastText = text
	s.mu.Unlock()

	corpus := s.corpus()
	result := s.matcher.Match(text, s.cfg.Mode, corpus)
	if !result.Hit {
		return
	}

	s.dispatchMatch(result, corpus)
}

// dispatchMatch moves the session to Matched, releases the camera, and fires
// the sink exactly once. Late hits after the state already advanced are
// ignored.
func (s *Session) dispatchMatch(result MatchResult, corpus *Corpus) {
	s.mu.Lock()
	if s.state != StateProcessing {
		s.mu.Unlock()
		return
	}
	s.state = StateMatched
	s.lastValue = result.Value
	if s.loopCancel != nil {
		s.loopCancel()
		s.loopCancel = nil
	}
	s.closeSourceLocked()
	s.mu.Unlock()

	metrics.MatchesTotal.WithLabelValues(string(s.cfg.Mode)).Inc()

	ev := MatchEvent{SessionID: s.ID, Mode: s.cfg.Mode, Value: result.Value}
	if s.cfg.Mode == ModeOrder {
		ev.OrderID = result.Value
		if code, ok := corpus.PrintCode(result.Value); ok {
			ev.PrintCode = code
		}
	} else {
		ev.PrintCode = result.Value
		if orderID, ok := corpus.OrderIDForValue(result.Value); ok {
			ev.OrderID = orderID
		}
	}

	// Sink failures do not roll the scan back; the operator sees the error
	// text and the record is reconciled later.
	if err := s.sink.HandleMatch(context.Background(), ev); err != nil {
		log.Printf("WARNING: scan session %s sink failed for %s: %v", s.ID, ev.Value, err)
		s.mu.Lock()
		s.lastErr = err.Error()
		s.mu.Unlock()
	}

	s.mu.Lock()
	if s.state == StateMatched {
		s.state = StateWaitingForContinue
		if s.cfg.ResumeAfter > 0 {
			s.resumeTimer = time.AfterFunc(s.cfg.ResumeAfter, func() {
				if err := s.Continue(); err != nil {
					log.Printf("WARNING: scan session %s auto-resume failed: %v", s.ID, err)
				}
			})
		}
	}
	s.mu.Unlock()
}

// teardownOnCancel releases the camera and resets the session when the loop
// context is cancelled from outside. When Stop or a match already tore the
// session down the state has moved on from Scanning/Processing and there is
// nothing left to release.
func (s *Session) teardownOnCancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateScanning && s.state != StateProcessing {
		return
	}
	s.stopResumeTimerLocked()
	s.loopCancel = nil
	s.closeSourceLocked()
	s.state = StateIdle
	s.busy = false
	s.lastValue = ""
}

func (s *Session) closeSourceLocked() {
	if s.source != nil {
		if err := s.source.Close(); err != nil {
			log.Printf("WARNING: scan session %s failed to release camera: %v", s.ID, err)
		}
		s.source = nil
	}
}

func (s *Session) stopResumeTimerLocked() {
	if s.resumeTimer != nil {
		s.resumeTimer.Stop()
		s.resumeTimer = nil
	}
}
