package barrier

import (
	"errors"
	"fmt"
)

type Violation struct {
	Producer Pass
	Consumer Pass
	Required Scope
	Issued   Scope
}

func (v Violation) Error() string {
	return fmt.Sprintf("barrier: %s[%d] -> %s[%d] needs %s, issued %s",
		v.Producer.Stage, v.Producer.Index, v.Consumer.Stage, v.Consumer.Index, v.Required, v.Issued)
}

// Event is one entry of the frame's submission log.
type Event struct {
	Pass    Pass
	Barrier Scope
	IsPass  bool
}

// Tracker checks the Dependencies table against the order in which a frame
// submits passes and barriers. All methods are nil-safe so passes can report
// unconditionally. Not safe for concurrent use; there is one submission thread.
type Tracker struct {
	seq        int
	lastRun    map[Stage]run
	barriers   []issued
	events     []Event
	violations []Violation
}

type run struct {
	seq  int
	pass Pass
}

type issued struct {
	seq   int
	scope Scope
}

func NewTracker() *Tracker {
	return &Tracker{lastRun: make(map[Stage]run)}
}

// BeginFrame forgets everything recorded for the previous frame.
func (t *Tracker) BeginFrame() {
	if t == nil {
		return
	}
	t.seq = 0
	clear(t.lastRun)
	t.barriers = t.barriers[:0]
	t.events = t.events[:0]
	t.violations = t.violations[:0]
}

// Run records that pass p begins now, after checking every dependency whose
// producer already ran this frame.
func (t *Tracker) Run(p Pass) {
	if t == nil {
		return
	}
	for _, d := range Dependencies {
		if d.Consumer != p.Stage {
			continue
		}
		prod, ok := t.lastRun[d.Producer]
		if !ok {
			continue
		}
		got := t.issuedSince(prod.seq)
		if !got.Contains(d.Scope) {
			t.violations = append(t.violations, Violation{
				Producer: prod.pass,
				Consumer: p,
				Required: d.Scope,
				Issued:   got,
			})
		}
	}
	t.seq++
	t.lastRun[p.Stage] = run{seq: t.seq, pass: p}
	t.events = append(t.events, Event{Pass: p, IsPass: true})
}

func (t *Tracker) Barrier(s Scope) {
	if t == nil {
		return
	}
	t.seq++
	t.barriers = append(t.barriers, issued{seq: t.seq, scope: s})
	t.events = append(t.events, Event{Barrier: s})
}

func (t *Tracker) issuedSince(seq int) Scope {
	var s Scope
	for i := len(t.barriers) - 1; i >= 0 && t.barriers[i].seq > seq; i-- {
		s |= t.barriers[i].scope
	}
	return s
}

func (t *Tracker) Violations() []Violation {
	if t == nil {
		return nil
	}
	out := make([]Violation, len(t.violations))
	copy(out, t.violations)
	return out
}

func (t *Tracker) Events() []Event {
	if t == nil {
		return nil
	}
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Err joins all violations of the current frame, or returns nil.
func (t *Tracker) Err() error {
	if t == nil || len(t.violations) == 0 {
		return nil
	}
	errs := make([]error, len(t.violations))
	for i, v := range t.violations {
		errs[i] = v
	}
	return errors.Join(errs...)
}
