package pipeline

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Profiler times the stages of a frame on the submission thread. Stage
// order is the order in which scopes were first opened.
type Profiler struct {
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Order      []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = time.Now()
	if _, seen := p.Scopes[name]; !seen {
		p.Order = append(p.Order, name)
		p.Scopes[name] = 0
	}
}

func (p *Profiler) EndScope(name string) {
	if start, ok := p.StartTimes[name]; ok {
		p.Scopes[name] = time.Since(start)
	}
}

// Scope opens name and returns its closer, for use with defer.
func (p *Profiler) Scope(name string) func() {
	p.BeginScope(name)
	return func() { p.EndScope(name) }
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

// Reset zeroes timings and counters but keeps the stage order.
func (p *Profiler) Reset() {
	for k := range p.Scopes {
		p.Scopes[k] = 0
	}
	clear(p.Counts)
}

// Timings returns the stage durations in stage order.
func (p *Profiler) Timings() []StageTiming {
	out := make([]StageTiming, 0, len(p.Order))
	for _, name := range p.Order {
		out = append(out, StageTiming{Stage: name, Duration: p.Scopes[name]})
	}
	return out
}

func (p *Profiler) GetStatsString() string {
	var sb strings.Builder
	fmt.Fprintln(&sb, "stages:")
	for _, st := range p.Timings() {
		fmt.Fprintf(&sb, "  %-16s %8.3f ms\n", st.Stage, float64(st.Duration.Microseconds())/1000)
	}
	if len(p.Counts) == 0 {
		return sb.String()
	}
	fmt.Fprintln(&sb, "counters:")
	for _, k := range slices.Sorted(maps.Keys(p.Counts)) {
		fmt.Fprintf(&sb, "  %-16s %8d\n", k, p.Counts[k])
	}
	return sb.String()
}
