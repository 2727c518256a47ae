package scan

import "time"

// Tuning holds the window-sizing policy. Thresholds and step are
// configuration, not constants; zero values fall back to defaults.
type Tuning struct {
	InitialWindow uint64
	MinWindow     uint64
	Step          uint64

	// FastThreshold and TargetThreshold bound the grow bands, SlowThreshold
	// the halve band: t < Fast doubles, Fast <= t < Target adds Step,
	// Target < t <= Slow subtracts Step, t > Slow halves.
	FastThreshold   time.Duration
	TargetThreshold time.Duration
	SlowThreshold   time.Duration
}

const (
	defaultInitialWindow = 10000
	defaultMinWindow     = 100
	defaultStep          = 10000

	defaultFastThreshold   = 2 * time.Second
	defaultTargetThreshold = 5 * time.Second
	defaultSlowThreshold   = 30 * time.Second
)

func (t Tuning) withDefaults() Tuning {
	if t.InitialWindow == 0 {
		t.InitialWindow = defaultInitialWindow
	}
	if t.MinWindow == 0 {
		t.MinWindow = defaultMinWindow
	}
	if t.Step == 0 {
		t.Step = defaultStep
	}
	if t.FastThreshold == 0 {
		t.FastThreshold = defaultFastThreshold
	}
	if t.TargetThreshold == 0 {
		t.TargetThreshold = defaultTargetThreshold
	}
	if t.SlowThreshold == 0 {
		t.SlowThreshold = defaultSlowThreshold
	}
	return t
}

// Sizer tracks the number of blocks to request per query, tuned from observed
// query latency. It performs no I/O and is not safe for concurrent use; each
// scan loop owns its own Sizer.
type Sizer struct {
	cfg     Tuning
	current uint64
}

// NewSizer builds a Sizer starting at the configured initial window.
func NewSizer(cfg Tuning) *Sizer {
	cfg = cfg.withDefaults()
	if cfg.MinWindow > cfg.InitialWindow {
		cfg.MinWindow = cfg.InitialWindow
	}
	return &Sizer{cfg: cfg, current: cfg.InitialWindow}
}

// Current returns the window size to use for the next query.
func (s *Sizer) Current() uint64 {
	return s.current
}

// Observe feeds the timing of the previous query into the sizer. Only queries
// that spanned a full window count as valid samples; a window capped by the
// chain head says nothing about node latency.
func (s *Sizer) Observe(elapsed time.Duration, fullWindow bool) uint64 {
	if !fullWindow {
		return s.current
	}

	next := s.current
	switch {
	case elapsed > s.cfg.SlowThreshold:
		next = s.current / 2
	case elapsed > s.cfg.TargetThreshold:
		if next > s.cfg.Step {
			next -= s.cfg.Step
		} else {
			next = s.cfg.MinWindow
		}
	case elapsed < s.cfg.FastThreshold:
		next = s.current * 2
	case elapsed < s.cfg.TargetThreshold:
		next += s.cfg.Step
	}

	if next < s.cfg.MinWindow {
		next = s.cfg.MinWindow
	}
	s.current = next
	return s.current
}

// Reset drops the window back to the initial default. Called after a transient
// fetch failure so the next attempt uses a known-safe range instead of
// compounding a possibly oversized request.
func (s *Sizer) Reset() uint64 {
	s.current = s.cfg.InitialWindow
	return s.current
}
