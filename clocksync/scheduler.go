package clocksync

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Level is a rest level of the adaptive scheduler, ordered from most to least awake.
type Level int

const (
	LevelActive Level = iota
	LevelRest
	LevelNap
	LevelSleep
	LevelDream
)

// DefaultBaseInterval is the active polling interval in seconds.
const DefaultBaseInterval = 5

func (l Level) String() string {
	switch l {
	case LevelActive:
		return "active"
	case LevelRest:
		return "rest"
	case LevelNap:
		return "nap"
	case LevelSleep:
		return "sleep"
	case LevelDream:
		return "dream"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Ceiling is the longest interval in seconds allowed at l.
func (l Level) Ceiling(base int) int {
	switch l {
	case LevelRest:
		return 300
	case LevelNap:
		return 900
	case LevelSleep:
		return 3600
	case LevelDream:
		return 10800
	default:
		return base
	}
}

// LevelForStreak maps consecutive idle passes to a rest level.
func LevelForStreak(streak int) Level {
	switch {
	case streak <= 0:
		return LevelActive
	case streak < 3:
		return LevelRest
	case streak < 6:
		return LevelNap
	case streak < 10:
		return LevelSleep
	default:
		return LevelDream
	}
}

// MaxLevelForHour caps how deep the scheduler may rest at a given wall-clock hour.
func MaxLevelForHour(hour int) Level {
	switch {
	case hour >= 6 && hour < 16:
		return LevelRest
	case hour >= 16 && hour < 18:
		return LevelNap
	case hour >= 18 && hour < 23:
		return LevelSleep
	default:
		return LevelDream
	}
}

type SchedulerState struct {
	BaseInterval     int
	CurrentInterval  int
	NoActivityStreak int
}

func NewSchedulerState(base int) SchedulerState {
	if base <= 0 {
		base = DefaultBaseInterval
	}
	return SchedulerState{BaseInterval: base, CurrentInterval: base}
}

// Level is the effective rest level of s at hour.
func (s SchedulerState) Level(hour int) Level {
	return min(LevelForStreak(s.NoActivityStreak), MaxLevelForHour(hour))
}

// NextInterval computes the state after a pass that saw activity records, and the
// number of seconds to sleep before the next pass. It has no side effects.
func NextInterval(s SchedulerState, activity int, hour int) (SchedulerState, int) {
	if s.BaseInterval <= 0 {
		s.BaseInterval = DefaultBaseInterval
	}
	if s.CurrentInterval <= 0 {
		s.CurrentInterval = s.BaseInterval
	}

	// Daily wake at 06:00 regardless of history.
	if hour == 6 && s.CurrentInterval > s.BaseInterval {
		s.NoActivityStreak = 0
		s.CurrentInterval = s.BaseInterval
		return s, s.CurrentInterval
	}
	if activity > 0 {
		s.NoActivityStreak = 0
		s.CurrentInterval = s.BaseInterval
		return s, s.CurrentInterval
	}

	s.NoActivityStreak++
	level := s.Level(hour)
	if level == LevelActive {
		s.CurrentInterval = s.BaseInterval
		return s, s.CurrentInterval
	}
	next := int(math.Round(float64(s.CurrentInterval) * 1.5))
	s.CurrentInterval = min(next, level.Ceiling(s.BaseInterval))
	return s, s.CurrentInterval
}

// Scheduler holds the state across passes and reads the hour from its clock.
type Scheduler struct {
	state SchedulerState
	now   func() time.Time
	log   zerolog.Logger
}

func NewScheduler(base int, now func() time.Time, log zerolog.Logger) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		state: NewSchedulerState(base),
		now:   now,
		log:   log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) State() SchedulerState { return s.state }

// Next advances the state and returns the sleep before the next pass.
func (s *Scheduler) Next(activity int) time.Duration {
	hour := s.now().Hour()
	prev := s.state
	next, secs := NextInterval(prev, activity, hour)
	s.state = next

	if secs != prev.CurrentInterval {
		level := next.Level(hour)
		s.log.Info().
			Str("level", level.String()).
			Int("from_s", prev.CurrentInterval).
			Int("to_s", secs).
			Int("ceiling_s", level.Ceiling(next.BaseInterval)).
			Int("idle_streak", next.NoActivityStreak).
			Int("activity", activity).
			Msg("interval changed")
	}
	return time.Duration(secs) * time.Second
}

// Reset returns the scheduler to the active level.
func (s *Scheduler) Reset() {
	s.state = NewSchedulerState(s.state.BaseInterval)
}
