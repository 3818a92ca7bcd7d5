package simplify

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrInvalidSchedule is returned for unusable resolution schedules.
var ErrInvalidSchedule = errors.New("simplify: invalid resolution schedule")

// Schedule is a stepped sweep of grid resolutions. Level k (1-based) is built
// at resolution Ratio*(Steps-k+1), so level 1 is the finest simplified level
// and level Steps the coarsest.
type Schedule struct {
	Ratio int `yaml:"ratio"`
	Steps int `yaml:"steps"`
}

// DefaultSchedule returns resolutions 40, 32, 24, 16, 8.
func DefaultSchedule() Schedule {
	return Schedule{Ratio: 8, Steps: 5}
}

// Resolutions expands the schedule, finest first.
func (s Schedule) Resolutions() ([]int, error) {
	if s.Ratio < 1 || s.Steps < 0 {
		return nil, fmt.Errorf("%w: ratio %d, steps %d", ErrInvalidSchedule, s.Ratio, s.Steps)
	}
	res := make([]int, s.Steps)
	for k := range res {
		res[k] = s.Ratio * (s.Steps - k)
	}
	return res, nil
}

// Options configures BuildLevels.
type Options struct {
	// Schedule generates the grid resolutions.
	Schedule Schedule
	// Resolutions, when non-empty, overrides Schedule. Order is kept as given.
	Resolutions []int
	// Workers > 1 builds levels concurrently. Output does not depend on it.
	Workers int
	// Logger receives per-level debug entries. Nil disables logging.
	Logger *zap.Logger
}

// DefaultOptions returns the default schedule built on the calling goroutine.
func DefaultOptions() Options {
	return Options{
		Schedule: DefaultSchedule(),
		Workers:  1,
	}
}

func (o Options) resolutions() ([]int, error) {
	if len(o.Resolutions) == 0 {
		return o.Schedule.Resolutions()
	}
	for _, r := range o.Resolutions {
		if r < 1 {
			return nil, fmt.Errorf("%w: resolution %d", ErrInvalidSchedule, r)
		}
	}
	return o.Resolutions, nil
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
