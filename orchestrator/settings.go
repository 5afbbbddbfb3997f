package orchestrator

import (
	"strconv"
	"time"

	"github.com/geonexus/extractd/config"
	"github.com/geonexus/extractd/errors"
	"github.com/geonexus/extractd/store"
)

// Mode is the scheduling mode of the orchestrator
type Mode string

const (
	// ModeAlwaysOn keeps monitoring running continuously
	ModeAlwaysOn Mode = "ALWAYS_ON"
	// ModeTimeWindows runs monitoring only inside the configured weekly windows
	ModeTimeWindows Mode = "TIME_WINDOWS"
	// ModeDisabled never runs monitoring
	ModeDisabled Mode = "DISABLED"
)

// IsValidMode returns true if the mode string is a known scheduling mode
func IsValidMode(s string) bool {
	switch Mode(s) {
	case ModeAlwaysOn, ModeTimeWindows, ModeDisabled:
		return true
	default:
		return false
	}
}

// Settings is one generation of orchestrator configuration. A Settings value
// is immutable once handed to the orchestrator; updates replace the whole
// value.
type Settings struct {
	// FrequencySeconds is the poll delay of the background tasks
	FrequencySeconds int
	Mode             Mode
	Ranges           TimeRangeCollection
}

// IsValid reports whether the settings can drive scheduling: a positive
// frequency and, in time-window mode, a valid range collection.
func (s Settings) IsValid() bool {
	if s.FrequencySeconds < 1 {
		return false
	}
	if !IsValidMode(string(s.Mode)) {
		return false
	}
	if s.Mode == ModeTimeWindows && !s.Ranges.IsValid() {
		return false
	}
	return true
}

// IsWorking reports whether monitoring should be running at the given instant.
func (s Settings) IsWorking(now time.Time) bool {
	switch s.Mode {
	case ModeAlwaysOn:
		return true
	case ModeTimeWindows:
		return s.Ranges.IsInRanges(now)
	default:
		return false
	}
}

// Frequency returns the poll delay as a duration.
func (s Settings) Frequency() time.Duration {
	return time.Duration(s.FrequencySeconds) * time.Second
}

// Equal compares two settings structurally. The orchestrator uses it to
// suppress rescheduling when an update does not change anything.
func (s Settings) Equal(other Settings) bool {
	return s.FrequencySeconds == other.FrequencySeconds &&
		s.Mode == other.Mode &&
		s.Ranges.Equal(other.Ranges)
}

// ParamSource reads operator-editable system parameters by key.
type ParamSource interface {
	Get(key string) (string, error)
}

// LoadSettings assembles orchestrator settings from the system parameter
// store, falling back to the static configuration for keys that were never
// set by an operator.
func LoadSettings(params ParamSource, defaults config.OrchestratorConfig) (Settings, error) {
	settings := Settings{
		FrequencySeconds: defaults.FrequencySeconds,
		Mode:             Mode(defaults.Mode),
		Ranges:           TimeRangeCollection{},
	}

	mode, err := paramOrDefault(params, store.ParamSchedulerMode, string(settings.Mode))
	if err != nil {
		return Settings{}, err
	}
	if !IsValidMode(mode) {
		return Settings{}, errors.Wrapf(errors.ErrInvalidSettings, "unknown scheduler mode %q", mode)
	}
	settings.Mode = Mode(mode)

	frequency, err := paramOrDefault(params, store.ParamSchedulerFrequency,
		strconv.Itoa(settings.FrequencySeconds))
	if err != nil {
		return Settings{}, err
	}
	settings.FrequencySeconds, err = strconv.Atoi(frequency)
	if err != nil {
		return Settings{}, errors.Wrapf(errors.ErrInvalidSettings,
			"scheduler frequency %q is not a number", frequency)
	}

	ranges, err := paramOrDefault(params, store.ParamSchedulerRanges, "")
	if err != nil {
		return Settings{}, err
	}
	settings.Ranges, err = ParseTimeRanges(ranges)
	if err != nil {
		return Settings{}, errors.Wrap(errors.ErrInvalidSettings, err.Error())
	}

	if !settings.IsValid() {
		return Settings{}, errors.Wrap(errors.ErrInvalidSettings, "scheduler settings rejected")
	}

	return settings, nil
}

func paramOrDefault(params ParamSource, key, fallback string) (string, error) {
	value, err := params.Get(key)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return fallback, nil
		}
		return "", err
	}
	return value, nil
}
