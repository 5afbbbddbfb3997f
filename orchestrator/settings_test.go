package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geonexus/extractd/config"
	"github.com/geonexus/extractd/errors"
)

type fakeParams map[string]string

func (f fakeParams) Get(key string) (string, error) {
	value, ok := f[key]
	if !ok {
		return "", errors.Wrapf(errors.ErrNotFound, "system parameter %s", key)
	}
	return value, nil
}

func defaultOrchestratorConfig() config.OrchestratorConfig {
	return config.OrchestratorConfig{
		Mode:             "ALWAYS_ON",
		FrequencySeconds: 20,
	}
}

func TestSettingsValidity(t *testing.T) {
	valid := Settings{FrequencySeconds: 20, Mode: ModeAlwaysOn}
	assert.True(t, valid.IsValid())

	assert.False(t, Settings{FrequencySeconds: 0, Mode: ModeAlwaysOn}.IsValid())
	assert.False(t, Settings{FrequencySeconds: 20, Mode: Mode("SOMETIMES")}.IsValid())

	badRanges := Settings{
		FrequencySeconds: 20,
		Mode:             ModeTimeWindows,
		Ranges: TimeRangeCollection{
			{StartDay: 1, EndDay: 1, StartTime: "18:00", EndTime: "08:00"},
		},
	}
	assert.False(t, badRanges.IsValid())

	// Invalid ranges only matter in time-window mode
	badRanges.Mode = ModeAlwaysOn
	assert.True(t, badRanges.IsValid())
}

func TestSettingsIsWorking(t *testing.T) {
	ranges := TimeRangeCollection{
		{StartDay: 1, EndDay: 5, StartTime: "08:00", EndTime: "18:00"},
	}

	on := Settings{FrequencySeconds: 20, Mode: ModeAlwaysOn, Ranges: ranges}
	assert.True(t, on.IsWorking(at(15, 3, 0)), "always-on ignores ranges")

	off := Settings{FrequencySeconds: 20, Mode: ModeDisabled, Ranges: ranges}
	assert.False(t, off.IsWorking(at(10, 9, 0)))

	windowed := Settings{FrequencySeconds: 20, Mode: ModeTimeWindows, Ranges: ranges}
	assert.True(t, windowed.IsWorking(at(10, 9, 0)), "Monday morning")
	assert.False(t, windowed.IsWorking(at(15, 9, 0)), "Saturday")
}

func TestSettingsEqualIsStructural(t *testing.T) {
	ranges := TimeRangeCollection{
		{StartDay: 1, EndDay: 5, StartTime: "08:00", EndTime: "18:00"},
	}
	a := Settings{FrequencySeconds: 20, Mode: ModeTimeWindows, Ranges: ranges}
	b := Settings{FrequencySeconds: 20, Mode: ModeTimeWindows,
		Ranges: TimeRangeCollection{
			{StartDay: 1, EndDay: 5, StartTime: "08:00", EndTime: "18:00"},
		}}

	assert.True(t, a.Equal(b))

	b.FrequencySeconds = 30
	assert.False(t, a.Equal(b))

	b.FrequencySeconds = 20
	b.Ranges = append(b.Ranges, TimeRange{StartDay: 6, EndDay: 7,
		StartTime: "00:00", EndTime: "23:59"})
	assert.False(t, a.Equal(b))
}

func TestLoadSettingsUsesDefaults(t *testing.T) {
	settings, err := LoadSettings(fakeParams{}, defaultOrchestratorConfig())
	require.NoError(t, err)

	assert.Equal(t, ModeAlwaysOn, settings.Mode)
	assert.Equal(t, 20, settings.FrequencySeconds)
	assert.Empty(t, settings.Ranges)
}

func TestLoadSettingsFromParams(t *testing.T) {
	params := fakeParams{
		"scheduler_mode":      "TIME_WINDOWS",
		"scheduler_frequency": "45",
		"scheduler_ranges":    `[{"startDay":5,"endDay":1,"startTime":"00:00","endTime":"23:59"}]`,
	}

	settings, err := LoadSettings(params, defaultOrchestratorConfig())
	require.NoError(t, err)

	assert.Equal(t, ModeTimeWindows, settings.Mode)
	assert.Equal(t, 45, settings.FrequencySeconds)
	require.Len(t, settings.Ranges, 1)
	assert.Equal(t, 5, settings.Ranges[0].StartDay)
}

func TestLoadSettingsRejectsBadValues(t *testing.T) {
	_, err := LoadSettings(fakeParams{"scheduler_mode": "WHENEVER"}, defaultOrchestratorConfig())
	assert.True(t, errors.Is(err, errors.ErrInvalidSettings))

	_, err = LoadSettings(fakeParams{"scheduler_frequency": "soon"}, defaultOrchestratorConfig())
	assert.True(t, errors.Is(err, errors.ErrInvalidSettings))

	_, err = LoadSettings(fakeParams{"scheduler_ranges": "{broken"}, defaultOrchestratorConfig())
	assert.True(t, errors.Is(err, errors.ErrInvalidSettings))
}
