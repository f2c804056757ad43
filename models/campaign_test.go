package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]string{
		"aguardando":     StatusWaiting,
		"  Aguardando  ": StatusWaiting,
		"EM_ANDAMENTO":   StatusRunning,
		"em  andamento":  StatusRunning,
		"Pausado":        StatusPaused,
		"FINALIZADO":     StatusFinished,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeStatus(in), "input %q", in)
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to string }{
		{StatusWaiting, StatusScheduled},
		{StatusWaiting, StatusRunning},
		{StatusWaiting, StatusCanceled},
		{StatusScheduled, StatusWaiting},
		{StatusScheduled, StatusRunning},
		{StatusScheduled, StatusCanceled},
		{StatusRunning, StatusPaused},
		{StatusRunning, StatusFinished},
		{StatusRunning, StatusCanceled},
		{StatusPaused, StatusRunning},
		{StatusPaused, StatusCanceled},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to string }{
		{StatusFinished, StatusRunning},
		{StatusFinished, StatusWaiting},
		{StatusCanceled, StatusRunning},
		{StatusPaused, StatusWaiting},
		{StatusPaused, StatusFinished},
		{StatusWaiting, StatusPaused},
		{StatusWaiting, StatusFinished},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTransitionMutatesOnlyWhenLegal(t *testing.T) {
	c := Campaign{Status: StatusRunning}
	require.NoError(t, c.Transition(StatusPaused))
	assert.Equal(t, StatusPaused, c.Status)

	err := c.Transition(StatusFinished)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusPaused, c.Status)
}

func TestTransitionNormalizesStoredStatus(t *testing.T) {
	c := Campaign{Status: "EM_ANDAMENTO"}
	require.NoError(t, c.Transition(StatusPaused))
	assert.Equal(t, StatusPaused, c.Status)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusFinished))
	assert.True(t, IsTerminal("Cancelado"))
	assert.False(t, IsTerminal(StatusPaused))
	assert.False(t, IsTerminal(StatusRunning))
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0, Progress(0, 0))
	assert.Equal(t, 0, Progress(5, 0))
	assert.Equal(t, 0, Progress(5, -1))
	assert.Equal(t, 50, Progress(50, 100))
	assert.Equal(t, 33, Progress(1, 3))
	assert.Equal(t, 100, Progress(12, 10))
	assert.Equal(t, 0, Progress(-2, 10))
}

func TestParseClock(t *testing.T) {
	min, err := ParseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, 8*60+30, min)

	min, err = ParseClock("00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, min)

	for _, bad := range []string{"", "8h30", "24:00", "12:60", "12", "ab:cd"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func validCampaign() Campaign {
	return Campaign{
		Name:           "lancamento",
		Type:           CampaignTypeIndividual,
		Messages:       []CampaignMessage{{Kind: "text", Text: "oi"}},
		IntervalMinSec: 30,
		IntervalMaxSec: 60,
	}
}

func TestValidateConfig(t *testing.T) {
	c := validCampaign()
	assert.NoError(t, c.ValidateConfig())

	c = validCampaign()
	c.Type = "broadcast"
	assert.Error(t, c.ValidateConfig())

	c = validCampaign()
	c.Messages = nil
	assert.Error(t, c.ValidateConfig())

	c = validCampaign()
	c.IntervalMinSec = 0
	assert.Error(t, c.ValidateConfig())

	c = validCampaign()
	c.IntervalMinSec = 90
	c.IntervalMaxSec = 60
	assert.Error(t, c.ValidateConfig())

	c = validCampaign()
	c.PauseAfterMessages = 10
	assert.Error(t, c.ValidateConfig(), "batch size without rest duration")
	c.PauseMinutes = 5
	assert.NoError(t, c.ValidateConfig())

	c = validCampaign()
	c.Weekdays = []int{0, 6}
	assert.NoError(t, c.ValidateConfig())
	c.Weekdays = []int{7}
	assert.Error(t, c.ValidateConfig())

	c = validCampaign()
	c.StartTime = "09:00"
	assert.Error(t, c.ValidateConfig(), "window must be paired")
	c.EndTime = "18:00"
	assert.NoError(t, c.ValidateConfig())
	c.EndTime = "25:00"
	assert.Error(t, c.ValidateConfig())
}

func TestRunsOnWeekday(t *testing.T) {
	c := Campaign{Weekdays: []int{1, 3, 5}}
	assert.True(t, c.RunsOnWeekday(time.Monday))
	assert.True(t, c.RunsOnWeekday(time.Friday))
	assert.False(t, c.RunsOnWeekday(time.Sunday))

	// No weekday set means the campaign does not recur; the weekday gate
	// only applies to recurring campaigns
	c = Campaign{}
	assert.False(t, c.IsRecurring())
	assert.False(t, c.RunsOnWeekday(time.Monday))
}
