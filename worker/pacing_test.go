package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"zapflow/models"
)

func TestRandomDelayBounds(t *testing.T) {
	for i := 0; i < 1000; i++ {
		d := randomDelay(30, 60)
		assert.GreaterOrEqual(t, d, 30*time.Second)
		assert.LessOrEqual(t, d, 60*time.Second)
		assert.Zero(t, d%time.Second, "delays are whole seconds")
	}
}

func TestRandomDelayDegenerate(t *testing.T) {
	assert.Equal(t, 45*time.Second, randomDelay(45, 45))
	assert.Equal(t, 45*time.Second, randomDelay(45, 10))
	assert.Equal(t, time.Duration(0), randomDelay(-5, -1))
}

func TestInDailyWindow(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC)
	}

	// Empty window is always on
	assert.True(t, inDailyWindow(at(3, 0), "", ""))

	// Normal window, end exclusive
	assert.True(t, inDailyWindow(at(9, 0), "09:00", "18:00"))
	assert.True(t, inDailyWindow(at(17, 59), "09:00", "18:00"))
	assert.False(t, inDailyWindow(at(18, 0), "09:00", "18:00"))
	assert.False(t, inDailyWindow(at(8, 59), "09:00", "18:00"))

	// Window crossing midnight
	assert.True(t, inDailyWindow(at(23, 30), "22:00", "02:00"))
	assert.True(t, inDailyWindow(at(1, 59), "22:00", "02:00"))
	assert.False(t, inDailyWindow(at(2, 0), "22:00", "02:00"))
	assert.False(t, inDailyWindow(at(12, 0), "22:00", "02:00"))
}

func TestCanSendNow(t *testing.T) {
	monday := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC) // a Monday

	c := &models.Campaign{StartTime: "09:00", EndTime: "18:00"}
	assert.True(t, canSendNow(c, monday))

	c.Weekdays = []int{int(time.Tuesday)}
	assert.False(t, canSendNow(c, monday), "wrong weekday")

	c.Weekdays = []int{int(time.Monday)}
	assert.True(t, canSendNow(c, monday))

	c.StartTime, c.EndTime = "11:00", "12:00"
	assert.False(t, canSendNow(c, monday), "outside window")
}

func TestRestDue(t *testing.T) {
	assert.False(t, restDue(0, 10))
	assert.False(t, restDue(5, 10))
	assert.True(t, restDue(10, 10))
	assert.False(t, restDue(11, 10))
	assert.True(t, restDue(20, 10))
	assert.False(t, restDue(20, 0), "no batch rest configured")
}

func TestSleepCtxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepCtx(ctx, time.Minute))
	assert.True(t, sleepCtx(context.Background(), 0))
}
