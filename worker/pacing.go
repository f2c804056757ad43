package worker

import (
	"context"
	"math/rand"
	"time"

	"zapflow/models"
)

// randomDelay draws a uniform delay in whole seconds from [minSec, maxSec].
// Both bounds are inclusive. Degenerate inputs fall back to minSec.
func randomDelay(minSec, maxSec int) time.Duration {
	if minSec < 0 {
		minSec = 0
	}
	if maxSec <= minSec {
		return time.Duration(minSec) * time.Second
	}
	n := rand.Intn(maxSec-minSec+1) + minSec
	return time.Duration(n) * time.Second
}

// inDailyWindow reports whether now falls inside the campaign's sending
// window for the current day. An empty window means always-on. Windows that
// cross midnight (start > end) wrap into the next day.
func inDailyWindow(now time.Time, start, end string) bool {
	if start == "" && end == "" {
		return true
	}
	startMin, err := models.ParseClock(start)
	if err != nil {
		return true
	}
	endMin, err := models.ParseClock(end)
	if err != nil {
		return true
	}
	cur := now.Hour()*60 + now.Minute()
	if startMin == endMin {
		return false
	}
	if startMin < endMin {
		return cur >= startMin && cur < endMin
	}
	return cur >= startMin || cur < endMin
}

// canSendNow combines the weekday set and the daily window.
func canSendNow(c *models.Campaign, now time.Time) bool {
	if c.IsRecurring() && !c.RunsOnWeekday(now.Weekday()) {
		return false
	}
	return inDailyWindow(now, c.StartTime, c.EndTime)
}

// restDue reports whether a batch rest is owed after sent total sends.
func restDue(sent, batchSize int) bool {
	if batchSize <= 0 || sent <= 0 {
		return false
	}
	return sent%batchSize == 0
}

// sleepCtx sleeps for d or until ctx is cancelled. It returns false when the
// context won the race.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
