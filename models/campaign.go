package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Campaign statuses as stored. Storage is free text written by more than
// one client, so comparisons must go through NormalizeStatus.
const (
	StatusWaiting   = "aguardando"
	StatusScheduled = "agendado"
	StatusRunning   = "em andamento"
	StatusPaused    = "pausado"
	StatusFinished  = "finalizado"
	StatusCanceled  = "cancelado"
)

// Campaign types
const (
	CampaignTypeIndividual = "individual"
	CampaignTypeGroup      = "grupo"
)

var ErrInvalidTransition = errors.New("invalid campaign status transition")

// Campaign represents a dispatch campaign: a schedulable batch send of one
// or more message variants to a set of contacts or groups through one or
// more bound connections.
type Campaign struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name string `gorm:"not null" json:"name"`
	Type string `gorm:"not null;default:'individual'" json:"type"` // individual, grupo

	// Ordered message variants; one is picked at random per recipient
	Messages []CampaignMessage `gorm:"type:jsonb;serializer:json" json:"messages"`

	// Scheduling
	Status      string     `gorm:"default:'aguardando'" json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Weekdays    []int      `gorm:"type:jsonb;serializer:json" json:"weekdays"` // 0=Sunday..6=Saturday
	StartTime   string     `json:"start_time"`                                 // "HH:MM", empty = no window
	EndTime     string     `json:"end_time"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Pacing
	IntervalMinSec     int `gorm:"default:30" json:"interval_min_sec"`
	IntervalMaxSec     int `gorm:"default:60" json:"interval_max_sec"`
	PauseAfterMessages int `gorm:"default:0" json:"pause_after_messages"` // 0 = no batch rest
	PauseMinutes       int `gorm:"default:0" json:"pause_minutes"`

	// Progress (denormalized, monotonically non-decreasing while running)
	TotalMessages int `gorm:"default:0" json:"total_messages"`
	SentMessages  int `gorm:"default:0" json:"sent_messages"`

	// Opaque handle to the worker run currently owning this campaign
	ExecutionID string `json:"execution_id"`

	LastError *string `json:"last_error"`

	// Relations
	ContactLists []CampaignContactList `gorm:"foreignKey:CampaignID" json:"contact_lists,omitempty"`
	Connections  []CampaignConnection  `gorm:"foreignKey:CampaignID" json:"connections,omitempty"`
	Details      []CampaignDetail      `gorm:"foreignKey:CampaignID" json:"details,omitempty"`
}

// CampaignMessage is one variant of the campaign payload.
type CampaignMessage struct {
	Kind     string `json:"kind"` // text, media
	Text     string `json:"text,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// CampaignContactList joins campaigns to contact lists
type CampaignContactList struct {
	gorm.Model
	CampaignID    uint `gorm:"not null;index" json:"campaign_id"`
	ContactListID uint `gorm:"not null;index" json:"contact_list_id"`
}

// CampaignConnection joins campaigns to connections. A connection may be
// shared by multiple running campaigns; it is never owned by one.
type CampaignConnection struct {
	gorm.Model
	CampaignID   uint `gorm:"not null;index" json:"campaign_id"`
	ConnectionID uint `gorm:"not null;index" json:"connection_id"`
}

// NormalizeStatus maps the free-text stored status onto the canonical
// constants: lowercased, trimmed, underscores treated as spaces.
func NormalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

// IsTerminal reports whether status is one of the immutable end states.
func IsTerminal(status string) bool {
	switch NormalizeStatus(status) {
	case StatusFinished, StatusCanceled:
		return true
	}
	return false
}

var transitions = map[string][]string{
	StatusWaiting:   {StatusScheduled, StatusRunning, StatusCanceled},
	StatusScheduled: {StatusWaiting, StatusRunning, StatusCanceled},
	StatusRunning:   {StatusPaused, StatusFinished, StatusCanceled},
	StatusPaused:    {StatusRunning, StatusCanceled},
	StatusFinished:  {},
	StatusCanceled:  {},
}

// CanTransition reports whether a campaign may move from one status to
// another. Unknown statuses never transition anywhere.
func CanTransition(from, to string) bool {
	from = NormalizeStatus(from)
	to = NormalizeStatus(to)
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change in memory. Callers
// persist the result themselves (usually inside a transaction).
func (c *Campaign) Transition(to string) error {
	if !CanTransition(c.Status, to) {
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, NormalizeStatus(c.Status), NormalizeStatus(to))
	}
	c.Status = NormalizeStatus(to)
	return nil
}

// Progress returns the displayed completion percentage: 0 when total is
// zero, otherwise round(100*sent/total) clamped to 100.
func Progress(sent, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(sent) / float64(total)))
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// Progress is the campaign's own sent/total ratio.
func (c *Campaign) Progress() int {
	return Progress(c.SentMessages, c.TotalMessages)
}

// ValidateConfig checks the pacing and schedule fields. It is applied on
// create and on every config update.
func (c *Campaign) ValidateConfig() error {
	if c.Type != CampaignTypeIndividual && c.Type != CampaignTypeGroup {
		return fmt.Errorf("type must be %q or %q", CampaignTypeIndividual, CampaignTypeGroup)
	}
	if len(c.Messages) == 0 {
		return errors.New("at least one message variant is required")
	}
	if c.IntervalMinSec <= 0 || c.IntervalMaxSec <= 0 {
		return errors.New("send interval bounds must be positive")
	}
	if c.IntervalMinSec > c.IntervalMaxSec {
		return errors.New("interval_min_sec must not exceed interval_max_sec")
	}
	if c.PauseAfterMessages < 0 || c.PauseMinutes < 0 {
		return errors.New("batch rest settings must not be negative")
	}
	if c.PauseAfterMessages > 0 && c.PauseMinutes == 0 {
		return errors.New("pause_minutes is required when pause_after_messages is set")
	}
	for _, d := range c.Weekdays {
		if d < 0 || d > 6 {
			return fmt.Errorf("weekday %d out of range 0..6", d)
		}
	}
	if (c.StartTime == "") != (c.EndTime == "") {
		return errors.New("start_time and end_time must be set together")
	}
	if c.StartTime != "" {
		start, err := ParseClock(c.StartTime)
		if err != nil {
			return fmt.Errorf("start_time: %w", err)
		}
		end, err := ParseClock(c.EndTime)
		if err != nil {
			return fmt.Errorf("end_time: %w", err)
		}
		if start == end {
			return errors.New("daily window must not be empty")
		}
	}
	return nil
}

// ParseClock parses an "HH:MM" wall-clock time into minutes from midnight.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

// RunsOnWeekday reports whether the campaign recurs on the given weekday.
// An empty weekday set means the campaign never recurs; it can only run
// immediately or at its one-shot ScheduledAt.
func (c *Campaign) RunsOnWeekday(d time.Weekday) bool {
	for _, w := range c.Weekdays {
		if w == int(d) {
			return true
		}
	}
	return false
}

// IsRecurring reports whether a weekday recurrence set is configured.
func (c *Campaign) IsRecurring() bool {
	return len(c.Weekdays) > 0
}
