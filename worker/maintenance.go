package worker

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"zapflow/models"
)

// Maintenance bundles the cron-driven housekeeping jobs.
type Maintenance struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewMaintenance(db *gorm.DB, logger *logrus.Logger) *Maintenance {
	return &Maintenance{DB: db, Logger: logger}
}

// PromoteScheduled moves "agendado" campaigns whose start time has arrived
// back to "aguardando" so the dispatcher claims them on its next tick.
func (m *Maintenance) PromoteScheduled() {
	res := m.DB.Model(&models.Campaign{}).
		Where("LOWER(REPLACE(TRIM(status), '_', ' ')) = ?", models.StatusScheduled).
		Where("scheduled_at IS NOT NULL AND scheduled_at <= ?", time.Now()).
		Update("status", models.StatusWaiting)
	if res.Error != nil {
		m.Logger.WithError(res.Error).Error("failed to promote scheduled campaigns")
		return
	}
	if res.RowsAffected > 0 {
		m.Logger.WithField("count", res.RowsAffected).Info("promoted scheduled campaigns")
	}
}

// ResetDailyCounters zeroes every connection's sent-today counter. Runs at
// midnight server time.
func (m *Maintenance) ResetDailyCounters() {
	res := m.DB.Model(&models.Connection{}).
		Where("sent_today > 0").
		Update("sent_today", 0)
	if res.Error != nil {
		m.Logger.WithError(res.Error).Error("failed to reset daily counters")
		return
	}
	m.Logger.WithField("count", res.RowsAffected).Info("daily send counters reset")
}
