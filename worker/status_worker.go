package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"zapflow/models"
	"zapflow/utils"
)

// StatusWorker keeps the stored connection state in sync with the gateway.
// It is the only writer of Status and LastCheckedAt; Blocked is shared with
// the dispatcher's failover path.
type StatusWorker struct {
	DB      *gorm.DB
	Gateway *utils.GatewayClient
	Logger  *logrus.Logger

	PollInterval time.Duration
}

func NewStatusWorker(db *gorm.DB, gateway *utils.GatewayClient, logger *logrus.Logger) *StatusWorker {
	return &StatusWorker{
		DB:           db,
		Gateway:      gateway,
		Logger:       logger,
		PollInterval: 30 * time.Second,
	}
}

func (sw *StatusWorker) Start(ctx context.Context) {
	sw.Logger.Info("status worker started")
	ticker := time.NewTicker(sw.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.Logger.Info("status worker stopping")
			return
		case <-ticker.C:
			sw.sweep(ctx)
		}
	}
}

func (sw *StatusWorker) sweep(ctx context.Context) {
	var conns []models.Connection
	if err := sw.DB.Find(&conns).Error; err != nil {
		sw.Logger.WithError(err).Error("failed to list connections")
		return
	}

	for i := range conns {
		if ctx.Err() != nil {
			return
		}
		sw.refreshOne(ctx, &conns[i])
	}
}

func (sw *StatusWorker) refreshOne(ctx context.Context, conn *models.Connection) {
	log := sw.Logger.WithFields(logrus.Fields{
		"connection_id": conn.ID,
		"instance":      conn.InstanceName,
	})

	now := time.Now()
	updates := map[string]interface{}{"last_checked_at": &now}

	state, err := sw.Gateway.ConnectionState(ctx, conn.InstanceName)
	switch {
	case err == nil:
		status := models.ConnectionClose
		if state.State == "open" {
			status = models.ConnectionOpen
		}
		if status != conn.Status {
			log.WithField("state", state.State).Info("connection state changed")
		}
		updates["status"] = status
		// A device that paired again is trusted again.
		if status == models.ConnectionOpen && conn.Blocked {
			updates["blocked"] = false
			updates["last_error"] = nil
		}
	case utils.IsChannelBlocked(err):
		log.WithError(err).Warn("connection blocked by gateway")
		updates["status"] = models.ConnectionClose
		updates["blocked"] = true
		updates["last_error"] = err.Error()
	default:
		// Transient probe failure; keep the last known state.
		log.WithError(err).Debug("state probe failed")
	}

	if err := sw.DB.Model(&models.Connection{}).Where("id = ?", conn.ID).Updates(updates).Error; err != nil {
		reportError(sw.Logger, "connection_state_persist", err, map[string]interface{}{
			"connection_id": conn.ID,
			"instance":      conn.InstanceName,
		})
	}
}
