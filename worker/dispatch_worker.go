package worker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"zapflow/models"
	"zapflow/utils"
)

// DispatchWorker claims runnable campaigns and drives them to a terminal
// state. One goroutine per campaign; the claim loop guarantees a campaign
// is never driven by two goroutines in the same process, and ExecutionID
// fences out stale runners across restarts.
type DispatchWorker struct {
	DB      *gorm.DB
	Gateway *utils.GatewayClient
	Logger  *logrus.Logger

	PollInterval time.Duration

	mu      sync.Mutex
	running map[uint]struct{}
}

func NewDispatchWorker(db *gorm.DB, gateway *utils.GatewayClient, logger *logrus.Logger) *DispatchWorker {
	return &DispatchWorker{
		DB:           db,
		Gateway:      gateway,
		Logger:       logger,
		PollInterval: 15 * time.Second,
		running:      make(map[uint]struct{}),
	}
}

// Start blocks until ctx is cancelled, claiming runnable campaigns on every
// tick. Campaigns left "em andamento" by a crashed process are picked up
// again here.
func (dw *DispatchWorker) Start(ctx context.Context) {
	dw.Logger.Info("dispatch worker started")
	ticker := time.NewTicker(dw.PollInterval)
	defer ticker.Stop()

	dw.claimRunnable(ctx)
	for {
		select {
		case <-ctx.Done():
			dw.Logger.Info("dispatch worker stopping")
			return
		case <-ticker.C:
			dw.claimRunnable(ctx)
		}
	}
}

func (dw *DispatchWorker) claimRunnable(ctx context.Context) {
	var campaigns []models.Campaign
	err := dw.DB.
		Where("LOWER(REPLACE(TRIM(status), '_', ' ')) IN ?", []string{models.StatusWaiting, models.StatusRunning}).
		Find(&campaigns).Error
	if err != nil {
		reportError(dw.Logger, "campaign_claim", err, nil)
		return
	}

	for i := range campaigns {
		c := campaigns[i]
		dw.mu.Lock()
		if _, busy := dw.running[c.ID]; busy {
			dw.mu.Unlock()
			continue
		}
		dw.running[c.ID] = struct{}{}
		dw.mu.Unlock()

		go func(id uint) {
			defer func() {
				dw.mu.Lock()
				delete(dw.running, id)
				dw.mu.Unlock()
			}()
			dw.runCampaign(ctx, id)
		}(c.ID)
	}
}

// runCampaign executes one campaign run. It returns whenever the campaign
// leaves "em andamento" (pause, cancel, completion) or ctx is cancelled;
// the claim loop re-adopts it later if it becomes runnable again.
func (dw *DispatchWorker) runCampaign(ctx context.Context, campaignID uint) {
	log := dw.Logger.WithField("campaign_id", campaignID)

	var campaign models.Campaign
	if err := dw.DB.First(&campaign, campaignID).Error; err != nil {
		log.WithError(err).Error("failed to load campaign")
		return
	}

	execID := uuid.NewString()
	if models.NormalizeStatus(campaign.Status) == models.StatusWaiting {
		if err := campaign.Transition(models.StatusRunning); err != nil {
			log.WithError(err).Warn("campaign no longer startable")
			return
		}
		now := time.Now()
		campaign.StartedAt = &now
		campaign.ExecutionID = execID
		campaign.LastError = nil
		if err := dw.DB.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
			Updates(map[string]interface{}{
				"status":       campaign.Status,
				"started_at":   campaign.StartedAt,
				"execution_id": execID,
				"last_error":   nil,
			}).Error; err != nil {
			log.WithError(err).Error("failed to start campaign")
			return
		}
	} else {
		// Re-adopting an in-flight campaign (resume or process restart):
		// claim it under a fresh execution id so a stale runner elsewhere
		// loses its sends.
		campaign.ExecutionID = execID
		if err := dw.DB.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
			Update("execution_id", execID).Error; err != nil {
			log.WithError(err).Error("failed to claim campaign")
			return
		}
	}

	if err := dw.materializeDetails(&campaign); err != nil {
		reportError(dw.Logger, "campaign_materialize", err, map[string]interface{}{
			"campaign_id": campaign.ID,
		})
		dw.failCampaign(&campaign, "falha ao montar lista de destinatarios: "+err.Error())
		return
	}
	if campaign.TotalMessages == 0 {
		log.Info("campaign has no recipients, finishing")
		dw.finishCampaign(&campaign)
		return
	}

	log.WithFields(logrus.Fields{
		"total": campaign.TotalMessages,
		"sent":  campaign.SentMessages,
	}).Info("campaign run started")

	sentThisRun := 0
	for {
		if ctx.Err() != nil {
			return
		}

		// Safe point: re-read before every send so pause/cancel and config
		// edits take effect between dispatches.
		if err := dw.DB.First(&campaign, campaignID).Error; err != nil {
			log.WithError(err).Error("failed to refresh campaign")
			return
		}
		if models.NormalizeStatus(campaign.Status) != models.StatusRunning {
			log.WithField("status", campaign.Status).Info("campaign left running state")
			return
		}
		if campaign.ExecutionID != execID {
			log.Info("campaign claimed by another runner")
			return
		}

		if !canSendNow(&campaign, time.Now()) {
			if !sleepCtx(ctx, 30*time.Second) {
				return
			}
			continue
		}

		var detail models.CampaignDetail
		err := dw.DB.Where("campaign_id = ? AND status = ?", campaign.ID, models.DetailStatusPending).
			Order("id ASC").First(&detail).Error
		if err == gorm.ErrRecordNotFound {
			dw.finishCampaign(&campaign)
			log.Info("campaign finished")
			return
		}
		if err != nil {
			log.WithError(err).Error("failed to fetch next recipient")
			return
		}

		// Pacing gap before every send except the first of this run.
		if sentThisRun > 0 {
			if !sleepCtx(ctx, randomDelay(campaign.IntervalMinSec, campaign.IntervalMaxSec)) {
				return
			}
			// The gap is a safe point too.
			if err := dw.DB.First(&campaign, campaignID).Error; err != nil {
				return
			}
			if models.NormalizeStatus(campaign.Status) != models.StatusRunning || campaign.ExecutionID != execID {
				return
			}
		}

		conn, err := dw.pickConnection(&campaign)
		if err != nil {
			log.WithError(err).Warn("no usable connection, pausing campaign")
			dw.pauseCampaign(&campaign, "nenhuma conexao disponivel para envio")
			return
		}

		dw.dispatchOne(ctx, log, &campaign, &detail, conn)

		if models.IsDetailTerminal(detail.Status) && detail.Status != models.DetailStatusCanceled {
			sentThisRun++
		}

		if restDue(campaign.SentMessages, campaign.PauseAfterMessages) && sentThisRun > 0 {
			log.WithField("sent", campaign.SentMessages).Info("batch rest")
			if !sleepCtx(ctx, time.Duration(campaign.PauseMinutes)*time.Minute) {
				return
			}
		}
	}
}

// dispatchOne sends one message to one recipient. A blocked-channel error
// sidelines the connection and leaves the detail pending so another
// connection can retry it; every other outcome is terminal for the row.
func (dw *DispatchWorker) dispatchOne(ctx context.Context, log *logrus.Entry, campaign *models.Campaign, detail *models.CampaignDetail, conn *models.Connection) {
	msg := campaign.Messages[rand.Intn(len(campaign.Messages))]

	var result *utils.SendResult
	var err error
	switch msg.Kind {
	case "media":
		result, err = dw.Gateway.SendMedia(ctx, conn.InstanceName, detail.RecipientID, msg.MediaURL, msg.Caption)
	default:
		result, err = dw.Gateway.SendText(ctx, conn.InstanceName, detail.RecipientID, msg.Text)
	}

	if err != nil && utils.IsChannelBlocked(err) {
		log.WithError(err).WithField("connection_id", conn.ID).Warn("connection blocked by gateway")
		dw.sidelineConnection(conn, err.Error())
		return
	}

	now := time.Now()
	detail.ConnectionID = conn.ID
	if err != nil {
		detail.Status = models.DetailStatusFailed
		detail.ErrorText = err.Error()
		if ge, ok := err.(*utils.GatewayError); ok {
			detail.HTTPStatus = ge.StatusCode
			detail.GatewayResponse = ge.Body
		}
	} else {
		detail.Status = models.DetailStatusSent
		detail.HTTPStatus = result.HTTPStatus
		detail.GatewayResponse = result.RawBody
		detail.SentAt = &now
	}

	// Counter and ledger move together; progress counts attempts, success
	// or failure alike.
	txErr := dw.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
			Update("sent_messages", gorm.Expr("sent_messages + 1")).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.CampaignDetail{}).Where("id = ?", detail.ID).
			Updates(map[string]interface{}{
				"connection_id":    detail.ConnectionID,
				"status":           detail.Status,
				"http_status":      detail.HTTPStatus,
				"gateway_response": detail.GatewayResponse,
				"error_text":       detail.ErrorText,
				"sent_at":          detail.SentAt,
			}).Error; err != nil {
			return err
		}
		if detail.Status == models.DetailStatusSent {
			return tx.Model(&models.Connection{}).Where("id = ?", conn.ID).
				Updates(map[string]interface{}{
					"sent_today": gorm.Expr("sent_today + 1"),
					"total_sent": gorm.Expr("total_sent + 1"),
				}).Error
		}
		return nil
	})
	if txErr != nil {
		reportError(dw.Logger, "dispatch_record", txErr, map[string]interface{}{
			"campaign_id": campaign.ID,
			"detail_id":   detail.ID,
		})
		return
	}
	campaign.SentMessages++
}

// materializeDetails creates the pending ledger rows on the campaign's
// first run: one per distinct recipient across its bound lists, filtered
// by campaign type and the do-not-contact flag.
func (dw *DispatchWorker) materializeDetails(campaign *models.Campaign) error {
	var existing int64
	if err := dw.DB.Model(&models.CampaignDetail{}).Where("campaign_id = ?", campaign.ID).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	var listIDs []uint
	if err := dw.DB.Model(&models.CampaignContactList{}).Where("campaign_id = ?", campaign.ID).
		Pluck("contact_list_id", &listIDs).Error; err != nil {
		return err
	}
	if len(listIDs) == 0 {
		return nil
	}

	wantGroups := campaign.Type == models.CampaignTypeGroup
	var contacts []models.Contact
	if err := dw.DB.Where("contact_list_id IN ? AND is_group = ? AND is_do_not_contact = ?", listIDs, wantGroups, false).
		Order("id ASC").Find(&contacts).Error; err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(contacts))
	details := make([]models.CampaignDetail, 0, len(contacts))
	for _, ct := range contacts {
		rid := ct.RecipientID()
		if rid == "" {
			continue
		}
		if _, dup := seen[rid]; dup {
			continue
		}
		seen[rid] = struct{}{}
		rtype := models.RecipientContact
		if ct.IsGroup {
			rtype = models.RecipientGroup
		}
		details = append(details, models.CampaignDetail{
			CampaignID:    campaign.ID,
			RecipientID:   rid,
			RecipientName: ct.Name,
			RecipientType: rtype,
			Status:        models.DetailStatusPending,
		})
	}

	return dw.DB.Transaction(func(tx *gorm.DB) error {
		if len(details) > 0 {
			if err := tx.CreateInBatches(details, 200).Error; err != nil {
				return err
			}
		}
		campaign.TotalMessages = len(details)
		return tx.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
			Update("total_messages", len(details)).Error
	})
}

// pickConnection returns the bound connection with the most remaining daily
// capacity among those currently usable.
func (dw *DispatchWorker) pickConnection(campaign *models.Campaign) (*models.Connection, error) {
	var conns []models.Connection
	err := dw.DB.
		Joins("JOIN campaign_connections cc ON cc.connection_id = connections.id AND cc.deleted_at IS NULL").
		Where("cc.campaign_id = ?", campaign.ID).
		Where("connections.status = ? AND connections.blocked = ?", models.ConnectionOpen, false).
		Find(&conns).Error
	if err != nil {
		return nil, err
	}

	var best *models.Connection
	bestRemaining := -1
	for i := range conns {
		c := &conns[i]
		if !c.HasCapacity() {
			continue
		}
		remaining := int(^uint(0) >> 1)
		if c.DailyLimit > 0 {
			remaining = c.DailyLimit - c.SentToday
		}
		if remaining > bestRemaining {
			best = c
			bestRemaining = remaining
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no usable connection bound to campaign %d", campaign.ID)
	}
	return best, nil
}

func (dw *DispatchWorker) sidelineConnection(conn *models.Connection, reason string) {
	if err := dw.DB.Model(&models.Connection{}).Where("id = ?", conn.ID).
		Updates(map[string]interface{}{
			"blocked":    true,
			"last_error": reason,
		}).Error; err != nil {
		dw.Logger.WithError(err).WithField("connection_id", conn.ID).Error("failed to sideline connection")
	}
	conn.Blocked = true
}

func (dw *DispatchWorker) pauseCampaign(campaign *models.Campaign, reason string) {
	if err := campaign.Transition(models.StatusPaused); err != nil {
		return
	}
	if err := dw.DB.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
		Updates(map[string]interface{}{
			"status":     campaign.Status,
			"last_error": reason,
		}).Error; err != nil {
		dw.Logger.WithError(err).WithField("campaign_id", campaign.ID).Error("failed to pause campaign")
	}
}

func (dw *DispatchWorker) failCampaign(campaign *models.Campaign, reason string) {
	dw.pauseCampaign(campaign, reason)
}

func (dw *DispatchWorker) finishCampaign(campaign *models.Campaign) {
	if err := campaign.Transition(models.StatusFinished); err != nil {
		return
	}
	now := time.Now()
	if err := dw.DB.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
		Updates(map[string]interface{}{
			"status":       campaign.Status,
			"completed_at": &now,
		}).Error; err != nil {
		dw.Logger.WithError(err).WithField("campaign_id", campaign.ID).Error("failed to finish campaign")
	}
}
