// services/sync.go
package services

import (
	"context"
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	"github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/riddlehouse/riddle_api/dto"
	"github.com/riddlehouse/riddle_api/model"
	"github.com/riddlehouse/riddle_api/shared"
)

// presencePublisher is the transport seam; tests swap in a fake.
type presencePublisher interface {
	publish(ctx context.Context, method string, body []byte) error
}

type amqpPublisher struct {
	ch       *amqp091.Channel
	exchange string
}

func (p *amqpPublisher) publish(ctx context.Context, method string, body []byte) error {
	return p.ch.PublishWithContext(ctx,
		p.exchange,
		method, // routing key = presence method name
		false,
		false,
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
}

// SyncService translates state-machine outcomes into Presence Sync Service
// calls. Delivery is fire-and-forget: a publish failure is logged and
// swallowed, never rolled back into the store — the engine's state stays
// authoritative while the cosmetic presence layer drifts until the next
// bulk resync.
type SyncService struct {
	appContext.DefaultService

	mediaSvc      *MediaService
	monitoringSvc *MonitoringService

	conn      *amqp091.Connection
	publisher presencePublisher

	url      string
	exchange string
	timeout  time.Duration
}

const SYNC_SVC = "sync_svc"

func (svc SyncService) Id() string {
	return SYNC_SVC
}

func (svc *SyncService) Configure(ctx *appContext.Context) error {
	svc.url = os.Getenv("PRESENCE_AMQP_URL")

	svc.exchange = os.Getenv("PRESENCE_EXCHANGE")
	if svc.exchange == "" {
		svc.exchange = "presence_sync"
	}

	svc.timeout = 5 * time.Second
	if t := os.Getenv("PRESENCE_TIMEOUT_SECONDS"); t != "" {
		if secs, err := strconv.Atoi(t); err == nil && secs > 0 {
			svc.timeout = time.Duration(secs) * time.Second
		}
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *SyncService) Start() error {
	svc.mediaSvc, _ = svc.Service(MEDIA_SVC).(*MediaService)
	svc.monitoringSvc, _ = svc.Service(MONITORING_SVC).(*MonitoringService)

	if svc.url == "" {
		log.Warn("PRESENCE_AMQP_URL not set, presence sync disabled")
		return nil
	}

	conn, err := amqp091.Dial(svc.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}

	if err := ch.ExchangeDeclare(
		svc.exchange,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	svc.conn = conn
	svc.publisher = &amqpPublisher{ch: ch, exchange: svc.exchange}
	log.Printf("Presence sync connected, exchange %s", svc.exchange)
	return nil
}

func (svc *SyncService) Shutdown() {
	if svc.conn != nil {
		_ = svc.conn.Close()
	}
}

// dispatch publishes one call with a bounded timeout. Errors here are the
// SYNC_UNREACHABLE class: logged, counted, swallowed.
func (svc *SyncService) dispatch(method string, payload interface{}) {
	if svc.publisher == nil {
		return
	}

	body, err := sonic.Marshal(payload)
	if err != nil {
		log.WithError(err).Errorf("Failed to marshal %s payload", method)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), svc.timeout)
	defer cancel()

	if err := svc.publisher.publish(ctx, method, body); err != nil {
		log.WithError(err).Warnf("Presence sync %s unreachable", method)
		if svc.monitoringSvc != nil {
			svc.monitoringSvc.RecordSyncFailure(method)
		}
	}
}

func levelDescriptor(level *model.Level) dto.LevelDescriptor {
	return dto.LevelDescriptor{
		Name:     level.Name,
		SetIndex: level.SetIndex,
		Index:    level.LevelIndex,
		Rank:     level.Rank,
		IsSecret: level.IsSecret,
	}
}

// Advance grants "reached" access for a level and revokes the superseded
// ancestors' access.
func (svc *SyncService) Advance(riddle, username string, level *model.Level, superseded []string) {
	svc.dispatch(shared.SyncAdvance, dto.AdvancePayload{
		Riddle:     riddle,
		Username:   username,
		Level:      levelDescriptor(level),
		Superseded: superseded,
	})
}

func (svc *SyncService) Beat(riddle, username string, level *model.Level, points int, firstToSolve bool, milestone string) {
	svc.dispatch(shared.SyncBeat, dto.BeatPayload{
		Riddle:       riddle,
		Username:     username,
		Level:        levelDescriptor(level),
		Points:       points,
		FirstToSolve: firstToSolve,
		Milestone:    milestone,
	})
}

func (svc *SyncService) SecretFound(riddle, username string, level *model.Level) {
	svc.dispatch(shared.SyncSecretFound, dto.SecretFoundPayload{
		Riddle:   riddle,
		Username: username,
		Level:    levelDescriptor(level),
	})
}

func (svc *SyncService) SecretSolve(riddle, username string, level *model.Level, points int, firstToSolve bool) {
	svc.dispatch(shared.SyncSecretSolve, dto.SecretSolvePayload{
		Riddle:       riddle,
		Username:     username,
		Level:        levelDescriptor(level),
		Points:       points,
		FirstToSolve: firstToSolve,
	})
}

func (svc *SyncService) CheevoFound(riddle, username string, cheevo *model.Achievement, points int) {
	mediaURL := ""
	if cheevo.ImagePath != "" && svc.mediaSvc != nil {
		url, err := svc.mediaSvc.AchievementMediaURL(cheevo.ImagePath)
		if err != nil {
			log.WithError(err).Debugf("No media URL for achievement %s", cheevo.Title)
		} else {
			mediaURL = url
		}
	}

	svc.dispatch(shared.SyncCheevoFound, dto.CheevoFoundPayload{
		Riddle:      riddle,
		Username:    username,
		Achievement: cheevo.Title,
		Rank:        cheevo.Rank,
		Points:      points,
		MediaURL:    mediaURL,
	})
}

func (svc *SyncService) GameCompleted(riddle, username string) {
	svc.dispatch(shared.SyncGameCompleted, dto.GameCompletedPayload{
		Riddle:   riddle,
		Username: username,
	})
}
