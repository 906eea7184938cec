package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-ews-api/internal/dto"
	"github.com/noah-isme/gema-ews-api/internal/models"
	"github.com/noah-isme/gema-ews-api/internal/observability"
	"github.com/noah-isme/gema-ews-api/internal/repository"
	"github.com/noah-isme/gema-ews-api/internal/risk"
)

const (
	alertBufferSize = 16
	alertSeenWindow = 256
)

// ErrAlertNotFound indicates the alert does not exist.
var ErrAlertNotFound = errors.New("alert not found")

// TierChange records one student's tier before and after a reclassification.
type TierChange struct {
	StudentID string
	Name      string
	From      risk.Tier
	To        risk.Tier
	Score     int
}

// Escalated reports whether the change moves the student into the High tier.
func (c TierChange) Escalated() bool {
	return c.To == risk.TierHigh && c.From != risk.TierHigh
}

// AlertService persists risk alerts and streams them to connected mentors.
type AlertService interface {
	RaiseEscalations(ctx context.Context, changes []TierChange) ([]dto.AlertResponse, error)
	List(ctx context.Context, req dto.AlertListRequest) (dto.AlertListResponse, error)
	MarkRead(ctx context.Context, id uint) (dto.AlertResponse, error)
	Subscribe() (<-chan dto.AlertResponse, func())
	Start(ctx context.Context)
}

type alertService struct {
	repo        repository.AlertRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	broker      *alertBroker
	nodeID      string
	seen        *seenAlerts
}

// seenAlerts remembers recently relayed alert ids so a redelivered event is broadcast once.
type seenAlerts struct {
	mu    sync.Mutex
	ids   map[uint]struct{}
	order []uint
}

func (s *seenAlerts) firstSighting(id uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > alertSeenWindow {
		delete(s.ids, s.order[0])
		s.order = s.order[1:]
	}
	return true
}

type alertEvent struct {
	Source string            `json:"source"`
	Alert  dto.AlertResponse `json:"alert"`
	SentAt time.Time         `json:"sent_at"`
}

type alertBroker struct {
	mu          sync.RWMutex
	subscribers map[chan dto.AlertResponse]struct{}
}

// NewAlertService constructs an alert service. Redis and NATS are optional fan-out transports;
// only one is used, NATS when both are configured.
func NewAlertService(repo repository.AlertRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) AlertService {
	stream := ""
	subject := ""
	if channelBase != "" {
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".alerts"
		if natsConn == nil {
			stream = channelBase + ":alerts"
		}
	}

	return &alertService{
		repo:        repo,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "alert_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-ews-api/internal/service/alert"),
		sanitizer:   bluemonday.StrictPolicy(),
		broker: &alertBroker{
			subscribers: make(map[chan dto.AlertResponse]struct{}),
		},
		nodeID: uuid.NewString(),
		seen:   &seenAlerts{ids: make(map[uint]struct{})},
	}
}

func (s *alertService) Start(ctx context.Context) {
	switch {
	case s.nats != nil && s.natsSubject != "":
		go s.consumeNATS(ctx)
	case s.redis != nil && s.redisStream != "":
		go s.consumeRedis(ctx)
	}
}

func (s *alertService) RaiseEscalations(ctx context.Context, changes []TierChange) ([]dto.AlertResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "alerts.raise_escalations")
	defer span.End()

	raised := make([]dto.AlertResponse, 0)
	for _, change := range changes {
		if !change.Escalated() {
			continue
		}

		model := models.RiskAlert{
			StudentID: change.StudentID,
			Type:      models.AlertTypeEscalation,
			Message:   s.escalationMessage(change),
			FromLevel: string(change.From),
			ToLevel:   string(change.To),
			RiskScore: change.Score,
		}

		if err := s.repo.Create(spanCtx, &model); err != nil {
			span.RecordError(err)
			return raised, err
		}

		response := dto.NewAlertResponse(model)
		s.broker.broadcast(response)
		if err := s.publish(spanCtx, response); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish alert to broker")
		}

		observability.AlertsPublished().WithLabelValues(response.Type).Inc()
		raised = append(raised, response)
	}

	span.SetAttributes(attribute.Int("alerts.raised", len(raised)))
	return raised, nil
}

func (s *alertService) escalationMessage(change TierChange) string {
	from := string(change.From)
	if from == "" {
		from = "unclassified"
	}
	name := strings.TrimSpace(s.sanitizer.Sanitize(change.Name))
	if name == "" {
		name = "Unknown"
	}
	message := fmt.Sprintf("%s (%s) moved from %s to %s, composite score %d", name, change.StudentID, from, change.To, change.Score)
	return strings.TrimSpace(s.sanitizer.Sanitize(message))
}

func (s *alertService) List(ctx context.Context, req dto.AlertListRequest) (dto.AlertListResponse, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	alerts, total, err := s.repo.List(ctx, repository.AlertFilter{
		StudentID:  strings.TrimSpace(req.StudentID),
		UnreadOnly: req.UnreadOnly,
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
	})
	if err != nil {
		return dto.AlertListResponse{}, err
	}

	return dto.AlertListResponse{
		Items:      dto.NewAlertResponseSlice(alerts),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *alertService) MarkRead(ctx context.Context, id uint) (dto.AlertResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "alerts.mark_read", trace.WithAttributes(attribute.Int("alert.id", int(id))))
	defer span.End()

	alert, err := s.repo.MarkRead(spanCtx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AlertResponse{}, ErrAlertNotFound
		}
		span.RecordError(err)
		return dto.AlertResponse{}, err
	}

	return dto.NewAlertResponse(alert), nil
}

func (s *alertService) Subscribe() (<-chan dto.AlertResponse, func()) {
	channel := make(chan dto.AlertResponse, alertBufferSize)

	s.broker.subscribe(channel)
	observability.AlertStreamClients().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(channel)
			observability.AlertStreamClients().Dec()
		})
	}

	return channel, cleanup
}

func (s *alertService) publish(ctx context.Context, alert dto.AlertResponse) error {
	event := alertEvent{
		Source: s.nodeID,
		Alert:  alert,
		SentAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	switch {
	case s.nats != nil && s.natsSubject != "":
		return s.nats.Publish(s.natsSubject, payload)
	case s.redis != nil && s.redisStream != "":
		return s.redis.Publish(ctx, s.redisStream, payload).Err()
	default:
		return nil
	}
}

func (s *alertService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("alert redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *alertService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats alerts subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain alert nats subscription")
		}
	}()
}

func (s *alertService) handleEvent(payload []byte) {
	var event alertEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid alert event payload")
		return
	}

	if event.Source == s.nodeID || !s.seen.firstSighting(event.Alert.ID) {
		return
	}

	s.broker.broadcast(event.Alert)
}

func (b *alertBroker) subscribe(ch chan dto.AlertResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = struct{}{}
}

func (b *alertBroker) unsubscribe(ch chan dto.AlertResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *alertBroker) broadcast(alert dto.AlertResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- alert:
		default:
		}
	}
}
