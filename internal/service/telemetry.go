package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/credentia/certportal-backend/internal/config"
	"github.com/credentia/certportal-backend/internal/model"
)

// RedisTelemetryQueue buffers heartbeat snapshots in a Redis list for the
// telemetry worker to drain in batches.
type RedisTelemetryQueue struct {
	rdb *redis.Client
}

// NewRedisTelemetryQueue creates a new RedisTelemetryQueue.
func NewRedisTelemetryQueue(rdb *redis.Client) *RedisTelemetryQueue {
	return &RedisTelemetryQueue{rdb: rdb}
}

// EnqueueHeartbeat pushes one snapshot onto the persistence queue.
func (q *RedisTelemetryQueue) EnqueueHeartbeat(ctx context.Context, snapshot TelemetrySnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal telemetry snapshot: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistTelemetryQueue, payload).Err(); err != nil {
		return fmt.Errorf("enqueue telemetry snapshot: %w", err)
	}
	return nil
}

// RedisMonitorPublisher fans security events out over per-exam pub/sub
// channels consumed by the live proctoring WebSocket.
type RedisMonitorPublisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisMonitorPublisher creates a new RedisMonitorPublisher.
func NewRedisMonitorPublisher(rdb *redis.Client, log zerolog.Logger) *RedisMonitorPublisher {
	return &RedisMonitorPublisher{
		rdb: rdb,
		log: log.With().Str("component", "monitor_publisher").Logger(),
	}
}

// MonitorMessage is the wire shape published to watchers.
type MonitorMessage struct {
	Type       string                  `json:"type"`
	AttemptID  uuid.UUID               `json:"attempt_id"`
	StudentID  uuid.UUID               `json:"student_id"`
	EventType  model.SecurityEventType `json:"event_type"`
	RiskScore  int                     `json:"risk_score"`
	EventData  json.RawMessage         `json:"event_data,omitempty"`
	OccurredAt int64                   `json:"occurred_at"`
}

// PublishSecurityEvent publishes the event on the exam's monitor channel.
// Publish failures are logged and dropped; monitoring is best-effort and
// must never fail the attempt operation.
func (p *RedisMonitorPublisher) PublishSecurityEvent(ctx context.Context, examID uuid.UUID, event *model.AttemptSecurityEvent) {
	msg := MonitorMessage{
		Type:       "security_event",
		AttemptID:  event.AttemptID,
		StudentID:  event.StudentID,
		EventType:  event.EventType,
		RiskScore:  event.RiskScore,
		EventData:  event.EventData,
		OccurredAt: event.OccurredAt.Unix(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		p.log.Error().Err(err).Msg("Failed to marshal monitor message")
		return
	}
	if err := p.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID.String()), payload).Err(); err != nil {
		p.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to publish monitor message")
	}
}
