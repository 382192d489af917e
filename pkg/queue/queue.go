package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueRegistrations is the Redis list key for meeting registrant jobs.
	QueueRegistrations = "worker:registrations"
	// QueueEmails is the Redis list key for notification email jobs.
	QueueEmails = "worker:emails"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeRegisterMeeting JobType = "register_meeting"
	JobTypeEmail           JobType = "email"
)

// RegisterMeetingPayload is the payload for registrant-registration jobs,
// enqueued when a restricted-access meeting starts.
type RegisterMeetingPayload struct {
	MeetingID         string    `json:"meeting_id"`
	CourseID          string    `json:"course_id"`
	BlockID           string    `json:"block_id"`
	HostUserID        uuid.UUID `json:"host_user_id"`
	EmailNotification bool      `json:"email_notification"`
}

// EmailPayload is the payload for meeting-start notification email jobs.
type EmailPayload struct {
	MeetingID string `json:"meeting_id"`
	BlockID   string `json:"block_id"`
	Recipient string `json:"recipient"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueRegisterMeeting enqueues a registrant-registration job.
func (q *Queue) EnqueueRegisterMeeting(ctx context.Context, payload RegisterMeetingPayload) error {
	return q.enqueue(ctx, QueueRegistrations, JobTypeRegisterMeeting, payload)
}

// EnqueueEmail enqueues a notification email job.
func (q *Queue) EnqueueEmail(ctx context.Context, payload EmailPayload) error {
	return q.enqueue(ctx, QueueEmails, JobTypeEmail, payload)
}

func (q *Queue) enqueue(ctx context.Context, key string, typ JobType, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("type", string(typ)))
	return nil
}

// Dequeue blocks until a job is available on any worker queue or ctx is done.
// Returns the job and the queue key it came from.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueRegistrations, QueueEmails).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job on its origin queue with incremented attempt.
// If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job, origin string) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, origin, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
