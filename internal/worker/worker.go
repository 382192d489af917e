package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/liveclass-lms/backend/config"
	"github.com/liveclass-lms/backend/internal/emaillogs"
	"github.com/liveclass-lms/backend/internal/enrollments"
	"github.com/liveclass-lms/backend/internal/meetings"
	"github.com/liveclass-lms/backend/internal/models"
	"github.com/liveclass-lms/backend/internal/zoom"
	"github.com/liveclass-lms/backend/pkg/email"
	"github.com/liveclass-lms/backend/pkg/queue"
)

// registrantBatchSize caps concurrent registrant calls per batch so a large
// course does not exhaust the vendor's per-second rate limit in one burst.
const registrantBatchSize = 30

// Processor processes background jobs: registering enrollees on restricted
// meetings when they start, and delivering meeting-start notification emails.
type Processor struct {
	cfg         *config.Config
	meetings    *meetings.Repository
	enrollments *enrollments.Repository
	emailLogs   *emaillogs.Repository
	tokens      *zoom.TokenManager
	zoom        *zoom.Client
	queue       *queue.Queue
	mailer      *email.Mailer
	logger      *zap.Logger
}

// NewProcessor creates a job processor.
func NewProcessor(cfg *config.Config, meetingRepo *meetings.Repository, enrollRepo *enrollments.Repository, logRepo *emaillogs.Repository, tokens *zoom.TokenManager, zoomClient *zoom.Client, q *queue.Queue, mailer *email.Mailer, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		cfg:         cfg,
		meetings:    meetingRepo,
		enrollments: enrollRepo,
		emailLogs:   logRepo,
		tokens:      tokens,
		zoom:        zoomClient,
		queue:       q,
		mailer:      mailer,
		logger:      logger,
	}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeRegisterMeeting:
		var payload queue.RegisterMeetingPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.processRegistration(ctx, payload)
	case queue.JobTypeEmail:
		var payload queue.EmailPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.processEmail(ctx, payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// processRegistration registers every active enrollee of the course on the
// started meeting, approves them and stores their personalized join links.
// Registrations run in bounded concurrent batches; one failed student never
// blocks the rest.
func (p *Processor) processRegistration(ctx context.Context, payload queue.RegisterMeetingPayload) error {
	accessToken, err := p.tokens.AccessToken(ctx, payload.HostUserID)
	if err != nil {
		return fmt.Errorf("host access token: %w", err)
	}

	enrollees, err := p.enrollments.ListActive(ctx, payload.CourseID, payload.HostUserID)
	if err != nil {
		return fmt.Errorf("list enrollees: %w", err)
	}
	if len(enrollees) == 0 {
		p.logger.Info("no enrollees to register", zap.String("meeting_id", payload.MeetingID))
		return nil
	}

	var (
		mu   sync.Mutex
		refs []zoom.RegistrantRef
	)
	for start := 0; start < len(enrollees); start += registrantBatchSize {
		end := start + registrantBatchSize
		if end > len(enrollees) {
			end = len(enrollees)
		}
		var wg sync.WaitGroup
		for _, e := range enrollees[start:end] {
			wg.Add(1)
			go func(e enrollments.Enrollee) {
				defer wg.Done()
				id, err := p.zoom.AddRegistrant(ctx, accessToken, payload.MeetingID, zoom.RegistrantInfo{
					Email:     e.Email,
					FirstName: e.FirstName,
					LastName:  e.LastName,
				})
				if err != nil {
					p.logger.Warn("register enrollee failed", zap.Error(err), zap.String("email", e.Email), zap.String("meeting_id", payload.MeetingID))
					return
				}
				mu.Lock()
				refs = append(refs, zoom.RegistrantRef{ID: id, Email: e.Email})
				mu.Unlock()
			}(e)
		}
		wg.Wait()
	}

	if err := p.zoom.ApproveRegistrants(ctx, accessToken, payload.MeetingID, refs); err != nil {
		return fmt.Errorf("approve registrants: %w", err)
	}

	joins, err := p.zoom.ListApprovedRegistrants(ctx, accessToken, payload.MeetingID)
	if err != nil {
		return fmt.Errorf("list approved registrants: %w", err)
	}
	for _, j := range joins {
		if err := p.meetings.UpsertRegistrant(ctx, payload.MeetingID, j.Email, j.JoinURL); err != nil {
			p.logger.Error("save registrant failed", zap.Error(err), zap.String("email", j.Email))
		}
	}

	if payload.EmailNotification {
		for _, j := range joins {
			err := p.queue.EnqueueEmail(ctx, queue.EmailPayload{
				MeetingID: payload.MeetingID,
				BlockID:   payload.BlockID,
				Recipient: j.Email,
			})
			if err != nil {
				p.logger.Error("enqueue email failed", zap.Error(err), zap.String("recipient", j.Email))
			}
		}
	}

	p.logger.Info("registration completed",
		zap.String("meeting_id", payload.MeetingID),
		zap.Int("enrollees", len(enrollees)),
		zap.Int("registered", len(refs)),
	)
	return nil
}

// processEmail delivers one meeting-start notification and records the
// attempt.
func (p *Processor) processEmail(ctx context.Context, payload queue.EmailPayload) error {
	meeting, err := p.meetings.GetByID(ctx, payload.MeetingID)
	if err != nil {
		return fmt.Errorf("load meeting: %w", err)
	}
	title := payload.MeetingID
	if meeting != nil {
		title = meeting.Title
	}

	subject := fmt.Sprintf("La clase %q ya comenzó", title)
	body := fmt.Sprintf(
		"La transmisión de la clase %q acaba de comenzar.\n\nIngresa al curso para obtener tu enlace personal:\n%s\n",
		title, p.blockURL(meeting, payload.BlockID),
	)

	log := &models.EmailLog{
		MeetingID: payload.MeetingID,
		Recipient: payload.Recipient,
		Subject:   subject,
		Status:    emaillogs.StatusSent,
	}
	sendErr := p.mailer.Send(payload.Recipient, subject, body)
	if sendErr != nil {
		log.Status = emaillogs.StatusFailed
		log.Error = sendErr.Error()
	}
	if err := p.emailLogs.Record(ctx, log); err != nil {
		p.logger.Error("record email log failed", zap.Error(err), zap.String("recipient", payload.Recipient))
	}
	if sendErr != nil {
		return fmt.Errorf("send email: %w", sendErr)
	}
	return nil
}

// blockURL builds the link back to the course unit holding the meeting.
func (p *Processor) blockURL(meeting *models.Meeting, blockID string) string {
	base := p.cfg.Server.ExternalURL
	if meeting != nil && meeting.CourseID != "" {
		return fmt.Sprintf("%s/courses/%s/jump_to/%s", base, meeting.CourseID, blockID)
	}
	return base
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker stopping")
			return
		default:
		}

		job, origin, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job, origin); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
