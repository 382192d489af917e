package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrSaveInProgress is returned when a save is triggered while a previous
	// one is still running. The editor disables the save control for the
	// duration, so hitting this means the guard did its job.
	ErrSaveInProgress = errors.New("save already in progress")
	// ErrValidation marks local validation failures; nothing was sent.
	ErrValidation = errors.New("validation failed")
	// ErrBroadcastRejected marks a broadcast step that answered with a
	// non-success status; block storage was not touched.
	ErrBroadcastRejected = errors.New("broadcast rejected")
)

// Broadcast endpoint status contract.
const (
	broadcastStatusOK = "ok"
	// broadcastTextProvisioning is the failure code the broadcast endpoint
	// answers while the video host is still enabling live streaming for the
	// channel.
	broadcastTextProvisioning = "youtube_500"
)

// User-facing error messages for the broadcast step.
const (
	errTitleBroadcast      = "Error en la transmisión"
	errMsgBroadcast        = "No se pudo crear la transmisión en vivo. La reunión no fue guardada, inténtalo nuevamente."
	errMsgYouTubeProvision = "YouTube aún está habilitando las transmisiones en vivo para tu canal. Esto puede tardar hasta 24 horas, inténtalo más tarde."
)

// Notifier is the host-runtime notification channel. Calls are fire and
// forget; no return value is consumed.
type Notifier interface {
	SaveStart()
	SaveEnd()
	Cancel()
	Error(title, message string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) SaveStart()                  {}
func (NopNotifier) SaveEnd()                    {}
func (NopNotifier) Cancel()                     {}
func (NopNotifier) Error(title, message string) {}

// Result is the consolidated outcome of a completed save.
type Result struct {
	MeetingID       string
	StartURL        string
	JoinURL         string
	MeetingPassword string
	BroadcastID     string
}

// Orchestrator runs the save pipeline: validate, save the meeting, optionally
// save the broadcast, persist into block storage. Steps are strictly
// sequential; each one amends the shared form payload the next one submits.
type Orchestrator struct {
	settings Settings
	notifier Notifier
	http     *http.Client
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight bool
}

// NewOrchestrator creates a save orchestrator for one editor page.
func NewOrchestrator(settings Settings, notifier Notifier, httpClient *http.Client, logger *zap.Logger) *Orchestrator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{settings: settings, notifier: notifier, http: httpClient, logger: logger}
}

// Cancel notifies the host runtime that the editor was dismissed.
func (o *Orchestrator) Cancel() {
	o.notifier.Cancel()
}

// Validate checks the draft locally. It never touches the network; a failure
// leaves all stored state exactly as it was.
func (o *Orchestrator) Validate(draft Draft) error {
	if draft.DisplayName == "" {
		return fmt.Errorf("%w: display name is required", ErrValidation)
	}
	if draft.Date == "" {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	if draft.Time == "" {
		return fmt.Errorf("%w: time is required", ErrValidation)
	}
	if _, ok := draft.durationValue(); !ok {
		return fmt.Errorf("%w: duration must be a non-negative number", ErrValidation)
	}
	if draft.Broadcast && o.settings.BroadcastPermission != BroadcastPermissionEnabled {
		return fmt.Errorf("%w: broadcast requested without permission", ErrValidation)
	}
	return nil
}

// Save runs the whole pipeline. Only one save may run at a time; concurrent
// triggers fail fast with ErrSaveInProgress.
func (o *Orchestrator) Save(ctx context.Context, draft Draft) (*Result, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return nil, ErrSaveInProgress
	}
	o.inFlight = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	if err := o.Validate(draft); err != nil {
		return nil, err
	}

	form := o.baseForm(draft)
	result, err := o.saveMeeting(ctx, draft, form)
	if err != nil {
		return nil, err
	}

	if draft.Broadcast {
		if err := o.saveBroadcast(ctx, form, result); err != nil {
			return nil, err
		}
	}

	if err := o.persist(ctx, form); err != nil {
		return nil, err
	}
	return result, nil
}

// baseForm builds the initial payload from the draft and the stored identity
// metadata. Later steps amend it in place.
func (o *Orchestrator) baseForm(draft Draft) url.Values {
	duration, _ := draft.durationValue()
	form := url.Values{}
	form.Set("display_name", draft.DisplayName)
	form.Set("description", draft.Description)
	form.Set("date", draft.Date)
	form.Set("time", draft.Time)
	form.Set("duration", strconv.Itoa(duration))
	form.Set("created_by", o.settings.CreatorID)
	form.Set("restricted_access", strconv.FormatBool(draft.RestrictedAccess))
	form.Set("email_notification", strconv.FormatBool(draft.EmailNotification))
	form.Set("course_id", o.settings.CourseID)
	form.Set("block_id", o.settings.BlockID)
	if o.settings.HasMeeting() {
		form.Set("meeting_id", o.settings.MeetingID)
	}
	return form
}

type meetingResponse struct {
	MeetingID       string `json:"meeting_id"`
	StartURL        string `json:"start_url"`
	JoinURL         string `json:"join_url"`
	MeetingPassword string `json:"meeting_password"`
}

// saveMeeting submits the meeting to the vendor, choosing create or update by
// whether a meeting id is already stored. On update the stored start/join
// links and password are carried forward verbatim; the response is not
// trusted for them, which keeps update-only calls from drifting vendor state
// into the block.
func (o *Orchestrator) saveMeeting(ctx context.Context, draft Draft, form url.Values) (*Result, error) {
	endpoint := o.settings.Endpoints.CreateMeeting
	if o.settings.HasMeeting() {
		endpoint = o.settings.Endpoints.UpdateMeeting
	}

	var resp meetingResponse
	if err := o.post(ctx, endpoint, form, &resp); err != nil {
		return nil, fmt.Errorf("save meeting: %w", err)
	}
	if resp.MeetingID == "" {
		return nil, fmt.Errorf("save meeting: response carried no meeting id")
	}

	result := &Result{MeetingID: resp.MeetingID}
	if o.settings.HasMeeting() {
		result.StartURL = o.settings.StartURL
		result.JoinURL = o.settings.JoinURL
		result.MeetingPassword = o.settings.MeetingPassword
	} else {
		result.StartURL = resp.StartURL
		result.JoinURL = resp.JoinURL
		result.MeetingPassword = resp.MeetingPassword
	}

	form.Set("meeting_id", result.MeetingID)
	form.Set("start_url", result.StartURL)
	form.Set("join_url", result.JoinURL)
	form.Set("meeting_password", result.MeetingPassword)
	return result, nil
}

type broadcastResponse struct {
	Status      string `json:"status"`
	BroadcastID string `json:"id_broadcast"`
	Text        string `json:"text"`
}

// saveBroadcast submits the companion broadcast, choosing create or update by
// whether a broadcast id is already stored. Any status other than the success
// value aborts the pipeline before block storage is touched and surfaces a
// user-facing error through the host runtime.
func (o *Orchestrator) saveBroadcast(ctx context.Context, form url.Values, result *Result) error {
	endpoint := o.settings.Endpoints.CreateBroadcast
	if o.settings.BroadcastID != "" {
		endpoint = o.settings.Endpoints.UpdateBroadcast
		form.Set("id_broadcast", o.settings.BroadcastID)
	}

	var resp broadcastResponse
	if err := o.post(ctx, endpoint, form, &resp); err != nil {
		o.notifier.Error(errTitleBroadcast, errMsgBroadcast)
		return fmt.Errorf("save broadcast: %w", err)
	}
	if resp.Status != broadcastStatusOK {
		message := errMsgBroadcast
		if resp.Text == broadcastTextProvisioning {
			message = errMsgYouTubeProvision
		}
		o.notifier.Error(errTitleBroadcast, message)
		return fmt.Errorf("%w: status %q", ErrBroadcastRejected, resp.Status)
	}

	result.BroadcastID = resp.BroadcastID
	form.Set("id_broadcast", resp.BroadcastID)
	form.Set("broadcast_enabled", "true")
	return nil
}

// persist submits the accumulated payload to the host platform's block
// storage. The response body is only a completion signal; it is not
// inspected, and SaveEnd fires whether or not the host answered, so the
// editor never hangs in its saving state.
func (o *Orchestrator) persist(ctx context.Context, form url.Values) error {
	o.notifier.SaveStart()
	defer o.notifier.SaveEnd()

	if err := o.post(ctx, o.settings.Endpoints.Persist, form, nil); err != nil {
		return fmt.Errorf("persist block: %w", err)
	}
	return nil
}

// post submits one multipart form and decodes the JSON answer into out when
// given. A non-200 answer is an error; the pipeline short-circuits on the
// first failed step.
func (o *Orchestrator) post(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, values := range form {
		for _, value := range values {
			if err := writer.WriteField(key, value); err != nil {
				return fmt.Errorf("write field %s: %w", key, err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := o.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
