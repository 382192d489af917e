package broadcasts

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/liveclass-lms/backend/config"
)

// ErrYouTubeUnavailable marks a vendor-side failure (5xx). The block shows a
// "try again later" message for these instead of a permission error.
var ErrYouTubeUnavailable = errors.New("youtube unavailable")

const (
	broadcastPrivacy  = "private"
	streamResolution  = "720p"
	streamFrameRate   = "30fps"
	streamIngestion   = "rtmp"
	probeBroadcastTag = "permission probe"
)

// Broadcast is a created live broadcast together with the RTMP endpoint a
// meeting must stream to.
type Broadcast struct {
	ID        string
	StreamURL string
	StreamKey string
}

// WatchURL returns the public watch page for the broadcast.
func (b *Broadcast) WatchURL() string {
	return "https://youtu.be/" + b.ID
}

// YouTube wraps the live-broadcast operations of the YouTube Data API.
type YouTube struct {
	cfg   config.GoogleConfig
	oauth *oauth2.Config
}

// NewYouTube creates a YouTube client. externalURL is the public base URL this
// service is reachable at; the OAuth callback is built from it.
func NewYouTube(cfg config.GoogleConfig, externalURL string) *YouTube {
	return &YouTube{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  externalURL + cfg.RedirectPath,
			Scopes:       []string{youtube.YoutubeScope},
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthURL builds the Google consent URL. Offline access with forced consent
// guarantees a refresh token on every link, so re-linking never strands the
// stored credentials.
func (y *YouTube) AuthURL(state string) string {
	return y.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades an authorization code for a token.
func (y *YouTube) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return y.oauth.Exchange(ctx, code)
}

func (y *YouTube) service(ctx context.Context, token *oauth2.Token) (*youtube.Service, error) {
	return youtube.NewService(ctx, option.WithHTTPClient(y.oauth.Client(ctx, token)))
}

// scheduledStart joins the local date and time fields with the configured UTC
// offset into the RFC3339 timestamp the API expects.
func (y *YouTube) scheduledStart(date, startTime string) string {
	return fmt.Sprintf("%sT%s:00%s", date, startTime, y.cfg.Timezone)
}

// HasChannel reports whether the token's account owns a YouTube channel.
func (y *YouTube) HasChannel(ctx context.Context, token *oauth2.Token) (bool, error) {
	svc, err := y.service(ctx, token)
	if err != nil {
		return false, err
	}
	resp, err := svc.Channels.List([]string{"id"}).Mine(true).Do()
	if err != nil {
		return false, classify(err)
	}
	return len(resp.Items) > 0, nil
}

// CanBroadcast probes whether the account may create live broadcasts by
// inserting a throwaway broadcast and deleting it again. Accounts without
// live-streaming enabled fail the insert with a permission error.
func (y *YouTube) CanBroadcast(ctx context.Context, token *oauth2.Token) (bool, error) {
	svc, err := y.service(ctx, token)
	if err != nil {
		return false, err
	}
	probe := &youtube.LiveBroadcast{
		Snippet: &youtube.LiveBroadcastSnippet{
			Title:              probeBroadcastTag,
			ScheduledStartTime: y.scheduledStart("2100-01-01", "00:00"),
		},
		Status: &youtube.LiveBroadcastStatus{
			PrivacyStatus:           broadcastPrivacy,
			SelfDeclaredMadeForKids: false,
		},
	}
	created, err := svc.LiveBroadcasts.Insert([]string{"snippet", "status"}, probe).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code < 500 {
			return false, nil
		}
		return false, classify(err)
	}
	if err := svc.LiveBroadcasts.Delete(created.Id).Do(); err != nil {
		return true, classify(err)
	}
	return true, nil
}

// CreateBroadcast creates a private scheduled broadcast with a bound RTMP
// stream. Auto start/stop ties the broadcast lifecycle to the incoming stream,
// so ending the meeting ends the video.
func (y *YouTube) CreateBroadcast(ctx context.Context, token *oauth2.Token, title, description, date, startTime string) (*Broadcast, error) {
	svc, err := y.service(ctx, token)
	if err != nil {
		return nil, err
	}

	broadcast := &youtube.LiveBroadcast{
		Snippet: &youtube.LiveBroadcastSnippet{
			Title:              title,
			Description:        description,
			ScheduledStartTime: y.scheduledStart(date, startTime),
		},
		Status: &youtube.LiveBroadcastStatus{
			PrivacyStatus:           broadcastPrivacy,
			SelfDeclaredMadeForKids: false,
		},
		ContentDetails: &youtube.LiveBroadcastContentDetails{
			EnableAutoStart: true,
			EnableAutoStop:  true,
		},
	}
	broadcast, err = svc.LiveBroadcasts.Insert([]string{"snippet", "status", "contentDetails"}, broadcast).Do()
	if err != nil {
		return nil, classify(err)
	}

	stream := &youtube.LiveStream{
		Snippet: &youtube.LiveStreamSnippet{Title: title},
		Cdn: &youtube.CdnSettings{
			Resolution:    streamResolution,
			FrameRate:     streamFrameRate,
			IngestionType: streamIngestion,
		},
	}
	stream, err = svc.LiveStreams.Insert([]string{"snippet", "cdn"}, stream).Do()
	if err != nil {
		return nil, classify(err)
	}

	if _, err := svc.LiveBroadcasts.Bind(broadcast.Id, []string{"id"}).StreamId(stream.Id).Do(); err != nil {
		return nil, classify(err)
	}

	return &Broadcast{
		ID:        broadcast.Id,
		StreamURL: stream.Cdn.IngestionInfo.IngestionAddress,
		StreamKey: stream.Cdn.IngestionInfo.StreamName,
	}, nil
}

// UpdateBroadcast rewrites the title, description and schedule of an existing
// broadcast. The broadcast id and bound stream are untouched.
func (y *YouTube) UpdateBroadcast(ctx context.Context, token *oauth2.Token, broadcastID, title, description, date, startTime string) error {
	svc, err := y.service(ctx, token)
	if err != nil {
		return err
	}
	broadcast := &youtube.LiveBroadcast{
		Id: broadcastID,
		Snippet: &youtube.LiveBroadcastSnippet{
			Title:              title,
			Description:        description,
			ScheduledStartTime: y.scheduledStart(date, startTime),
		},
		Status: &youtube.LiveBroadcastStatus{
			PrivacyStatus:           broadcastPrivacy,
			SelfDeclaredMadeForKids: false,
		},
	}
	if _, err := svc.LiveBroadcasts.Update([]string{"snippet", "status"}, broadcast).Do(); err != nil {
		return classify(err)
	}
	return nil
}

// classify wraps vendor 5xx responses in ErrYouTubeUnavailable so handlers can
// distinguish them from permission and validation failures.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 500 {
		return fmt.Errorf("%w: %v", ErrYouTubeUnavailable, err)
	}
	return err
}
