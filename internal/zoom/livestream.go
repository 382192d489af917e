package zoom

import (
	"context"
	"net/http"
)

// Livestream holds the external stream endpoint a meeting broadcasts to.
type Livestream struct {
	StreamURL string `json:"stream_url"`
	StreamKey string `json:"stream_key"`
	PageURL   string `json:"page_url"`
}

// SetLivestream points a meeting at an external RTMP stream.
func (c *Client) SetLivestream(ctx context.Context, accessToken, meetingID string, ls Livestream) error {
	return c.do(ctx, http.MethodPatch, "/meetings/"+meetingID+"/livestream", accessToken, ls, http.StatusNoContent, nil)
}

type livestreamStatusBody struct {
	Action   string `json:"action"`
	Settings struct {
		ActiveSpeakerName bool   `json:"active_speaker_name"`
		DisplayName       string `json:"display_name"`
	} `json:"settings"`
}

// StartLivestream switches a running meeting's external stream on.
func (c *Client) StartLivestream(ctx context.Context, accessToken, meetingID string) error {
	body := livestreamStatusBody{Action: "start"}
	body.Settings.ActiveSpeakerName = false
	body.Settings.DisplayName = "Youtube"
	return c.do(ctx, http.MethodPatch, "/meetings/"+meetingID+"/livestream/status", accessToken, body, http.StatusNoContent, nil)
}

type userSettings struct {
	InMeeting struct {
		CustomLiveStreamingService bool `json:"custom_live_streaming_service"`
	} `json:"in_meeting"`
}

// LiveStreamingEnabled reports whether the account allows custom live
// streaming services on its meetings.
func (c *Client) LiveStreamingEnabled(ctx context.Context, accessToken string) (bool, error) {
	var settings userSettings
	if err := c.do(ctx, http.MethodGet, "/users/me/settings", accessToken, nil, http.StatusOK, &settings); err != nil {
		return false, err
	}
	return settings.InMeeting.CustomLiveStreamingService, nil
}
