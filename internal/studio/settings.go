// Package studio implements the instructor-facing editor flow: probing the
// vendor sessions that gate the form, and orchestrating the sequential
// create-or-update save across the meeting vendor, the broadcast vendor and
// the host platform's block storage.
package studio

import "strconv"

// BroadcastPermissionEnabled is the exact marker the host platform reports
// when an instructor may request broadcasts. Any other value, including other
// truthy-looking ones, means no.
const BroadcastPermissionEnabled = "1"

// Endpoints are the host-configured URLs the editor flow talks to. None of
// them are fixed constants; the host page injects them.
type Endpoints struct {
	ZoomIsLogged    string
	YouTubeValidate string
	CreateMeeting   string
	UpdateMeeting   string
	CreateBroadcast string
	UpdateBroadcast string
	Persist         string
}

// Settings is the immutable per-page configuration the host platform renders
// into the editor. It carries the stored state of the block, not the values
// currently typed into the form.
type Settings struct {
	Endpoints Endpoints

	CourseID   string
	BlockID    string
	UserID     string // platform user viewing the editor
	CreatorID  string // platform user who first saved the meeting
	OwnerEmail string // vendor account email recorded at creation

	// Stored meeting state. An empty MeetingID means no meeting exists yet.
	MeetingID       string
	StartURL        string
	JoinURL         string
	MeetingPassword string
	BroadcastID     string

	// BroadcastPermission is the host-reported permission marker, compared
	// against BroadcastPermissionEnabled verbatim.
	BroadcastPermission string

	EnrolledCount   int
	MaxParticipants int
}

// HasMeeting reports whether a meeting was already created for this block.
func (s Settings) HasMeeting() bool {
	return s.MeetingID != ""
}

// Draft is the mutable field set of an in-progress save, captured from the
// form at submission time.
type Draft struct {
	DisplayName       string
	Description       string
	Date              string // yyyy-mm-dd
	Time              string // HH:MM
	Duration          string // minutes, kept as entered for validation
	RestrictedAccess  bool
	EmailNotification bool
	Broadcast         bool
}

// durationValue parses the entered duration. Valid only when non-empty and
// non-negative.
func (d Draft) durationValue() (int, bool) {
	if d.Duration == "" {
		return 0, false
	}
	n, err := strconv.Atoi(d.Duration)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
