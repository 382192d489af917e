// Package redirect builds the vendor OAuth entry URLs used by the block UI to
// send an instructor through a login hop and back to the page they came from.
//
// Each builder matches the encoding its server endpoint expects. The login hop
// percent-encodes the raw page URL, the start-meeting hop carries a base64 JSON
// payload, and the Google flow packs the return URL into the OAuth state
// parameter as plain base64. These are three distinct endpoint contracts, not
// one rule; do not unify them without changing the corresponding endpoint.
package redirect

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
)

// LoginURL builds the vendor OAuth entry URL for the login hop. The callback on
// the current origin is percent-encoded and receives the raw page URL in its
// redirect query parameter, also percent-encoded.
func LoginURL(vendorBase, origin, callbackPath, pageURL string) string {
	return vendorBase + url.QueryEscape(origin+callbackPath) + "?redirect=" + url.QueryEscape(pageURL)
}

// StartURL builds the vendor OAuth entry URL for the start-meeting hop. The
// payload identifying the resource to return to is serialized as JSON and
// base64-encoded into the callback's data query parameter.
func StartURL(vendorBase, origin, callbackPath string, payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	data := base64.StdEncoding.EncodeToString(raw)
	return vendorBase + url.QueryEscape(origin+callbackPath) + "?data=" + data, nil
}

// EncodeState packs a return URL into an OAuth state parameter as base64.
func EncodeState(pageURL string) string {
	return base64.StdEncoding.EncodeToString([]byte(pageURL))
}

// DecodeState recovers the return URL from an OAuth state parameter.
func DecodeState(state string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(state)
	if err != nil {
		return "", fmt.Errorf("decode state: %w", err)
	}
	return string(raw), nil
}

// DecodeData recovers a base64 JSON payload from a callback data parameter into dst.
func DecodeData(data string, dst interface{}) error {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	return nil
}
