package partner

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is the uniform result shape every proxy call produces, regardless
// of which of the partner's response variants came back.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Error taxonomy. Callers branch with errors.Is; the envelope carries the
// same classification in its Error field for transport serialization.
var (
	// ErrConfig: required credentials absent. The request is aborted before
	// any network call.
	ErrConfig = errors.New("partner: missing credentials")
	// ErrNetwork: the outbound call timed out or the connection failed.
	ErrNetwork = errors.New("partner: network failure")
	// ErrPartner: the partner was reachable but reported a business failure.
	ErrPartner = errors.New("partner: request rejected")
	// ErrUnknownAction: the action name has no entry in the action table.
	ErrUnknownAction = errors.New("partner: unknown action")
)

const (
	kindConfig  = "config_error"
	kindNetwork = "network_error"
	kindPartner = "partner_error"
)

func failure(kind, message string, cause error) (*Envelope, error) {
	env := &Envelope{Success: false, Error: kind, Message: message}
	return env, fmt.Errorf("%w: %s", cause, message)
}

// partnerResponse mirrors the partner's wire shape. The success flag arrives
// as a boolean from some endpoints and as the strings "true"/"false" from
// others, so it is decoded raw and interpreted in one place.
type partnerResponse struct {
	Success json.RawMessage `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// succeeded interprets the partner's inconsistent success flag. A missing
// flag falls back to the HTTP status.
func (r partnerResponse) succeeded(httpOK bool) bool {
	if len(r.Success) == 0 {
		return httpOK
	}
	var b bool
	if err := json.Unmarshal(r.Success, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(r.Success, &s); err == nil {
		return s == "true"
	}
	return httpOK
}

// message extracts the human-readable failure message from whichever field
// the partner populated.
func (r partnerResponse) message() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Error
}
