package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// States and reasons published on the status topic.
const (
	StateOnline  = "online"
	StateOffline = "offline"

	ReasonConnectionLost = "connection_lost"
	ReasonShutdown       = "shutdown"
)

// Status is the retained message on Topics.Status. Readers use it to tell
// whether a prodev process is currently publishing change events.
type Status struct {
	State    string    `json:"state"`
	ClientID string    `json:"client_id"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

func newStatus(state, clientID, reason string) Status {
	return Status{State: state, ClientID: clientID, Reason: reason, At: time.Now().UTC()}
}

func (s Status) payload() []byte {
	data, _ := json.Marshal(s) //nolint:errchkjson // strings and a time always marshal
	return data
}

// ParseStatus decodes a status message.
func ParseStatus(payload []byte) (Status, error) {
	var s Status
	if err := json.Unmarshal(payload, &s); err != nil {
		return Status{}, fmt.Errorf("decoding status: %w", err)
	}
	if s.State != StateOnline && s.State != StateOffline {
		return Status{}, fmt.Errorf("decoding status: unknown state %q", s.State)
	}
	return s, nil
}
