package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChangeEvent announces a committed write. It is published, not retained,
// on Topics.Changes(Entity).
type ChangeEvent struct {
	Entity    string    `json:"entity"`
	Op        string    `json:"op"`
	ID        string    `json:"id,omitempty"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// newChangeEvent stamps an event with the publishing client and the current time.
func newChangeEvent(entity, op, id, source string) ChangeEvent {
	return ChangeEvent{
		Entity:    entity,
		Op:        op,
		ID:        id,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
}

// ParseChangeEvent decodes a change event payload.
func ParseChangeEvent(payload []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if ev.Entity == "" || ev.Op == "" {
		return ChangeEvent{}, fmt.Errorf("%w: entity and op are required", ErrInvalidEvent)
	}
	return ev, nil
}

// PublishChange publishes a ChangeEvent for entity at the configured QoS.
// It satisfies user.Notifier.
func (c *Client) PublishChange(entity, op, id string) error {
	if entity == "" || op == "" {
		return fmt.Errorf("%w: entity and op are required", ErrInvalidEvent)
	}

	payload, err := json.Marshal(newChangeEvent(entity, op, id, c.opts.ClientID))
	if err != nil {
		return fmt.Errorf("encoding change event: %w", err)
	}
	return c.Publish(c.topics.Changes(entity), payload, byte(c.cfg.QoS), false)
}

// SubscribeChanges calls handler for every change event on any entity,
// including events this client published itself. Undecodable payloads are
// reported to the logger and dropped.
func (c *Client) SubscribeChanges(handler func(ChangeEvent) error) error {
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	return c.Subscribe(c.topics.AllChanges(), byte(c.cfg.QoS), changeHandler(handler))
}

// changeHandler adapts a ChangeEvent handler to a MessageHandler.
func changeHandler(handler func(ChangeEvent) error) MessageHandler {
	return func(_ string, payload []byte) error {
		ev, err := ParseChangeEvent(payload)
		if err != nil {
			return err
		}
		return handler(ev)
	}
}
