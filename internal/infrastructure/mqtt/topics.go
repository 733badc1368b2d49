package mqtt

import "fmt"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "prodev"

// Topics builds prodev MQTT topics under a configurable prefix.
//
//	topics := mqtt.Topics{Prefix: "prodev"}
//	topics.Changes("user") // "prodev/changes/user"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Changes returns the topic change events for entity are published on.
//
// Example: prodev/changes/user
func (t Topics) Changes(entity string) string {
	return fmt.Sprintf("%s/changes/%s", t.prefix(), entity)
}

// AllChanges returns a pattern matching change events for every entity.
//
// Pattern: prodev/changes/+
func (t Topics) AllChanges() string {
	return fmt.Sprintf("%s/changes/+", t.prefix())
}

// Status returns the retained online/offline status topic.
//
// Example: prodev/system/status
func (t Topics) Status() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}
