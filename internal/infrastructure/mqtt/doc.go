// Package mqtt publishes and receives prodev change events over MQTT.
//
// After a write commits, the user repository calls PublishChange, which
// sends a ChangeEvent to <prefix>/changes/<entity>. Any process sharing the
// store can subscribe with SubscribeChanges and, for example, clear its
// query cache so cached reads do not outlive the data they were built from.
//
// The client connects with auto-reconnect, restores subscriptions after a
// reconnect and keeps a retained online/offline message on
// <prefix>/system/status, backed by a Last Will for unexpected disconnects.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.SubscribeChanges(func(ev mqtt.ChangeEvent) error {
//	    layer.Cache().Clear()
//	    return nil
//	})
package mqtt
