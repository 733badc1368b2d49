package mqtt

import (
	"crypto/tls"
	"net"
	"net/url"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/prodev-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	ackTimeout     = 5 * time.Second
	keepAlive      = 60 * time.Second

	// disconnectQuiesce is in milliseconds, as paho expects.
	disconnectQuiesce uint = 1000

	maxQoS  = 2
	willQoS = 1

	defaultInitialDelay = time.Second
	defaultMaxDelay     = time.Minute
)

// clientOptions maps cfg onto paho options. The session is clean and
// reconnects are automatic; subscriptions are restored by the Client.
// The Last Will marks the client offline on the status topic if it
// vanishes without Close.
func clientOptions(cfg config.MQTTConfig, topics Topics) *pahomqtt.ClientOptions {
	id := clientID(cfg.Broker)
	initial, maxDelay := reconnectDelays(cfg.Reconnect)

	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(id).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(initial).
		SetMaxReconnectInterval(maxDelay).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetBinaryWill(topics.Status(), newStatus(StateOffline, id, ReasonConnectionLost).payload(), willQoS, true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

func brokerURL(b config.MQTTBrokerConfig) string {
	u := url.URL{Scheme: "tcp", Host: net.JoinHostPort(b.Host, strconv.Itoa(b.Port))}
	if b.TLS {
		u.Scheme = "ssl"
	}
	return u.String()
}

// clientID returns the configured ID, or a random one so two processes
// never evict each other from the broker.
func clientID(b config.MQTTBrokerConfig) string {
	if b.ClientID != "" {
		return b.ClientID
	}
	return "prodev-" + uuid.NewString()[:8]
}

func reconnectDelays(r config.MQTTReconnectConfig) (initial, maxDelay time.Duration) {
	initial, maxDelay = defaultInitialDelay, defaultMaxDelay
	if r.InitialDelay > 0 {
		initial = time.Duration(r.InitialDelay) * time.Second
	}
	if r.MaxDelay > 0 {
		maxDelay = time.Duration(r.MaxDelay) * time.Second
	}
	if maxDelay < initial {
		maxDelay = initial
	}
	return initial, maxDelay
}
