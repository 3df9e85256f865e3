package remote

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/linkitmedia/signage-core/internal/infrastructure/config"
)

// Connection timing constants.
const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultKeepAlive         = 30 * time.Second
	defaultPingTimeout       = 10 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds for in-flight messages
)

// buildClientOptions constructs paho client options from configuration.
func buildClientOptions(cfg config.RemoteConfig, deviceID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	clientID := cfg.Broker.ClientID
	if clientID == "" {
		clientID = "signage-" + deviceID
	}
	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	// Auto-reconnect with exponential backoff. The paho library doubles the
	// retry interval internally up to MaxReconnectInterval.
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	// Persistent session so the broker queues QoS 1 messages across
	// short disconnects instead of dropping them.
	opts.SetCleanSession(false)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetPingTimeout(defaultPingTimeout)
	opts.SetOrderMatters(true)

	return opts
}

// configureLastWill registers a retained offline status as the Last Will so
// the control plane observes an unexpected disconnect without polling.
func configureLastWill(opts *pahomqtt.ClientOptions, root, deviceID string) {
	topic := joinTopic(root, Paths{}.Status(deviceID))
	opts.SetBinaryWill(topic, buildStatusPayload(deviceID, "offline"), 1, true)
}

// statusPayload is the wire format of the device status document.
type statusPayload struct {
	DeviceID  string `json:"deviceId"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// buildStatusPayload renders the online/offline status document.
func buildStatusPayload(deviceID, status string) []byte {
	data, _ := json.Marshal(statusPayload{
		DeviceID:  deviceID,
		Status:    status,
		Timestamp: time.Now().Unix(),
	})
	return data
}
