// Package feed ingests technician location reports published over MQTT.
package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/common/logger"
	"dispatch-workers/internal/common/metrics"
	"dispatch-workers/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	DefaultTopic = "dispatch/technicians/+/location"
	source       = "mqtt"
)

// Client is the subset of the paho client the feed uses.
type Client interface {
	IsConnected() bool
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Tracker stores a decoded report.
type Tracker interface {
	Update(update models.LocationUpdate) (models.TrackingSnapshot, error)
}

type Config struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
}

// Connect dials the broker with auto-reconnect enabled.
func Connect(cfg Config) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}

type Feed struct {
	client  Client
	tracker Tracker
	topic   string
	qos     byte
	logger  logger.Logger
}

func New(client Client, tracker Tracker, cfg Config, log logger.Logger) *Feed {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	return &Feed{
		client:  client,
		tracker: tracker,
		topic:   topic,
		qos:     cfg.QoS,
		logger:  log.WithFields(map[string]interface{}{"topic": topic}),
	}
}

// Start subscribes to the location topic.
func (f *Feed) Start() error {
	token := f.client.Subscribe(f.topic, f.qos, f.Handler())
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", f.topic, err)
	}
	f.logger.Info("Location feed subscribed", nil)
	return nil
}

func (f *Feed) Close() {
	if f.client.IsConnected() {
		f.client.Disconnect(250)
	}
}

// Handler decodes each message as a LocationUpdate. A report without a
// technicianId takes it from the topic segment matched by the wildcard.
func (f *Feed) Handler() mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var update models.LocationUpdate
		if err := json.Unmarshal(msg.Payload(), &update); err != nil {
			metrics.LocationUpdates.WithLabelValues(source, "invalid").Inc()
			f.logger.Warn("Invalid location report", map[string]interface{}{
				"messageTopic": msg.Topic(),
				"error":        err.Error(),
			})
			return
		}
		if update.TechnicianID == "" {
			update.TechnicianID = technicianFromTopic(f.topic, msg.Topic())
		}
		if update.Timestamp.IsZero() {
			update.Timestamp = time.Now().UTC()
		}

		if _, err := f.tracker.Update(update); err != nil {
			metrics.LocationUpdates.WithLabelValues(source, "rejected").Inc()
			f.logger.Warn("Location report rejected", map[string]interface{}{
				"technicianId": update.TechnicianID,
				"errorCode":    string(errors.CodeOf(err)),
				"error":        err.Error(),
			})
			return
		}
		metrics.LocationUpdates.WithLabelValues(source, "stored").Inc()
	}
}

// technicianFromTopic returns the segment of topic that sits under the single
// level wildcard of pattern.
func technicianFromTopic(pattern, topic string) string {
	want := strings.Split(pattern, "/")
	got := strings.Split(topic, "/")
	if len(want) != len(got) {
		return ""
	}
	for i, part := range want {
		if part == "+" {
			return got[i]
		}
	}
	return ""
}
