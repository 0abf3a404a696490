package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/RosenErik/svk-scraper/internal/config"
	"github.com/RosenErik/svk-scraper/pkg/models"
)

// Publisher pushes power records to an MQTT broker
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
}

// New connects to the configured broker. Returns an error when MQTT is
// not enabled so callers can't accidentally publish into the void.
func New(cfg *config.Config) (*Publisher, error) {
	if !cfg.MQTT.Enabled {
		return nil, fmt.Errorf("MQTT publishing is not enabled in config")
	}
	if cfg.MQTT.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	broker := cfg.MQTT.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	topicPrefix := cfg.MQTT.TopicPrefix
	if topicPrefix == "" {
		topicPrefix = "svk/power"
	}

	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = "svkscraper"
	}

	// Configure MQTT client options
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.MQTT.Username != "" {
		opts.SetUsername(cfg.MQTT.Username)
	}
	if pw := cfg.GetMQTTPassword(); pw != "" {
		opts.SetPassword(pw)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
	}, nil
}

// RecordPayload is the JSON shape pushed to the broker
type RecordPayload struct {
	Date          string   `json:"date"`
	RawDate       string   `json:"raw_date,omitempty"`
	Hour          string   `json:"hour"`
	ForecastMW    *float64 `json:"forecast_mw"`
	ConsumptionMW *float64 `json:"consumption_mw"`
	Timestamp     string   `json:"timestamp,omitempty"`
	DateSource    string   `json:"date_source"`
}

// newPayload converts a record to its wire shape
func newPayload(rec models.PowerRecord) RecordPayload {
	payload := RecordPayload{
		Date:          rec.Date.Format("2006-01-02"),
		RawDate:       rec.RawDate,
		Hour:          rec.Hour,
		ForecastMW:    rec.ForecastMW,
		ConsumptionMW: rec.ConsumptionMW,
		DateSource:    rec.DateSource,
	}
	if !rec.Timestamp.IsZero() {
		payload.Timestamp = rec.Timestamp.Format(time.RFC3339)
	}
	return payload
}

func recordTopic(prefix string, payload RecordPayload) string {
	return fmt.Sprintf("%s/se3/%s/%s", prefix, payload.Date, payload.Hour)
}

// Publish sends one record to <prefix>/se3/<date>/<hour>. Messages are
// retained so a dashboard subscribing later still sees each hour's
// latest values.
func (p *Publisher) Publish(rec models.PowerRecord) error {
	payload := newPayload(rec)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	topic := recordTopic(p.topicPrefix, payload)
	if token := p.client.Publish(topic, 1, true, body); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
