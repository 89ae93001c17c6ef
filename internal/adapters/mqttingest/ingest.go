// Package mqttingest accepts location samples over MQTT as an
// alternative to the HTTP ingestion endpoint. Devices publish JSON
// payloads to <prefix>/<trackingId>/location; outcomes are logged and
// counted but never answered, MQTT being fire-and-forget here.
package mqttingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	service "github.com/legalize2/location-tracker-app/internal/app"
	"github.com/legalize2/location-tracker-app/pkg/logger"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds given to in-flight work on shutdown
)

// Pipeline is the slice of the ingestion service this adapter needs.
type Pipeline interface {
	Ingest(ctx context.Context, req *service.IngestRequest) (service.Accepted, error)
}

// samplePayload mirrors the MQTT message body. The tracking link comes
// from the topic, not the payload.
type samplePayload struct {
	SessionID    string   `json:"sessionId"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Accuracy     *float64 `json:"accuracy"`
	Speed        *float64 `json:"speed,omitempty"`
	Heading      *float64 `json:"heading,omitempty"`
	Altitude     *float64 `json:"altitude,omitempty"`
	BatteryLevel *float64 `json:"batteryLevel,omitempty"`
	NetworkType  string   `json:"networkType,omitempty"`
	CapturedAt   string   `json:"capturedAt,omitempty"`
}

// Ingestor bridges an MQTT subscription onto the ingestion pipeline.
type Ingestor struct {
	pipeline    Pipeline
	brokerURL   string
	topicPrefix string
	client      mqtt.Client
	logger      logger.Logger
}

// Option customizes the ingestor.
type Option func(*Ingestor)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(i *Ingestor) {
		if l != nil {
			i.logger = l
		}
	}
}

// New creates an MQTT ingestor. brokerURL is a paho broker address
// such as tcp://localhost:1883; topicPrefix is the first topic segment
// devices publish under.
func New(pipeline Pipeline, brokerURL, topicPrefix string, opts ...Option) *Ingestor {
	i := &Ingestor{
		pipeline:    pipeline,
		brokerURL:   brokerURL,
		topicPrefix: topicPrefix,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = logger.Named("mqtt")
	}
	return i
}

// Start connects to the broker and subscribes to the location topic.
func (i *Ingestor) Start(ctx context.Context) error {
	clientID := fmt.Sprintf("tracklink-ingest-%s", uuid.NewString()[:8])
	opts := mqtt.NewClientOptions().
		AddBroker(i.brokerURL).
		SetClientID(clientID).
		SetOrderMatters(false).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true)

	i.client = mqtt.NewClient(opts)
	if token := i.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to mqtt broker %s: %w", i.brokerURL, token.Error())
	}

	topic := fmt.Sprintf("%s/+/location", i.topicPrefix)
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		i.handleMessage(ctx, msg.Topic(), msg.Payload())
	}
	if token := i.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		i.client.Disconnect(disconnectQuiesce)
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}

	i.logger.Info(ctx, "mqtt ingestion started",
		logger.String("broker", i.brokerURL),
		logger.String("topic", topic),
	)
	return nil
}

// Stop disconnects from the broker.
func (i *Ingestor) Stop() {
	if i.client != nil && i.client.IsConnected() {
		i.client.Disconnect(disconnectQuiesce)
	}
}

// handleMessage decodes one published sample and feeds the pipeline.
// Every failure path only logs: there is no channel to answer on.
func (i *Ingestor) handleMessage(ctx context.Context, topic string, payload []byte) {
	trackingID, ok := trackingIDFromTopic(topic, i.topicPrefix)
	if !ok {
		i.logger.Warn(ctx, "mqtt message on unexpected topic", logger.String("topic", topic))
		return
	}

	var body samplePayload
	if err := json.Unmarshal(payload, &body); err != nil {
		i.logger.Warn(ctx, "undecodable mqtt payload",
			logger.String("trackingId", trackingID),
			logger.Error(err),
		)
		return
	}

	req := &service.IngestRequest{
		TrackingID:   trackingID,
		SessionID:    body.SessionID,
		Latitude:     body.Latitude,
		Longitude:    body.Longitude,
		Accuracy:     body.Accuracy,
		Speed:        body.Speed,
		Heading:      body.Heading,
		Altitude:     body.Altitude,
		BatteryLevel: body.BatteryLevel,
		NetworkType:  body.NetworkType,
	}
	if body.CapturedAt != "" {
		at, err := time.Parse(time.RFC3339, body.CapturedAt)
		if err != nil {
			i.logger.Warn(ctx, "invalid capturedAt in mqtt payload",
				logger.String("trackingId", trackingID),
				logger.Error(err),
			)
			return
		}
		req.CapturedAt = at
	}

	acc, err := i.pipeline.Ingest(ctx, req)
	switch {
	case err != nil:
		i.logger.Warn(ctx, "mqtt sample rejected",
			logger.String("trackingId", trackingID),
			logger.Error(err),
		)
	case acc.Duplicate:
		i.logger.Debug(ctx, "mqtt sample duplicate", logger.String("trackingId", trackingID))
	default:
		i.logger.Debug(ctx, "mqtt sample accepted",
			logger.String("trackingId", trackingID),
			logger.Int64("sampleId", acc.SampleID),
		)
	}
}

// trackingIDFromTopic extracts the link id from <prefix>/<id>/location.
func trackingIDFromTopic(topic, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/location")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
