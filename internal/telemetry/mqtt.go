// Package telemetry publishes monitor output to an MQTT broker.
package telemetry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/energizer-project/pulse/internal/config"
	"github.com/energizer-project/pulse/internal/events"
	"github.com/energizer-project/pulse/internal/util"
)

// Topic suffixes under the configured prefix.
const (
	TopicVariables = "variables"
	TopicAlerts    = "alerts"
	TopicHeartbeat = "heartbeat"
	TopicAdmin     = "admin"
)

const (
	publishQoS        = 1
	disconnectQuiesce = 5000
)

// publisher is the part of mqtt.Client the handler needs.
type publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTHandler publishes variables, alerts and heartbeats to MQTT.
type MQTTHandler struct {
	cfg      config.MQTTConfig
	server   string
	eventBus *events.EventBus
	client   publisher
	logger   zerolog.Logger

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates a new MQTT telemetry handler.
func NewMQTTHandler(cfg *config.Config, eventBus *events.EventBus, version string) (*MQTTHandler, error) {
	mqttCfg := cfg.GetApplicationData().MQTT
	if !mqttCfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	sysInfo := util.GetSystemInfo()
	h := newHandler(mqttCfg, cfg.GetMonitorData().Label(), eventBus, version, sysInfo)

	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if mqttCfg.UseTLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, mqttCfg.BrokerURL, mqttCfg.Port))

	if mqttCfg.ClientID != "" {
		opts.SetClientID(mqttCfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("pulse-%s", sysInfo.Hostname))
	}
	if mqttCfg.Username != "" {
		opts.SetUsername(mqttCfg.Username)
		opts.SetPassword(mqttCfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false)

	if mqttCfg.UseTLS {
		tlsConfig, err := buildTLSConfig(mqttCfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		h.logger.Info().Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		h.logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	h.client = mqtt.NewClient(opts)
	return h, nil
}

func newHandler(cfg config.MQTTConfig, server string, bus *events.EventBus, version string, sys util.SystemInfo) *MQTTHandler {
	return &MQTTHandler{
		cfg:      cfg,
		server:   server,
		eventBus: bus,
		logger:   util.ComponentLogger("mqtt"),
		metadata: map[string]interface{}{
			"hostname":    sys.Hostname,
			"os":          sys.OS,
			"server":      server,
			"app_version": version,
		},
	}
}

// buildTLSConfig loads the optional CA and client certificate (mTLS).
func buildTLSConfig(cfg config.MQTTConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read MQTT CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Start connects to the broker, subscribes to the bus and blocks until ctx
// is cancelled.
func (h *MQTTHandler) Start(ctx context.Context) error {
	client, ok := h.client.(mqtt.Client)
	if !ok {
		return fmt.Errorf("MQTT client not configured")
	}

	h.logger.Info().
		Str("broker", h.cfg.BrokerURL).
		Int("port", h.cfg.Port).
		Msg("connecting to MQTT broker")

	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.Attach()

	<-ctx.Done()

	h.PublishShutdown()
	client.Disconnect(disconnectQuiesce)
	h.logger.Info().Msg("MQTT disconnected")

	return nil
}

// Attach registers the bus handlers that publish to MQTT.
func (h *MQTTHandler) Attach() {
	h.eventBus.Subscribe(events.EventVariablesUpdated, "mqtt.variables", h.onVariables)
	h.eventBus.SubscribeMany(events.AlertTypes, "mqtt.alert", h.onAlert)
	h.eventBus.Subscribe(events.EventHeartbeat, "mqtt.heartbeat", h.onHeartbeat)
}

// Topic joins the configured prefix and the given levels.
func (h *MQTTHandler) Topic(levels ...string) string {
	prefix := strings.Trim(h.cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = "pulse"
	}
	return prefix + "/" + strings.Join(levels, "/")
}

// publish sends a JSON message to an MQTT topic.
func (h *MQTTHandler) publish(topic string, retained bool, payload interface{}) {
	if h.client == nil || !h.client.IsConnected() {
		return
	}

	data, err := json.Marshal(h.buildMessage(payload))
	if err != nil {
		h.logger.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := h.client.Publish(topic, publishQoS, retained, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			h.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the event payload.
func (h *MQTTHandler) buildMessage(payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{}, len(h.metadata)+2)
	for k, v := range h.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return msg
}

func (h *MQTTHandler) onVariables(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.VariablesPayload)
	if !ok {
		return nil
	}
	// Retained so new subscribers get the current state.
	h.publish(h.Topic(TopicVariables), true, p.Variables)
	return nil
}

func (h *MQTTHandler) onAlert(ctx context.Context, event events.Event) error {
	h.publish(h.Topic(TopicAlerts, string(event.Type)), false, map[string]interface{}{
		"event":   event.Type,
		"summary": event.Summary(),
		"data":    event.Payload,
	})
	return nil
}

func (h *MQTTHandler) onHeartbeat(ctx context.Context, event events.Event) error {
	h.publish(h.Topic(TopicHeartbeat), false, event.Payload)
	return nil
}

// PublishShutdown sends a shutdown message to the admin topic.
func (h *MQTTHandler) PublishShutdown() {
	h.publish(h.Topic(TopicAdmin), false, map[string]interface{}{
		"event": "shutdown",
	})
}
