package hass

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// StatestreamOptions configures the MQTT connection
type StatestreamOptions struct {
	Broker    string // host or host:port
	ClientID  string
	Username  string
	Password  string
	BaseTopic string // mqtt_statestream base_topic, "homeassistant" by default
}

// StatestreamSource keeps the latest rates published by Home Assistant's
// mqtt_statestream integration (with publish_attributes enabled).
// Attribute topics look like <base>/<domain>/<object_id>/<attribute>.
type StatestreamSource struct {
	opts   StatestreamOptions
	logger *zap.Logger

	mu     sync.RWMutex
	states map[string]*EntityState
}

// NewStatestreamSource creates a source; call Start to connect
func NewStatestreamSource(opts StatestreamOptions, logger *zap.Logger) *StatestreamSource {
	if opts.BaseTopic == "" {
		opts.BaseTopic = "homeassistant"
	}
	if opts.ClientID == "" {
		opts.ClientID = "cheapest-period"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatestreamSource{
		opts:   opts,
		logger: logger,
		states: make(map[string]*EntityState),
	}
}

// Start connects to the broker and subscribes to rates attributes.
// The connection is closed when ctx is cancelled.
func (s *StatestreamSource) Start(ctx context.Context) error {
	broker := s.opts.Broker
	if !strings.Contains(broker, ":") {
		broker += ":1883"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", broker))
	opts.SetClientID(s.opts.ClientID)
	opts.SetUsername(s.opts.Username)
	opts.SetPassword(s.opts.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		s.logger.Warn("MQTT connection lost", zap.Error(err))
	})

	// Resubscribe on every (re)connect
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		s.logger.Info("connected to MQTT broker", zap.String("broker", broker))

		topic := s.subscription()
		token := client.Subscribe(topic, 0, func(client mqtt.Client, msg mqtt.Message) {
			s.handle(msg.Topic(), msg.Payload())
		})
		if token.Wait() && token.Error() != nil {
			s.logger.Error("failed to subscribe", zap.String("topic", topic), zap.Error(token.Error()))
			return
		}
		s.logger.Info("subscribed", zap.String("topic", topic))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "connecting to MQTT broker %s", broker)
	}

	go func() {
		<-ctx.Done()
		if client.IsConnected() {
			client.Disconnect(250)
			s.logger.Info("disconnected from MQTT broker")
		}
	}()

	return nil
}

func (s *StatestreamSource) subscription() string {
	return s.opts.BaseTopic + "/+/+/" + RatesAttribute
}

// handle stores an attribute payload under its entity ID
func (s *StatestreamSource) handle(topic string, payload []byte) {
	rest, ok := strings.CutPrefix(topic, s.opts.BaseTopic+"/")
	if !ok {
		return
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return
	}
	entityID := parts[0] + "." + parts[1]
	attribute := parts[2]

	value := strings.TrimSpace(string(payload))
	if value == "" || value == "unavailable" || value == "unknown" {
		s.logger.Debug("ignoring unavailable attribute", zap.String("entity", entityID))
		return
	}

	raw := make(json.RawMessage, len(payload))
	copy(raw, payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[entityID]
	if !ok {
		state = &EntityState{EntityID: entityID, Attributes: map[string]json.RawMessage{}}
		s.states[entityID] = state
	}
	state.Attributes[attribute] = raw
	state.LastUpdated = time.Now()
}

// Snapshot returns copies of the requested entities seen so far
func (s *StatestreamSource) Snapshot(_ context.Context, entityIDs ...string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(Snapshot, len(entityIDs))
	for _, id := range entityIDs {
		state, ok := s.states[id]
		if !ok {
			continue
		}
		attrs := make(map[string]json.RawMessage, len(state.Attributes))
		for k, v := range state.Attributes {
			attrs[k] = v
		}
		snap[id] = &EntityState{
			EntityID:    state.EntityID,
			State:       state.State,
			Attributes:  attrs,
			LastUpdated: state.LastUpdated,
		}
	}
	return snap, nil
}
