package notify

import (
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// MQTTOptions configures an MQTTPublisher.
type MQTTOptions struct {
	// Broker is a URL such as tcp://localhost:1883; a bare host:port gets tcp://.
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	Format   Format
	Logger   *slog.Logger
}

// client is the subset of mqtt.Client the publisher uses.
type client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes event messages to one topic.
type MQTTPublisher struct {
	opts   MQTTOptions
	client client
	logger *slog.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(opts MQTTOptions) (*MQTTPublisher, error) {
	if opts.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	broker := opts.Broker
	if !hasScheme(broker) {
		broker = "tcp://" + broker
	}
	co := mqtt.NewClientOptions()
	co.AddBroker(broker)
	co.SetClientID(opts.ClientID)
	co.SetAutoReconnect(true)
	co.SetConnectTimeout(connectTimeout)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	logger := loggerOr(opts.Logger)
	co.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", broker, "error", err)
	}

	p := newMQTTPublisher(opts, mqtt.NewClient(co))
	logger.Info("connecting to mqtt broker", "broker", broker, "client_id", opts.ClientID)
	if err := wait(p.client.Connect(), connectTimeout); err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", broker)
	}
	return p, nil
}

func newMQTTPublisher(opts MQTTOptions, c client) *MQTTPublisher {
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	return &MQTTPublisher{opts: opts, client: c, logger: loggerOr(opts.Logger)}
}

// Publish encodes and sends msg, waiting for the broker acknowledgement at QoS > 0.
func (p *MQTTPublisher) Publish(msg EventMessage) error {
	payload, err := msg.Encode(p.opts.Format)
	if err != nil {
		p.failed.Add(1)
		return errors.Wrap(err, "encoding event")
	}
	if err := wait(p.client.Publish(p.opts.Topic, p.opts.QoS, false, payload), publishTimeout); err != nil {
		p.failed.Add(1)
		return errors.Wrapf(err, "publishing to %s", p.opts.Topic)
	}
	p.published.Add(1)
	p.logger.Debug("event published", "topic", p.opts.Topic, "index", msg.Index, "size", len(payload))
	return nil
}

// Published is the number of acknowledged messages.
func (p *MQTTPublisher) Published() uint64 { return p.published.Load() }

// Failed is the number of messages that could not be sent.
func (p *MQTTPublisher) Failed() uint64 { return p.failed.Load() }

// Close disconnects after letting in-flight work finish.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

func wait(t mqtt.Token, timeout time.Duration) error {
	if !t.WaitTimeout(timeout) {
		return errors.Errorf("timed out after %s", timeout)
	}
	return t.Error()
}

func hasScheme(s string) bool {
	for i := 0; i+2 < len(s); i++ {
		if s[i] == ':' && s[i+1] == '/' && s[i+2] == '/' {
			return i > 0
		}
	}
	return false
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
