// Package limiter delivers thermal load updates to the components that
// throttle workloads in response, such as a job scheduler or render queue.
package limiter

import (
	"context"
	"time"

	"codeberg.org/mutker/thermald/internal/errors"
	"codeberg.org/mutker/thermald/internal/logger"
	"codeberg.org/mutker/thermald/internal/thermal"
	"github.com/cenkalti/backoff"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	disconnectQuiesce     = 250 // milliseconds
	defaultConnectTimeout = 30 * time.Second
)

// Options configures the MQTT connection.
type Options struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	// Timeout bounds each broker round trip.
	Timeout time.Duration
	// ConnectTimeout bounds the total time spent retrying the initial
	// connection.
	ConnectTimeout time.Duration
}

// Payload is the retained message published on every load change.
type Payload struct {
	ThermalLoad thermal.ThermalLoad `json:"thermal_load"`
	MaxLoad     thermal.ThermalLoad `json:"max_load"`
	Timestamp   time.Time           `json:"timestamp"`
}

// publisher is the part of mqtt.Client used here.
type publisher interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// MQTTConsumer publishes the thermal load as a retained message so late
// subscribers see the current value immediately.
type MQTTConsumer struct {
	client publisher
	opts   Options
	now    func() time.Time
	logger logger.Logger
}

func NewMQTT(opts Options, log logger.Logger) *MQTTConsumer {
	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID + "-" + uuid.NewString()[:8])
	clientOpts.SetUsername(opts.Username)
	clientOpts.SetPassword(opts.Password)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectRetryInterval(5 * time.Second)
	clientOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("Connection to MQTT broker lost")
	})
	clientOpts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Info().Str("broker", opts.Broker).Msg("Connected to MQTT broker")
	})

	return newMQTTConsumer(mqtt.NewClient(clientOpts), opts, log)
}

func newMQTTConsumer(client publisher, opts Options, log logger.Logger) *MQTTConsumer {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	return &MQTTConsumer{
		client: client,
		opts:   opts,
		now:    time.Now,
		logger: log,
	}
}

// Connect dials the broker, retrying with exponential backoff until
// ConnectTimeout elapses or ctx is cancelled.
func (c *MQTTConsumer) Connect(ctx context.Context) error {
	errFactory := errors.New()

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.opts.ConnectTimeout

	attempt := 0
	op := func() error {
		attempt++
		if err := c.wait(c.client.Connect()); err != nil {
			c.logger.Debug().Int("attempt", attempt).Err(err).Msg("MQTT connect attempt failed")
			return err
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return errFactory.Wrap(ErrConnect, err).WithData(c.opts.Broker)
	}

	return nil
}

// UpdateThermalLoad publishes load to the configured topic.
func (c *MQTTConsumer) UpdateThermalLoad(_ context.Context, load thermal.ThermalLoad) error {
	errFactory := errors.New()

	payload, err := json.Marshal(Payload{
		ThermalLoad: load,
		MaxLoad:     thermal.MaxLoad,
		Timestamp:   c.now().UTC(),
	})
	if err != nil {
		return errFactory.Wrap(ErrEncode, err)
	}

	if err := c.wait(c.client.Publish(c.opts.Topic, c.opts.QoS, true, payload)); err != nil {
		return errFactory.Wrap(ErrPublish, err).WithData(c.opts.Topic)
	}

	c.logger.Debug().Uint32("load", uint32(load)).Str("topic", c.opts.Topic).Msg("Thermal load published")

	return nil
}

func (c *MQTTConsumer) Close() {
	if c.client.IsConnected() {
		c.client.Disconnect(disconnectQuiesce)
	}
}

func (c *MQTTConsumer) wait(token mqtt.Token) error {
	if c.opts.Timeout > 0 {
		if !token.WaitTimeout(c.opts.Timeout) {
			return errors.New().New(ErrTimeout)
		}
	} else {
		token.Wait()
	}
	return token.Error()
}

// LogConsumer records load changes in the log when no broker is configured.
type LogConsumer struct {
	logger logger.Logger
}

func NewLogConsumer(log logger.Logger) *LogConsumer {
	return &LogConsumer{logger: log}
}

func (c *LogConsumer) UpdateThermalLoad(_ context.Context, load thermal.ThermalLoad) error {
	c.logger.Info().Uint32("load", uint32(load)).Msg("Thermal load changed")
	return nil
}
