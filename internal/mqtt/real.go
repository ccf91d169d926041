package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/phonehack/internal/logging"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	connectRetries = 5
	bufferCapacity = 100
)

var errConnectTimeout = errors.New("connection timeout")

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	// OnConnectionChange, if set, is called when the connection comes up
	// or drops.
	OnConnectionChange func(connected bool)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client   paho.Client
	onChange func(bool)

	mu  sync.Mutex
	buf *offlineQueue
}

// NewRealPublisher connects to the broker, retrying with exponential backoff.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.ClientID == "" {
		o.ClientID = "phonehack"
	}
	p := &RealPublisher{
		onChange: o.OnConnectionChange,
		buf:      newOfflineQueue(bufferCapacity),
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "LWT", Reason: "connection lost"})
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute).
		SetBinaryWill(TopicSystem, will, 1, false).
		SetOnConnectHandler(func(paho.Client) { p.connected() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.lost(err) })
	p.client = paho.NewClient(opts)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	err := backoff.Retry(func() error {
		token := p.client.Connect()
		if !token.WaitTimeout(connectTimeout) {
			return errConnectTimeout
		}
		if err := token.Error(); err != nil {
			logging.Warnf("mqtt: connect to %s: %v", o.Broker, err)
			return err
		}
		return nil
	}, backoff.WithMaxRetries(bo, connectRetries))
	if err != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", o.Broker, err)
	}
	return p, nil
}

// newOfflinePublisher wraps a client without connecting it.
func newOfflinePublisher(client paho.Client) *RealPublisher {
	return &RealPublisher{client: client, buf: newOfflineQueue(bufferCapacity)}
}

// Publish sends a phone event to the MQTT broker.
func (p *RealPublisher) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1: ring outcomes are rare and worth delivering.
	return p.send(bufferedMsg{topic: Topic, payload: payload, qos: 1})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the client currently has a live connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		logging.Debugf("mqtt: offline, buffered message for %s", msg.topic)
		return nil
	}
	return p.publish(msg)
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) connected() {
	logging.Infof("mqtt: connected")
	if p.onChange != nil {
		p.onChange(true)
	}
	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()
	if len(pending) == 0 {
		return
	}
	// Replay off the paho callback goroutine; publish waits on tokens.
	go func() {
		logging.Infof("mqtt: replaying %d buffered messages", len(pending))
		for _, msg := range pending {
			if err := p.publish(msg); err != nil {
				logging.Warnf("mqtt: replay: %v", err)
			}
		}
	}()
}

func (p *RealPublisher) lost(err error) {
	logging.Warnf("mqtt: connection lost: %v", err)
	if p.onChange != nil {
		p.onChange(false)
	}
}
