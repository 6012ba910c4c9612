package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"weather-subscriber/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// State is the connection lifecycle of a Subscriber.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSubscribed:
		return "subscribed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handler receives connection events and messages from a Subscriber. Calls
// never overlap: each one returns before the next is made.
type Handler interface {
	OnConnect(code byte)
	OnConnectionLost(err error)
	OnMessage(topic string, payload []byte)
}

// ErrStopped is returned by Connect after Disconnect has been called.
var ErrStopped = errors.New("subscriber stopped")

const qos = byte(1)

type Subscriber struct {
	client  mqtt.Client
	cfg     config.Config
	handler Handler
	logger  *slog.Logger

	mu    sync.RWMutex
	state State

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewSubscriber(cfg config.Config, handler Handler, logger *slog.Logger) (*Subscriber, error) {
	if handler == nil {
		return nil, errors.New("mqtt subscriber: nil handler")
	}
	s := &Subscriber{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("component", "mqtt"),
		stopCh:  make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)
	// One message handler call at a time, in arrival order.
	opts.SetOrderMatters(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		s.setState(StateConnecting)
		s.logger.Info("mqtt reconnecting", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
	})

	s.client = mqtt.NewClient(opts)
	return s, nil
}

// Connect starts connecting and waits for the first connection attempt to
// finish, ctx to be done or Disconnect. When ctx ends first the client keeps
// retrying in the background and subscribes once the broker is reachable.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return ErrStopped
	default:
	}

	if st := s.State(); st == StateConnected || st == StateSubscribed {
		return nil
	}

	s.setState(StateConnecting)
	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				s.setState(StateDisconnected)
				if ct, ok := token.(*mqtt.ConnectToken); ok && ct.ReturnCode() != 0 {
					s.handler.OnConnect(ct.ReturnCode())
				}
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// onConnect moves the state forward and subscribes.
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return ErrStopped
		default:
		}
	}
}

// onConnect runs on every successful (re)connect. Subscribing here means a
// reconnect with a clean session gets its subscription back.
func (s *Subscriber) onConnect(c mqtt.Client) {
	s.setState(StateConnected)
	s.handler.OnConnect(0)

	if err := s.subscribe(c); err != nil {
		s.logger.Error("mqtt subscribe failed", "topic", s.cfg.MQTTTopic, "error", err)
		return
	}
	s.setState(StateSubscribed)
}

func (s *Subscriber) onConnectionLost(_ mqtt.Client, err error) {
	s.setState(StateDisconnected)
	s.handler.OnConnectionLost(err)
}

func (s *Subscriber) subscribe(c mqtt.Client) error {
	topic := s.cfg.MQTTTopic
	token := c.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.dispatch(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	s.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

func (s *Subscriber) dispatch(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))
	s.handler.OnMessage(topic, payload)
}

// State returns the current connection state.
func (s *Subscriber) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Disconnect unsubscribes and closes the connection, giving in-flight work
// 250ms to finish. Safe to call more than once.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.State() == StateSubscribed && s.client.IsConnected() {
		token := s.client.Unsubscribe(s.cfg.MQTTTopic)
		token.WaitTimeout(2 * time.Second)
	}
	s.client.Disconnect(250)

	s.setState(StateDisconnected)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setState(v State) {
	s.mu.Lock()
	prev := s.state
	s.state = v
	s.mu.Unlock()
	if prev != v {
		s.logger.Debug("mqtt state changed", "from", prev.String(), "to", v.String())
	}
}
