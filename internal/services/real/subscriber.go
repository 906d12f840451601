package real

import (
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"payment-terminal/internal/interfaces"
)

const (
	connectTimeout  = 10 * time.Second
	operationWait   = 5 * time.Second
	disconnectQuiet = 250 // ms given to in-flight work before the socket drops
)

// MQTTClient opens mutual-TLS subscriptions against the notification broker.
type MQTTClient struct {
	verbose bool
}

// NewMQTTClient creates the client.
func NewMQTTClient(verbose bool) *MQTTClient {
	return &MQTTClient{verbose: verbose}
}

// Subscribe connects to the broker and subscribes to the topic. The returned
// session delivers messages until closed; Close is safe to call from a
// different goroutine than the one draining Messages.
func (c *MQTTClient) Subscribe(broker, topic string, creds interfaces.CredentialPaths) (interfaces.SubscribeSession, error) {
	tlsConfig, err := buildTLSConfig(creds)
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("terminal-" + uuid.NewString()).
		SetTLSConfig(tlsConfig).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(connectTimeout) || token.Error() != nil {
		return nil, fmt.Errorf("broker connect to %s failed: %v", broker, token.Error())
	}

	session := &mqttSession{
		client:   client,
		messages: make(chan interfaces.BrokerMessage, 64),
		verbose:  c.verbose,
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		session.deliver(interfaces.BrokerMessage{
			Topic:      msg.Topic(),
			Payload:    msg.Payload(),
			ReceivedAt: time.Now(),
		})
	}
	if token := client.Subscribe(topic, 1, handler); !token.WaitTimeout(operationWait) || token.Error() != nil {
		client.Disconnect(disconnectQuiet)
		return nil, fmt.Errorf("subscribe to %s failed: %v", topic, token.Error())
	}

	if c.verbose {
		log.Printf("[MQTT] Subscribed to %s on %s", topic, broker)
	}
	return session, nil
}

type mqttSession struct {
	client   mqtt.Client
	messages chan interfaces.BrokerMessage
	verbose  bool

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func (s *mqttSession) Messages() <-chan interfaces.BrokerMessage {
	return s.messages
}

// deliver hands a message to the listener without ever blocking the broker
// callback; a full buffer drops the message on the floor rather than
// deadlocking the paho router.
func (s *mqttSession) deliver(msg interfaces.BrokerMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.messages <- msg:
	default:
		log.Printf("[MQTT] Message buffer full, dropping message on %s", msg.Topic)
	}
}

func (s *mqttSession) Unsubscribe(topic string) error {
	token := s.client.Unsubscribe(topic)
	if !token.WaitTimeout(operationWait) {
		return fmt.Errorf("unsubscribe from %s timed out", topic)
	}
	return token.Error()
}

// Close force-disconnects the broker connection and closes the message
// channel. Idempotent.
func (s *mqttSession) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.client.Disconnect(disconnectQuiet)
		close(s.messages)
		if s.verbose {
			log.Printf("[MQTT] Session closed")
		}
	})
}
