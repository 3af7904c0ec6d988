package tcl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

const (
	notifierAppID       = "turbocookedletters"
	defaultExchangeType = "topic"
)

// ReceiptNotifier forwards flush receipts to an outside system.
type ReceiptNotifier interface {
	Notify(ctx context.Context, receipt *FlushReceipt) error
	Close() error
}

// AMQPChannel is the part of *amqp.Channel the notifier needs.
type AMQPChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ExchangeDeclarer is the part of *amqp.Channel used to build notifier topology.
type ExchangeDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
}

// AMQPNotifier publishes every FlushReceipt as JSON to a RabbitMQ exchange.
type AMQPNotifier struct {
	channel    AMQPChannel
	connection *amqp.Connection
	exchange   string
	routingKey string
}

// DialAMQPNotifier connects to RabbitMQ and opens the channel receipts are published on.
func DialAMQPNotifier(config *NotifierConfig) (*AMQPNotifier, error) {

	if config.Exchange == "" && config.RoutingKey == "" {
		return nil, errors.New("can't have an empty exchange with empty routing key")
	}

	connection, err := amqp.Dial(config.URI)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	channel, err := connection.Channel()
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if config.DeclareExchange {
		if err := DeclareReceiptExchange(channel, config); err != nil {
			connection.Close()
			return nil, err
		}
	}

	notifier := NewAMQPNotifier(channel, config.Exchange, config.RoutingKey)
	notifier.connection = connection

	return notifier, nil
}

// DeclareReceiptExchange creates the durable exchange receipts are published to.
// The default exchange (blank name) is never declared.
func DeclareReceiptExchange(channel ExchangeDeclarer, config *NotifierConfig) error {

	if config.Exchange == "" {
		return nil
	}

	exchangeType := config.ExchangeType
	if exchangeType == "" {
		exchangeType = defaultExchangeType
	}

	if err := channel.ExchangeDeclare(config.Exchange, exchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", config.Exchange, err)
	}

	return nil
}

// NewAMQPNotifier wraps an already open channel.
func NewAMQPNotifier(channel AMQPChannel, exchange, routingKey string) *AMQPNotifier {
	return &AMQPNotifier{
		channel:    channel,
		exchange:   exchange,
		routingKey: routingKey,
	}
}

// Notify publishes the receipt. The context is only checked before publishing.
func (an *AMQPNotifier) Notify(ctx context.Context, receipt *FlushReceipt) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(receipt)
	if err != nil {
		return err
	}

	return an.channel.Publish(
		an.exchange,
		an.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    receipt.BatchID,
			Type:         "FlushReceipt",
			Timestamp:    time.Now().UTC(),
			AppId:        notifierAppID,
		},
	)
}

// Close closes the channel, and the connection when it was dialed here.
func (an *AMQPNotifier) Close() error {

	err := an.channel.Close()
	if an.connection != nil {
		if connErr := an.connection.Close(); err == nil {
			err = connErr
		}
	}

	return err
}
