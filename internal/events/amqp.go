// internal/events/amqp.go
package events

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// AMQPPublisher mirrors campaign events to a RabbitMQ fanout exchange
// so external dashboards can consume them without touching the engine.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      zerolog.Logger
}

func DialAMQP(url, exchange string, log zerolog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"fanout",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange, log: log}, nil
}

// Publish is best-effort: a broker hiccup must never stall a campaign.
func (p *AMQPPublisher) Publish(e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	err = p.ch.Publish(
		p.exchange,
		"", // fanout ignores the routing key
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		p.log.Warn().Err(err).Str("campaign_id", e.CampaignID).Msg("amqp publish failed")
	}
	return err
}

func (p *AMQPPublisher) Close() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

var _ Publisher = (*AMQPPublisher)(nil)
