package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"live-quiz-service/internal/domain"
)

// Record kinds carried in the envelope.
const (
	KindGame      = "game"
	KindPlayers   = "players"
	KindAnswers   = "answers"
	KindAnalytics = "analytics"
)

// Envelope is the message body consumers receive.
type Envelope struct {
	Kind       string          `json:"kind"`
	GameID     string          `json:"gameId"`
	Data       json.RawMessage `json:"data"`
	ProducedAt time.Time       `json:"producedAt"`
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RecordPublisher implements app.RecordStore by publishing every record to a
// durable queue for downstream analytics consumers.
type RecordPublisher struct {
	conn  *amqp.Connection
	ch    publisher
	queue string
	clock func() time.Time
	mu    sync.Mutex
}

// Dial connects to RabbitMQ and declares the records queue.
func Dial(url, queue string) (*RecordPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	_, err = channel.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	p := newRecordPublisher(channel, queue)
	p.conn = conn
	return p, nil
}

func newRecordPublisher(ch publisher, queue string) *RecordPublisher {
	return &RecordPublisher{ch: ch, queue: queue, clock: time.Now}
}

func (p *RecordPublisher) Close() error {
	if c, ok := p.ch.(*amqp.Channel); ok && c != nil {
		c.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func (p *RecordPublisher) encode(kind, gameID string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", kind, err)
	}
	return json.Marshal(Envelope{Kind: kind, GameID: gameID, Data: raw, ProducedAt: p.clock()})
}

func (p *RecordPublisher) publish(ctx context.Context, kind, gameID string, data any) error {
	body, err := p.encode(kind, gameID, data)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         kind,
			Body:         body,
			Timestamp:    p.clock(),
		},
	)
}

func (p *RecordPublisher) SaveGame(ctx context.Context, rec domain.GameRecord) error {
	// lobby snapshots stay local; consumers only care about finished games
	if rec.Status != domain.StatusEnded {
		return nil
	}
	return p.publish(ctx, KindGame, rec.ID, rec)
}

func (p *RecordPublisher) SavePlayers(ctx context.Context, gameID string, players []domain.PlayerRecord) error {
	return p.publish(ctx, KindPlayers, gameID, players)
}

func (p *RecordPublisher) SaveAnswers(ctx context.Context, answers []domain.AnswerEvent) error {
	if len(answers) == 0 {
		return nil
	}
	return p.publish(ctx, KindAnswers, answers[0].GameID, answers)
}

func (p *RecordPublisher) SaveAnalytics(ctx context.Context, a domain.QuestionAnalytics) error {
	return p.publish(ctx, KindAnalytics, a.GameID, a)
}
