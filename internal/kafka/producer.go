package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/psds-microservice/freshdesk-service/internal/model"
	"github.com/segmentio/kafka-go"
)

// TicketEvent: сообщение о действии пользователя над тикетом в Freshdesk.
type TicketEvent struct {
	Event      model.Operation `json:"event"`
	EventID    string          `json:"event_id"`
	TicketID   int64           `json:"ticket_id,omitempty"`
	Email      string          `json:"email"`
	UserID     string          `json:"user_id,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	Status     int             `json:"status_code"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewTicketEvent заполняет id события и время.
func NewTicketEvent(op model.Operation, rc model.RequestContext, ticketID int64, statusCode int) TicketEvent {
	return TicketEvent{
		Event:      op,
		EventID:    uuid.NewString(),
		TicketID:   ticketID,
		Email:      rc.Email,
		UserID:     rc.UserID,
		RequestID:  rc.RequestID,
		Status:     statusCode,
		OccurredAt: time.Now().UTC(),
	}
}

// TicketEventProducer: интерфейс для отправки событий тикета в Kafka (для подмены в тестах).
type TicketEventProducer interface {
	ProduceTicketEvent(ctx context.Context, event TicketEvent)
}

// Producer пишет события тикетов в топик Kafka (best-effort, не блокирует API).
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

// NewProducer создаёт продюсер. Если brokers пустой или topic пустой, методы no-op.
func NewProducer(brokers []string, topic string, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	if len(brokers) == 0 || topic == "" {
		return &Producer{logger: logger}
	}
	return &Producer{
		topic:  topic,
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// ProduceTicketEvent отправляет событие; ключ: id тикета, чтобы события одного тикета шли в одну партицию.
func (p *Producer) ProduceTicketEvent(ctx context.Context, event TicketEvent) {
	if p.writer == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("kafka: marshal ticket event", "error", err)
		return
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.TicketID, 10)),
		Value: body,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("kafka: write ticket event", "event", event.Event, "ticket_id", event.TicketID, "error", err)
	}
}

// Close закрывает writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Async отправляет событие в отдельной горутине с собственным таймаутом:
// событие должно уйти даже если клиент уже отключился.
func Async(p TicketEventProducer, event TicketEvent) {
	if p == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.ProduceTicketEvent(ctx, event)
	}()
}
