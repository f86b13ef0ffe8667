package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/pkg/logger/logctx"
	"github.com/nguyentranbao-ct/storefront/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Publisher emits checkout events for downstream consumers.
type Publisher interface {
	PublishCheckout(ctx context.Context, receipt *models.CheckoutReceipt) error
	Close() error
}

// CheckoutEvent is the message value written for every journaled checkout.
type CheckoutEvent struct {
	Pattern    string                 `json:"pattern"`
	ReceiptID  string                 `json:"receipt_id"`
	Username   string                 `json:"username"`
	Method     models.CheckoutMethod  `json:"method"`
	Outcome    models.CheckoutOutcome `json:"outcome"`
	Currency   string                 `json:"currency"`
	Total      int64                  `json:"total"`
	CreditUsed int64                  `json:"credit_used,omitempty"`
	Lines      []models.ReceiptLine   `json:"lines"`
	Timestamp  time.Time              `json:"timestamp"`
}

const checkoutPattern = "checkout.finished"

type producer struct {
	topic    string
	producer sarama.SyncProducer
	metrics  *prometheus.HistogramVec
}

func NewPublisher(lc fx.Lifecycle, conf *config.Config) (Publisher, error) {
	cfg := conf.Kafka
	if !cfg.Enabled {
		return noopPublisher{}, nil
	}
	sp, err := sarama.NewSyncProducer(cfg.Brokers, producerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	p, err := newProducer(sp, cfg.Topic)
	if err != nil {
		_ = sp.Close()
		return nil, err
	}
	lc.Append(fx.StopHook(p.Close))
	return p, nil
}

func producerConfig(cfg config.KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true
	sc.Producer.Idempotent = false
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	return sc
}

func newProducer(sp sarama.SyncProducer, topic string) (*producer, error) {
	metrics, err := util.GetHistogramVec("kafka_messages_produced", "status", "topic")
	if err != nil {
		return nil, fmt.Errorf("get histogram vec: %w", err)
	}
	return &producer{topic: topic, producer: sp, metrics: metrics}, nil
}

func (p *producer) PublishCheckout(ctx context.Context, receipt *models.CheckoutReceipt) error {
	value, err := json.Marshal(NewCheckoutEvent(receipt))
	if err != nil {
		return fmt.Errorf("marshal checkout event: %w", err)
	}

	start := time.Now()
	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(receipt.Username),
		Value: sarama.ByteEncoder(value),
	})
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.WithLabelValues(status, p.topic).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("send checkout event: %w", err)
	}

	logctx.Debugw(ctx, "checkout event published",
		"topic", p.topic,
		"partition", partition,
		"offset", offset,
		"receipt_id", receipt.ID.String(),
	)
	return nil
}

func (p *producer) Close() error {
	return p.producer.Close()
}

func NewCheckoutEvent(r *models.CheckoutReceipt) CheckoutEvent {
	return CheckoutEvent{
		Pattern:    checkoutPattern,
		ReceiptID:  r.ID.String(),
		Username:   r.Username,
		Method:     r.Method,
		Outcome:    r.Outcome,
		Currency:   r.Currency,
		Total:      r.Total,
		CreditUsed: r.CreditUsed,
		Lines:      r.Lines,
		Timestamp:  r.CreatedAt,
	}
}

type noopPublisher struct{}

func (noopPublisher) PublishCheckout(context.Context, *models.CheckoutReceipt) error { return nil }
func (noopPublisher) Close() error                                                   { return nil }
