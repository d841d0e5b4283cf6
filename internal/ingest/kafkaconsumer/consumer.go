// Package kafkaconsumer streams point-location records from Kafka into the
// ingest buffer.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/citygrid/hexdensity/internal/ingest"
	"github.com/citygrid/hexdensity/internal/observability"
)

type Consumer struct {
	cfg Config
	log zerolog.Logger
	buf *ingest.Buffer
}

func New(cfg Config, log zerolog.Logger, buf *ingest.Buffer) *Consumer {
	return &Consumer{cfg: cfg, log: log, buf: buf}
}

// Start joins the consumer group and processes records until ctx is
// canceled. Group errors are logged and the loop rejoins after a pause.
func (c *Consumer) Start(ctx context.Context) error {
	if c.buf == nil {
		return errors.New("kafkaconsumer: missing ingest buffer")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.log.Info().
		Strs("brokers", c.cfg.Brokers).
		Str("topic", c.cfg.Topic).
		Str("group", c.cfg.GroupID).
		Msg("kafka ingest consumer starting")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("kafka ingest consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.log.Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne handles a single message. Undecodable or invalid records are
// counted and skipped: they can never succeed on redelivery, so they must not
// block the partition.
func (c *Consumer) ProcessOne(_ context.Context, msg *sarama.ConsumerMessage) error {
	var rec ingest.Record
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		observability.IncIngestError("decode")
		c.log.Error().Err(err).
			Int64("offset", msg.Offset).
			Int32("partition", msg.Partition).
			Msg("undecodable record skipped")
		return nil
	}
	if err := rec.Validate(); err != nil {
		observability.IncIngestError("validate")
		c.log.Warn().Err(err).
			Int64("offset", msg.Offset).
			Str("entity_id", rec.EntityID).
			Msg("invalid record skipped")
		return nil
	}

	c.buf.Add(rec)
	observability.AddIngestRecords(1)
	return nil
}
