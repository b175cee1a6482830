package kafkahandlers

import (
	"context"
	"encoding/json"
	"log"

	"relay-go/internal/relaytypes"
	"relay-go/internal/services"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// BatchJobConsumerLogic encapsulates the business logic for handling queued
// delivery batches from Kafka. It depends on the DeliveryService to fetch,
// upload and dispatch each file in the batch.
type BatchJobConsumerLogic struct {
	deliveryService services.DeliveryService
}

// NewBatchJobConsumerLogic creates a new instance of BatchJobConsumerLogic.
func NewBatchJobConsumerLogic(ds services.DeliveryService) *BatchJobConsumerLogic {
	if ds == nil {
		log.Panic("DeliveryService cannot be nil")
	}
	return &BatchJobConsumerLogic{deliveryService: ds}
}

// HandleBatchJob is the MessageHandler function passed to the Kafka consumer.
// It processes a single Kafka message representing a queued delivery batch.
func (h *BatchJobConsumerLogic) HandleBatchJob(ctx context.Context, msg *kafka.Message) error {
	log.Printf("Kafka Consumer: Received message for Topic %s, Partition %d, Offset %d, Key: %s\n",
		*msg.TopicPartition.Topic, msg.TopicPartition.Partition, msg.TopicPartition.Offset, string(msg.Key))

	var job relaytypes.BatchJob
	err := json.Unmarshal(msg.Value, &job)
	if err != nil {
		// Returning nil means the message is considered skipped and won't be
		// redelivered; a malformed job would fail the same way every time.
		log.Printf("Error unmarshalling batch job (Value: '%s'): %v. This message will be skipped.", string(msg.Value), err)
		return nil
	}

	results, err := h.deliveryService.DeliverJob(ctx, job)
	if err != nil {
		// Batch-level failures (e.g. missing WhatsApp credentials) are worth
		// retrying once the configuration is fixed, so surface the error and
		// leave the offset uncommitted.
		log.Printf("批次 %s 投递失败: %v", job.JobID, err)
		return err
	}

	sent := 0
	for _, r := range results {
		if r.Status == relaytypes.DeliverySent {
			sent++
		}
	}
	log.Printf("批次 %s 投递完成: %d/%d 成功", job.JobID, sent, len(results))
	// Per-item failures are already recorded in the message log; the batch
	// itself is done, so commit the offset.
	return nil
}
