// Package worker runs media processing and the temp-file sweep as background
// tasks on an asynq queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// TypeProcessMedia is scheduled after a resource media batch is uploaded.
	TypeProcessMedia = "media:process"

	// TypeSweepTempFiles is scheduled periodically to reap expired temp files.
	TypeSweepTempFiles = "media:sweep_temp"
)

// ProcessMediaPayload names the resource and the URLs to classify.
type ProcessMediaPayload struct {
	ResourceID uuid.UUID `json:"resource_id"`
	URLs       []string  `json:"urls"`
}

// Queue enqueues media tasks. It implements mediacore.ProcessingQueue.
type Queue struct {
	client *asynq.Client
}

// NewQueue wraps an asynq client.
func NewQueue(client *asynq.Client) *Queue {
	return &Queue{client: client}
}

// EnqueueProcessMedia schedules a processing run for one resource's batch.
func (q *Queue) EnqueueProcessMedia(ctx context.Context, resourceID uuid.UUID, urls []string) error {
	data, err := json.Marshal(ProcessMediaPayload{ResourceID: resourceID, URLs: urls})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(TypeProcessMedia, data)
	if _, err := q.client.EnqueueContext(ctx, task, asynq.MaxRetry(3)); err != nil {
		return fmt.Errorf("enqueue process media task: %w", err)
	}
	return nil
}
