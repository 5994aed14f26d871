package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/carhub/mediacore/pkg/mediacore"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	svc    mediacore.Service
	logger *slog.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(svc mediacore.Service, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{svc: svc, logger: logger}
}

// Handler registers the media task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeProcessMedia, p.handleProcessMedia)
	mux.HandleFunc(TypeSweepTempFiles, p.handleSweepTempFiles)
	return mux
}

func (p *Processor) handleProcessMedia(ctx context.Context, task *asynq.Task) error {
	var payload ProcessMediaPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := p.svc.ProcessMedia(ctx, payload.ResourceID, payload.URLs); err != nil {
		p.logger.Error("media processing failed",
			"resource_id", payload.ResourceID, "error", err)
		return err
	}
	return nil
}

func (p *Processor) handleSweepTempFiles(ctx context.Context, task *asynq.Task) error {
	removed, err := p.svc.SweepExpiredTempFiles(ctx, time.Now().UTC())
	if err != nil {
		p.logger.Error("temp file sweep failed", "error", err)
		return err
	}
	p.logger.Info("temp file sweep task done", "removed", removed)
	return nil
}
