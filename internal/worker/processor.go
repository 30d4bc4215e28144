// Package worker runs the asynq handlers behind the API: currently just the
// delayed siren-expiry job.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/lifelane/lifelane/internal/queue"
	"github.com/lifelane/lifelane/internal/store"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	store store.Store
}

// NewProcessor constructs a worker processor.
func NewProcessor(s store.Store) *Processor {
	return &Processor{store: s}
}

// Handler registers the expiry job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.SirenExpireTask, p.handleExpire)
	return mux
}

func (p *Processor) handleExpire(ctx context.Context, task *asynq.Task) error {
	var payload queue.ExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	changed, err := p.store.Expire(ctx, payload.RequestID, payload.Code)
	if err != nil {
		log.Printf("expire failed for %s: %v", payload.RequestID, err)
		return err
	}
	if changed {
		log.Printf("siren code for request %s expired", payload.RequestID)
	}
	return nil
}
