package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// SirenExpireTask is scheduled each time a request is granted and
	// server-side expiry is enabled.
	SirenExpireTask = "siren:expire"
)

// ExpirePayload carries enough for the worker to expire exactly the grant
// that scheduled it: a re-grant mints a different code, so a stale task
// finds a mismatch and does nothing.
type ExpirePayload struct {
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
}

// EnqueueExpire schedules a siren-expiry job to fire after ttl.
func EnqueueExpire(ctx context.Context, client *asynq.Client, payload ExpirePayload, ttl time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(SirenExpireTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.ProcessIn(ttl), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue expire task: %w", err)
	}
	return nil
}
