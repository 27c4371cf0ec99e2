// Package audit records moderation events. The production recorder hands
// events to an asynq queue so the hot message path never waits on the
// audit table; a synchronous store-backed recorder exists for setups
// without redis.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/dardasha/relay/internal/domain"
	"github.com/dardasha/relay/internal/storage"
)

// Recorder appends a moderation event to the audit trail. Implementations
// must tolerate being called from the message path: failures are reported,
// never fatal.
type Recorder interface {
	Record(ctx context.Context, ev domain.ModerationEvent) error
}

// StoreRecorder writes events synchronously through the storage interface.
type StoreRecorder struct {
	Store storage.Store
}

func (r StoreRecorder) Record(ctx context.Context, ev domain.ModerationEvent) error {
	return r.Store.RecordModerationEvent(ctx, ev)
}

// TaskModerationEvent is the asynq task name for recording one event.
const TaskModerationEvent = "moderation:record_event"

type eventPayload struct {
	Action string `json:"action"`
	RoomID string `json:"room"`
	UserID int64  `json:"userId"`
	Detail string `json:"detail"`
	At     int64  `json:"at"`
}

// AsynqRecorder enqueues events for the background worker.
type AsynqRecorder struct {
	client *asynq.Client
}

func NewAsynqRecorder(redisURL string) (*AsynqRecorder, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, err
	}
	return &AsynqRecorder{client: asynq.NewClient(opt)}, nil
}

func (r *AsynqRecorder) Record(ctx context.Context, ev domain.ModerationEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	payload, err := json.Marshal(eventPayload{
		Action: ev.Action,
		RoomID: string(ev.RoomID),
		UserID: int64(ev.UserID),
		Detail: ev.Detail,
		At:     at.Unix(),
	})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskModerationEvent, payload, asynq.MaxRetry(3))
	_, err = r.client.EnqueueContext(ctx, task)
	return err
}

func (r *AsynqRecorder) Close() error { return r.client.Close() }

// NewWorker builds the asynq server consuming moderation tasks and
// persisting them through the store. The caller runs it with Run and stops
// it via Shutdown on exit.
func NewWorker(redisURL string, store storage.Store) (*asynq.Server, *asynq.ServeMux, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, nil, err
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 2,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("module", "audit").Str("task", task.Type()).Msg("audit task failed")
		}),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskModerationEvent, func(ctx context.Context, t *asynq.Task) error {
		var p eventPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			// malformed payload, retrying cannot help
			return nil
		}
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return store.RecordModerationEvent(ctx, domain.ModerationEvent{
			Action: p.Action,
			RoomID: domain.RoomID(p.RoomID),
			UserID: domain.UserID(p.UserID),
			Detail: p.Detail,
			At:     time.Unix(p.At, 0),
		})
	})
	return srv, mux, nil
}
