package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/multicreator/mintpipe"
)

// EventService fans mint stage transitions out over redis pubsub so
// any process can watch a run in flight.
type EventService struct {
	rdb *redis.Client
}

func NewEventService(redisClient *redis.Client) *EventService {
	return &EventService{
		rdb: redisClient,
	}
}

func channelFor(runID string) string {
	return "mint:events:" + runID
}

func (s *EventService) Publish(ctx context.Context, event mintpipe.StageEvent) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return s.rdb.Publish(ctx, channelFor(event.RunID), jsonstr).Err()
}

// Watch forwards stage events for one run into out until the context
// ends. The out channel is closed on return.
func (s *EventService) Watch(ctx context.Context, runID string, out chan<- mintpipe.StageEvent) {
	defer close(out)

	pubsub := s.rdb.Subscribe(ctx, channelFor(runID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event mintpipe.StageEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.ErrorContext(ctx, "failed to decode stage event",
					slog.String("error", err.Error()),
					slog.String("module", "events"),
				)
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
