package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mantavyam/pitch-note-pilot/internal/document"
	"github.com/mantavyam/pitch-note-pilot/internal/worker"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event is the message published for every dispatched editor action.
// Publishing is asynchronous, so consumers order events by Seq.
type Event struct {
	Seq        uint64    `json:"seq"`
	Action     string    `json:"action"`
	Status     string    `json:"status"`
	DocumentID string    `json:"document_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	Documents  int       `json:"documents"`
	At         time.Time `json:"at"`
}

func EventFrom(s document.Snapshot) Event {
	e := Event{
		Seq:        s.Seq,
		Action:     s.Action,
		Status:     s.Status.String(),
		DocumentID: s.DocumentID,
		Documents:  s.State.Len(),
		At:         s.At,
	}
	if s.Err != nil {
		e.Error = s.Err.Error()
	}
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// RedisPublisher sends events as JSON on a redis pub/sub channel. A nil
// client turns it into a no-op.
type RedisPublisher struct {
	client  *goredis.Client
	channel string
}

func NewRedisPublisher(client *goredis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if p.client == nil {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %d: %w", e.Seq, err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event %d: %w", e.Seq, err)
	}
	return nil
}

// Submitter runs tasks in the background.
type Submitter interface {
	Submit(t worker.Task) bool
}

// Source is anything that emits editor snapshots.
type Source interface {
	Subscribe(l document.Listener) func()
}

// Broadcaster turns snapshots into events and hands them to a Publisher off
// the dispatch path.
type Broadcaster struct {
	publisher Publisher
	pool      Submitter
	timeout   time.Duration
	log       zerolog.Logger
}

func New(publisher Publisher, pool Submitter, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		publisher: publisher,
		pool:      pool,
		timeout:   3 * time.Second,
		log:       log,
	}
}

// Attach starts forwarding snapshots from src and returns a function that
// stops it.
func (b *Broadcaster) Attach(src Source) func() {
	return src.Subscribe(b.handle)
}

func (b *Broadcaster) handle(s document.Snapshot) {
	e := EventFrom(s)
	accepted := b.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()
		return b.publisher.Publish(ctx, e)
	})
	if !accepted {
		b.log.Warn().Uint64("seq", e.Seq).Str("action", e.Action).Msg("snapshot event dropped")
	}
}

// Listen subscribes to channel and decodes events until ctx ends. Messages
// that are not events are skipped.
func Listen(ctx context.Context, client *goredis.Client, channel string) (<-chan Event, error) {
	sub := client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					continue
				}
				select {
				case events <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}
