package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mantavyam/pitch-note-pilot/internal/document"
	"github.com/mantavyam/pitch-note-pilot/internal/identity"
	"github.com/mantavyam/pitch-note-pilot/internal/worker"
	redisLib "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) snapshot() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

type refusingPool struct{}

func (refusingPool) Submit(worker.Task) bool { return false }

func newService() (*document.Store, *document.DefaultService) {
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := document.NewStore(document.WithClock(func() time.Time { return clock }))
	return store, document.NewService(store, identity.NewSequenceGenerator("id"), zerolog.Nop())
}

func TestEventFrom(t *testing.T) {
	s := document.Snapshot{
		Seq:        7,
		Action:     "reorder_nodes",
		DocumentID: "doc-1",
		Status:     document.Rejected,
		Err:        errors.New("reorder lists 1 ids, expected 2"),
		State:      document.NewState(),
		At:         time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}

	e := EventFrom(s)

	assert.Equal(t, uint64(7), e.Seq)
	assert.Equal(t, "rejected", e.Status)
	assert.Equal(t, "doc-1", e.DocumentID)
	assert.Equal(t, "reorder lists 1 ids, expected 2", e.Error)
	assert.Equal(t, 0, e.Documents)
}

func TestBroadcaster_ForwardsSnapshots(t *testing.T) {
	store, service := newService()
	pool := worker.NewWorkerPool(1, zerolog.Nop())
	pub := &recordingPublisher{}

	detach := New(pub, pool, zerolog.Nop()).Attach(store)

	_, err := service.CreateDocument(context.Background(), document.CreateDocumentData{Date: "2024-05-01"})
	require.NoError(t, err)
	_, err = service.UpdateEditor(context.Background(), document.EditorPatch{ToggleOutline: true})
	require.NoError(t, err)

	detach()
	_, err = service.UpdateEditor(context.Background(), document.EditorPatch{ToggleOutline: true})
	require.NoError(t, err)

	pool.Shutdown()

	events := pub.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, "create_document", events[0].Action)
	assert.Equal(t, 1, events[0].Documents)
	assert.Equal(t, "toggle_outline", events[1].Action)
	assert.Equal(t, uint64(2), events[1].Seq)
}

func TestBroadcaster_DropsWhenPoolRefuses(t *testing.T) {
	store, service := newService()
	pub := &recordingPublisher{}
	New(pub, refusingPool{}, zerolog.Nop()).Attach(store)

	_, err := service.CreateDocument(context.Background(), document.CreateDocumentData{Date: "2024-05-01"})
	require.NoError(t, err)

	assert.Empty(t, pub.snapshot())
}

func TestRedisPublisher_NilClientIsNoop(t *testing.T) {
	pub := NewRedisPublisher(nil, "editor:snapshots")
	assert.NoError(t, pub.Publish(context.Background(), Event{Seq: 1}))
}

func TestRedisPublisher_PublishesToChannel(t *testing.T) {
	miniRedis := miniredis.RunT(t)
	client := redisLib.NewClient(&redisLib.Options{Addr: miniRedis.Addr()})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := Listen(ctx, client, "editor:snapshots")
	require.NoError(t, err)

	store, service := newService()
	pool := worker.NewWorkerPool(2, zerolog.Nop())
	defer pool.Shutdown()
	New(NewRedisPublisher(client, "editor:snapshots"), pool, zerolog.Nop()).Attach(store)

	doc, err := service.CreateDocument(ctx, document.CreateDocumentData{Date: "2024-05-01"})
	require.NoError(t, err)

	select {
	case e := <-events:
		assert.Equal(t, uint64(1), e.Seq)
		assert.Equal(t, "create_document", e.Action)
		assert.Equal(t, "applied", e.Status)
		assert.Equal(t, doc.ID, e.DocumentID)
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}

func TestRedisPublisher_ServerDown(t *testing.T) {
	miniRedis := miniredis.RunT(t)
	client := redisLib.NewClient(&redisLib.Options{Addr: miniRedis.Addr(), MaxRetries: -1})
	defer client.Close()
	miniRedis.Close()

	err := NewRedisPublisher(client, "editor:snapshots").Publish(context.Background(), Event{Seq: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event 3")
}
