package approval

import (
	"context"
	"testing"
	"time"

	"github.com/c360studio/clausereview/model"
	"github.com/c360studio/clausereview/store"
	"github.com/c360studio/clausereview/streamevt"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// newTestBackbone mirrors store's and review's own embedded-NATS test
// helper so approval's tests exercise the real persistence contract.
func newTestBackbone(t *testing.T) (*store.Store, *streamevt.Stream) {
	t.Helper()

	opts := &server.Options{Port: -1, JetStream: true, StoreDir: t.TempDir()}
	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("start embedded nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded nats server did not become ready")
	}
	t.Cleanup(ns.Shutdown)

	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("connect to embedded nats server: %v", err)
	}
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("create jetstream context: %v", err)
	}

	s, err := store.New(context.Background(), js)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	events, err := streamevt.New(context.Background(), js)
	if err != nil {
		t.Fatalf("new stream: %v", err)
	}
	return s, events
}

// fakeResumer records the decisions it was asked to resume with, standing
// in for review.Machine without importing pkg/review (which would create
// a cycle back to approval via Resumer).
type fakeResumer struct {
	called    bool
	taskID    string
	decisions map[string]model.Decision
	err       error
}

func (f *fakeResumer) ContinueFromSaveClause(ctx context.Context, taskID string, decisions map[string]model.Decision) error {
	f.called = true
	f.taskID = taskID
	f.decisions = decisions
	return f.err
}
