package review

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/c360studio/clausereview/model"
	"github.com/c360studio/clausereview/skill"
	"github.com/c360studio/clausereview/store"
	"github.com/c360studio/clausereview/streamevt"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// newTestBackbone starts an embedded NATS/JetStream server and returns a
// Store plus event Stream backed by it, mirroring pkg/store's own test
// helper so pkg/review's tests exercise the real persistence contract
// rather than a mock.
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
	ev, err := streamevt.New(context.Background(), js)
	if err != nil {
		t.Fatalf("new event stream: %v", err)
	}
	return s, ev
}

// fakeDomains is a DomainResolver test double with no YAML loading.
type fakeDomains struct {
	checklist map[string][]model.ReviewChecklistItem
	baselines map[string]map[string]string
}

func (f *fakeDomains) Checklist(domainID string) []model.ReviewChecklistItem {
	return f.checklist[domainID]
}

func (f *fakeDomains) Baseline(domainID, clauseID string) (string, bool) {
	m, ok := f.baselines[domainID]
	if !ok {
		return "", false
	}
	text, ok := m[clauseID]
	return text, ok
}

// fakeBlobs serves clause text from an in-memory map keyed by blob
// handle, standing in for the out-of-scope blob store collaborator.
type fakeBlobs struct {
	text map[string]string
}

func (f *fakeBlobs) ReadSpan(ctx context.Context, blobHandle string, span model.TextSpan) (string, error) {
	full := f.text[blobHandle]
	if span.End > len(full) {
		span.End = len(full)
	}
	if span.Start > span.End {
		return "", nil
	}
	return full[span.Start:span.End], nil
}

// scriptedHandler replays a queue of (output, error) pairs, one per call,
// for deterministic control over skill outcomes across node transitions.
func scriptedHandler(t *testing.T, outputs []scriptedResult) skill.LocalHandler {
	t.Helper()
	i := 0
	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		if i >= len(outputs) {
			t.Fatalf("scriptedHandler: no more scripted results (call %d)", i+1)
		}
		r := outputs[i]
		i++
		return r.output, r.err
	}
}

type scriptedResult struct {
	output json.RawMessage
	err    error
}

func newTestDispatcher() (*skill.Dispatcher, *skill.Registry) {
	reg := skill.NewRegistry()
	return skill.NewDispatcher(reg, nil, skill.DefaultRemotePollConfig()), reg
}
