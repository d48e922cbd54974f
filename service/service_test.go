package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/c360studio/clausereview/approval"
	"github.com/c360studio/clausereview/domainplugin"
	"github.com/c360studio/clausereview/model"
	"github.com/c360studio/clausereview/review"
	"github.com/c360studio/clausereview/skill"
	"github.com/c360studio/clausereview/store"
	"github.com/c360studio/clausereview/streamevt"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
)

const testDomainID = "nda-v1"
const testClauseID = "1.1"
const testBlobHandle = "blob-primary"

// fakeBlobs mirrors pkg/review's test double, kept package-local since
// tests never import another package's _test.go file.
type fakeBlobs struct {
	text map[string]string
}

func (f *fakeBlobs) ReadSpan(ctx context.Context, blobHandle string, span model.TextSpan) (string, error) {
	full := f.text[blobHandle]
	end := span.End
	if end > len(full) {
		end = len(full)
	}
	if span.Start > end {
		return "", nil
	}
	return full[span.Start:end], nil
}

func scriptedHandler(t *testing.T, output json.RawMessage) skill.LocalHandler {
	t.Helper()
	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return output, nil
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// newTestService wires a Service over an embedded-NATS-backed
// Store/Stream pair, a scripted skill dispatcher whose three clause
// skills are already bound to the outcomes a caller configures, and one
// registered domain plugin with a single-clause checklist — the same
// backbone pattern pkg/review and pkg/approval use in their own tests.
func newTestService(t *testing.T, analyzeOut, validateOut, diffsOut json.RawMessage) *Service {
	t.Helper()
	ctx := context.Background()

	opts := &server.Options{Port: -1, JetStream: true, StoreDir: t.TempDir()}
	ns, err := server.NewServer(opts)
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second))
	t.Cleanup(ns.Shutdown)

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	st, err := store.New(ctx, js)
	require.NoError(t, err)
	events, err := streamevt.New(ctx, js)
	require.NoError(t, err)

	reviewCfg := review.DefaultConfig()
	dispatcher := skill.NewDispatcher(skill.NewRegistry(), nil, skill.DefaultRemotePollConfig())
	bind := func(id string, out json.RawMessage) {
		dispatcher.BindLocal(id, scriptedHandler(t, out))
		require.NoError(t, dispatcher.Register(model.SkillRegistration{ID: id, Backend: model.BackendLocal, LocalHandlerID: id}))
	}
	bind("analyze", analyzeOut)
	bind(reviewCfg.ValidateStrategySkillID, validateOut)
	bind(reviewCfg.GenerateDiffsSkillID, diffsOut)

	domains := domainplugin.NewRegistry()
	require.NoError(t, domains.Register(model.DomainPlugin{
		DomainID: testDomainID,
		Checklist: []model.ReviewChecklistItem{
			{ClauseID: testClauseID, RequiredSkill: []string{"analyze"}},
		},
	}))

	blobs := &fakeBlobs{text: map[string]string{testBlobHandle: "original clause text"}}

	machine := review.New(review.Deps{
		Store:   st,
		Events:  events,
		Skills:  dispatcher,
		Domains: domains,
		Blobs:   blobs,
		Config:  reviewCfg,
	})
	coord := approval.New(st, events, machine)

	return New(st, events, dispatcher, domains, machine, coord, blobs, nil, 2)
}

func setupPrimaryDocument(t *testing.T, svc *Service, taskID string) {
	t.Helper()
	ctx := context.Background()
	doc, err := svc.UploadDocument(ctx, taskID, model.RolePrimary, "contract.txt", testBlobHandle)
	require.NoError(t, err)

	structure := &model.DocumentStructure{
		Clauses: []model.ClauseNode{
			{ClauseID: testClauseID, Title: "Confidentiality", Span: model.TextSpan{Start: 0, End: len("original clause text")}},
		},
	}
	require.NoError(t, svc.Store.SetDocumentStructure(ctx, taskID, doc.ID, structure))
}

func waitForPhase(t *testing.T, svc *Service, taskID string, phase model.Phase) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := svc.GetStatus(context.Background(), taskID)
		require.NoError(t, err)
		if st.Phase == phase {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s did not reach phase %s in time", taskID, phase)
}

func TestService_CreateTask_StartsInUploadingPhase(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	task, err := svc.CreateTask(context.Background(), testDomainID, "acme corp", "en")
	require.NoError(t, err)
	require.Equal(t, model.PhaseUploading, task.Phase)
}

func TestService_StartReview_RequiresPrimaryDocument(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	task, err := svc.CreateTask(context.Background(), testDomainID, "acme corp", "en")
	require.NoError(t, err)

	err = svc.StartReview(context.Background(), task.ID)
	require.Error(t, err)
}

func TestService_HappyPath_ApproveAndResume(t *testing.T) {
	svc := newTestService(t, mustJSON(t, struct {
		Risks []string `json:"risks"`
	}{Risks: []string{"auto-renewal"}}),
		mustJSON(t, struct {
			Outcome string `json:"outcome"`
		}{Outcome: "pass"}),
		mustJSON(t, struct {
			Diffs []struct {
				Action       string `json:"action"`
				OriginalText string `json:"original_text"`
				ProposedText string `json:"proposed_text"`
				Risk         string `json:"risk"`
				Rationale    string `json:"rationale"`
			} `json:"diffs"`
		}{Diffs: []struct {
			Action       string `json:"action"`
			OriginalText string `json:"original_text"`
			ProposedText string `json:"proposed_text"`
			Risk         string `json:"risk"`
			Rationale    string `json:"rationale"`
		}{{Action: "replace", OriginalText: "original clause text", ProposedText: "revised clause text", Risk: "low", Rationale: "tighten renewal language"}}}))
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, testDomainID, "acme corp", "en")
	require.NoError(t, err)
	setupPrimaryDocument(t, svc, task.ID)

	require.NoError(t, svc.StartReview(ctx, task.ID))
	waitForPhase(t, svc, task.ID, model.PhaseInterrupted)

	status, err := svc.GetStatus(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, 1, status.PendingCount)

	diffs, err := svc.Store.ListDiffsByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, diffs, 1)

	require.NoError(t, svc.ApproveDiff(ctx, task.ID, diffs[0].ID, model.DecisionApprove, "reviewer@example.com", "", ""))
	require.NoError(t, svc.Resume(ctx, task.ID))

	waitForPhase(t, svc, task.ID, model.PhaseComplete)
}

func TestService_CancelTask_MarksFailed(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	task, err := svc.CreateTask(context.Background(), testDomainID, "acme corp", "en")
	require.NoError(t, err)

	require.NoError(t, svc.CancelTask(context.Background(), task.ID))

	status, err := svc.GetStatus(context.Background(), task.ID)
	require.NoError(t, err)
	require.Equal(t, model.PhaseFailed, status.Phase)
	require.Equal(t, "cancelled", status.FailureReason)
}

func TestService_ListDomainsAndSkills(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)

	domains := svc.ListDomains(context.Background())
	require.Len(t, domains, 1)
	require.Equal(t, testDomainID, domains[0].DomainID)

	skills := svc.ListSkills(context.Background(), "")
	require.Len(t, skills, 3)
}
