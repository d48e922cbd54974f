package skill

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360studio/clausereview/model"
	"github.com/stretchr/testify/require"
)

func TestDispatcherCallLocalSuccess(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, nil, DefaultRemotePollConfig())
	d.BindLocal("echo", func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return input, nil
	})
	require.NoError(t, d.Register(model.SkillRegistration{ID: "echo-skill", Backend: model.BackendLocal, LocalHandlerID: "echo"}))

	out, err := d.Call(context.Background(), "echo-skill", json.RawMessage(`{"x":1}`), nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"x":1}`, string(out))
}

func TestDispatcherCallUnregisteredSkill(t *testing.T) {
	d := NewDispatcher(NewRegistry(), nil, DefaultRemotePollConfig())
	_, err := d.Call(context.Background(), "missing", nil, nil)
	require.ErrorIs(t, err, ErrSkillNotRegistered)
}

func TestDispatcherRegisterRejectsUnboundLocalHandler(t *testing.T) {
	d := NewDispatcher(NewRegistry(), nil, DefaultRemotePollConfig())
	err := d.Register(model.SkillRegistration{ID: "unbound", Backend: model.BackendLocal, LocalHandlerID: "never-bound"})
	require.ErrorIs(t, err, ErrSkillNotRegistered)
}

func TestDispatcherCallLocalHandlerError(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, nil, DefaultRemotePollConfig())
	d.BindLocal("boom", func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		return nil, context.DeadlineExceeded
	})
	require.NoError(t, d.Register(model.SkillRegistration{ID: "boom-skill", Backend: model.BackendLocal, LocalHandlerID: "boom"}))

	_, err := d.Call(context.Background(), "boom-skill", nil, nil)
	require.ErrorIs(t, err, ErrExecutionFailed)
}

type fakeWorkflowClient struct {
	pollCalls   int32
	failUntil   int32
	finalStatus RemoteStatus
	submitErr   error
}

func (f *fakeWorkflowClient) Submit(ctx context.Context, workflowID string, input json.RawMessage) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "job-1", nil
}

func (f *fakeWorkflowClient) Poll(ctx context.Context, jobID string) (RemoteStatus, map[string]json.RawMessage, error) {
	n := atomic.AddInt32(&f.pollCalls, 1)
	if n <= f.failUntil {
		return "", nil, context.DeadlineExceeded
	}
	if f.finalStatus == RemoteStatusDone {
		return RemoteStatusDone, map[string]json.RawMessage{"result": json.RawMessage(`"ok"`)}, nil
	}
	return f.finalStatus, nil, nil
}

func TestDispatcherCallRemoteSuccess(t *testing.T) {
	client := &fakeWorkflowClient{finalStatus: RemoteStatusDone}
	reg := NewRegistry()
	d := NewDispatcher(reg, client, RemotePollConfig{Interval: time.Millisecond, MaxAttempts: 10})
	require.NoError(t, d.Register(model.SkillRegistration{ID: "remote-skill", Backend: model.BackendRemote, RemoteWorkflowID: "wf-1"}))

	out, err := d.Call(context.Background(), "remote-skill", json.RawMessage(`{}`), nil)
	require.NoError(t, err)
	require.Contains(t, string(out), "result")
}

func TestDispatcherCallRemoteFailsAfterThreeNetworkErrors(t *testing.T) {
	client := &fakeWorkflowClient{failUntil: 100}
	reg := NewRegistry()
	d := NewDispatcher(reg, client, RemotePollConfig{Interval: time.Millisecond, MaxAttempts: 10})
	require.NoError(t, d.Register(model.SkillRegistration{ID: "remote-skill", Backend: model.BackendRemote, RemoteWorkflowID: "wf-1"}))

	_, err := d.Call(context.Background(), "remote-skill", json.RawMessage(`{}`), nil)
	require.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestDispatcherCallRemoteTaskFailed(t *testing.T) {
	client := &fakeWorkflowClient{finalStatus: RemoteStatusFailed}
	reg := NewRegistry()
	d := NewDispatcher(reg, client, RemotePollConfig{Interval: time.Millisecond, MaxAttempts: 10})
	require.NoError(t, d.Register(model.SkillRegistration{ID: "remote-skill", Backend: model.BackendRemote, RemoteWorkflowID: "wf-1"}))

	_, err := d.Call(context.Background(), "remote-skill", json.RawMessage(`{}`), nil)
	require.ErrorIs(t, err, ErrTaskFailed)
}
