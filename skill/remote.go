package skill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// RemoteStatus is the terminal-or-pending state of a submitted remote
// workflow run, as reported by the workflow service.
type RemoteStatus string

const (
	RemoteStatusPending RemoteStatus = "pending"
	RemoteStatusRunning RemoteStatus = "running"
	RemoteStatusDone    RemoteStatus = "done"
	RemoteStatusFailed  RemoteStatus = "failed"
)

// WorkflowServiceClient is the collaborator the remote executor submits
// to and polls — an external workflow engine out of this core's scope.
type WorkflowServiceClient interface {
	Submit(ctx context.Context, workflowID string, input json.RawMessage) (jobID string, err error)
	Poll(ctx context.Context, jobID string) (status RemoteStatus, outputNodes map[string]json.RawMessage, err error)
}

// RemotePollConfig controls the remote executor's bounded polling loop.
type RemotePollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultRemotePollConfig polls every 2s, bounded by MaxAttempts to
// prevent unbounded waits.
func DefaultRemotePollConfig() RemotePollConfig {
	return RemotePollConfig{Interval: 2 * time.Second, MaxAttempts: 150}
}

// remoteExecutor submits work to a WorkflowServiceClient and polls for
// completion, with a circuit breaker per skill id so a string of network
// errors trips BackendUnavailable instead of hammering a downed service.
type remoteExecutor struct {
	client WorkflowServiceClient
	cfg    RemotePollConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func newRemoteExecutor(client WorkflowServiceClient, cfg RemotePollConfig) *remoteExecutor {
	return &remoteExecutor{
		client:   client,
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (e *remoteExecutor) breakerFor(skillID string) *gobreaker.CircuitBreaker {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[skillID]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "skill-remote-" + skillID,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	e.breakers[skillID] = cb
	return cb
}

// call submits input to workflowID and polls to completion, aggregating
// output nodes into a single JSON object.
func (e *remoteExecutor) call(ctx context.Context, skillID, workflowID string, input json.RawMessage) (json.RawMessage, error) {
	cb := e.breakerFor(skillID)

	output, err := cb.Execute(func() (any, error) {
		return e.submitAndPoll(ctx, workflowID, input)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open for skill %s", ErrBackendUnavailable, skillID)
		}
		return nil, err
	}
	return output.(json.RawMessage), nil
}

func (e *remoteExecutor) submitAndPoll(ctx context.Context, workflowID string, input json.RawMessage) (json.RawMessage, error) {
	jobID, err := e.client.Submit(ctx, workflowID, input)
	if err != nil {
		return nil, fmt.Errorf("%w: submit failed: %v", ErrBackendUnavailable, err)
	}

	consecutiveNetworkErrors := 0
	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.cfg.Interval):
		}

		status, nodes, err := e.client.Poll(ctx, jobID)
		if err != nil {
			consecutiveNetworkErrors++
			if consecutiveNetworkErrors >= 3 {
				return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
			}
			continue
		}
		consecutiveNetworkErrors = 0

		switch status {
		case RemoteStatusDone:
			return aggregateOutputNodes(nodes)
		case RemoteStatusFailed:
			return nil, fmt.Errorf("%w: job %s", ErrTaskFailed, jobID)
		case RemoteStatusPending, RemoteStatusRunning:
			continue
		}
	}
	return nil, ErrTimeout
}

func aggregateOutputNodes(nodes map[string]json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(nodes)
}
