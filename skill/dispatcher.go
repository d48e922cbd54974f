package skill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/c360studio/clausereview/metrics"
	"github.com/c360studio/clausereview/model"
	"github.com/c360studio/clausereview/telemetry"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InputValidator checks a skill's decoded input against whatever
// constraints the handler declares, letting local handlers opt into
// struct-tag validation via go-playground/validator without forcing every
// skill to define one.
type InputValidator interface {
	Validate(input any) error
}

// structValidator adapts go-playground/validator/v10 to InputValidator.
type structValidator struct {
	v *validator.Validate
}

func newStructValidator() *structValidator {
	return &structValidator{v: validator.New()}
}

func (s *structValidator) Validate(input any) error {
	if err := s.v.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInputInvalid, err)
	}
	return nil
}

// Dispatcher is the uniform skill call surface: callers
// never know whether a skill runs in-process or as a remote workflow.
type Dispatcher struct {
	registry *Registry
	local    *localExecutors
	remote   *remoteExecutor
	validate *structValidator
	metrics  *metrics.Metrics

	callTimeoutLocal  time.Duration
	callTimeoutRemote time.Duration
}

// WithMetrics attaches a metrics.Metrics instance so every Call records
// skill_calls_total/skill_call_duration_seconds. Nil-safe when unset —
// Call simply skips instrumentation.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// DispatcherOption configures optional Dispatcher behavior.
type DispatcherOption func(*Dispatcher)

// WithCallTimeouts overrides the default per-backend call timeouts
// (config.go's per_skill_timeout_local_s / per_skill_timeout_remote_s).
func WithCallTimeouts(local, remote time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.callTimeoutLocal = local
		d.callTimeoutRemote = remote
	}
}

// NewDispatcher builds a Dispatcher over an existing Registry. client may
// be nil if no remote skills are ever registered.
func NewDispatcher(registry *Registry, client WorkflowServiceClient, pollCfg RemotePollConfig, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:          registry,
		local:             newLocalExecutors(),
		remote:            newRemoteExecutor(client, pollCfg),
		validate:          newStructValidator(),
		callTimeoutLocal:  30 * time.Second,
		callTimeoutRemote: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// BindLocal associates a LocalHandler with a handler id referenced by one
// or more SkillRegistrations. Call before Register, or any time after —
// Call resolves the handler lazily.
func (d *Dispatcher) BindLocal(handlerID string, h LocalHandler) {
	d.local.bind(handlerID, h)
}

// Register validates and stores a SkillRegistration, rejecting a local
// registration whose handler isn't bound.
func (d *Dispatcher) Register(reg model.SkillRegistration) error {
	if reg.Backend == model.BackendLocal {
		if _, ok := d.local.get(reg.LocalHandlerID); !ok {
			return fmt.Errorf("%w: handler id %q not bound", ErrSkillNotRegistered, reg.LocalHandlerID)
		}
	}
	return d.registry.Register(reg)
}

// List delegates to the underlying Registry.
func (d *Dispatcher) List(domainFilter string, backendFilter model.SkillBackend) []model.SkillRegistration {
	return d.registry.List(domainFilter, backendFilter)
}

// Call resolves skillID's executor, validates input if a validated input
// type was decoded, enforces a per-backend timeout, and returns the
// skill's output.
func (d *Dispatcher) Call(ctx context.Context, skillID string, input json.RawMessage, validated any) (json.RawMessage, error) {
	reg, ok := d.registry.Get(skillID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSkillNotRegistered, skillID)
	}

	if validated != nil {
		if err := json.Unmarshal(input, validated); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInputInvalid, err)
		}
		if err := d.validate.Validate(validated); err != nil {
			return nil, err
		}
	}

	ctx, span := telemetry.StartSpan(ctx, "skill.Call",
		trace.WithAttributes(
			attribute.String("skill.id", skillID),
			attribute.String("skill.backend", string(reg.Backend)),
		),
	)
	defer span.End()

	start := time.Now()
	var out json.RawMessage
	var err error
	switch reg.Backend {
	case model.BackendLocal:
		out, err = d.callLocal(ctx, reg, input)
	case model.BackendRemote:
		out, err = d.callRemote(ctx, reg, input)
	default:
		err = fmt.Errorf("%w: unknown backend for %s", ErrSkillNotRegistered, skillID)
	}
	telemetry.SetSpanError(span, err)
	if err == nil {
		telemetry.SetSpanOK(span)
	}

	if d.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		d.metrics.SkillCallsTotal.WithLabelValues(skillID, string(reg.Backend), outcome).Inc()
		d.metrics.SkillCallDuration.WithLabelValues(skillID, string(reg.Backend)).Observe(time.Since(start).Seconds())
	}
	return out, err
}

func (d *Dispatcher) callLocal(ctx context.Context, reg model.SkillRegistration, input json.RawMessage) (json.RawMessage, error) {
	handler, ok := d.local.get(reg.LocalHandlerID)
	if !ok {
		return nil, fmt.Errorf("%w: handler %q not bound", ErrSkillNotRegistered, reg.LocalHandlerID)
	}

	ctx, cancel := context.WithTimeout(ctx, d.callTimeoutLocal)
	defer cancel()

	out, err := handler(ctx, input)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}
	return out, nil
}

func (d *Dispatcher) callRemote(ctx context.Context, reg model.SkillRegistration, input json.RawMessage) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, d.callTimeoutRemote)
	defer cancel()

	out, err := d.remote.call(ctx, reg.ID, reg.RemoteWorkflowID, input)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		if errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrTaskFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}
	return out, nil
}
