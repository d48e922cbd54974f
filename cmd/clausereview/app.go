package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/c360studio/clausereview/approval"
	"github.com/c360studio/clausereview/blobstore"
	"github.com/c360studio/clausereview/config"
	"github.com/c360studio/clausereview/domainplugin"
	"github.com/c360studio/clausereview/llm/openai"
	"github.com/c360studio/clausereview/localskill"
	"github.com/c360studio/clausereview/metrics"
	"github.com/c360studio/clausereview/review"
	"github.com/c360studio/clausereview/service"
	"github.com/c360studio/clausereview/skill"
	"github.com/c360studio/clausereview/store"
	"github.com/c360studio/clausereview/streamevt"
)

// App wires every collaborator package into one runnable Service:
// embedded-or-external NATS first, then storage, then the skill
// dispatcher, domain registry, review machine, and approval
// coordinator.
type App struct {
	cfg *config.Config

	embeddedServer *server.Server
	natsConn       *nats.Conn
	js             jetstream.JetStream

	svc     *service.Service
	janitor *store.Janitor
	logger  *slog.Logger
}

// NewApp creates an uninitialized App; call Start to wire live
// collaborators.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// Start connects NATS (embedded or external), provisions JetStream
// buckets and streams, loads domain plugins, registers the generic
// local skills, and assembles the Service.
func (a *App) Start(ctx context.Context) error {
	if err := a.startNATS(ctx); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	st, err := store.New(ctx, a.js)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}

	events, err := streamevt.New(ctx, a.js)
	if err != nil {
		return fmt.Errorf("initialize event stream: %w", err)
	}

	m := metrics.NewMetricsWithRegisterer("clausereview", prometheus.NewRegistry())
	events.WithMetrics(m)

	domains := domainplugin.NewRegistry()
	if a.cfg.DomainPlugins.Dir != "" {
		plugins, err := domainplugin.LoadDir(a.cfg.DomainPlugins.Dir)
		if err != nil {
			return fmt.Errorf("load domain plugins: %w", err)
		}
		for _, p := range plugins {
			if err := domains.Register(p); err != nil {
				return fmt.Errorf("register domain plugin %s: %w", p.DomainID, err)
			}
		}
		if a.cfg.DomainPlugins.WatchForChanges {
			if _, err := domainplugin.WatchForChanges(a.cfg.DomainPlugins.Dir, a.logger); err != nil {
				a.logger.Warn("domain plugin watch failed to start", "error", err)
			}
		}
	}

	var workflowClient skill.WorkflowServiceClient
	if a.cfg.RemoteSkill.Enabled {
		workflowClient = skill.NewHTTPWorkflowClient(skill.HTTPWorkflowClientConfig{
			BaseURL: a.cfg.RemoteSkill.BaseURL,
			APIKey:  a.cfg.RemoteSkill.APIKey,
			Timeout: time.Duration(a.cfg.RemoteSkill.TimeoutS) * time.Second,
		})
	}
	pollCfg := skill.RemotePollConfig{
		Interval:    time.Duration(a.cfg.RemoteSkill.PollIntervalS) * time.Second,
		MaxAttempts: a.cfg.RemoteSkill.MaxPollAttempt,
	}
	dispatcher := skill.NewDispatcher(skill.NewRegistry(), workflowClient, pollCfg,
		skill.WithMetrics(m),
		skill.WithCallTimeouts(a.cfg.LocalSkillTimeout(), a.cfg.RemoteSkillTimeout()))

	blobs := blobstore.New("./data/blobs")

	var rdb *redis.Client
	if a.cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		a.logger.Info("embedding chunk cache enabled", "redis_addr", a.cfg.Redis.Addr)
	}
	chunks := store.NewChunkStore(st, rdb)

	llmClient := openai.New(openai.Config{
		APIKey:  a.cfg.Embedding.APIKey,
		BaseURL: a.cfg.RemoteSkill.BaseURL,
		Model:   a.cfg.Embedding.Provider,
	})
	if err := localskill.Register(dispatcher, localskill.Deps{
		LLM:        llmClient,
		Embeddings: llmClient,
		Chunks:     chunks,
		Logger:     a.logger,
	}); err != nil {
		return fmt.Errorf("register local skills: %w", err)
	}

	reviewCfg := review.DefaultConfig()
	reviewCfg.ClauseRetryLimit = a.cfg.Review.ClauseRetryLimit
	reviewCfg.RejectRetryLimit = a.cfg.Review.RejectRetryLimit

	machine := review.New(review.Deps{
		Store:   st,
		Events:  events,
		Skills:  dispatcher,
		Domains: domains,
		Blobs:   blobs,
		Logger:  a.logger,
		Config:  reviewCfg,
		Metrics: m,
	})

	approvalCoord := approval.New(st, events, machine).WithMetrics(m)

	a.svc = service.New(st, events, dispatcher, domains, machine, approvalCoord, blobs, a.logger, service.DefaultMaxConcurrentTasks)

	a.janitor = store.NewJanitor(st, a.logger)
	if err := a.janitor.Start(ctx, "0 */6 * * *"); err != nil {
		return fmt.Errorf("start snapshot janitor: %w", err)
	}

	return nil
}

func (a *App) startNATS(ctx context.Context) error {
	if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
		a.logger.Info("connecting to NATS", "url", a.cfg.NATS.URL)
		conn, err := nats.Connect(a.cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn
	} else {
		a.logger.Info("starting embedded NATS server")
		opts := &server.Options{
			Port:      -1,
			JetStream: true,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}
		go ns.Start()

		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}
		a.embeddedServer = ns

		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return fmt.Errorf("connect to embedded NATS: %w", err)
		}
		a.natsConn = conn
	}

	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js
	return nil
}

// Shutdown gracefully stops every component, waiting up to timeout for
// in-flight work to finish.
func (a *App) Shutdown(timeout time.Duration) {
	a.logger.Info("shutting down")

	if a.janitor != nil {
		a.janitor.Stop()
	}
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
		a.natsConn.Close()
	}
	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}
}

// Service exposes the wired command surface for the CLI's subcommands.
func (a *App) Service() *service.Service {
	return a.svc
}
