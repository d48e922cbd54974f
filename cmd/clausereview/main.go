// Package main implements the clausereview CLI, the command-line front
// end over pkg/service's call surface: a cobra root command with
// persistent config/nats-url flags, signal-aware ExecuteContext, and
// one subcommand per verb.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/clausereview/approval"
	"github.com/c360studio/clausereview/config"
	"github.com/c360studio/clausereview/model"
)

var (
	version = "dev"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		natsURL    string
	)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	rootCmd := &cobra.Command{
		Use:     "clausereview",
		Short:   "Agentic clause-by-clause legal document review",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats-url", "", "NATS server URL (default: embedded)")

	var app *App
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if configPath != "" {
			loaded, err := config.LoadFromFile(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
		}
		if natsURL != "" {
			cfg.NATS.URL = natsURL
			cfg.NATS.Embedded = false
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		app = NewApp(cfg, logger)
		return app.Start(cmd.Context())
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Shutdown(5 * time.Second)
		}
	}

	rootCmd.AddCommand(
		createTaskCmd(&app),
		uploadDocumentCmd(&app),
		startReviewCmd(&app),
		statusCmd(&app),
		approveCmd(&app),
		approveBatchCmd(&app),
		resumeCmd(&app),
		cancelCmd(&app),
		listDomainsCmd(&app),
		listSkillsCmd(&app),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func createTaskCmd(app **App) *cobra.Command {
	var domainID, ourParty, language string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new review task",
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := (*app).Service().CreateTask(cmd.Context(), domainID, ourParty, language)
			if err != nil {
				return err
			}
			return printJSON(task)
		},
	}
	cmd.Flags().StringVar(&domainID, "domain", "", "domain plugin id")
	cmd.Flags().StringVar(&ourParty, "party", "", "the reviewing party's name in the document")
	cmd.Flags().StringVar(&language, "language", "en", "document language")
	return cmd
}

func uploadDocumentCmd(app **App) *cobra.Command {
	var taskID, role, filename, blobHandle string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Register an uploaded document against a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := (*app).Service().UploadDocument(cmd.Context(), taskID, model.DocumentRole(role), filename, blobHandle)
			if err != nil {
				return err
			}
			return printJSON(doc)
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().StringVar(&role, "role", "primary", "document role (primary, baseline, supplement, reference, standard)")
	cmd.Flags().StringVar(&filename, "filename", "", "original filename")
	cmd.Flags().StringVar(&blobHandle, "blob", "", "blob store handle for the already-uploaded bytes")
	cmd.MarkFlagRequired("task")
	cmd.MarkFlagRequired("blob")
	return cmd
}

func startReviewCmd(app **App) *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the review state machine for a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return (*app).Service().StartReview(cmd.Context(), taskID)
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.MarkFlagRequired("task")
	return cmd
}

func statusCmd(app **App) *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Get a task's current phase and pending approval count",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := (*app).Service().GetStatus(cmd.Context(), taskID)
			if err != nil {
				return err
			}
			return printJSON(st)
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.MarkFlagRequired("task")
	return cmd
}

func approveCmd(app **App) *cobra.Command {
	var taskID, diffID, decision, actor, feedback, userModifiedText string
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Record an approval decision for one diff",
		RunE: func(cmd *cobra.Command, args []string) error {
			return (*app).Service().ApproveDiff(cmd.Context(), taskID, diffID, model.Decision(decision), actor, feedback, userModifiedText)
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().StringVar(&diffID, "diff", "", "diff id")
	cmd.Flags().StringVar(&decision, "decision", "approve", "approve or reject")
	cmd.Flags().StringVar(&actor, "actor", "", "approving user")
	cmd.Flags().StringVar(&feedback, "feedback", "", "rejection feedback")
	cmd.Flags().StringVar(&userModifiedText, "modified-text", "", "replacement text to apply instead of the proposed text")
	cmd.MarkFlagRequired("task")
	cmd.MarkFlagRequired("diff")
	return cmd
}

func approveBatchCmd(app **App) *cobra.Command {
	var taskID, file string
	cmd := &cobra.Command{
		Use:   "approve-batch",
		Short: "Record decisions for multiple diffs from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read decisions file: %w", err)
			}
			var decisions []approval.BatchDecision
			if err := json.Unmarshal(data, &decisions); err != nil {
				return fmt.Errorf("parse decisions file: %w", err)
			}
			errs := (*app).Service().ApproveBatch(cmd.Context(), taskID, decisions)
			for i, err := range errs {
				if err != nil {
					fmt.Fprintf(os.Stderr, "decision %d (%s): %v\n", i, decisions[i].DiffID, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().StringVar(&file, "file", "", "path to a JSON array of decisions")
	cmd.MarkFlagRequired("task")
	cmd.MarkFlagRequired("file")
	return cmd
}

func resumeCmd(app **App) *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a suspended task once every pending diff has a decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			return (*app).Service().Resume(cmd.Context(), taskID)
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.MarkFlagRequired("task")
	return cmd
}

func cancelCmd(app **App) *cobra.Command {
	var taskID string
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return (*app).Service().CancelTask(cmd.Context(), taskID)
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.MarkFlagRequired("task")
	return cmd
}

func listDomainsCmd(app **App) *cobra.Command {
	return &cobra.Command{
		Use:   "list-domains",
		Short: "List registered domain plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON((*app).Service().ListDomains(cmd.Context()))
		},
	}
}

func listSkillsCmd(app **App) *cobra.Command {
	var domainFilter string
	cmd := &cobra.Command{
		Use:   "list-skills",
		Short: "List registered skills, optionally filtered by domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON((*app).Service().ListSkills(cmd.Context(), domainFilter))
		},
	}
	cmd.Flags().StringVar(&domainFilter, "domain", "", "domain id filter")
	return cmd
}
