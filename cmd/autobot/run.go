package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"autobot/internal/agent"
	"autobot/internal/config"
	"autobot/internal/embedding"
	"autobot/internal/exec"
	"autobot/internal/llm"
	"autobot/internal/logging"
	"autobot/internal/memory"
	"autobot/internal/plan"
	"autobot/internal/project"
	"autobot/internal/reflection"
	"autobot/internal/store"
	"autobot/internal/types"
)

var (
	projectName string
	projectGoal string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent on a project",
	Long: `Starts the agent loop for a project. The project is created if it
does not exist yet (a goal is required for creation). Chat with the
agent on stdin; slash commands (/status, /plan, /pause, /resume,
/task <text>, /reflect, /help) are dispatched instead of answered.`,
	RunE: runAgent,
}

func init() {
	runCmd.Flags().StringVarP(&projectName, "project", "p", "", "Project name (required)")
	runCmd.Flags().StringVarP(&projectGoal, "goal", "g", "", "Project goal (required for new projects)")
	_ = runCmd.MarkFlagRequired("project")
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	manager, err := project.NewManager(cfg.Projects.Dir)
	if err != nil {
		return err
	}

	proj, err := manager.Load(projectName)
	if err != nil {
		if projectGoal == "" {
			return fmt.Errorf("project %q does not exist and no --goal was given to create it", projectName)
		}
		proj, err = manager.Create(projectName, projectGoal)
		if err != nil {
			return err
		}
		logger.Info("Created project", zap.String("name", proj.Name), zap.String("path", proj.Path))
	}

	if err := logging.Initialize(proj.Path); err != nil {
		return fmt.Errorf("failed to initialize project logging: %w", err)
	}
	defer logging.CloseAll()

	orch, cleanup, err := buildOrchestrator(cfg, proj)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("Starting agent",
		zap.String("project", proj.Name),
		zap.String("goal", proj.Goal),
		zap.String("model", cfg.LLM.Model))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := orch.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("Signal received, shutting down", zap.String("signal", sig.String()))
			orch.Shutdown()
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		readChat(ctx, orch)
		return nil
	})

	return g.Wait()
}

// readChat feeds stdin lines into the agent as user chat until EOF or
// cancellation.
func readChat(ctx context.Context, orch *agent.Orchestrator) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if _, err := orch.SendMessage(ctx, line, "user", types.KindUserChat); err != nil {
			logger.Warn("Failed to send message", zap.Error(err))
		}
	}
}

// buildOrchestrator wires the store, engines and modules for a project.
func buildOrchestrator(cfg *config.Config, proj *project.Project) (*agent.Orchestrator, func(), error) {
	st, err := store.NewStore(proj.DBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	embedder, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to create embedding engine: %w", err)
	}

	llmConfig := llm.OpenAIConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.GetLLMTimeout(),
		MaxRetries:  cfg.LLM.MaxRetries,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}
	// Separate clients so user replies and background work rate-limit
	// independently.
	userClient := llm.NewOpenAIClientWithConfig(llmConfig)
	taskClient := llm.NewOpenAIClientWithConfig(llmConfig)

	planStore := plan.NewStore(proj.PlanPath())
	mem := memory.NewManager(st, embedder, planStore, proj.Path)

	registry := exec.NewRegistry()
	registry.MustRegister(exec.NewCLITool(proj.Path, cfg.GetCommandTimeout()))
	registry.MustRegister(exec.NewFileTool(proj.Path))

	orch := agent.New(agent.Options{
		Project:    proj,
		Config:     cfg,
		UserClient: userClient,
		TaskClient: taskClient,
		Memory:     mem,
		PlanStore:  planStore,
		Planner:    plan.NewPlanner(taskClient, planStore, proj.Name, proj.Goal),
		Engine:     exec.NewEngine(taskClient, registry, mem),
		Reflector:  reflection.NewModule(taskClient, mem),
	})

	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
	}
	return orch, cleanup, nil
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = "autobot.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
