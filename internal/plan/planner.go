package plan

import (
	"context"
	"fmt"
	"strings"

	"autobot/internal/llm"
	"autobot/internal/logging"
	"autobot/internal/types"
)

const plannerSystemPrompt = "You are an expert project planner for an autonomous AI agent. " +
	"Your task is to create a detailed, hierarchical plan for achieving a goal. " +
	"The plan should be in Markdown format with nested task lists. " +
	"Each task should be actionable and specific. " +
	"Use the following format:\n\n" +
	"# Project Plan: [Project Name]\n\n" +
	"## Goal\n[Goal description]\n\n" +
	"## Tasks\n\n" +
	"- [ ] High-level task 1\n" +
	"  - [ ] Subtask 1.1\n" +
	"    - [ ] Sub-subtask 1.1.1\n" +
	"  - [ ] Subtask 1.2\n" +
	"- [ ] High-level task 2\n" +
	"  - [ ] Subtask 2.1\n" +
	"  - [ ] Subtask 2.2\n\n" +
	"Make sure tasks are specific, actionable, and cover all necessary steps to achieve the goal."

const refinerSystemPrompt = "You are an expert project planner for an autonomous AI agent. " +
	"Your task is to refine an existing project plan based on reflection and progress. " +
	"The plan is in Markdown format with nested task lists. " +
	"Tasks are marked as follows:\n" +
	"- [ ] Incomplete task\n" +
	"- [x] Completed task\n" +
	"- [!] Failed task\n\n" +
	"Update the plan by:\n" +
	"1. Adding new tasks or subtasks where needed\n" +
	"2. Removing or modifying tasks that are no longer relevant\n" +
	"3. Restructuring tasks if a better approach is identified\n\n" +
	"Maintain the existing format and structure. Return the complete updated plan."

// Planner drives plan creation and refinement through the completion
// client and persists the result to the plan store.
type Planner struct {
	client llm.Client
	store  *Store

	projectName string
	goal        string
}

// NewPlanner returns a planner for the named project.
func NewPlanner(client llm.Client, store *Store, projectName, goal string) *Planner {
	return &Planner{
		client:      client,
		store:       store,
		projectName: projectName,
		goal:        goal,
	}
}

// CreateInitialPlan generates a plan from the project goal and writes it
// to the plan store. If a non-empty plan already exists it is returned
// unchanged, so generation happens at most once per project.
func (p *Planner) CreateInitialPlan(ctx context.Context) (string, error) {
	if existing := p.store.GetPlan(); strings.TrimSpace(existing) != "" {
		logging.Planning("Plan already exists for project: %s", p.projectName)
		return existing, nil
	}

	messages := []types.PromptMessage{
		{Role: types.RoleSystem, Content: plannerSystemPrompt},
		{Role: types.RoleUser, Content: fmt.Sprintf(
			"Create a detailed plan for the following project:\n\nProject Name: %s\n\nGoal: %s",
			p.projectName, p.goal)},
	}

	completion, err := p.client.Generate(ctx, messages, llm.GenerateOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to generate plan: %w", err)
	}

	if err := p.store.ReplacePlan(completion.Text); err != nil {
		return "", err
	}
	logging.Planning("Created initial plan for project: %s", p.projectName)
	return completion.Text, nil
}

// RefinePlan rewrites the plan based on reflection output, replacing the
// stored plan with the model's full revision.
func (p *Planner) RefinePlan(ctx context.Context, reflection string) (string, error) {
	current := p.store.GetPlan()

	messages := []types.PromptMessage{
		{Role: types.RoleSystem, Content: refinerSystemPrompt},
		{Role: types.RoleUser, Content: fmt.Sprintf(
			"Here is the current project plan:\n\n%s\n\nHere is a reflection on the progress and challenges:\n\n%s\n\nPlease refine the plan based on this reflection.",
			current, reflection)},
	}

	completion, err := p.client.Generate(ctx, messages, llm.GenerateOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to refine plan: %w", err)
	}

	if err := p.store.ReplacePlan(completion.Text); err != nil {
		return "", err
	}
	logging.Planning("Refined plan for project: %s", p.projectName)
	return completion.Text, nil
}
