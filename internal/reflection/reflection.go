// Package reflection lets the agent learn from execution. Task reflections
// run after every task, progress reflections run periodically over recent
// insights. Both persist their output as insights for later recall.
package reflection

import (
	"context"
	"fmt"
	"strings"

	"autobot/internal/llm"
	"autobot/internal/logging"
	"autobot/internal/memory"
	"autobot/internal/types"
)

const taskReflectionPrompt = "You are an AI assistant that reflects on task execution to learn and improve. " +
	"You will be given a task description and its execution result. " +
	"Your job is to analyze what went well, what went wrong, and what could be improved. " +
	"Respond in JSON format with the following structure:\n" +
	"{\n" +
	"  \"success\": true/false,\n" +
	"  \"analysis\": \"Detailed analysis of the task execution\",\n" +
	"  \"lessons_learned\": [\"Lesson 1\", \"Lesson 2\", ...],\n" +
	"  \"improvement_suggestions\": [\"Suggestion 1\", \"Suggestion 2\", ...]\n" +
	"}"

const progressReflectionPrompt = "You are an AI assistant that reflects on project progress to learn and improve. " +
	"You will be given the current project plan and recent insights. " +
	"Your job is to analyze overall progress, identify patterns, and suggest improvements. " +
	"Respond in JSON format with the following structure:\n" +
	"{\n" +
	"  \"progress_assessment\": \"Assessment of overall progress\",\n" +
	"  \"patterns_identified\": [\"Pattern 1\", \"Pattern 2\", ...],\n" +
	"  \"strengths\": [\"Strength 1\", \"Strength 2\", ...],\n" +
	"  \"challenges\": [\"Challenge 1\", \"Challenge 2\", ...],\n" +
	"  \"strategy_adjustments\": [\"Adjustment 1\", \"Adjustment 2\", ...]\n" +
	"}"

// TaskReflection is the structured outcome of reflecting on one task.
type TaskReflection struct {
	Success                bool     `json:"success"`
	Analysis               string   `json:"analysis"`
	LessonsLearned         []string `json:"lessons_learned"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
}

// Summary renders the reflection as prose suitable for plan refinement.
func (r TaskReflection) Summary() string {
	return formatSections([]section{
		{"Analysis: " + r.Analysis, nil},
		{"Lessons Learned:", r.LessonsLearned},
		{"Improvement Suggestions:", r.ImprovementSuggestions},
	})
}

// ProgressReflection is the structured outcome of a periodic progress
// review.
type ProgressReflection struct {
	ProgressAssessment  string   `json:"progress_assessment"`
	PatternsIdentified  []string `json:"patterns_identified"`
	Strengths           []string `json:"strengths"`
	Challenges          []string `json:"challenges"`
	StrategyAdjustments []string `json:"strategy_adjustments"`
}

// Summary renders the reflection as prose suitable for plan refinement.
func (r ProgressReflection) Summary() string {
	return formatSections([]section{
		{"Progress Assessment: " + r.ProgressAssessment, nil},
		{"Patterns Identified:", r.PatternsIdentified},
		{"Strengths:", r.Strengths},
		{"Challenges:", r.Challenges},
		{"Strategy Adjustments:", r.StrategyAdjustments},
	})
}

// Module generates reflections and records them as insights.
type Module struct {
	client llm.Client
	memory *memory.Manager
}

// NewModule returns a reflection module.
func NewModule(client llm.Client, mem *memory.Manager) *Module {
	return &Module{client: client, memory: mem}
}

// ReflectOnTask analyzes one task execution and stores the analysis as an
// insight keyed by the task. A malformed model response degrades to a
// default reflection derived from the result status instead of failing.
func (m *Module) ReflectOnTask(ctx context.Context, result types.TaskResult) (TaskReflection, error) {
	logging.Reflection("Reflecting on task: %s", result.Task)

	messages := []types.PromptMessage{
		{Role: types.RoleSystem, Content: taskReflectionPrompt},
		{Role: types.RoleUser, Content: fmt.Sprintf(
			"Task: %s\n\nResult: status=%s tool=%s\nOutput:\n%s\nError: %s",
			result.Task, result.Status, result.Tool, result.Output, result.Error)},
	}

	completion, err := m.client.Generate(ctx, messages, llm.GenerateOptions{})
	if err != nil {
		return TaskReflection{}, fmt.Errorf("failed to generate reflection: %w", err)
	}

	reflection := parseTaskReflection(completion.Text, result)

	insight := formatSections([]section{
		{"Task: " + result.Task, nil},
		{"Analysis: " + reflection.Analysis, nil},
		{"Lessons Learned:", reflection.LessonsLearned},
		{"Improvement Suggestions:", reflection.ImprovementSuggestions},
	})
	if _, err := m.memory.AppendInsight(ctx, insight, result.Task); err != nil {
		return reflection, fmt.Errorf("failed to store insight: %w", err)
	}

	logging.Reflection("Reflection generated for task: %s", result.Task)
	return reflection, nil
}

func parseTaskReflection(content string, result types.TaskResult) TaskReflection {
	obj := llm.ExtractJSON(content)
	if obj == nil {
		logging.Reflection("Failed to parse reflection for task: %s", result.Task)
		return TaskReflection{
			Success:  result.Succeeded(),
			Analysis: "Failed to generate reflection",
		}
	}
	return TaskReflection{
		Success:                llm.JSONBool(obj, "success", result.Succeeded()),
		Analysis:               llm.JSONString(obj, "analysis", ""),
		LessonsLearned:         llm.JSONStringSlice(obj, "lessons_learned"),
		ImprovementSuggestions: llm.JSONStringSlice(obj, "improvement_suggestions"),
	}
}

// ReflectOnProgress reviews the plan against the five most recent
// insights and stores the assessment as a progress insight.
func (m *Module) ReflectOnProgress(ctx context.Context, plan string) (ProgressReflection, error) {
	logging.Reflection("Reflecting on overall progress")

	insights, err := m.memory.GetRecentInsights(5)
	if err != nil {
		return ProgressReflection{}, err
	}
	var texts []string
	for _, insight := range insights {
		texts = append(texts, insight.Content)
	}

	messages := []types.PromptMessage{
		{Role: types.RoleSystem, Content: progressReflectionPrompt},
		{Role: types.RoleUser, Content: fmt.Sprintf(
			"Current Plan:\n\n%s\n\nRecent Insights:\n\n%s",
			plan, strings.Join(texts, "\n\n"))},
	}

	completion, err := m.client.Generate(ctx, messages, llm.GenerateOptions{})
	if err != nil {
		return ProgressReflection{}, fmt.Errorf("failed to generate progress reflection: %w", err)
	}

	reflection := parseProgressReflection(completion.Text)

	if _, err := m.memory.AppendInsight(ctx, reflection.Summary(), "progress_reflection"); err != nil {
		return reflection, fmt.Errorf("failed to store insight: %w", err)
	}

	logging.Reflection("Progress reflection generated")
	return reflection, nil
}

func parseProgressReflection(content string) ProgressReflection {
	obj := llm.ExtractJSON(content)
	if obj == nil {
		logging.Reflection("Failed to parse progress reflection")
		return ProgressReflection{ProgressAssessment: "Failed to generate reflection"}
	}
	return ProgressReflection{
		ProgressAssessment:  llm.JSONString(obj, "progress_assessment", ""),
		PatternsIdentified:  llm.JSONStringSlice(obj, "patterns_identified"),
		Strengths:           llm.JSONStringSlice(obj, "strengths"),
		Challenges:          llm.JSONStringSlice(obj, "challenges"),
		StrategyAdjustments: llm.JSONStringSlice(obj, "strategy_adjustments"),
	}
}

type section struct {
	heading string
	items   []string
}

func formatSections(sections []section) string {
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s.heading)
		for _, item := range s.items {
			b.WriteString("\n- ")
			b.WriteString(item)
		}
	}
	return b.String()
}
