package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"autobot/internal/llm"
	"autobot/internal/logging"
	"autobot/internal/memory"
	"autobot/internal/types"
)

const toolSelectionPrompt = "You are an AI assistant that helps determine the best tool to use for a given task. " +
	"You will be given a task description and a list of available tools. " +
	"Your job is to select the most appropriate tool and specify the parameters to use with it. " +
	"Respond in JSON format with the following structure:\n" +
	"{\n" +
	"  \"tool\": \"tool_name\",\n" +
	"  \"params\": {\n" +
	"    \"param1\": \"value1\",\n" +
	"    \"param2\": \"value2\"\n" +
	"  },\n" +
	"  \"reasoning\": \"Brief explanation of why this tool was chosen\"\n" +
	"}\n\n" +
	"Available tools:\n"

// Engine executes plan tasks. It selects a tool through the completion
// client, runs it and records the outcome in the execution log.
type Engine struct {
	client   llm.Client
	registry *Registry
	memory   *memory.Manager
}

// NewEngine returns an execution engine over the given tool registry.
func NewEngine(client llm.Client, registry *Registry, mem *memory.Manager) *Engine {
	return &Engine{
		client:   client,
		registry: registry,
		memory:   mem,
	}
}

// Registry returns the engine's tool registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// ExecuteTask runs one task end to end. The returned result always
// carries a terminal status; tool failures come back as TaskError, never
// as an error return. Errors are reserved for context cancellation.
func (e *Engine) ExecuteTask(ctx context.Context, task string) (types.TaskResult, error) {
	runID := "exec_" + uuid.New().String()[:8]
	logging.Execution("[%s] Executing task: %s", runID, task)

	toolName, params, reasoning, err := e.selectTool(ctx, task)
	if err != nil {
		if ctx.Err() != nil {
			return types.TaskResult{}, ctx.Err()
		}
		result := types.TaskResult{
			Task:   task,
			Status: types.TaskError,
			Error:  fmt.Sprintf("tool selection failed: %v", err),
		}
		e.record(result, params, runID)
		return result, nil
	}

	tool := e.registry.Get(toolName)
	if tool == nil {
		result := types.TaskResult{
			Task:   task,
			Tool:   toolName,
			Status: types.TaskError,
			Error:  fmt.Sprintf("no suitable tool found for task: %s", task),
		}
		logging.Execution("No suitable tool found for task: %s (selected %q)", task, toolName)
		e.record(result, params, runID)
		return result, nil
	}

	logging.ExecutionDebug("Selected tool %s for task %q: %s", toolName, task, reasoning)

	start := time.Now()
	output, execErr := tool.Execute(ctx, params)
	elapsed := time.Since(start)

	result := types.TaskResult{
		Task:          task,
		Tool:          toolName,
		Output:        output,
		ExecutionTime: elapsed,
	}
	if execErr != nil {
		result.Status = types.TaskError
		result.Error = execErr.Error()
	} else {
		result.Status = types.TaskSuccess
	}

	e.record(result, params, runID)
	logging.Execution("[%s] Task executed: %s (tool=%s status=%s in %s)", runID, task, toolName, result.Status, elapsed)

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, nil
}

// selectTool asks the model which tool and params fit the task.
func (e *Engine) selectTool(ctx context.Context, task string) (tool string, params map[string]string, reasoning string, err error) {
	messages := []types.PromptMessage{
		{Role: types.RoleSystem, Content: toolSelectionPrompt + e.registry.Describe()},
		{Role: types.RoleUser, Content: "Task: " + task},
	}

	completion, err := e.client.Generate(ctx, messages, llm.GenerateOptions{})
	if err != nil {
		return "", nil, "", err
	}

	selection := llm.ExtractJSON(completion.Text)
	if selection == nil {
		return "", nil, "", fmt.Errorf("no JSON in tool selection response")
	}
	tool = llm.JSONString(selection, "tool", "")
	if tool == "" {
		return "", nil, "", fmt.Errorf("tool selection response missing tool name")
	}
	return tool, llm.JSONStringMap(selection, "params"), llm.JSONString(selection, "reasoning", ""), nil
}

// record appends the outcome to the execution log. Logging failures do
// not affect the task result.
func (e *Engine) record(result types.TaskResult, params map[string]string, runID string) {
	output := result.Output
	if result.Error != "" {
		output = result.Error
	}
	metadata := map[string]string{
		"run_id":         runID,
		"execution_time": result.ExecutionTime.String(),
	}
	if _, err := e.memory.AppendExecutionLog(result.Tool, params, string(result.Status), output, result.Task, metadata); err != nil {
		logging.Execution("Failed to record execution log: %v", err)
	}
}
