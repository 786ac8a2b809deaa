// Package agent contains the orchestrator: the state machine that drives
// planning, execution and reflection for a project while a separate
// user-facing persona answers chat messages.
//
// All runtime state (current AgentState, current task, work log) is owned
// by the loop goroutine. External callers interact through SendMessage and
// the snapshot accessors; the two message queues are the only shared
// mutable structures.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"autobot/internal/config"
	"autobot/internal/exec"
	"autobot/internal/llm"
	"autobot/internal/logging"
	"autobot/internal/memory"
	"autobot/internal/plan"
	"autobot/internal/project"
	"autobot/internal/reflection"
	"autobot/internal/types"
)

const (
	senderUser    = "user"
	senderUserAI  = "user_ai"
	senderTaskAI  = "task_ai"
	senderAutobot = "autobot"
)

// Options collects the orchestrator's collaborators. UserClient answers
// chat, TaskClient drives planning, execution and reflection.
type Options struct {
	Project    *project.Project
	Config     *config.Config
	UserClient llm.Client
	TaskClient llm.Client
	Memory     *memory.Manager
	PlanStore  *plan.Store
	Planner    *plan.Planner
	Engine     *exec.Engine
	Reflector  *reflection.Module
}

// Orchestrator is the agent control loop.
type Orchestrator struct {
	project    *project.Project
	cfg        *config.Config
	userClient llm.Client
	taskClient llm.Client
	memory     *memory.Manager
	planStore  *plan.Store
	planner    *plan.Planner
	engine     *exec.Engine
	reflector  *reflection.Module

	userQueue chan types.WorkItem
	taskQueue chan types.WorkItem
	// wake is signaled after every enqueue so the idle wait returns
	// without polling.
	wake chan struct{}

	// mu guards the snapshot fields below. The loop goroutine is the
	// only writer during Run; readers take copies.
	mu          sync.Mutex
	state       types.AgentState
	currentTask string

	// Loop-private fields, never touched outside the loop goroutine.
	lastResult     *types.TaskResult
	lastReflection string
	completedTasks int

	workMu     sync.Mutex
	workLogs   []types.WorkLogEntry
	workLogCap int

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New wires an orchestrator from its collaborators.
func New(opts Options) *Orchestrator {
	queueCap := opts.Config.Agent.QueueCapacity
	if queueCap <= 0 {
		queueCap = 256
	}
	workLogCap := opts.Config.Agent.WorkLogCapacity
	if workLogCap <= 0 {
		workLogCap = 500
	}

	return &Orchestrator{
		project:    opts.Project,
		cfg:        opts.Config,
		userClient: opts.UserClient,
		taskClient: opts.TaskClient,
		memory:     opts.Memory,
		planStore:  opts.PlanStore,
		planner:    opts.Planner,
		engine:     opts.Engine,
		reflector:  opts.Reflector,
		userQueue:  make(chan types.WorkItem, queueCap),
		taskQueue:  make(chan types.WorkItem, queueCap),
		wake:       make(chan struct{}, 1),
		state:      types.StateIdle,
		workLogCap: workLogCap,
		shutdownCh: make(chan struct{}),
	}
}

// SendMessage records the message durably, then routes it by kind: user
// chat goes to the chat queue, task logs go to the work log ring and the
// task queue. Returns the log id. A full queue is an error; the message
// is still in the log.
func (o *Orchestrator) SendMessage(ctx context.Context, content, sender string, kind types.MessageKind) (int64, error) {
	id, err := o.memory.AppendMessage(ctx, sender, content, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to record message: %w", err)
	}

	item := types.WorkItem{ID: id, Content: content, Sender: sender, EnqueuedAt: time.Now()}

	switch kind {
	case types.KindUserChat:
		if sender == senderUser {
			select {
			case o.userQueue <- item:
			default:
				return id, fmt.Errorf("user queue full, message %d recorded but not queued", id)
			}
			// Only external input interrupts the idle wait. Task-log
			// narration is produced by the loop itself; waking on it
			// would turn the post-tick wait into a busy spin.
			o.signalWake()
		}
	case types.KindTaskLog:
		o.appendWorkLog(item)
		select {
		case o.taskQueue <- item:
		default:
			return id, fmt.Errorf("task queue full, message %d recorded but not queued", id)
		}
	default:
		return id, fmt.Errorf("unknown message kind: %s", kind)
	}

	return id, nil
}

// sendTaskLog emits one line of task-AI narration.
func (o *Orchestrator) sendTaskLog(ctx context.Context, content string) {
	if _, err := o.SendMessage(ctx, content, senderTaskAI, types.KindTaskLog); err != nil {
		logging.Orchestrator("Failed to send task log: %v", err)
	}
}

// sendChat emits an agent-authored message to the user chat.
func (o *Orchestrator) sendChat(ctx context.Context, content, sender string) {
	if _, err := o.SendMessage(ctx, content, sender, types.KindUserChat); err != nil {
		logging.Orchestrator("Failed to send chat message: %v", err)
	}
}

// GetStatus returns an immutable snapshot of the loop state.
func (o *Orchestrator) GetStatus() types.AgentStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return types.AgentStatus{
		State:       o.state,
		CurrentTask: o.currentTask,
		ProjectName: o.project.Name,
		Goal:        o.project.Goal,
	}
}

// GetWorkLogs returns up to limit of the most recent narration entries,
// oldest first.
func (o *Orchestrator) GetWorkLogs(limit int) []types.WorkLogEntry {
	o.workMu.Lock()
	defer o.workMu.Unlock()

	logs := o.workLogs
	if limit > 0 && len(logs) > limit {
		logs = logs[len(logs)-limit:]
	}
	out := make([]types.WorkLogEntry, len(logs))
	copy(out, logs)
	return out
}

// GetCurrentPlan returns the plan document verbatim.
func (o *Orchestrator) GetCurrentPlan() string {
	return o.planStore.GetPlan()
}

// UpdatePlan replaces the plan document.
func (o *Orchestrator) UpdatePlan(content string) error {
	return o.planStore.ReplacePlan(content)
}

// Shutdown moves the agent to the terminal state. Idempotent; Run returns
// within one tick.
func (o *Orchestrator) Shutdown() {
	o.shutdownOnce.Do(func() {
		logging.Orchestrator("Shutting down agent")
		close(o.shutdownCh)
	})
}

// Run drives the control loop until Shutdown or context cancellation. A
// failed tick logs, forces the state back to Idle and backs off; it never
// terminates the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	logging.Orchestrator("Starting agent loop for project: %s", o.project.Name)

	// Seed the plan before the first tick so Idle has something to scan.
	if strings.TrimSpace(o.planStore.GetPlan()) == "" {
		o.setState(types.StatePlanning)
		logging.Orchestrator("Creating initial plan")
		if _, err := o.planner.CreateInitialPlan(ctx); err != nil {
			logging.Orchestrator("Initial plan creation failed: %v", err)
		}
		o.setState(types.StateIdle)
	}

	for {
		if o.stopped(ctx) {
			o.setState(types.StateShutdown)
			logging.Orchestrator("Agent loop stopped")
			return ctx.Err()
		}

		if err := o.safeTick(ctx); err != nil {
			logging.Orchestrator("Error in agent loop: %v", err)
			o.setState(types.StateIdle)
			o.wait(ctx, o.cfg.GetErrorBackoff())
			continue
		}

		o.wait(ctx, o.cfg.GetIdleWait())
	}
}

// safeTick runs one tick, converting panics into errors.
func (o *Orchestrator) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	return o.tick(ctx)
}

func (o *Orchestrator) tick(ctx context.Context) error {
	o.drainQueues(ctx)

	switch o.getState() {
	case types.StateIdle:
		return o.handleIdle(ctx)
	case types.StatePlanning:
		return o.handlePlanning(ctx)
	case types.StateExecuting:
		return o.handleExecuting(ctx)
	case types.StateReflecting:
		return o.handleReflecting(ctx)
	case types.StateWaitingForUser:
		// Nothing to do; the post-tick wait blocks until a message
		// arrives or shutdown.
		return nil
	case types.StateShutdown:
		return nil
	}
	return nil
}

// drainQueues consumes at most the items present at tick start, so a
// producer cannot starve the state handlers.
func (o *Orchestrator) drainQueues(ctx context.Context) {
	for n := len(o.userQueue); n > 0; n-- {
		select {
		case item := <-o.userQueue:
			o.handleUserMessage(ctx, item)
		default:
			return
		}
	}
	for n := len(o.taskQueue); n > 0; n-- {
		select {
		case item := <-o.taskQueue:
			logging.OrchestratorDebug("Processed task message %d", item.ID)
		default:
			return
		}
	}
}

func (o *Orchestrator) handleUserMessage(ctx context.Context, item types.WorkItem) {
	logging.Orchestrator("Processing user chat message: %s", item.Content)

	if strings.HasPrefix(item.Content, "/") {
		o.handleCommand(ctx, item.Content)
		return
	}

	// A plain chat message while paused resumes the loop.
	if o.getState() == types.StateWaitingForUser {
		o.setState(types.StateIdle)
	}
	o.generateUserResponse(ctx, item.Content)
}

// handleCommand dispatches a slash command. The table is closed; anything
// else gets an unknown-command reply.
func (o *Orchestrator) handleCommand(ctx context.Context, command string) {
	cmd := strings.ToLower(strings.TrimSpace(command))

	switch {
	case cmd == "/stop" || cmd == "/pause":
		logging.Orchestrator("Pausing agent")
		o.setState(types.StateWaitingForUser)
		o.sendChat(ctx, "Agent paused. Click Resume to continue.", senderAutobot)
		o.sendTaskLog(ctx, "Agent paused by user. Waiting for resume command.")

	case cmd == "/resume":
		logging.Orchestrator("Resuming agent")
		o.setState(types.StateIdle)
		o.sendChat(ctx, "Agent resumed. Continuing execution.", senderAutobot)
		o.sendTaskLog(ctx, "Agent resumed by user. Continuing execution.")

	case cmd == "/status":
		status := o.GetStatus()
		o.sendChat(ctx, fmt.Sprintf(
			"Current status: state=%s task=%q project=%s goal=%s",
			status.State, status.CurrentTask, status.ProjectName, status.Goal), senderAutobot)

	case cmd == "/plan":
		o.sendChat(ctx, "Current plan:\n\n"+o.planStore.GetPlan(), senderAutobot)

	case strings.HasPrefix(cmd, "/task "):
		task := strings.TrimSpace(command[len("/task "):])
		o.setCurrentTask(task)
		o.setState(types.StateExecuting)
		logging.Orchestrator("Executing injected task: %s", task)
		o.sendChat(ctx, "Executing task: "+task, senderAutobot)

	case cmd == "/reflect":
		o.setState(types.StateReflecting)
		o.sendChat(ctx, "Reflecting on progress...", senderAutobot)

	case cmd == "/help":
		o.sendChat(ctx, "Available commands:\n"+
			"/status - Get current agent status\n"+
			"/plan - View current plan\n"+
			"/task <task> - Execute a specific task\n"+
			"/reflect - Reflect on progress\n"+
			"/stop or /pause - Pause the agent\n"+
			"/resume - Resume the agent\n"+
			"/help - Show this help message", senderAutobot)

	default:
		o.sendChat(ctx, fmt.Sprintf("Unknown command: %s. Type /help for available commands.", command), senderAutobot)
	}
}

// generateUserResponse answers a chat message with the user persona.
func (o *Orchestrator) generateUserResponse(ctx context.Context, userMessage string) {
	opts := memory.DefaultPromptOptions()
	opts.SearchLimit = o.cfg.Agent.SearchLimit
	opts.RecentChatLimit = o.cfg.Agent.RecentChatLimit

	messages, err := o.memory.AssemblePrompt(ctx, fmt.Sprintf(
		"You are Autobot's user interaction AI. You are designed to help users by providing friendly and helpful responses. "+
			"You are currently working on the project '%s' with the goal: '%s'. "+
			"Your job is to communicate with the user while the background task AI handles the actual work. "+
			"Provide a helpful response to the user's message.",
		o.project.Name, o.project.Goal), userMessage, opts)
	if err != nil {
		logging.Orchestrator("Failed to assemble user prompt: %v", err)
		return
	}

	completion, err := o.userClient.Generate(ctx, messages, llm.GenerateOptions{})
	if err != nil {
		logging.Orchestrator("Failed to generate user response: %v", err)
		o.sendChat(ctx, "I hit an error answering that, please try again.", senderUserAI)
		return
	}
	o.sendChat(ctx, completion.Text, senderUserAI)
}

func (o *Orchestrator) handleIdle(ctx context.Context) error {
	o.sendTaskLog(ctx, "Checking for the next task to execute...")

	if task, ok := o.planStore.NextPendingTask(); ok {
		o.setCurrentTask(task)
		o.setState(types.StateExecuting)
		logging.Orchestrator("Moving to executing state with task: %s", task)
		o.sendTaskLog(ctx, "Found next task to execute: "+task)
		return nil
	}

	o.setState(types.StatePlanning)
	logging.Orchestrator("No pending tasks, moving to planning state")
	o.sendTaskLog(ctx, "No tasks found in the current plan. Moving to planning state to create or refine the plan.")
	return nil
}

func (o *Orchestrator) handlePlanning(ctx context.Context) error {
	o.sendTaskLog(ctx, "Planning the next steps for the project...")

	if o.lastReflection != "" {
		o.sendTaskLog(ctx, "Refining plan based on previous reflection.")
		if _, err := o.planner.RefinePlan(ctx, o.lastReflection); err != nil {
			return fmt.Errorf("plan refinement failed: %w", err)
		}
		o.lastReflection = ""
	} else if strings.TrimSpace(o.planStore.GetPlan()) == "" {
		o.sendTaskLog(ctx, "Creating initial plan for the project...")
		if _, err := o.planner.CreateInitialPlan(ctx); err != nil {
			return fmt.Errorf("initial plan creation failed: %w", err)
		}
	} else {
		o.sendTaskLog(ctx, "Reviewing and updating the current plan...")
	}

	o.setState(types.StateIdle)
	o.sendTaskLog(ctx, "Planning complete. Moving to idle state to select the next task.")
	return nil
}

func (o *Orchestrator) handleExecuting(ctx context.Context) error {
	task := o.getCurrentTask()
	if task == "" {
		o.setState(types.StateIdle)
		o.sendTaskLog(ctx, "No current task to execute. Moving to idle state.")
		return nil
	}

	o.sendTaskLog(ctx, "Starting execution of task: "+task)

	result, err := o.engine.ExecuteTask(ctx, task)
	if err != nil {
		return fmt.Errorf("task execution aborted: %w", err)
	}
	o.lastResult = &result

	if result.Succeeded() {
		o.sendTaskLog(ctx, fmt.Sprintf("Task completed successfully: %s\n\nOutput:\n%s", task, result.Output))
		o.sendChat(ctx, fmt.Sprintf("Task completed: %s\n\nOutput:\n%s", task, result.Output), senderTaskAI)
		if !o.planStore.MarkComplete(task) {
			logging.Orchestrator("Plan drifted, could not mark task complete: %s", task)
		}
	} else {
		o.sendTaskLog(ctx, fmt.Sprintf("Task failed: %s\n\nError: %s", task, result.Error))
		o.sendChat(ctx, fmt.Sprintf("Task failed: %s\n\nError: %s", task, result.Error), senderTaskAI)
		if !o.planStore.MarkFailed(task) {
			logging.Orchestrator("Plan drifted, could not mark task failed: %s", task)
		}
	}

	o.setState(types.StateReflecting)
	o.sendTaskLog(ctx, fmt.Sprintf("Task execution complete with status: %s. Moving to reflection state to analyze results.", result.Status))
	return nil
}

func (o *Orchestrator) handleReflecting(ctx context.Context) error {
	o.sendTaskLog(ctx, "Reflecting on the completed task and overall progress...")

	if o.lastResult != nil {
		result := *o.lastResult
		o.sendTaskLog(ctx, "Analyzing results of task: "+result.Task)

		taskReflection, err := o.reflector.ReflectOnTask(ctx, result)
		if err != nil {
			return fmt.Errorf("task reflection failed: %w", err)
		}
		o.lastReflection = taskReflection.Summary()
		o.sendTaskLog(ctx, "Task reflection:\n\n"+o.lastReflection)

		o.completedTasks++
		cadence := o.cfg.Agent.ReflectionCadence
		if cadence > 0 && o.completedTasks%cadence == 0 {
			o.sendTaskLog(ctx, "Performing overall progress reflection...")
			progress, err := o.reflector.ReflectOnProgress(ctx, o.planStore.GetPlan())
			if err != nil {
				return fmt.Errorf("progress reflection failed: %w", err)
			}
			o.sendTaskLog(ctx, "Progress Reflection:\n\n"+progress.ProgressAssessment)
			o.sendChat(ctx, "Progress Reflection:\n\n"+progress.ProgressAssessment, senderTaskAI)
		}
	}

	o.setCurrentTask("")
	o.lastResult = nil
	o.setState(types.StatePlanning)
	o.sendTaskLog(ctx, "Reflection complete. Moving to planning state to update the plan based on insights.")
	return nil
}

// wait blocks until a message arrives, the timeout expires, or shutdown.
func (o *Orchestrator) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = 100 * time.Millisecond
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-o.shutdownCh:
	case <-ctx.Done():
	case <-o.wake:
	case <-timer.C:
	}
}

func (o *Orchestrator) stopped(ctx context.Context) bool {
	select {
	case <-o.shutdownCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (o *Orchestrator) signalWake() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) appendWorkLog(item types.WorkItem) {
	o.workMu.Lock()
	defer o.workMu.Unlock()

	o.workLogs = append(o.workLogs, types.WorkLogEntry{
		ID:        item.ID,
		Content:   item.Content,
		Sender:    item.Sender,
		Timestamp: item.EnqueuedAt,
	})
	if len(o.workLogs) > o.workLogCap {
		o.workLogs = o.workLogs[len(o.workLogs)-o.workLogCap:]
	}
}

func (o *Orchestrator) getState() types.AgentState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s types.AgentState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

func (o *Orchestrator) getCurrentTask() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentTask
}

func (o *Orchestrator) setCurrentTask(task string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.currentTask = task
}
