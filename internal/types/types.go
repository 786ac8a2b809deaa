// Package types defines the shared data model for the Autobot runtime:
// agent states, queued work items, log records, memory entries, and the
// structures exchanged with the completion capability.
package types

import (
	"time"
)

// =============================================================================
// AGENT STATE
// =============================================================================

// AgentState is the orchestrator's control-loop state. Exactly one value is
// active at a time and only the loop goroutine mutates it.
type AgentState string

const (
	StateIdle           AgentState = "idle"
	StatePlanning       AgentState = "planning"
	StateExecuting      AgentState = "executing"
	StateReflecting     AgentState = "reflecting"
	StateWaitingForUser AgentState = "waiting_for_user"
	StateShutdown       AgentState = "shutdown"
)

// Valid reports whether s is one of the six defined states.
func (s AgentState) Valid() bool {
	switch s {
	case StateIdle, StatePlanning, StateExecuting, StateReflecting, StateWaitingForUser, StateShutdown:
		return true
	}
	return false
}

// =============================================================================
// MESSAGE QUEUES
// =============================================================================

// MessageKind routes an inbound message to one of the two queues.
type MessageKind string

const (
	KindUserChat MessageKind = "user_chat"
	KindTaskLog  MessageKind = "task_log"
)

// WorkItem is a queued message awaiting a loop tick. ID is the log-store id
// assigned when the message was durably recorded.
type WorkItem struct {
	ID         int64
	Content    string
	Sender     string
	EnqueuedAt time.Time
}

// WorkLogEntry is one line of task-AI narration held in the in-memory ring.
// Advisory only; lost on restart.
type WorkLogEntry struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// =============================================================================
// LOG STORE RECORDS
// =============================================================================

// ChatMessage is a row from the messages table, most recent first when read
// from the store, returned to callers in chronological order.
type ChatMessage struct {
	ID        int64             `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Sender    string            `json:"sender"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ExecutionLog is a row from the execution_logs table. Structured, not prose:
// it is never indexed for semantic retrieval.
type ExecutionLog struct {
	ID        int64             `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	TaskID    string            `json:"task_id,omitempty"`
	Tool      string            `json:"tool"`
	Params    map[string]string `json:"params,omitempty"`
	Status    string            `json:"status"`
	Output    string            `json:"output,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Insight is a row from the insights table: a reflection the agent stored
// about a task or about overall progress.
type Insight struct {
	ID        int64             `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	TaskID    string            `json:"task_id,omitempty"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// =============================================================================
// SEMANTIC INDEX
// =============================================================================

// Partition names one of the four provenance classes in the semantic index.
// The set is closed: adding a partition means updating every switch over it.
type Partition string

const (
	PartitionFiles    Partition = "files"
	PartitionChat     Partition = "chat"
	PartitionWeb      Partition = "web"
	PartitionInsights Partition = "insights"
)

// Partitions lists all four partitions in search order.
func Partitions() []Partition {
	return []Partition{PartitionFiles, PartitionChat, PartitionWeb, PartitionInsights}
}

// Valid reports whether p is one of the four defined partitions.
func (p Partition) Valid() bool {
	switch p {
	case PartitionFiles, PartitionChat, PartitionWeb, PartitionInsights:
		return true
	}
	return false
}

// MemoryEntry is one indexed document in a partition.
type MemoryEntry struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Partition Partition         `json:"partition"`
}

// SearchResult is a MemoryEntry ranked by distance. Lower distance means
// more similar.
type SearchResult struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Partition Partition         `json:"partition"`
	Distance  float64           `json:"distance"`
}

// =============================================================================
// COMPLETION CAPABILITY
// =============================================================================

// Role is a prompt message role in the chat-completion convention.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PromptMessage is one turn in an assembled prompt.
type PromptMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// EXECUTION CAPABILITY
// =============================================================================

// TaskStatus is the outcome class of a task execution.
type TaskStatus string

const (
	TaskSuccess TaskStatus = "success"
	TaskError   TaskStatus = "error"
)

// TaskResult is the outcome of one Executing-state entry.
type TaskResult struct {
	Task          string            `json:"task"`
	Tool          string            `json:"tool,omitempty"`
	Status        TaskStatus        `json:"status"`
	Output        string            `json:"output,omitempty"`
	Error         string            `json:"error,omitempty"`
	ExecutionTime time.Duration     `json:"execution_time,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Succeeded reports whether the task ran to completion.
func (r TaskResult) Succeeded() bool {
	return r.Status == TaskSuccess
}

// AgentStatus is an immutable snapshot of the orchestrator, safe to hand to
// external readers.
type AgentStatus struct {
	State       AgentState `json:"state"`
	CurrentTask string     `json:"current_task,omitempty"`
	ProjectName string     `json:"project"`
	Goal        string     `json:"goal"`
}
