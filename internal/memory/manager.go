// Package memory is the agent's context layer. It combines the append-only
// SQLite log with the partitioned vector index and assembles prompts from
// the plan, recent chat and semantic search results.
//
// Durability rule: log appends commit before indexing. A failed embedding
// or index write never loses the logged record.
package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"autobot/internal/embedding"
	"autobot/internal/logging"
	"autobot/internal/plan"
	"autobot/internal/store"
	"autobot/internal/types"
)

// Manager ties the log store, the vector index and the plan together for
// one project.
type Manager struct {
	store       *store.Store
	engine      embedding.Engine
	plan        *plan.Store
	projectPath string
}

// NewManager returns a memory manager for the project rooted at
// projectPath.
func NewManager(st *store.Store, engine embedding.Engine, planStore *plan.Store, projectPath string) *Manager {
	return &Manager{
		store:       st,
		engine:      engine,
		plan:        planStore,
		projectPath: projectPath,
	}
}

// AppendMessage records a chat message in the log and indexes it into the
// chat partition under the log-assigned id. The message is durable once
// the log append commits; an indexing failure is logged and the id is
// still returned.
func (m *Manager) AppendMessage(ctx context.Context, sender, content string, metadata map[string]string) (int64, error) {
	id, err := m.store.AppendMessage(sender, content, metadata)
	if err != nil {
		return 0, err
	}

	entryMeta := map[string]string{
		"sender":    sender,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	for k, v := range metadata {
		entryMeta[k] = v
	}
	m.index(ctx, types.PartitionChat, strconv.FormatInt(id, 10), content, entryMeta)

	return id, nil
}

// GetMessages returns the most recent chat messages in chronological
// order.
func (m *Manager) GetMessages(limit int) ([]types.ChatMessage, error) {
	return m.store.GetMessages(limit, 0)
}

// AppendExecutionLog records a tool execution. Execution logs are not
// indexed for search.
func (m *Manager) AppendExecutionLog(tool string, params map[string]string, status, output, taskID string, metadata map[string]string) (int64, error) {
	return m.store.AppendExecutionLog(tool, params, status, output, taskID, metadata)
}

// GetExecutionLogs returns the most recent tool executions in
// chronological order.
func (m *Manager) GetExecutionLogs(limit int) ([]types.ExecutionLog, error) {
	return m.store.GetExecutionLogs(limit)
}

// AppendInsight records a reflection insight in the log and indexes it
// into the insights partition.
func (m *Manager) AppendInsight(ctx context.Context, content, taskID string) (int64, error) {
	id, err := m.store.AppendInsight(content, taskID, nil)
	if err != nil {
		return 0, err
	}

	m.index(ctx, types.PartitionInsights, strconv.FormatInt(id, 10), content, map[string]string{
		"task_id":   taskID,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	return id, nil
}

// GetRecentInsights returns the newest insights first.
func (m *Manager) GetRecentInsights(limit int) ([]types.Insight, error) {
	return m.store.GetRecentInsights(limit)
}

// AddFileToMemory indexes a file into the files partition, keyed by its
// path relative to the project root. Re-adding the same file replaces the
// previous entry. When content is empty the file is read from disk.
func (m *Manager) AddFileToMemory(ctx context.Context, filePath, content string) error {
	if content == "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
		content = string(data)
	}

	relPath := filePath
	if rel, err := filepath.Rel(m.projectPath, filePath); err == nil && !strings.HasPrefix(rel, "..") {
		relPath = rel
	}

	return m.indexErr(ctx, types.PartitionFiles, relPath, content, map[string]string{
		"path":      relPath,
		"timestamp": time.Now().Format(time.RFC3339),
		"type":      "file",
	})
}

// AddWebContent indexes fetched web content into the web partition, keyed
// by URL.
func (m *Manager) AddWebContent(ctx context.Context, url, title, content string) error {
	return m.indexErr(ctx, types.PartitionWeb, url, content, map[string]string{
		"url":       url,
		"title":     title,
		"timestamp": time.Now().Format(time.RFC3339),
		"type":      "web",
	})
}

// Search embeds the query once and queries every partition, merging all
// results sorted by ascending distance and truncating to limit. Entries
// from different partitions with similar text are all returned.
func (m *Manager) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if limit <= 0 {
		return nil, nil
	}
	queryEmbedding, err := m.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var all []types.SearchResult
	for _, partition := range types.Partitions() {
		results, err := m.store.QueryPartition(partition, queryEmbedding, limit)
		if err != nil {
			return nil, err
		}
		all = append(all, results...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Distance < all[j].Distance })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// PromptOptions controls which context sections AssemblePrompt includes.
type PromptOptions struct {
	IncludePlan       bool
	IncludeRecentChat bool
	IncludeSearch     bool

	// SearchQuery overrides the user message as the search query.
	SearchQuery string
	SearchLimit int

	RecentChatLimit int
}

// DefaultPromptOptions includes every context section.
func DefaultPromptOptions() PromptOptions {
	return PromptOptions{
		IncludePlan:       true,
		IncludeRecentChat: true,
		IncludeSearch:     true,
		SearchLimit:       5,
		RecentChatLimit:   5,
	}
}

// AssemblePrompt builds the message list for a completion call. Sections
// appear in a fixed order: the system prompt, the current plan, recent
// chat turns, search results, then the user message.
func (m *Manager) AssemblePrompt(ctx context.Context, systemPrompt, userMessage string, opts PromptOptions) ([]types.PromptMessage, error) {
	messages := []types.PromptMessage{
		{Role: types.RoleSystem, Content: systemPrompt},
	}

	if opts.IncludePlan {
		if planContent := m.plan.GetPlan(); planContent != "" {
			messages = append(messages, types.PromptMessage{
				Role:    types.RoleSystem,
				Content: "Current project plan:\n\n" + planContent,
			})
		}
	}

	if opts.IncludeRecentChat {
		limit := opts.RecentChatLimit
		if limit <= 0 {
			limit = 5
		}
		recent, err := m.GetMessages(limit)
		if err != nil {
			return nil, err
		}
		for _, msg := range recent {
			role := types.RoleAssistant
			if msg.Sender == "user" {
				role = types.RoleUser
			}
			messages = append(messages, types.PromptMessage{Role: role, Content: msg.Content})
		}
	}

	if opts.IncludeSearch {
		query := opts.SearchQuery
		if query == "" {
			query = userMessage
		}
		limit := opts.SearchLimit
		if limit <= 0 {
			limit = 5
		}
		results, err := m.Search(ctx, query, limit)
		if err != nil {
			// Search is best effort context, the prompt still works
			// without it.
			logging.Memory("Search failed during prompt assembly: %v", err)
		} else if len(results) > 0 {
			messages = append(messages, types.PromptMessage{
				Role:    types.RoleSystem,
				Content: formatSearchResults(results),
			})
		}
	}

	messages = append(messages, types.PromptMessage{Role: types.RoleUser, Content: userMessage})
	return messages, nil
}

// formatSearchResults renders search hits with partition-specific source
// framing.
func formatSearchResults(results []types.SearchResult) string {
	var b strings.Builder
	b.WriteString("Relevant context from memory:\n\n")
	for _, r := range results {
		switch r.Partition {
		case types.PartitionFiles:
			fmt.Fprintf(&b, "From file %s:\n%s\n\n", metaOr(r.Metadata, "path", "unknown"), r.Text)
		case types.PartitionChat:
			fmt.Fprintf(&b, "From chat (%s):\n%s\n\n", metaOr(r.Metadata, "sender", "unknown"), r.Text)
		case types.PartitionWeb:
			fmt.Fprintf(&b, "From web page %s (%s):\n%s\n\n",
				metaOr(r.Metadata, "title", "unknown"), metaOr(r.Metadata, "url", "unknown"), r.Text)
		case types.PartitionInsights:
			fmt.Fprintf(&b, "From previous insight:\n%s\n\n", r.Text)
		}
	}
	return b.String()
}

func metaOr(metadata map[string]string, key, fallback string) string {
	if v, ok := metadata[key]; ok && v != "" {
		return v
	}
	return fallback
}

// index embeds and upserts, logging failures instead of returning them.
func (m *Manager) index(ctx context.Context, partition types.Partition, id, text string, metadata map[string]string) {
	if err := m.indexErr(ctx, partition, id, text, metadata); err != nil {
		logging.Memory("Failed to index %s entry %s: %v", partition, id, err)
	}
}

func (m *Manager) indexErr(ctx context.Context, partition types.Partition, id, text string, metadata map[string]string) error {
	vec, err := m.engine.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed: %w", err)
	}
	return m.store.UpsertEntry(types.MemoryEntry{
		ID:        id,
		Text:      text,
		Embedding: vec,
		Metadata:  metadata,
		Partition: partition,
	})
}
