package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"autobot/internal/logging"
	"autobot/internal/types"
)

// =============================================================================
// APPEND-ONLY LOG TABLES
// =============================================================================

// AppendMessage records a chat message and returns its store-assigned id.
func (s *Store) AppendMessage(sender, content string, metadata map[string]string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timestamp := time.Now().Format(time.RFC3339Nano)
	metaJSON := marshalMetadata(metadata)

	result, err := s.db.Exec(
		"INSERT INTO messages (timestamp, sender, content, metadata) VALUES (?, ?, ?, ?)",
		timestamp, sender, content, metaJSON,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to append message: %v", err)
		return 0, fmt.Errorf("failed to append message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read message id: %w", err)
	}

	logging.StoreDebug("Appended message id=%d sender=%s", id, sender)
	return id, nil
}

// GetMessages returns messages in chronological order. Limit and offset
// select from the most recent backwards, so offset 0 always includes the
// latest message.
func (s *Store) GetMessages(limit, offset int) ([]types.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(
		"SELECT id, timestamp, sender, content, metadata FROM messages ORDER BY id DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []types.ChatMessage
	for rows.Next() {
		var msg types.ChatMessage
		var ts string
		var metaJSON sql.NullString
		if err := rows.Scan(&msg.ID, &ts, &msg.Sender, &msg.Content, &metaJSON); err != nil {
			logging.StoreDebug("Skipping unreadable message row: %v", err)
			continue
		}
		msg.Timestamp = parseTimestamp(ts)
		msg.Metadata = unmarshalMetadata(metaJSON)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	// Reverse to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// AppendExecutionLog records a structured execution record. Execution logs
// are never indexed for semantic search.
func (s *Store) AppendExecutionLog(tool string, params map[string]string, status, output, taskID string, metadata map[string]string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timestamp := time.Now().Format(time.RFC3339Nano)
	paramsJSON := marshalMetadata(params)
	metaJSON := marshalMetadata(metadata)

	result, err := s.db.Exec(
		"INSERT INTO execution_logs (timestamp, task_id, tool, params, status, output, metadata) VALUES (?, ?, ?, ?, ?, ?, ?)",
		timestamp, taskID, tool, paramsJSON, status, output, metaJSON,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to append execution log: %v", err)
		return 0, fmt.Errorf("failed to append execution log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read execution log id: %w", err)
	}

	logging.StoreDebug("Appended execution log id=%d tool=%s status=%s", id, tool, status)
	return id, nil
}

// GetExecutionLogs returns the most recent execution records in
// chronological order.
func (s *Store) GetExecutionLogs(limit int) ([]types.ExecutionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(
		"SELECT id, timestamp, task_id, tool, params, status, output, metadata FROM execution_logs ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}
	defer rows.Close()

	var logs []types.ExecutionLog
	for rows.Next() {
		var entry types.ExecutionLog
		var ts string
		var taskID, paramsJSON, output, metaJSON sql.NullString
		if err := rows.Scan(&entry.ID, &ts, &taskID, &entry.Tool, &paramsJSON, &entry.Status, &output, &metaJSON); err != nil {
			continue
		}
		entry.Timestamp = parseTimestamp(ts)
		entry.TaskID = taskID.String
		entry.Output = output.String
		entry.Params = unmarshalMetadata(paramsJSON)
		entry.Metadata = unmarshalMetadata(metaJSON)
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read execution logs: %w", err)
	}

	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}

	return logs, nil
}

// AppendInsight records a reflection insight and returns its id.
func (s *Store) AppendInsight(content, taskID string, metadata map[string]string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timestamp := time.Now().Format(time.RFC3339Nano)
	metaJSON := marshalMetadata(metadata)

	result, err := s.db.Exec(
		"INSERT INTO insights (timestamp, task_id, content, metadata) VALUES (?, ?, ?, ?)",
		timestamp, taskID, content, metaJSON,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to append insight: %v", err)
		return 0, fmt.Errorf("failed to append insight: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read insight id: %w", err)
	}

	logging.StoreDebug("Appended insight id=%d task=%s", id, taskID)
	return id, nil
}

// GetRecentInsights returns the most recent insights, newest first. Progress
// reflection feeds these straight into its prompt.
func (s *Store) GetRecentInsights(limit int) ([]types.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.Query(
		"SELECT id, timestamp, task_id, content, metadata FROM insights ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer rows.Close()

	var insights []types.Insight
	for rows.Next() {
		var ins types.Insight
		var ts string
		var taskID, metaJSON sql.NullString
		if err := rows.Scan(&ins.ID, &ts, &taskID, &ins.Content, &metaJSON); err != nil {
			continue
		}
		ins.Timestamp = parseTimestamp(ts)
		ins.TaskID = taskID.String
		ins.Metadata = unmarshalMetadata(metaJSON)
		insights = append(insights, ins)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read insights: %w", err)
	}

	return insights, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func marshalMetadata(metadata map[string]string) string {
	if len(metadata) == 0 {
		return "{}"
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func unmarshalMetadata(raw sql.NullString) map[string]string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(raw.String), &metadata); err != nil {
		return nil
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func parseTimestamp(ts string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}
