package store

import (
	"path/filepath"
	"testing"

	"autobot/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "autobot.sqlite"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	for _, table := range []string{"messages", "execution_logs", "insights", "memory_entries"} {
		if _, ok := stats[table]; !ok {
			t.Errorf("Stats missing table: %s", table)
		}
	}
}

func TestQueryPartition_VecPathFallsBack(t *testing.T) {
	s := newTestStore(t)

	for _, e := range []types.MemoryEntry{
		{ID: "1", Text: "near", Embedding: []float32{1, 0, 0}, Partition: types.PartitionChat},
		{ID: "2", Text: "far", Embedding: []float32{0, 1, 0}, Partition: types.PartitionChat},
	} {
		if err := s.UpsertEntry(e); err != nil {
			t.Fatal(err)
		}
	}

	// Force the vec query path. Without the extension loaded the SQL
	// distance function is unknown, so the query must degrade to the
	// cosine scan and still rank correctly.
	s.vectorExt = true
	results, err := s.QueryPartition(types.PartitionChat, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("QueryPartition failed: %v", err)
	}
	if len(results) != 2 || results[0].ID != "1" {
		t.Errorf("fallback ranking wrong: %+v", results)
	}
}

func TestAppendMessage_MonotonicIDs(t *testing.T) {
	s := newTestStore(t)

	var last int64
	for i := 0; i < 5; i++ {
		id, err := s.AppendMessage("user", "hello", nil)
		if err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
		if id <= last {
			t.Errorf("id %d not greater than previous %d", id, last)
		}
		last = id
	}
}

func TestGetMessages_ChronologicalOrder(t *testing.T) {
	s := newTestStore(t)

	for _, content := range []string{"first", "second", "third"} {
		if _, err := s.AppendMessage("user", content, map[string]string{"k": "v"}); err != nil {
			t.Fatal(err)
		}
	}

	messages, err := s.GetMessages(2, 0)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}

	// Limit 2 selects the most recent two, returned oldest first.
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Content != "second" || messages[1].Content != "third" {
		t.Errorf("wrong order: %q, %q", messages[0].Content, messages[1].Content)
	}
	if messages[0].Metadata["k"] != "v" {
		t.Errorf("metadata lost: %v", messages[0].Metadata)
	}
	if messages[0].Timestamp.IsZero() {
		t.Error("timestamp not parsed")
	}

	// Offset pages backwards from the most recent.
	older, err := s.GetMessages(2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(older) != 1 || older[0].Content != "first" {
		t.Errorf("offset page wrong: %+v", older)
	}
}

func TestAppendExecutionLog(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AppendExecutionLog("cli", map[string]string{"command": "ls"}, "success", "README.md", "list files", nil)
	if err != nil {
		t.Fatalf("AppendExecutionLog failed: %v", err)
	}
	if id <= 0 {
		t.Errorf("bad id %d", id)
	}

	logs, err := s.GetExecutionLogs(10)
	if err != nil {
		t.Fatalf("GetExecutionLogs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	got := logs[0]
	if got.Tool != "cli" || got.Status != "success" || got.TaskID != "list files" {
		t.Errorf("unexpected log: %+v", got)
	}
	if got.Params["command"] != "ls" {
		t.Errorf("params lost: %v", got.Params)
	}
}

func TestAppendInsight_GetRecentInsights(t *testing.T) {
	s := newTestStore(t)

	for _, content := range []string{"insight a", "insight b", "insight c"} {
		if _, err := s.AppendInsight(content, "task-1", nil); err != nil {
			t.Fatal(err)
		}
	}

	insights, err := s.GetRecentInsights(2)
	if err != nil {
		t.Fatalf("GetRecentInsights failed: %v", err)
	}
	if len(insights) != 2 {
		t.Fatalf("expected 2 insights, got %d", len(insights))
	}
	// Newest first.
	if insights[0].Content != "insight c" || insights[1].Content != "insight b" {
		t.Errorf("wrong order: %q, %q", insights[0].Content, insights[1].Content)
	}
}

func TestUpsertQueryEntry(t *testing.T) {
	s := newTestStore(t)

	entries := []types.MemoryEntry{
		{ID: "1", Text: "hello world", Embedding: []float32{1, 0, 0}, Partition: types.PartitionChat},
		{ID: "2", Text: "farewell", Embedding: []float32{0, 1, 0}, Partition: types.PartitionChat},
		{ID: "3", Text: "unrelated file", Embedding: []float32{1, 0, 0}, Partition: types.PartitionFiles},
	}
	for _, e := range entries {
		if err := s.UpsertEntry(e); err != nil {
			t.Fatalf("UpsertEntry failed: %v", err)
		}
	}

	results, err := s.QueryPartition(types.PartitionChat, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("QueryPartition failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 chat results, got %d", len(results))
	}
	if results[0].ID != "1" {
		t.Errorf("nearest should be entry 1, got %s", results[0].ID)
	}
	if results[0].Distance > results[1].Distance {
		t.Error("results not sorted by ascending distance")
	}
	if results[0].Partition != types.PartitionChat {
		t.Errorf("partition = %q", results[0].Partition)
	}

	// Limit truncation.
	one, err := s.QueryPartition(types.PartitionChat, []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 {
		t.Errorf("limit not applied: got %d", len(one))
	}
}

func TestUpsertEntry_ReplaceByID(t *testing.T) {
	s := newTestStore(t)

	entry := types.MemoryEntry{ID: "1", Text: "v1", Embedding: []float32{1, 0}, Partition: types.PartitionInsights}
	if err := s.UpsertEntry(entry); err != nil {
		t.Fatal(err)
	}
	entry.Text = "v2"
	if err := s.UpsertEntry(entry); err != nil {
		t.Fatal(err)
	}

	count, err := s.CountEntries(types.PartitionInsights)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 entry after replace, got %d", count)
	}

	results, _ := s.QueryPartition(types.PartitionInsights, []float32{1, 0}, 1)
	if len(results) != 1 || results[0].Text != "v2" {
		t.Errorf("replace did not take: %+v", results)
	}
}

func TestDeleteEntry(t *testing.T) {
	s := newTestStore(t)

	entry := types.MemoryEntry{ID: "x", Text: "gone soon", Embedding: []float32{1}, Partition: types.PartitionWeb}
	if err := s.UpsertEntry(entry); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteEntry(types.PartitionWeb, "x"); err != nil {
		t.Fatal(err)
	}
	count, _ := s.CountEntries(types.PartitionWeb)
	if count != 0 {
		t.Errorf("entry not deleted, count=%d", count)
	}

	// Deleting again is a no-op.
	if err := s.DeleteEntry(types.PartitionWeb, "x"); err != nil {
		t.Errorf("double delete should not error: %v", err)
	}
}

func TestUpsertEntry_Validation(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertEntry(types.MemoryEntry{ID: "1", Embedding: []float32{1}, Partition: "scratch"}); err == nil {
		t.Error("invalid partition should error")
	}
	if err := s.UpsertEntry(types.MemoryEntry{Embedding: []float32{1}, Partition: types.PartitionChat}); err == nil {
		t.Error("missing id should error")
	}
	if err := s.UpsertEntry(types.MemoryEntry{ID: "1", Partition: types.PartitionChat}); err == nil {
		t.Error("missing embedding should error")
	}
}

func TestQueryPartition_SkipsMismatchedDimensions(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertEntry(types.MemoryEntry{ID: "a", Text: "2d", Embedding: []float32{1, 0}, Partition: types.PartitionChat}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertEntry(types.MemoryEntry{ID: "b", Text: "3d", Embedding: []float32{1, 0, 0}, Partition: types.PartitionChat}); err != nil {
		t.Fatal(err)
	}

	results, err := s.QueryPartition(types.PartitionChat, []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "a" {
		t.Errorf("expected only matching-dimension entry, got %+v", results)
	}
}
