// Package plan manages the markdown task plan that drives the agent loop.
// Tasks are checklist items: "- [ ]" pending, "- [x]" completed, "- [!]"
// failed. Mutations are keyed on the exact task text and apply to the
// first pending occurrence.
package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"autobot/internal/logging"
)

var pendingTaskRe = regexp.MustCompile(`(?m)^[ \t]*- \[ \][ \t]*(.*?)[ \t]*$`)

// Store is a file-backed plan. All reads go to disk so external edits to
// the plan file are picked up on the next tick.
type Store struct {
	path string
}

// NewStore returns a plan store backed by the file at path. The file does
// not have to exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the plan file location.
func (s *Store) Path() string {
	return s.path
}

// GetPlan returns the current plan content, or "" if the plan file does
// not exist or cannot be read.
func (s *Store) GetPlan() string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Planning("Failed to read plan file: %v", err)
		}
		return ""
	}
	return string(data)
}

// ReplacePlan atomically replaces the whole plan file.
func (s *Store) ReplacePlan(content string) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".plan-*.md")
	if err != nil {
		return fmt.Errorf("failed to create temp plan file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write plan: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close plan file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace plan file: %w", err)
	}
	return nil
}

// NextPendingTask returns the text of the first pending task, or "" and
// false when no pending tasks remain.
func (s *Store) NextPendingTask() (string, bool) {
	match := pendingTaskRe.FindStringSubmatch(s.GetPlan())
	if match == nil {
		return "", false
	}
	return match[1], true
}

// PendingTasks returns the text of every pending task in plan order.
func (s *Store) PendingTasks() []string {
	var tasks []string
	for _, m := range pendingTaskRe.FindAllStringSubmatch(s.GetPlan(), -1) {
		tasks = append(tasks, m[1])
	}
	return tasks
}

// MarkComplete rewrites the first pending checklist item whose text
// exactly matches taskText to completed. Returns false when no such item
// exists, which includes items already marked completed or failed.
func (s *Store) MarkComplete(taskText string) bool {
	return s.markFirst(taskText, "x")
}

// MarkFailed rewrites the first pending checklist item whose text exactly
// matches taskText to failed.
func (s *Store) MarkFailed(taskText string) bool {
	return s.markFirst(taskText, "!")
}

func (s *Store) markFirst(taskText, mark string) bool {
	current := s.GetPlan()

	re, err := taskLineRegexp(` `, taskText)
	if err != nil {
		logging.Planning("Bad task text %q: %v", taskText, err)
		return false
	}
	loc := re.FindStringSubmatchIndex(current)
	if loc == nil {
		logging.Planning("Task not found in plan: %s", taskText)
		return false
	}

	// Preserve the original indentation, rebuild the rest of the line.
	indent := current[loc[2]:loc[3]]
	updated := current[:loc[0]] + indent + "- [" + mark + "] " + taskText + current[loc[1]:]

	if err := s.ReplacePlan(updated); err != nil {
		logging.Planning("Failed to update plan: %v", err)
		return false
	}
	return true
}

// InsertSubtasks adds pending subtasks directly below the first checklist
// item matching parentTask (any status), indented two spaces deeper than
// the parent. Returns false when the parent is not found.
func (s *Store) InsertSubtasks(parentTask string, subtasks []string) bool {
	if len(subtasks) == 0 {
		return false
	}
	current := s.GetPlan()

	re, err := taskLineRegexp(` x!`, parentTask)
	if err != nil {
		logging.Planning("Bad task text %q: %v", parentTask, err)
		return false
	}
	loc := re.FindStringSubmatchIndex(current)
	if loc == nil {
		logging.Planning("Parent task not found in plan: %s", parentTask)
		return false
	}

	indent := current[loc[2]:loc[3]]
	var b strings.Builder
	for _, sub := range subtasks {
		b.WriteString("\n")
		b.WriteString(indent)
		b.WriteString("  - [ ] ")
		b.WriteString(sub)
	}

	updated := current[:loc[1]] + b.String() + current[loc[1]:]
	if err := s.ReplacePlan(updated); err != nil {
		logging.Planning("Failed to update plan: %v", err)
		return false
	}
	return true
}

// taskLineRegexp matches a whole checklist line whose status char is in
// statusChars and whose task text matches exactly. Submatch 1 is the
// leading indentation.
func taskLineRegexp(statusChars, taskText string) (*regexp.Regexp, error) {
	pattern := `(?m)^([ \t]*)- \[[` + statusChars + `]\][ \t]*` +
		regexp.QuoteMeta(taskText) + `[ \t]*$`
	return regexp.Compile(pattern)
}
