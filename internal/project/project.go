// Package project manages the lifecycle of Autobot projects. Each project
// is a directory holding its plan file, its SQLite database, its logs and a
// config.json descriptor.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"autobot/internal/logging"
)

const (
	// StatusActive is the status new projects start in.
	StatusActive = "active"
	// StatusArchived marks a project no longer being worked on.
	StatusArchived = "archived"
)

// Project is a single Autobot project rooted at Path. The derived paths
// point at the resources the rest of the runtime works with.
type Project struct {
	Name      string `json:"name"`
	Goal      string `json:"goal"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Status    string `json:"status"`

	// Logging carries the per-project logging section through config
	// round-trips untouched. See logging.Initialize.
	Logging json.RawMessage `json:"logging,omitempty"`

	Path string `json:"-"`
}

// PlanPath returns the path to the project's markdown plan.
func (p *Project) PlanPath() string {
	return filepath.Join(p.Path, "plan.md")
}

// DBPath returns the path to the project's SQLite database.
func (p *Project) DBPath() string {
	return filepath.Join(p.Path, "chat_history.sqlite")
}

// LogsPath returns the project's log directory.
func (p *Project) LogsPath() string {
	return filepath.Join(p.Path, "logs")
}

// ConfigPath returns the path to the project's config.json descriptor.
func (p *Project) ConfigPath() string {
	return filepath.Join(p.Path, "config.json")
}

// SaveConfig writes the descriptor to config.json, refreshing UpdatedAt.
func (p *Project) SaveConfig() error {
	p.UpdatedAt = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project config: %w", err)
	}
	if err := os.WriteFile(p.ConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write project config: %w", err)
	}
	return nil
}

// Manager creates, loads and deletes projects under a single root
// directory.
type Manager struct {
	projectsDir string
}

// NewManager creates the projects directory if needed and returns a
// manager rooted there.
func NewManager(projectsDir string) (*Manager, error) {
	if projectsDir == "" {
		return nil, fmt.Errorf("projects directory required")
	}
	if err := os.MkdirAll(projectsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create projects directory: %w", err)
	}
	logging.Project("Project manager initialized at %s", projectsDir)
	return &Manager{projectsDir: projectsDir}, nil
}

// SanitizeName maps a project name onto a filesystem-safe directory name.
// Alphanumerics, dashes and underscores pass through, everything else
// becomes an underscore.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Create makes a new project directory with its logs subdirectory, a seed
// plan and a config.json descriptor. If a project with the same name
// already exists, the existing project is loaded instead.
func (m *Manager) Create(name, goal string) (*Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("project name required")
	}

	path := filepath.Join(m.projectsDir, SanitizeName(name))
	if _, err := os.Stat(path); err == nil {
		logging.Project("Project directory already exists: %s", path)
		return m.Load(name)
	}

	if err := os.MkdirAll(filepath.Join(path, "logs"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create project directory: %w", err)
	}

	now := time.Now().Format(time.RFC3339)
	proj := &Project{
		Name:      name,
		Goal:      goal,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    StatusActive,
		Path:      path,
	}

	plan := fmt.Sprintf("# Project Plan: %s\n\n## Goal\n%s\n\n## Tasks\n\n- [ ] Initial planning\n", name, goal)
	if err := os.WriteFile(proj.PlanPath(), []byte(plan), 0644); err != nil {
		return nil, fmt.Errorf("failed to write seed plan: %w", err)
	}

	if err := proj.SaveConfig(); err != nil {
		return nil, err
	}

	logging.Project("Created project %q at %s", name, path)
	return proj, nil
}

// Load reads an existing project from disk. A project directory with a
// missing or corrupt config.json still loads with a bare descriptor.
func (m *Manager) Load(name string) (*Project, error) {
	path := filepath.Join(m.projectsDir, SanitizeName(name))
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project %q does not exist", name)
	}

	proj := &Project{
		Name:      name,
		CreatedAt: time.Now().Format(time.RFC3339),
		Status:    StatusActive,
		Path:      path,
	}
	proj.UpdatedAt = proj.CreatedAt

	data, err := os.ReadFile(filepath.Join(path, "config.json"))
	if err == nil {
		if jsonErr := json.Unmarshal(data, proj); jsonErr != nil {
			logging.Project("Failed to parse config for %q: %v", name, jsonErr)
		}
	}
	// Path is not serialized; restore whatever the config said.
	proj.Path = path
	if proj.Name == "" {
		proj.Name = name
	}
	if proj.Status == "" {
		proj.Status = StatusActive
	}

	logging.Project("Loaded project %q from %s", proj.Name, path)
	return proj, nil
}

// List returns descriptors for every project directory, sorted by name.
// Directories without a readable config.json get a bare descriptor.
func (m *Manager) List() ([]*Project, error) {
	entries, err := os.ReadDir(m.projectsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read projects directory: %w", err)
	}

	var projects []*Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		proj, err := m.Load(entry.Name())
		if err != nil {
			continue
		}
		projects = append(projects, proj)
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

// Delete removes a project directory and everything in it.
func (m *Manager) Delete(name string) error {
	path := filepath.Join(m.projectsDir, SanitizeName(name))
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("project %q does not exist", name)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	logging.Project("Deleted project %q at %s", name, path)
	return nil
}
