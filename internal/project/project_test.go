package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"my-project", "my-project"},
		{"my_project_2", "my_project_2"},
		{"My Project!", "My_Project_"},
		{"a/b\\c", "a_b_c"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.name); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCreateProject(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	proj, err := m.Create("demo", "build a demo")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if proj.Name != "demo" || proj.Goal != "build a demo" || proj.Status != StatusActive {
		t.Errorf("unexpected descriptor: %+v", proj)
	}

	for _, path := range []string{proj.PlanPath(), proj.ConfigPath(), proj.LogsPath()} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing %s: %v", path, err)
		}
	}

	plan, err := os.ReadFile(proj.PlanPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(plan), "- [ ] Initial planning") {
		t.Errorf("seed plan missing initial task:\n%s", plan)
	}
	if !strings.Contains(string(plan), "build a demo") {
		t.Errorf("seed plan missing goal:\n%s", plan)
	}
}

func TestCreateProject_ExistingLoads(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	first, err := m.Create("demo", "original goal")
	if err != nil {
		t.Fatal(err)
	}

	again, err := m.Create("demo", "different goal")
	if err != nil {
		t.Fatalf("Create on existing project should load, got: %v", err)
	}
	if again.Goal != first.Goal {
		t.Errorf("existing project goal overwritten: %q", again.Goal)
	}
}

func TestLoadProject(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Create("my agent", "a goal"); err != nil {
		t.Fatal(err)
	}

	proj, err := m.Load("my agent")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if proj.Name != "my agent" || proj.Goal != "a goal" {
		t.Errorf("unexpected descriptor: %+v", proj)
	}
	if filepath.Base(proj.Path) != "my_agent" {
		t.Errorf("path not sanitized: %s", proj.Path)
	}
}

func TestLoadProject_Missing(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Load("nope"); err == nil {
		t.Error("loading missing project should error")
	}
}

func TestLoadProject_CorruptConfig(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create("demo", "goal"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "demo", "config.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	proj, err := m.Load("demo")
	if err != nil {
		t.Fatalf("corrupt config should still load a bare descriptor: %v", err)
	}
	if proj.Name != "demo" || proj.Status != StatusActive {
		t.Errorf("unexpected bare descriptor: %+v", proj)
	}
}

func TestListProjects(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"zeta", "alpha"} {
		if _, err := m.Create(name, "goal for "+name); err != nil {
			t.Fatal(err)
		}
	}

	projects, err := m.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
	if projects[0].Name != "alpha" || projects[1].Name != "zeta" {
		t.Errorf("not sorted by name: %s, %s", projects[0].Name, projects[1].Name)
	}
}

func TestDeleteProject(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	proj, err := m.Create("doomed", "goal")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Delete("doomed"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(proj.Path); !os.IsNotExist(err) {
		t.Error("project directory still exists after delete")
	}
	if err := m.Delete("doomed"); err == nil {
		t.Error("deleting missing project should error")
	}
}
