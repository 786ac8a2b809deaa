package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"autobot/internal/project"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := projectManager()
		if err != nil {
			return err
		}
		projects, err := manager.List()
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}
		for _, p := range projects {
			fmt.Printf("%-24s %-10s %s\n", p.Name, p.Status, p.Goal)
		}
		return nil
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a project and all its data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := projectManager()
		if err != nil {
			return err
		}
		if err := manager.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted project %q\n", args[0])
		return nil
	},
}

func projectManager() (*project.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return project.NewManager(cfg.Projects.Dir)
}

func init() {
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)
}
