package main

import (
	"fmt"

	"github.com/kass/go-fissura/pkg/project"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage inspection projects",
}

var projectInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a project directory with its project.yaml",
	Args:  cobra.NoArgs,
	RunE:  runProjectInit,
}

var projectInfo project.Info

func init() {
	projectInitCmd.Flags().StringVar(&projectInfo.Name, "name", "", "Project name (defaults to --project)")
	projectInitCmd.Flags().StringVar(&projectInfo.Year, "year", "", "Inspection year (required)")
	projectInitCmd.Flags().StringVar(&projectInfo.Description, "description", "", "Free text description")
	projectInitCmd.Flags().StringVar(&projectInfo.Leader, "leader", "", "Responsible engineer")
	projectInitCmd.Flags().StringVar(&projectInfo.StructureType, "structure-type", "", "Type of structure inspected")
	projectInitCmd.Flags().StringVar(&projectInfo.Observations, "observations", "", "Additional notes")

	projectCmd.AddCommand(projectInitCmd)
}

func runProjectInit(cmd *cobra.Command, args []string) error {
	info := projectInfo
	if info.Name == "" {
		info.Name = cfg.Project
	}

	c, err := project.Create(cfg.ProjectsRoot, info)
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ Created project " + c.Name))
	fmt.Printf("Images will be placed under %s\n", c.ImagesDir())
	return nil
}
