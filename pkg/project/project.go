// Package project holds the on-disk layout of an inspection project and the
// run manifest written after each processing run.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kass/go-fissura/pkg/models"
	"gopkg.in/yaml.v3"
)

const (
	// InfoFile holds the project description inside the project directory
	InfoFile = "project.yaml"
	// ImagesDirName is the directory buildings are materialized into
	ImagesDirName = "images"
)

// Context identifies the active project. It is passed explicitly to every
// operation that reads or writes project files.
type Context struct {
	Name string
	Root string
}

// Dir returns <root>/<name>
func (c Context) Dir() string {
	return filepath.Join(c.Root, c.Name)
}

// ImagesDir returns <root>/<name>/images
func (c Context) ImagesDir() string {
	return filepath.Join(c.Dir(), ImagesDirName)
}

// Validate checks that the context names an existing project directory
func (c Context) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return models.WrapError(models.ConfigurationFailure, "validate project", errors.New("project name is not set"))
	}
	if strings.ContainsAny(c.Name, `/\`) || c.Name == "." || c.Name == ".." {
		return models.WrapError(models.ConfigurationFailure, "validate project", fmt.Errorf("invalid project name %q", c.Name))
	}
	if strings.TrimSpace(c.Root) == "" {
		return models.WrapError(models.ConfigurationFailure, "validate project", errors.New("projects root is not set"))
	}
	info, err := os.Stat(c.Dir())
	if err != nil {
		return models.WrapError(models.ConfigurationFailure, "validate project", err)
	}
	if !info.IsDir() {
		return models.WrapError(models.ConfigurationFailure, "validate project", fmt.Errorf("%s is not a directory", c.Dir()))
	}
	return nil
}

// Info is the descriptive data entered when a project is created
type Info struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description,omitempty"`
	Year          string `yaml:"year"`
	Leader        string `yaml:"leader,omitempty"`
	StructureType string `yaml:"structure_type,omitempty"`
	Observations  string `yaml:"observations,omitempty"`
}

// Create makes the project directory with an empty images folder and writes
// its project.yaml. Name and year are required. An existing project is not
// overwritten.
func Create(root string, info Info) (Context, error) {
	info.Name = strings.TrimSpace(info.Name)
	info.Year = strings.TrimSpace(info.Year)
	if info.Name == "" || info.Year == "" {
		return Context{}, models.WrapError(models.ConfigurationFailure, "create project", errors.New("name and year are required"))
	}

	c := Context{Name: info.Name, Root: root}
	if _, err := os.Stat(c.Dir()); err == nil {
		return Context{}, models.WrapError(models.ConfigurationFailure, "create project", fmt.Errorf("project %s already exists", c.Dir()))
	}
	if err := os.MkdirAll(c.ImagesDir(), 0o755); err != nil {
		return Context{}, models.WrapError(models.FilesystemFailure, "create project", err)
	}

	data, err := yaml.Marshal(info)
	if err != nil {
		return Context{}, fmt.Errorf("failed to marshal project info: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.Dir(), InfoFile), data, 0o644); err != nil {
		return Context{}, models.WrapError(models.FilesystemFailure, "create project", err)
	}
	return c, nil
}

// Open validates an existing project and loads its project.yaml. Projects
// created by hand without the file are accepted with a zero Info.
func Open(root, name string) (Context, Info, error) {
	c := Context{Name: name, Root: root}
	if err := c.Validate(); err != nil {
		return Context{}, Info{}, err
	}

	data, err := os.ReadFile(filepath.Join(c.Dir(), InfoFile))
	if errors.Is(err, os.ErrNotExist) {
		return c, Info{Name: name}, nil
	}
	if err != nil {
		return Context{}, Info{}, models.WrapError(models.FilesystemFailure, "read project info", err)
	}

	var info Info
	if err := yaml.Unmarshal(data, &info); err != nil {
		return Context{}, Info{}, models.WrapError(models.ConfigurationFailure, "parse project info", err)
	}
	return c, info, nil
}
