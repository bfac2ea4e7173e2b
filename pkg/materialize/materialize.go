// Package materialize turns building and facade assignments into a folder
// tree under the project's images root and moves the photos into it.
//
// A move is a copy followed by removal of the source, and the source is only
// removed once the copy succeeded. There is no rollback: an interrupted run
// leaves some files moved and some in place, and a failed removal leaves the
// photo in both locations. Both cases are reported as failures.
package materialize

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kass/go-fissura/pkg/facade"
	"github.com/kass/go-fissura/pkg/models"
	"github.com/rs/zerolog"
)

const dirPerm = 0o755

const forbidden = `/\:*?"<>|`

// Sanitize replaces spaces with underscores and strips characters that are
// not allowed in file names on common filesystems.
func Sanitize(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbidden, r) {
			return -1
		}
		return r
	}, name)
}

// Placement is one planned move
type Placement struct {
	BuildingID  string            `json:"building_id"`
	BuildingDir string            `json:"building_dir"`
	Facade      models.FacadeName `json:"facade"`
	FacadeDir   string            `json:"facade_dir"`
	Source      string            `json:"source"`
	Target      string            `json:"target"`
	// DuplicateOf is set when an earlier placement in the same plan already
	// targets the same path. Such placements are never applied.
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

// Plan is the ordered list of moves for one run
type Plan struct {
	Root       string      `json:"root"`
	Placements []Placement `json:"placements"`
}

// NewPlan lays out <root>/<building>/fachada-<facade>/<file> for every image,
// in building order and then member order.
func NewPlan(root string, buildings []*models.Building) Plan {
	plan := Plan{Root: root}
	claimed := make(map[string]string)

	for _, b := range buildings {
		buildingDir := filepath.Join(root, Sanitize(b.ID))
		for _, img := range b.AllImages {
			name := facade.Classify(img.HeadingDegrees)
			facadeDir := filepath.Join(buildingDir, Sanitize(facade.DirName(name)))
			p := Placement{
				BuildingID:  b.ID,
				BuildingDir: buildingDir,
				Facade:      name,
				FacadeDir:   facadeDir,
				Source:      img.Path,
				Target:      filepath.Join(facadeDir, Sanitize(img.FileName)),
			}
			if first, ok := claimed[p.Target]; ok {
				p.DuplicateOf = first
			} else {
				claimed[p.Target] = p.Source
			}
			plan.Placements = append(plan.Placements, p)
		}
	}
	return plan
}

// Moved records a completed copy. SourceRemoved is false when the source
// could not be deleted afterwards.
type Moved struct {
	Source        string `json:"source"`
	Target        string `json:"target"`
	SourceRemoved bool   `json:"source_removed"`
}

// Report is the outcome of applying a plan
type Report struct {
	Moved    []Moved
	Failures []models.Failure
}

func (r *Report) fail(format string, args ...any) {
	r.Failures = append(r.Failures, models.Failure{
		Kind:    models.FilesystemFailure,
		Message: fmt.Sprintf(format, args...),
	})
}

// Materializer applies plans to the filesystem
type Materializer struct {
	logger zerolog.Logger
}

// New creates a Materializer
func New(logger zerolog.Logger) *Materializer {
	return &Materializer{logger: logger}
}

// Apply executes the plan in order. Per-file problems are collected in the
// report and processing continues. If a building directory cannot be created
// a single failure is recorded and all of that building's files are skipped.
// The returned error is only ever the context's error; the report then
// covers the files handled before cancellation.
func (m *Materializer) Apply(ctx context.Context, plan Plan) (Report, error) {
	var report Report
	buildingErr := make(map[string]error)

	for _, p := range plan.Placements {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if p.DuplicateOf != "" {
			report.fail("skipping %s: target %s is already used by %s", p.Source, p.Target, p.DuplicateOf)
			continue
		}

		if samePath(p.Source, p.Target) {
			m.logger.Debug().Str("source", p.Source).Msg("already in place")
			continue
		}

		err, seen := buildingErr[p.BuildingDir]
		if !seen {
			err = os.MkdirAll(p.BuildingDir, dirPerm)
			buildingErr[p.BuildingDir] = err
			if err != nil {
				report.fail("failed to create building directory %s: %v", p.BuildingDir, err)
				m.logger.Warn().Err(err).Str("building", p.BuildingID).Msg("skipping building")
			}
		}
		if err != nil {
			continue
		}

		if err := os.MkdirAll(p.FacadeDir, dirPerm); err != nil {
			report.fail("failed to create directory %s: %v", p.FacadeDir, err)
			continue
		}

		if err := copyFile(p.Source, p.Target); err != nil {
			report.fail("failed to copy %s to %s: %v", p.Source, p.Target, err)
			continue
		}

		moved := Moved{Source: p.Source, Target: p.Target, SourceRemoved: true}
		if err := os.Remove(p.Source); err != nil {
			moved.SourceRemoved = false
			report.fail("copied %s to %s but failed to remove the source: %v", p.Source, p.Target, err)
		}
		report.Moved = append(report.Moved, moved)
		m.logger.Debug().Str("source", p.Source).Str("target", p.Target).Msg("moved")
	}
	return report, nil
}

// samePath reports whether src and dst name the same file, directly or
// through a link.
func samePath(src, dst string) bool {
	a, errA := filepath.Abs(src)
	b, errB := filepath.Abs(dst)
	if errA == nil && errB == nil && a == b {
		return true
	}
	si, err := os.Stat(src)
	if err != nil {
		return false
	}
	di, err := os.Stat(dst)
	if err != nil {
		return false
	}
	return os.SameFile(si, di)
}

// copyFile writes to a temporary sibling and renames it over dst, so a
// failed copy never leaves a truncated target behind. An existing dst is
// replaced.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
