package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/kass/go-fissura/pkg/models"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

const (
	DefaultToolBinary  = "exiftool"
	DefaultToolTimeout = 10 * time.Second

	defaultTripAfter = 5
	defaultCooldown  = time.Minute
)

var (
	// ErrToolUnavailable is returned when exiftool is missing or its breaker is open
	ErrToolUnavailable = errors.New("exiftool unavailable")
	// ErrToolTimeout is returned when a single invocation exceeds its deadline
	ErrToolTimeout = errors.New("exiftool timed out")
)

// ToolConfig configures the exiftool strategy
type ToolConfig struct {
	Binary   string
	Timeout  time.Duration
	Disabled bool
	// TripAfter is the number of consecutive crashes or timeouts after which
	// the tool is no longer invoked until Cooldown has passed.
	TripAfter uint32
	Cooldown  time.Duration
}

func (c ToolConfig) normalize() ToolConfig {
	if c.Binary == "" {
		c.Binary = DefaultToolBinary
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultToolTimeout
	}
	if c.TripAfter == 0 {
		c.TripAfter = defaultTripAfter
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
	return c
}

// ExitError reports a tool run that completed with a non-zero status. It is a
// per-file outcome and does not count against the breaker.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return fmt.Sprintf("exit status %d: %s", e.Code, e.Stderr)
}

// Runner executes a command and returns its stdout
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ToolOption configures a ToolReader
type ToolOption func(*ToolReader)

// WithRunner replaces the process runner
func WithRunner(run Runner) ToolOption {
	return func(t *ToolReader) { t.run = run }
}

// WithLookPath replaces the binary lookup used by Available
func WithLookPath(lookPath func(string) (string, error)) ToolOption {
	return func(t *ToolReader) { t.lookPath = lookPath }
}

// ToolReader is the external tool strategy
type ToolReader struct {
	cfg      ToolConfig
	run      Runner
	lookPath func(string) (string, error)
	breaker  *gobreaker.CircuitBreaker[[]byte]
	logger   zerolog.Logger

	availableOnce sync.Once
	available     bool
}

// NewToolReader creates the exiftool strategy
func NewToolReader(cfg ToolConfig, logger zerolog.Logger, opts ...ToolOption) *ToolReader {
	cfg = cfg.normalize()
	t := &ToolReader{
		cfg:      cfg,
		run:      runCommand,
		lookPath: exec.LookPath,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "exiftool",
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.TripAfter
		},
		IsSuccessful: func(err error) bool {
			var exitErr *ExitError
			return err == nil || errors.As(err, &exitErr) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			t.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return t
}

// Kind implements Strategy
func (t *ToolReader) Kind() models.StrategyKind {
	return models.ExternalTool
}

// Binary returns the configured executable name
func (t *ToolReader) Binary() string {
	return t.cfg.Binary
}

// Available reports whether the binary can be found. The lookup runs once.
func (t *ToolReader) Available() bool {
	t.availableOnce.Do(func() {
		_, err := t.lookPath(t.cfg.Binary)
		t.available = err == nil
	})
	return t.available
}

// Read implements Strategy
func (t *ToolReader) Read(ctx context.Context, path string) (Reading, error) {
	if !t.Available() {
		return Reading{}, ErrToolUnavailable
	}

	out, err := t.breaker.Execute(func() ([]byte, error) {
		runCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()

		out, err := t.run(runCtx, t.cfg.Binary, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s: %w", ErrToolTimeout, t.cfg.Timeout, err)
			}
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Reading{}, fmt.Errorf("%w: %w", ErrToolUnavailable, err)
		}
		return Reading{}, fmt.Errorf("failed to run %s: %w", t.cfg.Binary, err)
	}
	return ParseToolOutput(string(out)), nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return nil, &ExitError{Code: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
