package metadata

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/kass/go-fissura/pkg/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func found(string) (string, error) { return "/usr/bin/exiftool", nil }

func missing(string) (string, error) { return "", exec.ErrNotFound }

func TestToolReaderParsesOutput(t *testing.T) {
	var gotName string
	var gotArgs []string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte(positionOutput), nil
	}

	reader := NewToolReader(ToolConfig{Binary: "/opt/exiftool"}, zerolog.Nop(), WithRunner(run), WithLookPath(found))
	assert.Equal(t, models.ExternalTool, reader.Kind())
	assert.True(t, reader.Available())

	reading, err := reader.Read(context.Background(), "/photos/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/opt/exiftool", gotName)
	assert.Equal(t, []string{"/photos/a.jpg"}, gotArgs)
	require.NotNil(t, reading.Location)
	assert.InDelta(t, -16.638389, reading.Location.Lat, 1e-6)
}

func TestToolReaderUnavailable(t *testing.T) {
	calls := 0
	run := func(context.Context, string, ...string) ([]byte, error) {
		calls++
		return nil, nil
	}
	reader := NewToolReader(ToolConfig{}, zerolog.Nop(), WithRunner(run), WithLookPath(missing))

	_, err := reader.Read(context.Background(), "a.jpg")
	assert.ErrorIs(t, err, ErrToolUnavailable)
	assert.Equal(t, 0, calls)
	assert.Equal(t, DefaultToolBinary, reader.Binary())
}

func TestToolReaderTimeout(t *testing.T) {
	run := func(ctx context.Context, _ string, _ ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, errors.New("signal: killed")
	}
	reader := NewToolReader(ToolConfig{Timeout: 10 * time.Millisecond}, zerolog.Nop(), WithRunner(run), WithLookPath(found))

	_, err := reader.Read(context.Background(), "slow.jpg")
	assert.ErrorIs(t, err, ErrToolTimeout)
}

func TestToolReaderBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	run := func(context.Context, string, ...string) ([]byte, error) {
		calls++
		return nil, errors.New("crashed")
	}
	reader := NewToolReader(ToolConfig{TripAfter: 3, Cooldown: time.Hour}, zerolog.Nop(), WithRunner(run), WithLookPath(found))

	for i := 0; i < 3; i++ {
		_, err := reader.Read(context.Background(), "a.jpg")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrToolUnavailable)
	}

	_, err := reader.Read(context.Background(), "a.jpg")
	assert.ErrorIs(t, err, ErrToolUnavailable)
	assert.Equal(t, 3, calls)
}

func TestToolReaderExitErrorsDoNotTripBreaker(t *testing.T) {
	calls := 0
	run := func(context.Context, string, ...string) ([]byte, error) {
		calls++
		return nil, &ExitError{Code: 1, Stderr: "Error: Unknown file type"}
	}
	reader := NewToolReader(ToolConfig{TripAfter: 2}, zerolog.Nop(), WithRunner(run), WithLookPath(found))

	for i := 0; i < 5; i++ {
		_, err := reader.Read(context.Background(), "notes.txt.jpg")
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 1, exitErr.Code)
	}
	assert.Equal(t, 5, calls)
}

func TestExitErrorMessage(t *testing.T) {
	assert.Equal(t, "exit status 2", (&ExitError{Code: 2}).Error())
	assert.Equal(t, "exit status 1: boom", (&ExitError{Code: 1, Stderr: "boom"}).Error())
}
