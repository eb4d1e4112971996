package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureLevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "warn", Output: &buf})
	t.Cleanup(func() { Configure(Config{Output: &bytes.Buffer{}}) })

	l := WithComponent(ContextWithRunID(context.Background(), "run-2"), "portal")
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"component":"portal"`)
	assert.Contains(t, out, `"run_id":"run-2"`)
	assert.Contains(t, out, `"message":"shown"`)
}

func TestRunIDRoundTrip(t *testing.T) {
	assert.Equal(t, "", RunIDFromContext(context.Background()))

	ctx := ContextWithRunID(context.Background(), "run-1")
	require.Equal(t, "run-1", RunIDFromContext(ctx))

	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{Output: &bytes.Buffer{}}) })

	l := FromContext(ctx)
	l.Info().Msg("x")
	assert.Contains(t, buf.String(), `"run_id":"run-1"`)
}
