// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureAndComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "atrium-test"})

	logger := WithComponent("bus")
	logger.Info().Str("event", "test.event").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "bus", entry["component"])
	assert.Equal(t, "test.event", entry["event"])
	assert.Equal(t, "hello", entry["message"])
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestWithComponentFromContext(t *testing.T) {
	// Does not panic with or without a request ID; field wiring is covered
	// by the sink assertion in TestConfigureAndComponentLogger.
	ctx := ContextWithRequestID(context.Background(), "req-456")
	l := WithComponentFromContext(ctx, "api")
	l.Debug().Msg("with id")

	l = WithComponentFromContext(context.Background(), "api")
	l.Debug().Msg("without id")
}
