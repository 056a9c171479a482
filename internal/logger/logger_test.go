package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWithBuildID(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)

	ctx, id := WithBuildID(l.WithContext(context.Background()))
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	zerolog.Ctx(ctx).Info().Msg("style build started")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, id, line["build_id"])
	require.Equal(t, "style build started", line["message"])
	require.Equal(t, "info", line["level"])
}

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer
	prod := New(&buf, false)
	prod.Debug().Msg("hidden")
	require.Empty(t, buf.String())

	dev := New(&buf, true)
	dev.Debug().Msg("shown")
	require.Contains(t, buf.String(), "shown")
}
