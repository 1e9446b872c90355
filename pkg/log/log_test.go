package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "info", FormatJSON)
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Str("protocol", "frost/keygen").Msg("start")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "start", line["message"])
	assert.Equal(t, "frost/keygen", line["protocol"])
	assert.Equal(t, "info", line["level"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "debug", FormatConsole)
	require.NoError(t, err)
	logger.Debug().Msg("state advanced")
	assert.Contains(t, buf.String(), "state advanced")
}

func TestInvalid(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", FormatJSON)
	assert.Error(t, err)
	_, err = New(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
