package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextOutputContainsFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "text")

	Debug("operation complete", KeyOp, "search", KeyMessageID, 7)

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "operation complete")
	assert.Contains(t, out, "op=search")
	assert.Contains(t, out, "msg_id=7")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text")

	Debug("hidden")
	Info("also hidden")
	Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")

	Info("connected", KeyServerAddr, "ldap.example.org:389")

	out := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(out, "{"), "expected JSON output, got %q", out)
	assert.Contains(t, out, `"server_addr":"ldap.example.org:389"`)
}
