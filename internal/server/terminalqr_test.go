package server

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTerminalQR(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTerminalQR(&buf, "https://scanner.local:3000"))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.NotEmpty(t, lines)
	// Square symbol: width in runes is about twice the number of lines.
	width := len([]rune(lines[0]))
	assert.InDelta(t, width, 2*len(lines), 2)
	for _, l := range lines {
		assert.Equal(t, width, len([]rune(l)))
	}
}

func TestPrintTerminalQR_Empty(t *testing.T) {
	assert.Error(t, PrintTerminalQR(&bytes.Buffer{}, ""))
}
