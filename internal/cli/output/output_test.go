package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"", FormatTable, false},
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"yml", FormatYAML, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestPrintTable(t *testing.T) {
	data := NewTableData("NAME", "STATE")
	data.AddRow("survival", "running")
	data.AddRow("creative", "stopped")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, data))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "survival")
	assert.Contains(t, out, "stopped")
}

func TestPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatJSON)

	require.NoError(t, p.Print(map[string]any{"name": "survival", "port": 25565}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "survival", decoded["name"])
	assert.EqualValues(t, 25565, decoded["port"])
}

func TestPrinterYAML(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatYAML)

	require.NoError(t, p.Print(map[string]string{"name": "survival"}))

	var decoded map[string]string
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "survival", decoded["name"])
}

func TestPrinterTableFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable)

	// Non-TableRenderer values still produce usable output.
	require.NoError(t, p.Print(map[string]string{"name": "survival"}))
	assert.Contains(t, buf.String(), `"name"`)
}
