package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/castcrawler/internal/credit"
)

var sampleRecs = []credit.Recommendation{
	{Title: "Avengers: Endgame", SharedActors: 3},
	{Title: "Avengers: Infinity War", SharedActors: 2},
	{Title: "Lost | Found", SharedActors: 1},
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{" CSV ", FormatCSV, false},
		{"json", FormatJSON, false},
		{"markdown", FormatMarkdown, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestWriteTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatTable, sampleRecs, Options{Title: "100% shared"}))
	out := buf.String()
	assert.Contains(t, out, "100% shared")
	assert.Contains(t, out, "Avengers: Endgame")
	assert.Contains(t, out, "╭")
	assert.Less(t, strings.Index(out, "Avengers: Endgame"), strings.Index(out, "Avengers: Infinity War"))
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleRecs, Options{}))
	assert.Equal(t,
		"movie_or_TV_name,number of shared actors\n"+
			"Avengers: Endgame,3\n"+
			"Avengers: Infinity War,2\n"+
			"Lost | Found,1\n",
		buf.String())
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleRecs[:1], Options{}))
	assert.JSONEq(t, `[{"movie_or_TV_name":"Avengers: Endgame","shared_actors":3}]`, buf.String())

	buf.Reset()
	require.NoError(t, Write(&buf, FormatJSON, nil, Options{}))
	var decoded []credit.Recommendation
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.NotNil(t, decoded)
	assert.Empty(t, decoded)
}

func TestWriteMarkdown(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatMarkdown, sampleRecs, Options{Title: "Shared cast", RunID: "run-1"}))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "# Shared cast"))
	assert.Contains(t, out, "Run `run-1`")
	assert.Contains(t, out, "| # | movie_or_TV_name | number of shared actors |")
	assert.Contains(t, out, "| 1 | Avengers: Endgame | 3 |")
	assert.Contains(t, out, `| 3 | Lost \| Found | 1 |`)

	buf.Reset()
	require.NoError(t, Write(&buf, FormatMarkdown, nil, Options{}))
	assert.Contains(t, buf.String(), "# Movies with shared actors")
	assert.Contains(t, buf.String(), "No credits were found")
}

func TestWriteUnknownFormat(t *testing.T) {
	t.Parallel()

	require.Error(t, Write(&bytes.Buffer{}, Format("xml"), sampleRecs, Options{}))
}

func TestFormatMetadata(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "application/json", FormatJSON.ContentType())
	assert.Equal(t, "md", FormatMarkdown.Extension())
	assert.Equal(t, "csv", FormatCSV.Extension())
	assert.Equal(t, "txt", FormatTable.Extension())
	assert.Contains(t, FormatTable.ContentType(), "text/plain")
}
