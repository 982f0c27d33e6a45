package subs

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/clipkit/clipkit/internal/model"
)

func testLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.Disabled)
}

const sampleSRT = `1
00:00:10,000 --> 00:00:12,000
Hello world

2
00:01:00,000 --> 00:01:02,500
well hello there
`

func TestParse_Basic(t *testing.T) {
	cues, err := Parse([]byte(sampleSRT), testLogger())
	require.NoError(t, err)
	require.Len(t, cues, 2)
	assert.Equal(t, 1, cues[0].Index)
	assert.Equal(t, 10.0, cues[0].Start)
	assert.Equal(t, 12.0, cues[0].End)
	assert.Equal(t, "Hello world", cues[0].Text)
	assert.Equal(t, "well hello there", cues[1].Text)
}

func TestParse_SkipsMalformedBlock(t *testing.T) {
	data := sampleSRT + "\n3\nnot-a-time-line\nsome text\n"
	cues, err := Parse([]byte(data), testLogger())
	require.NoError(t, err)
	assert.Len(t, cues, 2)
}

func TestParse_GBKEncoding(t *testing.T) {
	raw := "1\n00:00:01,000 --> 00:00:02,000\n你好世界\n"
	encoded, err := simplifiedchinese.GBK.NewEncoder().String(raw)
	require.NoError(t, err)

	cues, err := Parse([]byte(encoded), testLogger())
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, "你好世界", cues[0].Text)
}

func TestParse_Latin1Fallback(t *testing.T) {
	// 0xE9 is "é" in Latin-1 but invalid as a lone UTF-8/GBK-decodable byte.
	data := append([]byte("1\n00:00:01,000 --> 00:00:02,000\ncaf\xe9\n"))
	cues, err := Parse(data, testLogger())
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, "café", cues[0].Text)
}

func TestToSecondsFromSecondsRoundTrip(t *testing.T) {
	seconds, err := ToSeconds("01:02:03,456")
	require.NoError(t, err)
	assert.InDelta(t, 1*3600+2*60+3+0.456, seconds, 0.001)
	assert.Equal(t, "01:02:03,456", FromSeconds(seconds))
}

func TestFormatParseRoundTrip(t *testing.T) {
	cues := []model.Cue{
		{Index: 1, Start: 10, End: 12, Text: "Hello world"},
		{Index: 2, Start: 60, End: 62.5, Text: "well hello there"},
	}
	formatted := Format(cues)
	reparsed, err := Parse(formatted, testLogger())
	require.NoError(t, err)
	assert.Equal(t, cues, reparsed)
}

func TestCueOrderingInvariant(t *testing.T) {
	cues, err := Parse([]byte(sampleSRT), testLogger())
	require.NoError(t, err)
	for _, c := range cues {
		assert.Less(t, c.Start, c.End)
	}
}
