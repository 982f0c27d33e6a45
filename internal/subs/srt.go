// Package subs parses and formats SRT-style timed-text cue files,
// tolerating three character encodings and skipping malformed blocks.
package subs

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/clipkit/clipkit/internal/apperr"
	"github.com/clipkit/clipkit/internal/model"
)

var blockSplit = regexp.MustCompile(`\r?\n\s*\r?\n`)
var timeLine = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2}),(\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2}),(\d{3})$`)

// Parse decodes data as SRT, trying UTF-8, then GBK, then Latin-1 in
// order; the first encoding to decode cleanly wins (Latin-1 never
// fails, so it is the eventual backstop). Malformed cue blocks are
// skipped with a warning rather than aborting the parse.
func Parse(data []byte, log zerolog.Logger) ([]model.Cue, error) {
	text, encName, err := decode(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDecodeError, "unable to decode subtitle file", err)
	}
	log.Debug().Str("encoding", encName).Msg("decoded subtitle file")

	blocks := blockSplit.Split(strings.TrimSpace(text), -1)
	cues := make([]model.Cue, 0, len(blocks))

	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		if len(lines) < 3 {
			log.Warn().Str("block", truncate(block, 50)).Msg("skipping malformed cue block")
			continue
		}

		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			log.Warn().Str("block", truncate(block, 50)).Msg("skipping cue block with non-numeric index")
			continue
		}

		start, end, err := parseTimeLine(strings.TrimSpace(lines[1]))
		if err != nil {
			log.Warn().Str("block", truncate(block, 50)).Msg("skipping cue block with malformed time line")
			continue
		}

		cues = append(cues, model.Cue{
			Index: index,
			Start: start,
			End:   end,
			Text:  strings.Join(lines[2:], "\n"),
		})
	}

	return cues, nil
}

// Format is the inverse of Parse, used by round-trip tests.
func Format(cues []model.Cue) []byte {
	var buf bytes.Buffer
	for i, c := range cues {
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "%d\n%s --> %s\n%s\n", c.Index, FromSeconds(c.Start), FromSeconds(c.End), c.Text)
	}
	return buf.Bytes()
}

// ToSeconds converts an "HH:MM:SS,mmm" stamp to fractional seconds.
func ToSeconds(stamp string) (float64, error) {
	return parseSingleStamp(stamp)
}

// FromSeconds is the inverse of ToSeconds.
func FromSeconds(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(seconds*1000 + 0.5)
	ms := total % 1000
	total /= 1000
	s := total % 60
	total /= 60
	m := total % 60
	h := total / 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func parseTimeLine(line string) (start, end float64, err error) {
	m := timeLine.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, fmt.Errorf("malformed time line: %q", line)
	}
	start, err = stampToSeconds(m[1], m[2], m[3], m[4])
	if err != nil {
		return 0, 0, err
	}
	end, err = stampToSeconds(m[5], m[6], m[7], m[8])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseSingleStamp(stamp string) (float64, error) {
	re := regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2}),(\d{3})$`)
	m := re.FindStringSubmatch(strings.TrimSpace(stamp))
	if m == nil {
		return 0, fmt.Errorf("malformed time stamp: %q", stamp)
	}
	return stampToSeconds(m[1], m[2], m[3], m[4])
}

func stampToSeconds(hh, mm, ss, ms string) (float64, error) {
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, err
	}
	s, err := strconv.Atoi(ss)
	if err != nil {
		return 0, err
	}
	frac, err := strconv.Atoi(ms)
	if err != nil {
		return 0, err
	}
	return float64(h*3600+m*60+s) + float64(frac)/1000.0, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func decode(data []byte) (string, string, error) {
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	if text, err := decodeWith(simplifiedchinese.GBK.NewDecoder(), data); err == nil {
		return text, "gbk", nil
	}

	text, err := decodeWith(charmap.ISO8859_1.NewDecoder(), data)
	if err != nil {
		return "", "", err
	}
	return text, "latin-1", nil
}

func decodeWith(dec *encoding.Decoder, data []byte) (string, error) {
	out, err := dec.Bytes(data)
	if err != nil {
		return "", err
	}
	// x/text decoders substitute U+FFFD for undecodable bytes instead of
	// failing, so a replacement rune in the output means the bytes were
	// not valid in this encoding.
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", fmt.Errorf("input is not valid in this encoding")
	}
	return string(out), nil
}

