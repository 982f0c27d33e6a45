// Package sidecar enumerates subtitle files co-located with a video.
package sidecar

import (
	"os"
	"path/filepath"
	"strings"
)

// subtitleExtensions is tried in this order; within each extension the
// bare (no language tag) variant is preferred, then each language tag
// in order.
var subtitleExtensions = []string{".srt", ".ass", ".ssa", ".vtt", ".sub"}

var languageTags = []string{"zh", "en", "chi", "eng", "chs", "cht", "cn"}

// Scan returns every sidecar subtitle candidate for videoPath, in
// deterministic preference order: by extension, then by language tag
// with the bare variant first.
func Scan(videoPath string) ([]string, error) {
	dir := filepath.Dir(videoPath)
	stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			present[e.Name()] = true
		}
	}

	var results []string
	for _, ext := range subtitleExtensions {
		bare := stem + ext
		if present[bare] {
			results = append(results, filepath.Join(dir, bare))
		}
		for _, lang := range languageTags {
			tagged := stem + "." + lang + ext
			if present[tagged] {
				results = append(results, filepath.Join(dir, tagged))
			}
		}
	}

	return results, nil
}
