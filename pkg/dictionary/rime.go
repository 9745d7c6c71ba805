// RIME-compatible dictionary file parsing (§4.3).
package dictionary

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// rimeHeader holds the fields we care about from a RIME dict.yaml header
// block; everything else in the header is discarded since the
// authoritative copy of this metadata lives in storage.
type rimeHeader struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// loadedEntry is a parsed (text, pinyin, frequency) triple prior to index
// construction.
type loadedEntry struct {
	text   string
	pinyin string
	freq   int64
}

// parseRimeFile reads a RIME-compatible dictionary file (path ending in
// .dict.yaml or .yaml) and returns its entries plus the parsed header. Any
// other extension fails with ErrUnsupportedFormat.
func parseRimeFile(path string) ([]loadedEntry, rimeHeader, error) {
	if !strings.HasSuffix(path, ".dict.yaml") && !strings.HasSuffix(path, ".yaml") {
		return nil, rimeHeader{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, rimeHeader{}, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	defer f.Close()

	var header rimeHeader
	var entries []loadedEntry

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	inHeader := false
	var headerLines []string

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			continue
		}
		if trimmed == "---" {
			inHeader = true
			continue
		}
		if trimmed == "..." {
			inHeader = false
			if len(headerLines) > 0 {
				// A malformed header doesn't invalidate the body: metadata
				// lives in storage, not the file.
				_ = yaml.Unmarshal([]byte(strings.Join(headerLines, "\n")), &header)
			}
			continue
		}
		if inHeader {
			headerLines = append(headerLines, line)
			continue
		}

		text, pinyin, freq, ok := parseBodyLine(line)
		if !ok {
			continue
		}
		entries = append(entries, loadedEntry{text: text, pinyin: pinyin, freq: freq})
	}
	if err := scanner.Err(); err != nil {
		return nil, rimeHeader{}, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	if len(entries) == 0 {
		return nil, header, ErrEmptyDictionary
	}
	return entries, header, nil
}

// parseBodyLine parses one tab-separated body line of
// text<TAB>pinyin[<TAB>frequency]. Lines where text or pinyin is empty
// after trim are rejected.
func parseBodyLine(line string) (text, pinyin string, freq int64, ok bool) {
	fields := strings.Split(line, "\t")
	if len(fields) < 2 {
		return "", "", 0, false
	}
	text = strings.TrimSpace(fields[0])
	pinyin = strings.TrimSpace(fields[1])
	if text == "" || pinyin == "" {
		return "", "", 0, false
	}
	if len(fields) >= 3 {
		if n, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64); err == nil {
			freq = n
		}
	}
	return text, pinyin, freq, true
}

// resolvePath resolves a dictionary's source_path as absolute, or relative
// to the registry's shared data directory.
func resolvePath(dataDir, sourcePath string) string {
	if filepath.IsAbs(sourcePath) {
		return sourcePath
	}
	return filepath.Join(dataDir, sourcePath)
}
