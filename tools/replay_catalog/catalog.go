package replaycatalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/replay"
)

const headerName = "header.json"

// Entry describes one recorded mission bundle.
type Entry struct {
	Dir        string          `json:"dir"`
	HeaderPath string          `json:"header_path"`
	ReplayPath string          `json:"replay_path"`
	Header     replay.Header   `json:"header"`
	Manifest   replay.Manifest `json:"manifest"`
	Bytes      int64           `json:"bytes"`
}

// List finds every bundle below root, ordered by mission then recording time.
func List(root string) ([]Entry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != headerName {
			return nil
		}
		entry, err := readEntry(path)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Header.Mission != b.Header.Mission {
			return a.Header.Mission < b.Header.Mission
		}
		if a.Manifest.CreatedAt != b.Manifest.CreatedAt {
			return a.Manifest.CreatedAt < b.Manifest.CreatedAt
		}
		return a.Dir < b.Dir
	})
	return entries, nil
}

// readEntry loads the header, the manifest it points at when present, and the bundle size.
func readEntry(headerPath string) (Entry, error) {
	header, err := replay.ReadHeader(headerPath)
	if err != nil {
		return Entry{}, err
	}
	dir := filepath.Dir(headerPath)
	entry := Entry{Dir: dir, HeaderPath: headerPath, Header: header}
	entry.ReplayPath = header.FilePointer
	if !filepath.IsAbs(entry.ReplayPath) {
		entry.ReplayPath = filepath.Join(dir, entry.ReplayPath)
	}

	//1.- A bundle cut short before its manifest landed is still listed.
	data, err := os.ReadFile(entry.ReplayPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Entry{}, err
	default:
		if err := json.Unmarshal(data, &entry.Manifest); err != nil {
			return Entry{}, fmt.Errorf("decode %s: %w", entry.ReplayPath, err)
		}
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return Entry{}, err
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if fi, err := f.Info(); err == nil {
			entry.Bytes += fi.Size()
		}
	}
	return entry, nil
}

// Filter keeps the entries recorded for mission, matched case-insensitively.
// An empty mission keeps everything.
func Filter(entries []Entry, mission string) []Entry {
	mission = strings.TrimSpace(mission)
	if mission == "" {
		return entries
	}
	var out []Entry
	for _, e := range entries {
		if strings.EqualFold(e.Header.Mission, mission) {
			out = append(out, e)
		}
	}
	return out
}

// MarshalEntries renders entries as indented JSON for the CLI.
func MarshalEntries(entries []Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}
