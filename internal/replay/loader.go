package replay

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// maxEventLine bounds one JSONL record in the event log.
const maxEventLine = 1 << 20

// Bundle is a mission recording read back from disk.
type Bundle struct {
	Dir      string
	Manifest Manifest
	Header   Header
	Events   []Event
	Frames   []Frame
}

// TimelineEntry is one event or frame in game-time order.
type TimelineEntry struct {
	Frame  uint64
	GameMs int64
	Type   string
	Event  *Event
	Data   *Frame
}

// Open reads a bundle directory. A missing header is tolerated because it is only
// written when the recording closes cleanly.
func Open(dir string) (*Bundle, error) {
	if dir == "" {
		return nil, fmt.Errorf("replay path must be provided")
	}
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	b := &Bundle{Dir: dir}
	if err := json.Unmarshal(data, &b.Manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if header, err := ReadHeader(filepath.Join(dir, headerFile)); err == nil {
		b.Header = header
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if b.Events, err = readEvents(filepath.Join(dir, b.Manifest.EventsPath)); err != nil {
		return nil, err
	}
	if b.Frames, err = readFrames(filepath.Join(dir, b.Manifest.FramesPath)); err != nil {
		return nil, err
	}
	return b, nil
}

func readEvents(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	var events []Event
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("decode event %d: %w", len(events)+1, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	return events, nil
}

func readFrames(path string) ([]Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame stream: %w", err)
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("open zstd decoder: %w", err)
	}
	defer decoder.Close()

	var frames []Frame
	header := make([]byte, frameHeaderSize)
	for {
		//1.- A clean end of stream may only fall on a frame boundary.
		if _, err := io.ReadFull(decoder, header); err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			return nil, fmt.Errorf("read frame %d header: %w", len(frames)+1, err)
		}
		frame := Frame{
			Frame:      binary.LittleEndian.Uint64(header[0:8]),
			GameMs:     int64(binary.LittleEndian.Uint64(header[8:16])),
			CapturedAt: time.Unix(0, int64(binary.LittleEndian.Uint64(header[16:24]))).UTC(),
			Payload:    make([]byte, binary.LittleEndian.Uint32(header[24:28])),
		}
		if _, err := io.ReadFull(decoder, frame.Payload); err != nil {
			return nil, fmt.Errorf("read frame %d payload: %w", len(frames)+1, err)
		}
		frames = append(frames, frame)
	}
}

// Timeline merges events and frames ordered by game time, then frame number,
// with frames before events at the same instant.
func (b *Bundle) Timeline() []TimelineEntry {
	if b == nil {
		return nil
	}
	entries := make([]TimelineEntry, 0, len(b.Events)+len(b.Frames))
	for i := range b.Frames {
		f := &b.Frames[i]
		entries = append(entries, TimelineEntry{Frame: f.Frame, GameMs: f.GameMs, Type: "frame", Data: f})
	}
	for i := range b.Events {
		ev := &b.Events[i]
		entries = append(entries, TimelineEntry{Frame: ev.Frame, GameMs: ev.GameMs, Type: ev.Type, Event: ev})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, c := entries[i], entries[j]
		if a.GameMs != c.GameMs {
			return a.GameMs < c.GameMs
		}
		if a.Frame != c.Frame {
			return a.Frame < c.Frame
		}
		return a.Data != nil && c.Data == nil
	})
	return entries
}

// Replay walks the timeline and stops at the first callback error.
func (b *Bundle) Replay(apply func(TimelineEntry) error) error {
	if b == nil {
		return fmt.Errorf("bundle not loaded")
	}
	if apply == nil {
		return fmt.Errorf("replay callback must be provided")
	}
	for _, entry := range b.Timeline() {
		if err := apply(entry); err != nil {
			return err
		}
	}
	return nil
}
