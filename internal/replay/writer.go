package replay

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var bundleNameCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

const (
	eventsFile   = "events.jsonl.sz"
	framesFile   = "frames.bin.zst"
	manifestFile = "manifest.json"
	headerFile   = "header.json"

	// frameHeaderSize is frame number, game time, capture time and payload length.
	frameHeaderSize = 8 + 8 + 8 + 4
	// maxPendingFrames bounds how many frames wait in memory between flushes.
	maxPendingFrames = 64
)

// ErrWriterClosed is returned when appending to a closed writer.
var ErrWriterClosed = errors.New("replay writer closed")

// Event is one line of the mission event log.
type Event struct {
	Frame      uint64          `json:"frame"`
	GameMs     int64           `json:"game_ms"`
	CapturedAt string          `json:"captured_at"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Frame is one encoded world snapshot in the frame stream.
type Frame struct {
	Frame      uint64
	GameMs     int64
	CapturedAt time.Time
	Payload    []byte
}

// Manifest describes the bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version         int    `json:"version"`
	Mission         string `json:"mission"`
	CreatedAt       string `json:"created_at"`
	FrameIntervalMs int    `json:"frame_interval_ms"`
	EventsPath      string `json:"events_path"`
	FramesPath      string `json:"frames_path"`
}

// Writer streams a mission recording to disk: a snappy compressed JSONL event log
// and a zstd compressed stream of length prefixed frames.
type Writer struct {
	mu          sync.Mutex
	dir         string
	now         func() time.Time
	eventFile   *os.File
	eventStream *snappy.Writer
	frameFile   *os.File
	frameStream *zstd.Encoder
	pending     []Frame
	header      Header
	closed      bool
	written     int64
}

// NewWriter creates a bundle directory under root named after the mission and
// opens the compressed sinks.
func NewWriter(root, mission string, frameInterval time.Duration, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("replay root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := bundleNameCleaner.ReplaceAllString(mission, "")
	if cleaned == "" {
		cleaned = "mission"
	}
	created := clock().UTC()
	path := filepath.Join(root, fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z")))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, Manifest{}, fmt.Errorf("create bundle: %w", err)
	}

	manifest := Manifest{
		Version:         1,
		Mission:         mission,
		CreatedAt:       created.Format(time.RFC3339Nano),
		FrameIntervalMs: int(frameInterval / time.Millisecond),
		EventsPath:      eventsFile,
		FramesPath:      framesFile,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, Manifest{}, err
	}
	if err := os.WriteFile(filepath.Join(path, manifestFile), data, 0o644); err != nil {
		return nil, Manifest{}, fmt.Errorf("write manifest: %w", err)
	}

	eventFile, err := os.Create(filepath.Join(path, eventsFile))
	if err != nil {
		return nil, Manifest{}, fmt.Errorf("create event log: %w", err)
	}
	frameFile, err := os.Create(filepath.Join(path, framesFile))
	if err != nil {
		eventFile.Close()
		return nil, Manifest{}, fmt.Errorf("create frame stream: %w", err)
	}
	frameStream, err := zstd.NewWriter(frameFile, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		eventFile.Close()
		frameFile.Close()
		return nil, Manifest{}, fmt.Errorf("open zstd encoder: %w", err)
	}

	return &Writer{
		dir:         path,
		now:         clock,
		eventFile:   eventFile,
		eventStream: snappy.NewBufferedWriter(eventFile),
		frameFile:   frameFile,
		frameStream: frameStream,
		header:      Header{SchemaVersion: HeaderSchemaVersion, Mission: mission, FilePointer: manifestFile},
	}, manifest, nil
}

// Directory exposes the directory backing the bundle.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// SetHeader records the metadata written next to the bundle on Close.
func (w *Writer) SetHeader(seed string, regions []string, terrain TerrainParameters) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.header.Seed = seed
	w.header.Regions = append([]string(nil), regions...)
	w.header.TerrainParams = terrain.Clone()
	w.mu.Unlock()
}

// AppendEvent writes one JSON event line and flushes it to the compressed log.
func (w *Writer) AppendEvent(frame uint64, gameMs int64, eventType string, payload any) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	line, err := json.Marshal(Event{
		Frame:      frame,
		GameMs:     gameMs,
		CapturedAt: w.now().UTC().Format(time.RFC3339Nano),
		Type:       eventType,
		Payload:    raw,
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	line = append(line, '\n')
	if _, err := w.eventStream.Write(line); err != nil {
		return err
	}
	w.written += int64(len(line))
	return w.eventStream.Flush()
}

// AppendFrame stages an encoded snapshot. Frames reach disk in batches.
func (w *Writer) AppendFrame(frame uint64, gameMs int64, payload []byte) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	clone := append([]byte(nil), payload...)
	captured := w.now().UTC()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	w.pending = append(w.pending, Frame{Frame: frame, GameMs: gameMs, CapturedAt: captured, Payload: clone})
	if len(w.pending) >= maxPendingFrames {
		return w.flushLocked()
	}
	return nil
}

// Pending returns how many frames are staged but not yet written.
func (w *Writer) Pending() int {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Written returns the uncompressed bytes handed to the sinks so far.
func (w *Writer) Written() int64 {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Flush writes staged frames and pushes both streams to disk.
func (w *Writer) Flush() error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := w.frameStream.Flush(); err != nil {
		return err
	}
	return w.eventStream.Flush()
}

// Close writes the header, flushes all buffers and releases file handles.
// Closing twice is a no-op.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	//1.- Attempt every step and surface the first failure.
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(WriteHeader(filepath.Join(w.dir, headerFile), w.header))
	keep(w.flushLocked())
	keep(w.eventStream.Close())
	keep(w.eventFile.Close())
	keep(w.frameStream.Close())
	keep(w.frameFile.Close())
	return firstErr
}

// flushLocked writes staged frames to the zstd stream; callers hold the mutex.
func (w *Writer) flushLocked() error {
	header := make([]byte, frameHeaderSize)
	for _, frame := range w.pending {
		binary.LittleEndian.PutUint64(header[0:8], frame.Frame)
		binary.LittleEndian.PutUint64(header[8:16], uint64(frame.GameMs))
		binary.LittleEndian.PutUint64(header[16:24], uint64(frame.CapturedAt.UnixNano()))
		binary.LittleEndian.PutUint32(header[24:28], uint32(len(frame.Payload)))
		if _, err := w.frameStream.Write(header); err != nil {
			return err
		}
		if _, err := w.frameStream.Write(frame.Payload); err != nil {
			return err
		}
		w.written += int64(frameHeaderSize + len(frame.Payload))
	}
	w.pending = w.pending[:0]
	return nil
}
