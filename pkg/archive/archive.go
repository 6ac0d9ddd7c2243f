// Package archive stores raw hierarchy dumps on disk and replays them as an
// offline device.
//
// An archive is a directory named by its capture id holding manifest.json
// and one compressed file per window dump.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/cyborg/pkg/logger"
	"github.com/devicelab-dev/cyborg/pkg/snapshot"
	"github.com/devicelab-dev/cyborg/pkg/view"
)

const manifestName = "manifest.json"

var log = logger.Component("archive")

// Manifest describes one capture.
type Manifest struct {
	ID        string    `json:"id"`
	Device    string    `json:"device"`
	CreatedAt time.Time `json:"createdAt"`
	Width     int       `json:"displayWidth"`
	Height    int       `json:"displayHeight"`
	Entries   []Entry   `json:"entries"`
}

// Entry is one stored window dump.
type Entry struct {
	Process     string      `json:"process"`
	WindowID    int32       `json:"windowId"`
	Title       string      `json:"title"`
	File        string      `json:"file"`
	Size        int         `json:"size"`
	Compression Compression `json:"compression"`
}

// Window returns the window the entry was dumped from.
func (e Entry) Window() view.Window {
	return view.Window{Title: e.Title, ID: e.WindowID}
}

// Writer records dumps into a new archive. It implements snapshot.Recorder
// and is safe for concurrent use.
type Writer struct {
	dir         string
	compression Compression

	mu       sync.Mutex
	manifest Manifest
	err      error
}

// Create starts an archive under root for the named device.
func Create(root, device string, width, height int, c Compression) (*Writer, error) {
	if c == "" {
		c = CompressionZstd
	}
	id := uuid.New().String()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	return &Writer{
		dir:         dir,
		compression: c,
		manifest: Manifest{
			ID:        id,
			Device:    device,
			CreatedAt: time.Now().UTC(),
			Width:     width,
			Height:    height,
		},
	}, nil
}

// Dir returns the archive directory.
func (w *Writer) Dir() string { return w.dir }

// ID returns the capture id.
func (w *Writer) ID() string { return w.manifest.ID }

// Record stores one dump. Failures are logged and reported by Close.
func (w *Writer) Record(process string, win view.Window, data []byte) {
	if err := w.record(process, win, data); err != nil {
		log.Error("record window %s: %v", win.Encode(), err)
		w.mu.Lock()
		if w.err == nil {
			w.err = err
		}
		w.mu.Unlock()
	}
}

func (w *Writer) record(process string, win view.Window, data []byte) error {
	out, c, err := compress(data, w.compression)
	if err != nil {
		return err
	}

	w.mu.Lock()
	name := fmt.Sprintf("%03d-%s.dump", len(w.manifest.Entries), win.Encode())
	if c != CompressionNone {
		name += "." + string(c)
	}
	w.manifest.Entries = append(w.manifest.Entries, Entry{
		Process:     process,
		WindowID:    win.ID,
		Title:       win.Title,
		File:        name,
		Size:        len(data),
		Compression: c,
	})
	w.mu.Unlock()

	return os.WriteFile(filepath.Join(w.dir, name), out, 0o644)
}

// Close writes the manifest and returns the first recording error.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.MarshalIndent(w.manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(w.dir, manifestName), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	log.Info("archived %d dumps to %s", len(w.manifest.Entries), w.dir)
	return w.err
}

// Archive is a stored capture opened for reading.
type Archive struct {
	dir      string
	manifest Manifest
}

// Open reads the archive in dir.
func Open(dir string) (*Archive, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName)) //#nosec G304 -- user-provided archive path
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &Archive{dir: dir, manifest: m}, nil
}

// Resolve opens ref either as a directory path or as a capture id (or
// unique id prefix) under root.
func Resolve(root, ref string) (*Archive, error) {
	if fi, err := os.Stat(ref); err == nil && fi.IsDir() {
		return Open(ref)
	}
	manifests, err := List(root)
	if err != nil {
		return nil, err
	}
	var found []Manifest
	for _, m := range manifests {
		if strings.HasPrefix(m.ID, ref) {
			found = append(found, m)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("no archive %q in %s", ref, root)
	case 1:
		return Open(filepath.Join(root, found[0].ID))
	}
	return nil, fmt.Errorf("archive id %q is ambiguous (%d matches)", ref, len(found))
}

// List returns the manifests of all archives under root, oldest first.
func List(root string) ([]Manifest, error) {
	dirs, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Manifest
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		a, err := Open(filepath.Join(root, d.Name()))
		if err != nil {
			log.Debug("skipping %s: %v", d.Name(), err)
			continue
		}
		out = append(out, a.manifest)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Manifest returns the archive's manifest.
func (a *Archive) Manifest() Manifest { return a.manifest }

// Read returns the raw dump of e.
func (a *Archive) Read(e Entry) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(a.dir, filepath.Base(e.File))) //#nosec G304 -- name from manifest, base only
	if err != nil {
		return nil, err
	}
	return decompress(data, e.Compression, e.Size)
}

// Device replays the archive as a snapshot.Device with the recorded
// processes, windows and display size.
func (a *Archive) Device() snapshot.Device {
	return &replayDevice{archive: a}
}

type replayDevice struct {
	archive *Archive
}

func (d *replayDevice) Processes(context.Context) ([]snapshot.Process, error) {
	var procs []snapshot.Process
	byName := map[string]*replayProcess{}
	for _, e := range d.archive.manifest.Entries {
		p, ok := byName[e.Process]
		if !ok {
			p = &replayProcess{name: e.Process, archive: d.archive, entries: map[int32]Entry{}}
			byName[e.Process] = p
			procs = append(procs, p)
		}
		p.windows = append(p.windows, e.Window())
		p.entries[e.WindowID] = e
	}
	return procs, nil
}

func (d *replayDevice) DisplaySize() (int, int) {
	return d.archive.manifest.Width, d.archive.manifest.Height
}

type replayProcess struct {
	name    string
	archive *Archive
	windows []view.Window
	entries map[int32]Entry
}

func (p *replayProcess) Name() string           { return p.name }
func (p *replayProcess) HasViewHierarchy() bool { return true }

func (p *replayProcess) Windows(context.Context) ([]view.Window, error) {
	return p.windows, nil
}

func (p *replayProcess) Dump(_ context.Context, w view.Window) ([]byte, error) {
	e, ok := p.entries[w.ID]
	if !ok {
		return nil, nil
	}
	return p.archive.Read(e)
}
