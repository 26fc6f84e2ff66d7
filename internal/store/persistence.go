package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/overlay/internal/model"
)

// SchemaVersion is the current history file schema version.
const SchemaVersion = 1

const maxLineSize = 1024 * 1024

// ErrPersistenceClosed is returned when using a closed persistence.
var ErrPersistenceClosed = errors.New("persistence is closed")

// Persistence stores history entries.
type Persistence interface {
	// Load reads every stored entry in file order.
	Load() ([]model.Notification, error)
	// Append adds one entry.
	Append(n model.Notification) error
	// Rewrite replaces the stored entries.
	Rewrite(ns []model.Notification) error
	// Clear removes every stored entry.
	Clear() error
	// Close releases the file handle.
	Close() error
}

// schemaHeader is the first line of the history file.
type schemaHeader struct {
	SchemaVersion int   `json:"overlay_schema_version"`
	CreatedAt     int64 `json:"created_at"`
}

// JSONLPersistence stores entries as one JSON object per line after a
// schema header line.
type JSONLPersistence struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// NewJSONLPersistence opens or creates the history file at path.
func NewJSONLPersistence(path string) (*JSONLPersistence, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	p := &JSONLPersistence{path: path, file: file}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		if err := p.writeHeader(); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	return p, nil
}

// Path returns the file path.
func (p *JSONLPersistence) Path() string {
	return p.path
}

func (p *JSONLPersistence) writeHeader() error {
	data, err := json.Marshal(schemaHeader{
		SchemaVersion: SchemaVersion,
		CreatedAt:     time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	_, err = p.file.Write(append(data, '\n'))
	return err
}

// Load reads every entry. Malformed lines are skipped.
func (p *JSONLPersistence) Load() ([]model.Notification, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return nil, ErrPersistenceClosed
	}

	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", p.path, err)
	}
	entries, err := decodeEntries(p.file)
	if err != nil {
		return entries, err
	}
	if _, err := p.file.Seek(0, io.SeekEnd); err != nil {
		return entries, fmt.Errorf("seek %s: %w", p.path, err)
	}
	return entries, nil
}

// decodeEntries parses a history stream. A header from a newer schema is
// an error.
func decodeEntries(r io.Reader) ([]model.Notification, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var entries []model.Notification
	first := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if first {
			first = false
			var header schemaHeader
			if err := json.Unmarshal(line, &header); err == nil && header.SchemaVersion > 0 {
				if header.SchemaVersion > SchemaVersion {
					return nil, fmt.Errorf("unsupported schema version %d (max: %d)",
						header.SchemaVersion, SchemaVersion)
				}
				continue
			}
		}

		var n model.Notification
		if err := json.Unmarshal(line, &n); err != nil || n.ID == "" {
			continue
		}
		entries = append(entries, n)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("error reading history: %w", err)
	}
	return entries, nil
}

// Append adds one entry and syncs the file.
func (p *JSONLPersistence) Append(n model.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return ErrPersistenceClosed
	}
	if err := writeEntry(p.file, n); err != nil {
		return err
	}
	return p.file.Sync()
}

func writeEntry(w io.Writer, n model.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification %s: %w", n.ID, err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Rewrite replaces the file contents. The previous file is kept as .bak
// until the new one is written.
func (p *JSONLPersistence) Rewrite(ns []model.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}
	if err := p.reopenLocked(); err != nil {
		return err
	}
	for _, n := range ns {
		if err := writeEntry(p.file, n); err != nil {
			return err
		}
	}
	if err := p.file.Sync(); err != nil {
		return err
	}
	_ = os.Remove(p.path + ".bak")
	return nil
}

// Clear empties the file, leaving only the header.
func (p *JSONLPersistence) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}
	if err := p.reopenLocked(); err != nil {
		return err
	}
	if err := p.file.Sync(); err != nil {
		return err
	}
	_ = os.Remove(p.path + ".bak")
	return nil
}

// reopenLocked moves the current file to .bak and starts a fresh file with
// a header.
func (p *JSONLPersistence) reopenLocked() error {
	if p.file != nil {
		if err := p.file.Close(); err != nil {
			return err
		}
		p.file = nil
	}

	backup := p.path + ".bak"
	if err := os.Rename(p.path, backup); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	file, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0o600)
	if err != nil {
		_ = os.Rename(backup, p.path)
		return fmt.Errorf("failed to create new file: %w", err)
	}
	p.file = file
	return p.writeHeader()
}

// Close releases the file handle.
func (p *JSONLPersistence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.file != nil {
		err := p.file.Close()
		p.file = nil
		return err
	}
	return nil
}

// RecoverFromCorruption moves a damaged history file aside and rewrites the
// entries that still parse.
func RecoverFromCorruption(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	valid, _ := decodeLenient(f)
	_ = f.Close()

	backup := path + ".corrupted." + time.Now().Format("20060102-150405")
	if err := os.Rename(path, backup); err != nil {
		return 0, fmt.Errorf("failed to backup corrupted file: %w", err)
	}

	p, err := NewJSONLPersistence(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = p.Close() }()

	if err := p.Rewrite(valid); err != nil {
		return 0, err
	}
	return len(valid), nil
}

// decodeLenient is decodeEntries without the schema check.
func decodeLenient(r io.Reader) ([]model.Notification, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var entries []model.Notification
	for scanner.Scan() {
		var n model.Notification
		if err := json.Unmarshal(scanner.Bytes(), &n); err == nil && n.ID != "" {
			entries = append(entries, n)
		}
	}
	return entries, scanner.Err()
}
