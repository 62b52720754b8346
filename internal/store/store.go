// Package store keeps simulation definitions as files in one directory.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"

	"github.com/signalsfoundry/airtraffic-sim/core"
	"github.com/signalsfoundry/airtraffic-sim/model"
)

// DefaultName is used when an upload carries no usable name.
const DefaultName = "sim.json"

const (
	jsonExt = ".json"
	zstExt  = ".json.zst"
)

var (
	// ErrNotFound indicates no stored simulation has the requested name.
	ErrNotFound = errors.New("simulation not found")
	// ErrEmpty indicates an upload without content.
	ErrEmpty = errors.New("simulation file is empty")
)

// FileStore stores simulations under a single directory. Names are always
// sanitized, so callers may pass user input directly.
type FileStore struct {
	dir string
}

// Open returns a store rooted at dir, creating it if needed.
func Open(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create simulation dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir is the backing directory.
func (s *FileStore) Dir() string { return s.dir }

// List returns stored simulation file names in lexical order. A missing or
// unreadable directory lists as empty.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list simulations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		lower := strings.ToLower(e.Name())
		if strings.HasSuffix(lower, jsonExt) || strings.HasSuffix(lower, zstExt) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Get returns the JSON bytes of a stored simulation, decompressing .zst files.
func (s *FileStore) Get(name string) ([]byte, error) {
	safe := Sanitize(name)
	if safe == "" {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	raw, err := os.ReadFile(filepath.Join(s.dir, safe))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, safe)
		}
		return nil, fmt.Errorf("read simulation %q: %w", safe, err)
	}
	if !strings.HasSuffix(strings.ToLower(safe), zstExt) {
		return raw, nil
	}
	zr, err := zstd.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read simulation %q: %w", safe, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress simulation %q: %w", safe, err)
	}
	return out, nil
}

// Load decodes a stored simulation.
func (s *FileStore) Load(name string) (*model.SimulationConfig, error) {
	data, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	cfg, err := core.LoadSimulation(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("simulation %q: %w", Sanitize(name), err)
	}
	return cfg, nil
}

// Save writes data under the sanitized form of name and returns that name.
// Names ending in .json.zst are stored compressed. The write is atomic.
func (s *FileStore) Save(name string, data []byte) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", ErrEmpty
	}
	safe := NameForUpload(name)

	payload := data
	if strings.HasSuffix(strings.ToLower(safe), zstExt) {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return "", fmt.Errorf("compress simulation: %w", err)
		}
		payload = enc.EncodeAll(data, nil)
		enc.Close()
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("save simulation %q: %w", safe, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return "", fmt.Errorf("save simulation %q: %w", safe, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("save simulation %q: %w", safe, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, safe)); err != nil {
		return "", fmt.Errorf("save simulation %q: %w", safe, err)
	}
	return safe, nil
}

// SaveConfig encodes cfg as JSON and saves it.
func (s *FileStore) SaveConfig(name string, cfg *model.SimulationConfig) (string, error) {
	var buf bytes.Buffer
	if err := core.EncodeSimulation(&buf, cfg); err != nil {
		return "", err
	}
	return s.Save(name, buf.Bytes())
}

var (
	whitespace   = regexp.MustCompile(`\s+`)
	illegal      = regexp.MustCompile(`[/\\?<>:*|"\x00-\x1f\x80-\x9f]`)
	reserved     = regexp.MustCompile(`^\.+$`)
	windowsNames = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])(\..*)?$`)
	trailing     = regexp.MustCompile(`[. ]+$`)
)

const maxNameBytes = 255

// Sanitize turns user input into a safe single-component file name. It
// returns "" when nothing usable remains.
func Sanitize(name string) string {
	s := illegal.ReplaceAllString(name, "")
	if reserved.MatchString(s) || windowsNames.MatchString(s) {
		return ""
	}
	s = trailing.ReplaceAllString(s, "")
	for len(s) > maxNameBytes {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return s
}

// NameForUpload derives the stored name for an upload: whitespace becomes
// "-", the result is sanitized, and a .json extension is added when missing.
func NameForUpload(name string) string {
	safe := Sanitize(whitespace.ReplaceAllString(strings.TrimSpace(name), "-"))
	if safe == "" {
		return DefaultName
	}
	lower := strings.ToLower(safe)
	if !strings.HasSuffix(lower, jsonExt) && !strings.HasSuffix(lower, zstExt) {
		safe = Sanitize(safe + jsonExt)
		if len(safe) > maxNameBytes || !strings.HasSuffix(safe, jsonExt) {
			return DefaultName
		}
	}
	return safe
}
