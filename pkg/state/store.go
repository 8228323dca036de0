package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Load reads a build state file. A missing file yields an error matching
// fs.ErrNotExist; bytes that do not decode yield an error wrapping ErrParse.
func Load(path string) (*BuildState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses the serialized form of a build state
func Decode(data []byte) (*BuildState, error) {
	s := New()
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing content", ErrParse)
	}
	if s.SourceFiles == nil {
		s.SourceFiles = make(map[string]*SourceFileRecord)
	}

	loaded := s.SourceFiles
	s.SourceFiles = make(map[string]*SourceFileRecord, len(loaded))
	for key, rec := range loaded {
		if rec == nil {
			return nil, fmt.Errorf("%w: empty record for %q", ErrParse, key)
		}
		rec.Path = key
		if err := s.Put(rec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
	}
	return s, nil
}

// Encode serializes the state. Map keys come out sorted, so identical
// states produce identical bytes. The state itself is only read, so a
// served state can be encoded from several goroutines.
func (s *BuildState) Encode() ([]byte, error) {
	out := *s
	out.SourceFiles = make(map[string]*SourceFileRecord, len(s.SourceFiles))
	for p, rec := range s.SourceFiles {
		c := *rec
		if c.Dependencies == nil {
			c.Dependencies = []string{}
		}
		if c.Issues == nil {
			c.Issues = []Diagnostic{}
		}
		if c.OutputFiles == nil {
			c.OutputFiles = map[string]time.Time{}
		}
		out.SourceFiles[p] = &c
	}

	b, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Save fully replaces the file at path with the serialized state
func (s *BuildState) Save(path string) error {
	data, err := s.Encode()
	if err != nil {
		return fmt.Errorf("marshal build state: %w", err)
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write build state: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
