package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"narrate/internal/fileutil"
	"narrate/internal/services"
)

const stageStore = "store"

// Read returns the artifact stored under key. A missing artifact yields
// services.ErrNotFound and a zero-length one services.ErrEmptyInput.
func (s *Store) Read(scope Scope, key string) ([]byte, error) {
	if err := ValidateScope(scope); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageStore, "read", key, err)
	}
	data, err := os.ReadFile(s.Path(scope, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, stageStore, "read", fmt.Sprintf("%s %s", scope, key), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageStore, "read", fmt.Sprintf("%s %s", scope, key), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, services.Wrap(services.ErrEmptyInput, stageStore, "read", fmt.Sprintf("%s %s is empty", scope, key), nil)
	}
	return data, nil
}

// Write replaces the artifact under key atomically.
func (s *Store) Write(scope Scope, key string, data []byte) error {
	if err := ValidateScope(scope); err != nil {
		return services.Wrap(services.ErrConfiguration, stageStore, "write", key, err)
	}
	if err := fileutil.WriteFileAtomic(s.Path(scope, key), data, 0o644); err != nil {
		return services.Wrap(services.ErrExternalTool, stageStore, "write", fmt.Sprintf("%s %s", scope, key), err)
	}
	return nil
}

// WriteStream replaces the artifact under key atomically with content
// produced by write.
func (s *Store) WriteStream(scope Scope, key string, write func(io.Writer) error) error {
	if err := ValidateScope(scope); err != nil {
		return services.Wrap(services.ErrConfiguration, stageStore, "write", key, err)
	}
	if err := fileutil.WriteAtomic(s.Path(scope, key), 0o644, write); err != nil {
		return services.Wrap(services.ErrExternalTool, stageStore, "write", fmt.Sprintf("%s %s", scope, key), err)
	}
	return nil
}

// WriteIfAbsent writes data only when no artifact exists under key. It reports
// whether a write happened. Callers racing on the same key hold the scope via
// Update.
func (s *Store) WriteIfAbsent(scope Scope, key string, data []byte) (bool, error) {
	if s.Exists(scope, key) {
		return false, nil
	}
	if err := s.Write(scope, key, data); err != nil {
		return false, err
	}
	return true, nil
}

// ReadJSON decodes the artifact under key into v.
func (s *Store) ReadJSON(scope Scope, key string, v any) error {
	data, err := s.Read(scope, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return services.Wrap(services.ErrStructuralFormat, stageStore, "decode", fmt.Sprintf("%s %s", scope, key), err)
	}
	return nil
}

// WriteJSON encodes v with two-space indentation, keeping non-ASCII text
// readable, and writes it atomically.
func (s *Store) WriteJSON(scope Scope, key string, v any) error {
	data, err := EncodeJSON(v)
	if err != nil {
		return services.Wrap(services.ErrStructuralFormat, stageStore, "encode", fmt.Sprintf("%s %s", scope, key), err)
	}
	return s.Write(scope, key, data)
}

// EncodeJSON renders v the way the store persists JSON artifacts.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Exists reports whether an artifact (file or directory) exists under key.
func (s *Store) Exists(scope Scope, key string) bool {
	if ValidateScope(scope) != nil {
		return false
	}
	_, err := os.Stat(s.Path(scope, key))
	return err == nil
}

// Remove deletes the artifact under key. Missing artifacts are not an error.
func (s *Store) Remove(scope Scope, key string) error {
	if err := ValidateScope(scope); err != nil {
		return services.Wrap(services.ErrConfiguration, stageStore, "remove", key, err)
	}
	if err := os.RemoveAll(s.Path(scope, key)); err != nil {
		return services.Wrap(services.ErrExternalTool, stageStore, "remove", fmt.Sprintf("%s %s", scope, key), err)
	}
	return nil
}
