// ABOUTME: Directory-backed store of instance records, one JSON file per instance.
// ABOUTME: Writes go through a temp file, fsync and rename so readers never see partial records.

package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const recordExt = ".json"

// Records reads and writes instance records under one directory.
type Records struct {
	dir string
}

// NewRecords creates the directory if needed.
func NewRecords(dir string) (*Records, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating records dir: %w", err)
	}
	return &Records{dir: dir}, nil
}

// Dir returns the records directory.
func (r *Records) Dir() string {
	return r.dir
}

// Path returns the record path for id.
func (r *Records) Path(id string) string {
	return filepath.Join(r.dir, id+recordExt)
}

// IDFromPath returns the instance id for a record path, or false for
// anything that is not a record (temp files, other extensions).
func IDFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, recordExt) {
		return "", false
	}
	id := strings.TrimSuffix(base, recordExt)
	return id, ValidID(id)
}

// Read loads the record for id.
func (r *Records) Read(id string) (*Instance, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: bad id %q", ErrInvalidInstance, id)
	}
	data, err := os.ReadFile(r.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", id, err)
	}
	var inst Instance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("%w: parsing record %s: %v", ErrInvalidInstance, id, err)
	}
	if inst.ID != id {
		return nil, fmt.Errorf("%w: record %s carries id %q", ErrInvalidInstance, id, inst.ID)
	}
	return &inst, nil
}

// Write atomically replaces the record for inst.ID.
func (r *Records) Write(inst *Instance) error {
	if !ValidID(inst.ID) {
		return fmt.Errorf("%w: bad id %q", ErrInvalidInstance, inst.ID)
	}
	data, err := json.MarshalIndent(inst, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	data = append(data, '\n')

	path := r.Path(inst.ID)
	tmp := path + ".tmp"

	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temporary record: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temporary record: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing temporary record: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temporary record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming record into place: %w", err)
	}

	if dir, err := os.Open(r.dir); err == nil {
		dir.Sync()
		dir.Close()
	}
	return nil
}

// Delete removes the record for id. Missing records are not an error.
func (r *Records) Delete(id string) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: bad id %q", ErrInvalidInstance, id)
	}
	if err := os.Remove(r.Path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting record %s: %w", id, err)
	}
	return nil
}

// List returns every readable record, sorted by id. Unreadable records
// are reported in the joined error but do not hide the others.
func (r *Records) List() ([]*Instance, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	var (
		out  []*Instance
		errs []error
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := IDFromPath(e.Name())
		if !ok {
			continue
		}
		inst, err := r.Read(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, errors.Join(errs...)
}
