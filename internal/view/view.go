// Package view persists named dashboard presets: a source reference, role
// overrides and dashboard parameters. No table data is stored.
package view

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/chainpulse/internal/classify"
	"github.com/KaramelBytes/chainpulse/internal/session"
	"github.com/KaramelBytes/chainpulse/internal/utils"
	"github.com/google/uuid"
)

const viewFileName = "view.json"

// View is a saved dashboard configuration.
type View struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Source      string              `json:"source"`
	Query       string              `json:"query,omitempty"`
	Roles       classify.Assignment `json:"roles"`
	Params      session.Params      `json:"params"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`

	// Not serialized: directory holding view.json
	rootDir string
}

// ValidateName rejects names that cannot be used as a directory.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("view name is required")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid view name %q", name)
	}
	return nil
}

// New constructs an in-memory view under dir/<name>. Call Save to persist.
func New(dir, name, source string) (*View, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	now := time.Now()
	return &View{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
		rootDir:   filepath.Join(dir, strings.TrimSpace(name)),
	}, nil
}

// Load reads dir/<name>/view.json.
func Load(dir, name string) (*View, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return loadFrom(filepath.Join(dir, name))
}

func loadFrom(root string) (*View, error) {
	path := filepath.Join(root, viewFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("view not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read view: %w", err)
	}
	var v View
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("parse view: %w", err)
	}
	v.rootDir = root
	return &v, nil
}

// RootDir returns the on-disk view directory.
func (v *View) RootDir() string { return v.rootDir }

// Save writes view.json atomically.
func (v *View) Save() error {
	if v.rootDir == "" {
		return errors.New("view root directory not set")
	}
	if err := utils.EnsureDir(v.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	v.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(v.rootDir, viewFileName), data)
}

// Options returns session options that apply the saved role overrides.
func (v *View) Options(base session.Options) session.Options {
	base.Roles = classify.Override(base.Roles, v.Roles)
	return base
}

// List loads every view under dir, ordered by name. A missing dir is empty.
func List(dir string) ([]*View, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read views dir: %w", err)
	}
	var out []*View
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		root := filepath.Join(dir, e.Name())
		if _, err := os.Stat(filepath.Join(root, viewFileName)); err != nil {
			continue
		}
		v, err := loadFrom(root)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
