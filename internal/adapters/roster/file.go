// Package roster reads and writes YAML sprint setup files.
package roster

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanschultz/sprinter/internal/app"
	"github.com/evanschultz/sprinter/internal/domain"
	"gopkg.in/yaml.v3"
)

// ErrInvalidFile reports a malformed setup file.
var ErrInvalidFile = errors.New("invalid sprint setup file")

// File is the top-level structure of a sprint setup file.
type File struct {
	Sprint      string  `yaml:"sprint"`
	WorkingDays int     `yaml:"working_days,omitempty"`
	Sprinters   []Entry `yaml:"sprinters"`
}

// Entry describes one sprinter and this sprint's availability.
type Entry struct {
	ID   string `yaml:"id,omitempty"`
	Name string `yaml:"name"`
	// Capacity is the base story point budget; zero falls back to history.
	Capacity  float64          `yaml:"capacity,omitempty"`
	History   []HistoryEntry   `yaml:"history,omitempty"`
	Exception *ExceptionConfig `yaml:"exception,omitempty"`
}

// HistoryEntry is one past sprint's delivery.
type HistoryEntry struct {
	Sprint    int `yaml:"sprint"`
	Assigned  int `yaml:"assigned"`
	Completed int `yaml:"completed"`
}

// ExceptionConfig is the YAML shape of a capacity exception.
type ExceptionConfig struct {
	VacationDays         int  `yaml:"vacation_days,omitempty"`
	OnCall               bool `yaml:"on_call,omitempty"`
	CustomerDelegate     bool `yaml:"customer_delegate,omitempty"`
	CustomerDelegateDays int  `yaml:"customer_delegate_days,omitempty"`
}

// Load reads and parses the setup file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read sprint setup %q: %w", path, err)
	}
	file, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("parse sprint setup %q: %w", path, err)
	}
	return file, nil
}

// Parse decodes setup YAML, rejecting unknown fields, and normalizes ids.
func Parse(data []byte) (File, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if err := file.normalize(); err != nil {
		return File{}, err
	}
	return file, nil
}

// Save writes the file as YAML, creating parent directories.
func Save(path string, file File) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode sprint setup: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sprint setup dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sprint setup %q: %w", path, err)
	}
	return nil
}

// Example returns a starter setup file.
func Example() File {
	return File{
		Sprint:      "sprint-1",
		WorkingDays: 5,
		Sprinters: []Entry{
			{ID: "ada", Name: "Ada", Capacity: 13},
			{
				ID:   "bo",
				Name: "Bo",
				History: []HistoryEntry{
					{Sprint: 1, Assigned: 10, Completed: 8},
					{Sprint: 2, Assigned: 12, Completed: 12},
				},
				Exception: &ExceptionConfig{VacationDays: 1},
			},
		},
	}
}

func (f *File) normalize() error {
	f.Sprint = strings.TrimSpace(f.Sprint)
	if f.Sprint == "" {
		return fmt.Errorf("%w: sprint is required", ErrInvalidFile)
	}
	if f.WorkingDays < 0 {
		return fmt.Errorf("%w: working_days must be >= 0", ErrInvalidFile)
	}
	seen := make(map[string]struct{}, len(f.Sprinters))
	for i := range f.Sprinters {
		entry := &f.Sprinters[i]
		entry.Name = strings.TrimSpace(entry.Name)
		entry.ID = strings.TrimSpace(entry.ID)
		if entry.ID == "" {
			entry.ID = domain.NormalizeSprinterID(entry.Name)
		}
		if entry.ID == "" {
			return fmt.Errorf("%w: sprinters[%d] needs an id or name", ErrInvalidFile, i)
		}
		if _, ok := seen[entry.ID]; ok {
			return fmt.Errorf("%w: duplicate sprinter id %q", ErrInvalidFile, entry.ID)
		}
		seen[entry.ID] = struct{}{}
		if entry.Capacity < 0 {
			return fmt.Errorf("%w: sprinters[%d].capacity must be >= 0", ErrInvalidFile, i)
		}
	}
	return nil
}

// Inputs converts the file into planner inputs in file order.
func (f File) Inputs() []app.PlanInput {
	inputs := make([]app.PlanInput, 0, len(f.Sprinters))
	for _, entry := range f.Sprinters {
		in := app.PlanInput{
			Sprinter:     domain.Sprinter{ID: entry.ID, Name: entry.Name},
			BaseCapacity: entry.Capacity,
		}
		for _, h := range entry.History {
			in.History = append(in.History, domain.SprintRecord{Sprint: h.Sprint, Assigned: h.Assigned, Completed: h.Completed})
		}
		if exc := entry.Exception; exc != nil {
			in.Exception = &domain.CapacityException{
				CustomerDelegate:     exc.CustomerDelegate,
				CustomerDelegateDays: exc.CustomerDelegateDays,
				VacationDays:         exc.VacationDays,
				OnCall:               exc.OnCall,
			}
		}
		inputs = append(inputs, in)
	}
	return inputs
}

// Plan runs capacity planning for the file. WorkingDays in the file overrides
// opts.WorkingDays when set.
func (f File) Plan(opts app.PlanOptions) (app.SprintSetup, []app.CapacityPlan, error) {
	if f.WorkingDays > 0 {
		opts.WorkingDays = f.WorkingDays
	}
	plans, err := app.PlanCapacity(f.Inputs(), opts)
	if err != nil {
		return app.SprintSetup{}, nil, err
	}
	return app.SetupFromPlans(f.Sprint, plans), plans, nil
}
