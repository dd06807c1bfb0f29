package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"eventarr/internal/customformat"
	"eventarr/internal/packmatch"
	"eventarr/internal/quality"
	"eventarr/internal/services"
)

const component = "catalog"

// DefaultCandidateWindow is how far either side of an event Candidates looks.
const DefaultCandidateWindow = 14 * 24 * time.Hour

//go:embed sample_catalog.yaml
var sampleCatalog string

// SampleYAML returns the embedded sample catalog.
func SampleYAML() string {
	return sampleCatalog
}

// File is the on-disk catalog layout.
type File struct {
	Definitions      []quality.Definition  `yaml:"definitions"`
	Formats          []customformat.Format `yaml:"formats"`
	Profiles         []quality.Profile     `yaml:"profiles"`
	DefaultProfileID int64                 `yaml:"default_profile_id"`
	Events           []packmatch.Event     `yaml:"events"`
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := file.normalize(); err != nil {
		return File{}, err
	}
	if err := file.Validate(); err != nil {
		return File{}, err
	}
	return file, nil
}

func (f *File) normalize() error {
	for i := range f.Formats {
		for j := range f.Formats[i].Specifications {
			spec := &f.Formats[i].Specifications[j]
			kind, ok := customformat.ParseKind(string(spec.Kind))
			if !ok {
				return fmt.Errorf("format %q: unknown implementation %q", f.Formats[i].Name, spec.Kind)
			}
			spec.Kind = kind
		}
	}
	if f.DefaultProfileID == 0 && len(f.Profiles) > 0 {
		f.DefaultProfileID = f.Profiles[0].ID
	}
	return nil
}

// Validate checks identifiers are unique and every reference resolves.
func (f File) Validate() error {
	var errs []error
	defs := make(map[int64]struct{}, len(f.Definitions))
	names := make(map[string]struct{}, len(f.Definitions))
	for _, def := range f.Definitions {
		if _, dup := defs[def.ID]; dup {
			errs = append(errs, fmt.Errorf("definition id %d duplicated", def.ID))
		}
		key := strings.ToLower(def.Name)
		if _, dup := names[key]; dup {
			errs = append(errs, fmt.Errorf("definition name %q duplicated", def.Name))
		}
		if def.MaxMBPerHour > 0 && def.MinMBPerHour > def.MaxMBPerHour {
			errs = append(errs, fmt.Errorf("definition %q: min size exceeds max", def.Name))
		}
		defs[def.ID] = struct{}{}
		names[key] = struct{}{}
	}

	formats := make(map[int64]struct{}, len(f.Formats))
	for _, format := range f.Formats {
		if _, dup := formats[format.ID]; dup {
			errs = append(errs, fmt.Errorf("format id %d duplicated", format.ID))
		}
		formats[format.ID] = struct{}{}
		if err := format.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	profiles := make(map[int64]struct{}, len(f.Profiles))
	for _, profile := range f.Profiles {
		if _, dup := profiles[profile.ID]; dup {
			errs = append(errs, fmt.Errorf("profile id %d duplicated", profile.ID))
		}
		profiles[profile.ID] = struct{}{}
		for _, id := range profile.AllowedQualityIDs {
			if _, ok := defs[id]; !ok {
				errs = append(errs, fmt.Errorf("profile %q allows unknown quality %d", profile.Name, id))
			}
		}
		if profile.CutoffQualityID != 0 {
			if _, ok := defs[profile.CutoffQualityID]; !ok {
				errs = append(errs, fmt.Errorf("profile %q cutoff references unknown quality %d", profile.Name, profile.CutoffQualityID))
			}
		}
		for _, item := range profile.FormatItems {
			if _, ok := formats[item.FormatID]; !ok {
				errs = append(errs, fmt.Errorf("profile %q scores unknown format %d", profile.Name, item.FormatID))
			}
		}
	}
	if f.DefaultProfileID != 0 {
		if _, ok := profiles[f.DefaultProfileID]; !ok {
			errs = append(errs, fmt.Errorf("default_profile_id %d does not exist", f.DefaultProfileID))
		}
	}

	events := make(map[int64]struct{}, len(f.Events))
	for _, ev := range f.Events {
		if ev.ID <= 0 {
			errs = append(errs, fmt.Errorf("event %q needs a positive id", ev.Title))
		}
		if _, dup := events[ev.ID]; dup {
			errs = append(errs, fmt.Errorf("event id %d duplicated", ev.ID))
		}
		events[ev.ID] = struct{}{}
		if strings.TrimSpace(ev.Title) == "" {
			errs = append(errs, fmt.Errorf("event %d needs a title", ev.ID))
		}
		if ev.ProfileID != 0 {
			if _, ok := profiles[ev.ProfileID]; !ok {
				errs = append(errs, fmt.Errorf("event %d references unknown profile %d", ev.ID, ev.ProfileID))
			}
		}
	}
	if len(errs) > 0 {
		return services.Wrap(services.ErrValidation, component, "validate", "invalid catalog", errors.Join(errs...))
	}
	return nil
}

// Static serves events and settings from a YAML file.
type Static struct {
	path   string
	window time.Duration

	mu       sync.RWMutex
	file     File
	loadedAt time.Time
}

// LoadStatic reads the catalog at path.
func LoadStatic(path string) (*Static, error) {
	s := &Static{path: path, window: DefaultCandidateWindow}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStatic serves an in-memory catalog. Reload is a no-op.
func NewStatic(file File) (*Static, error) {
	if err := file.normalize(); err != nil {
		return nil, err
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &Static{file: file, window: DefaultCandidateWindow, loadedAt: time.Now()}, nil
}

// SetCandidateWindow changes how far Candidates looks around an event date.
func (s *Static) SetCandidateWindow(window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if window > 0 {
		s.window = window
	}
}

// Reload re-reads the backing file. On error the previous catalog is kept.
func (s *Static) Reload() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, component, "reload", "read catalog file", err)
	}
	file, err := Parse(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.file = file
	s.loadedAt = time.Now()
	s.mu.Unlock()
	return nil
}

// LoadedAt returns when the catalog was last loaded.
func (s *Static) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Event implements Events.
func (s *Static) Event(_ context.Context, id int64) (packmatch.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ev := range s.file.Events {
		if ev.ID == id {
			return cloneEvent(ev), nil
		}
	}
	return packmatch.Event{}, services.Wrap(services.ErrNotFound, component, "event", fmt.Sprintf("event %d", id), nil)
}

// List returns all events ordered by date.
func (s *Static) List(_ context.Context) []packmatch.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]packmatch.Event, 0, len(s.file.Events))
	for _, ev := range s.file.Events {
		out = append(out, cloneEvent(ev))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Candidates implements Events: events of the same league within the window.
func (s *Static) Candidates(_ context.Context, target packmatch.Event) ([]packmatch.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []packmatch.Event{cloneEvent(target)}
	for _, ev := range s.file.Events {
		if ev.ID == target.ID {
			continue
		}
		if target.League != "" && !strings.EqualFold(ev.League, target.League) {
			continue
		}
		if !target.Date.IsZero() && !ev.Date.IsZero() {
			gap := ev.Date.Sub(target.Date)
			if gap < 0 {
				gap = -gap
			}
			if gap > s.window {
				continue
			}
		}
		out = append(out, cloneEvent(ev))
	}
	return out, nil
}

// Snapshot implements Settings. profileID 0 selects the default profile.
func (s *Static) Snapshot(_ context.Context, profileID int64) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if profileID == 0 {
		profileID = s.file.DefaultProfileID
	}
	for _, profile := range s.file.Profiles {
		if profile.ID != profileID {
			continue
		}
		snap := Snapshot{
			Profile: profile,
			Quality: quality.Catalog{Definitions: s.file.Definitions, Formats: s.file.Formats},
			TakenAt: time.Now().UTC(),
		}
		return snap.Clone(), nil
	}
	return Snapshot{}, services.Wrap(services.ErrNotFound, component, "snapshot", fmt.Sprintf("profile %d", profileID), nil)
}

// Profiles returns copies of all profiles.
func (s *Static) Profiles() []quality.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]quality.Profile, len(s.file.Profiles))
	for i, p := range s.file.Profiles {
		out[i] = p.Clone()
	}
	return out
}

func cloneEvent(ev packmatch.Event) packmatch.Event {
	ev.Participants = append([]string(nil), ev.Participants...)
	return ev
}
