// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The aodscan Authors

package scan

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// DefaultStorePath is where custom patterns are kept
const DefaultStorePath = "data/scan_patterns.json"

// Pattern kinds
const (
	KindPoint  = "point"
	KindLine   = "line"
	KindSquare = "square"
	KindCircle = "circle"
	KindZigzag = "zigzag"
)

var (
	// ErrUnknownPattern is returned for ids that are not registered
	ErrUnknownPattern = errors.New("unknown scan pattern")

	// ErrBuiltinPattern is returned when saving or deleting a built-in id
	ErrBuiltinPattern = errors.New("built-in scan patterns cannot be modified")
)

// Params holds named pattern parameters
type Params map[string]float64

// Merge returns a copy of p with every key of override applied on top
func (p Params) Merge(override Params) Params {
	out := make(Params, len(p)+len(override))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Pattern is a named, parameterised scan
type Pattern struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Params      Params `json:"params"`
}

// Provenance records where a pattern came from
type Provenance int

const (
	Builtin Provenance = iota
	Custom
)

func (p Provenance) String() string {
	if p == Custom {
		return "custom"
	}
	return "builtin"
}

// Entry is a registered pattern with its id and provenance
type Entry struct {
	ID         string
	Provenance Provenance
	Pattern
}

// builtinOrder fixes the listing order of built-ins
var builtinOrder = []string{KindPoint, KindLine, KindSquare, KindCircle, KindZigzag}

// Builtins returns the built-in patterns with their default parameters
func Builtins() map[string]Pattern {
	return map[string]Pattern{
		KindPoint: {
			Name: "Point", Description: "Fixed beam position", Kind: KindPoint,
			Params: Params{"angle": 0.0},
		},
		KindLine: {
			Name: "Line", Description: "Sweep between two angles and back", Kind: KindLine,
			Params: Params{"start_angle": -0.5, "end_angle": 0.5, "speed": 0.1, "steps": 20},
		},
		KindSquare: {
			Name: "Square", Description: "Sweep across ±size and back", Kind: KindSquare,
			Params: Params{"size": 0.5, "speed": 0.1, "steps": 10},
		},
		KindCircle: {
			Name: "Circle", Description: "Sinusoidal projection of a circle", Kind: KindCircle,
			Params: Params{"radius": 0.5, "speed": 0.1, "steps": 50},
		},
		KindZigzag: {
			Name: "Zigzag", Description: "Sine sweep for a fixed duration", Kind: KindZigzag,
			Params: Params{"amplitude": 0.5, "frequency": 0.5, "duration": 10},
		},
	}
}

// inferKind guesses the kind of a stored pattern that predates the kind field
func inferKind(p Params) string {
	switch {
	case has(p, "start_angle") || has(p, "end_angle"):
		return KindLine
	case has(p, "size"):
		return KindSquare
	case has(p, "radius"):
		return KindCircle
	case has(p, "amplitude") || has(p, "frequency") || has(p, "duration"):
		return KindZigzag
	case has(p, "angle"):
		return KindPoint
	}
	return ""
}

func has(p Params, key string) bool {
	_, ok := p[key]
	return ok
}

func intParam(p Params, key string) (int, error) {
	v := p[key]
	if math.IsNaN(v) || math.IsInf(v, 0) || v > math.MaxInt32 || v < math.MinInt32 {
		return 0, invalid("%s %g", key, v)
	}
	return int(math.Round(v)), nil
}

// Build creates a generator of the given kind. Missing parameters take the
// built-in defaults for that kind.
func Build(kind string, params Params) (Generator, error) {
	def, ok := Builtins()[kind]
	if !ok {
		return nil, invalid("unknown kind %q", kind)
	}
	p := def.Params.Merge(params)

	switch kind {
	case KindPoint:
		return Point(p["angle"])
	case KindLine:
		steps, err := intParam(p, "steps")
		if err != nil {
			return nil, err
		}
		return Line(p["start_angle"], p["end_angle"], p["speed"], steps)
	case KindSquare:
		steps, err := intParam(p, "steps")
		if err != nil {
			return nil, err
		}
		return Square(p["size"], p["speed"], steps)
	case KindCircle:
		steps, err := intParam(p, "steps")
		if err != nil {
			return nil, err
		}
		return Circle(p["radius"], p["speed"], steps)
	default:
		return Zigzag(p["amplitude"], p["frequency"], p["duration"])
	}
}

// Registry holds built-in and custom patterns under one id space. Custom
// patterns are persisted to a JSON file on every change.
type Registry struct {
	mu       sync.RWMutex
	path     string
	builtins map[string]Pattern
	custom   map[string]Pattern
}

// NewRegistry loads custom patterns from path. A missing file is an empty
// store; an empty path keeps patterns in memory only.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{
		path:     path,
		builtins: Builtins(),
		custom:   make(map[string]Pattern),
	}
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern store: %w", err)
	}

	var stored map[string]Pattern
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse pattern store %s: %w", path, err)
	}
	for id, p := range stored {
		if _, ok := r.builtins[id]; ok {
			continue
		}
		if p.Kind == "" {
			p.Kind = inferKind(p.Params)
		}
		r.custom[id] = p
	}
	return r, nil
}

// Path returns the store location
func (r *Registry) Path() string {
	return r.path
}

// Get looks up a pattern by id
func (r *Registry) Get(id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.builtins[id]; ok {
		return Entry{ID: id, Provenance: Builtin, Pattern: p}, nil
	}
	if p, ok := r.custom[id]; ok {
		return Entry{ID: id, Provenance: Custom, Pattern: p}, nil
	}
	return Entry{}, fmt.Errorf("%w: %q", ErrUnknownPattern, id)
}

// List returns built-ins in their fixed order followed by custom patterns
// sorted by id
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.builtins)+len(r.custom))
	for _, id := range builtinOrder {
		entries = append(entries, Entry{ID: id, Provenance: Builtin, Pattern: r.builtins[id]})
	}
	ids := make([]string, 0, len(r.custom))
	for id := range r.custom {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		entries = append(entries, Entry{ID: id, Provenance: Custom, Pattern: r.custom[id]})
	}
	return entries
}

// Save stores a custom pattern and rewrites the store
func (r *Registry) Save(id string, p Pattern) error {
	if id == "" {
		return invalid("empty pattern id")
	}
	if _, ok := r.builtins[id]; ok {
		return fmt.Errorf("%w: %q", ErrBuiltinPattern, id)
	}
	if p.Kind == "" {
		p.Kind = inferKind(p.Params)
	}
	if _, err := Build(p.Kind, p.Params); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, existed := r.custom[id]
	r.custom[id] = p
	if err := r.persist(); err != nil {
		if existed {
			r.custom[id] = prev
		} else {
			delete(r.custom, id)
		}
		return err
	}
	return nil
}

// Delete removes a custom pattern and rewrites the store
func (r *Registry) Delete(id string) error {
	if _, ok := r.builtins[id]; ok {
		return fmt.Errorf("%w: %q", ErrBuiltinPattern, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.custom[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPattern, id)
	}
	delete(r.custom, id)
	if err := r.persist(); err != nil {
		r.custom[id] = prev
		return err
	}
	return nil
}

// Resolve looks up id and builds its generator with overrides applied on
// top of the stored parameters. The effective parameters are returned.
func (r *Registry) Resolve(id string, overrides Params) (Generator, Params, error) {
	entry, err := r.Get(id)
	if err != nil {
		return nil, nil, err
	}
	params := Builtins()[entry.Kind].Params.Merge(entry.Params).Merge(overrides)
	gen, err := Build(entry.Kind, params)
	if err != nil {
		return nil, nil, fmt.Errorf("pattern %q: %w", id, err)
	}
	return gen, params, nil
}

// persist writes the custom mapping through a temp file and rename.
// Callers hold r.mu.
func (r *Registry) persist() error {
	if r.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(r.custom, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode pattern store: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create pattern store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".scan_patterns-*.json")
	if err != nil {
		return fmt.Errorf("failed to write pattern store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write pattern store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write pattern store: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace pattern store: %w", err)
	}
	return nil
}
