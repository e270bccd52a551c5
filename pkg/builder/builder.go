// Package builder implements the Builder Registry component (C5): the set
// of registered builders, their match patterns, and the two capability
// callbacks (plan jobs, run job) that the Job Planner & Scheduler invokes.
package builder

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/forgelabs/forge/pkg/logging"
)

// PatternKind distinguishes glob from regex match patterns.
type PatternKind int

const (
	PatternGlob PatternKind = iota
	PatternRegex
)

// PlanResult is the result code returned by a builder's PlanJobs callback.
type PlanResult int

const (
	PlanSuccess PlanResult = iota
	PlanFailed
	PlanShuttingDown
)

// RunResult is the result code returned by a builder's RunJob callback.
type RunResult int

const (
	RunSuccess RunResult = iota
	RunFailed
	RunCrashed
	RunCancelled
)

// JobDescriptor is a single unit of build work emitted by PlanJobs.
type JobDescriptor struct {
	Platform             string
	JobKey               string
	Priority             int
	Critical             bool
	ExtraFingerprintInfo []byte
	Params               any
}

// PlanRequest carries the context a builder needs to plan jobs for a single
// candidate source.
type PlanRequest struct {
	SourcePath string
}

// PlanFunc computes the set of jobs a builder wants performed for a source.
type PlanFunc func(PlanRequest) (PlanResult, []JobDescriptor)

// ProductPath is a single product file path, relative to the platform cache
// root, emitted by a successful RunJob call.
type ProductPath string

// RunRequest carries the parameters for a single job execution.
type RunRequest struct {
	SourcePath string
	Platform   string
	JobKey     string
	Params     any
}

// RunFunc executes a single planned job.
type RunFunc func(RunRequest) (RunResult, []ProductPath)

// Recognizer is a builder registration record (AssetRecognizer in the
// source's terminology).
type Recognizer struct {
	ID                      uuid.UUID
	Name                    string
	MatchPattern            string
	PatternKind             PatternKind
	PerPlatformExtraParams  map[string]any
	Version                 string
	Priority                int
	Critical                bool
	TestForExclusiveLock    bool

	PlanJobs PlanFunc
	RunJob   RunFunc

	matcher matcher
}

// Registry holds the set of registered builders.
type Registry struct {
	logger *logging.Logger

	mu         sync.RWMutex
	byID       map[uuid.UUID]*Recognizer
	byName     map[string]*Recognizer
	ordered    []*Recognizer
	locksHeld  map[uuid.UUID]bool
}

// New constructs an empty Registry.
func New(logger *logging.Logger) *Registry {
	return &Registry{
		logger:    logger,
		byID:      make(map[uuid.UUID]*Recognizer),
		byName:    make(map[string]*Recognizer),
		locksHeld: make(map[uuid.UUID]bool),
	}
}

// Register adds a builder to the registry. Duplicate ids are rejected;
// duplicate names are logged and ignored (the first registration under a
// name wins).
func (r *Registry) Register(rec *Recognizer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if _, exists := r.byID[rec.ID]; exists {
		return fmt.Errorf("duplicate builder id %s", rec.ID)
	}
	if _, exists := r.byName[rec.Name]; exists {
		r.logger.Warnf("Ignoring duplicate builder registration for name %q", rec.Name)
		return nil
	}

	m, err := newMatcher(rec.MatchPattern, rec.PatternKind)
	if err != nil {
		return fmt.Errorf("unable to compile match pattern for %q: %w", rec.Name, err)
	}
	rec.matcher = m

	r.byID[rec.ID] = rec
	r.byName[rec.Name] = rec
	r.ordered = append(r.ordered, rec)
	return nil
}

// Unregister removes a builder from the registry by id.
func (r *Registry) Unregister(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byName, rec.Name)
	delete(r.locksHeld, id)
	for i, o := range r.ordered {
		if o.ID == id {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}
}

// MatchingBuilders returns every registered builder whose match pattern
// matches relpath, in registration order, skipping builders that have
// TestForExclusiveLock set and whose exclusive lock is currently held
// elsewhere.
func (r *Registry) MatchingBuilders(relpath string) []*Recognizer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*Recognizer
	for _, rec := range r.ordered {
		if rec.TestForExclusiveLock && r.locksHeld[rec.ID] {
			continue
		}
		if rec.matcher.match(relpath) {
			matches = append(matches, rec)
		}
	}
	return matches
}

// SetLockHeld marks whether a builder's exclusive lock is currently held
// elsewhere, consulted by MatchingBuilders' pre-flight check.
func (r *Registry) SetLockHeld(id uuid.UUID, held bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locksHeld[id] = held
}
