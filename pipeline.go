package silo

import (
	"strconv"

	"github.com/TheBitDrifter/bark"
)

// System is one unit of per-tick logic, run by a Stage in registration
// order: a type-erased unit with a mandatory Process and optional
// Init/Teardown, expressed as an interface plus two narrower optional
// interfaces — Systems are already interface-shaped values, so there is no
// byte buffer to erase them into.
type System interface {
	Process(r *Registry) error
}

// SystemInitializer is implemented by a System that needs one-time setup
// before its first Process call (e.g. registering the resources it reads).
type SystemInitializer interface {
	Init(r *Registry) error
}

// SystemTeardown is implemented by a System that holds resources needing
// release when its owning Registry tears down.
type SystemTeardown interface {
	Teardown(r *Registry)
}

// Combinator selects how HasStages/StagesEmpty fold their result over a set
// of stage names.
type Combinator int

const (
	// CombinatorAND requires every named stage to satisfy the predicate.
	CombinatorAND Combinator = iota
	// CombinatorOR requires at least one named stage to satisfy the predicate.
	CombinatorOR
)

// RunCondition gates whether a Stage executes on a given tick. Returning
// false skips the stage (and its systems and substages) for that Execute
// call, without removing it from the pipeline.
type RunCondition func(r *Registry) bool

// Stage is a named, ordered group of Systems plus nested substages. A
// Stage with ContinueOnError true keeps running its remaining systems
// after one fails, logging every error and returning the first; otherwise
// it stops at the first failure.
type Stage struct {
	name            string
	enabled         bool
	runCondition    RunCondition
	continueOnError bool
	systems         []namedSystem
	substages       []*Stage
	initialized     map[string]bool
}

type namedSystem struct {
	name string
	sys  System
}

func newStage(name string) *Stage {
	return &Stage{name: name, enabled: true, initialized: map[string]bool{}}
}

// Name returns the stage's name.
func (s *Stage) Name() string { return s.name }

// SetEnabled toggles whether Execute runs this stage at all.
func (s *Stage) SetEnabled(enabled bool) { s.enabled = enabled }

// Enabled reports the stage's current enabled flag.
func (s *Stage) Enabled() bool { return s.enabled }

// SetRunCondition installs a predicate evaluated fresh on every Execute.
func (s *Stage) SetRunCondition(cond RunCondition) { s.runCondition = cond }

// SetContinueOnError controls whether a failing system aborts the rest of
// the stage (false, the default) or is recorded and skipped over (true).
func (s *Stage) SetContinueOnError(continueOnError bool) { s.continueOnError = continueOnError }

// AddSystem appends a System to the stage under the given name. Names only
// need to be unique within one stage; they're used for diagnostics and
// GetSystemNames, not addressing.
func (s *Stage) AddSystem(name string, sys System) {
	s.systems = append(s.systems, namedSystem{name: name, sys: sys})
}

// AddSystems appends several systems at once, named after their position
// (e.g. "system#0"). Prefer AddSystem when a stable name matters.
func (s *Stage) AddSystems(systems ...System) {
	base := len(s.systems)
	for i, sys := range systems {
		s.AddSystem(indexedName(base+i), sys)
	}
}

func indexedName(i int) string {
	return "system#" + strconv.Itoa(i)
}

// Empty reports whether the stage has no systems and no substages.
func (s *Stage) Empty() bool { return len(s.systems) == 0 && len(s.substages) == 0 }

// SystemNames returns the registered name of every system directly on this
// stage, in execution order.
func (s *Stage) SystemNames() []string {
	names := make([]string, len(s.systems))
	for i, ns := range s.systems {
		names[i] = ns.name
	}
	return names
}

// AddSubstage appends a nested Stage, executed after this stage's own
// systems.
func (s *Stage) AddSubstage(name string) (*Stage, error) {
	if s.hasSubstage(name) {
		return nil, DuplicateStageError{Name: name}
	}
	sub := newStage(name)
	s.substages = append(s.substages, sub)
	return sub, nil
}

// AddSubstageBefore inserts a new substage immediately before an existing
// one in this stage's substage list.
func (s *Stage) AddSubstageBefore(before, name string) (*Stage, error) {
	idx := s.substageIndex(before)
	if idx < 0 {
		return nil, StageNotFoundError{Name: before}
	}
	if s.hasSubstage(name) {
		return nil, DuplicateStageError{Name: name}
	}
	sub := newStage(name)
	s.substages = append(s.substages, nil)
	copy(s.substages[idx+1:], s.substages[idx:])
	s.substages[idx] = sub
	return sub, nil
}

// AddSubstageAfter inserts a new substage immediately after an existing one
// in this stage's substage list.
func (s *Stage) AddSubstageAfter(after, name string) (*Stage, error) {
	idx := s.substageIndex(after)
	if idx < 0 {
		return nil, StageNotFoundError{Name: after}
	}
	if s.hasSubstage(name) {
		return nil, DuplicateStageError{Name: name}
	}
	sub := newStage(name)
	pos := idx + 1
	s.substages = append(s.substages, nil)
	copy(s.substages[pos+1:], s.substages[pos:])
	s.substages[pos] = sub
	return sub, nil
}

// RemoveSubstage removes a substage of this stage by name.
func (s *Stage) RemoveSubstage(name string) error {
	idx := s.substageIndex(name)
	if idx < 0 {
		return StageNotFoundError{Name: name}
	}
	s.substages = append(s.substages[:idx], s.substages[idx+1:]...)
	return nil
}

func (s *Stage) substageIndex(name string) int {
	for i, sub := range s.substages {
		if sub.name == name {
			return i
		}
	}
	return -1
}

func (s *Stage) hasSubstage(name string) bool { return s.substageIndex(name) >= 0 }

// execute runs the stage: run_condition check, each system in order
// (respecting continueOnError), then every substage recursively. Errors
// from systems are reported through logger and, when continueOnError is
// false, abort the stage immediately.
func (s *Stage) execute(r *Registry, logger Logger) error {
	if !s.enabled {
		return nil
	}
	if s.runCondition != nil && !s.runCondition(r) {
		return nil
	}

	var firstErr error
	for _, ns := range s.systems {
		if init, ok := ns.sys.(SystemInitializer); ok && !s.initialized[ns.name] {
			if err := init.Init(r); err != nil {
				wrapped := SystemError{Stage: s.name, System: ns.name, Err: err}
				logger.Error("system init failed", "stage", s.name, "system", ns.name, "err", err)
				if firstErr == nil {
					firstErr = wrapped
				}
				if !s.continueOnError {
					return firstErr
				}
				continue
			}
			s.initialized[ns.name] = true
		}
		if err := ns.sys.Process(r); err != nil {
			wrapped := SystemError{Stage: s.name, System: ns.name, Err: err}
			logger.Error("system process failed", "stage", s.name, "system", ns.name, "err", err)
			if firstErr == nil {
				firstErr = wrapped
			}
			if !s.continueOnError {
				return firstErr
			}
		}
	}

	for _, sub := range s.substages {
		if err := sub.execute(r, logger); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if !s.continueOnError {
				return firstErr
			}
		}
	}
	return firstErr
}

func (s *Stage) teardown(r *Registry) {
	for _, ns := range s.systems {
		if td, ok := ns.sys.(SystemTeardown); ok {
			td.Teardown(r)
		}
	}
	for _, sub := range s.substages {
		sub.teardown(r)
	}
}

// Pipeline is the top-level, ordered sequence of Stages a Registry runs
// each tick. It uses a name→index cache (cache.go's SimpleCache,
// repurposed here as stageIndex), rebuilding the index every time the
// stage list's shape changes rather than keeping it incrementally in sync
// — simpler to get right, and pipelines are restructured far less often
// than queried.
type Pipeline struct {
	logger     Logger
	stages     []*Stage
	stageIndex *SimpleCache[int]
}

func newPipeline(logger Logger) *Pipeline {
	p := &Pipeline{logger: logger, stageIndex: NewSimpleCache[int](4096)}
	p.rebuildIndex()
	return p
}

func (p *Pipeline) rebuildIndex() {
	p.stageIndex.Clear()
	for i, s := range p.stages {
		_, _ = p.stageIndex.Register(s.name, i)
	}
}

// AddStage appends a new, empty Stage at the end of the pipeline.
func (p *Pipeline) AddStage(name string) (*Stage, error) {
	if p.HasStage(name) {
		return nil, DuplicateStageError{Name: name}
	}
	s := newStage(name)
	p.stages = append(p.stages, s)
	p.rebuildIndex()
	return s, nil
}

// AddStageBefore inserts a new Stage immediately before an existing one.
func (p *Pipeline) AddStageBefore(before, name string) (*Stage, error) {
	idx, ok := p.stageIndex.GetIndex(before)
	if !ok {
		return nil, StageNotFoundError{Name: before}
	}
	if p.HasStage(name) {
		return nil, DuplicateStageError{Name: name}
	}
	s := newStage(name)
	p.stages = append(p.stages, nil)
	copy(p.stages[idx+1:], p.stages[idx:])
	p.stages[idx] = s
	p.rebuildIndex()
	return s, nil
}

// AddStageAfter inserts a new Stage immediately after an existing one.
func (p *Pipeline) AddStageAfter(after, name string) (*Stage, error) {
	idx, ok := p.stageIndex.GetIndex(after)
	if !ok {
		return nil, StageNotFoundError{Name: after}
	}
	if p.HasStage(name) {
		return nil, DuplicateStageError{Name: name}
	}
	s := newStage(name)
	pos := idx + 1
	p.stages = append(p.stages, nil)
	copy(p.stages[pos+1:], p.stages[pos:])
	p.stages[pos] = s
	p.rebuildIndex()
	return s, nil
}

// RemoveStage removes a top-level stage by name.
func (p *Pipeline) RemoveStage(name string) error {
	idx, ok := p.stageIndex.GetIndex(name)
	if !ok {
		return StageNotFoundError{Name: name}
	}
	p.stages = append(p.stages[:idx], p.stages[idx+1:]...)
	p.rebuildIndex()
	return nil
}

// GetStage returns the named top-level stage.
func (p *Pipeline) GetStage(name string) (*Stage, error) {
	idx, ok := p.stageIndex.GetIndex(name)
	if !ok {
		return nil, StageNotFoundError{Name: name}
	}
	return p.stages[idx], nil
}

// HasStage reports whether a top-level stage with the given name exists.
func (p *Pipeline) HasStage(name string) bool {
	_, ok := p.stageIndex.GetIndex(name)
	return ok
}

// StageEmpty reports whether the named top-level stage has no systems and
// no substages.
func (p *Pipeline) StageEmpty(name string) (bool, error) {
	s, err := p.GetStage(name)
	if err != nil {
		return false, err
	}
	return s.Empty(), nil
}

// HasStages reports, over the given stage names, whether all of them exist
// (CombinatorAND) or at least one of them exists (CombinatorOR).
func (p *Pipeline) HasStages(names []string, combinator Combinator) bool {
	if combinator == CombinatorOR {
		for _, name := range names {
			if p.HasStage(name) {
				return true
			}
		}
		return false
	}
	for _, name := range names {
		if !p.HasStage(name) {
			return false
		}
	}
	return true
}

// StagesEmpty reports, over the given stage names, whether all of them are
// empty (CombinatorAND) or at least one of them is empty (CombinatorOR). A
// name with no matching stage never counts as empty, under either
// combinator.
func (p *Pipeline) StagesEmpty(names []string, combinator Combinator) bool {
	if combinator == CombinatorOR {
		for _, name := range names {
			if empty, err := p.StageEmpty(name); err == nil && empty {
				return true
			}
		}
		return false
	}
	for _, name := range names {
		empty, err := p.StageEmpty(name)
		if err != nil || !empty {
			return false
		}
	}
	return true
}

// GetStageNames returns the top-level stage names in execution order.
func (p *Pipeline) GetStageNames() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.name
	}
	return names
}

// GetSystemNames returns the system names of the given top-level stage.
func (p *Pipeline) GetSystemNames(stage string) ([]string, error) {
	s, err := p.GetStage(stage)
	if err != nil {
		return nil, err
	}
	return s.SystemNames(), nil
}

// Execute runs every top-level stage once, in order. It is the entry point
// a host application calls once per tick.
func (p *Pipeline) Execute(r *Registry) error {
	var firstErr error
	for _, s := range p.stages {
		if err := s.execute(r, p.logger); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return bark.AddTrace(firstErr)
	}
	return nil
}

// ExecuteStages runs only the named top-level stages. A name with no
// matching stage is logged and skipped rather than aborting the whole call;
// the stages that do resolve are executed in pipeline order (their index
// within the pipeline), not the order names were given, since callers
// naturally list names in whatever order is convenient for them. A name
// repeated in names runs its stage once per occurrence — this is by design,
// not a bug, mirroring a host that wants to run one stage twice in a tick.
func (p *Pipeline) ExecuteStages(r *Registry, names ...string) error {
	indices := make([]int, 0, len(names))
	for _, name := range names {
		idx, ok := p.stageIndex.GetIndex(name)
		if !ok {
			p.logger.Error("execute_stages: stage not found, skipping", "stage", name)
			continue
		}
		indices = append(indices, idx)
	}
	sortInts(indices)

	var firstErr error
	for _, idx := range indices {
		if err := p.stages[idx].execute(r, p.logger); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sortInts is a small insertion sort; the pipelines this runs over are
// expected to hold a handful of stages, not enough to justify importing
// sort for one call site.
func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// ExecuteStagesIf runs every stage for which predicate returns true, in
// pipeline order. The predicate is applied on top of each stage's own
// enabled flag and run_condition, which still gate the stage as in Execute.
func (p *Pipeline) ExecuteStagesIf(r *Registry, predicate func(*Stage) bool) error {
	var firstErr error
	for _, s := range p.stages {
		if !predicate(s) {
			continue
		}
		if err := s.execute(r, p.logger); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Pipeline) teardown(r *Registry) {
	for _, s := range p.stages {
		s.teardown(r)
	}
}

// Plugin bundles an Init hook (run once, immediately, by Registry.AddPlugin)
// with a Teardown hook (run in reverse registration order by
// Registry.Teardown) — the idiomatic way to package "install these
// stages/systems/resources together" as one unit.
type Plugin struct {
	Name     string
	Init     func(r *Registry) error
	Teardown func(r *Registry)
}
