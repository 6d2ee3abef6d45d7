package silo

import (
	"errors"
	"testing"
)

type recordingSystem struct {
	name string
	log  *[]string
	err  error
}

func (s recordingSystem) Process(r *Registry) error {
	*s.log = append(*s.log, s.name)
	return s.err
}

func TestPipelineRunsStagesInOrder(t *testing.T) {
	r := newTestRegistry()
	var log []string

	first, _ := r.pipeline.AddStage("first")
	second, _ := r.pipeline.AddStage("second")
	first.AddSystem("a", recordingSystem{name: "a", log: &log})
	second.AddSystem("b", recordingSystem{name: "b", log: &log})

	if err := r.pipeline.Execute(r); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(log) != 2 || log[0] != "a" || log[1] != "b" {
		t.Fatalf("expected [a b], got %v", log)
	}
}

func TestStageDisabledIsSkipped(t *testing.T) {
	r := newTestRegistry()
	var log []string
	s, _ := r.pipeline.AddStage("only")
	s.AddSystem("a", recordingSystem{name: "a", log: &log})
	s.SetEnabled(false)

	if err := r.pipeline.Execute(r); err != nil {
		t.Fatal(err)
	}
	if len(log) != 0 {
		t.Fatalf("disabled stage should not run, got %v", log)
	}
}

func TestStageRunConditionGates(t *testing.T) {
	r := newTestRegistry()
	var log []string
	s, _ := r.pipeline.AddStage("only")
	s.AddSystem("a", recordingSystem{name: "a", log: &log})

	allow := false
	s.SetRunCondition(func(*Registry) bool { return allow })

	if err := r.pipeline.Execute(r); err != nil {
		t.Fatal(err)
	}
	if len(log) != 0 {
		t.Fatalf("run_condition false should gate the stage, got %v", log)
	}

	allow = true
	if err := r.pipeline.Execute(r); err != nil {
		t.Fatal(err)
	}
	if len(log) != 1 {
		t.Fatalf("run_condition true should let the stage run, got %v", log)
	}
}

func TestStageContinueOnError(t *testing.T) {
	r := newTestRegistry()
	var log []string
	s, _ := r.pipeline.AddStage("only")
	s.AddSystem("a", recordingSystem{name: "a", log: &log, err: errors.New("boom")})
	s.AddSystem("b", recordingSystem{name: "b", log: &log})

	if err := r.pipeline.Execute(r); err == nil {
		t.Fatalf("expected an error to propagate")
	}
	if len(log) != 1 {
		t.Fatalf("continue_on_error defaults to false, system b should not have run: %v", log)
	}

	log = nil
	s.SetContinueOnError(true)
	if err := r.pipeline.Execute(r); err == nil {
		t.Fatalf("expected the first error to still be returned")
	}
	if len(log) != 2 {
		t.Fatalf("continue_on_error=true should still run system b: %v", log)
	}
}

func TestSubstagesRunAfterParent(t *testing.T) {
	r := newTestRegistry()
	var log []string
	parent, _ := r.pipeline.AddStage("parent")
	parent.AddSystem("p", recordingSystem{name: "p", log: &log})
	sub, err := parent.AddSubstage("child")
	if err != nil {
		t.Fatal(err)
	}
	sub.AddSystem("c", recordingSystem{name: "c", log: &log})

	if err := r.pipeline.Execute(r); err != nil {
		t.Fatal(err)
	}
	if len(log) != 2 || log[0] != "p" || log[1] != "c" {
		t.Fatalf("expected substage to run after its parent's own systems, got %v", log)
	}
}

func TestAddStageBeforeAfterAndDuplicate(t *testing.T) {
	r := newTestRegistry()
	_, _ = r.pipeline.AddStage("a")
	_, _ = r.pipeline.AddStage("c")
	if _, err := r.pipeline.AddStageBefore("c", "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.pipeline.AddStageAfter("c", "d"); err != nil {
		t.Fatal(err)
	}
	got := r.pipeline.GetStageNames()
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}

	if _, err := r.pipeline.AddStage("a"); err == nil {
		t.Fatalf("expected DuplicateStageError")
	}
}

func TestExecuteStagesSortsByPipelineOrderAndSkipsMissing(t *testing.T) {
	r := newTestRegistry()
	var log []string
	a, _ := r.pipeline.AddStage("a")
	b, _ := r.pipeline.AddStage("b")
	c, _ := r.pipeline.AddStage("c")
	a.AddSystem("a", recordingSystem{name: "a", log: &log})
	b.AddSystem("b", recordingSystem{name: "b", log: &log})
	c.AddSystem("c", recordingSystem{name: "c", log: &log})

	// Names given out of pipeline order, plus one that doesn't exist.
	if err := r.pipeline.ExecuteStages(r, "c", "missing", "a"); err != nil {
		t.Fatalf("ExecuteStages: %v", err)
	}
	if len(log) != 2 || log[0] != "a" || log[1] != "c" {
		t.Fatalf("expected pipeline order [a c] with missing skipped, got %v", log)
	}
}

func TestExecuteStagesRunsDuplicateNamesTwice(t *testing.T) {
	r := newTestRegistry()
	var log []string
	a, _ := r.pipeline.AddStage("a")
	a.AddSystem("a", recordingSystem{name: "a", log: &log})

	if err := r.pipeline.ExecuteStages(r, "a", "a"); err != nil {
		t.Fatalf("ExecuteStages: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("expected stage a to run twice for two occurrences of its name, got %v", log)
	}
}

func TestRemoveStage(t *testing.T) {
	r := newTestRegistry()
	_, _ = r.pipeline.AddStage("a")
	_, _ = r.pipeline.AddStage("b")
	if err := r.pipeline.RemoveStage("a"); err != nil {
		t.Fatal(err)
	}
	if r.pipeline.HasStage("a") {
		t.Fatalf("stage a should have been removed")
	}
	if err := r.pipeline.RemoveStage("missing"); err == nil {
		t.Fatalf("expected StageNotFoundError")
	}
}

func TestStageEmpty(t *testing.T) {
	r := newTestRegistry()
	s, _ := r.pipeline.AddStage("only")

	empty, err := r.pipeline.StageEmpty("only")
	if err != nil {
		t.Fatal(err)
	}
	if !empty {
		t.Fatalf("freshly added stage should be empty")
	}

	s.AddSystem("a", recordingSystem{name: "a", log: &[]string{}})
	empty, err = r.pipeline.StageEmpty("only")
	if err != nil {
		t.Fatal(err)
	}
	if empty {
		t.Fatalf("stage with a system should not be empty")
	}

	if _, err := r.pipeline.StageEmpty("missing"); err == nil {
		t.Fatalf("expected StageNotFoundError")
	}
}

func TestHasStagesCombinators(t *testing.T) {
	r := newTestRegistry()
	_, _ = r.pipeline.AddStage("a")
	_, _ = r.pipeline.AddStage("b")

	if !r.pipeline.HasStages([]string{"a", "b"}, CombinatorAND) {
		t.Fatalf("expected AND to hold when every name exists")
	}
	if r.pipeline.HasStages([]string{"a", "missing"}, CombinatorAND) {
		t.Fatalf("expected AND to fail when one name is missing")
	}
	if !r.pipeline.HasStages([]string{"a", "missing"}, CombinatorOR) {
		t.Fatalf("expected OR to hold when at least one name exists")
	}
	if r.pipeline.HasStages([]string{"missing", "alsomissing"}, CombinatorOR) {
		t.Fatalf("expected OR to fail when no name exists")
	}
}

func TestStagesEmptyCombinators(t *testing.T) {
	r := newTestRegistry()
	empty, _ := r.pipeline.AddStage("empty")
	full, _ := r.pipeline.AddStage("full")
	full.AddSystem("a", recordingSystem{name: "a", log: &[]string{}})
	_ = empty

	if !r.pipeline.StagesEmpty([]string{"empty"}, CombinatorAND) {
		t.Fatalf("expected AND to hold when the only named stage is empty")
	}
	if r.pipeline.StagesEmpty([]string{"empty", "full"}, CombinatorAND) {
		t.Fatalf("expected AND to fail when one named stage is non-empty")
	}
	if !r.pipeline.StagesEmpty([]string{"empty", "full"}, CombinatorOR) {
		t.Fatalf("expected OR to hold when at least one named stage is empty")
	}
	if r.pipeline.StagesEmpty([]string{"full"}, CombinatorOR) {
		t.Fatalf("expected OR to fail when the only named stage is non-empty")
	}
	if r.pipeline.StagesEmpty([]string{"missing"}, CombinatorAND) {
		t.Fatalf("a name with no matching stage should never count as empty under AND")
	}
	if r.pipeline.StagesEmpty([]string{"missing"}, CombinatorOR) {
		t.Fatalf("a name with no matching stage should never count as empty under OR")
	}
}

func TestSubstageBeforeAfterAndRemove(t *testing.T) {
	r := newTestRegistry()
	parent, _ := r.pipeline.AddStage("parent")
	_, _ = parent.AddSubstage("a")
	_, _ = parent.AddSubstage("c")
	if _, err := parent.AddSubstageBefore("c", "b"); err != nil {
		t.Fatal(err)
	}
	if _, err := parent.AddSubstageAfter("c", "d"); err != nil {
		t.Fatal(err)
	}

	got := make([]string, len(parent.substages))
	for i, sub := range parent.substages {
		got[i] = sub.name
	}
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}

	if _, err := parent.AddSubstageBefore("missing", "x"); err == nil {
		t.Fatalf("expected StageNotFoundError for AddSubstageBefore with missing anchor")
	}
	if _, err := parent.AddSubstageAfter("missing", "x"); err == nil {
		t.Fatalf("expected StageNotFoundError for AddSubstageAfter with missing anchor")
	}
	if _, err := parent.AddSubstageBefore("c", "a"); err == nil {
		t.Fatalf("expected DuplicateStageError inserting a substage name that already exists")
	}

	if err := parent.RemoveSubstage("b"); err != nil {
		t.Fatal(err)
	}
	if parent.hasSubstage("b") {
		t.Fatalf("substage b should have been removed")
	}
	if err := parent.RemoveSubstage("missing"); err == nil {
		t.Fatalf("expected StageNotFoundError removing a missing substage")
	}
}

func TestSetPipelineReplacesWholesale(t *testing.T) {
	r := newTestRegistry()
	_, _ = r.pipeline.AddStage("old")

	var log []string
	fresh := newPipeline(r.pipeline.logger)
	s, _ := fresh.AddStage("new")
	s.AddSystem("n", recordingSystem{name: "n", log: &log})

	r.SetPipeline(fresh)

	if r.Pipeline() != fresh {
		t.Fatalf("Pipeline() should return the pipeline just installed by SetPipeline")
	}
	if r.Pipeline().HasStage("old") {
		t.Fatalf("the replaced pipeline's stages should not leak into the new one")
	}
	if err := r.Pipeline().Execute(r); err != nil {
		t.Fatal(err)
	}
	if len(log) != 1 || log[0] != "n" {
		t.Fatalf("expected the new pipeline's stage to run, got %v", log)
	}
}
