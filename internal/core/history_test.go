package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"chronicle/internal/infra/archive/memory"
	"chronicle/pkg/domain"
)

func documentContainer(t *testing.T) *Container {
	t.Helper()
	return domain.NewContainer(map[string]Value{
		"title":   domain.StringValue("My Document"),
		"content": domain.StringValue("Hello World!"),
	})
}

func newHistory(t *testing.T, c *Container, opts ...HistoryOption) *History {
	t.Helper()
	h, err := NewHistory(c, opts...)
	if err != nil {
		t.Fatalf("NewHistory: %v", err)
	}
	return h
}

func attrString(t *testing.T, c *Container, name string) string {
	t.Helper()
	v, err := c.Get(name)
	if err != nil {
		t.Fatalf("get %s: %v", name, err)
	}
	s, ok := v.AsString()
	if !ok {
		t.Fatalf("attribute %s is not a string", name)
	}
	return s
}

func TestNewHistoryCapturesBaseline(t *testing.T) {
	h := newHistory(t, documentContainer(t))

	if h.Len() != 1 || h.Cursor() != 0 {
		t.Fatalf("len=%d cursor=%d", h.Len(), h.Cursor())
	}
	log := h.Log()
	if len(log) != 1 || !log[0].Current {
		t.Fatalf("unexpected log %+v", log)
	}
	if log[0].Label.Description != "Initial State" || log[0].Label.Seq != 0 {
		t.Fatalf("unexpected baseline label %+v", log[0].Label)
	}
}

func TestDocumentEditUndoRedo(t *testing.T) {
	c := documentContainer(t)
	h := newHistory(t, c)

	if _, err := h.Checkpoint("before edit"); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if err := c.Set("content", domain.StringValue("Hello OpenAI!")); err != nil {
		t.Fatalf("set: %v", err)
	}
	// The mutation checkpoints automatically through the commit observer.
	if h.Len() != 3 {
		t.Fatalf("expected auto checkpoint, len=%d", h.Len())
	}

	if err := h.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if got := attrString(t, c, "content"); got != "Hello World!" {
		t.Fatalf("after undo content = %q", got)
	}
	if err := h.Redo(); err != nil {
		t.Fatalf("redo: %v", err)
	}
	if got := attrString(t, c, "content"); got != "Hello OpenAI!" {
		t.Fatalf("after redo content = %q", got)
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	const n = 5
	c := documentContainer(t)
	h := newHistory(t, c)

	for i := 0; i < n; i++ {
		if err := c.Set("content", domain.StringValue(fmt.Sprintf("revision %d", i))); err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
	}
	before, err := c.Capture()
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	for i := 0; i < n; i++ {
		if err := h.Undo(); err != nil {
			t.Fatalf("undo %d: %v", i, err)
		}
	}
	for i := 0; i < n; i++ {
		if err := h.Redo(); err != nil {
			t.Fatalf("redo %d: %v", i, err)
		}
	}

	after, err := c.Capture()
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !after.Equal(before) {
		t.Fatalf("n undos + n redos did not round trip")
	}
}

func TestBoundariesLeaveStateUnchanged(t *testing.T) {
	c := documentContainer(t)
	h := newHistory(t, c)

	if err := h.Undo(); !errors.Is(err, ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo, got %v", err)
	}
	if h.Len() != 1 || h.Cursor() != 0 {
		t.Fatalf("failed undo mutated history: len=%d cursor=%d", h.Len(), h.Cursor())
	}

	if err := h.Redo(); !errors.Is(err, ErrNothingToRedo) {
		t.Fatalf("expected ErrNothingToRedo, got %v", err)
	}
	if h.Len() != 1 || h.Cursor() != 0 {
		t.Fatalf("failed redo mutated history: len=%d cursor=%d", h.Len(), h.Cursor())
	}
	if got := attrString(t, c, "content"); got != "Hello World!" {
		t.Fatalf("boundary errors must not touch the container, content=%q", got)
	}
}

func TestCheckpointAfterUndoAppendsAtTail(t *testing.T) {
	c := documentContainer(t)
	h := newHistory(t, c)

	if err := c.Set("content", domain.StringValue("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Set("content", domain.StringValue("v2")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := h.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	lenBefore := h.Len()

	// Append-only policy: the entry holding "v2" stays in the log, the new
	// checkpoint lands at the tail and the cursor jumps there.
	if err := c.Set("content", domain.StringValue("v3")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if h.Len() != lenBefore+1 {
		t.Fatalf("expected append, len went %d -> %d", lenBefore, h.Len())
	}
	if h.Cursor() != h.Len()-1 {
		t.Fatalf("cursor %d not at tail %d", h.Cursor(), h.Len()-1)
	}
	if err := h.Redo(); !errors.Is(err, ErrNothingToRedo) {
		t.Fatalf("entries beyond the old cursor must not be redo-reachable, got %v", err)
	}
}

func TestUndoRestoresNestedInstanceInPlace(t *testing.T) {
	child := domain.NewContainer(map[string]Value{"value": domain.IntValue(10)})
	parent := domain.NewContainer(map[string]Value{"child": domain.ContainerValue(child)})
	h := newHistory(t, parent)

	replacement := domain.NewContainer(map[string]Value{"value": domain.IntValue(15)})
	if err := parent.Set("child", domain.ContainerValue(replacement)); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := h.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	v, err := parent.Get("child")
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	nested, ok := v.AsContainer()
	if !ok {
		t.Fatalf("child is not a container")
	}
	// Identity preservation: the restore walked into the instance held at
	// "child" rather than swapping it out, so external handles stay valid.
	if nested != replacement {
		t.Fatalf("expected in-place restore into the held instance")
	}
	got, err := nested.Get("value")
	if err != nil {
		t.Fatalf("get value: %v", err)
	}
	if i, _ := got.AsInt(); i != 10 {
		t.Fatalf("after undo nested value = %d, want 10", i)
	}
}

func TestSaveLoadRoundTripAcrossContainers(t *testing.T) {
	ctx := context.Background()
	archive := memory.New()

	c := documentContainer(t)
	h := newHistory(t, c, WithArchive(archive))
	if err := c.Set("content", domain.StringValue("Hello OpenAI!")); err != nil {
		t.Fatalf("set: %v", err)
	}
	ref, err := h.Save(ctx, "draft")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	saved, err := c.Capture()
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	// A separately constructed container with the same initial shape adopts
	// the archived state attribute for attribute.
	other := documentContainer(t)
	oh := newHistory(t, other, WithArchive(archive))
	if err := oh.Load(ctx, ref); err != nil {
		t.Fatalf("load: %v", err)
	}
	loaded, err := other.Capture()
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !loaded.Equal(saved) {
		t.Fatalf("loaded state differs from saved state")
	}
	if oh.Cursor() != oh.Len()-1 {
		t.Fatalf("load must leave the cursor at the tail")
	}
}

func TestSaveAppendsToHistory(t *testing.T) {
	ctx := context.Background()
	c := documentContainer(t)
	h := newHistory(t, c, WithArchive(memory.New()))

	lenBefore := h.Len()
	if _, err := h.Save(ctx, "slot"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if h.Len() != lenBefore+1 || h.Cursor() != h.Len()-1 {
		t.Fatalf("save must checkpoint: len=%d cursor=%d", h.Len(), h.Cursor())
	}
	log := h.Log()
	if log[len(log)-1].Label.Description != `Saved as "slot"` {
		t.Fatalf("unexpected save label %+v", log[len(log)-1].Label)
	}
}

type failingArchive struct{}

func (failingArchive) Save(context.Context, string, Snapshot, Label) (string, error) {
	return "", fmt.Errorf("disk full")
}

func (failingArchive) Load(context.Context, string) (Snapshot, Label, error) {
	return Snapshot{}, Label{}, fmt.Errorf("disk gone")
}

func (failingArchive) List(context.Context) ([]domain.ArchiveInfo, error) {
	return nil, fmt.Errorf("disk gone")
}

func (failingArchive) Delete(context.Context, string) (bool, error) {
	return false, fmt.Errorf("disk gone")
}

func TestSaveFailureLeavesHistoryUntouched(t *testing.T) {
	c := documentContainer(t)
	h := newHistory(t, c, WithArchive(failingArchive{}))

	lenBefore, cursorBefore := h.Len(), h.Cursor()
	if _, err := h.Save(context.Background(), "doomed"); err == nil {
		t.Fatalf("expected save failure")
	}
	if h.Len() != lenBefore || h.Cursor() != cursorBefore {
		t.Fatalf("failed save mutated history: len=%d cursor=%d", h.Len(), h.Cursor())
	}
}

func TestLoadMissingRefLeavesStateUntouched(t *testing.T) {
	c := documentContainer(t)
	h := newHistory(t, c, WithArchive(memory.New()))

	lenBefore := h.Len()
	err := h.Load(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
	if h.Len() != lenBefore {
		t.Fatalf("failed load mutated history")
	}
	if got := attrString(t, c, "content"); got != "Hello World!" {
		t.Fatalf("failed load mutated container, content=%q", got)
	}
}

func TestSaveWithoutArchive(t *testing.T) {
	h := newHistory(t, documentContainer(t))
	if _, err := h.Save(context.Background(), "x"); !errors.Is(err, ErrNoArchive) {
		t.Fatalf("expected ErrNoArchive, got %v", err)
	}
	if err := h.Load(context.Background(), "x"); !errors.Is(err, ErrNoArchive) {
		t.Fatalf("expected ErrNoArchive, got %v", err)
	}
}

func TestLabelsAreMonotonic(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	c := documentContainer(t)
	h := newHistory(t, c, WithClock(func() time.Time { return now }))

	for i := 0; i < 3; i++ {
		if _, err := h.Checkpoint(fmt.Sprintf("cp %d", i)); err != nil {
			t.Fatalf("checkpoint: %v", err)
		}
	}
	log := h.Log()
	for i, entry := range log {
		if entry.Label.Seq != uint64(i) {
			t.Fatalf("label %d has seq %d", i, entry.Label.Seq)
		}
		if !entry.Label.At.Equal(now) {
			t.Fatalf("label %d has timestamp %v", i, entry.Label.At)
		}
	}
}
