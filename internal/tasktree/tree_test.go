package tasktree

import (
	"testing"

	"github.com/rendis/flowedit/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Fixtures ---

func runnable(id string) schema.FlowTask {
	return schema.FlowTask{
		ID:          id,
		Name:        "core.http.request",
		DisplayName: "Request " + id,
		Type:        schema.TaskTypeRunnable,
		Properties:  map[string]schema.Value{"url": schema.StringValue("https://example.com")},
		Outputs:     map[string]string{"body": ""},
	}
}

func foreach(id string) schema.FlowTask {
	return schema.FlowTask{
		ID:          id,
		Name:        schema.TaskForeach,
		DisplayName: "Loop " + id,
		Type:        schema.TaskTypeBehavioral,
		Properties:  map[string]schema.Value{"items": schema.StringValue("$items")},
		Outputs:     map[string]string{},
		Subtasks:    []string{schema.SlotForeach},
	}
}

func mustAdd(t *testing.T, tree *Tree, parentID, slot, afterID string, task schema.FlowTask) *TaskNode {
	t.Helper()
	n, err := tree.AddTask(parentID, slot, afterID, task)
	require.NoError(t, err)
	require.NotNil(t, n)
	return n
}

func chainIDs(n *TaskNode) []string {
	var ids []string
	for ; n != nil; n = n.Next() {
		ids = append(ids, n.ID())
	}
	return ids
}

func walkIDs(tree *Tree) []string {
	var ids []string
	tree.Walk(func(n *TaskNode) bool {
		ids = append(ids, n.ID())
		return true
	})
	return ids
}

// --- AddTask ---

func TestAddTask_TopLevel(t *testing.T) {
	tree := New()
	assert.True(t, tree.IsEmpty())

	a := mustAdd(t, tree, "", "", "", runnable("a"))
	assert.Same(t, a, tree.Head())
	assert.Nil(t, a.Parent())

	mustAdd(t, tree, "", "", "a", runnable("c"))
	b := mustAdd(t, tree, "", "", "a", runnable("b"))
	assert.Equal(t, "b", a.Next().ID())
	assert.Same(t, a, b.Prev())

	// No afterID on a populated list prepends.
	mustAdd(t, tree, "", "", "", runnable("z"))
	assert.Equal(t, []string{"z", "a", "b", "c"}, chainIDs(tree.Head()))
	assert.Equal(t, 4, tree.Len())
}

func TestAddTask_IntoEmptySlot(t *testing.T) {
	tree := New()
	loop := mustAdd(t, tree, "", "", "", foreach("loop"))
	assert.Equal(t, 0, loop.Height())

	child := mustAdd(t, tree, "loop", schema.SlotForeach, "", runnable("x"))
	assert.Same(t, child, loop.Children(schema.SlotForeach))
	assert.Same(t, loop, child.Parent())
	assert.Equal(t, schema.SlotForeach, child.SlotName())
	assert.Equal(t, 1, loop.Height())
}

func TestAddTask_IntoPopulatedSlot(t *testing.T) {
	tree := New()
	loop := mustAdd(t, tree, "", "", "", foreach("loop"))
	mustAdd(t, tree, "loop", schema.SlotForeach, "", runnable("x"))
	y := mustAdd(t, tree, "loop", schema.SlotForeach, "x", runnable("y"))
	assert.Same(t, loop, y.Parent())

	// Without afterID the task goes before the existing head.
	w := mustAdd(t, tree, "loop", schema.SlotForeach, "", runnable("w"))
	assert.Same(t, w, loop.Children(schema.SlotForeach))
	assert.Same(t, loop, w.Parent())
	assert.Equal(t, []string{"w", "x", "y"}, chainIDs(loop.Children(schema.SlotForeach)))
	assert.Equal(t, 1, loop.Height())
}

func TestAddTask_Errors(t *testing.T) {
	tree := New()
	mustAdd(t, tree, "", "", "", foreach("loop"))
	mustAdd(t, tree, "", "", "loop", runnable("r"))
	mustAdd(t, tree, "loop", schema.SlotForeach, "", runnable("x"))

	tests := []struct {
		name     string
		parentID string
		slot     string
		afterID  string
		task     schema.FlowTask
		code     string
	}{
		{"missing id", "", "", "", schema.FlowTask{Type: schema.TaskTypeRunnable}, schema.ErrCodeValidation},
		{"duplicate top level", "", "", "", runnable("r"), schema.ErrCodeConflict},
		{"duplicate nested", "", "", "", runnable("x"), schema.ErrCodeConflict},
		{"unknown parent", "nope", schema.SlotForeach, "", runnable("n"), schema.ErrCodeNotFound},
		{"unknown slot", "loop", "else", "", runnable("n"), schema.ErrCodeInvalidSlot},
		{"runnable parent", "r", schema.SlotForeach, "", runnable("n"), schema.ErrCodeInvalidSlot},
		{"unknown anchor", "", "", "nope", runnable("n"), schema.ErrCodeNotFound},
		{"anchor in other sequence", "", "", "x", runnable("n"), schema.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := walkIDs(tree)
			n, err := tree.AddTask(tt.parentID, tt.slot, tt.afterID, tt.task)
			require.Error(t, err)
			assert.Nil(t, n)
			assert.True(t, schema.HasCode(err, tt.code), "got %v", err)
			assert.Equal(t, before, walkIDs(tree))
			assert.Equal(t, 3, tree.Len())
		})
	}
}

// --- SearchTask / Walk ---

func TestSearchTask(t *testing.T) {
	tree := New()
	mustAdd(t, tree, "", "", "", runnable("a"))
	mustAdd(t, tree, "", "", "a", foreach("outer"))
	mustAdd(t, tree, "outer", schema.SlotForeach, "", foreach("inner"))
	mustAdd(t, tree, "inner", schema.SlotForeach, "", runnable("deep"))
	mustAdd(t, tree, "outer", schema.SlotForeach, "inner", runnable("after-inner"))
	mustAdd(t, tree, "", "", "outer", runnable("z"))

	for _, id := range []string{"a", "outer", "inner", "deep", "after-inner", "z"} {
		n := tree.SearchTask(id)
		require.NotNil(t, n, id)
		assert.Equal(t, id, n.Value.ID)
	}
	assert.Nil(t, tree.SearchTask("missing"))

	assert.Equal(t, []string{"a", "outer", "inner", "deep", "after-inner", "z"}, walkIDs(tree))

	require.NoError(t, tree.DeleteTask(tree.SearchTask("inner"), "outer", schema.SlotForeach))
	assert.Nil(t, tree.SearchTask("inner"))
	assert.Nil(t, tree.SearchTask("deep"))
	assert.NotNil(t, tree.SearchTask("after-inner"))
	assert.Equal(t, 4, tree.Len())
}

// --- Height ---

func TestReheight(t *testing.T) {
	tree := New()
	outer := mustAdd(t, tree, "", "", "", foreach("outer"))
	inner := mustAdd(t, tree, "outer", schema.SlotForeach, "", foreach("inner"))
	assert.Equal(t, 1, outer.Height())
	assert.Equal(t, 0, inner.Height())

	// A sibling after the inner loop does not lower the outer height.
	mustAdd(t, tree, "outer", schema.SlotForeach, "inner", runnable("sib"))
	deep := mustAdd(t, tree, "inner", schema.SlotForeach, "", runnable("deep"))
	assert.Equal(t, 1, inner.Height())
	assert.Equal(t, 2, outer.Height())

	require.NoError(t, tree.DeleteTask(deep, "inner", schema.SlotForeach))
	assert.Equal(t, 0, inner.Height())
	assert.Equal(t, 1, outer.Height())

	require.NoError(t, tree.DeleteTask(inner, "outer", schema.SlotForeach))
	assert.Equal(t, 1, outer.Height())

	require.NoError(t, tree.DeleteTask(tree.SearchTask("sib"), "outer", schema.SlotForeach))
	assert.Equal(t, 0, outer.Height())
}

func TestReheight_FromNonHeadSibling(t *testing.T) {
	tree := New()
	outer := mustAdd(t, tree, "", "", "", foreach("outer"))
	mustAdd(t, tree, "outer", schema.SlotForeach, "", runnable("first"))
	second := mustAdd(t, tree, "outer", schema.SlotForeach, "first", foreach("second"))
	mustAdd(t, tree, "second", schema.SlotForeach, "", runnable("deep"))

	assert.Equal(t, 1, second.Height())
	assert.Equal(t, 2, outer.Height())
}

// --- UpdateTask ---

func TestUpdateTask(t *testing.T) {
	tree := New()
	loop := mustAdd(t, tree, "", "", "", foreach("loop"))
	mustAdd(t, tree, "loop", schema.SlotForeach, "", runnable("x"))

	updated := loop.Value.Clone()
	updated.DisplayName = "Renamed"
	updated.Properties["items"] = schema.StringValue("$other")
	require.NoError(t, tree.UpdateTask(loop, updated))

	assert.Equal(t, "Renamed", tree.SearchTask("loop").Value.DisplayName)
	assert.Equal(t, 1, loop.Height())
	assert.Equal(t, "x", loop.Children(schema.SlotForeach).ID())

	t.Run("id change rejected", func(t *testing.T) {
		v := loop.Value.Clone()
		v.ID = "loop2"
		err := tree.UpdateTask(loop, v)
		assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
		assert.Equal(t, "loop", loop.ID())
		assert.Same(t, loop, tree.SearchTask("loop"))
		assert.Nil(t, tree.SearchTask("loop2"))

		_, err = tree.AddTask("", "", "loop", runnable("loop"))
		assert.True(t, schema.HasCode(err, schema.ErrCodeConflict))
	})

	t.Run("empty id keeps the node id", func(t *testing.T) {
		v := loop.Value.Clone()
		v.ID = ""
		v.DisplayName = "Again"
		require.NoError(t, tree.UpdateTask(loop, v))
		assert.Equal(t, "loop", loop.ID())
		assert.Equal(t, "Again", loop.Value.DisplayName)
	})

	t.Run("type change rejected", func(t *testing.T) {
		before := loop.Value
		err := tree.UpdateTask(loop, runnable("loop"))
		assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidSlot))
		assert.Equal(t, before, loop.Value)
		assert.Equal(t, "x", loop.Children(schema.SlotForeach).ID())

		back, err := FromAPI(tree.ToAPI())
		require.NoError(t, err)
		assert.Equal(t, []string{"loop", "x"}, walkIDs(back))
	})

	t.Run("slot change rejected", func(t *testing.T) {
		v := loop.Value.Clone()
		v.Subtasks = []string{"then", "else"}
		err := tree.UpdateTask(loop, v)
		assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidSlot))
		assert.Equal(t, []string{schema.SlotForeach}, loop.Value.Subtasks)
	})

	t.Run("subtasks on a runnable rejected", func(t *testing.T) {
		x := tree.SearchTask("x")
		v := x.Value.Clone()
		v.Subtasks = []string{schema.SlotForeach}
		err := tree.UpdateTask(x, v)
		assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidSlot))
	})

	t.Run("detached node", func(t *testing.T) {
		err := tree.UpdateTask(newTaskNode(runnable("ghost")), runnable("ghost"))
		assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
	})
}

// --- DeleteTask ---

func TestDeleteTask_TopLevel(t *testing.T) {
	tree := New()
	a := mustAdd(t, tree, "", "", "", runnable("a"))
	mustAdd(t, tree, "", "", "a", runnable("b"))
	mustAdd(t, tree, "", "", "b", runnable("c"))

	require.NoError(t, tree.DeleteTask(tree.SearchTask("b"), "", ""))
	assert.Equal(t, []string{"a", "c"}, chainIDs(tree.Head()))

	require.NoError(t, tree.DeleteTask(a, "", ""))
	assert.Equal(t, []string{"c"}, chainIDs(tree.Head()))
	assert.Nil(t, tree.Head().Prev())

	require.NoError(t, tree.DeleteTask(tree.Head(), "", ""))
	assert.True(t, tree.IsEmpty())
	assert.Nil(t, tree.Head())
	assert.Equal(t, 0, tree.Len())
}

func TestDeleteTask_SlotHead(t *testing.T) {
	tree := New()
	loop := mustAdd(t, tree, "", "", "", foreach("loop"))
	x := mustAdd(t, tree, "loop", schema.SlotForeach, "", runnable("x"))
	mustAdd(t, tree, "loop", schema.SlotForeach, "x", runnable("y"))

	require.NoError(t, tree.DeleteTask(x, "loop", schema.SlotForeach))
	head := loop.Children(schema.SlotForeach)
	require.NotNil(t, head)
	assert.Equal(t, "y", head.ID())
	assert.Same(t, loop, head.Parent())
	assert.Nil(t, head.Prev())
	assert.Nil(t, x.Parent())
	assert.Equal(t, 1, loop.Height())

	require.NoError(t, tree.DeleteTask(head, "loop", schema.SlotForeach))
	assert.Nil(t, loop.Children(schema.SlotForeach))
	assert.Equal(t, 0, loop.Height())
}

func TestDeleteTask_Errors(t *testing.T) {
	tree := New()
	mustAdd(t, tree, "", "", "", foreach("loop"))
	x := mustAdd(t, tree, "loop", schema.SlotForeach, "", runnable("x"))

	err := tree.DeleteTask(x, "", "")
	assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidSlot))

	err = tree.DeleteTask(x, "loop", "other")
	assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidSlot))

	err = tree.DeleteTask(x, "nope", schema.SlotForeach)
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))

	err = tree.DeleteTask(nil, "", "")
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))

	assert.Equal(t, []string{"loop", "x"}, walkIDs(tree))

	require.NoError(t, tree.DeleteTask(x, "loop", schema.SlotForeach))
	err = tree.DeleteTask(x, "loop", schema.SlotForeach)
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound), "stale handle")
}

func TestOrderPreservation(t *testing.T) {
	tree := New()
	mustAdd(t, tree, "", "", "", runnable("1"))
	mustAdd(t, tree, "", "", "1", runnable("2"))
	mustAdd(t, tree, "", "", "2", runnable("3"))
	mustAdd(t, tree, "", "", "3", runnable("4"))
	require.NoError(t, tree.DeleteTask(tree.SearchTask("3"), "", ""))
	mustAdd(t, tree, "", "", "2", runnable("5"))

	assert.Equal(t, []string{"1", "2", "5", "4"}, chainIDs(tree.Head()))
	assert.Equal(t, "5", tree.SearchTask("2").Next().ID())
}
