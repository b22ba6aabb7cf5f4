package tasktree

import (
	"iter"

	"github.com/rendis/flowedit/internal/linkedlist"
	"github.com/rendis/flowedit/pkg/schema"
)

// Tree is the task list of one flow. Task ids are unique across the whole
// tree, nested slots included.
type Tree struct {
	list  linkedlist.List[*TaskNode]
	index map[string]*TaskNode
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{index: make(map[string]*TaskNode)}
}

// Head returns the first top-level task, or nil.
func (t *Tree) Head() *TaskNode { return t.list.Head() }

// IsEmpty reports whether the tree has no tasks.
func (t *Tree) IsEmpty() bool { return t.list.IsEmpty() }

// Len returns the number of tasks in the tree, nested ones included.
func (t *Tree) Len() int { return len(t.index) }

// Tasks iterates the top-level tasks in order.
func (t *Tree) Tasks() iter.Seq[*TaskNode] { return t.list.All() }

// Walk visits every task depth first: each task, then the contents of its
// slots in declaration order, then its next sibling.
func (t *Tree) Walk(fn func(*TaskNode) bool) {
	walkChain(t.list.Head(), fn)
}

// SearchTask returns the task with the given id, or nil.
func (t *Tree) SearchTask(id string) *TaskNode {
	var found *TaskNode
	t.Walk(func(n *TaskNode) bool {
		if n.Key() == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Contains reports whether n is currently part of the tree.
func (t *Tree) Contains(n *TaskNode) bool {
	return n != nil && t.index[n.Key()] == n
}

// AddTask inserts task and returns its node.
//
// With an empty parentID the task goes to the top level, otherwise into the
// named slot of the parent. An empty target sequence takes the task as its
// head. In a populated sequence the task goes after afterID when given and
// before the current head when not.
func (t *Tree) AddTask(parentID, slotName, afterID string, task schema.FlowTask) (*TaskNode, error) {
	if task.ID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "task id is required")
	}
	if _, exists := t.index[task.ID]; exists {
		return nil, schema.NewErrorf(schema.ErrCodeConflict, "task id %q already in use", task.ID).
			WithTask(task.ID)
	}

	list := &t.list
	var parent *TaskNode
	var slot *Slot
	if parentID != "" {
		parent = t.SearchTask(parentID)
		if parent == nil {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "parent task %q not found", parentID)
		}
		slot = parent.Slot(slotName)
		if slot == nil {
			return nil, schema.NewErrorf(schema.ErrCodeInvalidSlot, "task %q has no slot %q", parentID, slotName).
				WithTask(parentID)
		}
		list = &slot.list
	}

	var anchor *TaskNode
	if !list.IsEmpty() && afterID != "" {
		anchor = t.index[afterID]
		if anchor == nil || anchor.slot != slot {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "task %q not found in target sequence", afterID).
				WithTask(afterID)
		}
	}

	n := newTaskNode(task)
	n.parent = parent
	n.slot = slot
	if anchor != nil {
		list.InsertAfter(anchor, n)
	} else {
		list.Prepend(n)
	}
	t.index[n.Key()] = n
	reheightAncestors(parent)
	return n, nil
}

// UpdateTask replaces the value of node in place. Links, slots and heights
// are kept. The id, type and slot names are fixed; changing them needs a
// delete and an add.
func (t *Tree) UpdateTask(node *TaskNode, task schema.FlowTask) error {
	if !t.Contains(node) {
		return schema.NewError(schema.ErrCodeNotFound, "task not in tree")
	}
	if task.ID == "" {
		task.ID = node.Key()
	}
	if task.ID != node.Key() {
		return schema.NewErrorf(schema.ErrCodeValidation, "task id %q cannot change to %q", node.Key(), task.ID).
			WithTask(node.Key())
	}
	if task.Type != node.Value.Type || !sameSlots(node, task) {
		return schema.NewErrorf(schema.ErrCodeInvalidSlot, "task %q cannot change its type or slots", node.Key()).
			WithTask(node.Key())
	}
	node.Value = task
	return nil
}

// sameSlots reports whether task declares exactly the slots node owns.
func sameSlots(node *TaskNode, task schema.FlowTask) bool {
	want := make(map[string]struct{})
	if task.IsBehavioral() {
		for _, name := range task.Subtasks {
			want[name] = struct{}{}
		}
	}
	if len(want) != len(node.slots) {
		return false
	}
	for _, s := range node.slots {
		if _, ok := want[s.Name]; !ok {
			return false
		}
	}
	return true
}

// DeleteTask unlinks node and its whole subtree. parentID and slotName must
// name the node's current location ("" for the top level).
func (t *Tree) DeleteTask(node *TaskNode, parentID, slotName string) error {
	if !t.Contains(node) {
		return schema.NewError(schema.ErrCodeNotFound, "task not in tree")
	}

	list := &t.list
	var parent *TaskNode
	if parentID == "" {
		if node.parent != nil {
			return schema.NewErrorf(schema.ErrCodeInvalidSlot, "task is nested under %q", node.parent.Key()).
				WithTask(node.Key())
		}
	} else {
		parent = t.SearchTask(parentID)
		if parent == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "parent task %q not found", parentID)
		}
		slot := parent.Slot(slotName)
		if slot == nil || node.slot != slot {
			return schema.NewErrorf(schema.ErrCodeInvalidSlot, "task is not in slot %q of %q", slotName, parentID).
				WithTask(node.Key())
		}
		list = &slot.list
	}

	list.Delete(node)
	node.parent = nil
	node.slot = nil
	node.Walk(func(n *TaskNode) bool {
		delete(t.index, n.Key())
		return true
	})
	reheightAncestors(parent)
	return nil
}
