// Package tasktree holds a flow's tasks as an ordered list whose behavioral
// tasks own named slots, each slot being a nested ordered list.
package tasktree

import (
	"iter"

	"github.com/rendis/flowedit/internal/linkedlist"
	"github.com/rendis/flowedit/pkg/schema"
)

// Slot is a named nested sequence owned by a behavioral task.
type Slot struct {
	Name  string
	owner *TaskNode
	list  linkedlist.List[*TaskNode]
}

// Head returns the first task of the slot, or nil if it is empty.
func (s *Slot) Head() *TaskNode { return s.list.Head() }

// IsEmpty reports whether the slot holds no tasks.
func (s *Slot) IsEmpty() bool { return s.list.IsEmpty() }

// Len returns the number of tasks directly in the slot.
func (s *Slot) Len() int { return s.list.Len() }

// Tasks iterates the slot's tasks in order.
func (s *Slot) Tasks() iter.Seq[*TaskNode] { return s.list.All() }

// Owner returns the task that owns the slot.
func (s *Slot) Owner() *TaskNode { return s.owner }

// TaskNode is one task of the tree.
type TaskNode struct {
	Value schema.FlowTask

	links  linkedlist.Links[*TaskNode]
	parent *TaskNode
	slot   *Slot
	slots  []*Slot
	height int
}

func newTaskNode(task schema.FlowTask) *TaskNode {
	n := &TaskNode{Value: task}
	if task.IsBehavioral() {
		for _, name := range task.Subtasks {
			if n.Slot(name) != nil {
				continue
			}
			n.slots = append(n.slots, &Slot{Name: name, owner: n})
		}
	}
	return n
}

// Key returns the task id.
func (n *TaskNode) Key() string { return n.Value.ID }

// Link exposes the node's links to the owning list.
func (n *TaskNode) Link() *linkedlist.Links[*TaskNode] { return &n.links }

// SwapPayload exchanges task values with other.
func (n *TaskNode) SwapPayload(other *TaskNode) {
	n.Value, other.Value = other.Value, n.Value
}

// ID returns the task id.
func (n *TaskNode) ID() string { return n.Value.ID }

// Next returns the following sibling.
func (n *TaskNode) Next() *TaskNode { return n.links.Next() }

// Prev returns the preceding sibling.
func (n *TaskNode) Prev() *TaskNode { return n.links.Prev() }

// Parent returns the task owning the slot n lives in, or nil at top level.
func (n *TaskNode) Parent() *TaskNode { return n.parent }

// SlotName returns the name of the slot n lives in, or "" at top level.
func (n *TaskNode) SlotName() string {
	if n.slot == nil {
		return ""
	}
	return n.slot.Name
}

// Height is the deepest slot nesting beneath n.
func (n *TaskNode) Height() int { return n.height }

// Slots returns the node's slots in declaration order.
func (n *TaskNode) Slots() []*Slot { return n.slots }

// Slot returns the named slot, or nil if n does not declare it.
func (n *TaskNode) Slot(name string) *Slot {
	for _, s := range n.slots {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Children returns the head of the named slot, or nil.
func (n *TaskNode) Children(name string) *TaskNode {
	if s := n.Slot(name); s != nil {
		return s.Head()
	}
	return nil
}

// Walk visits n and every task nested in its slots, depth first. Siblings
// after n are not visited. Returning false from fn stops the walk.
func (n *TaskNode) Walk(fn func(*TaskNode) bool) bool {
	if !fn(n) {
		return false
	}
	for _, s := range n.slots {
		if !walkChain(s.Head(), fn) {
			return false
		}
	}
	return true
}

func walkChain(n *TaskNode, fn func(*TaskNode) bool) bool {
	for ; n != nil; n = n.Next() {
		if !n.Walk(fn) {
			return false
		}
	}
	return true
}

// reheight recomputes n.height from the current heights of its slot contents.
func (n *TaskNode) reheight() {
	h := 0
	for _, s := range n.slots {
		for c := s.Head(); c != nil; c = c.Next() {
			if c.height+1 > h {
				h = c.height + 1
			}
		}
	}
	n.height = h
}

// reheightAncestors recomputes heights from p up to the root. After each
// node it rewinds to the first sibling and climbs to that sibling's parent.
func reheightAncestors(p *TaskNode) {
	for p != nil {
		p.reheight()
		for p.Prev() != nil {
			p = p.Prev()
		}
		p = p.parent
	}
}
