package tasktree

import (
	"fmt"
	"sort"

	"github.com/rendis/flowedit/pkg/schema"
)

// FromAPI builds a tree from the nested wire form by replaying AddTask in
// array order. Slots of one task are replayed in sorted name order.
func FromAPI(tasks []schema.FlowTaskAPI) (*Tree, error) {
	t := New()
	if err := t.replay("", "", tasks); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) replay(parentID, slotName string, tasks []schema.FlowTaskAPI) error {
	prevID := ""
	for _, api := range tasks {
		if _, err := t.AddTask(parentID, slotName, prevID, flowTaskFromAPI(api)); err != nil {
			return fmt.Errorf("map task %q: %w", api.ID, err)
		}
		for _, name := range sortedSlots(api.Subtasks) {
			if err := t.replay(api.ID, name, api.Subtasks[name]); err != nil {
				return err
			}
		}
		prevID = api.ID
	}
	return nil
}

// ToAPI converts the tree back to the nested wire form.
func (t *Tree) ToAPI() []schema.FlowTaskAPI {
	return chainToAPI(t.Head())
}

func chainToAPI(n *TaskNode) []schema.FlowTaskAPI {
	out := []schema.FlowTaskAPI{}
	for ; n != nil; n = n.Next() {
		out = append(out, n.ToAPI())
	}
	return out
}

// ToAPI converts n and its slots to the nested wire form. Every slot the
// task declares is emitted, empty ones as an empty list, so a foreach read
// without a subtasks key comes back with subtasks.foreach set to [].
func (n *TaskNode) ToAPI() schema.FlowTaskAPI {
	v := n.Value.Clone()
	api := schema.FlowTaskAPI{
		ID:          v.ID,
		Name:        v.Name,
		DisplayName: v.DisplayName,
		Type:        v.Type,
		Properties:  v.Properties,
		Outputs:     v.Outputs,
	}
	if len(n.slots) > 0 {
		api.Subtasks = make(map[string][]schema.FlowTaskAPI, len(n.slots))
		for _, s := range n.slots {
			api.Subtasks[s.Name] = chainToAPI(s.Head())
		}
	}
	return api
}

func flowTaskFromAPI(api schema.FlowTaskAPI) schema.FlowTask {
	task := schema.FlowTask{
		ID:          api.ID,
		Name:        api.Name,
		DisplayName: api.DisplayName,
		Type:        api.Type,
		Properties:  api.Properties,
		Outputs:     api.Outputs,
	}
	if task.IsBehavioral() {
		task.Subtasks = sortedSlots(api.Subtasks)
		if len(task.Subtasks) == 0 && task.Name == schema.TaskForeach {
			task.Subtasks = []string{schema.SlotForeach}
		}
	}
	return task.Clone()
}

func sortedSlots(m map[string][]schema.FlowTaskAPI) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
