package editor

import (
	"testing"

	"github.com/rendis/flowedit/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowFromAPI(t *testing.T) {
	api := schema.FlowAPI{
		ID:      "f1",
		Name:    "Loop",
		Version: "2",
		Tags:    []string{"demo"},
		Variables: map[string]schema.Variable{
			"item": localVar(schema.PropertyAny),
		},
		Tasks: []schema.FlowTaskAPI{
			{
				ID:         "loop",
				Name:       schema.TaskForeach,
				Type:       schema.TaskTypeBehavioral,
				Properties: map[string]schema.Value{},
				Outputs:    map[string]string{"item": "item"},
				Subtasks: map[string][]schema.FlowTaskAPI{
					schema.SlotForeach: {{
						ID:         "log",
						Name:       "core.log",
						Type:       schema.TaskTypeRunnable,
						Properties: map[string]schema.Value{},
						Outputs:    map[string]string{},
					}},
				},
			},
		},
		Errors: []schema.FlowError{{Code: "X", Message: "m", Origin: []string{"log"}}},
	}

	f, err := FlowFromAPI(api)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Tasks.Len())
	assert.Equal(t, 1, f.Tasks.Head().Height())

	f.Variables["extra"] = localVar(schema.PropertyString)
	assert.NotContains(t, api.Variables, "extra", "variables are copied")

	delete(f.Variables, "extra")
	assert.Equal(t, api, f.ToAPI())
}

func TestFlowFromAPI_DuplicateIDs(t *testing.T) {
	task := schema.FlowTaskAPI{ID: "a", Name: "core.log", Type: schema.TaskTypeRunnable}
	_, err := FlowFromAPI(schema.FlowAPI{Name: "dup", Tasks: []schema.FlowTaskAPI{task, task}})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeConflict))
}

func TestNewFlow_ToAPI(t *testing.T) {
	api := NewFlow("blank").ToAPI()
	assert.Equal(t, "blank", api.Name)
	assert.NotNil(t, api.Variables)
	assert.NotNil(t, api.Tasks)
	assert.NotNil(t, api.Errors)
	assert.Empty(t, api.Tasks)
}
