package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/flowedit/internal/catalog"
	"github.com/rendis/flowedit/internal/diagram"
	"github.com/rendis/flowedit/internal/editor"
	"github.com/rendis/flowedit/internal/logging"
	"github.com/rendis/flowedit/pkg/schema"
)

// openResult summarizes the flow opened by flow.open.
type openResult struct {
	ID        string             `json:"id,omitempty"`
	Name      string             `json:"name"`
	Tasks     int                `json:"tasks"`
	Variables int                `json:"variables"`
	Errors    []schema.FlowError `json:"errors"`
}

// taskResult is returned by the task mutation tools.
type taskResult struct {
	TaskID string             `json:"task_id"`
	Errors []schema.FlowError `json:"errors"`
}

// saveResult is returned by flow.save.
type saveResult struct {
	ID        string    `json:"id"`
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

// handleOpen opens a flow from the store, from a document or as a new empty flow.
func (s *Server) handleOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "flow.open")
	flowID := req.GetString("flow_id", "")
	document := mcp.ParseStringMap(req, "document", nil)
	name := req.GetString("name", "")

	var flow *editor.Flow
	switch {
	case flowID != "":
		if s.store == nil {
			return mcp.NewToolResultError("no draft store configured"), nil
		}
		rec, err := s.store.GetFlow(ctx, flowID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("flow lookup failed: %v", err)), nil
		}
		doc := rec.Document
		doc.ID = rec.ID
		if flow, err = editor.FlowFromAPI(doc); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	case document != nil:
		doc, err := s.decodeDocument(document)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if flow, err = editor.FlowFromAPI(doc); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	case name != "":
		flow = editor.NewFlow(name)
	default:
		return mcp.NewToolResultError("one of flow_id, document or name is required"), nil
	}

	s.mu.Lock()
	s.editor.SetFlow(flow)
	result := openResult{
		ID:        flow.ID,
		Name:      flow.Name,
		Tasks:     flow.Tasks.Len(),
		Variables: len(flow.Variables),
		Errors:    nonNilErrors(flow.Errors),
	}
	s.mu.Unlock()

	s.logger.InfoContext(logging.WithFlowID(ctx, flow.ID), "flow opened", "name", flow.Name, "tasks", result.Tasks)
	return marshalResult(result)
}

// decodeDocument checks a raw flow document against the document schema
// and decodes it.
func (s *Server) decodeDocument(raw map[string]any) (schema.FlowAPI, error) {
	var doc schema.FlowAPI
	data, err := json.Marshal(raw)
	if err != nil {
		return doc, fmt.Errorf("encode document: %w", err)
	}
	if s.schemas != nil {
		if err := s.schemas.ValidateDocument(data); err != nil {
			return doc, err
		}
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// handleLayout renders the diagram of the open flow.
func (s *Server) handleLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := req.GetString("format", "json")

	s.mu.Lock()
	d := s.editor.Diagram()
	s.mu.Unlock()

	switch format {
	case "json":
		return marshalResult(d)
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(d)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(d)), nil
	case "image":
		png, err := diagram.RenderImage(ctx, d)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", err)), nil
		}
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(png)), nil
	default:
		return mcp.NewToolResultError("format must be json, ascii, mermaid, or image"), nil
	}
}

// handleAddTask inserts a new task built from a catalog entry.
func (s *Server) handleAddTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "flow.add_task")
	taskName, err := req.RequireString("task_name")
	if err != nil {
		return mcp.NewToolResultError("task_name is required"), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kind, ok := s.editor.Catalog().Get(taskName)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("task %q is not in the catalog", taskName)), nil
	}

	target := editor.Target{
		TaskID:   req.GetString("after_id", ""),
		ParentID: req.GetString("parent_id", ""),
		SlotName: req.GetString("slot", ""),
	}
	if placeholder := req.GetString("placeholder_id", ""); placeholder != "" {
		if target, ok = s.editor.TargetFromPlaceholder(placeholder); !ok {
			return mcp.NewToolResultError(fmt.Sprintf("placeholder %q not found in the layout", placeholder)), nil
		}
	}

	task := catalog.NewFlowTask(kind)
	if displayName := req.GetString("display_name", ""); displayName != "" {
		task.DisplayName = displayName
	}
	if err := applyEdits(&task, mcp.ParseStringMap(req, "properties", nil), mcp.ParseStringMap(req, "outputs", nil)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.editor.InsertFlowTask(target, task); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.InfoContext(logging.WithTaskID(ctx, task.ID), "flow task added", "name", task.Name)
	return marshalResult(taskResult{TaskID: task.ID, Errors: nonNilErrors(s.editor.ErrorsFor(task.ID))})
}

// handleUpdateTask applies property, output and display name edits to a task.
func (s *Server) handleUpdateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "flow.update_task")
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError("task_id is required"), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	flow := s.editor.Flow()
	if flow == nil {
		return mcp.NewToolResultError(editor.ErrNoFlow.Error()), nil
	}
	node := flow.Tasks.SearchTask(taskID)
	if node == nil {
		return mcp.NewToolResultError(fmt.Sprintf("task %s not found", taskID)), nil
	}

	task := node.Value.Clone()
	if displayName := req.GetString("display_name", ""); displayName != "" {
		task.DisplayName = displayName
	}
	if err := applyEdits(&task, mcp.ParseStringMap(req, "properties", nil), mcp.ParseStringMap(req, "outputs", nil)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.editor.UpdateFlowTask(taskID, task); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.InfoContext(logging.WithTaskID(ctx, taskID), "flow task updated")
	return marshalResult(taskResult{TaskID: taskID, Errors: nonNilErrors(s.editor.ErrorsFor(taskID))})
}

// handleDeleteTask removes a task and its nested tasks.
func (s *Server) handleDeleteTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "flow.delete_task")
	taskID, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError("task_id is required"), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editor.DeleteFlowTask(taskID, req.GetString("parent_id", ""), req.GetString("slot", "")); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.InfoContext(logging.WithTaskID(ctx, taskID), "flow task deleted")
	return marshalResult(map[string]any{"task_id": taskID, "deleted": true})
}

// handleSaveVariable creates, updates or renames a variable.
func (s *Server) handleSaveVariable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "flow.save_variable")
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}

	v := schema.NamedVariable{
		Name: name,
		Variable: schema.Variable{
			Property: schema.Property{
				Type:        schema.PropertyType(req.GetString("type", string(schema.PropertyString))),
				Description: req.GetString("description", ""),
				Options:     req.GetStringSlice("options", nil),
			},
			DisplayName: req.GetString("display_name", ""),
			Scope:       schema.VariableScope(req.GetString("scope", string(schema.ScopeIn))),
			DeclaredBy:  editor.DeclaredByUser,
		},
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editor.SaveVariable(req.GetString("old_name", ""), v); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.InfoContext(ctx, "flow variable saved", "name", v.Name)
	saved, _ := s.editor.Flow().NamedVariable(v.Name)
	return marshalResult(saved)
}

// handleDeleteVariable removes a variable.
func (s *Server) handleDeleteVariable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "flow.delete_variable")
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editor.DeleteVariable(name); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.logger.InfoContext(ctx, "flow variable deleted", "name", name)
	return marshalResult(map[string]any{"name": name, "deleted": true})
}

// handleDocument returns the nested document of the open flow.
func (s *Server) handleDocument(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	doc, ok := s.editor.Document()
	s.mu.Unlock()

	if !ok {
		return mcp.NewToolResultError(editor.ErrNoFlow.Error()), nil
	}
	return marshalResult(doc)
}

// handleErrors lists validation errors of the open flow.
func (s *Server) handleErrors(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	field := req.GetString("field", "")

	s.mu.Lock()
	defer s.mu.Unlock()

	flow := s.editor.Flow()
	if flow == nil {
		return mcp.NewToolResultError(editor.ErrNoFlow.Error()), nil
	}

	switch {
	case field != "":
		if taskID == "" {
			return mcp.NewToolResultError("field requires task_id"), nil
		}
		if fe, ok := s.editor.FieldError(taskID, field); ok {
			return marshalResult([]schema.FlowError{fe})
		}
		return marshalResult([]schema.FlowError{})
	case taskID != "":
		return marshalResult(nonNilErrors(s.editor.ErrorsFor(taskID)))
	default:
		return marshalResult(nonNilErrors(flow.Errors))
	}
}

// handleQuery runs a jq expression over the open flow document.
func (s *Server) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expression, err := req.RequireString("expression")
	if err != nil {
		return mcp.NewToolResultError("expression is required"), nil
	}

	s.mu.Lock()
	doc, ok := s.editor.Document()
	s.mu.Unlock()

	if !ok {
		return mcp.NewToolResultError(editor.ErrNoFlow.Error()), nil
	}
	results, err := s.query.Run(ctx, expression, doc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(results)
}

// handleSave stores the open flow as a new draft revision.
func (s *Server) handleSave(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = logging.WithTool(ctx, "flow.save")
	if s.store == nil {
		return mcp.NewToolResultError("no draft store configured"), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.editor.Document()
	if !ok {
		return mcp.NewToolResultError(editor.ErrNoFlow.Error()), nil
	}
	rec, err := s.store.SaveFlow(ctx, doc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", err)), nil
	}
	s.editor.Flow().ID = rec.ID

	s.logger.InfoContext(logging.WithFlowID(ctx, rec.ID), "flow saved", "revision", rec.Revision)
	return marshalResult(saveResult{ID: rec.ID, Revision: rec.Revision, UpdatedAt: rec.UpdatedAt})
}

// applyEdits sets property values and output bindings on task. Keys must
// already exist on the task; a null property value clears it.
func applyEdits(task *schema.FlowTask, properties, outputs map[string]any) error {
	for name, raw := range properties {
		if _, ok := task.Properties[name]; !ok {
			return schema.NewErrorf(schema.ErrCodeValidation, "task %s has no property %q", task.Name, name)
		}
		v, err := schema.FromAny(raw)
		if err != nil {
			return schema.NewErrorf(schema.ErrCodeValidation, "property %q: %v", name, err)
		}
		task.Properties[name] = v
	}
	for name, raw := range outputs {
		if _, ok := task.Outputs[name]; !ok {
			return schema.NewErrorf(schema.ErrCodeValidation, "task %s has no output %q", task.Name, name)
		}
		variable, ok := raw.(string)
		if !ok && raw != nil {
			return schema.NewErrorf(schema.ErrCodeValidation, "output %q must be bound to a variable name", name)
		}
		task.Outputs[name] = variable
	}
	return nil
}

func nonNilErrors(errs []schema.FlowError) []schema.FlowError {
	if errs == nil {
		return []schema.FlowError{}
	}
	return errs
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}

// --- Tool definitions ---

func openTool() mcp.Tool {
	return mcp.NewTool("flow.open",
		mcp.WithDescription("Open a flow for editing, from the draft store or from a flow document"),
		mcp.WithString("flow_id", mcp.Description("ID of a saved draft to open")),
		mcp.WithObject("document", mcp.Description("Flow document to open (name, variables, tasks)")),
		mcp.WithString("name", mcp.Description("Name of a new empty flow, used when neither flow_id nor document is given")),
	)
}

func layoutTool() mcp.Tool {
	return mcp.NewTool("flow.layout",
		mcp.WithDescription("Lay out the open flow. Returns positioned nodes and edges as JSON, ASCII art, Mermaid flowchart syntax, or a base64-encoded PNG image"),
		mcp.WithString("format",
			mcp.Enum("json", "ascii", "mermaid", "image"),
			mcp.Description("Output format (default: json)"),
		),
	)
}

func addTaskTool() mcp.Tool {
	return mcp.NewTool("flow.add_task",
		mcp.WithDescription("Insert a new task built from a catalog task"),
		mcp.WithString("task_name", mcp.Required(), mcp.Description("Catalog task name")),
		mcp.WithString("placeholder_id", mcp.Description("Placeholder node from flow.layout marking the insertion point")),
		mcp.WithString("after_id", mcp.Description("Task the new one follows (default: head of the sequence)")),
		mcp.WithString("parent_id", mcp.Description("Behavioral task owning the target sequence (default: top level)")),
		mcp.WithString("slot", mcp.Description("Slot of parent_id holding the target sequence")),
		mcp.WithString("display_name", mcp.Description("Display name of the new task")),
		mcp.WithObject("properties", mcp.Description("Property values overriding the catalog defaults")),
		mcp.WithObject("outputs", mcp.Description("Output name to variable name bindings")),
	)
}

func updateTaskTool() mcp.Tool {
	return mcp.NewTool("flow.update_task",
		mcp.WithDescription("Update a task of the open flow"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("ID of the task to update")),
		mcp.WithString("display_name", mcp.Description("New display name")),
		mcp.WithObject("properties", mcp.Description("Property values to set; null removes a value")),
		mcp.WithObject("outputs", mcp.Description("Output bindings to set; empty string unbinds")),
	)
}

func deleteTaskTool() mcp.Tool {
	return mcp.NewTool("flow.delete_task",
		mcp.WithDescription("Delete a task and its nested tasks. Variables bound to their outputs are deleted too"),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("ID of the task to delete")),
		mcp.WithString("parent_id", mcp.Description("Behavioral task owning the task's sequence (default: top level)")),
		mcp.WithString("slot", mcp.Description("Slot of parent_id holding the task")),
	)
}

func saveVariableTool() mcp.Tool {
	return mcp.NewTool("flow.save_variable",
		mcp.WithDescription("Create, update or rename a flow variable"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Variable name")),
		mcp.WithString("old_name", mcp.Description("Current name when renaming")),
		mcp.WithString("type",
			mcp.Enum("any", "string", "number", "boolean", "array", "object", "enum"),
			mcp.Description("Variable type (default: string)"),
		),
		mcp.WithString("scope",
			mcp.Enum("in", "out", "local"),
			mcp.Description("Variable scope (default: in)"),
		),
		mcp.WithString("display_name", mcp.Description("Display name")),
		mcp.WithString("description", mcp.Description("Description")),
		mcp.WithArray("options", mcp.Description("Allowed values of an enum variable"), mcp.WithStringItems()),
	)
}

func deleteVariableTool() mcp.Tool {
	return mcp.NewTool("flow.delete_variable",
		mcp.WithDescription("Delete a flow variable"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Variable name")),
	)
}

func documentTool() mcp.Tool {
	return mcp.NewTool("flow.document",
		mcp.WithDescription("Return the open flow as a nested flow document"),
	)
}

func errorsTool() mcp.Tool {
	return mcp.NewTool("flow.errors",
		mcp.WithDescription("List validation errors of the open flow, optionally for one task or field"),
		mcp.WithString("task_id", mcp.Description("Only errors originating at this task")),
		mcp.WithString("field", mcp.Description("Only the error for this field of task_id")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("flow.query",
		mcp.WithDescription("Run a jq expression over the open flow document"),
		mcp.WithString("expression", mcp.Required(), mcp.Description("jq expression, e.g. '.tasks[].id'")),
	)
}

func saveTool() mcp.Tool {
	return mcp.NewTool("flow.save",
		mcp.WithDescription("Save the open flow to the draft store and return its id and revision"),
	)
}
