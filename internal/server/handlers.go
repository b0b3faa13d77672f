package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/docroi/internal/batch"
	"github.com/ironsheep/docroi/internal/editor"
	"github.com/ironsheep/docroi/internal/extract"
	"github.com/ironsheep/docroi/internal/field"
	"github.com/ironsheep/docroi/internal/imaging"
	"github.com/ironsheep/docroi/internal/template"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "template_load", "batch_start").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.WithFields(logrus.Fields{"tool": params.Name}).WithError(err).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Templates
	case "template_list_doc_types":
		return s.handleTemplateListDocTypes(args)
	case "template_list":
		return s.handleTemplateList(args)
	case "template_load":
		return s.handleTemplateLoad(args)
	case "template_save":
		return s.handleTemplateSave(args)
	case "template_delete":
		return s.handleTemplateDelete(args)

	// Regions
	case "region_add":
		return s.handleRegionAdd(args)
	case "region_adjust":
		return s.handleRegionAdjust(args)
	case "region_test_extract":
		return s.handleRegionTestExtract(args)
	case "template_evaluate":
		return s.handleTemplateEvaluate(args)

	// Batch
	case "batch_start":
		return s.handleBatchStart(args)
	case "batch_status":
		return s.handleBatchStatus(args)
	case "batch_stop":
		return s.handleBatchStop(args)

	// Diagnostics
	case "ocr_info":
		return s.ocrInfo(), nil
	case "image_load":
		return s.handleImageLoad(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Template Handlers ===

type templateRefArgs struct {
	DocType string `json:"doc_type"`
	Name    string `json:"name"`
}

func (a templateRefArgs) check() error {
	if a.DocType == "" || a.Name == "" {
		return errors.New("doc_type and name are required")
	}
	return nil
}

// templateView adds the document type, which the stored form keeps as a key.
type templateView struct {
	DocType string `json:"doc_type"`
	*template.Template
}

func (s *Server) handleTemplateListDocTypes(json.RawMessage) (interface{}, error) {
	return map[string]interface{}{"doc_types": s.store.DocTypes()}, nil
}

func (s *Server) handleTemplateList(args json.RawMessage) (interface{}, error) {
	var a struct {
		DocType string `json:"doc_type"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return map[string]interface{}{"templates": s.store.List(a.DocType)}, nil
}

func (s *Server) handleTemplateLoad(args json.RawMessage) (interface{}, error) {
	var a templateRefArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	tpl, err := s.store.Get(a.DocType, a.Name)
	if err != nil {
		return nil, err
	}
	return templateView{DocType: tpl.DocType, Template: tpl}, nil
}

type templateSaveArgs struct {
	templateRefArgs
	Regions             template.Regions `json:"regions"`
	ConfidenceThreshold *float64         `json:"confidence_threshold"`
}

func (s *Server) handleTemplateSave(args json.RawMessage) (interface{}, error) {
	var a templateSaveArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}

	var (
		tpl *template.Template
		err error
	)
	if a.ConfidenceThreshold != nil {
		tpl, err = s.store.CreateOrUpdateWithThreshold(a.DocType, a.Name, a.Regions, *a.ConfidenceThreshold)
	} else {
		tpl, err = s.store.CreateOrUpdate(a.DocType, a.Name, a.Regions)
	}
	if err != nil {
		return nil, err
	}
	return templateView{DocType: tpl.DocType, Template: tpl}, nil
}

func (s *Server) handleTemplateDelete(args json.RawMessage) (interface{}, error) {
	var a templateRefArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	if err := s.store.Delete(a.DocType, a.Name); err != nil {
		return nil, err
	}
	return map[string]interface{}{"deleted": true, "doc_type": a.DocType, "name": a.Name}, nil
}

// === Region Handlers ===

type regionAddArgs struct {
	Regions      template.Regions `json:"regions"`
	Region       string           `json:"region"`
	ExpectedType field.Type       `json:"expected_type"`
}

func (s *Server) handleRegionAdd(args json.RawMessage) (interface{}, error) {
	var a regionAddArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	regions, err := editor.AddRegion(a.Regions, a.Region, a.ExpectedType, s.canvas)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"regions": regions}, nil
}

type regionAdjustArgs struct {
	Regions     template.Regions `json:"regions"`
	Editing     string           `json:"editing"`
	From        [2]int           `json:"from"`
	To          *[2]int          `json:"to"`
	DoubleClick bool             `json:"double_click"`
}

type regionAdjustResult struct {
	Regions template.Regions `json:"regions"`
	Editing string           `json:"editing"`
	Mode    string           `json:"mode"`
	Active  string           `json:"active,omitempty"`
}

func (s *Server) handleRegionAdjust(args json.RawMessage) (interface{}, error) {
	var a regionAdjustArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	from := image.Pt(a.From[0], a.From[1])
	state := editor.State{Editing: a.Editing}

	if a.DoubleClick {
		if name, ok := editor.HitTest(a.Regions, from); ok {
			state = editor.ToggleResize(state, name)
		}
		return regionAdjustResult{Regions: a.Regions, Editing: state.Editing, Mode: editor.Idle.String()}, nil
	}

	state = editor.Press(state, a.Regions, from)
	res := regionAdjustResult{Regions: a.Regions, Mode: state.Mode.String(), Active: state.Active}
	if a.To != nil {
		res.Regions = editor.Drag(state, a.Regions, image.Pt(a.To[0], a.To[1]), s.canvas)
	}
	res.Editing = editor.Release(state).Editing
	return res, nil
}

type regionTestArgs struct {
	templateRefArgs
	Path         string         `json:"path"`
	Region       string         `json:"region"`
	Coords       *template.Rect `json:"coords"`
	ExpectedType field.Type     `json:"expected_type"`
	IncludeCrop  bool           `json:"include_crop"`
}

type regionTestResult struct {
	extract.RegionResult
	Crop *imaging.CropResult `json:"crop,omitempty"`
}

func (a regionTestArgs) resolve(store *template.Store) (template.Region, error) {
	if a.Coords != nil {
		r := template.Region{Name: a.Region, Coords: *a.Coords, ExpectedType: a.ExpectedType}
		if r.Name == "" {
			r.Name = "REGION"
		}
		if r.ExpectedType == "" {
			r.ExpectedType = field.Text
		}
		return r, nil
	}
	if err := a.check(); err != nil {
		return template.Region{}, fmt.Errorf("coords or a stored region is required: %w", err)
	}
	tpl, err := store.Get(a.DocType, a.Name)
	if err != nil {
		return template.Region{}, err
	}
	r, ok := tpl.Regions.Find(a.Region)
	if !ok {
		return template.Region{}, fmt.Errorf("%w: region %q in %s/%s", template.ErrNotFound, a.Region, a.DocType, a.Name)
	}
	return r, nil
}

func (s *Server) handleRegionTestExtract(args json.RawMessage) (interface{}, error) {
	var a regionTestArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	region, err := a.resolve(s.store)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	res := regionTestResult{RegionResult: s.pipeline.TestExtract(s.ctx, img, region)}
	if a.IncludeCrop && res.RegionResult.Crop != nil {
		if res.Crop, err = imaging.NewCropResult(res.RegionResult.Crop); err != nil {
			return nil, err
		}
	}
	return res, nil
}

type evaluateArgs struct {
	templateRefArgs
	Path string `json:"path"`
}

func (s *Server) handleTemplateEvaluate(args json.RawMessage) (interface{}, error) {
	var a evaluateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	tpl, err := s.store.Get(a.DocType, a.Name)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Evaluate(s.ctx, img, tpl), nil
}

// === Batch Handlers ===

type batchStartArgs struct {
	templateRefArgs
	InputDir    string   `json:"input_dir"`
	OutputDir   string   `json:"output_dir"`
	Consolidate bool     `json:"consolidate"`
	Fields      []string `json:"fields"`
}

func (s *Server) handleBatchStart(args json.RawMessage) (interface{}, error) {
	var a batchStartArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := a.check(); err != nil {
		return nil, err
	}
	if a.InputDir == "" || a.OutputDir == "" {
		return nil, errors.New("input_dir and output_dir are required")
	}
	tpl, err := s.store.Get(a.DocType, a.Name)
	if err != nil {
		return nil, err
	}

	job := batch.Start(s.ctx, s.batch, batch.Options{
		InputDir:    a.InputDir,
		OutputDir:   a.OutputDir,
		Template:    tpl,
		Consolidate: a.Consolidate,
		FieldOrder:  a.Fields,
	})

	s.mu.Lock()
	s.jobs[job.ID()] = job
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"job":      job.ID(),
		"template": a.DocType + "/" + a.Name,
		"input":    a.InputDir,
	}).Info("batch started")
	return job.Status(), nil
}

type jobArgs struct {
	ID string `json:"id"`
}

func (s *Server) job(id string) (*batch.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("unknown batch job: %q", id)
	}
	return job, nil
}

func (s *Server) handleBatchStatus(args json.RawMessage) (interface{}, error) {
	var a jobArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.ID != "" {
		job, err := s.job(a.ID)
		if err != nil {
			return nil, err
		}
		return job.Status(), nil
	}

	s.mu.Lock()
	all := make([]batch.Status, 0, len(s.jobs))
	for _, job := range s.jobs {
		all = append(all, job.Status())
	}
	s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.Before(all[j].StartedAt) })
	return map[string]interface{}{"jobs": all}, nil
}

func (s *Server) handleBatchStop(args json.RawMessage) (interface{}, error) {
	var a jobArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	job, err := s.job(a.ID)
	if err != nil {
		return nil, err
	}
	job.Stop()
	return job.Status(), nil
}

// === Diagnostics ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errors.New("path is required")
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}
