package server

import "github.com/ironsheep/docroi/internal/field"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func fieldTypeProp() map[string]interface{} {
	names := make([]string, 0, len(field.Types()))
	for _, t := range field.Types() {
		names = append(names, t.String())
	}
	return map[string]interface{}{
		"type":        "string",
		"enum":        names,
		"description": "Expected field type; selects the recognizer configuration and validation",
	}
}

func coordsProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "integer"},
		"minItems":    4,
		"maxItems":    4,
		"description": description,
	}
}

func pointProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "integer"},
		"minItems":    2,
		"maxItems":    2,
		"description": description,
	}
}

func regionsProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": "Regions keyed by name, in order. Each value holds coords [x1,y1,x2,y2] on the canonical canvas, expected_type and an optional color [r,g,b]",
		"additionalProperties": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"coords":        coordsProp("Region corners on the canonical canvas"),
				"expected_type": fieldTypeProp(),
				"color": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "integer"},
					"description": "Display colour [r,g,b]; a random one is chosen when omitted",
				},
			},
			"required": []string{"coords", "expected_type"},
		},
	}
}

func templateRefProps() map[string]interface{} {
	return map[string]interface{}{
		"doc_type": stringProp("Document type the template belongs to"),
		"name":     stringProp("Template name within the document type"),
	}
}

func withProps(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Templates
		{
			Name:        "template_list_doc_types",
			Description: "List every document type that has at least one template.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "template_list",
			Description: "List templates, optionally restricted to one document type.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"doc_type": stringProp("Only list templates of this document type"),
				},
			},
		},
		{
			Name:        "template_load",
			Description: "Load a template with its regions, threshold and timestamps.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": templateRefProps(),
				"required":   []string{"doc_type", "name"},
			},
		},
		{
			Name:        "template_save",
			Description: "Create or replace a template. The previous template file is backed up first. An existing template keeps its creation time and, unless given, its confidence threshold.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(templateRefProps(), map[string]interface{}{
					"regions": regionsProp(),
					"confidence_threshold": map[string]interface{}{
						"type":        "number",
						"description": "Minimum share of valid fields for the template to fit a scan. Default 0.6",
					},
				}),
				"required": []string{"doc_type", "name", "regions"},
			},
		},
		{
			Name:        "template_delete",
			Description: "Delete a template. A document type with no templates left is removed.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": templateRefProps(),
				"required":   []string{"doc_type", "name"},
			},
		},

		// Regions
		{
			Name:        "region_add",
			Description: "Add a 200x30 region centred on the canonical canvas to a region set and return the new set. Names are upper-cased and must be unique.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"regions":       regionsProp(),
					"region":        stringProp("Name of the new region"),
					"expected_type": fieldTypeProp(),
				},
				"required": []string{"region", "expected_type"},
			},
		},
		{
			Name:        "region_adjust",
			Description: "Apply a pointer gesture to a region set: press at 'from', drag to 'to', release. Pressing a region moves it; pressing a corner of the region named in 'editing' resizes it. Set 'double_click' to toggle resize mode on the region under 'from' instead.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"regions":      regionsProp(),
					"editing":      stringProp("Region currently in resize mode, if any"),
					"from":         pointProp("Press position [x,y]"),
					"to":           pointProp("Release position [x,y]"),
					"double_click": map[string]interface{}{"type": "boolean", "description": "Toggle resize mode instead of dragging"},
				},
				"required": []string{"regions", "from"},
			},
		},
		{
			Name:        "region_test_extract",
			Description: "Standardize a scan and run recognition on one region, returning the raw text, normalized value, validity and every recognition attempt. Name a stored region with doc_type, name and region, or pass coords and expected_type directly.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(templateRefProps(), map[string]interface{}{
					"path":          stringProp("Absolute path to the scan"),
					"region":        stringProp("Region name"),
					"coords":        coordsProp("Region corners when not using a stored template"),
					"expected_type": fieldTypeProp(),
					"include_crop":  map[string]interface{}{"type": "boolean", "description": "Also return the crop as base64 PNG"},
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "template_evaluate",
			Description: "Extract every region of a template from a scan and report the share of valid fields and whether it meets the template threshold.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(templateRefProps(), map[string]interface{}{
					"path": stringProp("Absolute path to the scan"),
				}),
				"required": []string{"doc_type", "name", "path"},
			},
		},

		// Batch
		{
			Name:        "batch_start",
			Description: "Start processing every image of a directory with a template in the background. Returns the job status including its id.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(templateRefProps(), map[string]interface{}{
					"input_dir":   stringProp("Directory of scans"),
					"output_dir":  stringProp("Directory for results"),
					"consolidate": map[string]interface{}{"type": "boolean", "description": "Append one CSV row per image instead of one JSON file per image"},
					"fields": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "CSV column order. Default is the template's region order",
					},
				}),
				"required": []string{"doc_type", "name", "input_dir", "output_dir"},
			},
		},
		{
			Name:        "batch_status",
			Description: "Report progress of a batch job, or of every job when no id is given.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": stringProp("Job id returned by batch_start"),
				},
			},
		},
		{
			Name:        "batch_stop",
			Description: "Ask a batch job to stop after the image it is working on.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": stringProp("Job id returned by batch_start"),
				},
				"required": []string{"id"},
			},
		},

		// Diagnostics
		{
			Name:        "ocr_info",
			Description: "Report the OCR engine version and installed languages.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "image_load",
			Description: "Load a scan and return its dimensions, format and the scale factors onto the canonical canvas.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": stringProp("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
