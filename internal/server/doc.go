// Package server implements the MCP (Model Context Protocol) server that a
// template editor or assistant drives.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Templates:
//   - template_list_doc_types, template_list: Browse the store
//   - template_load, template_save, template_delete: Manage one template
//
// Regions:
//   - region_add: Add a region centred on the canvas
//   - region_adjust: Move or resize a region with a pointer gesture
//   - region_test_extract: Recognize one region of a scan
//   - template_evaluate: Score how well a template fits a scan
//
// Batch:
//   - batch_start, batch_status, batch_stop: Background directory runs
//
// Diagnostics:
//   - ocr_info: Engine version and languages
//   - image_load: Scan metadata
//
// # Image Caching
//
// Scans are cached by path for the lifetime of the process, so repeated
// region tests against one scan decode it once.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Concurrency
//
// Requests are handled one at a time. Batch jobs run in their own goroutines
// and are tracked in a mutex-protected table; batch_status never waits for
// recognition.
package server
