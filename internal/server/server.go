package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/docroi/internal/batch"
	"github.com/ironsheep/docroi/internal/extract"
	"github.com/ironsheep/docroi/internal/imaging"
	"github.com/ironsheep/docroi/internal/logging"
	"github.com/ironsheep/docroi/internal/ocr"
	"github.com/ironsheep/docroi/internal/template"
)

// Server handles MCP protocol communication
type Server struct {
	cache    *imaging.ImageCache
	store    *template.Store
	pipeline *extract.Pipeline
	batch    *batch.Orchestrator
	ocrInfo  func() ocr.Info
	canvas   image.Point
	log      logrus.FieldLogger

	in  io.Reader
	out io.Writer

	// ctx is the Run context; background jobs inherit it.
	ctx context.Context

	mu   sync.Mutex
	jobs map[string]*batch.Job
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.log = logging.OrDiscard(l) }
}

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.in, s.out = in, out
	}
}

// WithOrchestrator sets the orchestrator used by batch_start.
func WithOrchestrator(o *batch.Orchestrator) Option {
	return func(s *Server) { s.batch = o }
}

// WithOCRInfo sets the source of the ocr_info report.
func WithOCRInfo(info func() ocr.Info) Option {
	return func(s *Server) { s.ocrInfo = info }
}

// WithCanvas sets the canvas new and adjusted regions are clamped to.
func WithCanvas(width, height int) Option {
	return func(s *Server) { s.canvas = image.Pt(width, height) }
}

// New creates a server over store that extracts with pipeline.
func New(store *template.Store, pipeline *extract.Pipeline, opts ...Option) *Server {
	s := &Server{
		cache:    imaging.NewImageCache(),
		store:    store,
		pipeline: pipeline,
		canvas:   image.Pt(imaging.CanonicalWidth, imaging.CanonicalHeight),
		log:      logging.Discard(),
		in:       os.Stdin,
		out:      os.Stdout,
		ctx:      context.Background(),
		jobs:     make(map[string]*batch.Job),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.batch == nil {
		s.batch = batch.NewOrchestrator(pipeline, batch.WithLogger(s.log))
	}
	if s.ocrInfo == nil {
		s.ocrInfo = ocr.NewTesseract().Info
	}
	return s
}

// Run reads requests until the input ends or ctx is canceled. Running batch
// jobs are canceled when Run returns.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.ctx = ctx

	scanner := bufio.NewScanner(s.in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	encoder := json.NewEncoder(s.out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.log.WithError(err).Warn("failed to parse request")
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.log.WithError(err).Error("failed to encode response")
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	s.log.WithField("method", req.Method).Debug("request")
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "docroi",
				"version": Version,
			},
		},
	}
}

// Version is reported in the initialize handshake. The binary overrides it
// from its build flags.
var Version = "0.1.0"
