package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/docroi/internal/extract"
	"github.com/ironsheep/docroi/internal/field"
	"github.com/ironsheep/docroi/internal/imaging"
	"github.com/ironsheep/docroi/internal/ocr"
	"github.com/ironsheep/docroi/internal/template"
)

// fakeRecognizer answers with a fixed text per field type.
type fakeRecognizer struct {
	byType map[field.Type]string
}

func (f *fakeRecognizer) RecognizeDetailed(ctx context.Context, region image.Image, t field.Type) ocr.Result {
	text := f.byType[t]
	return ocr.Result{
		Text:     text,
		Config:   ocr.ConfigFor(t, "").String(),
		Attempts: []ocr.Attempt{{Variant: ocr.VariantOriginal, Text: text}},
	}
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	store, err := template.Open(filepath.Join(t.TempDir(), template.DefaultFileName))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	rec := &fakeRecognizer{byType: map[field.Type]string{
		field.Text: "Maria Souza",
		field.CPF:  "123.456.789-01",
		field.Date: "hello",
	}}
	base := []Option{
		WithOCRInfo(func() ocr.Info {
			return ocr.Info{Engine: "fake", Version: "1.0", Languages: []string{"por"}, Available: true}
		}),
		WithCanvas(1000, 800),
	}
	return New(store, extract.New(rec), append(base, opts...)...)
}

func TestNew(t *testing.T) {
	s := newTestServer(t)
	if s.cache == nil || s.batch == nil || s.jobs == nil {
		t.Fatal("New() left dependencies unset")
	}
}

func TestImageCacheIsBounded(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	for i := 0; i < imaging.DefaultCacheSize+4; i++ {
		scan := createScanFile(t, dir, fmt.Sprintf("scan_%02d.png", i), 40, 60)
		mustCall(t, s, "image_load", map[string]interface{}{"path": scan}, nil)
	}
	if got := s.cache.Len(); got != imaging.DefaultCacheSize {
		t.Errorf("cached images = %d, want %d", got, imaging.DefaultCacheSize)
	}
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{
			"string id",
			`{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`,
			"test-1",
			"tools/list",
		},
		{
			"number id",
			`{"jsonrpc":"2.0","id":42,"method":"ping"}`,
			float64(42), // JSON numbers decode as float64
			"ping",
		},
		{
			"null id",
			`{"jsonrpc":"2.0","id":null,"method":"initialize"}`,
			nil,
			"initialize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}
			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestHandleRequest_Initialize(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "initialize"})

	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	if result["protocolVersion"] != "2024-11-05" {
		t.Errorf("protocolVersion: got %v", result["protocolVersion"])
	}
	serverInfo, ok := result["serverInfo"].(map[string]interface{})
	if !ok {
		t.Fatal("serverInfo should be a map")
	}
	if serverInfo["name"] != "docroi" {
		t.Errorf("serverInfo.name: got %v", serverInfo["name"])
	}
}

func TestHandleRequest_Ping(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: "ping-1", Method: "ping"})

	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.ID != "ping-1" {
		t.Errorf("ID: got %v, want ping-1", resp.ID)
	}
}

func TestHandleRequest_ToolsList(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	tools, ok := result["tools"].([]Tool)
	if !ok {
		t.Fatal("tools should be a slice of Tool")
	}
	if len(tools) != len(GetToolDefinitions()) {
		t.Errorf("got %d tools", len(tools))
	}
}

func TestHandleRequest_NotificationsInitialized(t *testing.T) {
	s := newTestServer(t)
	if resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", Method: "notifications/initialized"}); resp != nil {
		t.Error("notifications/initialized should return nil response")
	}
}

func TestHandleRequest_MethodNotFound(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "nonexistent/method"})

	if resp == nil || resp.Error == nil {
		t.Fatal("Expected error for unknown method")
	}
	if resp.Error.Code != -32601 {
		t.Errorf("Error code: got %d, want -32601", resp.Error.Code)
	}
}

func TestRun_Stdio(t *testing.T) {
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"template_list_doc_types"}}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
	}, "\n")
	var out bytes.Buffer
	s := newTestServer(t, WithIO(strings.NewReader(in), &out))

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var ids []float64
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var resp struct {
			ID    float64   `json:"id"`
			Error *MCPError `json:"error"`
		}
		if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
			t.Fatalf("bad response line %q: %v", sc.Text(), err)
		}
		if resp.Error != nil {
			t.Errorf("response %v failed: %+v", resp.ID, resp.Error)
		}
		ids = append(ids, resp.ID)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Errorf("response ids = %v, want [1 2 3]", ids)
	}
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	s := newTestServer(t, WithIO(strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`), &out))

	if err := s.Run(ctx); err == nil {
		t.Error("Run should report the canceled context")
	}
	if out.Len() != 0 {
		t.Errorf("no response expected, got %q", out.String())
	}
}
