package judit

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "judit-test", Version: "0.1.0"}

func mcpSession(t *testing.T, svc *Service) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCall(t *testing.T, session *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return result
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result := mcpCall(t, session, name, args)
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func TestMCP_ListTools(t *testing.T) {
	svc, _, _ := setupTestService(t)
	session := mcpSession(t, svc)

	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{
		"judit_create_request": true, "judit_request_view": true, "judit_list_trackings": true,
		"judit_tracking_history": true, "judit_quota": true, "judit_normalize": true,
	}
	for _, tool := range res.Tools {
		delete(want, tool.Name)
	}
	if len(want) != 0 {
		t.Errorf("missing tools: %v", want)
	}
}

func TestMCP_CreateAndView(t *testing.T) {
	// WHAT: A request created over MCP can be viewed over MCP.
	// WHY: Agents drive the same service operations as the HTTP routes.
	svc, _, _ := setupTestService(t)
	session := mcpSession(t, svc)

	text := mcpCallTool(t, session, "judit_create_request", map[string]any{
		"search_type": "cpf", "search_key": "123.456.789-09",
	})
	var req Request
	if err := json.Unmarshal([]byte(text), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.RequestID == "" || req.Search.Value != "12345678909" {
		t.Fatalf("request = %+v", req)
	}

	text = mcpCallTool(t, session, "judit_request_view", map[string]any{"request_id": req.RequestID})
	var view RequestView
	if err := json.Unmarshal([]byte(text), &view); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}
	if view.Request == nil || view.Request.RequestID != req.RequestID {
		t.Errorf("view = %+v", view)
	}
}

func TestMCP_ErrorsAreToolErrors(t *testing.T) {
	// WHAT: Service errors come back as tool errors, not protocol errors.
	// WHY: Clients show the message and keep the session.
	svc, _, _ := setupTestService(t)
	session := mcpSession(t, svc)

	res := mcpCall(t, session, "judit_request_view", map[string]any{"request_id": "a/b"})
	if !res.IsError {
		t.Fatal("expected tool error")
	}
	res = mcpCall(t, session, "judit_create_request", map[string]any{"search_type": "rg", "search_key": "1"})
	if !res.IsError {
		t.Fatal("expected tool error for unknown search type")
	}
}

func TestMCP_ListTrackingsAndQuota(t *testing.T) {
	svc, fb, _ := setupTestService(t)
	session := mcpSession(t, svc)
	registerTestTracking(t, svc)

	text := mcpCallTool(t, session, "judit_list_trackings", map[string]any{})
	var list struct {
		Trackings []Tracking `json:"trackings"`
		Stale     bool       `json:"stale"`
	}
	if err := json.Unmarshal([]byte(text), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Trackings) != 1 || list.Stale {
		t.Errorf("list = %+v", list)
	}

	fb.update(func(f *fakeBackend) { f.quotaDown = true })
	text = mcpCallTool(t, session, "judit_quota", map[string]any{})
	if !strings.Contains(text, `"loading":true`) {
		t.Errorf("quota = %s", text)
	}
}

func TestMCP_TrackingHistory(t *testing.T) {
	svc, _, _ := setupTestService(t)
	session := mcpSession(t, svc)
	trk := registerTestTracking(t, svc)

	text := mcpCallTool(t, session, "judit_tracking_history", map[string]any{"tracking_id": trk.TrackingID})
	var hp HistoryPage
	if err := json.Unmarshal([]byte(text), &hp); err != nil {
		t.Fatal(err)
	}
	if hp.Page != 1 || hp.PageSize != defaultPageSize || hp.Raw != nil {
		t.Errorf("page = %+v", hp)
	}
}

func TestMCP_Normalize(t *testing.T) {
	svc, _, _ := setupTestService(t)
	session := mcpSession(t, svc)

	text := mcpCallTool(t, session, "judit_normalize", map[string]any{
		"payload": map[string]any{"data": []any{
			map[string]any{"date": "2026-01-02", "title": "Older"},
			map[string]any{"date": "2026-03-04", "title": "Newer"},
		}},
	})
	var res NormalizedResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Timeline) != 2 || res.Timeline[0].Title != "Newer" {
		t.Errorf("timeline = %+v", res.Timeline)
	}
}
