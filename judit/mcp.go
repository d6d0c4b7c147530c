// CLAUDE:SUMMARY MCP tools over the judit service: create request, request view, trackings, history, quota, normalize.
package judit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/jurimon/kit"
	"github.com/hazyhaar/jurimon/telemetry"
)

// RegisterMCP registers all judit tools on an MCP server.
func (svc *Service) RegisterMCP(srv *mcp.Server) {
	svc.registerCreateRequest(srv)
	svc.registerRequestView(srv)
	svc.registerListTrackings(srv)
	svc.registerTrackingHistory(srv)
	svc.registerQuota(srv)
	svc.registerNormalize(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (svc *Service) endpoint(name string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(
		kit.Operation(name),
		kit.Logging(svc.logger, name),
		kit.Counting(name, observeEndpoint),
	)(e)
}

func observeEndpoint(name, transport string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	telemetry.EndpointCalls.WithLabelValues(name, transport, outcome).Inc()
}

func (svc *Service) registerCreateRequest(srv *mcp.Server) {
	type req struct {
		SearchType   string `json:"search_type"`
		SearchKey    string `json:"search_key"`
		ResponseType string `json:"response_type"`
		OnDemand     bool   `json:"on_demand"`
		AISummary    bool   `json:"ai_summary"`
	}

	tool := &mcp.Tool{
		Name:        "judit_create_request",
		Description: "Create a judicial-data request for a CPF, CNPJ, OAB, name or lawsuit number",
		InputSchema: inputSchema(map[string]any{
			"search_type":   map[string]any{"type": "string", "description": "cpf, cnpj, oab, name, lawsuit_cnj or lawsuit_id"},
			"search_key":    map[string]any{"type": "string", "description": "Value to search; punctuation is stripped"},
			"response_type": map[string]any{"type": "string", "description": "lawsuit (default), parties, attachments, step"},
			"on_demand":     map[string]any{"type": "boolean", "description": "Query the provider live; spends quota, 30s cooldown per key"},
			"ai_summary":    map[string]any{"type": "boolean", "description": "Ask for an AI summary of the result"},
		}, []string{"search_type", "search_key"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.CreateRequest(ctx, CreateRequestInput{
			Search:       SearchKey{Type: SearchType(p.SearchType), Value: p.SearchKey},
			ResponseType: p.ResponseType,
			OnDemand:     p.OnDemand,
			AISummary:    p.AISummary,
		})
	}

	kit.RegisterMCPTool(srv, tool, svc.endpoint(tool.Name, endpoint), kit.DecodeArgs[req]())
}

func (svc *Service) registerRequestView(srv *mcp.Server) {
	type req struct {
		RequestID string `json:"request_id"`
	}

	tool := &mcp.Tool{
		Name:        "judit_request_view",
		Description: "Show a request with its normalized timeline, lawsuits and AI summary",
		InputSchema: inputSchema(map[string]any{
			"request_id": map[string]any{"type": "string", "description": "Request ID"},
		}, []string{"request_id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		if err := validateID(p.RequestID); err != nil {
			return nil, err
		}
		return svc.RequestView(ctx, p.RequestID)
	}

	kit.RegisterMCPTool(srv, tool, svc.endpoint(tool.Name, endpoint), kit.DecodeArgs[req]())
}

func (svc *Service) registerListTrackings(srv *mcp.Server) {
	type req struct {
		ForceSync bool `json:"force_sync"`
	}

	tool := &mcp.Tool{
		Name:        "judit_list_trackings",
		Description: "List active process trackings with their status",
		InputSchema: inputSchema(map[string]any{
			"force_sync": map[string]any{"type": "boolean", "description": "Ask the provider for fresh statuses first"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		list, err := svc.ListTrackings(ctx, p.ForceSync)
		if err != nil && list == nil {
			return nil, err
		}
		return map[string]any{"trackings": list, "stale": err != nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.endpoint(tool.Name, endpoint), kit.DecodeArgs[req]())
}

func (svc *Service) registerTrackingHistory(srv *mcp.Server) {
	type req struct {
		TrackingID string `json:"tracking_id"`
		Page       int    `json:"page"`
		PageSize   int    `json:"page_size"`
		ForceSync  bool   `json:"force_sync"`
	}

	tool := &mcp.Tool{
		Name:        "judit_tracking_history",
		Description: "Read one page of a tracking's normalized history",
		InputSchema: inputSchema(map[string]any{
			"tracking_id": map[string]any{"type": "string", "description": "Tracking ID"},
			"page":        map[string]any{"type": "integer", "description": "Page number, from 1"},
			"page_size":   map[string]any{"type": "integer", "description": "Items per page (max 100)"},
			"force_sync":  map[string]any{"type": "boolean", "description": "Refresh from the provider first; 30s cooldown per tracking"},
		}, []string{"tracking_id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		var (
			hp  *HistoryPage
			err error
		)
		if p.ForceSync {
			hp, err = svc.ForceSyncTrackingHistory(ctx, p.TrackingID, p.Page, p.PageSize)
		} else {
			hp, err = svc.TrackingHistory(ctx, p.TrackingID, p.Page, p.PageSize)
		}
		if err != nil && (hp == nil || !errors.Is(err, ErrUpstream)) {
			return nil, err
		}
		hp.Raw = nil
		return hp, nil
	}

	kit.RegisterMCPTool(srv, tool, svc.endpoint(tool.Name, endpoint), kit.DecodeArgs[req]())
}

func (svc *Service) registerQuota(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "judit_quota",
		Description: "Show provider query usage and plan limit",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		return svc.Quota(ctx), nil
	}

	kit.RegisterMCPTool(srv, tool, svc.endpoint(tool.Name, endpoint), kit.DecodeArgs[req]())
}

func (svc *Service) registerNormalize(srv *mcp.Server) {
	type req struct {
		Payload json.RawMessage `json:"payload"`
	}

	tool := &mcp.Tool{
		Name:        "judit_normalize",
		Description: "Normalize a raw provider payload into a sorted timeline and lawsuits",
		InputSchema: inputSchema(map[string]any{
			"payload": map[string]any{"description": "Provider JSON payload (object, array or JSON string)"},
		}, []string{"payload"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return NormalizePayload(p.Payload), nil
	}

	kit.RegisterMCPTool(srv, tool, svc.endpoint(tool.Name, endpoint), kit.DecodeArgs[req]())
}
