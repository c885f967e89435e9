// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/civitas/internal/adapters/server/common"
	"github.com/hylla/civitas/internal/app"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// ActorHeader carries the authenticated user id for admin tools.
const ActorHeader = "X-Actor-ID"

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter with public tools and optional admin tools.
func NewHandler(cfg Config, public common.PublicService, admin common.AdminService) (*Handler, error) {
	if public == nil {
		return nil, fmt.Errorf("public service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerPublicTools(mcpSrv, public)
	if admin != nil {
		registerAdminReadTools(mcpSrv, admin)
		registerAdminWriteTools(mcpSrv, admin)
	}

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
		mcpserver.WithHTTPContextFunc(actorContext),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// actorContext copies the actor header into the tool-call context.
func actorContext(ctx context.Context, r *http.Request) context.Context {
	return app.WithActorID(ctx, r.Header.Get(ActorHeader))
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "civitas"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerPublicTools registers citizen-facing tools.
func registerPublicTools(srv *mcpserver.MCPServer, public common.PublicService) {
	srv.AddTool(
		mcp.NewTool(
			"civitas.list_districts",
			mcp.WithDescription("List districts that accept service requests."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := public.ListDistricts(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_districts", map[string]any{"items": rows})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"civitas.submit_request",
			mcp.WithDescription("Submit one citizen service request and return its tracking code."),
			mcp.WithString("district_id", mcp.Required(), mcp.Description("District identifier")),
			mcp.WithString("category", mcp.Required(), mcp.Description("Request category"), mcp.Enum(categoryNames()...)),
			mcp.WithString("description", mcp.Required(), mcp.Description("What needs attention")),
			mcp.WithString("address", mcp.Description("Optional street address")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args common.SubmitRequest
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			tracking, err := public.SubmitRequest(ctx, args)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("submit_request", tracking)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"civitas.track_request",
			mcp.WithDescription("Look up one request by tracking code, returning its public history."),
			mcp.WithString("tracking_code", mcp.Required(), mcp.Description("Eight character tracking code")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			code, err := req.RequireString("tracking_code")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			tracking, err := public.TrackRequest(ctx, code)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("track_request", tracking)
		},
	)
}

// registerAdminReadTools registers actor-scoped read tools.
func registerAdminReadTools(srv *mcpserver.MCPServer, admin common.AdminService) {
	srv.AddTool(
		mcp.NewTool(
			"civitas.list_requests",
			mcp.WithDescription("List requests visible to the calling actor, newest first."),
			mcp.WithString("status", mcp.Description("Filter by status")),
			mcp.WithString("category", mcp.Description("Filter by category")),
			mcp.WithString("priority", mcp.Description("Filter by priority")),
			mcp.WithString("district_id", mcp.Description("Filter by district (municipal admins only)")),
			mcp.WithNumber("page", mcp.Description("Page number starting at 1")),
			mcp.WithNumber("page_size", mcp.Description("Rows per page, at most 100")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			page, err := admin.ListRequests(ctx, common.ListRequestsQuery{
				Status:     req.GetString("status", ""),
				Category:   req.GetString("category", ""),
				Priority:   req.GetString("priority", ""),
				DistrictID: req.GetString("district_id", ""),
				Page:       req.GetInt("page", 0),
				PageSize:   req.GetInt("page_size", 0),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_requests", page)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"civitas.get_request",
			mcp.WithDescription("Return one request with its full history and allowed next statuses."),
			mcp.WithString("request_id", mcp.Required(), mcp.Description("Request identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			requestID, err := req.RequireString("request_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			detail, err := admin.GetRequest(ctx, requestID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_request", detail)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"civitas.sla_compliance",
			mcp.WithDescription("Report SLA compliance over closed requests in the actor's scope."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			report, err := admin.SLACompliance(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("sla_compliance", report)
		},
	)
}

// jsonResult encodes one structured tool result.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrUnauthenticated):
		return mcp.NewToolResultError("unauthenticated: send the user id in the " + ActorHeader + " header")
	case errors.Is(err, common.ErrForbidden):
		return mcp.NewToolResultError("forbidden: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found")
	case errors.Is(err, common.ErrRuleViolation):
		return mcp.NewToolResultError("rule_violation: " + err.Error())
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrServiceUnavailable):
		return mcp.NewToolResultError("service_unavailable: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}

// invalidRequestToolResult reports malformed tool arguments.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}
