package mcpapi

import (
	"context"

	"github.com/hylla/civitas/internal/adapters/server/common"
	"github.com/hylla/civitas/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// registerAdminWriteTools registers lifecycle mutation and staff tools.
func registerAdminWriteTools(srv *mcpserver.MCPServer, admin common.AdminService) {
	srv.AddTool(
		mcp.NewTool(
			"civitas.update_status",
			mcp.WithDescription("Move one request along its lifecycle. Rejection needs a reason."),
			mcp.WithString("request_id", mcp.Required(), mcp.Description("Request identifier")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Target status"), mcp.Enum(statusNames()...)),
			mcp.WithString("rejection_reason", mcp.Description("Required when rejecting")),
			mcp.WithString("completion_photo_url", mcp.Description("Optional proof of completion")),
			mcp.WithString("note", mcp.Description("Optional internal note")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				RequestID string `json:"request_id"`
				common.StatusChangeRequest
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if args.RequestID == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "request_id" not found`), nil
			}
			view, err := admin.UpdateStatus(ctx, args.RequestID, args.StatusChangeRequest)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_status", view)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"civitas.update_priority",
			mcp.WithDescription("Set the priority of one open request."),
			mcp.WithString("request_id", mcp.Required(), mcp.Description("Request identifier")),
			mcp.WithString("priority", mcp.Required(), mcp.Description("Target priority"), mcp.Enum(priorityNames()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			requestID, err := req.RequireString("request_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			priority, err := req.RequireString("priority")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			view, err := admin.UpdatePriority(ctx, requestID, common.PriorityChangeRequest{Priority: priority})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_priority", view)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"civitas.assign_staff",
			mcp.WithDescription("Assign one staff member from the request's district."),
			mcp.WithString("request_id", mcp.Required(), mcp.Description("Request identifier")),
			mcp.WithString("staff_user_id", mcp.Required(), mcp.Description("Staff user identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			requestID, err := req.RequireString("request_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			staffID, err := req.RequireString("staff_user_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			view, err := admin.AssignStaff(ctx, requestID, common.AssignStaffRequest{StaffUserID: staffID})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("assign_staff", view)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"civitas.add_note",
			mcp.WithDescription("Append an internal note that citizens never see."),
			mcp.WithString("request_id", mcp.Required(), mcp.Description("Request identifier")),
			mcp.WithString("message", mcp.Required(), mcp.Description("Note text")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			requestID, err := req.RequireString("request_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			message, err := req.RequireString("message")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			view, err := admin.AddNote(ctx, requestID, common.NoteRequest{Message: message})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("add_note", view)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"civitas.list_audit_entries",
			mcp.WithDescription("List admin audit rows for one request."),
			mcp.WithString("request_id", mcp.Required(), mcp.Description("Request identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			requestID, err := req.RequireString("request_id")
			if err != nil {
				return invalidRequestToolResult(err), nil
			}
			rows, err := admin.ListAuditEntries(ctx, requestID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_audit_entries", map[string]any{"items": rows})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"civitas.list_staff",
			mcp.WithDescription("List assignable staff in the actor's scope."),
			mcp.WithString("district_id", mcp.Description("Restrict to one district")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := admin.ListStaff(ctx, req.GetString("district_id", ""))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_staff", map[string]any{"items": rows})
		},
	)
}

// categoryNames lists category enum values in canonical order.
func categoryNames() []string {
	out := make([]string, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		out = append(out, string(c))
	}
	return out
}

// statusNames lists status enum values in lifecycle order.
func statusNames() []string {
	out := make([]string, 0, len(domain.Statuses()))
	for _, s := range domain.Statuses() {
		out = append(out, string(s))
	}
	return out
}

// priorityNames lists priority enum values from lowest to highest.
func priorityNames() []string {
	out := make([]string, 0, len(domain.Priorities()))
	for _, p := range domain.Priorities() {
		out = append(out, string(p))
	}
	return out
}
