package mcpapi

import (
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
)

// TestAdminWriteToolCalls verifies mutation tools forward arguments and actor ids.
func TestAdminWriteToolCalls(t *testing.T) {
	admin := &stubAdminService{}
	handler, err := NewHandler(Config{}, &stubPublicService{}, admin)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()
	_, _ = postJSONRPC(t, server.Client(), server.URL, "usr-district1", initializeRequest())

	_, resp := postJSONRPC(t, server.Client(), server.URL, "usr-district1", callToolRequest(10, "civitas.update_status", map[string]any{
		"request_id":       "r7",
		"status":           "rejected",
		"rejection_reason": "duplicate",
	}))
	structured := toolResultStructured(t, resp.Result)
	if structured["status"] != "rejected" {
		t.Fatalf("status = %v, want rejected", structured["status"])
	}
	if admin.lastID != "r7" || admin.lastStatus.RejectionReason != "duplicate" || admin.lastActor != "usr-district1" {
		t.Fatalf("unexpected forwarded status change id=%q req=%#v actor=%q", admin.lastID, admin.lastStatus, admin.lastActor)
	}

	_, resp = postJSONRPC(t, server.Client(), server.URL, "usr-district1", callToolRequest(11, "civitas.assign_staff", map[string]any{
		"request_id":    "r7",
		"staff_user_id": "usr-staff1",
	}))
	if toolResultStructured(t, resp.Result)["assignee_id"] != "usr-staff1" || admin.lastAssign.StaffUserID != "usr-staff1" {
		t.Fatalf("assignment not forwarded: %#v", resp.Result)
	}

	_, _ = postJSONRPC(t, server.Client(), server.URL, "usr-district1", callToolRequest(12, "civitas.add_note", map[string]any{
		"request_id": "r7",
		"message":    "needs a lift",
	}))
	if admin.lastNote.Message != "needs a lift" {
		t.Fatalf("note = %#v, want forwarded message", admin.lastNote)
	}

	_, resp = postJSONRPC(t, server.Client(), server.URL, "usr-district1", callToolRequest(13, "civitas.list_audit_entries", map[string]any{
		"request_id": "r7",
	}))
	items, ok := toolResultStructured(t, resp.Result)["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("audit items = %#v, want one row", resp.Result)
	}
}

// TestUpdateStatusRequiresRequestID verifies the bound-argument path rejects empty ids.
func TestUpdateStatusRequiresRequestID(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubPublicService{}, &stubAdminService{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()
	_, _ = postJSONRPC(t, server.Client(), server.URL, "usr", initializeRequest())
	_, resp := postJSONRPC(t, server.Client(), server.URL, "usr", callToolRequest(14, "civitas.update_status", map[string]any{
		"status": "received",
	}))
	if text := toolResultText(t, resp.Result); !strings.HasPrefix(text, "invalid_request:") {
		t.Fatalf("text = %q, want invalid_request prefix", text)
	}
}

// TestEnumNamesFollowDomainOrder verifies tool enums mirror domain vocabularies.
func TestEnumNamesFollowDomainOrder(t *testing.T) {
	if got := statusNames(); !slices.Equal(got, []string{"submitted", "received", "in_progress", "completed", "rejected"}) {
		t.Fatalf("statusNames() = %#v", got)
	}
	if got := priorityNames(); len(got) != 4 || got[0] != "low" || got[3] != "urgent" {
		t.Fatalf("priorityNames() = %#v", got)
	}
	if got := categoryNames(); !slices.Contains(got, "water") || !slices.Contains(got, "roads") {
		t.Fatalf("categoryNames() = %#v", got)
	}
}
