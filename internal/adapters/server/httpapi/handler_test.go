package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hylla/civitas/internal/adapters/server/common"
	"github.com/hylla/civitas/internal/app"
)

// stubPublicService provides deterministic citizen responses for handler tests.
type stubPublicService struct {
	districts  []common.DistrictView
	tracking   common.TrackingView
	err        error
	lastSubmit common.SubmitRequest
	lastCode   string
	lastUpdate common.CitizenUpdateRequest
}

// ListDistricts returns fixture districts.
func (s *stubPublicService) ListDistricts(context.Context) ([]common.DistrictView, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]common.DistrictView(nil), s.districts...), nil
}

// SubmitRequest records the payload and returns the fixture tracking view.
func (s *stubPublicService) SubmitRequest(_ context.Context, in common.SubmitRequest) (common.TrackingView, error) {
	s.lastSubmit = in
	if s.err != nil {
		return common.TrackingView{}, s.err
	}
	return s.tracking, nil
}

// TrackRequest records the code and returns the fixture tracking view.
func (s *stubPublicService) TrackRequest(_ context.Context, code string) (common.TrackingView, error) {
	s.lastCode = code
	if s.err != nil {
		return common.TrackingView{}, s.err
	}
	return s.tracking, nil
}

// AddCitizenUpdate records the payload and returns the fixture tracking view.
func (s *stubPublicService) AddCitizenUpdate(_ context.Context, code string, in common.CitizenUpdateRequest) (common.TrackingView, error) {
	s.lastCode = code
	s.lastUpdate = in
	if s.err != nil {
		return common.TrackingView{}, s.err
	}
	return s.tracking, nil
}

// stubAdminService records actor ids and payloads for admin handler tests.
type stubAdminService struct {
	err          error
	lastActor    string
	lastID       string
	lastQuery    common.ListRequestsQuery
	lastStatus   common.StatusChangeRequest
	lastPriority common.PriorityChangeRequest
	lastAssign   common.AssignStaffRequest
	lastNote     common.NoteRequest
	lastDistrict string
}

func (s *stubAdminService) record(ctx context.Context, id string) error {
	s.lastActor, _ = app.ActorIDFromContext(ctx)
	s.lastID = id
	return s.err
}

func (s *stubAdminService) ListRequests(ctx context.Context, q common.ListRequestsQuery) (common.RequestPageView, error) {
	s.lastQuery = q
	if err := s.record(ctx, ""); err != nil {
		return common.RequestPageView{}, err
	}
	return common.RequestPageView{Items: []common.RequestView{{ID: "r1"}}, Total: 1, Page: 1, PageSize: 20}, nil
}

func (s *stubAdminService) GetRequest(ctx context.Context, id string) (common.RequestDetailView, error) {
	if err := s.record(ctx, id); err != nil {
		return common.RequestDetailView{}, err
	}
	return common.RequestDetailView{Request: common.RequestView{ID: id}}, nil
}

func (s *stubAdminService) UpdateStatus(ctx context.Context, id string, in common.StatusChangeRequest) (common.RequestView, error) {
	s.lastStatus = in
	if err := s.record(ctx, id); err != nil {
		return common.RequestView{}, err
	}
	return common.RequestView{ID: id, Status: in.Status}, nil
}

func (s *stubAdminService) UpdatePriority(ctx context.Context, id string, in common.PriorityChangeRequest) (common.RequestView, error) {
	s.lastPriority = in
	if err := s.record(ctx, id); err != nil {
		return common.RequestView{}, err
	}
	return common.RequestView{ID: id, Priority: in.Priority}, nil
}

func (s *stubAdminService) AssignStaff(ctx context.Context, id string, in common.AssignStaffRequest) (common.RequestView, error) {
	s.lastAssign = in
	if err := s.record(ctx, id); err != nil {
		return common.RequestView{}, err
	}
	return common.RequestView{ID: id, AssigneeID: in.StaffUserID}, nil
}

func (s *stubAdminService) AddNote(ctx context.Context, id string, in common.NoteRequest) (common.RequestView, error) {
	s.lastNote = in
	if err := s.record(ctx, id); err != nil {
		return common.RequestView{}, err
	}
	return common.RequestView{ID: id}, nil
}

func (s *stubAdminService) ListAuditEntries(ctx context.Context, id string) ([]common.AuditEntryView, error) {
	if err := s.record(ctx, id); err != nil {
		return nil, err
	}
	return []common.AuditEntryView{{ID: "a1", EntityID: id}}, nil
}

func (s *stubAdminService) ListStaff(ctx context.Context, districtID string) ([]common.StaffView, error) {
	s.lastDistrict = districtID
	if err := s.record(ctx, ""); err != nil {
		return nil, err
	}
	return []common.StaffView{{ID: "u1"}}, nil
}

func (s *stubAdminService) SLACompliance(ctx context.Context) (common.ComplianceView, error) {
	if err := s.record(ctx, ""); err != nil {
		return common.ComplianceView{}, err
	}
	return common.ComplianceView{Rate: 100}, nil
}

// serve runs one request through the handler.
func serve(t *testing.T, h http.Handler, method, target, body, actor string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeError decodes a structured error envelope.
func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return env.Error
}

// TestHandlerPublicRoutes verifies citizen endpoints and payload mapping.
func TestHandlerPublicRoutes(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	public := &stubPublicService{
		districts: []common.DistrictView{{ID: "d1", Name: "Olaya"}},
		tracking: common.TrackingView{
			Request: common.PublicRequestView{TrackingCode: "ABCD2345", Status: "submitted", CreatedAt: now},
		},
	}
	handler := NewHandler(public, nil)

	rec := serve(t, handler, http.MethodGet, "/districts", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("districts status = %d", rec.Code)
	}

	rec = serve(t, handler, http.MethodPost, "/requests", `{"district_id":"d1","category":"water","description":"leak","latitude":24.7}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body.String())
	}
	if public.lastSubmit.DistrictID != "d1" || public.lastSubmit.Latitude == nil || *public.lastSubmit.Latitude != 24.7 {
		t.Fatalf("unexpected submit payload %#v", public.lastSubmit)
	}
	var tracking common.TrackingView
	if err := json.NewDecoder(rec.Body).Decode(&tracking); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if tracking.Request.TrackingCode != "ABCD2345" {
		t.Fatalf("unexpected tracking view %#v", tracking)
	}

	rec = serve(t, handler, http.MethodGet, "/track/abcd2345", "", "")
	if rec.Code != http.StatusOK || public.lastCode != "abcd2345" {
		t.Fatalf("track status = %d code = %q", rec.Code, public.lastCode)
	}

	rec = serve(t, handler, http.MethodPost, "/track/ABCD2345/updates", `{"message":"worse"}`, "")
	if rec.Code != http.StatusCreated || public.lastUpdate.Message != "worse" {
		t.Fatalf("update status = %d payload = %#v", rec.Code, public.lastUpdate)
	}

	rec = serve(t, handler, http.MethodPost, "/requests", `{"district_id":"d1","bogus":true}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d", rec.Code)
	}
	rec = serve(t, handler, http.MethodPost, "/requests", `{"district_id":"d1"}{}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("trailing content status = %d", rec.Code)
	}

	rec = serve(t, handler, http.MethodDelete, "/districts", "", "")
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodGet {
		t.Fatalf("method status = %d allow = %q", rec.Code, rec.Header().Get("Allow"))
	}
	rec = serve(t, handler, http.MethodGet, "/nope", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route status = %d", rec.Code)
	}
}

// TestHandlerAdminRoutesCarryActor verifies admin routing and X-Actor-ID propagation.
func TestHandlerAdminRoutesCarryActor(t *testing.T) {
	admin := &stubAdminService{}
	handler := NewHandler(nil, admin)

	rec := serve(t, handler, http.MethodGet, "/admin/requests?status=received&district_id=d2&page=2&page_size=5", "", "usr-admin")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if admin.lastActor != "usr-admin" {
		t.Fatalf("actor = %q, want usr-admin", admin.lastActor)
	}
	want := common.ListRequestsQuery{Status: "received", DistrictID: "d2", Page: 2, PageSize: 5}
	if admin.lastQuery != want {
		t.Fatalf("query = %#v, want %#v", admin.lastQuery, want)
	}

	cases := []struct {
		method string
		target string
		body   string
		check  func() bool
	}{
		{http.MethodGet, "/admin/requests/r9", "", func() bool { return admin.lastID == "r9" }},
		{http.MethodPost, "/admin/requests/r9/status", `{"status":"rejected","rejection_reason":"dup"}`, func() bool {
			return admin.lastStatus.Status == "rejected" && admin.lastStatus.RejectionReason == "dup"
		}},
		{http.MethodPost, "/admin/requests/r9/priority", `{"priority":"high"}`, func() bool { return admin.lastPriority.Priority == "high" }},
		{http.MethodPost, "/admin/requests/r9/assign", `{"staff_user_id":"u1"}`, func() bool { return admin.lastAssign.StaffUserID == "u1" }},
		{http.MethodPost, "/admin/requests/r9/notes", `{"message":"call back"}`, func() bool { return admin.lastNote.Message == "call back" }},
		{http.MethodGet, "/admin/requests/r9/audit", "", func() bool { return admin.lastID == "r9" }},
		{http.MethodGet, "/admin/staff?district_id=d3", "", func() bool { return admin.lastDistrict == "d3" }},
		{http.MethodGet, "/admin/sla-compliance", "", func() bool { return true }},
	}
	for _, tc := range cases {
		rec := serve(t, handler, tc.method, tc.target, tc.body, "usr-admin")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s %s status = %d body %s", tc.method, tc.target, rec.Code, rec.Body.String())
		}
		if !tc.check() {
			t.Fatalf("%s %s did not reach the service as expected", tc.method, tc.target)
		}
	}

	rec = serve(t, handler, http.MethodGet, "/admin/requests?page=-1", "", "usr-admin")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative page status = %d", rec.Code)
	}
	rec = serve(t, handler, http.MethodPost, "/admin/requests/r9/unknown", `{}`, "usr-admin")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown action status = %d", rec.Code)
	}
}

// TestHandlerErrorMapping verifies structured status mapping for adapter errors.
func TestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{name: "unauthenticated", err: common.ErrUnauthenticated, wantCode: http.StatusUnauthorized, wantKind: "unauthenticated"},
		{name: "forbidden", err: common.ErrForbidden, wantCode: http.StatusForbidden, wantKind: "forbidden"},
		{name: "not found", err: common.ErrNotFound, wantCode: http.StatusNotFound, wantKind: "not_found"},
		{name: "rule", err: errors.Join(common.ErrRuleViolation, errors.New("illegal")), wantCode: http.StatusUnprocessableEntity, wantKind: "rule_violation"},
		{name: "invalid", err: common.ErrInvalidRequest, wantCode: http.StatusBadRequest, wantKind: "invalid_request"},
		{name: "conflict", err: common.ErrConflict, wantCode: http.StatusConflict, wantKind: "conflict"},
		{name: "unavailable", err: common.ErrServiceUnavailable, wantCode: http.StatusServiceUnavailable, wantKind: "service_unavailable"},
		{name: "internal", err: errors.New("boom"), wantCode: http.StatusInternalServerError, wantKind: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHandler(nil, &stubAdminService{err: tc.err})
			rec := serve(t, handler, http.MethodGet, "/admin/requests/r1", "", "usr")
			if rec.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantCode)
			}
			if got := decodeError(t, rec); got.Code != tc.wantKind {
				t.Fatalf("code = %q, want %q", got.Code, tc.wantKind)
			}
		})
	}
}

// TestHandlerNotFoundIsGeneric verifies scoped 404s do not echo internal detail.
func TestHandlerNotFoundIsGeneric(t *testing.T) {
	handler := NewHandler(nil, &stubAdminService{err: errors.Join(common.ErrNotFound, errors.New("request r1 in district d2"))})
	rec := serve(t, handler, http.MethodGet, "/admin/requests/r1", "", "usr")
	got := decodeError(t, rec)
	if got.Message != "not found" {
		t.Fatalf("message = %q, want generic", got.Message)
	}
}

// TestHandlerUnconfiguredServices verifies 503 responses for missing services.
func TestHandlerUnconfiguredServices(t *testing.T) {
	handler := NewHandler(nil, nil)
	if rec := serve(t, handler, http.MethodGet, "/districts", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("public status = %d", rec.Code)
	}
	if rec := serve(t, handler, http.MethodGet, "/admin/requests", "", "usr"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("admin status = %d", rec.Code)
	}
}
