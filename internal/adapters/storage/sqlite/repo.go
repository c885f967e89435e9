package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hylla/civitas/internal/app"
	"github.com/hylla/civitas/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// tsLayout is fixed width so lexical order on stored timestamps matches time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// memoryDBSeq names private in-memory databases.
var memoryDBSeq atomic.Int64

// Repository represents repository data used by this package.
type Repository struct {
	db *sql.DB
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	dsn := fmt.Sprintf("file:civitas-mem-%d?mode=memory&cache=shared", memoryDBSeq.Add(1))
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping verifies the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS municipalities (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS districts (
			id TEXT PRIMARY KEY,
			municipality_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY(municipality_id) REFERENCES municipalities(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			municipality_id TEXT NOT NULL,
			district_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			FOREIGN KEY(municipality_id) REFERENCES municipalities(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS service_requests (
			id TEXT PRIMARY KEY,
			tracking_code TEXT NOT NULL UNIQUE,
			municipality_id TEXT NOT NULL,
			district_id TEXT NOT NULL,
			category TEXT NOT NULL,
			priority TEXT NOT NULL,
			status TEXT NOT NULL,
			description TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			latitude REAL,
			longitude REAL,
			assignee_id TEXT NOT NULL DEFAULT '',
			assignee_name TEXT NOT NULL DEFAULT '',
			rejection_reason TEXT NOT NULL DEFAULT '',
			completion_photo_url TEXT NOT NULL DEFAULT '',
			priority_escalated_at TEXT,
			is_auto_escalated INTEGER NOT NULL DEFAULT 0,
			sla_deadline TEXT NOT NULL,
			sla_status TEXT NOT NULL,
			sla_breached_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			closed_at TEXT,
			FOREIGN KEY(district_id) REFERENCES districts(id)
		);`,
		`CREATE TABLE IF NOT EXISTS request_updates (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			request_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			actor_id TEXT NOT NULL DEFAULT '',
			actor_name TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			from_status TEXT NOT NULL DEFAULT '',
			to_status TEXT NOT NULL DEFAULT '',
			from_priority TEXT NOT NULL DEFAULT '',
			to_priority TEXT NOT NULL DEFAULT '',
			is_auto_escalation INTEGER NOT NULL DEFAULT 0,
			is_internal INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			FOREIGN KEY(request_id) REFERENCES service_requests(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS assignments (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL,
			staff_user_id TEXT NOT NULL,
			staff_name TEXT NOT NULL DEFAULT '',
			assigned_by_id TEXT NOT NULL,
			assigned_by_name TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			FOREIGN KEY(request_id) REFERENCES service_requests(id) ON DELETE CASCADE
		);`,
		// audit_log.entity_id is polymorphic, so no foreign key is enforced.
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			actor_id TEXT NOT NULL,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_districts_municipality ON districts(municipality_id, name);`,
		`CREATE INDEX IF NOT EXISTS idx_users_scope ON users(municipality_id, district_id, role);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_municipality_created ON service_requests(municipality_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_district_created ON service_requests(district_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_status ON service_requests(status);`,
		`CREATE INDEX IF NOT EXISTS idx_request_updates_request ON request_updates(request_id, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_request ON assignments(request_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_entity ON audit_log(entity_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateMunicipality creates municipality.
func (r *Repository) CreateMunicipality(ctx context.Context, m domain.Municipality) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO municipalities(id, name, created_at) VALUES (?, ?, ?)
	`, m.ID, m.Name, ts(m.CreatedAt))
	return translateWriteErr(err)
}

// ListMunicipalities lists municipalities.
func (r *Repository) ListMunicipalities(ctx context.Context) ([]domain.Municipality, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM municipalities ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Municipality, 0)
	for rows.Next() {
		var (
			m          domain.Municipality
			createdRaw string
		)
		if err := rows.Scan(&m.ID, &m.Name, &createdRaw); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTS(createdRaw)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateDistrict creates district.
func (r *Repository) CreateDistrict(ctx context.Context, d domain.District) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO districts(id, municipality_id, name, created_at) VALUES (?, ?, ?, ?)
	`, d.ID, d.MunicipalityID, d.Name, ts(d.CreatedAt))
	return translateWriteErr(err)
}

// GetDistrict returns district.
func (r *Repository) GetDistrict(ctx context.Context, id string) (domain.District, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, municipality_id, name, created_at FROM districts WHERE id = ?`, id)
	return scanDistrict(row)
}

// ListDistricts lists districts, optionally within one municipality.
func (r *Repository) ListDistricts(ctx context.Context, municipalityID string) ([]domain.District, error) {
	query := `SELECT id, municipality_id, name, created_at FROM districts`
	args := []any{}
	if municipalityID != "" {
		query += ` WHERE municipality_id = ?`
		args = append(args, municipalityID)
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.District, 0)
	for rows.Next() {
		d, err := scanDistrict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateUser creates user.
func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users(id, email, name, role, municipality_id, district_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.Name, string(u.Role), u.MunicipalityID, u.DistrictID, ts(u.CreatedAt))
	return translateWriteErr(err)
}

// GetUser returns user.
func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, municipality_id, district_id, created_at FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

// ListUsers lists users matching the filter.
func (r *Repository) ListUsers(ctx context.Context, filter app.UserFilter) ([]domain.User, error) {
	where, args := []string{}, []any{}
	if filter.MunicipalityID != "" {
		where = append(where, "municipality_id = ?")
		args = append(args, filter.MunicipalityID)
	}
	if filter.DistrictID != "" {
		where = append(where, "district_id = ?")
		args = append(args, filter.DistrictID)
	}
	if filter.Role != "" {
		where = append(where, "role = ?")
		args = append(args, string(filter.Role))
	}
	query := `SELECT id, email, name, role, municipality_id, district_id, created_at FROM users`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// requestColumns lists service_requests columns in scanRequest order.
const requestColumns = `id, tracking_code, municipality_id, district_id, category, priority, status, description,
	address, latitude, longitude, assignee_id, assignee_name, rejection_reason, completion_photo_url,
	priority_escalated_at, is_auto_escalated, sla_deadline, sla_status, sla_breached_at, created_at, updated_at, closed_at`

// CreateRequest inserts a request with its initial change records.
func (r *Repository) CreateRequest(ctx context.Context, req domain.Request, records []domain.ChangeRecord) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO service_requests(`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, requestArgs(req)...)
	if err != nil {
		return translateWriteErr(err)
	}
	if err = insertChangeRecords(ctx, tx, records); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// GetRequest returns request.
func (r *Repository) GetRequest(ctx context.Context, id string) (domain.Request, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id = ?`, id)
	return scanRequest(row)
}

// GetRequestByTrackingCode returns the request issued a tracking code.
func (r *Repository) GetRequestByTrackingCode(ctx context.Context, code string) (domain.Request, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE tracking_code = ?`, code)
	return scanRequest(row)
}

// TrackingCodeExists reports whether a tracking code is already issued.
func (r *Repository) TrackingCodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM service_requests WHERE tracking_code = ?`, code).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListRequests lists one page of scoped requests, newest first, with the total match count.
func (r *Repository) ListRequests(ctx context.Context, filter app.RequestFilter) ([]domain.Request, int, error) {
	clause, args := scopeClause(filter.Scope)
	where := []string{clause}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, string(filter.Priority))
	}
	if filter.DistrictID != "" {
		where = append(where, "district_id = ?")
		args = append(args, filter.DistrictID)
	}
	whereSQL := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM service_requests`+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := max(filter.Page, 1)
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = app.DefaultPageSize
	}
	pageArgs := append(append([]any{}, args...), pageSize, (page-1)*pageSize)
	items, err := r.queryRequests(ctx, `SELECT `+requestColumns+` FROM service_requests`+whereSQL+
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListOpenRequests lists every request not yet in a terminal status.
func (r *Repository) ListOpenRequests(ctx context.Context) ([]domain.Request, error) {
	return r.queryRequests(ctx, `SELECT `+requestColumns+` FROM service_requests
		WHERE status NOT IN (?, ?) ORDER BY created_at ASC, id ASC`,
		string(domain.StatusCompleted), string(domain.StatusRejected))
}

// ListClosedRequests lists terminal requests inside a scope.
func (r *Repository) ListClosedRequests(ctx context.Context, scope domain.Scope) ([]domain.Request, error) {
	clause, args := scopeClause(scope)
	args = append(args, string(domain.StatusCompleted), string(domain.StatusRejected))
	return r.queryRequests(ctx, `SELECT `+requestColumns+` FROM service_requests
		WHERE `+clause+` AND status IN (?, ?) ORDER BY created_at ASC, id ASC`, args...)
}

// CommitRequest writes one request mutation and its side rows in a single transaction.
func (r *Repository) CommitRequest(ctx context.Context, write app.RequestWrite) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	req := write.Request
	res, err := tx.ExecContext(ctx, `
		UPDATE service_requests
		SET priority = ?, status = ?, assignee_id = ?, assignee_name = ?, rejection_reason = ?, completion_photo_url = ?,
		    priority_escalated_at = ?, is_auto_escalated = ?, sla_deadline = ?, sla_status = ?, sla_breached_at = ?,
		    updated_at = ?, closed_at = ?
		WHERE id = ? AND updated_at = ?
	`,
		string(req.Priority),
		string(req.Status),
		req.AssigneeID,
		req.AssigneeName,
		req.RejectionReason,
		req.CompletionPhotoURL,
		nullableTS(req.PriorityEscalatedAt),
		boolInt(req.IsAutoEscalated),
		ts(req.SLADeadline),
		string(req.SLAStatus),
		nullableTS(req.SLABreachedAt),
		ts(req.UpdatedAt),
		nullableTS(req.ClosedAt),
		req.ID,
		ts(write.ExpectedUpdatedAt),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var n int
		if err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM service_requests WHERE id = ?`, req.ID).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			err = app.ErrNotFound
			return err
		}
		err = fmt.Errorf("request %q changed concurrently: %w", req.ID, app.ErrConflict)
		return err
	}

	if err = insertChangeRecords(ctx, tx, write.Records); err != nil {
		return err
	}
	if a := write.Assignment; a != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO assignments(id, request_id, staff_user_id, staff_name, assigned_by_id, assigned_by_name, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, a.ID, a.RequestID, a.StaffUserID, a.StaffName, a.AssignedByID, a.AssignedByName, ts(a.CreatedAt))
		if err != nil {
			return err
		}
	}
	if e := write.Audit; e != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO audit_log(id, actor_id, action, entity_type, entity_id, details, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.ActorID, e.Action, e.EntityType, e.EntityID, e.Details, ts(e.CreatedAt))
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

// ListChangeRecords lists a request's history in append order.
func (r *Repository) ListChangeRecords(ctx context.Context, requestID string, includeInternal bool) ([]domain.ChangeRecord, error) {
	query := `
		SELECT id, request_id, kind, actor_id, actor_name, message, from_status, to_status, from_priority, to_priority,
		       is_auto_escalation, is_internal, created_at
		FROM request_updates
		WHERE request_id = ?`
	if !includeInternal {
		query += ` AND is_internal = 0`
	}
	query += ` ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ChangeRecord, 0)
	for rows.Next() {
		rec, err := scanChangeRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListAssignments lists a request's assignment history, oldest first.
func (r *Repository) ListAssignments(ctx context.Context, requestID string) ([]domain.Assignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, request_id, staff_user_id, staff_name, assigned_by_id, assigned_by_name, created_at
		FROM assignments
		WHERE request_id = ?
		ORDER BY created_at ASC, id ASC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Assignment, 0)
	for rows.Next() {
		var (
			a          domain.Assignment
			createdRaw string
		)
		if err := rows.Scan(&a.ID, &a.RequestID, &a.StaffUserID, &a.StaffName, &a.AssignedByID, &a.AssignedByName, &createdRaw); err != nil {
			return nil, err
		}
		a.CreatedAt = parseTS(createdRaw)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListAuditEntries lists audit rows for one entity, oldest first.
func (r *Repository) ListAuditEntries(ctx context.Context, entityID string) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, actor_id, action, entity_type, entity_id, details, created_at
		FROM audit_log
		WHERE entity_id = ?
		ORDER BY created_at ASC, id ASC
	`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var (
			e          domain.AuditEntry
			createdRaw string
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &e.Details, &createdRaw); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTS(createdRaw)
		out = append(out, e)
	}
	return out, rows.Err()
}

// queryRequests runs a request select and scans every row.
func (r *Repository) queryRequests(ctx context.Context, query string, args ...any) ([]domain.Request, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// scopeClause translates a visibility scope into a SQL predicate.
// It must select exactly the rows domain.Scope.Matches accepts.
func scopeClause(scope domain.Scope) (string, []any) {
	if scope.IsEmpty() {
		return "1 = 0", []any{}
	}
	switch scope.Kind {
	case domain.ScopeMunicipality:
		return "municipality_id = ?", []any{scope.ID}
	case domain.ScopeDistrict:
		return "district_id = ?", []any{scope.ID}
	default:
		return "1 = 0", []any{}
	}
}

// execerContext represents the exec surface shared by *sql.DB and *sql.Tx.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// insertChangeRecords appends history rows in slice order.
func insertChangeRecords(ctx context.Context, execer execerContext, records []domain.ChangeRecord) error {
	for _, rec := range records {
		if strings.TrimSpace(rec.ID) == "" {
			return fmt.Errorf("change record id is required: %w", app.ErrInvalidInput)
		}
		_, err := execer.ExecContext(ctx, `
			INSERT INTO request_updates(
				id, request_id, kind, actor_id, actor_name, message, from_status, to_status, from_priority, to_priority,
				is_auto_escalation, is_internal, created_at
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.ID,
			rec.RequestID,
			string(rec.Kind),
			rec.ActorID,
			rec.ActorName,
			rec.Message,
			string(rec.FromStatus),
			string(rec.ToStatus),
			string(rec.FromPriority),
			string(rec.ToPriority),
			boolInt(rec.IsAutoEscalation),
			boolInt(rec.IsInternal),
			ts(rec.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert change record: %w", err)
		}
	}
	return nil
}

// requestArgs returns insert arguments in requestColumns order.
func requestArgs(req domain.Request) []any {
	return []any{
		req.ID,
		req.TrackingCode,
		req.MunicipalityID,
		req.DistrictID,
		string(req.Category),
		string(req.Priority),
		string(req.Status),
		req.Description,
		req.Location.Address,
		nullableFloat(req.Location.Latitude),
		nullableFloat(req.Location.Longitude),
		req.AssigneeID,
		req.AssigneeName,
		req.RejectionReason,
		req.CompletionPhotoURL,
		nullableTS(req.PriorityEscalatedAt),
		boolInt(req.IsAutoEscalated),
		ts(req.SLADeadline),
		string(req.SLAStatus),
		nullableTS(req.SLABreachedAt),
		ts(req.CreatedAt),
		ts(req.UpdatedAt),
		nullableTS(req.ClosedAt),
	}
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanDistrict handles scan district.
func scanDistrict(s scanner) (domain.District, error) {
	var (
		d          domain.District
		createdRaw string
	)
	if err := s.Scan(&d.ID, &d.MunicipalityID, &d.Name, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.District{}, app.ErrNotFound
		}
		return domain.District{}, err
	}
	d.CreatedAt = parseTS(createdRaw)
	return d, nil
}

// scanUser handles scan user.
func scanUser(s scanner) (domain.User, error) {
	var (
		u          domain.User
		role       string
		createdRaw string
	)
	if err := s.Scan(&u.ID, &u.Email, &u.Name, &role, &u.MunicipalityID, &u.DistrictID, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, app.ErrNotFound
		}
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	u.CreatedAt = parseTS(createdRaw)
	return u, nil
}

// scanRequest handles scan request.
func scanRequest(s scanner) (domain.Request, error) {
	var (
		req          domain.Request
		category     string
		priority     string
		status       string
		slaStatus    string
		latitude     sql.NullFloat64
		longitude    sql.NullFloat64
		escalatedRaw sql.NullString
		autoEscal    int
		deadlineRaw  string
		breachedRaw  sql.NullString
		createdRaw   string
		updatedRaw   string
		closedRaw    sql.NullString
	)
	if err := s.Scan(
		&req.ID,
		&req.TrackingCode,
		&req.MunicipalityID,
		&req.DistrictID,
		&category,
		&priority,
		&status,
		&req.Description,
		&req.Location.Address,
		&latitude,
		&longitude,
		&req.AssigneeID,
		&req.AssigneeName,
		&req.RejectionReason,
		&req.CompletionPhotoURL,
		&escalatedRaw,
		&autoEscal,
		&deadlineRaw,
		&slaStatus,
		&breachedRaw,
		&createdRaw,
		&updatedRaw,
		&closedRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Request{}, app.ErrNotFound
		}
		return domain.Request{}, err
	}
	req.Category = domain.Category(category)
	req.Priority = domain.Priority(priority)
	req.Status = domain.Status(status)
	req.SLAStatus = domain.SLAStatus(slaStatus)
	req.Location.Latitude = parseNullFloat(latitude)
	req.Location.Longitude = parseNullFloat(longitude)
	req.PriorityEscalatedAt = parseNullTS(escalatedRaw)
	req.IsAutoEscalated = autoEscal != 0
	req.SLADeadline = parseTS(deadlineRaw)
	req.SLABreachedAt = parseNullTS(breachedRaw)
	req.CreatedAt = parseTS(createdRaw)
	req.UpdatedAt = parseTS(updatedRaw)
	req.ClosedAt = parseNullTS(closedRaw)
	return req, nil
}

// scanChangeRecord handles scan change record.
func scanChangeRecord(s scanner) (domain.ChangeRecord, error) {
	var (
		rec          domain.ChangeRecord
		kind         string
		fromStatus   string
		toStatus     string
		fromPriority string
		toPriority   string
		autoEscal    int
		internal     int
		createdRaw   string
	)
	if err := s.Scan(
		&rec.ID,
		&rec.RequestID,
		&kind,
		&rec.ActorID,
		&rec.ActorName,
		&rec.Message,
		&fromStatus,
		&toStatus,
		&fromPriority,
		&toPriority,
		&autoEscal,
		&internal,
		&createdRaw,
	); err != nil {
		return domain.ChangeRecord{}, err
	}
	rec.Kind = domain.ChangeKind(kind)
	rec.FromStatus = domain.Status(fromStatus)
	rec.ToStatus = domain.Status(toStatus)
	rec.FromPriority = domain.Priority(fromPriority)
	rec.ToPriority = domain.Priority(toPriority)
	rec.IsAutoEscalation = autoEscal != 0
	rec.IsInternal = internal != 0
	rec.CreatedAt = parseTS(createdRaw)
	return rec, nil
}

// translateWriteErr maps uniqueness violations to app.ErrConflict.
func translateWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%v: %w", err, app.ErrConflict)
	}
	return err
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}

// parseTS parses ts.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses null ts.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}

// nullableFloat handles nullable float.
func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// parseNullFloat parses null float.
func parseNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// boolInt encodes a bool as a sqlite integer.
func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether sqlite rejected a duplicate key.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "constraint failed: unique")
}
