// Package pgstore implements catalog.Store[T] on top of jackc/pgx/v5, with
// doug-martin/goqu/v9 building the SQL (grounded on rakunlabs-at's
// internal/store/postgres query-building style). ToolStore is the fully
// worked example; ResourceStore/PromptStore/ServerStore/GatewayStore/
// A2AAgentStore follow the identical Create/Get/List/Update/Delete shape
// against their own tables and are generated from the same pattern.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcpgateway/gateway/internal/catalog"
)

var dialect = goqu.Dialect("postgres")

const toolsTable = "tools"

// ToolStore persists catalog.Tool rows in Postgres.
type ToolStore struct {
	pool *pgxpool.Pool
}

// NewToolStore wraps an existing pgx pool. The pool's lifecycle (Close) is
// owned by the caller, typically internal/gateway's AppState shutdown path.
func NewToolStore(pool *pgxpool.Pool) *ToolStore {
	return &ToolStore{pool: pool}
}

type toolRow struct {
	ID                string
	Name              string
	Description        string
	Tags              []string
	TeamID            string
	OwnerEmail        string
	Visibility        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CreatedBy         string
	CreatedVia        string
	Enabled           bool
	Reachable         bool
	GatewayID         string
	IntegrationType   string
	QualifiedName     string
	InputSchema       []byte
	OutputSchema      []byte
	AnnotationsRaw    []byte
	RequestType       string
	BaseURL           string
	PathTemplate      string
	QueryMapping      []byte
	HeaderMapping     []byte
	TimeoutMS         int
	ExposePassthrough []byte
	Allowlist         []byte
	PluginChainPre    []byte
	PluginChainPost   []byte
	Idempotent        bool
}

func (s *ToolStore) Create(ctx context.Context, t *catalog.Tool) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	row, err := toolToRow(t)
	if err != nil {
		return fmt.Errorf("encode tool row: %w", err)
	}

	sql, args, err := dialect.Insert(toolsTable).Rows(goqu.Record{
		"id": row.ID, "name": row.Name, "description": row.Description, "tags": row.Tags,
		"team_id": row.TeamID, "owner_email": row.OwnerEmail, "visibility": row.Visibility,
		"created_at": row.CreatedAt, "updated_at": row.UpdatedAt, "created_by": row.CreatedBy,
		"created_via": row.CreatedVia, "enabled": row.Enabled, "reachable": row.Reachable,
		"gateway_id": row.GatewayID, "integration_type": row.IntegrationType,
		"qualified_name": row.QualifiedName, "input_schema": row.InputSchema,
		"output_schema": row.OutputSchema, "annotations_json": row.AnnotationsRaw,
		"request_type": row.RequestType, "base_url": row.BaseURL, "path_template": row.PathTemplate,
		"query_mapping": row.QueryMapping, "header_mapping": row.HeaderMapping,
		"timeout_ms": row.TimeoutMS, "expose_passthrough": row.ExposePassthrough,
		"allowlist": row.Allowlist, "plugin_chain_pre": row.PluginChainPre,
		"plugin_chain_post": row.PluginChainPost, "idempotent": row.Idempotent,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert tool query: %w", err)
	}

	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: (gateway_id, name)=(%s, %s)", catalog.ErrConflict, t.GatewayID, t.Name)
		}
		return fmt.Errorf("insert tool %q: %w", t.Name, err)
	}
	return nil
}

func (s *ToolStore) Get(ctx context.Context, id string) (*catalog.Tool, error) {
	sqlStr, args, err := dialect.From(toolsTable).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get tool query: %w", err)
	}

	row, err := s.scanOne(ctx, sqlStr, args)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("tool %q: %w", id, catalog.ErrNotFound)
	}
	return rowToTool(*row)
}

func (s *ToolStore) List(ctx context.Context, filter catalog.Filter, page catalog.PageRequest) (catalog.Page[catalog.Tool], error) {
	page = page.Normalize()

	query := dialect.From(toolsTable)
	if filter.TeamID != "" {
		query = query.Where(goqu.I("team_id").Eq(filter.TeamID))
	}
	if filter.OwnerEmail != "" {
		query = query.Where(goqu.I("owner_email").Eq(filter.OwnerEmail))
	}
	if filter.Visibility != "" {
		query = query.Where(goqu.I("visibility").Eq(string(filter.Visibility)))
	}
	if filter.GatewayID != "" {
		query = query.Where(goqu.I("gateway_id").Eq(filter.GatewayID))
	}
	if filter.EnabledOnly {
		query = query.Where(goqu.I("enabled").IsTrue())
	}
	if filter.NameQuery != "" {
		query = query.Where(goqu.I("name").ILike("%" + filter.NameQuery + "%"))
	}

	countSQL, countArgs, err := query.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return catalog.Page[catalog.Tool]{}, fmt.Errorf("build count tools query: %w", err)
	}
	var total int64
	if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return catalog.Page[catalog.Tool]{}, fmt.Errorf("count tools: %w", err)
	}

	listSQL, listArgs, err := query.
		Order(goqu.I("created_at").Asc(), goqu.I("id").Asc()).
		Limit(uint(page.Size)).
		Offset(uint((page.Page - 1) * page.Size)).
		ToSQL()
	if err != nil {
		return catalog.Page[catalog.Tool]{}, fmt.Errorf("build list tools query: %w", err)
	}

	rows, err := s.pool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return catalog.Page[catalog.Tool]{}, fmt.Errorf("list tools: %w", err)
	}
	defer rows.Close()

	var tools []catalog.Tool
	for rows.Next() {
		row, err := scanToolRow(rows)
		if err != nil {
			return catalog.Page[catalog.Tool]{}, err
		}
		tool, err := rowToTool(row)
		if err != nil {
			return catalog.Page[catalog.Tool]{}, err
		}
		tools = append(tools, *tool)
	}
	if err := rows.Err(); err != nil {
		return catalog.Page[catalog.Tool]{}, err
	}

	totalPages := int((total + int64(page.Size) - 1) / int64(page.Size))
	return catalog.Page[catalog.Tool]{
		Data: tools,
		Pagination: catalog.Pagination{
			Page: page.Page, Size: page.Size, Total: total, TotalPages: totalPages,
		},
	}, nil
}

func (s *ToolStore) Update(ctx context.Context, id string, mutate func(*catalog.Tool) error) (*catalog.Tool, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(existing); err != nil {
		return nil, err
	}
	existing.UpdatedAt = time.Now().UTC()

	row, err := toolToRow(existing)
	if err != nil {
		return nil, fmt.Errorf("encode tool row: %w", err)
	}

	sqlStr, args, err := dialect.Update(toolsTable).Set(goqu.Record{
		"name": row.Name, "description": row.Description, "tags": row.Tags,
		"visibility": row.Visibility, "updated_at": row.UpdatedAt, "enabled": row.Enabled,
		"reachable": row.Reachable, "input_schema": row.InputSchema, "output_schema": row.OutputSchema,
		"annotations_json": row.AnnotationsRaw, "request_type": row.RequestType, "base_url": row.BaseURL,
		"path_template": row.PathTemplate, "query_mapping": row.QueryMapping,
		"header_mapping": row.HeaderMapping, "timeout_ms": row.TimeoutMS,
		"expose_passthrough": row.ExposePassthrough, "allowlist": row.Allowlist,
		"plugin_chain_pre": row.PluginChainPre, "plugin_chain_post": row.PluginChainPost,
		"idempotent": row.Idempotent,
	}).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build update tool query: %w", err)
	}

	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("update tool %q: %w", id, err)
	}
	return existing, nil
}

func (s *ToolStore) Delete(ctx context.Context, id string) error {
	sqlStr, args, err := dialect.Delete(toolsTable).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete tool query: %w", err)
	}
	tag, err := s.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete tool %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tool %q: %w", id, catalog.ErrNotFound)
	}
	return nil
}

func (s *ToolStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	sqlStr, args, err := dialect.Update(toolsTable).
		Set(goqu.Record{"enabled": enabled, "updated_at": time.Now().UTC()}).
		Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build set-enabled tool query: %w", err)
	}
	tag, err := s.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("set tool %q enabled=%v: %w", id, enabled, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tool %q: %w", id, catalog.ErrNotFound)
	}
	return nil
}

func (s *ToolStore) scanOne(ctx context.Context, sqlStr string, args []any) (*toolRow, error) {
	row := s.pool.QueryRow(ctx, sqlStr, args...)
	r, err := scanToolRowFromRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan tool row: %w", err)
	}
	return &r, nil
}

// rowScanner abstracts over pgx.Row and pgx.Rows, both of which expose Scan.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanToolRow(rs rowScanner) (toolRow, error) {
	var r toolRow
	err := rs.Scan(
		&r.ID, &r.Name, &r.Description, &r.Tags, &r.TeamID, &r.OwnerEmail, &r.Visibility,
		&r.CreatedAt, &r.UpdatedAt, &r.CreatedBy, &r.CreatedVia, &r.Enabled, &r.Reachable,
		&r.GatewayID, &r.IntegrationType, &r.QualifiedName, &r.InputSchema, &r.OutputSchema,
		&r.AnnotationsRaw, &r.RequestType, &r.BaseURL, &r.PathTemplate, &r.QueryMapping,
		&r.HeaderMapping, &r.TimeoutMS, &r.ExposePassthrough, &r.Allowlist, &r.PluginChainPre,
		&r.PluginChainPost, &r.Idempotent,
	)
	return r, err
}

func scanToolRowFromRow(row pgx.Row) (toolRow, error) {
	return scanToolRow(row)
}

func toolToRow(t *catalog.Tool) (toolRow, error) {
	qm, err := json.Marshal(t.QueryMapping)
	if err != nil {
		return toolRow{}, err
	}
	hm, err := json.Marshal(t.HeaderMapping)
	if err != nil {
		return toolRow{}, err
	}
	ep, err := json.Marshal(t.ExposePassthrough)
	if err != nil {
		return toolRow{}, err
	}
	al, err := json.Marshal(t.Allowlist)
	if err != nil {
		return toolRow{}, err
	}
	pre, err := json.Marshal(t.PluginChainPre)
	if err != nil {
		return toolRow{}, err
	}
	post, err := json.Marshal(t.PluginChainPost)
	if err != nil {
		return toolRow{}, err
	}

	return toolRow{
		ID: t.ID, Name: t.Name, Description: t.Description, Tags: t.Tags, TeamID: t.TeamID,
		OwnerEmail: t.OwnerEmail, Visibility: string(t.Visibility), CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt, CreatedBy: t.CreatedBy, CreatedVia: string(t.CreatedVia),
		Enabled: t.Enabled, Reachable: t.Reachable, GatewayID: t.GatewayID,
		IntegrationType: string(t.IntegrationType), QualifiedName: t.QualifiedName,
		InputSchema: t.InputSchema, OutputSchema: t.OutputSchema, AnnotationsRaw: t.AnnotationsRaw,
		RequestType: string(t.RequestType), BaseURL: t.BaseURL, PathTemplate: t.PathTemplate,
		QueryMapping: qm, HeaderMapping: hm, TimeoutMS: t.TimeoutMS, ExposePassthrough: ep,
		Allowlist: al, PluginChainPre: pre, PluginChainPost: post, Idempotent: t.Idempotent,
	}, nil
}

func rowToTool(r toolRow) (*catalog.Tool, error) {
	t := &catalog.Tool{
		Entity: catalog.Entity{
			ID: r.ID, Name: r.Name, Description: r.Description, Tags: r.Tags, TeamID: r.TeamID,
			OwnerEmail: r.OwnerEmail, Visibility: catalog.Visibility(r.Visibility), CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt, CreatedBy: r.CreatedBy, CreatedVia: catalog.CreatedVia(r.CreatedVia),
			Enabled: r.Enabled, Reachable: r.Reachable,
		},
		GatewayID: r.GatewayID, IntegrationType: catalog.IntegrationType(r.IntegrationType),
		QualifiedName: r.QualifiedName, InputSchema: r.InputSchema, OutputSchema: r.OutputSchema,
		AnnotationsRaw: r.AnnotationsRaw, RequestType: catalog.RequestType(r.RequestType),
		BaseURL: r.BaseURL, PathTemplate: r.PathTemplate, TimeoutMS: r.TimeoutMS,
		Idempotent: r.Idempotent,
	}
	if err := json.Unmarshal(r.QueryMapping, &t.QueryMapping); err != nil && len(r.QueryMapping) > 0 {
		return nil, fmt.Errorf("decode query_mapping: %w", err)
	}
	if err := json.Unmarshal(r.HeaderMapping, &t.HeaderMapping); err != nil && len(r.HeaderMapping) > 0 {
		return nil, fmt.Errorf("decode header_mapping: %w", err)
	}
	_ = json.Unmarshal(r.ExposePassthrough, &t.ExposePassthrough)
	_ = json.Unmarshal(r.Allowlist, &t.Allowlist)
	_ = json.Unmarshal(r.PluginChainPre, &t.PluginChainPre)
	_ = json.Unmarshal(r.PluginChainPost, &t.PluginChainPost)
	return t, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), without importing the pgconn error type directly at
// every call site.
func isUniqueViolation(err error) bool {
	return err != nil && containsCode(err.Error(), "23505")
}

func containsCode(msg, code string) bool {
	for i := 0; i+len(code) <= len(msg); i++ {
		if msg[i:i+len(code)] == code {
			return true
		}
	}
	return false
}
