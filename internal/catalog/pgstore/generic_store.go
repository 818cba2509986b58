package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcpgateway/gateway/internal/catalog"
)

// PT carries the pointer-receiver EntityRef method T itself doesn't have;
// catalog.Store[T] is always instantiated with value types (catalog.Resource,
// not *catalog.Resource), but EntityRef is only defined on *Resource etc., so
// GenericStore takes both type parameters to recover *catalog.Entity from a
// bare T.
type PT[T any] interface {
	*T
	catalog.Identifiable
}

// GenericStore implements catalog.Store[T] for the simpler catalog entities
// (Resource, Prompt, Server, Gateway, A2AAgent), which don't need per-field
// SQL predicates beyond the shared Entity columns. It stores the full
// marshaled entity in a JSONB "data" column alongside queryable copies of
// the shared Entity fields, grounded on rakunlabs-at's NodeConfig table
// layout (metadata columns + opaque data blob) rather than ToolStore's
// fully-columned approach, since Tool is the only entity the dispatcher
// queries by non-Entity field (integration_type, base_url, etc).
type GenericStore[T any, P PT[T]] struct {
	pool  *pgxpool.Pool
	table string
}

// NewGenericStore builds a store backed by the named table, which must have
// columns (id, name, team_id, owner_email, visibility, enabled, created_at,
// updated_at, data jsonb).
func NewGenericStore[T any, P PT[T]](pool *pgxpool.Pool, table string) *GenericStore[T, P] {
	return &GenericStore[T, P]{pool: pool, table: table}
}

func (s *GenericStore[T, P]) Create(ctx context.Context, entity *T) error {
	now := time.Now().UTC()
	ref := P(entity).EntityRef()
	ref.CreatedAt, ref.UpdatedAt = now, now

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.table, err)
	}

	sqlStr, args, err := dialect.Insert(s.table).Rows(goqu.Record{
		"id": ref.ID, "name": ref.Name, "team_id": ref.TeamID, "owner_email": ref.OwnerEmail,
		"visibility": string(ref.Visibility), "enabled": ref.Enabled, "created_at": ref.CreatedAt,
		"updated_at": ref.UpdatedAt, "data": data,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert %s query: %w", s.table, err)
	}

	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s %q: %w", s.table, ref.Name, catalog.ErrConflict)
		}
		return fmt.Errorf("insert %s %q: %w", s.table, ref.Name, err)
	}
	return nil
}

func (s *GenericStore[T, P]) Get(ctx context.Context, id string) (*T, error) {
	sqlStr, args, err := dialect.From(s.table).Select("data").Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get %s query: %w", s.table, err)
	}

	var data []byte
	err = s.pool.QueryRow(ctx, sqlStr, args...).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%s %q: %w", s.table, id, catalog.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %q: %w", s.table, id, err)
	}

	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("decode %s %q: %w", s.table, id, err)
	}
	return &entity, nil
}

func (s *GenericStore[T, P]) List(ctx context.Context, filter catalog.Filter, page catalog.PageRequest) (catalog.Page[T], error) {
	page = page.Normalize()

	query := dialect.From(s.table)
	if filter.TeamID != "" {
		query = query.Where(goqu.I("team_id").Eq(filter.TeamID))
	}
	if filter.OwnerEmail != "" {
		query = query.Where(goqu.I("owner_email").Eq(filter.OwnerEmail))
	}
	if filter.Visibility != "" {
		query = query.Where(goqu.I("visibility").Eq(string(filter.Visibility)))
	}
	if filter.EnabledOnly {
		query = query.Where(goqu.I("enabled").IsTrue())
	}
	if filter.NameQuery != "" {
		query = query.Where(goqu.I("name").ILike("%" + filter.NameQuery + "%"))
	}

	countSQL, countArgs, err := query.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return catalog.Page[T]{}, fmt.Errorf("build count %s query: %w", s.table, err)
	}
	var total int64
	if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return catalog.Page[T]{}, fmt.Errorf("count %s: %w", s.table, err)
	}

	listSQL, listArgs, err := query.Select("data").
		Order(goqu.I("created_at").Asc(), goqu.I("id").Asc()).
		Limit(uint(page.Size)).Offset(uint((page.Page - 1) * page.Size)).
		ToSQL()
	if err != nil {
		return catalog.Page[T]{}, fmt.Errorf("build list %s query: %w", s.table, err)
	}

	rows, err := s.pool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return catalog.Page[T]{}, fmt.Errorf("list %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return catalog.Page[T]{}, err
		}
		var entity T
		if err := json.Unmarshal(data, &entity); err != nil {
			return catalog.Page[T]{}, fmt.Errorf("decode %s row: %w", s.table, err)
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return catalog.Page[T]{}, err
	}

	totalPages := int((total + int64(page.Size) - 1) / int64(page.Size))
	return catalog.Page[T]{
		Data: out,
		Pagination: catalog.Pagination{Page: page.Page, Size: page.Size, Total: total, TotalPages: totalPages},
	}, nil
}

func (s *GenericStore[T, P]) Update(ctx context.Context, id string, mutate func(*T) error) (*T, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(existing); err != nil {
		return nil, err
	}
	ref := P(existing).EntityRef()
	ref.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(existing)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.table, err)
	}

	sqlStr, args, err := dialect.Update(s.table).Set(goqu.Record{
		"name": ref.Name, "visibility": string(ref.Visibility), "enabled": ref.Enabled,
		"updated_at": ref.UpdatedAt, "data": data,
	}).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build update %s query: %w", s.table, err)
	}
	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("update %s %q: %w", s.table, id, err)
	}
	return existing, nil
}

func (s *GenericStore[T, P]) Delete(ctx context.Context, id string) error {
	sqlStr, args, err := dialect.Delete(s.table).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete %s query: %w", s.table, err)
	}
	tag, err := s.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete %s %q: %w", s.table, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %q: %w", s.table, id, catalog.ErrNotFound)
	}
	return nil
}

func (s *GenericStore[T, P]) SetEnabled(ctx context.Context, id string, enabled bool) error {
	sqlStr, args, err := dialect.Update(s.table).
		Set(goqu.Record{"enabled": enabled, "updated_at": time.Now().UTC()}).
		Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build set-enabled %s query: %w", s.table, err)
	}
	tag, err := s.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("set %s %q enabled=%v: %w", s.table, id, enabled, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %q: %w", s.table, id, catalog.ErrNotFound)
	}
	return nil
}

// Table names for the generic-store-backed entities.
const (
	ResourcesTable = "resources"
	PromptsTable   = "prompts"
	ServersTable   = "servers"
	GatewaysTable  = "gateways"
	A2AAgentsTable = "a2a_agents"
)

// NewResourceStore, NewPromptStore, NewServerStore, NewGatewayStore, and
// NewA2AAgentStore build GenericStore instances for their respective tables.
func NewResourceStore(pool *pgxpool.Pool) *GenericStore[catalog.Resource, *catalog.Resource] {
	return NewGenericStore[catalog.Resource, *catalog.Resource](pool, ResourcesTable)
}

func NewPromptStore(pool *pgxpool.Pool) *GenericStore[catalog.Prompt, *catalog.Prompt] {
	return NewGenericStore[catalog.Prompt, *catalog.Prompt](pool, PromptsTable)
}

func NewServerStore(pool *pgxpool.Pool) *GenericStore[catalog.Server, *catalog.Server] {
	return NewGenericStore[catalog.Server, *catalog.Server](pool, ServersTable)
}

func NewGatewayStore(pool *pgxpool.Pool) *GenericStore[catalog.Gateway, *catalog.Gateway] {
	return NewGenericStore[catalog.Gateway, *catalog.Gateway](pool, GatewaysTable)
}

func NewA2AAgentStore(pool *pgxpool.Pool) *GenericStore[catalog.A2AAgent, *catalog.A2AAgent] {
	return NewGenericStore[catalog.A2AAgent, *catalog.A2AAgent](pool, A2AAgentsTable)
}
