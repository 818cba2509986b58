package catalog

import (
	"context"

	"github.com/mcpgateway/gateway/internal/gwerrors"
)

// Filter narrows a List call. Zero values mean "no filter on this field".
type Filter struct {
	TeamID     string
	OwnerEmail string
	Visibility Visibility
	GatewayID  string
	Tags       []string
	EnabledOnly bool
	NameQuery  string
}

// Store is the catalog persistence contract. One Store instance is scoped
// to a single entity Kind; the gateway wires up one per kind (ToolStore,
// ResourceStore, ...) so call sites never need a type switch.
type Store[T any] interface {
	Create(ctx context.Context, entity *T) error
	Get(ctx context.Context, id string) (*T, error)
	List(ctx context.Context, filter Filter, page PageRequest) (Page[T], error)
	Update(ctx context.Context, id string, mutate func(*T) error) (*T, error)
	Delete(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// ErrNotFound is returned by stores when an ID resolves to nothing visible
// to the caller's scope. Wrapped by the caller into gwerrors.NotFound with
// entity-specific context.
var ErrNotFound = gwerrors.NotFound("catalog entity not found")

// ErrConflict is returned by stores on a uniqueness-key collision.
var ErrConflict = gwerrors.New(gwerrors.CodeConflict, "catalog entity uniqueness violation")
