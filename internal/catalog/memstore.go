package catalog

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// UniqueKeyFunc derives the uniqueness key (spec §3) for an entity.
// Returning an error means the entity fails basic validation.
type UniqueKeyFunc[T any] func(*T) (string, error)

// EntityPtr carries the pointer-receiver EntityRef method T itself doesn't
// have, the same way internal/catalog/pgstore.PT does for GenericStore;
// catalog.Store[T] is always instantiated with value types.
type EntityPtr[T any] interface {
	*T
	Identifiable
}

// MemStore is an in-memory Store[T] with no persistence, used by this
// package's tests.
type MemStore[T any, P EntityPtr[T]] struct {
	mu       sync.RWMutex
	byID     map[string]*T
	keyFunc  UniqueKeyFunc[T]
	kind     Kind
	clockNow func() time.Time
}

// NewMemStore builds an in-memory store. clockNow defaults to time.Now but
// can be overridden in tests for deterministic timestamps.
func NewMemStore[T any, P EntityPtr[T]](kind Kind, keyFunc UniqueKeyFunc[T]) *MemStore[T, P] {
	return &MemStore[T, P]{
		byID:     make(map[string]*T),
		keyFunc:  keyFunc,
		kind:     kind,
		clockNow: time.Now,
	}
}

func (s *MemStore[T, P]) clone(v *T) *T {
	cp := *v
	return &cp
}

func (s *MemStore[T, P]) Create(_ context.Context, entity *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.keyFunc(entity)
	if err != nil {
		return fmt.Errorf("%s: %w", s.kind, err)
	}
	for _, existing := range s.byID {
		existingKey, _ := s.keyFunc(existing)
		if existingKey == key && P(existing).EntityRef().Enabled {
			return fmt.Errorf("%s: %w (%s)", s.kind, ErrConflict, key)
		}
	}

	ref := P(entity).EntityRef()
	now := s.clockNow()
	ref.CreatedAt = now
	ref.UpdatedAt = now

	s.byID[ref.ID] = s.clone(entity)
	return nil
}

func (s *MemStore[T, P]) Get(_ context.Context, id string) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", s.kind, id, ErrNotFound)
	}
	return s.clone(v), nil
}

func (s *MemStore[T, P]) List(_ context.Context, filter Filter, page PageRequest) (Page[T], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	page = page.Normalize()

	matched := make([]*T, 0, len(s.byID))
	for _, v := range s.byID {
		ref := P(v).EntityRef()
		if filter.TeamID != "" && ref.TeamID != filter.TeamID {
			continue
		}
		if filter.OwnerEmail != "" && ref.OwnerEmail != filter.OwnerEmail {
			continue
		}
		if filter.Visibility != "" && ref.Visibility != filter.Visibility {
			continue
		}
		if filter.EnabledOnly && !ref.Enabled {
			continue
		}
		if filter.NameQuery != "" && !strContains(ref.Name, filter.NameQuery) {
			continue
		}
		if len(filter.Tags) > 0 && !containsAll(ref.Tags, filter.Tags) {
			continue
		}
		matched = append(matched, v)
	}

	sort.Slice(matched, func(i, j int) bool {
		ri, rj := P(matched[i]).EntityRef(), P(matched[j]).EntityRef()
		if ri.CreatedAt.Equal(rj.CreatedAt) {
			return ri.ID < rj.ID
		}
		return ri.CreatedAt.Before(rj.CreatedAt)
	})

	total := int64(len(matched))
	start := (page.Page - 1) * page.Size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Size
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]T, 0, end-start)
	for _, v := range matched[start:end] {
		out = append(out, *s.clone(v))
	}

	totalPages := int((total + int64(page.Size) - 1) / int64(page.Size))
	return Page[T]{
		Data: out,
		Pagination: Pagination{
			Page:       page.Page,
			Size:       page.Size,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

func (s *MemStore[T, P]) Update(_ context.Context, id string, mutate func(*T) error) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", s.kind, id, ErrNotFound)
	}
	updated := s.clone(v)
	if err := mutate(updated); err != nil {
		return nil, err
	}
	P(updated).EntityRef().UpdatedAt = s.clockNow()
	s.byID[id] = updated
	return s.clone(updated), nil
}

func (s *MemStore[T, P]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("%s %q: %w", s.kind, id, ErrNotFound)
	}
	delete(s.byID, id)
	return nil
}

func (s *MemStore[T, P]) SetEnabled(_ context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%s %q: %w", s.kind, id, ErrNotFound)
	}
	ref := P(v).EntityRef()
	ref.Enabled = enabled
	ref.UpdatedAt = s.clockNow()
	return nil
}

func strContains(haystack, needle string) bool {
	return len(needle) == 0 || indexFold(haystack, needle) >= 0
}

func indexFold(haystack, needle string) int {
	h, n := []rune(lower(haystack)), []rune(lower(needle))
	if len(n) == 0 {
		return 0
	}
	for i := 0; i+len(n) <= len(h); i++ {
		if string(h[i:i+len(n)]) == string(n) {
			return i
		}
	}
	return -1
}

func lower(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= 'A' && r <= 'Z' {
			out[i] = r + ('a' - 'A')
		}
	}
	return string(out)
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

// Uniqueness key functions per spec §3.

func ToolKey(t *Tool) (string, error) {
	if t.Name == "" {
		return "", fmt.Errorf("tool name is required")
	}
	return t.GatewayID + "\x00" + t.Name, nil
}

func ResourceKey(r *Resource) (string, error) {
	if r.URI == "" {
		return "", fmt.Errorf("resource uri is required")
	}
	return r.TeamID + "\x00" + r.OwnerEmail + "\x00" + r.URI, nil
}

func PromptKey(p *Prompt) (string, error) {
	if p.Name == "" {
		return "", fmt.Errorf("prompt name is required")
	}
	return p.TeamID + "\x00" + p.OwnerEmail + "\x00" + p.Name, nil
}

func ServerKey(s *Server) (string, error) {
	if s.Name == "" {
		return "", fmt.Errorf("server name is required")
	}
	return s.TeamID + "\x00" + s.OwnerEmail + "\x00" + s.Name, nil
}

func GatewayKey(g *Gateway) (string, error) {
	if g.URL == "" {
		return "", fmt.Errorf("gateway url is required")
	}
	return g.TeamID + "\x00" + g.URL, nil
}

func A2AAgentKey(a *A2AAgent) (string, error) {
	if a.Slug == "" {
		return "", fmt.Errorf("a2a agent slug is required")
	}
	return a.TeamID + "\x00" + a.OwnerEmail + "\x00" + a.Slug, nil
}
