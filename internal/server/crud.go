package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/gwerrors"
)

// entityResponse wraps a single entity for a JSON response body.
type entityResponse[T any] struct {
	Data *T `json:"data"`
}

// crudHandler serves list/create/get/update/delete/enable over a
// catalog.Store[T], mounted under a "/admin/<kind>" prefix (spec §6.2). P
// recovers *catalog.Entity from a bare T the way pgstore.GenericStore does.
type crudHandler[T any, P interface {
	*T
	catalog.Identifiable
}] struct {
	store    catalog.Store[T]
	kind     catalog.Kind
	onChange func()
}

// mountCRUD registers the full set of admin CRUD routes for a catalog kind
// under prefix (e.g. "/admin/tools") on mux. onChange, if non-nil, runs
// after every successful mutation (create/update/delete/enable/disable) —
// the admin server uses it to nudge federation peers to resync early
// instead of waiting out their poll interval (spec §9 open question on
// federation push).
func mountCRUD[T any, P interface {
	*T
	catalog.Identifiable
}](mux *http.ServeMux, prefix string, store catalog.Store[T], kind catalog.Kind, onChange func()) {
	h := &crudHandler[T, P]{store: store, kind: kind, onChange: onChange}

	mux.HandleFunc("GET "+prefix, h.list)
	mux.HandleFunc("POST "+prefix, h.create)
	mux.HandleFunc("GET "+prefix+"/{id}", h.get)
	mux.HandleFunc("PUT "+prefix+"/{id}", h.update)
	mux.HandleFunc("DELETE "+prefix+"/{id}", h.delete)
	mux.HandleFunc("POST "+prefix+"/{id}/enable", h.setEnabled(true))
	mux.HandleFunc("POST "+prefix+"/{id}/disable", h.setEnabled(false))
}

func (h *crudHandler[T, P]) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := catalog.Filter{
		TeamID:     q.Get("team_id"),
		OwnerEmail: q.Get("owner_email"),
		Visibility: catalog.Visibility(q.Get("visibility")),
		GatewayID:  q.Get("gateway_id"),
		NameQuery:  q.Get("q"),
	}
	if q.Get("enabled_only") == "true" {
		filter.EnabledOnly = true
	}

	page := catalog.PageRequest{Cursor: q.Get("cursor")}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		page.Page = v
	}
	if v, err := strconv.Atoi(q.Get("size")); err == nil {
		page.Size = v
	}

	result, err := h.store.List(r.Context(), filter, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *crudHandler[T, P]) create(w http.ResponseWriter, r *http.Request) {
	var entity T
	if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
		writeError(w, gwerrors.InvalidRequest("decode %s body: %v", h.kind, err))
		return
	}

	ref := P(&entity).EntityRef()
	if ref.ID == "" {
		ref.ID = uuid.NewString()
	}
	if identity, ok := identityFromContext(r.Context()); ok && ref.OwnerEmail == "" {
		ref.OwnerEmail = identity.Email()
	}
	if ref.CreatedVia == "" {
		ref.CreatedVia = catalog.CreatedViaAPI
	}
	ref.Enabled = true

	if err := h.store.Create(r.Context(), &entity); err != nil {
		writeError(w, err)
		return
	}
	h.notifyChange()
	writeJSON(w, http.StatusCreated, entityResponse[T]{Data: &entity})
}

func (h *crudHandler[T, P]) get(w http.ResponseWriter, r *http.Request) {
	entity, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, wrapNotFound(err, h.kind, r.PathValue("id")))
		return
	}
	writeJSON(w, http.StatusOK, entityResponse[T]{Data: entity})
}

func (h *crudHandler[T, P]) update(w http.ResponseWriter, r *http.Request) {
	var patch T
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, gwerrors.InvalidRequest("decode %s body: %v", h.kind, err))
		return
	}

	id := r.PathValue("id")
	updated, err := h.store.Update(r.Context(), id, func(existing *T) error {
		existingRef := P(existing).EntityRef()
		createdAt, createdBy, createdVia := existingRef.CreatedAt, existingRef.CreatedBy, existingRef.CreatedVia
		*existing = patch
		existingRef = P(existing).EntityRef()
		existingRef.ID = id
		existingRef.CreatedAt, existingRef.CreatedBy, existingRef.CreatedVia = createdAt, createdBy, createdVia
		return nil
	})
	if err != nil {
		writeError(w, wrapNotFound(err, h.kind, id))
		return
	}
	h.notifyChange()
	writeJSON(w, http.StatusOK, entityResponse[T]{Data: updated})
}

func (h *crudHandler[T, P]) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, wrapNotFound(err, h.kind, r.PathValue("id")))
		return
	}
	h.notifyChange()
	w.WriteHeader(http.StatusNoContent)
}

func (h *crudHandler[T, P]) setEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := h.store.SetEnabled(r.Context(), id, enabled); err != nil {
			writeError(w, wrapNotFound(err, h.kind, id))
			return
		}
		h.notifyChange()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *crudHandler[T, P]) notifyChange() {
	if h.onChange != nil {
		h.onChange()
	}
}

// wrapNotFound upgrades a bare catalog.ErrNotFound into a kind/id-specific
// message, leaving other errors (e.g. ErrConflict) untouched.
func wrapNotFound(err error, kind catalog.Kind, id string) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return gwerrors.NotFound("%s %q not found", kind, id)
	}
	return err
}

// writeJSON encodes body as the JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorResponse is the admin API's JSON error body shape.
type errorResponse struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

// writeError maps err to its HTTP status and writes a gwerrors-shaped JSON
// body, wrapping plain errors as CodeInternal.
func writeError(w http.ResponseWriter, err error) {
	var gwErr *gwerrors.Error
	if !errors.As(err, &gwErr) {
		gwErr = gwerrors.Internal(err, "%s", err.Error())
	}

	resp := errorResponse{}
	resp.Error.Code = string(gwErr.Code)
	resp.Error.Message = gwErr.Message
	resp.Error.Details = gwErr.Details

	writeJSON(w, gwErr.HTTPStatus(), resp)
}
