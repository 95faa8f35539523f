package httpapi

import (
	"context"
	"errors"
	"net/http"
)

// resource wires one REST collection onto service calls. A nil operation
// answers 405.
type resource[Req any, T any] struct {
	prefix string
	list   func(r *http.Request) ([]T, error)
	create func(ctx context.Context, req Req) (T, error)
	get    func(ctx context.Context, id string) (T, error)
	update func(ctx context.Context, id string, req Req) (T, error)
	remove func(ctx context.Context, id string) error
}

func (res resource[Req, T]) serve(w http.ResponseWriter, r *http.Request) {
	id, action := resourcePath(r, res.prefix)
	if action != "" {
		writeError(w, http.StatusNotFound, errors.New("resource not found"))
		return
	}
	if id == "" {
		res.serveCollection(w, r)
		return
	}

	switch {
	case r.Method == http.MethodGet && res.get != nil:
		item, err := res.get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case (r.Method == http.MethodPatch || r.Method == http.MethodPut) && res.update != nil:
		var req Req
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := res.update(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case r.Method == http.MethodDelete && res.remove != nil:
		if err := res.remove(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeNoContent(w)
	default:
		writeMethodNotAllowed(w)
	}
}

func (res resource[Req, T]) serveCollection(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && res.list != nil:
		items, err := res.list(r)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	case r.Method == http.MethodPost && res.create != nil:
		var req Req
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := res.create(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	default:
		writeMethodNotAllowed(w)
	}
}
