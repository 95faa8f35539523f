package httpapi

import (
	"errors"
	"net/http"

	"shopmate/backend/internal/domain"
)

func (a *API) handleShops(w http.ResponseWriter, r *http.Request) {
	id, action := resourcePath(r, "/api/shops/")
	if action != "" {
		writeError(w, http.StatusNotFound, errors.New("resource not found"))
		return
	}
	if id == "me" {
		a.handleMyShop(w, r)
		return
	}
	if id == "" {
		switch r.Method {
		case http.MethodGet:
			shops, err := a.service.ListShops(r.Context())
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, shops)
		case http.MethodPost:
			var req domain.ShopRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			shop, err := a.service.CreateShop(r.Context(), req)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, shop)
		default:
			writeMethodNotAllowed(w)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		shop, err := a.service.GetShop(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, shop)
	case http.MethodPatch, http.MethodPut:
		var req domain.ShopRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		shop, err := a.service.UpdateShop(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, shop)
	case http.MethodDelete:
		if err := a.service.DeleteShop(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeNoContent(w)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleMyShop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	resp, err := a.service.MyShop(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShopSearch(w http.ResponseWriter, r *http.Request) {
	if !isCollection(w, r, "/api/shop_search/") {
		return
	}
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	shops, err := a.service.SearchShops(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shops)
}

func (a *API) handleJoinShop(w http.ResponseWriter, r *http.Request) {
	if !isCollection(w, r, "/api/join_shop/") {
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.JoinShopRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	membership, err := a.service.RequestJoin(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, membership)
}

func (a *API) handleJoinRequests(w http.ResponseWriter, r *http.Request) {
	id, action := resourcePath(r, "/api/join-requests/")
	if id == "" {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		pending, err := a.service.ListPendingRequests(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pending)
		return
	}
	if action != "handle" {
		writeError(w, http.StatusNotFound, errors.New("resource not found"))
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.HandleJoinRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	membership, err := a.service.HandleJoinRequest(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, membership)
}

func (a *API) handleEmployees(w http.ResponseWriter, r *http.Request) {
	id, action := resourcePath(r, "/api/employees/")
	if action != "" {
		writeError(w, http.StatusNotFound, errors.New("resource not found"))
		return
	}
	if id == "" {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		employees, err := a.service.ListEmployees(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, employees)
		return
	}
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	if err := a.service.RemoveEmployee(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeNoContent(w)
}

func (a *API) handleCheckMembership(w http.ResponseWriter, r *http.Request) {
	if !isCollection(w, r, "/api/check-membership/") {
		return
	}
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	resp, err := a.service.CheckMembership(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShopBranches(w http.ResponseWriter, r *http.Request) {
	if !isCollection(w, r, "/api/shop-branches/") {
		return
	}
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	branches, err := a.service.ListShopBranches(r.Context(), r.URL.Query().Get("shop_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, branches)
}
