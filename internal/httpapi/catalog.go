package httpapi

import (
	"net/http"

	"shopmate/backend/internal/domain"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func listLimit(r *http.Request) int {
	return parsePositiveLimit(r.URL.Query().Get("limit"), defaultListLimit, maxListLimit)
}

func (a *API) handleBranches(w http.ResponseWriter, r *http.Request) {
	resource[domain.BranchRequest, domain.Branch]{
		prefix: "/api/branches/",
		list: func(r *http.Request) ([]domain.Branch, error) {
			return a.service.ListBranches(r.Context())
		},
		create: a.service.CreateBranch,
		get:    a.service.GetBranch,
		update: a.service.UpdateBranch,
		remove: a.service.DeleteBranch,
	}.serve(w, r)
}

func (a *API) handleCategories(w http.ResponseWriter, r *http.Request) {
	resource[domain.CategoryRequest, domain.Category]{
		prefix: "/api/categories/",
		list: func(r *http.Request) ([]domain.Category, error) {
			return a.service.ListCategories(r.Context())
		},
		create: a.service.CreateCategory,
		get:    a.service.GetCategory,
		update: a.service.UpdateCategory,
		remove: a.service.DeleteCategory,
	}.serve(w, r)
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	resource[domain.ProductRequest, domain.Product]{
		prefix: "/api/products/",
		list: func(r *http.Request) ([]domain.Product, error) {
			return a.service.ListProducts(r.Context(), r.URL.Query().Get("search"), listLimit(r))
		},
		create: a.service.CreateProduct,
		get:    a.service.GetProduct,
		update: a.service.UpdateProduct,
		remove: a.service.DeleteProduct,
	}.serve(w, r)
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	resource[domain.CustomerRequest, domain.Customer]{
		prefix: "/api/customers/",
		list: func(r *http.Request) ([]domain.Customer, error) {
			return a.service.ListCustomers(r.Context(), r.URL.Query().Get("search"), listLimit(r))
		},
		create: a.service.CreateCustomer,
		get:    a.service.GetCustomer,
		update: a.service.UpdateCustomer,
		remove: a.service.DeleteCustomer,
	}.serve(w, r)
}
