package httpapi

import (
	"net/http"

	"shopmate/backend/internal/domain"
)

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	id, action := resourcePath(r, "/api/sales/")
	if id != "" && action == "confirm" {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		sale, err := a.service.ConfirmSale(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sale)
		return
	}

	resource[domain.SaleCreateRequest, domain.Sale]{
		prefix: "/api/sales/",
		list: func(r *http.Request) ([]domain.Sale, error) {
			return a.service.ListSales(r.Context(), listLimit(r))
		},
		create: a.service.CreateSale,
		get:    a.service.GetSale,
		remove: a.service.DeleteSale,
	}.serve(w, r)
}

func (a *API) handleSaleItems(w http.ResponseWriter, r *http.Request) {
	resource[domain.SaleItemCreateRequest, domain.SaleItem]{
		prefix: "/api/sale-items/",
		list: func(r *http.Request) ([]domain.SaleItem, error) {
			return a.service.ListSaleItems(r.Context(), r.URL.Query().Get("sale"))
		},
		create: a.service.AddSaleItem,
		get:    a.service.GetSaleItem,
		remove: a.service.DeleteSaleItem,
	}.serve(w, r)
}

func (a *API) handleInvoices(w http.ResponseWriter, r *http.Request) {
	resource[domain.InvoiceRequest, domain.Invoice]{
		prefix: "/api/invoices/",
		list: func(r *http.Request) ([]domain.Invoice, error) {
			return a.service.ListInvoices(r.Context())
		},
		create: a.service.CreateInvoice,
		get:    a.service.GetInvoice,
		update: a.service.UpdateInvoice,
		remove: a.service.DeleteInvoice,
	}.serve(w, r)
}

func (a *API) handleExpenses(w http.ResponseWriter, r *http.Request) {
	resource[domain.ExpenseRequest, domain.Expense]{
		prefix: "/api/expenses/",
		list: func(r *http.Request) ([]domain.Expense, error) {
			return a.service.ListExpenses(r.Context(), listLimit(r))
		},
		create: a.service.CreateExpense,
		get:    a.service.GetExpense,
		update: a.service.UpdateExpense,
		remove: a.service.DeleteExpense,
	}.serve(w, r)
}
