package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/service"
	"shopmate/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.New()
	svc := service.New(repo, nil, time.Minute)
	auth := NewAuthManager("test-secret-key-test-secret-key!", time.Hour, repo)

	return New(svc, auth, "*")
}

type client struct {
	t     *testing.T
	api   *API
	token string
	csrf  string
}

func (c *client) do(method string, path string, payload any) *httptest.ResponseRecorder {
	c.t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			c.t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.csrf != "" {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}
	res := httptest.NewRecorder()
	c.api.Handler().ServeHTTP(res, req)
	return res
}

func (c *client) expect(method string, path string, payload any, status int, out any) {
	c.t.Helper()
	res := c.do(method, path, payload)
	if res.Code != status {
		c.t.Fatalf("%s %s: expected %d, got %d (body: %s)", method, path, status, res.Code, res.Body.String())
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

// signUp registers a user and returns a client holding its token and a CSRF token.
func signUp(t *testing.T, api *API, username string) *client {
	t.Helper()
	c := &client{t: t, api: api}
	c.expect(http.MethodPost, "/api/auth/register/", domain.RegisterRequest{Username: username, Password: "rahasia123"}, http.StatusCreated, nil)

	var login domain.LoginResponse
	c.expect(http.MethodPost, "/api/auth/login/", domain.LoginRequest{Username: username, Password: "rahasia123"}, http.StatusOK, &login)
	if strings.TrimSpace(login.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	c.token = login.AccessToken
	c.csrf = fetchCSRFToken(t, api)
	return c
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleHome(t *testing.T) {
	api := newTestAPI(t)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != homeText {
		t.Fatalf("unexpected home response %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", rec.Code)
	}
}

func TestMeReturnsCaller(t *testing.T) {
	api := newTestAPI(t)
	c := signUp(t, api, "dewi")

	var me domain.User
	c.expect(http.MethodGet, "/api/auth/me/", nil, http.StatusOK, &me)
	if me.Username != "dewi" || me.ID == "" {
		t.Fatalf("unexpected me payload: %+v", me)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)
	anon := &client{t: t, api: api}

	var body map[string]any
	anon.expect(http.MethodGet, "/api/products/", nil, http.StatusUnauthorized, &body)
	if body["reason"] != "unauthorized" {
		t.Fatalf("expected reason unauthorized, got %v", body["reason"])
	}

	anon.token = "not-a-jwt"
	anon.expect(http.MethodGet, "/api/sales/", nil, http.StatusUnauthorized, nil)
}

func TestSaleFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	owner := signUp(t, api, "pemilik")

	var shop domain.Shop
	owner.expect(http.MethodPost, "/api/shops/", map[string]any{"name": "Warung Bu Sri"}, http.StatusCreated, &shop)
	owner.expect(http.MethodPost, "/api/shops/", map[string]any{"name": "Second"}, http.StatusConflict, nil)

	var category domain.Category
	owner.expect(http.MethodPost, "/api/categories/", map[string]any{"name": "Minuman"}, http.StatusCreated, &category)

	var product domain.Product
	owner.expect(http.MethodPost, "/api/products/", map[string]any{
		"name":          "Es Teh",
		"category_id":   category.ID,
		"cost_price":    "5000",
		"selling_price": "8000",
		"quantity":      10,
	}, http.StatusCreated, &product)
	if product.Category == nil || product.Category.Name != "Minuman" {
		t.Fatalf("expected nested category on product, got %+v", product.Category)
	}

	var sale domain.Sale
	owner.expect(http.MethodPost, "/api/sales/", map[string]any{
		"customer":   map[string]any{"full_name": "Rina", "phone": "08123"},
		"sale_items": []map[string]any{{"product_id": product.ID, "quantity": 4}},
	}, http.StatusCreated, &sale)
	if !sale.TotalAmount.Equal(decimal.RequireFromString("32000")) || !sale.ProfitAmount.Equal(decimal.RequireFromString("12000")) {
		t.Fatalf("unexpected totals %s / %s", sale.TotalAmount, sale.ProfitAmount)
	}
	if sale.Customer == nil || sale.Customer.Phone != "08123" {
		t.Fatalf("expected nested customer, got %+v", sale.Customer)
	}

	var stockErr map[string]any
	owner.expect(http.MethodPost, "/api/sales/", map[string]any{
		"sale_items": []map[string]any{{"product_id": product.ID, "quantity": 7}},
	}, http.StatusConflict, &stockErr)
	if stockErr["reason"] != "insufficient_stock" || stockErr["product_id"] != product.ID {
		t.Fatalf("unexpected stock error body: %v", stockErr)
	}
	if stockErr["available"] != float64(6) || stockErr["requested"] != float64(7) {
		t.Fatalf("unexpected stock numbers: %v", stockErr)
	}

	var got domain.Product
	owner.expect(http.MethodGet, "/api/products/"+product.ID+"/", nil, http.StatusOK, &got)
	if got.Quantity != 6 {
		t.Fatalf("expected stock 6, got %d", got.Quantity)
	}

	var confirmed domain.Sale
	owner.expect(http.MethodPost, "/api/sales/"+sale.ID+"/confirm/", nil, http.StatusOK, &confirmed)
	if confirmed.Status != domain.SaleStatusComplete {
		t.Fatalf("expected complete status, got %s", confirmed.Status)
	}
	owner.expect(http.MethodPatch, "/api/sales/"+sale.ID+"/", map[string]any{}, http.StatusMethodNotAllowed, nil)

	var items []domain.SaleItem
	owner.expect(http.MethodGet, "/api/sale-items/?sale="+sale.ID, nil, http.StatusOK, &items)
	if len(items) != 1 || items[0].Quantity != 4 {
		t.Fatalf("unexpected sale items: %+v", items)
	}

	var invoice domain.Invoice
	owner.expect(http.MethodPost, "/api/invoices/", map[string]any{"sale": sale.ID}, http.StatusCreated, &invoice)
	owner.expect(http.MethodPost, "/api/invoices/", map[string]any{"sale": sale.ID}, http.StatusConflict, nil)
	owner.expect(http.MethodPatch, "/api/invoices/"+invoice.ID+"/", map[string]any{"printed": true}, http.StatusOK, &invoice)
	if !invoice.Printed || invoice.Sent {
		t.Fatalf("unexpected invoice flags: %+v", invoice)
	}

	owner.expect(http.MethodDelete, "/api/products/"+product.ID+"/", nil, http.StatusConflict, nil)

	owner.expect(http.MethodPost, "/api/expenses/", map[string]any{"title": "Gas", "amount": "2000"}, http.StatusCreated, nil)

	var summary domain.ReportSummary
	owner.expect(http.MethodGet, "/api/reports/summary/?timeframe=7days", nil, http.StatusOK, &summary)
	if summary.SaleCount != 1 || !summary.TotalRevenue.Equal(decimal.RequireFromString("32000")) {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !summary.TotalProfit.Equal(decimal.RequireFromString("10000")) {
		t.Fatalf("expected total profit 10000, got %s", summary.TotalProfit)
	}

	res := owner.do(http.MethodGet, "/api/reports/summary/?timeframe=7days&format=csv", nil)
	if res.Code != http.StatusOK || !strings.HasPrefix(res.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("unexpected csv response %d %q", res.Code, res.Header().Get("Content-Type"))
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), "summary_7days_") {
		t.Fatalf("expected attachment filename, got %q", res.Header().Get("Content-Disposition"))
	}
	owner.expect(http.MethodGet, "/api/reports/summary/?timeframe=decade", nil, http.StatusBadRequest, nil)
	owner.expect(http.MethodGet, "/api/reports/summary/?format=docx", nil, http.StatusBadRequest, nil)
}

func TestJoinFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	owner := signUp(t, api, "juragan")
	worker := signUp(t, api, "karyawan")

	var shop domain.Shop
	owner.expect(http.MethodPost, "/api/shops/", map[string]any{"name": "Toko Jaya"}, http.StatusCreated, &shop)
	var branch domain.Branch
	owner.expect(http.MethodPost, "/api/branches/", map[string]any{"branch_name": "Pusat"}, http.StatusCreated, &branch)

	var found []domain.Shop
	worker.expect(http.MethodGet, "/api/shop_search/?q=jaya", nil, http.StatusOK, &found)
	if len(found) != 1 || found[0].ID != shop.ID {
		t.Fatalf("expected search to find shop, got %+v", found)
	}
	var preview []domain.Branch
	worker.expect(http.MethodGet, "/api/shop-branches/?shop_id="+shop.ID, nil, http.StatusOK, &preview)
	if len(preview) != 1 {
		t.Fatalf("expected one branch preview, got %d", len(preview))
	}

	var membership domain.Membership
	worker.expect(http.MethodPost, "/api/join_shop/", map[string]any{"shop": shop.ID}, http.StatusCreated, &membership)
	worker.expect(http.MethodPost, "/api/join_shop/", map[string]any{"shop": shop.ID}, http.StatusConflict, nil)

	var check domain.CheckMembershipResponse
	worker.expect(http.MethodGet, "/api/check-membership/", nil, http.StatusOK, &check)
	if check.CanJoinShop {
		t.Fatalf("pending worker should not be able to join")
	}

	var pending []domain.Membership
	owner.expect(http.MethodGet, "/api/join-requests/", nil, http.StatusOK, &pending)
	if len(pending) != 1 || pending[0].Username != "karyawan" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	handle := "/api/join-requests/" + membership.ID + "/handle/"
	worker.expect(http.MethodPost, handle, map[string]any{"action": "approve", "branch_id": branch.ID}, http.StatusForbidden, nil)
	owner.expect(http.MethodPost, handle, map[string]any{"action": "approve"}, http.StatusBadRequest, nil)
	owner.expect(http.MethodPost, handle, map[string]any{"action": "approve", "branch_id": branch.ID}, http.StatusOK, &membership)
	if membership.Status != domain.MembershipApproved {
		t.Fatalf("expected approved, got %s", membership.Status)
	}

	var mine domain.MyShopResponse
	worker.expect(http.MethodGet, "/api/my-shop/", nil, http.StatusOK, &mine)
	if mine.Shop == nil || mine.Shop.ID != shop.ID || mine.BranchID != branch.ID || mine.Role != domain.RoleEmployee {
		t.Fatalf("unexpected my-shop for worker: %+v", mine)
	}
	worker.expect(http.MethodPost, "/api/branches/", map[string]any{"branch_name": "Liar"}, http.StatusForbidden, nil)

	var employees []domain.Membership
	owner.expect(http.MethodGet, "/api/employees/", nil, http.StatusOK, &employees)
	if len(employees) != 1 {
		t.Fatalf("expected one employee, got %d", len(employees))
	}
	owner.expect(http.MethodDelete, "/api/employees/"+membership.ID+"/", nil, http.StatusNoContent, nil)
	worker.expect(http.MethodGet, "/api/my-shop/", nil, http.StatusOK, &mine)
	if mine.Shop != nil {
		t.Fatalf("removed worker should have no shop, got %+v", mine.Shop)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	api := newTestAPI(t)
	c := signUp(t, api, "teliti")

	var body map[string]any
	c.expect(http.MethodPost, "/api/shops/", map[string]any{"name": "X", "owner": "someone-else"}, http.StatusBadRequest, &body)
	if body["reason"] != "validation_error" {
		t.Fatalf("expected validation_error, got %v", body["reason"])
	}
}
