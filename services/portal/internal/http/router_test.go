package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"customsportal/services/portal/internal/audit"
	"customsportal/services/portal/internal/clients"
	"customsportal/services/portal/internal/http/handlers"
	"customsportal/services/portal/internal/http/middleware"
	"customsportal/services/portal/internal/livefeed"
	"customsportal/services/portal/internal/models"
	"customsportal/services/portal/internal/session"
	"customsportal/services/portal/internal/views"
)

var formTokenPattern = regexp.MustCompile(`name="_form_token" value="([^"]+)"`)

type fakeBackend struct {
	mu       sync.Mutex
	role     string
	expired  bool
	searches []models.BillSearch
	uploads  int
	awaiting string
	found    string
	bill     string
	overview string
	updates  []models.BillUpdate
	regs     []models.Registration
	calls    []string
}

func (b *fakeBackend) called(r *http.Request) {
	b.mu.Lock()
	b.calls = append(b.calls, r.Method+" "+r.URL.Path)
	b.mu.Unlock()
}

func (b *fakeBackend) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) setExpired(v bool) {
	b.mu.Lock()
	b.expired = v
	b.mu.Unlock()
}

func (b *fakeBackend) isExpired() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expired
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "access_token_cookie", Value: "abc", Path: "/"})
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("POST /api/logout", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("POST /api/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("GET /api/me", func(w http.ResponseWriter, r *http.Request) {
		if b.isExpired() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b.mu.Lock()
		role := b.role
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(models.User{Username: "amy", Role: role})
	})
	mux.HandleFunc("GET /api/csrf-token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"csrf_token":"csrf-1"}`))
	})
	mux.HandleFunc("GET /api/bills", func(w http.ResponseWriter, r *http.Request) {
		if b.isExpired() {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"Token has expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"bills":[],"total":0}`))
	})
	mux.HandleFunc("GET /api/bills/awaiting_bank_in", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		body := b.awaiting
		b.mu.Unlock()
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("POST /api/search_bills", func(w http.ResponseWriter, r *http.Request) {
		var in models.BillSearch
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.searches = append(b.searches, in)
		found := b.found
		b.mu.Unlock()
		if found == "" {
			found = `[{"id":7,"bl_number":"BL-SEARCH","status":"Pending"}]`
		}
		_, _ = w.Write([]byte(found))
	})
	mux.HandleFunc("POST /api/upload", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.uploads++
		b.mu.Unlock()
		_, _ = w.Write([]byte(`{"message":"Uploaded 1 bill"}`))
	})
	mux.HandleFunc("GET /api/bill/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		bill := b.bill
		b.mu.Unlock()
		if bill == "" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Bill not found"}`))
			return
		}
		_, _ = w.Write([]byte(bill))
	})
	mux.HandleFunc("PUT /api/bill/{id}", func(w http.ResponseWriter, r *http.Request) {
		var in models.BillUpdate
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.updates = append(b.updates, in)
		b.mu.Unlock()
		_, _ = w.Write([]byte(`{"message":"Bill updated"}`))
	})
	mux.HandleFunc("POST /api/generate_payment_link/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.called(r)
		_, _ = fmt.Fprintf(w, `{"payment_link":"https://pay.example/link-%s"}`, r.PathValue("id"))
	})
	for _, path := range []string{
		"POST /api/bill/{id}/complete",
		"POST /api/bill/{id}/settle_reserve",
		"POST /api/approve_user/{id}",
		"POST /admin/ingest-emails",
	} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			b.called(r)
			_, _ = w.Write([]byte(`{"message":"ok"}`))
		})
	}
	mux.HandleFunc("POST /api/register", func(w http.ResponseWriter, r *http.Request) {
		var in models.Registration
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.regs = append(b.regs, in)
		b.mu.Unlock()
		_, _ = w.Write([]byte(`{"message":"User ` + in.Username + ` registered"}`))
	})
	mux.HandleFunc("GET /api/unapproved_users", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":3,"username":"newbie","role":"customer","customer_name":"Newbie Trading"}]`))
	})
	mux.HandleFunc("POST /admin/import-bank-statement", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("file"); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"No file"}`))
			return
		}
		b.called(r)
		_, _ = w.Write([]byte(`{"message":"Statement processed","results":[
			{"bl_number":"BL-100","status":"Matched and marked Paid","description":"ACME transfer","amount":"150.00"},
			{"bl_number":"","status":"Unmatched","description":"Unknown transfer","amount":42,"reason":"No bill with this amount"}]}`))
	})
	mux.HandleFunc("GET /api/management/overview", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		overview := b.overview
		b.mu.Unlock()
		if overview == "" {
			overview = `{"bills":[],"flags":{"ocr_missing":[],"unmatched_receipts":[]},"metrics":{}}`
		}
		_, _ = w.Write([]byte(overview))
	})
	mux.HandleFunc("GET /admin/email-ingest-errors", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"filename":"receipt.eml","reason":"No CTN number"}]`))
	})
	return mux
}

// memoryAudit keeps audit events in memory, newest last.
type memoryAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *memoryAudit) Insert(_ context.Context, e audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memoryAudit) Recent(_ context.Context, limit int) ([]audit.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.Event, 0, len(m.events))
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

type testPortal struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
	token  string
}

func newTestPortal(t *testing.T, backend *fakeBackend) *testPortal {
	t.Helper()
	return newAuditedPortal(t, backend, nil)
}

// newAuditedPortal persists audit events to events when it is non-nil.
func newAuditedPortal(t *testing.T, backend *fakeBackend, events audit.Store) *testPortal {
	t.Helper()
	api := httptest.NewServer(backend.handler())
	t.Cleanup(api.Close)

	logger := zap.NewNop()
	base := clients.NewBaseClient(api.URL, api.Client(), nil)
	authClient := clients.NewAuthClient(base)
	billsClient := clients.NewBillsClient(base)
	adminClient := clients.NewAdminClient(base)
	statsClient := clients.NewStatsClient(base)

	codec, err := session.NewCookieCodec("router-secret", time.Hour)
	require.NoError(t, err)
	sessions := session.NewManager(session.NewMemoryStore(time.Hour), codec, authClient, session.Options{TTL: time.Hour}, logger)
	renderer, err := views.NewRenderer(logger)
	require.NoError(t, err)
	hub := livefeed.NewHub(livefeed.Options{Interval: time.Second}, logger)
	t.Cleanup(hub.Shutdown)

	deps := handlers.Deps{
		Sessions: sessions,
		Views:    renderer,
		Audit:    audit.NewRecorder(events, logger),
		Logger:   logger,
	}
	registry := prometheus.NewRegistry()
	router := NewRouter(RouterDeps{
		AuthHandlers:       handlers.NewAuthHandlers(authClient, deps),
		DashboardHandlers:  handlers.NewDashboardHandlers(deps),
		BillHandlers:       handlers.NewBillHandlers(billsClient, handlers.PaymentURLs{Success: "https://example.com/ok", Cancel: "https://example.com/no"}, deps),
		AccountingHandlers: handlers.NewAccountingHandlers(billsClient, adminClient, deps),
		UserHandlers:       handlers.NewUserHandlers(authClient, deps),
		BankHandlers:       handlers.NewBankHandlers(adminClient, deps),
		StatsHandlers:      handlers.NewStatsHandlers(statsClient, deps),
		ManagementHandlers: handlers.NewManagementHandlers(statsClient, adminClient, hub, deps),
		HealthHandler:      handlers.NewHealthHandler(),
		Sessions:           sessions,
		Metrics:            middleware.NewMetrics(registry),
		Gatherer:           registry,
		MaxUploadBytes:     1 << 20,
		Logger:             logger,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testPortal{
		t:   t,
		srv: srv,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (p *testPortal) do(req *http.Request) (*http.Response, string) {
	p.t.Helper()
	resp, err := p.client.Do(req)
	require.NoError(p.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(p.t, err)
	if m := formTokenPattern.FindStringSubmatch(string(body)); m != nil {
		p.token = m[1]
	}
	return resp, string(body)
}

func (p *testPortal) get(path string) (*http.Response, string) {
	p.t.Helper()
	req, err := http.NewRequest(http.MethodGet, p.srv.URL+path, nil)
	require.NoError(p.t, err)
	return p.do(req)
}

func (p *testPortal) post(path string, form url.Values) (*http.Response, string) {
	p.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if form.Get(middleware.FormTokenField) == "" && p.token != "" {
		form.Set(middleware.FormTokenField, p.token)
	}
	req, err := http.NewRequest(http.MethodPost, p.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(p.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return p.do(req)
}

func (p *testPortal) login() {
	p.t.Helper()
	p.get("/login")
	resp, _ := p.post("/login", url.Values{"username": {"amy"}, "password": {"pw"}})
	require.Equal(p.t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(p.t, "/dashboard", resp.Header.Get("Location"))
	// The form token rotates on login.
	resp, _ = p.get("/dashboard")
	require.Equal(p.t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	p := newTestPortal(t, &fakeBackend{role: models.RoleStaff})
	resp, body := p.get("/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestAnonymousIsSentToLogin(t *testing.T) {
	p := newTestPortal(t, &fakeBackend{role: models.RoleStaff, expired: true})
	resp, _ := p.get("/review")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	_, body := p.get("/login")
	assert.Contains(t, body, "Please log in to continue.")
}

func TestPostWithoutFormTokenIsRejected(t *testing.T) {
	p := newTestPortal(t, &fakeBackend{role: models.RoleStaff})
	p.get("/login")
	resp, _ := p.post("/logout", url.Values{middleware.FormTokenField: {"forged"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func (p *testPortal) sessionCookie() string {
	p.t.Helper()
	u, err := url.Parse(p.srv.URL)
	require.NoError(p.t, err)
	for _, c := range p.client.Jar.Cookies(u) {
		if c.Name == session.CookieName {
			return c.Value
		}
	}
	return ""
}

func TestLoginAndLogout(t *testing.T) {
	p := newTestPortal(t, &fakeBackend{role: models.RoleStaff})
	p.get("/login")
	anonymous := p.sessionCookie()
	require.NotEmpty(t, anonymous)
	p.login()
	assert.NotEqual(t, anonymous, p.sessionCookie())

	_, body := p.get("/dashboard")
	assert.Contains(t, body, "Review Bills")

	resp, _ := p.post("/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestExpiredBackendSessionRedirectsToLogin(t *testing.T) {
	backend := &fakeBackend{role: models.RoleStaff}
	p := newTestPortal(t, backend)
	p.login()

	backend.setExpired(true)
	resp, _ := p.get("/review")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	_, body := p.get("/login")
	assert.Contains(t, body, "Session expired. Please log in again.")
}

func TestRoleGating(t *testing.T) {
	p := newTestPortal(t, &fakeBackend{role: models.RoleCustomer})
	p.login()

	for _, path := range []string{"/review", "/bank-import", "/management", "/accounting-review"} {
		resp, _ := p.get(path)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/dashboard", resp.Header.Get("Location"), path)
	}

	resp, _ := p.get("/upload")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCustomerSearchIsScopedToOwnBills(t *testing.T) {
	backend := &fakeBackend{role: models.RoleCustomer}
	p := newTestPortal(t, backend)
	p.login()

	resp, body := p.get("/search?bl_number=OTHER")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "BL-SEARCH")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.searches, 1)
	assert.Equal(t, models.BillSearch{Username: "amy"}, backend.searches[0])
}

func TestStaffSearchWaitsForCriteria(t *testing.T) {
	backend := &fakeBackend{role: models.RoleStaff}
	p := newTestPortal(t, backend)
	p.login()

	p.get("/search")
	p.get("/search?customer_name=ACME")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.searches, 1)
	assert.Equal(t, "ACME", backend.searches[0].CustomerName)
	assert.Empty(t, backend.searches[0].Username)
}

func TestAccountingFiltersAndPaginates(t *testing.T) {
	rows := make([]string, 0, 26)
	for i := 1; i <= 25; i++ {
		rows = append(rows, fmt.Sprintf(`{"id":%d,"bl_number":"BL-%03d","status":"Awaiting Bank In"}`, i, i))
	}
	rows = append(rows, `{"id":99,"bl_number":"PENDING-1","status":"Pending"}`)
	backend := &fakeBackend{
		role:     models.RoleStaff,
		awaiting: `{"bills":[` + strings.Join(rows, ",") + `],"total":26}`,
	}
	p := newTestPortal(t, backend)
	p.login()

	resp, body := p.get("/accounting-review?bl_number=bl-01&page=2&page_size=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, bl := range []string{"BL-015", "BL-019"} {
		assert.Contains(t, body, bl)
	}
	for _, bl := range []string{"BL-014", "BL-020", "PENDING-1"} {
		assert.NotContains(t, body, bl)
	}

	_, body = p.get("/accounting-review")
	assert.Contains(t, body, "BL-001")
	assert.NotContains(t, body, "PENDING-1")
}

func (p *testPortal) postMultipart(path string, fields map[string]string, files map[string]string) (*http.Response, string) {
	p.t.Helper()
	return p.postFiles(path, fields, files, []byte("%PDF-1.4"))
}

// postFiles posts every file in files (field to filename) with content data.
func (p *testPortal) postFiles(path string, fields map[string]string, files map[string]string, data []byte) (*http.Response, string) {
	p.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(p.t, mw.WriteField(middleware.FormTokenField, p.token))
	for k, v := range fields {
		require.NoError(p.t, mw.WriteField(k, v))
	}
	for field, name := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(p.t, err)
		_, err = fw.Write(data)
		require.NoError(p.t, err)
	}
	require.NoError(p.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, p.srv.URL+path, &buf)
	require.NoError(p.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return p.do(req)
}

func TestUploadAsksBeforeSkippingDocuments(t *testing.T) {
	backend := &fakeBackend{role: models.RoleStaff}
	p := newTestPortal(t, backend)
	p.login()
	p.get("/upload")

	fields := map[string]string{"name": "ACME", "email": "ops@acme.test", "phone": "123"}
	resp, body := p.postMultipart("/upload", fields, map[string]string{"bill_pdf": "bl.pdf"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Invoice and/or Packing List not uploaded")
	assert.Contains(t, body, "Packing List")

	backend.mu.Lock()
	assert.Equal(t, 0, backend.uploads)
	backend.mu.Unlock()

	fields["confirm_missing"] = "1"
	resp, _ = p.postMultipart("/upload", fields, map[string]string{"bill_pdf": "bl.pdf"})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/upload", resp.Header.Get("Location"))

	_, body = p.get("/upload")
	assert.Contains(t, body, "Uploaded 1 bill")

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 1, backend.uploads)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	backend := &fakeBackend{role: models.RoleStaff}
	p := newTestPortal(t, backend)
	p.login()
	p.get("/upload")

	resp, body := p.postMultipart("/upload", map[string]string{"name": "ACME"}, map[string]string{"bill_pdf": "bl.docx"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Only PDF files are allowed")
}

func TestUnknownPathRendersNotFound(t *testing.T) {
	p := newTestPortal(t, &fakeBackend{role: models.RoleStaff})
	resp, _ := p.get("/no-such-page")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

const reviewBill = `{"id":5,"bl_number":"BL-5","customer_email":"ops@acme.test","shipper":"ACME","consignee":"Globex","status":"Pending"}`

func TestPaymentLinkIsStoredOnTheBill(t *testing.T) {
	backend := &fakeBackend{role: models.RoleStaff, bill: reviewBill}
	p := newTestPortal(t, backend)
	p.login()
	p.get("/review/5")

	resp, body := p.post("/review/5/payment-link", url.Values{"unique_number": {""}, "ctn_fee": {"10"}, "service_fee": {"2.5"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Please enter a CTN number.")
	assert.Empty(t, backend.callLog())

	resp, _ = p.post("/review/5/payment-link", url.Values{"unique_number": {"CTN-77"}, "ctn_fee": {"10"}, "service_fee": {"2.5"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/review/5", resp.Header.Get("Location"))
	assert.Equal(t, []string{"POST /api/generate_payment_link/5"}, backend.callLog())

	backend.mu.Lock()
	require.Len(t, backend.updates, 1)
	update := backend.updates[0]
	backend.mu.Unlock()
	assert.Equal(t, "https://pay.example/link-5", update.PaymentLink)
	assert.Equal(t, "CTN-77", update.UniqueNumber)
	assert.Equal(t, "ACME", update.Shipper)
	require.NotNil(t, update.CTNFee)
	assert.Equal(t, "10", update.CTNFee.String())
	require.NotNil(t, update.ServiceFee)
	assert.Equal(t, "2.5", update.ServiceFee.String())

	_, body = p.get("/review/5")
	assert.Contains(t, body, "Payment link generated successfully.")
}

func TestPaymentLinkKeptInFormWhenBillIsIncomplete(t *testing.T) {
	backend := &fakeBackend{
		role: models.RoleStaff,
		bill: `{"id":5,"bl_number":"BL-5","customer_email":"ops@acme.test","consignee":"Globex","status":"Pending"}`,
	}
	p := newTestPortal(t, backend)
	p.login()
	p.get("/review/5")

	resp, body := p.post("/review/5/payment-link", url.Values{"unique_number": {"CTN-77"}, "ctn_fee": {"10"}, "service_fee": {"2.5"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Payment link generated. Shipper is required. Save the bill to keep the link.")
	assert.Contains(t, body, `name="payment_link" value="https://pay.example/link-5"`)
	assert.Contains(t, body, `value="CTN-77"`)
	assert.Equal(t, []string{"POST /api/generate_payment_link/5"}, backend.callLog())

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Empty(t, backend.updates)
}

func TestReviewSaveRerendersInvalidInput(t *testing.T) {
	backend := &fakeBackend{role: models.RoleStaff, bill: reviewBill}
	p := newTestPortal(t, backend)
	p.login()
	p.get("/review/5")

	resp, body := p.post("/review/5", url.Values{
		"shipper":     {" "},
		"consignee":   {"Globex Re-entered"},
		"ctn_fee":     {"10"},
		"service_fee": {"1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Shipper is required.")
	assert.Contains(t, body, `value="Globex Re-entered"`)

	resp, body = p.post("/review/5", url.Values{
		"shipper":     {"ACME"},
		"consignee":   {"Globex"},
		"ctn_fee":     {"ten"},
		"service_fee": {"1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "CTN Fee must be a valid number.")
	assert.Contains(t, body, `value="ten"`)

	backend.mu.Lock()
	assert.Empty(t, backend.updates)
	backend.mu.Unlock()

	resp, _ = p.post("/review/5", url.Values{
		"shipper":     {"ACME"},
		"consignee":   {"Globex"},
		"ctn_fee":     {"10"},
		"service_fee": {"1"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/review/5", resp.Header.Get("Location"))
	_, body = p.get("/review/5")
	assert.Contains(t, body, "Bill updated successfully!")
}

func registration(role string) url.Values {
	return url.Values{
		"username":       {"newbie"},
		"password":       {"secret"},
		"role":           {role},
		"customer_name":  {"Newbie Trading"},
		"customer_email": {"ops@newbie.test"},
		"customer_phone": {"555"},
	}
}

func TestOnlyAdminsRegisterAdmins(t *testing.T) {
	backend := &fakeBackend{role: models.RoleStaff}
	p := newTestPortal(t, backend)
	p.login()

	_, body := p.get("/register")
	assert.NotContains(t, body, `<option value="admin"`)

	resp, body := p.post("/register", registration(models.RoleAdmin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Invalid role")
	assert.NotContains(t, body, "secret")

	resp, _ = p.post("/register", registration(models.RoleCustomer))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/register", resp.Header.Get("Location"))
	_, body = p.get("/register")
	assert.Contains(t, body, "User newbie registered")

	admin := &fakeBackend{role: models.RoleAdmin}
	pa := newTestPortal(t, admin)
	pa.login()
	pa.get("/register")
	resp, _ = pa.post("/register", registration(models.RoleAdmin))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	backend.mu.Lock()
	require.Len(t, backend.regs, 1)
	assert.Equal(t, models.RoleCustomer, backend.regs[0].Role)
	backend.mu.Unlock()
	admin.mu.Lock()
	defer admin.mu.Unlock()
	require.Len(t, admin.regs, 1)
	assert.Equal(t, models.RoleAdmin, admin.regs[0].Role)
}

func TestBankImportSplitsResults(t *testing.T) {
	backend := &fakeBackend{role: models.RoleAdmin}
	p := newTestPortal(t, backend)
	p.login()
	p.get("/bank-import")

	statement := "Date,Description,Amount\n2024-01-02,ACME transfer,150.00\n\n2024-01-03,Unknown transfer,42\n2024-01-04,Bank fee,1\n"
	resp, body := p.postFiles("/bank-import", nil, map[string]string{"file": "january.csv"}, []byte(statement))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Statement processed")
	assert.Contains(t, body, "january.csv: 3 entries · 1 matched · 1 unmatched")
	assert.Contains(t, body, "BL-100")
	assert.Contains(t, body, "No bill with this amount")
	assert.Equal(t, []string{"POST /admin/import-bank-statement"}, backend.callLog())

	resp, body = p.post("/bank-import", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Please select a CSV file.")
}

func TestManagementTabs(t *testing.T) {
	backend := &fakeBackend{
		role:     models.RoleAdmin,
		overview: `{"bills":[],"flags":{"ocr_missing":[{"id":8,"bl_number":"BL-OCR","missing":["shipper","consignee"]}],"unmatched_receipts":[]},"metrics":{"total_bills":12}}`,
	}
	p := newTestPortal(t, backend)
	p.login()

	resp, body := p.get("/management")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `data-metric="total_bills">12<`)
	assert.Contains(t, body, `data-count="ocr">1<`)
	assert.Contains(t, body, `data-count="ingest">1<`)
	assert.NotContains(t, body, "?tab=activity")

	_, body = p.get("/management?tab=ocr")
	assert.Contains(t, body, "BL-OCR")
	assert.Contains(t, body, "shipper, consignee")

	_, body = p.get("/management?tab=ingest")
	assert.Contains(t, body, "receipt.eml")

	// Unknown tabs fall back to the overview.
	_, body = p.get("/management?tab=activity")
	assert.Contains(t, body, `data-metric="total_bills"`)
}

func TestManagementActivityTab(t *testing.T) {
	backend := &fakeBackend{role: models.RoleAdmin}
	events := &memoryAudit{}
	p := newAuditedPortal(t, backend, events)
	p.login()
	p.get("/management")

	resp, _ := p.post("/management/check-payments", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/management", resp.Header.Get("Location"))

	resp, body := p.get("/management?tab=activity")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "?tab=activity")
	assert.Contains(t, body, "Manual payment check complete.")
	assert.Contains(t, body, "<td>amy</td><td>admin</td><td>check_payments</td>")

	events.mu.Lock()
	defer events.mu.Unlock()
	actions := make([]string, 0, len(events.events))
	for _, e := range events.events {
		actions = append(actions, e.Action)
		assert.Equal(t, audit.OutcomeOK, e.Outcome, e.Action)
	}
	assert.Equal(t, []string{"login", "check_payments"}, actions)
}

func TestEditDeletePagesByTen(t *testing.T) {
	rows := make([]string, 0, 25)
	for i := 1; i <= 25; i++ {
		rows = append(rows, fmt.Sprintf(`{"id":%d,"bl_number":"EDB-%03d","status":"Pending"}`, i, i))
	}
	backend := &fakeBackend{role: models.RoleStaff, found: "[" + strings.Join(rows, ",") + "]"}
	p := newTestPortal(t, backend)
	p.login()

	resp, body := p.get("/edit-delete-bills?page=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, bl := range []string{"EDB-011", "EDB-020"} {
		assert.Contains(t, body, bl)
	}
	for _, bl := range []string{"EDB-010", "EDB-021"} {
		assert.NotContains(t, body, bl)
	}

	_, body = p.get("/edit-delete-bills?page=3")
	assert.Contains(t, body, "EDB-025")
	assert.NotContains(t, body, "EDB-020")
}

func TestUserApproval(t *testing.T) {
	backend := &fakeBackend{role: models.RoleAdmin}
	p := newTestPortal(t, backend)
	p.login()

	resp, body := p.get("/user-approval")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "newbie")
	assert.Contains(t, body, `action="/user-approval/3/approve"`)

	resp, _ = p.post("/user-approval/3/approve", url.Values{"username": {"newbie"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/user-approval", resp.Header.Get("Location"))
	assert.Equal(t, []string{"POST /api/approve_user/3"}, backend.callLog())

	_, body = p.get("/user-approval")
	assert.Contains(t, body, "User approved successfully")
}

func TestAccountingActionsRedirectBack(t *testing.T) {
	backend := &fakeBackend{role: models.RoleStaff, awaiting: `{"bills":[],"total":0}`}
	p := newTestPortal(t, backend)
	p.login()

	resp, _ := p.post("/accounting-review/4/complete", url.Values{"return": {"/accounting-review?page=2"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/accounting-review?page=2", resp.Header.Get("Location"))
	_, body := p.get("/accounting-review?page=2")
	assert.Contains(t, body, "Bill marked as completed.")

	resp, _ = p.post("/accounting-review/4/settle-reserve", url.Values{"return": {"https://evil.test/accounting-review"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/accounting-review", resp.Header.Get("Location"))
	_, body = p.get("/accounting-review")
	assert.Contains(t, body, "Reserve marked as settled")

	resp, _ = p.post("/accounting-review/check-payments", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/accounting-review", resp.Header.Get("Location"))

	assert.Equal(t, []string{
		"POST /api/bill/4/complete",
		"POST /api/bill/4/settle_reserve",
		"POST /admin/ingest-emails",
	}, backend.callLog())
}

func TestAdminCannotCompleteBills(t *testing.T) {
	backend := &fakeBackend{role: models.RoleAdmin, awaiting: `{"bills":[],"total":0}`}
	p := newTestPortal(t, backend)
	p.login()

	resp, _ := p.post("/accounting-review/4/complete", url.Values{"return": {"/accounting-review"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/accounting-review", resp.Header.Get("Location"))
	_, body := p.get("/accounting-review")
	assert.Contains(t, body, "You do not have access to that action.")
	assert.Empty(t, backend.callLog())
}
