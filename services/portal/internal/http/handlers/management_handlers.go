package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"customsportal/services/portal/internal/access"
	"customsportal/services/portal/internal/audit"
	"customsportal/services/portal/internal/clients"
	"customsportal/services/portal/internal/livefeed"
	"customsportal/services/portal/internal/models"
	"customsportal/services/portal/internal/session"
	"customsportal/services/portal/internal/views"
)

const (
	managementPath = "/management"
	activityLimit  = 100
)

type managementTab struct {
	Key     string
	Label   string
	Count   int
	Counted bool
}

type managementData struct {
	Overview         *models.ManagementOverview
	IngestErrors     []models.IngestError
	Activity         []audit.Event
	Bills            []models.OverviewBill
	Pager            views.Pager
	Tab              string
	Tabs             []managementTab
	RefreshSeconds   int
	GeneratedAt      string
	CanCheckPayments bool
}

// feedSnapshot is the payload pushed to live dashboard viewers.
type feedSnapshot struct {
	Metrics models.OverviewMetrics `json:"metrics"`
	Counts  map[string]int         `json:"counts"`
}

// ManagementHandlers serve the management dashboard and its live feed.
type ManagementHandlers struct {
	base
	stats *clients.StatsClient
	admin *clients.AdminClient
	hub   *livefeed.Hub
}

// NewManagementHandlers returns handler struct.
func NewManagementHandlers(stats *clients.StatsClient, admin *clients.AdminClient, hub *livefeed.Hub, deps Deps) *ManagementHandlers {
	return &ManagementHandlers{base: base{deps}, stats: stats, admin: admin, hub: hub}
}

func (h *ManagementHandlers) load(ctx context.Context, creds clients.Credentials) (*models.ManagementOverview, []models.IngestError, error) {
	var (
		overview *models.ManagementOverview
		ingest   []models.IngestError
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		overview, err = h.stats.ManagementOverview(ctx, creds)
		return err
	})
	g.Go(func() error {
		var err error
		ingest, err = h.admin.IngestErrors(ctx, creds)
		return err
	})
	return overview, ingest, g.Wait()
}

func counts(overview *models.ManagementOverview, ingest []models.IngestError) map[string]int {
	out := map[string]int{"ingest": len(ingest)}
	if overview != nil {
		out["ocr"] = len(overview.Flags.OCRMissing)
		out["receipts"] = len(overview.Flags.UnmatchedReceipts)
		out["bills"] = len(overview.Bills)
	}
	return out
}

// Dashboard handles GET /management.
func (h *ManagementHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, pageSize := views.ParsePage(q, views.DefaultPageSize)
	s := h.current(r)

	overview, ingest, err := h.load(r.Context(), s)
	if err != nil && h.backendError(w, r, err, "Failed to load") {
		return
	}

	data := managementData{
		Overview:         overview,
		IngestErrors:     ingest,
		Tab:              q.Get("tab"),
		RefreshSeconds:   int(h.hub.Interval() / time.Second),
		GeneratedAt:      time.Now().UTC().Format(time.RFC3339),
		CanCheckPayments: access.Allowed(s.User, access.CheckPayments),
	}
	n := counts(overview, ingest)
	data.Tabs = []managementTab{
		{Key: "overview", Label: "Dashboard"},
		{Key: "ocr", Label: "OCR Issues", Count: n["ocr"], Counted: true},
		{Key: "ingest", Label: "Email Ingest", Count: n["ingest"], Counted: true},
		{Key: "receipts", Label: "Unmatched Receipts", Count: n["receipts"], Counted: true},
		{Key: "bills", Label: "All B/L Records", Count: n["bills"], Counted: true},
	}
	if h.Audit.Enabled() {
		data.Tabs = append(data.Tabs, managementTab{Key: "activity", Label: "Activity"})
	}
	if !hasTab(data.Tabs, data.Tab) {
		data.Tab = "overview"
	}

	var bills []models.OverviewBill
	if overview != nil {
		bills = overview.Bills
	}
	data.Bills, data.Pager = views.Paginate(bills, page, pageSize, views.Filters(q))

	if data.Tab == "activity" {
		events, err := h.Audit.Recent(r.Context(), activityLimit)
		if err != nil {
			s.AddFlash(session.FlashError, "Failed to load activity")
		}
		data.Activity = events
	}
	h.render(w, r, http.StatusOK, "management", "Management Dashboard", data)
}

func hasTab(tabs []managementTab, key string) bool {
	for _, t := range tabs {
		if t.Key == key {
			return true
		}
	}
	return false
}

// Feed handles GET /ws/management: periodic metric snapshots over a
// WebSocket. A rejected backend session ends the feed.
func (h *ManagementHandlers) Feed(w http.ResponseWriter, r *http.Request) {
	creds := newFeedCredentials(h.current(r))
	h.hub.Serve(w, r, func(ctx context.Context) (interface{}, error) {
		overview, ingest, err := h.load(ctx, creds)
		if errors.Is(err, clients.ErrUnauthorized) {
			return nil, livefeed.Fatal(errors.New(sessionExpired))
		}
		if err != nil {
			return nil, errors.New(clients.Message(err, "Failed to load"))
		}
		return feedSnapshot{Metrics: overview.Metrics, Counts: counts(overview, ingest)}, nil
	})
}

// feedCredentials is a private copy of the session credentials for a feed
// that outlives its upgrade request.
type feedCredentials struct {
	mu      sync.Mutex
	cookies []*http.Cookie
	csrf    string
}

func newFeedCredentials(s *session.Session) *feedCredentials {
	return &feedCredentials{cookies: s.Cookies(), csrf: s.CSRFToken()}
}

func (c *feedCredentials) Cookies() []*http.Cookie {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*http.Cookie(nil), c.cookies...)
}

func (c *feedCredentials) SetCookies(cookies []*http.Cookie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, nc := range cookies {
		replaced := false
		for i, oc := range c.cookies {
			if oc.Name == nc.Name {
				c.cookies[i] = &http.Cookie{Name: nc.Name, Value: nc.Value}
				replaced = true
				break
			}
		}
		if !replaced {
			c.cookies = append(c.cookies, &http.Cookie{Name: nc.Name, Value: nc.Value})
		}
	}
}

func (c *feedCredentials) CSRFToken() string {
	return c.csrf
}
