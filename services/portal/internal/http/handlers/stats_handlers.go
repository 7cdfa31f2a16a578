package handlers

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"customsportal/services/portal/internal/clients"
	"customsportal/services/portal/internal/models"
	"customsportal/services/portal/internal/views"
)

type staffStatsData struct {
	Summary     *models.StatsSummary
	Outstanding []models.OutstandingBill
	Pager       views.Pager
}

// StatsHandlers serve the staff statistics screen.
type StatsHandlers struct {
	base
	client *clients.StatsClient
}

// NewStatsHandlers returns handler struct.
func NewStatsHandlers(client *clients.StatsClient, deps Deps) *StatsHandlers {
	return &StatsHandlers{base: base{deps}, client: client}
}

// StaffStats handles GET /staff-stats.
func (h *StatsHandlers) StaffStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, pageSize := views.ParsePage(q, views.DefaultPageSize)
	s := h.current(r)

	var (
		summary     *models.StatsSummary
		outstanding []models.OutstandingBill
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		summary, err = h.client.Summary(ctx, s)
		return err
	})
	g.Go(func() error {
		var err error
		outstanding, err = h.client.OutstandingBills(ctx, s)
		return err
	})
	if err := g.Wait(); err != nil && h.backendError(w, r, err, "Failed to fetch statistics") {
		return
	}

	data := staffStatsData{Summary: summary}
	data.Outstanding, data.Pager = views.Paginate(outstanding, page, pageSize, views.Filters(q))
	h.render(w, r, http.StatusOK, "staff_stats", "Staff Statistics", data)
}
