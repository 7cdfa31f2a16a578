package clients

import (
	"context"

	"customsportal/services/portal/internal/models"
)

// StatsClient reads aggregate figures.
type StatsClient struct {
	base *BaseClient
}

// NewStatsClient returns client.
func NewStatsClient(base *BaseClient) *StatsClient {
	return &StatsClient{base: base}
}

// Summary returns bill counts and amounts.
func (c *StatsClient) Summary(ctx context.Context, creds Credentials) (*models.StatsSummary, error) {
	var summary models.StatsSummary
	if err := c.base.getJSON(ctx, creds, "/api/stats/summary", &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// OutstandingBills lists bills with an unpaid balance.
func (c *StatsClient) OutstandingBills(ctx context.Context, creds Credentials) ([]models.OutstandingBill, error) {
	var rows []models.OutstandingBill
	if err := c.base.getJSON(ctx, creds, "/api/stats/outstanding_bills", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ManagementOverview returns bills, data-quality flags and metrics.
func (c *StatsClient) ManagementOverview(ctx context.Context, creds Credentials) (*models.ManagementOverview, error) {
	var overview models.ManagementOverview
	if err := c.base.getJSON(ctx, creds, "/api/management/overview", &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}
