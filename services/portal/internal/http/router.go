package httpserver

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"customsportal/services/portal/internal/access"
	"customsportal/services/portal/internal/http/handlers"
	"customsportal/services/portal/internal/http/middleware"
	"customsportal/services/portal/internal/session"
)

// RouterDeps collects handler dependencies.
type RouterDeps struct {
	AuthHandlers       *handlers.AuthHandlers
	DashboardHandlers  *handlers.DashboardHandlers
	BillHandlers       *handlers.BillHandlers
	AccountingHandlers *handlers.AccountingHandlers
	UserHandlers       *handlers.UserHandlers
	BankHandlers       *handlers.BankHandlers
	StatsHandlers      *handlers.StatsHandlers
	ManagementHandlers *handlers.ManagementHandlers
	HealthHandler      http.HandlerFunc

	Sessions       *session.Manager
	Metrics        *middleware.Metrics
	Gatherer       prometheus.Gatherer
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// NewRouter wires portal routes with middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := mux.NewRouter()
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Handle("/health", deps.HealthHandler).Methods(http.MethodGet)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	withSession := func(h http.Handler) http.Handler {
		return middleware.Chain(h,
			middleware.BodyLimit(deps.MaxUploadBytes),
			middleware.SessionMiddleware(deps.Sessions, deps.Logger),
			middleware.FormGuard,
		)
	}
	requireUser := middleware.RequireUser(deps.Sessions)
	authenticated := func(h http.HandlerFunc) http.Handler {
		return withSession(middleware.Chain(h, requireUser))
	}
	gated := func(f access.Feature, h http.HandlerFunc) http.Handler {
		return withSession(middleware.Chain(h, requireUser, middleware.RequireFeature(f)))
	}
	get := func(path string, h http.Handler) {
		r.Handle(path, h).Methods(http.MethodGet)
	}
	post := func(path string, h http.Handler) {
		r.Handle(path, h).Methods(http.MethodPost)
	}

	auth := deps.AuthHandlers
	get("/", withSession(http.HandlerFunc(auth.Root)))
	get("/login", withSession(http.HandlerFunc(auth.LoginPage)))
	post("/login", withSession(http.HandlerFunc(auth.Login)))
	post("/logout", withSession(http.HandlerFunc(auth.Logout)))
	get("/faq", withSession(http.HandlerFunc(deps.DashboardHandlers.FAQ)))
	get("/dashboard", authenticated(deps.DashboardHandlers.Dashboard))

	get("/register", gated(access.Register, auth.RegisterPage))
	post("/register", gated(access.Register, auth.Register))

	bills := deps.BillHandlers
	get("/search", gated(access.Search, bills.Search))
	get("/upload", gated(access.Upload, bills.UploadPage))
	post("/upload", gated(access.Upload, bills.Upload))

	get("/review", gated(access.Review, bills.Review))
	get("/review/{id:[0-9]+}", gated(access.Review, bills.ReviewDetail))
	post("/review/{id:[0-9]+}", gated(access.Review, bills.SaveReview))
	post("/review/{id:[0-9]+}/payment-link", gated(access.Review, bills.GeneratePaymentLink))
	post("/review/{id:[0-9]+}/invoice-email", gated(access.Review, bills.SendInvoiceEmail))
	post("/review/{id:[0-9]+}/unique-email", gated(access.Review, bills.SendUniqueEmail))
	post("/review/{id:[0-9]+}/receipt", gated(access.Review, bills.UploadReceipt))

	get("/edit-delete-bills", gated(access.EditDelete, bills.EditDelete))
	post("/edit-delete-bills/{id:[0-9]+}/delete", gated(access.EditDelete, bills.DeleteBill))
	get("/edit-bill/{id:[0-9]+}", gated(access.EditDelete, bills.EditBillPage))
	post("/edit-bill/{id:[0-9]+}", gated(access.EditDelete, bills.SaveEditBill))

	accounting := deps.AccountingHandlers
	get("/accounting-review", gated(access.Accounting, accounting.Review))
	post("/accounting-review/check-payments", gated(access.CheckPayments, accounting.CheckPayments))
	post("/accounting-review/{id:[0-9]+}/complete", gated(access.Accounting, accounting.Complete))
	post("/accounting-review/{id:[0-9]+}/settle-reserve", gated(access.Accounting, accounting.SettleReserve))
	post("/accounting-review/{id:[0-9]+}/unique-email", gated(access.Accounting, accounting.SendUniqueEmail))

	get("/user-approval", gated(access.UserApproval, deps.UserHandlers.Approval))
	post("/user-approval/{id:[0-9]+}/approve", gated(access.UserApproval, deps.UserHandlers.Approve))

	get("/bank-import", gated(access.BankImport, deps.BankHandlers.ImportPage))
	post("/bank-import", gated(access.BankImport, deps.BankHandlers.Import))
	get("/bank-unmatched", gated(access.BankUnmatched, deps.BankHandlers.Unmatched))

	get("/staff-stats", gated(access.StaffStats, deps.StatsHandlers.StaffStats))

	management := deps.ManagementHandlers
	get("/management", gated(access.Management, management.Dashboard))
	post("/management/check-payments", gated(access.Management, accounting.CheckPayments))
	get("/ws/management", gated(access.Management, management.Feed))

	r.NotFoundHandler = withSession(http.HandlerFunc(deps.DashboardHandlers.NotFound))
	return r
}
