// Package access decides which portal screens a role may open.
package access

import "customsportal/services/portal/internal/models"

// Feature names a gated screen.
type Feature string

const (
	Search         Feature = "search"
	Upload         Feature = "upload"
	Review         Feature = "review"
	StaffStats     Feature = "staff_stats"
	EditDelete     Feature = "edit_delete"
	Register       Feature = "register"
	UserApproval   Feature = "user_approval"
	Accounting     Feature = "accounting"
	BankImport     Feature = "bank_import"
	BankUnmatched  Feature = "bank_unmatched"
	Management     Feature = "management"
	StaffEmailCTN  Feature = "staff_email_ctn"
	CompleteBill   Feature = "complete_bill"
	CheckPayments  Feature = "check_payments"
	SettleReserves Feature = "settle_reserves"
)

// Allowed reports whether u may use f.
func Allowed(u *models.User, f Feature) bool {
	if !u.Valid() {
		return false
	}
	switch f {
	case Search, Upload:
		return true
	case Review, StaffStats, EditDelete:
		return u.Role != models.RoleCustomer
	case Register, UserApproval, Accounting, SettleReserves, CheckPayments:
		return u.IsStaff()
	case StaffEmailCTN, CompleteBill:
		return u.HasRole(models.RoleStaff)
	case BankImport, BankUnmatched, Management:
		return u.HasRole(models.RoleAdmin)
	default:
		return false
	}
}

// MenuItem is one dashboard entry.
type MenuItem struct {
	Feature Feature
	Label   string
	Path    string
}

var menu = []MenuItem{
	{Review, "Review Bills", "/review"},
	{StaffStats, "Staff Statistics", "/staff-stats"},
	{EditDelete, "Edit / Delete Bills", "/edit-delete-bills"},
	{Register, "Register User", "/register"},
	{UserApproval, "User Approval", "/user-approval"},
	{Accounting, "Account Settlement", "/accounting-review"},
	{BankImport, "Bank Statement Import", "/bank-import"},
	{BankUnmatched, "Unmatched Bank Records", "/bank-unmatched"},
	{Management, "Management Dashboard", "/management"},
	{Search, "Search Bills", "/search"},
	{Upload, "Upload Documents", "/upload"},
}

// Menu lists the dashboard entries u may open, in display order.
func Menu(u *models.User) []MenuItem {
	out := make([]MenuItem, 0, len(menu))
	for _, item := range menu {
		if Allowed(u, item.Feature) {
			out = append(out, item)
		}
	}
	return out
}
