package models

// Roles known to the backend.
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleAdmin    = "admin"
)

// User mirrors the /api/me and /api/unapproved_users payloads.
type User struct {
	ID            int64  `json:"id,omitempty"`
	Username      string `json:"username"`
	Role          string `json:"role"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Error         string `json:"error,omitempty"`
}

// Valid reports whether the payload identifies a user.
func (u *User) Valid() bool {
	return u != nil && u.Error == "" && u.Username != ""
}

// HasRole reports whether the user holds any of the given roles.
func (u *User) HasRole(roles ...string) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// IsStaff covers staff and admin operators.
func (u *User) IsStaff() bool {
	return u.HasRole(RoleStaff, RoleAdmin)
}

// Credentials is the POST /api/login payload. Captcha fields are forwarded as-is.
type Credentials struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	LotNumber     string `json:"lot_number,omitempty"`
	CaptchaOutput string `json:"captcha_output,omitempty"`
	PassToken     string `json:"pass_token,omitempty"`
}

// Registration is the POST /api/register payload.
type Registration struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	Role          string `json:"role"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}
