package domain

type PrincipalKind string

const (
	PrincipalAnonymous PrincipalKind = "anonymous"
	PrincipalCustomer  PrincipalKind = "customer"
	PrincipalStaff     PrincipalKind = "staff"
	PrincipalAdmin     PrincipalKind = "admin"
)

// Principal is the authenticated caller, resolved once per request.
type Principal struct {
	Kind        PrincipalKind `json:"kind"`
	Username    string        `json:"username,omitempty"`
	CustomerID  string        `json:"customer_id,omitempty"`
	StaffID     string        `json:"staff_id,omitempty"`
	StaffRole   string        `json:"staff_role,omitempty"`
	Superuser   bool          `json:"superuser,omitempty"`
	Approved    bool          `json:"approved"`
	Permissions []string      `json:"permissions,omitempty"`
}

func Anonymous() Principal {
	return Principal{Kind: PrincipalAnonymous}
}

func (p Principal) IsAdmin() bool {
	return p.Kind == PrincipalAdmin
}

func (p Principal) IsCustomer() bool {
	return p.Kind == PrincipalCustomer
}

// IsApprovedStaff is true for admins and for staff past the approval step.
func (p Principal) IsApprovedStaff() bool {
	switch p.Kind {
	case PrincipalAdmin:
		return true
	case PrincipalStaff:
		return p.Approved
	default:
		return false
	}
}

func (p Principal) HasPermission(perm string) bool {
	for _, granted := range p.Permissions {
		if granted == perm {
			return true
		}
	}
	return false
}

// Name used in audit rows.
func (p Principal) AuditName() string {
	if p.Username == "" {
		return string(PrincipalAnonymous)
	}
	return p.Username
}

const (
	RouteLogin             = "login"
	RouteAdminDashboard    = "admin_dashboard"
	RouteStaffDashboard    = "staff_dashboard"
	RouteCustomerDashboard = "customer_dashboard"
	RoutePendingApproval   = "pending_approval"
)

// Route maps a principal to exactly one landing page.
func Route(p Principal) string {
	switch p.Kind {
	case PrincipalAdmin:
		return RouteAdminDashboard
	case PrincipalStaff:
		if p.Approved {
			return RouteStaffDashboard
		}
		return RoutePendingApproval
	case PrincipalCustomer:
		return RouteCustomerDashboard
	default:
		return RouteLogin
	}
}

// ResolvePrincipal applies the role precedence rules to an account and its
// optional staff and customer profiles. A customer account is always a
// customer, even when a stale staff record is attached.
func ResolvePrincipal(account UserAccount, staff *Staff, customer *Customer) Principal {
	p := Principal{
		Username:    account.Username,
		Superuser:   account.Superuser,
		Permissions: append([]string(nil), account.Permissions...),
	}
	if customer != nil {
		p.CustomerID = customer.ID
	}
	if staff != nil {
		p.StaffID = staff.ID
		p.StaffRole = staff.Role
	}

	switch {
	case account.Superuser:
		p.Kind = PrincipalAdmin
		p.Approved = true
	case account.Kind == AccountCustomer:
		p.Kind = PrincipalCustomer
		p.StaffID = ""
		p.StaffRole = ""
		p.Approved = true
	case account.Kind == AccountAdmin:
		p.Kind = PrincipalAdmin
		p.Approved = true
	case staff != nil && staff.Role == StaffRoleAdmin && staff.Active:
		p.Kind = PrincipalAdmin
		p.Approved = true
	case staff != nil:
		p.Kind = PrincipalStaff
		p.Approved = staff.Active && staff.Role != StaffRolePending
	default:
		p.Kind = PrincipalCustomer
		p.Approved = true
	}
	return p
}
