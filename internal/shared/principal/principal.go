package principal

type Role string

const (
	RoleCustomer  Role = "customer"
	RoleTourGuide Role = "tour_guide"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleTourGuide, RoleAdmin:
		return true
	}
	return false
}

// Principal is the authenticated caller. It is resolved once by the auth
// middleware and passed explicitly into every core operation; services never
// read identity from ambient state.
type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

func (p Principal) IsVendor() bool { return p.Role == RoleTourGuide }

// CanActFor reports whether the principal may act on resources owned by userID.
func (p Principal) CanActFor(userID string) bool {
	return p.IsAdmin() || p.UserID == userID
}
