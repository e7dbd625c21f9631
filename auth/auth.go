package auth

// Roles a principal can act under.
const (
	RoleClient  = "client"
	RoleLaborer = "laborer"
)

// Context identifies the authenticated actor for a lifecycle call. It is
// passed explicitly into every mutating operation instead of being read from
// ambient request state.
type Context struct {
	UserID string
	Role   string
}

func (c Context) IsClient() bool  { return c.Role == RoleClient }
func (c Context) IsLaborer() bool { return c.Role == RoleLaborer }

// Anonymous reports whether no principal is attached.
func (c Context) Anonymous() bool { return c.UserID == "" }
