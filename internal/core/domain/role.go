package domain

type Role string

const (
	RoleCustomer Role = "customer"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

func (r Role) IsStaff() bool {
	return r == RoleEmployee || r == RoleAdmin
}

// Actor is the already-authenticated caller of an operation.
type Actor struct {
	ID   string
	Role Role
}
