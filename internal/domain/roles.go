/**
 * @description
 * Role definitions for the access-control registry. The Admin role gates all
 * grants and revocations of the other roles.
 */
package domain

// Role is a named capability an account can hold.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleOperator Role = "operator"
	RolePauser   Role = "pauser"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleOperator, RolePauser:
		return true
	}
	return false
}
