// Package agent holds the generation roles: their personas (prompt templates
// embedded in the binary), the capability tables that tailor a mission to the
// code under test, and a registry binding each role to a provider.
package agent

// Role identifies a generation role. The set is closed: only the constants
// below are valid.
type Role string

const (
	RoleSkeleton   Role = "skeleton"
	RoleWorker     Role = "worker"
	RoleReviewer   Role = "reviewer"
	RoleArbitrator Role = "arbitrator"
	RoleRepair     Role = "repair"
	RolePlanner    Role = "planner"
)

// Roles lists every role in a stable order.
func Roles() []Role {
	return []Role{RoleSkeleton, RoleWorker, RoleReviewer, RoleArbitrator, RoleRepair, RolePlanner}
}

// Valid reports whether r is one of the package's role constants.
func (r Role) Valid() bool {
	switch r {
	case RoleSkeleton, RoleWorker, RoleReviewer, RoleArbitrator, RoleRepair, RolePlanner:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
