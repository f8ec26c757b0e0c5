package constants

// Steward roles that can be handed over by their current holder.
const (
	Artist      = "artist"
	Beneficiary = "beneficiary"
	Platform    = "platform"
)

// ValidRoles lists the role path segments accepted by /steward/roles/:role.
var ValidRoles = []string{Artist, Beneficiary, Platform}

// IsValidRole returns true if role is one of the steward roles.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
