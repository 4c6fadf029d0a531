package profile

import "strings"

// Privilege represents the ordered privilege level of a profile.
type Privilege int

const (
	// PrivilegeUnspecified represents an invalid privilege value.
	PrivilegeUnspecified Privilege = iota
	// PrivilegeUser is the default privilege level.
	PrivilegeUser
	// PrivilegeElevated grants moderation capabilities.
	PrivilegeElevated
	// PrivilegeAdmin grants administrative capabilities.
	PrivilegeAdmin
	// PrivilegeDestroyer grants destructive capabilities.
	PrivilegeDestroyer
)

// PrivilegeLabel returns the string label for a privilege level.
func PrivilegeLabel(p Privilege) string {
	switch p {
	case PrivilegeUser:
		return "USER"
	case PrivilegeElevated:
		return "ELEVATED"
	case PrivilegeAdmin:
		return "ADMIN"
	case PrivilegeDestroyer:
		return "DESTROYER"
	default:
		return "UNSPECIFIED"
	}
}

// PrivilegeFromLabel converts a privilege label to a Privilege value.
func PrivilegeFromLabel(label string) Privilege {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "USER":
		return PrivilegeUser
	case "ELEVATED":
		return PrivilegeElevated
	case "ADMIN":
		return PrivilegeAdmin
	case "DESTROYER":
		return PrivilegeDestroyer
	default:
		return PrivilegeUnspecified
	}
}

// PrivilegeConfig carries the privilege thresholds used by authorization
// checks. Thresholds are injected rather than read from ambient settings.
type PrivilegeConfig struct {
	ElevatedMin Privilege `env:"CIRCLES_PRIVILEGE_ELEVATED_MIN" envDefault:"2"`
	AdminMin    Privilege `env:"CIRCLES_PRIVILEGE_ADMIN_MIN" envDefault:"3"`
}

// DefaultPrivilegeConfig returns the standard thresholds.
func DefaultPrivilegeConfig() PrivilegeConfig {
	return PrivilegeConfig{
		ElevatedMin: PrivilegeElevated,
		AdminMin:    PrivilegeAdmin,
	}
}

// IsElevated reports whether p meets the elevated threshold.
func (c PrivilegeConfig) IsElevated(p Privilege) bool {
	min := c.ElevatedMin
	if min == PrivilegeUnspecified {
		min = PrivilegeElevated
	}
	return p >= min
}

// IsAdmin reports whether p meets the admin threshold.
func (c PrivilegeConfig) IsAdmin(p Privilege) bool {
	min := c.AdminMin
	if min == PrivilegeUnspecified {
		min = PrivilegeAdmin
	}
	return p >= min
}
