package invitation

import "strings"

// Status represents the lifecycle status of an invitation. Values are
// ordered so privilege comparisons can use the numeric ordering: a ban
// ranks below a rejection, an elevated membership ranks above a plain
// acceptance.
type Status int

const (
	// StatusUnspecified represents an invalid invitation status.
	StatusUnspecified Status = iota
	// StatusBanned indicates the invitee was banned from the circle.
	StatusBanned
	// StatusRejected indicates the invitation was refused.
	StatusRejected
	// StatusWithdrawn indicates the invitee withdrew a pending invitation.
	StatusWithdrawn
	// StatusInvited indicates the invitation is pending acceptance.
	StatusInvited
	// StatusAccepted indicates the invitee joined the circle.
	StatusAccepted
	// StatusElevated indicates the invitee administers the circle.
	StatusElevated
)

// ValidStatus reports whether the status is one of the defined lifecycle
// values.
func ValidStatus(status Status) bool {
	return status >= StatusBanned && status <= StatusElevated
}

// StatusLabel returns the string label for an invitation status.
func StatusLabel(status Status) string {
	switch status {
	case StatusBanned:
		return "BANNED"
	case StatusRejected:
		return "REJECTED"
	case StatusWithdrawn:
		return "WITHDRAWN"
	case StatusInvited:
		return "INVITED"
	case StatusAccepted:
		return "ACCEPTED"
	case StatusElevated:
		return "ELEVATED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel converts a status label to a Status value.
func StatusFromLabel(label string) Status {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "BANNED":
		return StatusBanned
	case "REJECTED":
		return StatusRejected
	case "WITHDRAWN":
		return StatusWithdrawn
	case "INVITED":
		return StatusInvited
	case "ACCEPTED":
		return StatusAccepted
	case "ELEVATED":
		return StatusElevated
	default:
		return StatusUnspecified
	}
}
