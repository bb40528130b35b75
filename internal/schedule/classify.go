package schedule

// Role describes how an attempt relates to the one before it.
type Role string

const (
	RoleInitial    Role = "initial"
	RoleFollowUp   Role = "follow_up"
	RoleEscalated  Role = "escalated"
	RoleStandalone Role = "standalone"
)

// Classify returns the role of attempt number on channel, given the channel
// of attempt number-1 (empty for the first attempt).
//
// Even attempts on the same channel as their predecessor continue its thread.
// Odd attempts after the first open a new, sharper thread.
func Classify(number int, channel, prevChannel string) Role {
	switch {
	case number <= 1:
		return RoleInitial
	case number%2 == 1:
		return RoleEscalated
	case prevChannel != "" && channel == prevChannel:
		return RoleFollowUp
	default:
		return RoleStandalone
	}
}

// OpensThread reports whether role starts a new conversation.
func (r Role) OpensThread() bool {
	return r != RoleFollowUp
}
