package group

// Group statuses
const (
	StatusDraft             = "draft"
	StatusPendingValidation = "pending_validation"
	StatusAccepted          = "accepted"
	StatusRejected          = "rejected"
	StatusInProgress        = "in_progress"
)

var Statuses = []string{StatusDraft, StatusPendingValidation, StatusAccepted, StatusRejected, StatusInProgress}

// transitions lists the statuses each status may move to. rejected and in_progress are terminal.
var transitions = map[string][]string{
	StatusDraft:             {StatusPendingValidation, StatusAccepted},
	StatusPendingValidation: {StatusAccepted, StatusRejected},
	StatusAccepted:          {StatusInProgress},
}

func IsStatus(status string) bool {
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// CanTransition reports whether a group may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to string) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition.WithFields(map[string]interface{}{"from": from, "to": to})
	}
	return nil
}
