package domain

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusVoided    OrderStatus = "voided"
	StatusCancelled OrderStatus = "cancelled"
)

var staffTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusPreparing, StatusReady, StatusCompleted},
	StatusPreparing: {StatusReady, StatusCompleted},
	StatusReady:     {StatusCompleted},
}

func ParseOrderStatus(raw string) (OrderStatus, bool) {
	switch s := OrderStatus(raw); s {
	case StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusVoided, StatusCancelled:
		return s, true
	default:
		return "", false
	}
}

func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusVoided || s == StatusCancelled
}

// CanTransition reports whether an order may move from one status to another.
// Terminal orders never move. Voiding has its own operation and is not a
// status update. Privileged principals may otherwise pick any status.
func CanTransition(from, to OrderStatus, privileged bool) bool {
	if from.Terminal() || from == to || to == StatusVoided {
		return false
	}
	if _, ok := ParseOrderStatus(string(to)); !ok {
		return false
	}
	if privileged {
		return true
	}
	for _, next := range staffTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedTransitions lists the statuses reachable from the given one.
func AllowedTransitions(from OrderStatus, privileged bool) []OrderStatus {
	if from.Terminal() {
		return nil
	}
	if !privileged {
		out := make([]OrderStatus, len(staffTransitions[from]))
		copy(out, staffTransitions[from])
		return out
	}
	all := []OrderStatus{StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled}
	out := make([]OrderStatus, 0, len(all))
	for _, s := range all {
		if s != from {
			out = append(out, s)
		}
	}
	return out
}
