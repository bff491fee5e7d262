package domain

type Status string

const (
	// StatusDraft is the customer's editable cart.
	StatusDraft Status = "draft"
	// StatusAwaitingReview means payment proof is attached and staff must
	// approve or reject it.
	StatusAwaitingReview Status = "awaiting_review"
	StatusPreparing      Status = "preparing"
	StatusDelivering     Status = "delivering"
	StatusSuccess        Status = "success"
	StatusCancelled      Status = "cancelled"
	StatusRejected       Status = "rejected"
)

var AllStatuses = []Status{
	StatusDraft,
	StatusAwaitingReview,
	StatusPreparing,
	StatusDelivering,
	StatusSuccess,
	StatusCancelled,
	StatusRejected,
}

var transitions = map[Status][]Status{
	StatusDraft:          {StatusAwaitingReview, StatusCancelled},
	StatusAwaitingReview: {StatusPreparing, StatusRejected, StatusCancelled},
	StatusPreparing:      {StatusDelivering},
	StatusDelivering:     {StatusSuccess},
}

func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusCancelled || s == StatusRejected
}

// IsCommitted reports whether stock has already been consumed for the order.
func (s Status) IsCommitted() bool {
	return s == StatusPreparing || s == StatusDelivering || s == StatusSuccess
}

// Legacy maps the status onto the storefront's original vocabulary, where a
// cart and an order awaiting review were both "pending".
func (s Status) Legacy() string {
	if s == StatusDraft || s == StatusAwaitingReview {
		return "pending"
	}
	return string(s)
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
