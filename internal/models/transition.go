package models

// Transition is one edge type of the order lifecycle. Cancel is the only
// transition with more than one origin.
type Transition struct {
	Name            string
	From            []OrderStatus
	To              OrderStatus
	TimestampColumn string
}

var (
	Confirm = Transition{
		Name:            "confirm",
		From:            []OrderStatus{OrderPending},
		To:              OrderConfirmed,
		TimestampColumn: "confirmed_at",
	}
	Dispatch = Transition{
		Name:            "dispatch",
		From:            []OrderStatus{OrderConfirmed},
		To:              OrderOutForDelivery,
		TimestampColumn: "out_for_delivery_at",
	}
	Deliver = Transition{
		Name:            "deliver",
		From:            []OrderStatus{OrderOutForDelivery},
		To:              OrderDelivered,
		TimestampColumn: "delivered_at",
	}
	Return = Transition{
		Name:            "return",
		From:            []OrderStatus{OrderDelivered},
		To:              OrderReturned,
		TimestampColumn: "returned_at",
	}
	Cancel = Transition{
		Name:            "cancel",
		From:            []OrderStatus{OrderPending, OrderConfirmed, OrderOutForDelivery},
		To:              OrderCancelled,
		TimestampColumn: "cancellation_date",
	}
)

// Transitions lists every lifecycle edge.
var Transitions = []Transition{Confirm, Dispatch, Deliver, Return, Cancel}

func (t Transition) Allows(from OrderStatus) bool {
	for _, s := range t.From {
		if s == from {
			return true
		}
	}
	return false
}

// CanTransition reports whether some lifecycle edge leads from one status
// directly to the other.
func CanTransition(from, to OrderStatus) bool {
	for _, t := range Transitions {
		if t.To == to && t.Allows(from) {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no edge leaves the status.
func IsTerminal(s OrderStatus) bool {
	for _, t := range Transitions {
		if t.Allows(s) {
			return false
		}
	}
	return true
}
