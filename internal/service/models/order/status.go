package order

import (
	"errors"
	"strings"
)

// Status is an order lifecycle state.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCanceled   Status = "CANCELED"
)

var (
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrBackwardTransition = errors.New("backward status transition")
	ErrInvalidFilter      = errors.New("invalid order filter")
)

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// ParseStatus converts a wire status into a Status.
// CANCELLED is accepted as an alias since the push channel spells the event that way.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case StatusOpen.String():
		return StatusOpen, nil
	case StatusInProgress.String():
		return StatusInProgress, nil
	case StatusCompleted.String():
		return StatusCompleted, nil
	case StatusCanceled.String(), "CANCELLED":
		return StatusCanceled, nil
	default:
		return "", ErrInvalidStatus
	}
}

// rank orders the forward path. Canceled sits outside of it.
var rank = map[Status]int{
	StatusOpen:       0,
	StatusInProgress: 1,
	StatusCompleted:  2,
}

// CanTransition reports whether moving from one status to another is a forward step.
// Equal statuses are not a transition.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if to == StatusCanceled {
		return from == StatusOpen || from == StatusInProgress
	}
	fr, ok := rank[from]
	if !ok {
		return false
	}
	tr, ok := rank[to]
	if !ok {
		return false
	}

	return tr > fr
}

// Filter restricts the displayed view of the working set.
type Filter string

const (
	FilterAll        Filter = "ALL"
	FilterOpen       Filter = "OPEN"
	FilterInProgress Filter = "IN_PROGRESS"
	FilterCompleted  Filter = "COMPLETED"
)

func (f Filter) String() string {
	return string(f)
}

// Match reports whether an order with the given status passes the filter.
func (f Filter) Match(s Status) bool {
	if f == FilterAll {
		return true
	}

	return string(f) == string(s)
}

// ParseFilter converts a wire filter into a Filter. Empty input means ALL.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", FilterAll.String():
		return FilterAll, nil
	case FilterOpen.String():
		return FilterOpen, nil
	case FilterInProgress.String():
		return FilterInProgress, nil
	case FilterCompleted.String():
		return FilterCompleted, nil
	default:
		return "", ErrInvalidFilter
	}
}
