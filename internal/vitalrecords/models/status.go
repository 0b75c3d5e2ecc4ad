package models

// Status is the lifecycle stage of a vital records request.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusStarted     Status = "started"
	StatusSubmitted   Status = "submitted"
	StatusEnqueued    Status = "enqueued"
	StatusPackaged    Status = "packaged"
	StatusSent        Status = "sent"
	StatusFinished    Status = "finished"
)

var statusOrder = []Status{
	StatusInitialized,
	StatusStarted,
	StatusSubmitted,
	StatusEnqueued,
	StatusPackaged,
	StatusSent,
	StatusFinished,
}

var statusLabels = map[Status]string{
	StatusInitialized: "Initialized",
	StatusStarted:     "Started",
	StatusSubmitted:   "Request Submitted",
	StatusEnqueued:    "Request Enqueued",
	StatusPackaged:    "Request Packaged",
	StatusSent:        "Request Sent",
	StatusFinished:    "Finished",
}

func (s Status) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s Status) Label() string { return statusLabels[s] }

func (s Status) String() string { return string(s) }

func (s Status) rank() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// CanTransitionTo allows exactly one step forward.
func (s Status) CanTransitionTo(target Status) bool {
	r := s.rank()
	return r >= 0 && target.rank() == r+1
}

// ParseStatus returns the status for s, or false when unknown.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, st.IsValid()
}
