package events

// EventProgress is the discrete progress event type.
const EventProgress = "progress"

// Progress is a discrete progress report for a running stage: current and
// total unit counts plus a free-text status line. The dashboard layer
// renders these; the CLI prints them.
type Progress struct {
	BaseEvent
	Stage   string `json:"stage"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Status  string `json:"status"`
}

// Percent returns completion as 0-100, or 0 when the total is unknown.
func (p *Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total) * 100
}

// NewProgress creates a Progress event.
func NewProgress(stage, runKey string, current, total int, status string) *Progress {
	return &Progress{
		BaseEvent: NewBaseEvent(EventProgress, "run", runKey),
		Stage:     stage,
		Current:   current,
		Total:     total,
		Status:    status,
	}
}
