// internal/activity/activity.go
package activity

// Event is one audit record. The engine treats the sink as write-only
// and fire-and-forget: recording never blocks or fails a send.
type Event struct {
	Actor     string
	Action    string
	Subject   string
	SubjectID string
	Detail    string
}

type Sink interface {
	Record(e Event)
}

// NopSink discards everything; used when no audit database is configured.
type NopSink struct{}

func (NopSink) Record(Event) {}
