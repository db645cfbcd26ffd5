// pkg/analytics/tracker.go
package analytics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Event names mirror the product vocabulary used across the dashboard.
const (
	EventSignup          = "Signup"
	EventLogin           = "Login"
	EventLogout          = "Logout"
	EventAuthCreated     = "Authentication Created"
	EventAuthOpened      = "Authentication Opened"
	EventAuthConsumed    = "Authentication Consumed"
	EventAccountCreated  = "Created Account"
	EventAccountUpdated  = "Updated Account"
	EventValidationError = "Validation Error"
)

// Tracker records product events. Implementations must never block the
// caller and must never surface a failure into the login path.
type Tracker interface {
	Track(subject, event string, props map[string]any)
	Close()
}

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "authmail_events_total",
	Help: "Product events emitted by the service.",
}, []string{"event"})

type entry struct {
	subject string
	event   string
	props   map[string]any
}

// asyncTracker buffers events on a channel drained by one goroutine.
// A full buffer drops the event; tracking is a side channel and must not
// apply backpressure to logins.
type asyncTracker struct {
	log  *zap.SugaredLogger
	ch   chan entry
	done chan struct{}
	once sync.Once
}

func NewTracker(log *zap.SugaredLogger) Tracker {
	t := &asyncTracker{
		log:  log,
		ch:   make(chan entry, 1024),
		done: make(chan struct{}),
	}
	go t.drain()
	return t
}

func (t *asyncTracker) Track(subject, event string, props map[string]any) {
	select {
	case t.ch <- entry{subject: subject, event: event, props: props}:
	default:
		t.log.Debugw("tracking buffer full, event dropped", "event", event)
	}
}

func (t *asyncTracker) Close() {
	t.once.Do(func() { close(t.done) })
}

func (t *asyncTracker) drain() {
	for {
		select {
		case e := <-t.ch:
			eventsTotal.WithLabelValues(e.event).Inc()
			kv := []any{"subject", e.subject}
			for k, v := range e.props {
				kv = append(kv, k, v)
			}
			t.log.Infow("track: "+e.event, kv...)
		case <-t.done:
			return
		}
	}
}

// NopTracker discards everything; handy in tests.
type NopTracker struct{}

func (NopTracker) Track(string, string, map[string]any) {}
func (NopTracker) Close()                               {}
