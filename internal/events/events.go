package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"emargement/internal/queue"
)

// Type names what happened to which resource.
type Type string

const (
	StudentCreated Type = "student.created"
	StudentUpdated Type = "student.updated"
	StudentDeleted Type = "student.deleted"
	SheetCreated   Type = "sheet.created"
	SheetUpdated   Type = "sheet.updated"
	SheetDeleted   Type = "sheet.deleted"
	SignInCreated  Type = "signin.created"
	SignInUpdated  Type = "signin.updated"
	SignInDeleted  Type = "signin.deleted"
)

// Event is a change notification; it never carries the record itself.
type Event struct {
	ID       string    `json:"id"`
	Type     Type      `json:"type"`
	EntityID uint      `json:"entity_id"`
	At       time.Time `json:"at"`
}

// New stamps an event with a fresh id and the current time.
func New(t Type, entityID uint) Event {
	return Event{ID: uuid.NewString(), Type: t, EntityID: entityID, At: time.Now().UTC()}
}

// Publisher is what the stores depend on.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Sink receives every published event.
type Sink interface {
	Handle(ctx context.Context, evt Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, evt Event) error

func (f SinkFunc) Handle(ctx context.Context, evt Event) error { return f(ctx, evt) }

type namedSink struct {
	name string
	sink Sink
}

// Bus fans events out to its sinks in attach order. A failing sink is
// logged and does not stop the others.
type Bus struct {
	sinks []namedSink
}

// publishTimeout bounds one fan-out once it is detached from the request.
const publishTimeout = 5 * time.Second

func NewBus() *Bus { return &Bus{} }

// Attach registers a sink; call it during startup only.
func (b *Bus) Attach(name string, s Sink) {
	b.sinks = append(b.sinks, namedSink{name: name, sink: s})
}

// Publish runs after the change is committed, so sinks keep the request's
// values but not its cancellation: a client hanging up must not leave the
// cache or the queue behind the database.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	if b == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	for _, s := range b.sinks {
		if err := s.sink.Handle(ctx, evt); err != nil {
			log.Printf("event %s (%s) -> %s failed: %v", evt.ID, evt.Type, s.name, err)
		}
	}
}

type discard struct{}

func (discard) Publish(context.Context, Event) {}

// Discard drops every event.
var Discard Publisher = discard{}

// ToQueue returns a sink that forwards events as JSON queue messages.
func ToQueue(q queue.Queue) Sink {
	return SinkFunc(func(ctx context.Context, evt Event) error {
		body, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		return q.Publish(ctx, queue.Message{Type: string(evt.Type), Body: body})
	})
}

// Decode turns a queue message back into an event.
func Decode(msg queue.Message) (Event, error) {
	var evt Event
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return Event{}, fmt.Errorf("decode event %q: %w", msg.Type, err)
	}
	if evt.Type == "" {
		evt.Type = Type(msg.Type)
	}
	return evt, nil
}

// Consume feeds every queued event to handle until ctx is done or the
// queue closes. Handler errors are logged; the loop keeps going.
func Consume(ctx context.Context, q queue.Queue, handle func(context.Context, Event) error) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		evt, err := Decode(msg)
		if err != nil {
			log.Printf("skip message: %v", err)
			continue
		}
		if err := handle(ctx, evt); err != nil {
			log.Printf("event %s (%s) failed: %v", evt.ID, evt.Type, err)
		}
	}
	return ctx.Err()
}
