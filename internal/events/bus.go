// internal/events/bus.go
package events

import (
	"sync"

	"github.com/unclebandit/wabroadcast-backend/internal/model"
)

// Event is one progress or status notification for a campaign. Per-
// attempt events carry Recipient; state transitions carry Status (and
// optionally Reason) instead.
type Event struct {
	CampaignID string             `json:"campaign_id"`
	Processed  int                `json:"processed"`
	Total      int                `json:"total"`
	Recipient  *RecipientProgress `json:"recipient,omitempty"`
	Status     string             `json:"status,omitempty"` // paused, resumed, stopped, completed
	Reason     string             `json:"reason,omitempty"`
}

type RecipientProgress struct {
	Number string                `json:"number"`
	Name   string                `json:"name,omitempty"`
	Status model.RecipientStatus `json:"status"`
	Error  string                `json:"error,omitempty"`
}

// Publisher mirrors events to an external transport (e.g. AMQP).
type Publisher interface {
	Publish(e Event) error
}

const subscriberBuffer = 64

type subscriber struct {
	campaignID string
	ch         chan Event
}

// Bus is an in-process pub/sub hub for campaign progress. Events for
// one campaign are delivered in publish order; a slow subscriber drops
// its oldest event instead of blocking the send loop.
type Bus struct {
	mu       sync.Mutex
	subs     map[int]*subscriber
	nextID   int
	forwards []Publisher
}

func NewBus() *Bus {
	return &Bus{subs: map[int]*subscriber{}}
}

// AttachPublisher adds an external mirror for every published event.
func (b *Bus) AttachPublisher(p Publisher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forwards = append(b.forwards, p)
}

// Subscribe returns a stream of events for one campaign (empty id means
// all campaigns) and a cancel func that closes the stream.
func (b *Bus) Subscribe(campaignID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{campaignID: campaignID, ch: make(chan Event, subscriberBuffer)}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Publish fans the event out to matching subscribers and any attached
// external publishers. Never blocks the caller.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if sub.campaignID != "" && sub.campaignID != e.CampaignID {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			// Full buffer: drop the oldest so ordering of what remains
			// still matches send order.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- e:
			default:
			}
		}
	}

	for _, p := range b.forwards {
		_ = p.Publish(e)
	}
}
