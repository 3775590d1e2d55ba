package stubserver

import (
	"context"

	"pyramidclient/pkg/types"
)

// Rooms fans chat frames out to topic subscribers. One loop owns the whole
// registry; ws handlers talk to it through the inbox. Outbox channels belong
// to the ws handlers — the loop only ever registers, sends, and deletes.

type RoomMsg interface{ isRoomMsg() }

type Subscribe struct {
	Topic    string
	ClientID string
	Outbox   chan types.Frame
}

// UnsubscribeAll drops every subscription of one client. Done is closed once
// the registry no longer references the client's outbox, so the caller can
// safely close it.
type UnsubscribeAll struct {
	ClientID string
	Done     chan struct{}
}

type Publish struct {
	Topic string
	Body  types.ChatBody
}

type ShutdownRooms struct{}

func (Subscribe) isRoomMsg()      {}
func (UnsubscribeAll) isRoomMsg() {}
func (Publish) isRoomMsg()        {}
func (ShutdownRooms) isRoomMsg()  {}

type Rooms struct {
	inbox  chan RoomMsg
	subs   map[string]map[string]chan types.Frame // topic -> clientID -> outbox
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRooms(parent context.Context) *Rooms {
	ctx, cancel := context.WithCancel(parent)
	r := &Rooms{
		inbox:  make(chan RoomMsg, 64),
		subs:   make(map[string]map[string]chan types.Frame),
		ctx:    ctx,
		cancel: cancel,
	}
	go r.loop()
	return r
}

func (r *Rooms) Inbox() chan<- RoomMsg { return r.inbox }

// Done reports loop termination so handlers don't wait on a dead registry.
func (r *Rooms) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Rooms) loop() {
	for {
		select {
		case <-r.ctx.Done():
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Subscribe:
				if r.subs[msg.Topic] == nil {
					r.subs[msg.Topic] = make(map[string]chan types.Frame)
				}
				r.subs[msg.Topic][msg.ClientID] = msg.Outbox

			case UnsubscribeAll:
				for topic, clients := range r.subs {
					delete(clients, msg.ClientID)
					if len(clients) == 0 {
						delete(r.subs, topic)
					}
				}
				close(msg.Done)

			case Publish:
				r.broadcast(msg.Topic, msg.Body)

			case ShutdownRooms:
				clear(r.subs)
				r.cancel()
				return
			}
		}
	}
}

// broadcast delivers to every subscriber of topic, sender included — the
// sender sees their own message come back the same way everyone else does.
func (r *Rooms) broadcast(topic string, body types.ChatBody) {
	frame := types.Frame{Type: types.FrameMessage, Topic: topic, Body: &body}
	for id, ch := range r.subs[topic] {
		select {
		case ch <- frame:
			// ok
		default:
			// Client is slow/full - drop them.
			delete(r.subs[topic], id)
		}
	}
}
