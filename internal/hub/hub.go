package hub

import (
	"context"

	"github.com/promptpit/promptpit-backend/pkg/types"
)

type HubMsg interface{ isHubMsg() }

type Subscribe struct {
	Topic    string
	ClientID string
	Outbox   chan types.BattleView // where this client wants to receive updates
}

type Unsubscribe struct {
	Topic    string
	ClientID string
}

type Publish struct {
	Topic string
	View  types.BattleView
}

type CountSubscribers struct {
	Topic string
	Reply chan int // must be buffered; a reply nobody is ready for is dropped
}

type ShutdownHub struct{}

func (Subscribe) isHubMsg()        {}
func (Unsubscribe) isHubMsg()      {}
func (Publish) isHubMsg()          {}
func (CountSubscribers) isHubMsg() {}
func (ShutdownHub) isHubMsg()      {}

// Hub fans battle views out to subscribers. Topics are battle ids. All state
// is owned by the loop goroutine; callers only ever touch the inbox.
// Delivery is fire-and-forget: a missed update is recovered by re-reading
// the battle over HTTP.
type Hub struct {
	inbox  chan HubMsg
	topics map[string]map[string]chan types.BattleView
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		topics: make(map[string]map[string]chan types.BattleView),
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Broadcast is the convenience entry the coordinator publishes through.
func (h *Hub) Broadcast(battleID string, view types.BattleView) {
	select {
	case h.inbox <- Publish{Topic: battleID, View: view}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Subscribe:
				subs := h.topics[msg.Topic]
				if subs == nil {
					subs = make(map[string]chan types.BattleView)
					h.topics[msg.Topic] = subs
				}
				subs[msg.ClientID] = msg.Outbox

			case Unsubscribe:
				subs := h.topics[msg.Topic]
				if subs == nil {
					break
				}
				// Close the outbox so the client's writer loop terminates.
				// Slow-dropped clients are already out of the map, so this
				// never double-closes.
				if ch, ok := subs[msg.ClientID]; ok {
					close(ch)
					delete(subs, msg.ClientID)
				}
				if len(subs) == 0 {
					delete(h.topics, msg.Topic)
				}

			case Publish:
				for id, ch := range h.topics[msg.Topic] {
					select {
					case ch <- msg.View:
						// ok
					default:
						// Client is slow/full - drop them.
						close(ch)
						delete(h.topics[msg.Topic], id)
					}
				}

			case CountSubscribers:
				// Never let an abandoned reply channel wedge the loop.
				select {
				case msg.Reply <- len(h.topics[msg.Topic]):
				default:
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for topic, subs := range h.topics {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(h.topics, topic)
	}
	h.cancel()
}
