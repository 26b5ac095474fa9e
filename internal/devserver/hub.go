package devserver

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

const peerBuffer = 32

// peer is one open push connection of a user.
type peer struct {
	userID string
	events chan proto.Inbound
	done   chan struct{}
	once   sync.Once
}

func newPeer(userID string) *peer {
	return &peer{
		userID: userID,
		events: make(chan proto.Inbound, peerBuffer),
		done:   make(chan struct{}),
	}
}

func (p *peer) close() {
	p.once.Do(func() { close(p.done) })
}

// hub fans frames out to the connections of a set of users.
type hub struct {
	mu    sync.RWMutex
	peers map[string]map[*peer]struct{}
	log   *zerolog.Logger
}

func newHub(logger *zerolog.Logger) *hub {
	return &hub{
		peers: make(map[string]map[*peer]struct{}),
		log:   logger,
	}
}

func (h *hub) register(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.peers[p.userID]
	if !ok {
		set = make(map[*peer]struct{})
		h.peers[p.userID] = set
	}
	set[p] = struct{}{}
}

func (h *hub) unregister(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.peers[p.userID]; ok {
		delete(set, p)
		if len(set) == 0 {
			delete(h.peers, p.userID)
		}
	}
}

// deliver queues frame on every connection of userIDs. A peer whose
// buffer is full is skipped rather than blocking the sender.
func (h *hub) deliver(userIDs []string, frame proto.Inbound) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, id := range userIDs {
		for p := range h.peers[id] {
			select {
			case p.events <- frame:
				delivered++
			default:
				h.log.Warn().Str("user_id", id).Str("kind", string(frame.Kind)).Msg("peer buffer full, dropping frame")
			}
		}
	}
	return delivered
}

func (h *hub) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, set := range h.peers {
		for p := range set {
			p.close()
		}
	}
}
