package match

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
)

// Role distinguishes the two sides of a support hand-off.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOperator Role = "operator"
)

// ParseRole validates a role string from the transport layer.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer, RoleOperator:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown client type %q", s)
}

// ErrDuplicateID reports a connect attempt with an id that is already
// registered.
var ErrDuplicateID = errors.New("client id already connected")

// Message is one signaling payload. The manager only inspects the type
// field; everything else is relayed verbatim between paired peers.
type Message map[string]any

// Type returns the mandatory type field, or "" if absent.
func (m Message) Type() string {
	s, _ := m["type"].(string)
	return s
}

// Signaling message types.
const (
	TypeMatched             = "matched"
	TypePartnerDisconnected = "partner_disconnected"
	TypeOffer               = "offer"
	TypeAnswer              = "answer"
	TypeICECandidate        = "ice-candidate"
	TypeDisconnect          = "disconnect"
)

// Peer is the live transport handle for one connected client. Send must be
// safe for concurrent use; implementations serialize their own writes.
type Peer interface {
	Send(msg Message) error
	Close() error
}

type connection struct {
	id   string
	role Role
	peer Peer
}

// Snapshot is a read-only diagnostic view of the manager's state.
type Snapshot struct {
	Connections []string          `json:"connections"`
	Pairs       map[string]string `json:"pairs"`
	Waiting     []string          `json:"waiting_customers"`
	Available   []string          `json:"available_operators"`
}

// Manager pairs waiting customers with available operators and relays
// signaling messages between paired peers. All state transitions happen
// under one mutex, so concurrent connects, relays, and disconnects can
// never leave the pairing map asymmetric.
//
// Pairing policy is strict FIFO: the oldest-waiting customer is paired with
// the longest-available operator. A departed operator is not re-queued
// automatically; operators re-offer availability by reconnecting.
type Manager struct {
	mu        sync.Mutex
	log       *log.Logger
	conns     map[string]*connection
	pairs     map[string]string
	waiting   []string
	available []string
}

// NewManager creates an empty matching manager.
func NewManager(logger *log.Logger) *Manager {
	return &Manager{
		log:   logger,
		conns: make(map[string]*connection),
		pairs: make(map[string]string),
	}
}

// Connect registers a client, queues it by role, and runs the matching loop.
func (m *Manager) Connect(id string, role Role, peer Peer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conns[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	m.conns[id] = &connection{id: id, role: role, peer: peer}
	switch role {
	case RoleCustomer:
		m.waiting = append(m.waiting, id)
	case RoleOperator:
		m.available = append(m.available, id)
	default:
		delete(m.conns, id)
		return fmt.Errorf("unknown role %q", role)
	}
	m.log.Printf("connected %s as %s", id, role)
	m.matchLocked()
	return nil
}

// matchLocked pairs queue heads while both queues are non-empty. Callers
// hold m.mu.
func (m *Manager) matchLocked() {
	for len(m.waiting) > 0 && len(m.available) > 0 {
		customer := m.waiting[0]
		operator := m.available[0]
		m.waiting = m.waiting[1:]
		m.available = m.available[1:]

		m.pairs[customer] = operator
		m.pairs[operator] = customer
		m.log.Printf("paired customer %s with operator %s", customer, operator)

		m.sendLocked(customer, Message{"type": TypeMatched, "partner_id": operator, "role": string(RoleCustomer)})
		m.sendLocked(operator, Message{"type": TypeMatched, "partner_id": customer, "role": string(RoleOperator)})
	}
}

// sendLocked delivers a manager-originated message to a connected client.
// A write failure schedules that client's disconnect without blocking the
// caller; callers hold m.mu.
func (m *Manager) sendLocked(id string, msg Message) {
	c, ok := m.conns[id]
	if !ok {
		return
	}
	if err := c.peer.Send(msg); err != nil {
		m.log.Printf("send to %s failed: %v", id, err)
		go m.Disconnect(id)
	}
}

// Relay forwards a message verbatim to the sender's partner. Messages from
// unpaired senders are logged and dropped; that is not a fatal condition.
func (m *Manager) Relay(senderID string, msg Message) {
	m.mu.Lock()
	partnerID, paired := m.pairs[senderID]
	var peer Peer
	if paired {
		if pc, ok := m.conns[partnerID]; ok {
			peer = pc.peer
		}
	}
	m.mu.Unlock()

	if peer == nil {
		m.log.Printf("dropping %s message from unpaired sender %s", msg.Type(), senderID)
		return
	}
	if err := peer.Send(msg); err != nil {
		m.log.Printf("relay to %s failed: %v", partnerID, err)
		m.Disconnect(partnerID)
	}
}

// Disconnect removes a client, prunes it from either queue, and tears down
// its pairing. It is idempotent: a second call for the same id is a no-op,
// so overlapping error paths cannot double-notify the partner. Partner
// notification is asynchronous and best-effort; it never blocks teardown.
func (m *Manager) Disconnect(id string) {
	m.mu.Lock()
	c, ok := m.conns[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.conns, id)
	m.waiting = removeID(m.waiting, id)
	m.available = removeID(m.available, id)

	var partnerPeer Peer
	var partnerID string
	if pid, paired := m.pairs[id]; paired {
		delete(m.pairs, id)
		delete(m.pairs, pid)
		if pc, stillHere := m.conns[pid]; stillHere {
			partnerPeer = pc.peer
			partnerID = pid
		}
	}
	m.mu.Unlock()

	_ = c.peer.Close()
	m.log.Printf("disconnected %s", id)

	if partnerPeer != nil {
		go func() {
			if err := partnerPeer.Send(Message{"type": TypePartnerDisconnected}); err != nil {
				m.log.Printf("partner_disconnected to %s failed: %v", partnerID, err)
			}
		}()
	}
}

// Snapshot returns a copy of the current connection ids, pairing map, and
// both queues for operational visibility.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Connections: make([]string, 0, len(m.conns)),
		Pairs:       make(map[string]string, len(m.pairs)),
		Waiting:     append([]string(nil), m.waiting...),
		Available:   append([]string(nil), m.available...),
	}
	for id := range m.conns {
		snap.Connections = append(snap.Connections, id)
	}
	sort.Strings(snap.Connections)
	for k, v := range m.pairs {
		snap.Pairs[k] = v
	}
	return snap
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
