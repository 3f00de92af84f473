package match

import (
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePeer records every message sent to it.
type fakePeer struct {
	mu      sync.Mutex
	msgs    []Message
	sendErr error
	closed  bool
}

func (p *fakePeer) Send(msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.msgs...)
}

func (p *fakePeer) countType(t string) int {
	n := 0
	for _, m := range p.messages() {
		if m.Type() == t {
			n++
		}
	}
	return n
}

func newTestManager() *Manager {
	return NewManager(log.New(io.Discard, "", 0))
}

func TestConnect_FIFOMatching(t *testing.T) {
	m := newTestManager()
	a, b, x := &fakePeer{}, &fakePeer{}, &fakePeer{}

	require.NoError(t, m.Connect("customer-a", RoleCustomer, a))
	require.NoError(t, m.Connect("customer-b", RoleCustomer, b))
	require.NoError(t, m.Connect("operator-x", RoleOperator, x))

	// The oldest-waiting customer pairs, not the newest.
	snap := m.Snapshot()
	assert.Equal(t, "operator-x", snap.Pairs["customer-a"])
	assert.Equal(t, "customer-a", snap.Pairs["operator-x"])
	assert.Equal(t, []string{"customer-b"}, snap.Waiting)
	assert.Empty(t, snap.Available)

	require.Len(t, a.messages(), 1)
	matched := a.messages()[0]
	assert.Equal(t, TypeMatched, matched.Type())
	assert.Equal(t, "operator-x", matched["partner_id"])
	assert.Equal(t, "customer", matched["role"])

	require.Len(t, x.messages(), 1)
	assert.Equal(t, "customer-a", x.messages()[0]["partner_id"])
	assert.Equal(t, "operator", x.messages()[0]["role"])
	assert.Empty(t, b.messages())
}

func TestConnect_DuplicateIDRejected(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.Connect("c1", RoleCustomer, &fakePeer{}))
	err := m.Connect("c1", RoleOperator, &fakePeer{})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestRelay_ForwardsVerbatimToPartner(t *testing.T) {
	m := newTestManager()
	c, o := &fakePeer{}, &fakePeer{}
	require.NoError(t, m.Connect("c1", RoleCustomer, c))
	require.NoError(t, m.Connect("o1", RoleOperator, o))

	offer := Message{"type": TypeOffer, "sdp": "v=0 fake-session-desc"}
	m.Relay("c1", offer)

	require.Equal(t, 1, o.countType(TypeOffer))
	got := o.messages()[len(o.messages())-1]
	assert.Equal(t, "v=0 fake-session-desc", got["sdp"])
}

func TestRelay_UnpairedSenderIsDropped(t *testing.T) {
	m := newTestManager()
	c := &fakePeer{}
	require.NoError(t, m.Connect("c1", RoleCustomer, c))

	// No operator yet, so c1 is unpaired; relay must be silently dropped.
	m.Relay("c1", Message{"type": TypeICECandidate})
	m.Relay("ghost", Message{"type": TypeOffer})

	assert.Empty(t, c.messages())
	snap := m.Snapshot()
	assert.Equal(t, []string{"c1"}, snap.Waiting)
}

func TestDisconnect_NotifiesPartnerExactlyOnce(t *testing.T) {
	m := newTestManager()
	c, o := &fakePeer{}, &fakePeer{}
	require.NoError(t, m.Connect("c1", RoleCustomer, c))
	require.NoError(t, m.Connect("o1", RoleOperator, o))

	m.Disconnect("c1")
	m.Disconnect("c1") // second call must be a no-op

	require.Eventually(t, func() bool {
		return o.countType(TypePartnerDisconnected) == 1
	}, time.Second, 5*time.Millisecond)

	// Give a duplicate notification a chance to show up, then re-check.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, o.countType(TypePartnerDisconnected))

	snap := m.Snapshot()
	assert.Empty(t, snap.Pairs)
	assert.NotContains(t, snap.Connections, "c1")
}

func TestDisconnect_OperatorIsNotRequeued(t *testing.T) {
	m := newTestManager()
	c, o := &fakePeer{}, &fakePeer{}
	require.NoError(t, m.Connect("c1", RoleCustomer, c))
	require.NoError(t, m.Connect("o1", RoleOperator, o))

	m.Disconnect("c1")

	// The surviving operator must re-offer availability explicitly; it is
	// not returned to the available queue.
	snap := m.Snapshot()
	assert.Empty(t, snap.Available)
	assert.Contains(t, snap.Connections, "o1")
}

func TestDisconnect_BeforeMatchPrunesQueue(t *testing.T) {
	m := newTestManager()
	c1, c2, o := &fakePeer{}, &fakePeer{}, &fakePeer{}
	require.NoError(t, m.Connect("c1", RoleCustomer, c1))
	require.NoError(t, m.Connect("c2", RoleCustomer, c2))

	m.Disconnect("c1")
	require.NoError(t, m.Connect("o1", RoleOperator, o))

	// c1 left before matching, so c2 pairs instead.
	snap := m.Snapshot()
	assert.Equal(t, "o1", snap.Pairs["c2"])
	assert.True(t, c1.closed)
	assert.Empty(t, c1.messages())
}

func TestDisconnect_PairingMapStaysSymmetric(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.Connect("c1", RoleCustomer, &fakePeer{}))
	require.NoError(t, m.Connect("o1", RoleOperator, &fakePeer{}))

	m.Disconnect("o1")

	snap := m.Snapshot()
	for a, b := range snap.Pairs {
		assert.Equal(t, a, snap.Pairs[b], "pairing map must stay symmetric")
	}
	assert.Empty(t, snap.Pairs)
}

func TestRelay_SendFailureDisconnectsFailingPeer(t *testing.T) {
	m := newTestManager()
	c := &fakePeer{}
	o := &fakePeer{}
	require.NoError(t, m.Connect("c1", RoleCustomer, c))
	require.NoError(t, m.Connect("o1", RoleOperator, o))

	o.mu.Lock()
	o.sendErr = errors.New("broken pipe")
	o.mu.Unlock()

	m.Relay("c1", Message{"type": TypeAnswer})

	require.Eventually(t, func() bool {
		snap := m.Snapshot()
		for _, id := range snap.Connections {
			if id == "o1" {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	// The customer survives and is told its partner is gone.
	require.Eventually(t, func() bool {
		return c.countType(TypePartnerDisconnected) == 1
	}, time.Second, 5*time.Millisecond)
	snap := m.Snapshot()
	assert.Contains(t, snap.Connections, "c1")
}

func TestConcurrentConnectDisconnect_NoAsymmetry(t *testing.T) {
	m := newTestManager()
	var wg sync.WaitGroup
	ids := []string{"a", "b", "c", "d", "e", "f"}
	for i, id := range ids {
		wg.Add(1)
		role := RoleCustomer
		if i%2 == 1 {
			role = RoleOperator
		}
		go func(id string, role Role) {
			defer wg.Done()
			_ = m.Connect(id, role, &fakePeer{})
			m.Disconnect(id)
			m.Disconnect(id)
		}(id, role)
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Empty(t, snap.Connections)
	assert.Empty(t, snap.Waiting)
	assert.Empty(t, snap.Available)
	for a, b := range snap.Pairs {
		assert.Equal(t, a, snap.Pairs[b])
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("customer")
	require.NoError(t, err)
	assert.Equal(t, RoleCustomer, r)

	r, err = ParseRole("operator")
	require.NoError(t, err)
	assert.Equal(t, RoleOperator, r)

	_, err = ParseRole("admin")
	assert.Error(t, err)
}
