package app

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/core"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/domain"
)

func newRelayEnv() (*Presence, *Coordinator, *Relay) {
	p, _, coord := newCallEnv()
	return p, coord, NewRelay(coord, p)
}

func TestRelayDropsSignalsOutsideCall(t *testing.T) {
	p, _, relay := newRelayEnv()
	connect(p, "alice")
	_, bobConn := connect(p, "bob")

	// no call at all
	ok := relay.Forward("alice", "bob", core.TypeOffer, "v=0 offer", nil)
	assert.False(t, ok)
	assert.Empty(t, bobConn.eventsOf(t, core.TypeOffer))
}

func TestRelayDropsSignalsWhileRinging(t *testing.T) {
	p, coord, relay := newRelayEnv()
	connect(p, "alice")
	_, bobConn := connect(p, "bob")

	_, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)

	// SDP must not flow before the callee accepted
	ok := relay.Forward("alice", "bob", core.TypeOffer, "v=0 offer", nil)
	assert.False(t, ok)
	assert.Empty(t, bobConn.eventsOf(t, core.TypeOffer))
}

func TestRelayForwardsWithinAcceptedCall(t *testing.T) {
	p, coord, relay := newRelayEnv()
	_, aliceConn := connect(p, "alice")
	_, bobConn := connect(p, "bob")

	call, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)
	_, err = coord.AcceptCall(call.ID, "bob")
	require.NoError(t, err)

	ok := relay.Forward("alice", "bob", core.TypeOffer, "v=0 offer", nil)
	require.True(t, ok)
	offers := bobConn.eventsOf(t, core.TypeOffer)
	require.Len(t, offers, 1)
	assert.Equal(t, "alice", offers[0]["from"])
	assert.Equal(t, "v=0 offer", offers[0]["sdp"])

	// the first answer flips the session to CONNECTED
	ok = relay.Forward("bob", "alice", core.TypeAnswer, "v=0 answer", nil)
	require.True(t, ok)
	require.Len(t, aliceConn.eventsOf(t, core.TypeAnswer), 1)

	sess, found := coord.SessionFor("alice")
	require.True(t, found)
	assert.Equal(t, domain.CallConnected, sess.State)
}

func TestRelayCandidatePassThrough(t *testing.T) {
	p, coord, relay := newRelayEnv()
	connect(p, "alice")
	_, bobConn := connect(p, "bob")

	call, err := coord.RequestCall("alice", "bob", domain.MediaAudio)
	require.NoError(t, err)
	_, err = coord.AcceptCall(call.ID, "bob")
	require.NoError(t, err)

	cand := json.RawMessage(`{"candidate":"candidate:1 1 udp 2130706431 192.0.2.1 54321 typ host","sdpMid":"0"}`)
	ok := relay.Forward("alice", "bob", core.TypeICECandidate, "", cand)
	require.True(t, ok)

	got := bobConn.eventsOf(t, core.TypeICECandidate)
	require.Len(t, got, 1)
	payload, isMap := got[0]["candidate"].(map[string]any)
	require.True(t, isMap, "candidate forwarded verbatim as JSON")
	assert.Equal(t, "0", payload["sdpMid"])
}

func TestRelayRenegotiationAnswerStaysConnected(t *testing.T) {
	p, coord, relay := newRelayEnv()
	_, aliceConn := connect(p, "alice")
	connect(p, "bob")

	call, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)
	_, err = coord.AcceptCall(call.ID, "bob")
	require.NoError(t, err)

	require.True(t, relay.Forward("bob", "alice", core.TypeAnswer, "v=0 answer", nil))
	// an answer from a later renegotiation must not error or regress state
	require.True(t, relay.Forward("bob", "alice", core.TypeAnswer, "v=0 answer2", nil))
	assert.Len(t, aliceConn.eventsOf(t, core.TypeAnswer), 2)

	sess, found := coord.SessionFor("bob")
	require.True(t, found)
	assert.Equal(t, domain.CallConnected, sess.State)
}

func TestRelayMultiTabFanOut(t *testing.T) {
	p, coord, relay := newRelayEnv()
	connect(p, "alice")
	_, bobTab1 := connect(p, "bob")
	_, bobTab2 := connect(p, "bob")

	call, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)
	_, err = coord.AcceptCall(call.ID, "bob")
	require.NoError(t, err)

	require.True(t, relay.Forward("alice", "bob", core.TypeOffer, "v=0 offer", nil))
	assert.Len(t, bobTab1.eventsOf(t, core.TypeOffer), 1)
	assert.Len(t, bobTab2.eventsOf(t, core.TypeOffer), 1)
}

func TestRelayDropsAfterCallEnded(t *testing.T) {
	p, coord, relay := newRelayEnv()
	connect(p, "alice")
	_, bobConn := connect(p, "bob")

	call, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)
	_, err = coord.AcceptCall(call.ID, "bob")
	require.NoError(t, err)
	require.NoError(t, coord.EndCall(call.ID, "alice"))

	ok := relay.Forward("alice", "bob", core.TypeICECandidate, "", json.RawMessage(`{}`))
	assert.False(t, ok)
	assert.Empty(t, bobConn.eventsOf(t, core.TypeICECandidate))
}
