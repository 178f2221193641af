package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SHAYON2003/SkillSwap-sub000/internal/core"
	"github.com/SHAYON2003/SkillSwap-sub000/internal/domain"
)

const testRingTimeout = 30 * time.Second

func newCallEnv() (*Presence, *fakeClock, *Coordinator) {
	p := NewPresence()
	clock := newFakeClock()
	coord := NewCoordinator(p, clock, nil, testRingTimeout, 2*testRingTimeout)
	return p, clock, coord
}

func failCode(t *testing.T, err error) domain.FailCode {
	t.Helper()
	var failure *domain.CallFailure
	require.ErrorAs(t, err, &failure)
	return failure.Code
}

func TestRequestCallSelfCall(t *testing.T) {
	p, _, coord := newCallEnv()
	connect(p, "alice")

	call, err := coord.RequestCall("alice", "alice", domain.MediaVideo)
	assert.Nil(t, call)
	assert.Equal(t, domain.FailSelfCall, failCode(t, err))
	assert.Zero(t, coord.ActiveCount())
}

func TestRequestCallOffline(t *testing.T) {
	p, _, coord := newCallEnv()
	connect(p, "alice")

	_, err := coord.RequestCall("alice", "bob", domain.MediaAudio)
	assert.Equal(t, domain.FailUserOffline, failCode(t, err))
	assert.Zero(t, coord.ActiveCount())
}

func TestRequestCallBadMediaKind(t *testing.T) {
	p, _, coord := newCallEnv()
	connect(p, "alice")
	connect(p, "bob")

	_, err := coord.RequestCall("alice", "bob", domain.MediaKind("screenshare"))
	assert.Equal(t, domain.FailInvalidCall, failCode(t, err))
}

func TestCallLifecycleHappyPath(t *testing.T) {
	p, clock, coord := newCallEnv()
	_, aliceConn := connect(p, "alice")
	_, bobConn := connect(p, "bob")

	call, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)
	assert.Equal(t, domain.CallRinging, call.State)

	ringing := bobConn.eventsOf(t, core.TypeCallRequest)
	require.Len(t, ringing, 1)
	assert.Equal(t, "alice", ringing[0]["from"])
	assert.Equal(t, string(call.ID), ringing[0]["call_id"])
	assert.Equal(t, "video", ringing[0]["media_kind"])

	acked := aliceConn.eventsOf(t, core.TypeCallInitiated)
	require.Len(t, acked, 1)
	assert.Equal(t, "bob", acked[0]["to"])

	accepted, err := coord.AcceptCall(call.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.CallAccepted, accepted.State)
	require.Len(t, aliceConn.eventsOf(t, core.TypeCallAccepted), 1)

	require.NoError(t, coord.MarkConnected(call.ID))
	sess, ok := coord.SessionFor("alice")
	require.True(t, ok)
	assert.Equal(t, domain.CallConnected, sess.State)

	require.NoError(t, coord.EndCall(call.ID, "bob"))
	ended := aliceConn.eventsOf(t, core.TypeCallEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, "bob", ended[0]["from"])
	assert.Equal(t, "hangup", ended[0]["reason"])

	assert.Zero(t, coord.ActiveCount())
	_, ok = coord.SessionFor("alice")
	assert.False(t, ok)

	// a fired timeout later must not resurrect anything
	clock.Advance(testRingTimeout + time.Second)
	assert.Empty(t, aliceConn.eventsOf(t, core.TypeCallFailed))
}

func TestSingleActiveCallPerIdentity(t *testing.T) {
	p, _, coord := newCallEnv()
	connect(p, "alice")
	connect(p, "bob")
	_, carolConn := connect(p, "carol")

	call, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)
	_, err = coord.AcceptCall(call.ID, "bob")
	require.NoError(t, err)
	require.NoError(t, coord.MarkConnected(call.ID))

	// carol cannot reach alice mid-call
	_, err = coord.RequestCall("carol", "alice", domain.MediaAudio)
	assert.Equal(t, domain.FailUserBusy, failCode(t, err))
	assert.Equal(t, 1, coord.ActiveCount())

	sess, ok := coord.SessionFor("alice")
	require.True(t, ok)
	assert.Equal(t, call.ID, sess.ID, "existing session untouched")
	assert.Equal(t, domain.CallConnected, sess.State)

	// busy parties cannot start calls either
	_, err = coord.RequestCall("alice", "carol", domain.MediaAudio)
	assert.Equal(t, domain.FailUserBusy, failCode(t, err))

	assert.Empty(t, carolConn.eventsOf(t, core.TypeCallRequest))
}

func TestSimultaneousCrossCallsFirstWins(t *testing.T) {
	p, _, coord := newCallEnv()
	connect(p, "alice")
	connect(p, "bob")

	_, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)

	// bob's symmetric request loses the race, no merge
	_, err = coord.RequestCall("bob", "alice", domain.MediaVideo)
	assert.Equal(t, domain.FailUserBusy, failCode(t, err))
	assert.Equal(t, 1, coord.ActiveCount())
}

func TestRingingTimeout(t *testing.T) {
	p, clock, coord := newCallEnv()
	_, aliceConn := connect(p, "alice")
	_, bobConn := connect(p, "bob")

	_, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)

	clock.Advance(testRingTimeout + time.Second)

	failed := aliceConn.eventsOf(t, core.TypeCallFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, string(domain.FailTimeout), failed[0]["code"])

	ended := bobConn.eventsOf(t, core.TypeCallEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, "timeout", ended[0]["reason"])

	assert.Zero(t, coord.ActiveCount())

	// the identities are free again
	_, err = coord.RequestCall("alice", "bob", domain.MediaVideo)
	assert.NoError(t, err)
}

func TestAcceptCancelsRingingTimer(t *testing.T) {
	p, clock, coord := newCallEnv()
	_, aliceConn := connect(p, "alice")
	connect(p, "bob")

	call, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	_, err = coord.AcceptCall(call.ID, "bob")
	require.NoError(t, err)

	clock.Advance(testRingTimeout)
	assert.Empty(t, aliceConn.eventsOf(t, core.TypeCallFailed), "cancelled timer must not fire")

	sess, ok := coord.SessionFor("alice")
	require.True(t, ok)
	assert.Equal(t, domain.CallAccepted, sess.State)
}

func TestAcceptValidation(t *testing.T) {
	p, _, coord := newCallEnv()
	connect(p, "alice")
	connect(p, "bob")
	connect(p, "mallory")

	call, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)

	_, err = coord.AcceptCall("no-such-call", "bob")
	assert.Equal(t, domain.FailInvalidCall, failCode(t, err))

	// only the registered callee may accept
	_, err = coord.AcceptCall(call.ID, "mallory")
	assert.Equal(t, domain.FailInvalidCall, failCode(t, err))
	_, err = coord.AcceptCall(call.ID, "alice")
	assert.Equal(t, domain.FailInvalidCall, failCode(t, err))

	_, err = coord.AcceptCall(call.ID, "bob")
	assert.NoError(t, err)

	// accepting twice re-enters no state
	_, err = coord.AcceptCall(call.ID, "bob")
	assert.Equal(t, domain.FailInvalidCall, failCode(t, err))
}

func TestRejectIsIdempotent(t *testing.T) {
	p, _, coord := newCallEnv()
	_, aliceConn := connect(p, "alice")
	connect(p, "bob")

	call, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)

	require.NoError(t, coord.RejectCall(call.ID, "bob"))
	ended := aliceConn.eventsOf(t, core.TypeCallEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, "rejected", ended[0]["reason"])

	// second reject and a late hangup are silent no-ops
	require.NoError(t, coord.RejectCall(call.ID, "bob"))
	require.NoError(t, coord.EndCall(call.ID, "alice"))
	assert.Len(t, aliceConn.eventsOf(t, core.TypeCallEnded), 1)
}

func TestCallerHangupWhileRingingIsCancel(t *testing.T) {
	p, _, coord := newCallEnv()
	connect(p, "alice")
	_, bobConn := connect(p, "bob")

	call, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)

	require.NoError(t, coord.EndCall(call.ID, "alice"))
	ended := bobConn.eventsOf(t, core.TypeCallEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, "cancelled", ended[0]["reason"])
}

func TestEndCallByOutsiderRejected(t *testing.T) {
	p, _, coord := newCallEnv()
	connect(p, "alice")
	connect(p, "bob")
	connect(p, "mallory")

	call, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)

	err = coord.EndCall(call.ID, "mallory")
	assert.Equal(t, domain.FailInvalidCall, failCode(t, err))
	assert.Equal(t, 1, coord.ActiveCount())
}

func TestDisconnectCleanup(t *testing.T) {
	p, _, coord := newCallEnv()
	aliceConn1, _ := connect(p, "alice")
	_, bobConn := connect(p, "bob")

	call, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)
	_, err = coord.AcceptCall(call.ID, "bob")
	require.NoError(t, err)
	require.NoError(t, coord.MarkConnected(call.ID))

	offline := p.Unregister(aliceConn1)
	require.True(t, offline)
	coord.HandleDisconnect("alice")

	ended := bobConn.eventsOf(t, core.TypeCallEnded)
	require.Len(t, ended, 1, "exactly one call-ended for the survivor")
	assert.Equal(t, "alice", ended[0]["from"])
	assert.Equal(t, "disconnected", ended[0]["reason"])
	assert.Zero(t, coord.ActiveCount())

	// repeated disconnect notifications change nothing
	coord.HandleDisconnect("alice")
	assert.Len(t, bobConn.eventsOf(t, core.TypeCallEnded), 1)
}

func TestCalleeDisconnectWhileRingingFailsCaller(t *testing.T) {
	p, _, coord := newCallEnv()
	_, aliceConn := connect(p, "alice")
	bobConn1, _ := connect(p, "bob")

	_, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)

	p.Unregister(bobConn1)
	coord.HandleDisconnect("bob")

	failed := aliceConn.eventsOf(t, core.TypeCallFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, string(domain.FailUserDisconnected), failed[0]["code"])
	assert.Zero(t, coord.ActiveCount())
}

func TestSweepReclaimsStaleRinging(t *testing.T) {
	p, clock, coord := newCallEnv()
	_, aliceConn := connect(p, "alice")
	connect(p, "bob")

	call, err := coord.RequestCall("alice", "bob", domain.MediaVideo)
	require.NoError(t, err)

	// simulate a lost ring timer: the sweep is the safety net
	coord.mu.Lock()
	coord.sessions[call.ID].ringTimer.Stop()
	coord.mu.Unlock()

	clock.Advance(testRingTimeout + time.Second)
	assert.Equal(t, 1, coord.ActiveCount(), "timer was lost, nothing fired")

	clock.Advance(testRingTimeout + time.Second)
	coord.sweepOnce()

	assert.Zero(t, coord.ActiveCount())
	failed := aliceConn.eventsOf(t, core.TypeCallFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, string(domain.FailTimeout), failed[0]["code"])
}

func TestNameLookupUsedInCallRequest(t *testing.T) {
	p := NewPresence()
	clock := newFakeClock()
	names := func(id domain.Identity) string { return "Dr. " + string(id) }
	coord := NewCoordinator(p, clock, names, testRingTimeout, 2*testRingTimeout)

	connect(p, "alice")
	_, bobConn := connect(p, "bob")

	_, err := coord.RequestCall("alice", "bob", domain.MediaAudio)
	require.NoError(t, err)

	ringing := bobConn.eventsOf(t, core.TypeCallRequest)
	require.Len(t, ringing, 1)
	assert.Equal(t, "Dr. alice", ringing[0]["from_name"])
}
