// Package peer is the client half of the signaling core: it dials the
// server, drives a pion peer connection and resolves offer glare with the
// polite/impolite roles of perfect negotiation.
package peer

import "github.com/SHAYON2003/SkillSwap-sub000/internal/domain"

// Polite derives this side's negotiation role from the two identities.
// Both peers compute it independently and always disagree with each other:
// the lexicographically smaller identity yields to glare, the other side's
// offer wins. No extra round-trip is needed to agree on roles.
func Polite(local, remote domain.Identity) bool {
	return local < remote
}
