// Package domain contains the entities of the signaling core, just meta-data
// and lifecycle values. No transport or scheduling logic here.
package domain

import "errors"

const MaxIdentityLen = 64

var (
	ErrIdentityEmpty   = errors.New("identity empty")
	ErrIdentityTooLong = errors.New("identity too long")
)

// Identity is the authenticated user reference. It is opaque to the core:
// the auth subsystem issues it, we only compare and route by it.
type Identity string

func NewIdentity(raw string) (Identity, error) {
	if len(raw) == 0 {
		return "", ErrIdentityEmpty
	}
	if len(raw) > MaxIdentityLen {
		return "", ErrIdentityTooLong
	}
	return Identity(raw), nil
}

func (i Identity) String() string { return string(i) }
