package domain

import "fmt"

// FailCode is the policy-rejection code surfaced to the requesting client.
// Codes are part of the wire protocol, do not rename.
type FailCode string

const (
	FailSelfCall         FailCode = "SELF_CALL"
	FailUserOffline      FailCode = "USER_OFFLINE"
	FailUserBusy         FailCode = "USER_BUSY"
	FailUserDisconnected FailCode = "USER_DISCONNECTED"
	FailInvalidCall      FailCode = "INVALID_CALL"
	FailTimeout          FailCode = "TIMEOUT"
)

// CallFailure is the typed outcome of a rejected call operation. It crosses
// the app boundary as an error value, never as a panic.
type CallFailure struct {
	Code   FailCode
	Detail string
}

func (f *CallFailure) Error() string {
	if f.Detail == "" {
		return string(f.Code)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Detail)
}

func NewCallFailure(code FailCode, detail string) *CallFailure {
	return &CallFailure{Code: code, Detail: detail}
}
