package remote

import (
	"encoding/json"
	"fmt"
)

// HostCommunicationError reports a failed commit: the round trip itself
// failed, or the host rejected the batch. Code, Message and DebugInfo carry
// the host's diagnostics when it sent any.
type HostCommunicationError struct {
	Code      string
	Message   string
	DebugInfo map[string]any
	Ops       int
	Err       error
}

func (e *HostCommunicationError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("host communication (%d ops): %s", e.Ops, e.Err)
	case e.Code != "":
		return fmt.Sprintf("host communication (%d ops): %s: %s", e.Ops, e.Code, e.Message)
	default:
		return fmt.Sprintf("host communication (%d ops): %s", e.Ops, e.Message)
	}
}

func (e *HostCommunicationError) Unwrap() error { return e.Err }

// Debug renders DebugInfo as JSON for logging.
func (e *HostCommunicationError) Debug() string {
	if len(e.DebugInfo) == 0 {
		return ""
	}
	b, err := json.Marshal(e.DebugInfo)
	if err != nil {
		return fmt.Sprintf("%v", e.DebugInfo)
	}
	return string(b)
}

// ProtocolViolationError is a programming error in the caller: a property
// read before its batch committed, a handle used after invalidation, or an
// unbalanced release.
type ProtocolViolationError struct {
	Op     string
	Handle string
	Prop   string
	Reason string
}

func (e *ProtocolViolationError) Error() string {
	msg := "protocol violation: " + e.Op
	if e.Handle != "" {
		msg += " on " + e.Handle
	}
	if e.Prop != "" {
		msg += " (" + e.Prop + ")"
	}
	return msg + ": " + e.Reason
}

func violation(op string, h *Handle, prop, reason string) *ProtocolViolationError {
	e := &ProtocolViolationError{Op: op, Prop: prop, Reason: reason}
	if h != nil {
		e.Handle = h.Target()
	}
	return e
}
