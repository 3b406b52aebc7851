package clustererr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation against the cluster failed.
type Kind int

const (
	// Connect means a control connection to a candidate node could not
	// be opened.
	Connect Kind = iota
	// Protocol means a CLUSTER NODES response was malformed or empty.
	Protocol
	// Resolve means DNS resolution failed while parsing a snapshot.
	Resolve
	// Topology means the snapshot itself is structurally invalid, e.g.
	// a master node reported with no address.
	Topology
	// Coverage means strict slot-coverage checking found fewer than
	// 16384 slots covered.
	Coverage
	// Fatal means startup failed after every seed was exhausted.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Connect:
		return "connect"
	case Protocol:
		return "protocol"
	case Resolve:
		return "resolve"
	case Topology:
		return "topology"
	case Coverage:
		return "coverage"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a classified cluster-topology error.
type Error struct {
	Kind    Kind
	Addr    string // offending node address or seed, if any
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Addr != "" {
		if e.Cause != nil {
			return fmt.Sprintf("clustererr: %s: %s (%s): %v", e.Kind, e.Message, e.Addr, e.Cause)
		}
		return fmt.Sprintf("clustererr: %s: %s (%s)", e.Kind, e.Message, e.Addr)
	}
	if e.Cause != nil {
		return fmt.Sprintf("clustererr: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("clustererr: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error with no offending address.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NewWithAddr builds an Error naming the offending node or seed address.
func NewWithAddr(kind Kind, addr, message string, cause error) *Error {
	return &Error{Kind: kind, Addr: addr, Message: message, Cause: cause}
}

// Is reports whether err is a *Error of the given kind, following wrapped
// errors.
func Is(err error, kind Kind) bool {
	var ce *Error
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == kind
}
