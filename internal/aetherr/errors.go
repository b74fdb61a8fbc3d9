// Package aetherr defines the error kinds shared by every Aether
// component. Kinds are sentinel values compared with errors.Is; callers
// that need the offending peer or field wrap a kind with pkg/errors so
// the chain survives across goroutine boundaries.
package aetherr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the error categories from the design's error
// handling section. Two errors of the same Kind compare equal under
// errors.Is regardless of their wrapped message.
type Kind int

const (
	_ Kind = iota
	SocketConfig
	RecvTimeout
	LinkTimeout
	LinkStopped
	WindowOverflow
	HandshakeTimeout
	AuthInvalid
	AuthUnreachable
	DecryptFailed
	ParseError
	Crypto
)

func (k Kind) String() string {
	switch k {
	case SocketConfig:
		return "socket_config"
	case RecvTimeout:
		return "recv_timeout"
	case LinkTimeout:
		return "link_timeout"
	case LinkStopped:
		return "link_stopped"
	case WindowOverflow:
		return "window_overflow"
	case HandshakeTimeout:
		return "handshake_timeout"
	case AuthInvalid:
		return "auth_invalid"
	case AuthUnreachable:
		return "auth_unreachable"
	case DecryptFailed:
		return "decrypt_failed"
	case ParseError:
		return "parse_error"
	case Crypto:
		return "crypto"
	default:
		return "unknown"
	}
}

// Error is the concrete error value carried through the system. It
// keeps the Kind, an optional peer/field label, and an optional wrapped
// cause exposed through Unwrap — the Go analogue of the original implementation's
// AetherError{cause: Option<Box<AetherError>>} linked list.
type Error struct {
	Kind  Kind
	Label string
	cause error
}

func New(kind Kind, label string) *Error {
	return &Error{Kind: kind, Label: label}
}

func Wrap(kind Kind, label string, cause error) *Error {
	return &Error{Kind: kind, Label: label, cause: cause}
}

func (e *Error) Error() string {
	if e.Label == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Label)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, aetherr.New(aetherr.LinkStopped, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Traceback renders the full cause chain, one cause per line, mirroring
// the original implementation's AetherError.traceback().
func (e *Error) Traceback() string {
	var out string
	cur := error(e)
	for cur != nil {
		out += cur.Error() + "\n"
		cur = errors.Unwrap(cur)
	}
	return out
}

// IsKind is the package-level helper most callers reach for:
// aetherr.IsKind(err, aetherr.LinkStopped).
func IsKind(err error, kind Kind) bool {
	var target *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			target = e
			if target.Kind == kind {
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}
