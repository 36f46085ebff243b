// Package mailbox manages short-lived sessions against the remote mailbox.
//
// A Session is opened, a folder is locked, messages are fetched or flagged,
// and then the lock is released and the session closed. Sessions are never
// reused across phases and must not be held while doing non-protocol work.
package mailbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/rfp-inbound/internal/model"
)

// ErrReadOnly is returned by MarkSeen when the mailbox cannot store flags.
var ErrReadOnly = errors.New("mailbox is read-only")

// RawMessage is an undecoded message as fetched from the mailbox. RemoteID
// is the server-assigned UID.
type RawMessage struct {
	RemoteID uint32
	Source   []byte
}

// Filter is the server-side search applied during the fetch phase.
type Filter struct {
	// SubjectContains is a substring the Subject header must contain.
	SubjectContains string

	// UnseenOnly excludes messages already flagged \Seen.
	UnseenOnly bool
}

// Dialer opens sessions against a mailbox.
type Dialer interface {
	Open(ctx context.Context, cred model.Credential) (Session, error)
}

// Session is one authenticated protocol session.
type Session interface {
	// LockFolder selects the folder for exclusive use by this session.
	LockFolder(ctx context.Context, name string) (Lock, error)

	// FetchMatching runs the filter and calls fn for each matching message
	// in server order. Iteration stops at the first error returned by fn.
	FetchMatching(ctx context.Context, f Filter, fn func(RawMessage) error) error

	// MarkSeen adds the \Seen flag to a message.
	MarkSeen(ctx context.Context, remoteID uint32) error

	// Close logs out and drops the connection. Safe to call more than once.
	Close() error
}

// Lock is a selected folder. Release is idempotent and safe to call after
// the session has gone away.
type Lock interface {
	Release()

	// UIDValidity identifies the folder generation the remote ids belong
	// to. Zero when the backend has no such notion.
	UIDValidity() uint32
}

// ConnectionError reports a failure to connect or authenticate.
type ConnectionError struct {
	Addr string
	Auth bool
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Auth {
		return fmt.Sprintf("authenticating to %s: %v", e.Addr, e.Err)
	}
	return fmt.Sprintf("connecting to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// LockError reports a failure to select a folder.
type LockError struct {
	Mailbox string
	Err     error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("locking mailbox %s: %v", e.Mailbox, e.Err)
}

func (e *LockError) Unwrap() error { return e.Err }

// FlagError reports a failure to flag a single message.
type FlagError struct {
	RemoteID uint32
	Err      error
}

func (e *FlagError) Error() string {
	return fmt.Sprintf("flagging message %d as seen: %v", e.RemoteID, e.Err)
}

func (e *FlagError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err (or any error in its chain) is a
// ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsLockError reports whether err (or any error in its chain) is a
// LockError.
func IsLockError(err error) bool {
	var lockErr *LockError
	return errors.As(err, &lockErr)
}
