package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	gosync "sync"
	"testing"

	"github.com/nhle/rfp-inbound/internal/mailbox"
	"github.com/nhle/rfp-inbound/internal/model"
	"github.com/nhle/rfp-inbound/internal/store"
)

// fakeMailbox is an in-memory mailbox that records every protocol call in
// an event log.
type fakeMailbox struct {
	mu       gosync.Mutex
	events   []string
	messages []mailbox.RawMessage
	seen     map[uint32]bool
	locked   bool
	opens    int

	// validities is the UIDVALIDITY reported by the nth session (1-based);
	// missing entries report 1.
	validities map[int]uint32
	openErrs   map[int]error
	lockErr    error
	fetchErr   error
	seenErrs   map[uint32]error
}

func newFakeMailbox(messages ...mailbox.RawMessage) *fakeMailbox {
	return &fakeMailbox{
		messages:   messages,
		seen:       make(map[uint32]bool),
		validities: make(map[int]uint32),
		openErrs:   make(map[int]error),
		seenErrs:   make(map[uint32]error),
	}
}

func (m *fakeMailbox) record(format string, args ...any) {
	m.events = append(m.events, fmt.Sprintf(format, args...))
}

// Record appends an event from outside the mailbox, such as an extraction
// call, so ordering against protocol calls can be checked.
func (m *fakeMailbox) Record(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("%s", event)
}

func (m *fakeMailbox) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

func (m *fakeMailbox) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

func (m *fakeMailbox) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

func (m *fakeMailbox) Seen(uid uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[uid]
}

func (m *fakeMailbox) Open(_ context.Context, _ model.Credential) (mailbox.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opens++
	m.record("open")
	if err := m.openErrs[m.opens]; err != nil {
		return nil, &mailbox.ConnectionError{Addr: "fake:993", Err: err}
	}

	validity, ok := m.validities[m.opens]
	if !ok {
		validity = 1
	}
	return &fakeSession{mb: m, validity: validity}, nil
}

type fakeSession struct {
	mb       *fakeMailbox
	validity uint32
	closed   bool
}

func (s *fakeSession) LockFolder(_ context.Context, name string) (mailbox.Lock, error) {
	s.mb.mu.Lock()
	defer s.mb.mu.Unlock()

	s.mb.record("lock")
	if s.mb.lockErr != nil {
		return nil, &mailbox.LockError{Mailbox: name, Err: s.mb.lockErr}
	}
	s.mb.locked = true
	return &fakeLock{mb: s.mb, validity: s.validity}, nil
}

func (s *fakeSession) FetchMatching(_ context.Context, f mailbox.Filter, fn func(mailbox.RawMessage) error) error {
	s.mb.mu.Lock()
	s.mb.record("fetch")
	if s.mb.fetchErr != nil {
		s.mb.mu.Unlock()
		return s.mb.fetchErr
	}
	var matching []mailbox.RawMessage
	for _, msg := range s.mb.messages {
		if !strings.Contains(string(msg.Source), f.SubjectContains) {
			continue
		}
		if f.UnseenOnly && s.mb.seen[msg.RemoteID] {
			continue
		}
		matching = append(matching, msg)
	}
	s.mb.mu.Unlock()

	for _, msg := range matching {
		if err := fn(msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeSession) MarkSeen(_ context.Context, uid uint32) error {
	s.mb.mu.Lock()
	defer s.mb.mu.Unlock()

	s.mb.record("seen:%d", uid)
	if err := s.mb.seenErrs[uid]; err != nil {
		return &mailbox.FlagError{RemoteID: uid, Err: err}
	}
	s.mb.seen[uid] = true
	return nil
}

func (s *fakeSession) Close() error {
	s.mb.mu.Lock()
	defer s.mb.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.mb.locked = false
	s.mb.record("close")
	return nil
}

type fakeLock struct {
	mb       *fakeMailbox
	validity uint32
	released bool
}

func (l *fakeLock) Release() {
	l.mb.mu.Lock()
	defer l.mb.mu.Unlock()

	if l.released {
		return
	}
	l.released = true
	l.mb.locked = false
	l.mb.record("release")
}

func (l *fakeLock) UIDValidity() uint32 { return l.validity }

// reply builds a raw vendor reply.
func reply(uid uint32, from, subject, body string) mailbox.RawMessage {
	src := fmt.Sprintf("From: %s\r\nTo: buyer@corp.test\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from, subject, body)
	return mailbox.RawMessage{RemoteID: uid, Source: []byte(src)}
}

// fakeExtractor returns a fixed extraction, optionally panicking on given
// calls (1-based), and flags any call made while the mailbox is locked.
type fakeExtractor struct {
	t  *testing.T
	mb *fakeMailbox

	mu      gosync.Mutex
	calls   int
	panicOn map[int]bool
	bodies  []string
}

func (e *fakeExtractor) Extract(_ context.Context, body string) model.Extraction {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.bodies = append(e.bodies, body)
	e.mu.Unlock()

	e.mb.Record("extract")
	if e.mb.Locked() {
		e.t.Errorf("extraction call %d made while the mailbox is locked", call)
	}
	if e.panicOn[call] {
		panic("extraction service exploded")
	}
	return model.Extraction{Price: fmt.Sprintf("$%d00", call), Timeline: "2 weeks", Terms: "Net 30"}
}

func (e *fakeExtractor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// watchedStore flags any gate-path store call made while the mailbox is
// locked.
type watchedStore struct {
	store.Store
	t  *testing.T
	mb *fakeMailbox
}

func (w watchedStore) check(op string) {
	w.mb.Record("store:" + op)
	if w.mb.Locked() {
		w.t.Errorf("store %s called while the mailbox is locked", op)
	}
}

func (w watchedStore) FindVendorByEmail(ctx context.Context, email string) (*model.Vendor, error) {
	w.check("FindVendorByEmail")
	return w.Store.FindVendorByEmail(ctx, email)
}

func (w watchedStore) FindRequestByID(ctx context.Context, id string) (*model.Request, error) {
	w.check("FindRequestByID")
	return w.Store.FindRequestByID(ctx, id)
}

func (w watchedStore) FindProposal(ctx context.Context, requestID, vendorID string) (*model.Proposal, error) {
	w.check("FindProposal")
	return w.Store.FindProposal(ctx, requestID, vendorID)
}

func (w watchedStore) InsertProposal(ctx context.Context, p model.Proposal) (*model.Proposal, error) {
	w.check("InsertProposal")
	return w.Store.InsertProposal(ctx, p)
}

// staticCreds is a fixed credential source.
type staticCreds model.Credential

func (c staticCreds) Credential() model.Credential { return model.Credential(c) }

var (
	validCreds = staticCreds{Host: "imap.test", Port: 993, TLS: true, Username: "buyer@corp.test", Secret: "pw"}
	noCreds    = staticCreds{Host: "imap.test", Port: 993, TLS: true}

	errNetwork = errors.New("connection reset by peer")
)
