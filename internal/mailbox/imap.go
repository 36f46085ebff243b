package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	gosync "sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/gologme/log"

	"github.com/nhle/rfp-inbound/internal/logging"
	"github.com/nhle/rfp-inbound/internal/model"
)

// IMAPOptions tunes connection establishment.
type IMAPOptions struct {
	DialTimeout     time.Duration
	GreetingTimeout time.Duration

	// TLSConfig overrides the implicit TLS configuration. ServerName
	// defaults to the credential host.
	TLSConfig *tls.Config

	Logger *log.Logger
}

// IMAPDialer opens sessions against an IMAP server.
type IMAPDialer struct {
	opts IMAPOptions
}

// NewIMAPDialer creates a dialer, filling unset timeouts with 30s.
func NewIMAPDialer(opts IMAPOptions) *IMAPDialer {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 30 * time.Second
	}
	if opts.GreetingTimeout <= 0 {
		opts.GreetingTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &IMAPDialer{opts: opts}
}

// Open connects, waits for the greeting, and logs in. When cred.TLS is set
// the connection uses implicit TLS; otherwise it is plaintext, which is
// only suitable for local servers. The connection is torn down as soon as
// ctx is done.
func (d *IMAPDialer) Open(ctx context.Context, cred model.Credential) (Session, error) {
	addr := net.JoinHostPort(cred.Host, strconv.Itoa(cred.Port))

	netDialer := &net.Dialer{Timeout: d.opts.DialTimeout}

	var (
		conn net.Conn
		err  error
	)
	if cred.TLS {
		tlsConfig := &tls.Config{ServerName: cred.Host}
		if d.opts.TLSConfig != nil {
			tlsConfig = d.opts.TLSConfig.Clone()
			if tlsConfig.ServerName == "" {
				tlsConfig.ServerName = cred.Host
			}
		}
		tlsDialer := &tls.Dialer{NetDialer: netDialer, Config: tlsConfig}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = netDialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}

	client := imapclient.New(conn, nil)
	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	// The client's reader owns the conn deadlines, so the greeting is bounded
	// by closing the client instead.
	greetCtx, cancelGreet := context.WithTimeout(ctx, d.opts.GreetingTimeout)
	stopGreet := context.AfterFunc(greetCtx, func() {
		_ = client.Close()
	})
	err = client.WaitGreeting()
	fired := !stopGreet()
	cancelGreet()
	if err == nil && fired {
		err = context.DeadlineExceeded
	}
	if err != nil {
		stopClose()
		_ = client.Close()
		return nil, &ConnectionError{Addr: addr, Err: fmt.Errorf("waiting for greeting: %w", err)}
	}

	if err := client.Login(cred.Username, cred.Secret).Wait(); err != nil {
		stopClose()
		_ = client.Close()
		return nil, &ConnectionError{Addr: addr, Auth: true, Err: err}
	}

	d.opts.Logger.Debugf("IMAP session opened to %s as %s", addr, cred.Username)

	return &imapSession{
		client:    client,
		addr:      addr,
		ctx:       ctx,
		stopClose: stopClose,
		log:       d.opts.Logger,
	}, nil
}

type imapSession struct {
	client    *imapclient.Client
	addr      string
	ctx       context.Context
	stopClose func() bool
	log       *log.Logger

	closeOnce gosync.Once
	mu        gosync.Mutex
	closed    bool
}

func (s *imapSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *imapSession) LockFolder(_ context.Context, name string) (Lock, error) {
	data, err := s.client.Select(name, nil).Wait()
	if err != nil {
		return nil, &LockError{Mailbox: name, Err: err}
	}

	s.log.Debugf("selected %s (%d messages, uidvalidity %d)", name, data.NumMessages, data.UIDValidity)

	return &imapLock{session: s, name: name, validity: data.UIDValidity}, nil
}

func (s *imapSession) FetchMatching(
	_ context.Context,
	f Filter,
	fn func(RawMessage) error,
) error {
	criteria := &imap.SearchCriteria{}
	if f.SubjectContains != "" {
		criteria.Header = []imap.SearchCriteriaHeaderField{
			{Key: "Subject", Value: f.SubjectContains},
		}
	}
	if f.UnseenOnly {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}

	searchData, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil
	}

	// Peek so the fetch itself never sets \Seen; acknowledgement is a
	// separate phase.
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			s.log.Warnf("collecting fetched message: %v", err)
			continue
		}

		raw := buf.FindBodySection(bodySection)
		if raw == nil {
			s.log.Warnf("message UID %d returned no body", buf.UID)
			continue
		}

		if err := fn(RawMessage{RemoteID: uint32(buf.UID), Source: raw}); err != nil {
			return err
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return fmt.Errorf("fetching messages: %w", err)
	}

	return nil
}

func (s *imapSession) MarkSeen(_ context.Context, remoteID uint32) error {
	if s.isClosed() {
		return &FlagError{RemoteID: remoteID, Err: errors.New("session closed")}
	}

	storeCmd := s.client.Store(imap.UIDSetNum(imap.UID(remoteID)), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)

	if err := storeCmd.Close(); err != nil {
		return &FlagError{RemoteID: remoteID, Err: err}
	}
	return nil
}

func (s *imapSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.stopClose()
		if s.ctx.Err() == nil {
			if err = s.client.Logout().Wait(); err != nil {
				err = fmt.Errorf("logging out from %s: %w", s.addr, err)
			}
		}
		_ = s.client.Close()
		s.log.Debugf("IMAP session to %s closed", s.addr)
	})
	return err
}

type imapLock struct {
	session  *imapSession
	name     string
	validity uint32
	once     gosync.Once
}

// Release unselects the folder when the server supports UNSELECT. Logging
// out releases it too, so a missing capability or a dead session is fine.
func (l *imapLock) Release() {
	l.once.Do(func() {
		if l.session.isClosed() {
			return
		}
		if !l.session.client.Caps().Has(imap.CapUnselect) {
			return
		}
		if err := l.session.client.Unselect().Wait(); err != nil {
			l.session.log.Debugf("unselecting %s: %v", l.name, err)
		}
	})
}

func (l *imapLock) UIDValidity() uint32 { return l.validity }
