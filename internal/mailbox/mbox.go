package mailbox

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	mboxlib "github.com/emersion/go-mbox"
	"github.com/gologme/log"

	"github.com/nhle/rfp-inbound/internal/logging"
	"github.com/nhle/rfp-inbound/internal/model"
)

// MboxDialer serves a local mbox export as a read-only mailbox. Remote ids
// are 1-based message positions in the file and MarkSeen reports ErrReadOnly.
type MboxDialer struct {
	path string
	log  *log.Logger
}

// NewMboxDialer creates a dialer for the mbox file at path.
func NewMboxDialer(path string, logger *log.Logger) *MboxDialer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &MboxDialer{path: path, log: logger}
}

// Open checks that the file is readable. Credentials are ignored.
func (d *MboxDialer) Open(_ context.Context, _ model.Credential) (Session, error) {
	info, err := os.Stat(d.path)
	if err != nil {
		return nil, &ConnectionError{Addr: d.path, Err: err}
	}
	if info.IsDir() {
		return nil, &ConnectionError{Addr: d.path, Err: errors.New("is a directory")}
	}
	d.log.Debugf("opened mbox %s (%d bytes)", d.path, info.Size())
	return &mboxSession{path: d.path, log: d.log}, nil
}

type mboxSession struct {
	path   string
	log    *log.Logger
	closed bool
}

func (s *mboxSession) LockFolder(_ context.Context, name string) (Lock, error) {
	if s.closed {
		return nil, &LockError{Mailbox: name, Err: errors.New("session closed")}
	}
	return noopLock{}, nil
}

func (s *mboxSession) FetchMatching(
	ctx context.Context,
	f Filter,
	fn func(RawMessage) error,
) error {
	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	for idx := 1; ; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Debugf("read %d messages from %s", idx-1, s.path)
				return nil
			}
			return fmt.Errorf("mbox message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return fmt.Errorf("mbox message %d read: %w", idx, err)
		}

		if f.SubjectContains != "" && !strings.Contains(rawSubject(raw), f.SubjectContains) {
			continue
		}

		if err := fn(RawMessage{RemoteID: uint32(idx), Source: raw}); err != nil {
			return err
		}
	}
}

func (s *mboxSession) MarkSeen(_ context.Context, remoteID uint32) error {
	return &FlagError{RemoteID: remoteID, Err: ErrReadOnly}
}

func (s *mboxSession) Close() error {
	s.closed = true
	return nil
}

// rawSubject decodes the Subject header without parsing the body.
func rawSubject(raw []byte) string {
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return ""
	}
	mh := mail.Header{Header: message.Header{Header: h}}
	subject, err := mh.Subject()
	if err != nil {
		return h.Get("Subject")
	}
	return subject
}

type noopLock struct{}

func (noopLock) Release()            {}
func (noopLock) UIDValidity() uint32 { return 0 }
