package mailbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nhle/rfp-inbound/internal/model"
)

const sampleMbox = `From sales@acme.test Mon Jan  1 10:00:00 2024
From: sales@acme.test
Subject: Re: Laptops [RFP-REF: abc123]

Quote: $10k

From news@spam.test Mon Jan  1 11:00:00 2024
From: news@spam.test
Subject: Weekly newsletter

Nothing to see

From bids@globex.test Mon Jan  1 12:00:00 2024
From: bids@globex.test
Subject: Re: Laptops [RFP-REF:abc123]

Quote: $9k
`

func writeMbox(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inbox.mbox")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing mbox: %v", err)
	}
	return path
}

func TestMboxSession_FetchMatching(t *testing.T) {
	ctx := context.Background()
	dialer := NewMboxDialer(writeMbox(t, sampleMbox), nil)

	session, err := dialer.Open(ctx, model.Credential{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer session.Close()

	lock, err := session.LockFolder(ctx, "INBOX")
	if err != nil {
		t.Fatalf("LockFolder() error = %v", err)
	}
	defer lock.Release()

	var got []RawMessage
	err = session.FetchMatching(ctx, Filter{SubjectContains: "[RFP-REF:"}, func(m RawMessage) error {
		got = append(got, m)
		return nil
	})
	if err != nil {
		t.Fatalf("FetchMatching() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("FetchMatching() returned %d messages, want 2", len(got))
	}
	if got[0].RemoteID != 1 || got[1].RemoteID != 3 {
		t.Errorf("remote ids = %d, %d; want 1, 3", got[0].RemoteID, got[1].RemoteID)
	}

	parsed, err := Parse(got[1].Source)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Sender != "bids@globex.test" {
		t.Errorf("second sender = %q", parsed.Sender)
	}
	if err := session.MarkSeen(ctx, got[0].RemoteID); !errors.Is(err, ErrReadOnly) {
		t.Errorf("MarkSeen() error = %v, want ErrReadOnly", err)
	}
}

func TestMboxDialer_MissingFile(t *testing.T) {
	dialer := NewMboxDialer(filepath.Join(t.TempDir(), "nope.mbox"), nil)

	_, err := dialer.Open(context.Background(), model.Credential{})
	if !IsConnectionError(err) {
		t.Fatalf("Open() error = %v, want ConnectionError", err)
	}
}

func TestMboxLock_ReleaseIsIdempotent(t *testing.T) {
	session, err := NewMboxDialer(writeMbox(t, sampleMbox), nil).Open(context.Background(), model.Credential{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	lock, err := session.LockFolder(context.Background(), "INBOX")
	if err != nil {
		t.Fatalf("LockFolder() error = %v", err)
	}

	lock.Release()
	_ = session.Close()
	lock.Release()
	if err := session.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if _, err := session.LockFolder(context.Background(), "INBOX"); !IsLockError(err) {
		t.Errorf("LockFolder() after Close error = %v, want LockError", err)
	}
}
