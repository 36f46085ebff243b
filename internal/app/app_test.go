package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/rfp-inbound/internal/credential"
	"github.com/nhle/rfp-inbound/internal/extract"
	"github.com/nhle/rfp-inbound/internal/mailbox"
	"github.com/nhle/rfp-inbound/internal/model"
)

const replayMbox = `From sales@acme.test Mon Jan  1 10:00:00 2024
From: Acme Sales <sales@acme.test>
Subject: Re: New Request for Proposal: Laptops [RFP-REF: abc123]

We can deliver 20 laptops for $24,000 within 3 weeks.

From stranger@elsewhere.test Mon Jan  1 11:00:00 2024
From: stranger@elsewhere.test
Subject: Re: Laptops [RFP-REF: abc123]

Unsolicited offer.
`

func testConfig(t *testing.T) *model.AppConfig {
	t.Helper()
	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	cfg.DB.Path = ":memory:"
	cfg.Extract.APIKey = ""
	cfg.Log.Level = "debug"
	return cfg
}

func TestReplayPipelineEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.mbox")
	if err := os.WriteFile(path, []byte(replayMbox), 0o600); err != nil {
		t.Fatalf("writing mbox: %v", err)
	}

	var logs bytes.Buffer
	a, err := New(testConfig(t), Options{
		LogOutput: &logs,
		Dialer:    mailbox.NewMboxDialer(path, nil),
		Creds:     FixedCredential{Username: path, Secret: "replay"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	vendor, err := a.Store.CreateVendor(ctx, model.Vendor{Name: "Acme", Email: "sales@acme.test"})
	if err != nil {
		t.Fatalf("CreateVendor() error = %v", err)
	}
	if _, err := a.Store.CreateRequest(ctx, model.Request{ID: "abc123", Title: "Laptops", Status: model.RequestStatusSent}); err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}

	summary := a.Syncer.Run(ctx)
	if summary.Status != model.RunCompleted || summary.ProcessedCount != 1 || summary.Fetched != 2 {
		t.Fatalf("summary = %+v, want Completed, 1 processed, 2 fetched", summary)
	}
	if summary.Acknowledged != 0 {
		t.Errorf("Acknowledged = %d, want 0 for a read-only mbox", summary.Acknowledged)
	}

	p, err := a.Store.FindProposal(ctx, "abc123", vendor.ID)
	if err != nil {
		t.Fatalf("FindProposal() error = %v", err)
	}
	if !strings.Contains(p.RawText, "$24,000") {
		t.Errorf("RawText = %q", p.RawText)
	}
	if p.Price != extract.Fallback.Price || p.Terms != extract.Fallback.Terms {
		t.Errorf("without an API key the fallback extraction is stored, got %+v", p)
	}

	if again := a.Syncer.Run(ctx); again.ProcessedCount != 0 {
		t.Errorf("replaying twice processed %d, want 0", again.ProcessedCount)
	}

	runs, err := a.Store.ListRuns(ctx, 5)
	if err != nil || len(runs) != 2 {
		t.Errorf("ListRuns() = %d runs, %v; want 2", len(runs), err)
	}

	if !strings.Contains(logs.String(), "[ ") {
		t.Errorf("expected component-prefixed logs, got %q", logs.String())
	}
}

func TestNewSkipsWithoutCredential(t *testing.T) {
	cfg := testConfig(t)
	cfg.IMAP.Username = ""
	cfg.IMAP.Password = ""

	a, err := New(cfg, Options{
		LogOutput: &bytes.Buffer{},
		Keyring:   credential.Wrap(keyring.NewArrayKeyring(nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	summary := a.Syncer.Run(context.Background())
	if summary.Status != model.RunSkipped || summary.ProcessedCount != 0 {
		t.Errorf("summary = %+v, want Skipped", summary)
	}
}

func TestNewUsesKeyringSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.IMAP.Username = "buyer@corp.test"
	cfg.IMAP.Password = ""
	cfg.IMAP.Host = "127.0.0.1"
	cfg.IMAP.Port = 1
	cfg.IMAP.TLS = false
	cfg.IMAP.DialTimeoutSec = 1

	ring := credential.Wrap(keyring.NewArrayKeyring(nil))
	if err := ring.Set(credential.Key("buyer@corp.test"), "pw"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	a, err := New(cfg, Options{LogOutput: &bytes.Buffer{}, Keyring: ring})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	// With a credential present the run reaches the dial and fails there.
	summary := a.Syncer.Run(context.Background())
	if summary.Status != model.RunFailed {
		t.Errorf("summary = %+v, want Failed on an unreachable server", summary)
	}
}
