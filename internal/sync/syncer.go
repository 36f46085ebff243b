// Package sync drives ingestion runs: fetch candidate replies, release the
// mailbox, process them offline, then acknowledge them in a new session.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/gologme/log"

	"github.com/nhle/rfp-inbound/internal/admission"
	"github.com/nhle/rfp-inbound/internal/correlate"
	"github.com/nhle/rfp-inbound/internal/extract"
	"github.com/nhle/rfp-inbound/internal/logging"
	"github.com/nhle/rfp-inbound/internal/mailbox"
	"github.com/nhle/rfp-inbound/internal/model"
)

// Runner performs one ingestion run.
type Runner interface {
	Run(ctx context.Context) model.RunSummary
}

// CredentialSource supplies the mailbox credential for a run.
type CredentialSource interface {
	Credential() model.Credential
}

// RunRecorder persists run summaries.
type RunRecorder interface {
	RecordRun(ctx context.Context, s model.RunSummary) error
}

// Deps are the collaborators of a Syncer. Runs is optional.
type Deps struct {
	Dialer    mailbox.Dialer
	Creds     CredentialSource
	Extractor extract.Extractor
	Gate      *admission.Gate
	Runs      RunRecorder
}

// Options tunes a Syncer.
type Options struct {
	Mailbox      string
	UnseenOnly   bool
	FetchTimeout time.Duration
	AckTimeout   time.Duration
	Logger       *log.Logger
}

const (
	reasonNoCredential = "mailbox credentials not configured"
	reasonInProgress   = "run already in progress"
)

// Syncer is the ingestion orchestrator. Overlapping calls to Run in the
// same process are refused rather than queued.
type Syncer struct {
	deps Deps
	opts Options
	log  *log.Logger

	running gosync.Mutex
	now     func() time.Time
}

// NewSyncer creates a Syncer, defaulting the mailbox to INBOX and the
// phase timeouts to 120s for fetch and 30s for acknowledge.
func NewSyncer(deps Deps, opts Options) *Syncer {
	if opts.Mailbox == "" {
		opts.Mailbox = "INBOX"
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 120 * time.Second
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Syncer{deps: deps, opts: opts, log: opts.Logger, now: time.Now}
}

// Run performs one complete run and returns its summary. It never returns
// an error; fatal problems are reported as RunFailed.
func (s *Syncer) Run(ctx context.Context) model.RunSummary {
	if !s.running.TryLock() {
		s.log.Warnf("sync requested while another run is in progress")
		now := s.now()
		return model.RunSummary{Status: model.RunSkipped, Reason: reasonInProgress, StartedAt: now, FinishedAt: now}
	}
	defer s.running.Unlock()

	started := s.now()
	summary := s.run(ctx)
	summary.StartedAt = started
	summary.FinishedAt = s.now()

	s.log.Infof("sync %s: processed=%d fetched=%d acknowledged=%d",
		summary.Status, summary.ProcessedCount, summary.Fetched, summary.Acknowledged)

	if s.deps.Runs != nil {
		if err := s.deps.Runs.RecordRun(context.WithoutCancel(ctx), summary); err != nil {
			s.log.Warnf("recording run history: %v", err)
		}
	}

	return summary
}

func (s *Syncer) run(ctx context.Context) model.RunSummary {
	cred := s.deps.Creds.Credential()
	if !cred.Present() {
		s.log.Warnf("mailbox credentials missing, skipping sync")
		return model.RunSummary{Status: model.RunSkipped, Reason: reasonNoCredential}
	}

	s.log.Infof("fetching candidate replies from %s", s.opts.Mailbox)
	messages, validity, err := s.fetch(ctx, cred)
	if err != nil {
		s.log.Errorf("fetch phase failed: %v", err)
		return model.RunSummary{Status: model.RunFailed, Error: err.Error()}
	}
	s.log.Infof("found %d candidate replies, mailbox released", len(messages))

	processed := 0
	for _, msg := range messages {
		created, err := s.process(ctx, msg)
		if err != nil {
			s.log.Warnf("skipping message %d: %v", msg.RemoteID, err)
			continue
		}
		if created {
			processed++
		}
	}

	summary := model.RunSummary{
		Status:         model.RunCompleted,
		ProcessedCount: processed,
		Fetched:        len(messages),
	}

	if len(messages) > 0 {
		summary.Acknowledged = s.acknowledge(ctx, cred, messages, validity)
	}

	return summary
}

// fetch materializes every matching message. The lock and session are
// released before it returns, on every path.
func (s *Syncer) fetch(ctx context.Context, cred model.Credential) ([]mailbox.RawMessage, uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	session, err := s.deps.Dialer.Open(ctx, cred)
	if err != nil {
		return nil, 0, err
	}
	defer s.closeSession(session)

	lock, err := session.LockFolder(ctx, s.opts.Mailbox)
	if err != nil {
		return nil, 0, err
	}
	defer lock.Release()

	filter := mailbox.Filter{
		SubjectContains: correlate.FilterSubstring,
		UnseenOnly:      s.opts.UnseenOnly,
	}

	var messages []mailbox.RawMessage
	err = session.FetchMatching(ctx, filter, func(m mailbox.RawMessage) error {
		if len(m.Source) == 0 {
			return nil
		}
		messages = append(messages, m)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("fetching messages: %w", err)
	}

	return messages, lock.UIDValidity(), nil
}

// process handles one message and reports whether a proposal was created.
// Panics are converted to errors so one bad message cannot end the run.
func (s *Syncer) process(ctx context.Context, msg mailbox.RawMessage) (created bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			created = false
			err = fmt.Errorf("panic while processing: %v", r)
		}
	}()

	parsed, err := mailbox.Parse(msg.Source)
	if err != nil {
		return false, err
	}

	ref, ok := correlate.Match(parsed.Subject, parsed.Sender)
	if !ok {
		s.log.Debugf("message %d (%q) carries no usable reference", msg.RemoteID, parsed.Subject)
		return false, nil
	}

	s.log.Infof("checking reply %q from %s", parsed.Subject, ref.Sender)

	res, outcome, err := s.deps.Gate.Resolve(ctx, ref.RequestID, ref.Sender)
	if err != nil {
		return false, err
	}
	if outcome.Skipped() {
		s.log.Infof("skipping reply from %s for request %s: %s", ref.Sender, ref.RequestID, outcome)
		return false, nil
	}

	ext := s.deps.Extractor.Extract(ctx, parsed.Body)

	outcome, err = s.deps.Gate.Admit(ctx, res, parsed.Body, ext)
	if err != nil {
		return false, err
	}
	return outcome == admission.Created, nil
}

// acknowledge flags every fetched message as seen in a fresh session and
// returns how many were flagged. Failures are logged only.
func (s *Syncer) acknowledge(
	ctx context.Context,
	cred model.Credential,
	messages []mailbox.RawMessage,
	validity uint32,
) int {
	ctx, cancel := context.WithTimeout(ctx, s.opts.AckTimeout)
	defer cancel()

	s.log.Infof("reconnecting to acknowledge %d messages", len(messages))

	session, err := s.deps.Dialer.Open(ctx, cred)
	if err != nil {
		s.log.Errorf("acknowledge phase: %v", err)
		return 0
	}
	defer s.closeSession(session)

	lock, err := session.LockFolder(ctx, s.opts.Mailbox)
	if err != nil {
		s.log.Errorf("acknowledge phase: %v", err)
		return 0
	}
	defer lock.Release()

	if validity != 0 && lock.UIDValidity() != validity {
		s.log.Warnf("UIDVALIDITY of %s changed (%d -> %d), not flagging messages",
			s.opts.Mailbox, validity, lock.UIDValidity())
		return 0
	}

	acked := 0
	for _, msg := range messages {
		if err := session.MarkSeen(ctx, msg.RemoteID); err != nil {
			if errors.Is(err, mailbox.ErrReadOnly) {
				s.log.Infof("%s is read-only, leaving messages unflagged", s.opts.Mailbox)
				break
			}
			s.log.Warnf("%v", err)
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break
			}
			continue
		}
		acked++
	}

	s.log.Infof("acknowledged %d of %d messages", acked, len(messages))
	return acked
}

func (s *Syncer) closeSession(session mailbox.Session) {
	if err := session.Close(); err != nil {
		s.log.Debugf("closing mailbox session: %v", err)
	}
}
