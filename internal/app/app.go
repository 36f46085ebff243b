// Package app wires configuration, storage and the ingestion pipeline into
// a ready-to-run Syncer.
package app

import (
	"io"
	"os"

	"github.com/gologme/log"

	"github.com/nhle/rfp-inbound/internal/admission"
	"github.com/nhle/rfp-inbound/internal/credential"
	"github.com/nhle/rfp-inbound/internal/extract"
	"github.com/nhle/rfp-inbound/internal/logging"
	"github.com/nhle/rfp-inbound/internal/mailbox"
	"github.com/nhle/rfp-inbound/internal/model"
	"github.com/nhle/rfp-inbound/internal/store"
	appsync "github.com/nhle/rfp-inbound/internal/sync"
)

// Options overrides parts of the default wiring.
type Options struct {
	// LogOutput receives all log lines. Defaults to stderr.
	LogOutput io.Writer

	// Dialer replaces the IMAP dialer, e.g. with an mbox replay.
	Dialer mailbox.Dialer

	// Creds replaces keyring-backed credential resolution.
	Creds appsync.CredentialSource

	// Keyring replaces the system keyring.
	Keyring *credential.Keyring
}

// App holds the long-lived components of a process.
type App struct {
	Config  *model.AppConfig
	Store   *store.SQLiteStore
	Syncer  *appsync.Syncer
	Keyring *credential.Keyring

	logOut io.Writer
}

// New opens the database and builds the pipeline described by cfg.
func New(cfg *model.AppConfig, opts Options) (*App, error) {
	a := &App{Config: cfg, logOut: opts.LogOutput}
	if a.logOut == nil {
		a.logOut = os.Stderr
	}
	logger := a.Logger("app")

	st, err := store.NewSQLiteStore(cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	a.Store = st

	a.Keyring = opts.Keyring
	if a.Keyring == nil && opts.Creds == nil {
		ring, err := credential.OpenSystem()
		if err != nil {
			logger.Debugf("system keyring unavailable: %v", err)
		} else {
			a.Keyring = ring
		}
	}

	creds := opts.Creds
	if creds == nil {
		var secrets credential.SecretStore
		if a.Keyring != nil {
			secrets = a.Keyring
		}
		creds = credential.NewResolver(cfg.IMAP, secrets, a.Logger("credential"))
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = mailbox.NewIMAPDialer(mailbox.IMAPOptions{
			DialTimeout:     model.Seconds(cfg.IMAP.DialTimeoutSec, 0),
			GreetingTimeout: model.Seconds(cfg.IMAP.GreetingTimeoutSec, 0),
			Logger:          a.Logger("imap"),
		})
	}

	extractor := extract.New(extract.Options{
		BaseURL:       cfg.Extract.BaseURL,
		Model:         cfg.Extract.Model,
		APIKey:        cfg.Extract.APIKey,
		Timeout:       model.Seconds(cfg.Extract.TimeoutSec, 0),
		RatePerMinute: cfg.Extract.RatePerMinute,
		MaxRetries:    cfg.Extract.MaxRetries,
		Logger:        a.Logger("extract"),
	})

	a.Syncer = appsync.NewSyncer(appsync.Deps{
		Dialer:    dialer,
		Creds:     creds,
		Extractor: extractor,
		Gate:      admission.New(st, a.Logger("admission")),
		Runs:      st,
	}, appsync.Options{
		Mailbox:      cfg.IMAP.Mailbox,
		UnseenOnly:   cfg.IMAP.UnseenOnly,
		FetchTimeout: model.Seconds(cfg.IMAP.FetchTimeoutSec, 0),
		AckTimeout:   model.Seconds(cfg.IMAP.AckTimeoutSec, 0),
		Logger:       a.Logger("sync"),
	})

	return a, nil
}

// Logger returns a logger for component at the configured level.
func (a *App) Logger(component string) *log.Logger {
	return logging.New(a.logOut, component, a.Config.Log.Level)
}

// Close releases the database.
func (a *App) Close() error {
	return a.Store.Close()
}

// FixedCredential is a credential source that always returns itself.
type FixedCredential model.Credential

// Credential implements sync.CredentialSource.
func (c FixedCredential) Credential() model.Credential {
	return model.Credential(c)
}
