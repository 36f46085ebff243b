package credential

import (
	"github.com/gologme/log"

	"github.com/nhle/rfp-inbound/internal/logging"
	"github.com/nhle/rfp-inbound/internal/model"
)

// SecretStore is the subset of Keyring used for resolution.
type SecretStore interface {
	Get(key string) (string, error)
}

// Resolver builds the mailbox credential for each run. Secrets are read on
// every call so a credential stored mid-process is picked up.
type Resolver struct {
	cfg     model.IMAPConfig
	secrets SecretStore
	log     *log.Logger
}

// NewResolver creates a Resolver. secrets may be nil when no keyring is
// available.
func NewResolver(cfg model.IMAPConfig, secrets SecretStore, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Resolver{cfg: cfg, secrets: secrets, log: logger}
}

// Credential returns the configured credential. The password from the
// environment or config wins; otherwise the keyring entry for the user is
// used. A credential without username or secret is returned as-is and is
// not an error; callers check Present.
func (r *Resolver) Credential() model.Credential {
	cred := model.Credential{
		Host:     r.cfg.Host,
		Port:     r.cfg.Port,
		TLS:      r.cfg.TLS,
		Username: r.cfg.Username,
		Secret:   r.cfg.Password,
	}

	if cred.Username == "" || cred.Secret != "" || r.secrets == nil {
		return cred
	}

	secret, err := r.secrets.Get(Key(cred.Username))
	if err != nil {
		r.log.Warnf("reading keyring secret for %s: %v", cred.Username, err)
		return cred
	}
	cred.Secret = secret
	return cred
}
