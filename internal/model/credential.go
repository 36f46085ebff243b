package model

// Credential addresses and authenticates against the remote mailbox. An
// empty Username or Secret means no mailbox is configured.
type Credential struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Secret   string
}

// Present reports whether the credential can be used to log in.
func (c Credential) Present() bool {
	return c.Username != "" && c.Secret != ""
}
