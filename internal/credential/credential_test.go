package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"

	"github.com/nhle/rfp-inbound/internal/model"
)

func testConfig(user, password string) model.IMAPConfig {
	return model.IMAPConfig{
		Host:     "imap.gmail.com",
		Port:     993,
		TLS:      true,
		Username: user,
		Password: password,
	}
}

func TestKeyring_SetGetDelete(t *testing.T) {
	k := Wrap(keyring.NewArrayKeyring(nil))

	if got, err := k.Get(Key("buyer@corp.test")); err != nil || got != "" {
		t.Fatalf("Get(missing) = %q, %v; want empty, nil", got, err)
	}

	if err := k.Set(Key("buyer@corp.test"), "s3cret"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := k.Get(Key("buyer@corp.test"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "s3cret" {
		t.Errorf("Get() = %q, want s3cret", got)
	}

	if err := k.Delete(Key("buyer@corp.test")); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, _ := k.Get(Key("buyer@corp.test")); got != "" {
		t.Errorf("Get() after Delete = %q, want empty", got)
	}
}

func TestResolver_Credential(t *testing.T) {
	ring := Wrap(keyring.NewArrayKeyring([]keyring.Item{
		{Key: Key("buyer@corp.test"), Data: []byte("from-keyring")},
	}))

	tests := []struct {
		name        string
		cfg         model.IMAPConfig
		secrets     SecretStore
		wantSecret  string
		wantPresent bool
	}{
		{
			name:        "configured password wins",
			cfg:         testConfig("buyer@corp.test", "from-env"),
			secrets:     ring,
			wantSecret:  "from-env",
			wantPresent: true,
		},
		{
			name:        "keyring fallback",
			cfg:         testConfig("buyer@corp.test", ""),
			secrets:     ring,
			wantSecret:  "from-keyring",
			wantPresent: true,
		},
		{
			name:    "no keyring entry",
			cfg:     testConfig("other@corp.test", ""),
			secrets: ring,
		},
		{
			name: "no username",
			cfg:  testConfig("", ""),
		},
		{
			name:    "keyring unavailable",
			cfg:     testConfig("buyer@corp.test", ""),
			secrets: brokenStore{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewResolver(tt.cfg, tt.secrets, nil).Credential()
			if got.Secret != tt.wantSecret {
				t.Errorf("Secret = %q, want %q", got.Secret, tt.wantSecret)
			}
			if got.Present() != tt.wantPresent {
				t.Errorf("Present() = %v, want %v", got.Present(), tt.wantPresent)
			}
			if got.Host != "imap.gmail.com" || got.Port != 993 || !got.TLS {
				t.Errorf("endpoint = %s:%d tls=%v", got.Host, got.Port, got.TLS)
			}
		})
	}
}

type brokenStore struct{}

func (brokenStore) Get(string) (string, error) {
	return "", errors.New("dbus unavailable")
}
