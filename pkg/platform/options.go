package platform

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/txn2/dms-client/pkg/credential"
)

// Options configures the platform.
type Options struct {
	// Config is the client configuration.
	Config *Config

	// CredentialStore (optional, created from config if not provided).
	CredentialStore credential.Store

	// Transport (optional) replaces the HTTP round tripper under the
	// bearer-token authorizer.
	Transport http.RoundTripper

	// DB is the audit archive database (optional, opened from
	// audit_archive.dsn if not provided).
	DB *sql.DB

	// Now overrides the clock used for token expiry and retention.
	Now func() time.Time
}

// Option is a functional option for configuring the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithCredentialStore sets the durable credential store.
func WithCredentialStore(store credential.Store) Option {
	return func(o *Options) {
		o.CredentialStore = store
	}
}

// WithTransport sets the HTTP round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *Options) {
		o.Transport = rt
	}
}

// WithDB sets the audit archive database connection.
func WithDB(db *sql.DB) Option {
	return func(o *Options) {
		o.DB = db
	}
}

// WithNow sets the clock.
func WithNow(now func() time.Time) Option {
	return func(o *Options) {
		o.Now = now
	}
}
