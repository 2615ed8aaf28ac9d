package platform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/txn2/dms-client/pkg/audit"
	auditpg "github.com/txn2/dms-client/pkg/audit/postgres"
	"github.com/txn2/dms-client/pkg/auth"
	"github.com/txn2/dms-client/pkg/client"
	"github.com/txn2/dms-client/pkg/credential"
	"github.com/txn2/dms-client/pkg/database/migrate"
	"github.com/txn2/dms-client/pkg/doctype"
	"github.com/txn2/dms-client/pkg/document"
	"github.com/txn2/dms-client/pkg/guard"
)

// Platform is the client facade. It owns the single credential holder
// that every other component reads from.
type Platform struct {
	config    *Config
	lifecycle *Lifecycle

	// Session
	holder    *credential.Holder
	resolver  *auth.Resolver
	navigator *guard.Navigator

	// Backend
	client    *client.Client
	catalog   *doctype.Catalog
	documents *document.Service

	// Audit
	archive *auditpg.Store
}

// New creates a new platform instance. Nothing touches the network, the
// credential file or the database until Start.
func New(opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, errors.New("config is required")
	}
	if err := options.Config.Validate(); err != nil {
		return nil, err
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	p := &Platform{
		config:    options.Config,
		lifecycle: NewLifecycle(),
	}

	if err := p.initializeComponents(options); err != nil {
		return nil, fmt.Errorf("initializing components: %w", err)
	}

	return p, nil
}

// initializeComponents initializes all platform components.
func (p *Platform) initializeComponents(opts *Options) error {
	p.initSession(opts)
	if err := p.initBackend(opts); err != nil {
		return err
	}
	return p.initArchive(opts)
}

// initSession builds the credential holder and everything that reads it.
func (p *Platform) initSession(opts *Options) {
	store := opts.CredentialStore
	if store == nil {
		store = p.createCredentialStore()
	}
	p.holder = credential.NewHolder(store)
	p.lifecycle.Add("credential", p.holder.Load, nil)

	p.resolver = auth.NewResolver(p.holder, auth.ResolverConfig{
		Extractor:                 p.config.ClaimsExtractor(),
		InsecureSkipAuthorization: p.config.Auth.InsecureSkipAuthorization,
		Now:                       opts.Now,
	})
	p.navigator = guard.NewNavigator(p.resolver, p.config.RouteTable())
}

func (p *Platform) createCredentialStore() credential.Store {
	if p.config.Credential.Ephemeral {
		return credential.NewMemoryStore()
	}
	return credential.NewFileStore(p.config.Credential.Path)
}

// initBackend builds the REST client and the services layered on it.
func (p *Platform) initBackend(opts *Options) error {
	c, err := client.New(client.Config{
		BaseURL:     p.config.API.BaseURL,
		Timeout:     p.config.API.Timeout,
		UserAgent:   p.config.API.UserAgent,
		Credentials: p.holder,
		Transport:   opts.Transport,
	})
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	p.client = c
	p.catalog = doctype.NewCatalog(c)

	svc, err := document.NewService(document.ServiceConfig{
		Remote: c,
		Holds:  c,
		Server: c,
		Types:  p.catalog,
		Now:    opts.Now,
	})
	if err != nil {
		return fmt.Errorf("creating document service: %w", err)
	}
	p.documents = svc
	return nil
}

// initArchive opens the audit archive when enabled. Migrations run at Start.
func (p *Platform) initArchive(opts *Options) error {
	cfg := p.config.AuditArchive
	if !cfg.Enabled {
		return nil
	}

	db := opts.DB
	if db == nil {
		var err error
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return fmt.Errorf("opening audit archive: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	p.archive = auditpg.New(db, auditpg.Config{RetentionDays: cfg.RetentionDays})
	p.lifecycle.Add("audit archive", func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("connecting to audit archive: %w", err)
		}
		return migrate.Run(db)
	}, nil)
	return nil
}

// Start loads the stored credential and prepares the audit archive.
func (p *Platform) Start(ctx context.Context) error {
	if err := p.lifecycle.Start(ctx); err != nil {
		return err
	}
	slog.Debug("platform started",
		"base_url", p.config.API.BaseURL,
		"signed_in", p.holder.Snapshot().Present(),
		"audit_archive", p.archive != nil,
	)
	return nil
}

// Stop stops the platform.
func (p *Platform) Stop(ctx context.Context) error {
	return p.lifecycle.Stop(ctx)
}

// Config returns the platform configuration.
func (p *Platform) Config() *Config {
	return p.config
}

// Credentials returns the credential holder.
func (p *Platform) Credentials() *credential.Holder {
	return p.holder
}

// Resolver returns the role resolver.
func (p *Platform) Resolver() *auth.Resolver {
	return p.resolver
}

// Navigator returns the guarded navigator.
func (p *Platform) Navigator() *guard.Navigator {
	return p.navigator
}

// Client returns the REST client.
func (p *Platform) Client() *client.Client {
	return p.client
}

// Catalog returns the document type catalog.
func (p *Platform) Catalog() *doctype.Catalog {
	return p.catalog
}

// Documents returns the document lifecycle service.
func (p *Platform) Documents() *document.Service {
	return p.documents
}

// Archive returns the audit archive, or nil when it is disabled.
func (p *Platform) Archive() audit.Archive {
	if p.archive == nil {
		return nil
	}
	return p.archive
}

// CleanupArchive deletes archived records past audit_archive.retention_days.
func (p *Platform) CleanupArchive(ctx context.Context) (int64, error) {
	if p.archive == nil {
		return 0, errors.New("audit archive is not enabled")
	}
	n, err := p.archive.Cleanup(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleaning up audit archive: %w", err)
	}
	return n, nil
}

// Ping checks the dependencies the platform holds open. It is a no-op when
// the audit archive is disabled.
func (p *Platform) Ping(ctx context.Context) error {
	if p.archive == nil {
		return nil
	}
	return p.archive.Ping(ctx)
}

// closeResource closes a resource and appends any error.
func closeResource(errs *[]error, closer Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		*errs = append(*errs, err)
	}
}

// Close closes all platform resources.
func (p *Platform) Close() error {
	var errs []error

	if err := p.Stop(context.Background()); err != nil {
		errs = append(errs, err)
	}
	if p.archive != nil {
		closeResource(&errs, p.archive)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing platform: %v", errs)
	}
	return nil
}
