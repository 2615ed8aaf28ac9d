// Package platform wires the document management client together: the
// credential holder, role resolver, navigation guards, REST client,
// lifecycle service and the optional audit archive.
package platform

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/dms-client/pkg/auth"
	"github.com/txn2/dms-client/pkg/credential"
	"github.com/txn2/dms-client/pkg/guard"
)

// CurrentConfigVersion is the config API version this build reads.
const CurrentConfigVersion = "v1"

const (
	defaultAPITimeout   = 30 * time.Second
	defaultUserAgent    = "dmsctl"
	defaultMCPName      = "dms-client"
	defaultMCPTransport = "stdio"
	defaultMCPAddress   = "127.0.0.1:8090"
	defaultMaxOpenConns = 5
)

// Config holds the complete client configuration.
type Config struct {
	APIVersion   string             `yaml:"apiVersion"`
	API          APIConfig          `yaml:"api"`
	Credential   CredentialConfig   `yaml:"credential"`
	Auth         AuthConfig         `yaml:"auth"`
	Routes       []RouteConfig      `yaml:"routes"`
	AuditArchive AuditArchiveConfig `yaml:"audit_archive"`
	MCP          MCPConfig          `yaml:"mcp"`
}

// APIConfig locates the backend.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// CredentialConfig configures the durable credential store.
type CredentialConfig struct {
	// Path of the credential file. Empty uses the per-user default.
	Path string `yaml:"path"`

	// Ephemeral keeps the credential in memory only.
	Ephemeral bool `yaml:"ephemeral"`
}

// AuthConfig configures role resolution.
type AuthConfig struct {
	RoleClaimPath   string `yaml:"role_claim_path"`
	RolePrefix      string `yaml:"role_prefix"`
	TenantClaimPath string `yaml:"tenant_claim_path"`

	// InsecureSkipAuthorization makes every role check succeed. Local
	// development only.
	InsecureSkipAuthorization bool `yaml:"insecure_skip_authorization"`
}

// RouteConfig adds or overrides a guarded destination.
type RouteConfig struct {
	Path         string `yaml:"path"`
	RequiredRole string `yaml:"required_role"`
	Public       bool   `yaml:"public"`
}

// AuditArchiveConfig configures the local PostgreSQL audit archive.
type AuditArchiveConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DSN           string `yaml:"dsn"`
	MaxOpenConns  int    `yaml:"max_open_conns"`
	RetentionDays int    `yaml:"retention_days"`
}

// MCPConfig configures the MCP server started by "serve".
type MCPConfig struct {
	Name      string `yaml:"name"`
	Version   string `yaml:"version"`
	Transport string `yaml:"transport"`

	// Address is the listen address of the http transport.
	Address string `yaml:"address"`
}

// LoadConfig loads configuration from a file.
// The path is expected to come from command line arguments, controlled by the user.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadConfigBytes(data)
}

// LoadConfigBytes parses configuration from YAML, expanding ${VAR}
// references and applying defaults.
func LoadConfigBytes(data []byte) (*Config, error) {
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.APIVersion != "" && cfg.APIVersion != CurrentConfigVersion {
		return nil, fmt.Errorf("unsupported config apiVersion %q (want %s)", cfg.APIVersion, CurrentConfigVersion)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = CurrentConfigVersion
	}
	cfg.API.BaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.API.BaseURL), "/")
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = defaultAPITimeout
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = defaultUserAgent
	}
	if cfg.Credential.Path == "" && !cfg.Credential.Ephemeral {
		// Left empty when no config dir exists; Validate reports it.
		cfg.Credential.Path, _ = credential.DefaultPath()
	}
	if cfg.Auth.RoleClaimPath == "" {
		cfg.Auth.RoleClaimPath = "roles"
	}
	if cfg.Auth.TenantClaimPath == "" {
		cfg.Auth.TenantClaimPath = "tenant_id"
	}
	if cfg.AuditArchive.MaxOpenConns == 0 {
		cfg.AuditArchive.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.MCP.Name == "" {
		cfg.MCP.Name = defaultMCPName
	}
	if cfg.MCP.Transport == "" {
		cfg.MCP.Transport = defaultMCPTransport
	}
	if cfg.MCP.Address == "" {
		cfg.MCP.Address = defaultMCPAddress
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url is required")
	} else if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		errs = append(errs, "api.base_url must be an http or https URL")
	}
	if c.API.Timeout < 0 {
		errs = append(errs, "api.timeout must not be negative")
	}

	if !c.Credential.Ephemeral && c.Credential.Path == "" {
		errs = append(errs, "credential.path is required unless credential.ephemeral is set")
	}

	for i, r := range c.Routes {
		if strings.Trim(r.Path, "/ ") == "" {
			errs = append(errs, fmt.Sprintf("routes[%d].path is required", i))
		}
		if r.Public && r.RequiredRole != "" {
			errs = append(errs, fmt.Sprintf("routes[%d] cannot be public and require a role", i))
		}
	}

	if c.AuditArchive.Enabled && c.AuditArchive.DSN == "" {
		errs = append(errs, "audit_archive.dsn is required when the archive is enabled")
	}
	if c.AuditArchive.RetentionDays < 0 {
		errs = append(errs, "audit_archive.retention_days must not be negative")
	}

	switch c.MCP.Transport {
	case "stdio", "http":
	default:
		errs = append(errs, fmt.Sprintf("mcp.transport %q must be stdio or http", c.MCP.Transport))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ClaimsExtractor builds the role extractor described by the auth section.
func (c *Config) ClaimsExtractor() *auth.ClaimsExtractor {
	ex := auth.DefaultClaimsExtractor()
	ex.RoleClaimPath = c.Auth.RoleClaimPath
	ex.RolePrefix = c.Auth.RolePrefix
	ex.TenantClaimPath = c.Auth.TenantClaimPath
	return ex
}

// RouteTable returns the default routes with configured routes applied.
// A configured path replaces the default entry of the same path.
func (c *Config) RouteTable() []guard.Destination {
	routes := guard.DefaultRoutes()
	for _, r := range c.Routes {
		dest := guard.Destination{
			Path:         strings.Trim(strings.TrimSpace(r.Path), "/"),
			RequiredRole: r.RequiredRole,
			Public:       r.Public,
		}
		replaced := false
		for i := range routes {
			if routes[i].Path == dest.Path {
				routes[i] = dest
				replaced = true
				break
			}
		}
		if !replaced {
			routes = append(routes, dest)
		}
	}
	return routes
}
