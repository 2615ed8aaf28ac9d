// Package mcptools exposes the document management client as MCP tools.
// Every tool except dms_session_info is gated by the navigation guards, so
// an agent sees the same unauthorized and forbidden outcomes as a user.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/dms-client/pkg/auth"
	"github.com/txn2/dms-client/pkg/dmserr"
	"github.com/txn2/dms-client/pkg/document"
	"github.com/txn2/dms-client/pkg/guard"
	"github.com/txn2/dms-client/pkg/legalhold"
	"github.com/txn2/dms-client/pkg/paging"
	"github.com/txn2/dms-client/pkg/retention"
	"github.com/txn2/dms-client/pkg/search"
)

// Tool names.
const (
	ToolSearch          = "dms_search"
	ToolRetentionStatus = "dms_retention_status"
	ToolLegalHolds      = "dms_legal_holds"
	ToolVersionHistory  = "dms_version_history"
	ToolSessionInfo     = "dms_session_info"
)

// Route each gated tool is evaluated against. Configured routes override the
// role a route requires, so they apply to tools too.
var toolRoutes = map[string]string{
	ToolSearch:          "search",
	ToolRetentionStatus: "admin/retention",
	ToolLegalHolds:      "legal/holds",
	ToolVersionHistory:  "governance/version-history",
}

// Searcher runs document searches. client.Client implements it.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (search.Result, error)
}

// Documents answers per-document questions. document.Service implements it.
type Documents interface {
	RetentionStatus(ctx context.Context, id string) (retention.Status, error)
	Versions(ctx context.Context, id string) ([]document.Version, error)
}

// Navigator evaluates a navigation. guard.Navigator implements it.
type Navigator interface {
	Navigate(path string) guard.Decision
}

// Config configures a Toolkit.
type Config struct {
	Search    Searcher
	Documents Documents
	Holds     legalhold.Ledger
	Session   guard.Authorizer
	Navigator Navigator
}

// Toolkit registers the document management tools.
type Toolkit struct {
	search    Searcher
	documents Documents
	holds     legalhold.Ledger
	session   guard.Authorizer
	navigator Navigator
}

// New creates a Toolkit. Every dependency is required.
func New(cfg Config) (*Toolkit, error) {
	var missing []string
	if cfg.Search == nil {
		missing = append(missing, "search")
	}
	if cfg.Documents == nil {
		missing = append(missing, "documents")
	}
	if cfg.Holds == nil {
		missing = append(missing, "holds")
	}
	if cfg.Session == nil {
		missing = append(missing, "session")
	}
	if cfg.Navigator == nil {
		missing = append(missing, "navigator")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("mcptools: missing %s", strings.Join(missing, ", "))
	}
	return &Toolkit{
		search:    cfg.Search,
		documents: cfg.Documents,
		holds:     cfg.Holds,
		session:   cfg.Session,
		navigator: cfg.Navigator,
	}, nil
}

// Tools returns the names of the tools RegisterTools adds.
func (*Toolkit) Tools() []string {
	return []string{ToolSearch, ToolRetentionStatus, ToolLegalHolds, ToolVersionHistory, ToolSessionInfo}
}

type searchInput struct {
	Query          string         `json:"query,omitempty"`
	DocumentType   string         `json:"document_type,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	DateFrom       string         `json:"date_from,omitempty"`
	DateTo         string         `json:"date_to,omitempty"`
	IncludeDeleted bool           `json:"include_deleted,omitempty"`
	Page           int            `json:"page,omitempty"`
	PageSize       int            `json:"page_size,omitempty"`
}

type documentInput struct {
	DocumentID string `json:"document_id"`
}

type legalHoldsInput struct {
	CaseReference string `json:"case_reference,omitempty"`
	DocumentID    string `json:"document_id,omitempty"`
}

type sessionInfoInput struct{}

// sessionInfo is the dms_session_info payload.
type sessionInfo struct {
	*auth.AuthorizationContext
	Allowed map[string]bool `json:"tools_allowed"`
}

// RegisterTools adds the tools to s.
func (t *Toolkit) RegisterTools(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name: ToolSearch,
		Description: "Search documents. query is free text matched by the server; " +
			"document_type, metadata and the date range narrow the result. Returns one page.",
	}, t.handleSearch)

	mcp.AddTool(s, &mcp.Tool{
		Name: ToolRetentionStatus,
		Description: "Report a document's retention: expiry date, days remaining, active legal holds " +
			"and whether it may be permanently deleted. Requires the administrator role.",
	}, t.handleRetentionStatus)

	mcp.AddTool(s, &mcp.Tool{
		Name: ToolLegalHolds,
		Description: "List legal holds. With document_id, returns that document's full hold history; " +
			"otherwise the active holds, optionally for one case_reference. Requires the legal_officer role.",
	}, t.handleLegalHolds)

	mcp.AddTool(s, &mcp.Tool{
		Name:        ToolVersionHistory,
		Description: "List a document's versions, newest first. Requires the compliance_officer role.",
	}, t.handleVersionHistory)

	mcp.AddTool(s, &mcp.Tool{
		Name: ToolSessionInfo,
		Description: "Describe the current session: whether a credential is present, its subject, " +
			"roles and expiry, and which tools it may call. Call this first.",
	}, t.handleSessionInfo)
}

func (t *Toolkit) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, any, error) {
	if err := t.authorize(ToolSearch); err != nil {
		return errorResult(err), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}

	req := search.Compose(in.Query, search.Request{
		DocumentType:   in.DocumentType,
		Metadata:       in.Metadata,
		DateFrom:       in.DateFrom,
		DateTo:         in.DateTo,
		IncludeDeleted: in.IncludeDeleted,
	}).WithPage(paging.Params{Page: in.Page, PageSize: in.PageSize})

	result, err := t.search.Search(ctx, req)
	if err != nil {
		return errorResult(err), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	return jsonResult(result)
}

func (t *Toolkit) handleRetentionStatus(ctx context.Context, _ *mcp.CallToolRequest, in documentInput) (*mcp.CallToolResult, any, error) {
	if err := t.authorize(ToolRetentionStatus); err != nil {
		return errorResult(err), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	if strings.TrimSpace(in.DocumentID) == "" {
		return errorResult(dmserr.New(dmserr.KindValidation, "document_id is required")), nil, nil
	}

	status, err := t.documents.RetentionStatus(ctx, in.DocumentID)
	if err != nil {
		return errorResult(err), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	return jsonResult(status)
}

func (t *Toolkit) handleLegalHolds(ctx context.Context, _ *mcp.CallToolRequest, in legalHoldsInput) (*mcp.CallToolResult, any, error) {
	if err := t.authorize(ToolLegalHolds); err != nil {
		return errorResult(err), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}

	var (
		holds []legalhold.LegalHold
		err   error
	)
	if id := strings.TrimSpace(in.DocumentID); id != "" {
		holds, err = t.holds.History(ctx, id)
	} else {
		holds, err = t.holds.ListActive(ctx, strings.TrimSpace(in.CaseReference))
	}
	if err != nil {
		return errorResult(err), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	if holds == nil {
		holds = []legalhold.LegalHold{}
	}
	return jsonResult(holds)
}

func (t *Toolkit) handleVersionHistory(ctx context.Context, _ *mcp.CallToolRequest, in documentInput) (*mcp.CallToolResult, any, error) {
	if err := t.authorize(ToolVersionHistory); err != nil {
		return errorResult(err), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	if strings.TrimSpace(in.DocumentID) == "" {
		return errorResult(dmserr.New(dmserr.KindValidation, "document_id is required")), nil, nil
	}

	versions, err := t.documents.Versions(ctx, in.DocumentID)
	if err != nil {
		return errorResult(err), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	return jsonResult(versions)
}

func (t *Toolkit) handleSessionInfo(_ context.Context, _ *mcp.CallToolRequest, _ sessionInfoInput) (*mcp.CallToolResult, any, error) {
	info := sessionInfo{
		AuthorizationContext: t.session.Current(),
		Allowed:              make(map[string]bool, len(toolRoutes)),
	}
	for tool := range toolRoutes {
		info.Allowed[tool] = t.authorize(tool) == nil
	}
	return jsonResult(info)
}

// authorize runs the guards for the tool's route.
func (t *Toolkit) authorize(tool string) error {
	d := t.navigator.Navigate(toolRoutes[tool])
	if d.Allowed() {
		return nil
	}
	slog.Warn("tool call refused", "tool", tool, "target", d.Target, "reason", d.Reason)
	return d.Err()
}

// errorResult renders err with its kind so the agent can tell a missing
// session from a policy refusal.
func errorResult(err error) *mcp.CallToolResult {
	payload := map[string]string{"error": err.Error()}
	var e *dmserr.Error
	if errors.As(err, &e) {
		payload["kind"] = string(e.Kind)
		payload["reason"] = e.Reason
	}
	data, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
		IsError: true,
	}
}

// jsonResult renders v as indented JSON text content.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encoding result: %w", err)), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}
