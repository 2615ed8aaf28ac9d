package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	mcpserver "github.com/txn2/dms-client/internal/server"
	"github.com/txn2/dms-client/pkg/audit"
	"github.com/txn2/dms-client/pkg/auth"
	"github.com/txn2/dms-client/pkg/client"
	"github.com/txn2/dms-client/pkg/group"
	"github.com/txn2/dms-client/pkg/legalhold"
	"github.com/txn2/dms-client/pkg/paging"
	"github.com/txn2/dms-client/pkg/retention"
	"github.com/txn2/dms-client/pkg/search"
)

const defaultExpiringWindowDays = 30

func newFlagSet(name string, e *env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func runLogin(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("login", e)
	token := fs.String("token", "", "Bearer token (read from stdin when omitted)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *token == "" {
		line, err := bufio.NewReader(e.stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading token: %w", err)
		}
		*token = strings.TrimSpace(line)
	}

	// Refuse tokens whose claims cannot be read; they would sign in a
	// session that every guard treats as missing.
	if _, err := auth.DecodeClaims(strings.TrimSpace(*token)); err != nil && *token != "" {
		return fmt.Errorf("login: %w", err)
	}
	if err := e.p.Credentials().Login(ctx, *token); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return runWhoami(ctx, e, nil)
}

func runLogout(ctx context.Context, e *env, _ []string) error {
	if err := e.p.Credentials().Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	_, _ = fmt.Fprintln(e.stdout, "signed out")
	return nil
}

func runWhoami(_ context.Context, e *env, _ []string) error {
	snap := e.p.Credentials().Snapshot()
	ac := e.p.Resolver().Current()

	if !ac.IsAuthenticated() {
		if snap.Present() {
			_, _ = fmt.Fprintf(e.stdout, "not signed in (stored credential %s is expired or unreadable)\n", snap.Fingerprint())
			return nil
		}
		_, _ = fmt.Fprintln(e.stdout, "not signed in")
		return nil
	}

	_, _ = fmt.Fprintf(e.stdout, "subject:    %s\n", ac.Subject)
	if ac.TenantID != "" {
		_, _ = fmt.Fprintf(e.stdout, "tenant:     %s\n", ac.TenantID)
	}
	_, _ = fmt.Fprintf(e.stdout, "roles:      %s\n", strings.Join(ac.Roles, ", "))
	if ac.ExpiresAt != nil {
		_, _ = fmt.Fprintf(e.stdout, "expires:    %s\n", ac.ExpiresAt.UTC().Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(e.stdout, "credential: %s\n", snap.Fingerprint())
	if ac.Override {
		_, _ = fmt.Fprintln(e.stdout, "warning:    authorization checks are disabled")
	}
	return nil
}

// metadataFlag collects repeated key=value pairs.
type metadataFlag map[string]any

func (m metadataFlag) String() string { return fmt.Sprint(map[string]any(m)) }

func (m metadataFlag) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("metadata %q must be key=value", v)
	}
	m[strings.TrimSpace(key)] = value
	return nil
}

func runSearch(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("search", e)
	docType := fs.String("type", "", "Document type")
	from := fs.String("from", "", "Created on or after (YYYY-MM-DD)")
	to := fs.String("to", "", "Created on or before (YYYY-MM-DD)")
	deleted := fs.Bool("deleted", false, "Include soft-deleted documents")
	page := fs.Int("page", 0, "Page number, starting at 0")
	size := fs.Int("size", paging.DefaultPageSize, "Page size")
	metadata := metadataFlag{}
	fs.Var(metadata, "m", "Metadata filter key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	req := search.Compose(strings.Join(fs.Args(), " "), search.Request{
		DocumentType:   *docType,
		Metadata:       metadata,
		DateFrom:       *from,
		DateTo:         *to,
		IncludeDeleted: *deleted,
	}).WithPage(paging.Params{Page: *page, PageSize: *size})

	result, err := e.p.Client().Search(ctx, req)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return printJSON(e.stdout, result)
}

func runRetention(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("retention", e)
	fromServer := fs.Bool("server", false, "Ask the server instead of evaluating locally")
	expiring := fs.Int("expiring", 0, "Only show documents whose retention expires within this many days")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		_, _ = fmt.Fprintln(e.stderr, "Usage: dmsctl retention [-server] [-expiring days] <document-id>...")
		return errUsage
	}

	statuses := make([]retention.Status, 0, fs.NArg())
	for _, id := range fs.Args() {
		var (
			s   retention.Status
			err error
		)
		if *fromServer {
			s, err = e.p.Client().RetentionStatus(ctx, id)
		} else {
			s, err = e.p.Documents().RetentionStatus(ctx, id)
		}
		if err != nil {
			return fmt.Errorf("retention %s: %w", id, err)
		}
		statuses = append(statuses, s)
	}

	if *expiring > 0 {
		statuses = retention.Expiring(statuses, time.Now(), time.Duration(*expiring)*24*time.Hour)
	}
	return printJSON(e.stdout, statuses)
}

func runHolds(ctx context.Context, e *env, args []string) error {
	action := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		action, args = args[0], args[1:]
	}

	fs := newFlagSet("holds "+action, e)
	caseRef := fs.String("case", "", "Case reference")
	reason := fs.String("reason", "", "Reason for placing or releasing")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	c := e.p.Client()
	switch action {
	case "list":
		holds, err := c.ListActive(ctx, *caseRef)
		if err != nil {
			return fmt.Errorf("listing holds: %w", err)
		}
		return printJSON(e.stdout, nonNil(holds))
	case "history":
		if fs.NArg() != 1 {
			return fmt.Errorf("holds history: %w", errUsage)
		}
		holds, err := c.History(ctx, fs.Arg(0))
		if err != nil {
			return fmt.Errorf("hold history: %w", err)
		}
		return printJSON(e.stdout, nonNil(holds))
	case "place":
		reqs := make([]legalhold.PlaceRequest, 0, fs.NArg())
		for _, id := range fs.Args() {
			reqs = append(reqs, legalhold.PlaceRequest{DocumentID: id, CaseReference: *caseRef, Reason: *reason})
		}
		ids, err := legalhold.PlaceMany(ctx, c, reqs)
		_ = printJSON(e.stdout, ids)
		return err
	case "release":
		n, err := legalhold.ReleaseMany(ctx, c, fs.Args(), *reason)
		_, _ = fmt.Fprintf(e.stdout, "released %d of %d holds\n", n, fs.NArg())
		return err
	default:
		return fmt.Errorf("unknown holds action %q (list, history, place, release)", action)
	}
}

func nonNil(holds []legalhold.LegalHold) []legalhold.LegalHold {
	if holds == nil {
		return []legalhold.LegalHold{}
	}
	return holds
}

type auditExportOptions struct {
	output   string
	remote   bool
	format   string
	start    string
	end      string
	limit    int
	pageSize int
	archive  bool
	prune    bool
}

func runAuditExport(ctx context.Context, e *env, args []string) error {
	opts := auditExportOptions{}
	fs := newFlagSet("audit-export", e)
	fs.StringVar(&opts.output, "o", "", "Output file (default stdout)")
	fs.BoolVar(&opts.remote, "remote", false, "Let the server render the export")
	fs.StringVar(&opts.format, "format", client.ExportCSV, "Server export format: csv or json (with -remote)")
	fs.StringVar(&opts.start, "start", "", "Earliest timestamp (RFC3339)")
	fs.StringVar(&opts.end, "end", "", "Latest timestamp (RFC3339)")
	fs.IntVar(&opts.limit, "limit", 0, "Maximum records, 0 for all")
	fs.IntVar(&opts.pageSize, "page-size", client.AuditPageSize, "Records fetched per request")
	fs.BoolVar(&opts.archive, "archive", false, "Also save fetched records into the audit archive")
	fs.BoolVar(&opts.prune, "prune", false, "Delete archived records past audit_archive.retention_days")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	start, err := parseTime("start", opts.start)
	if err != nil {
		return err
	}
	end, err := parseTime("end", opts.end)
	if err != nil {
		return err
	}

	w := e.stdout
	if opts.output != "" {
		// #nosec G304 -- output path is from CLI args, controlled by the user
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", opts.output, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if opts.remote {
		n, err := e.p.Client().ExportAudit(ctx, opts.format, start, end, w)
		if err != nil {
			return fmt.Errorf("audit export: %w", err)
		}
		_, _ = fmt.Fprintf(e.stderr, "wrote %d bytes\n", n)
		return nil
	}

	return exportLocal(ctx, e, w, opts, start, end)
}

// exportLocal walks the audit trail and writes CSV itself, optionally
// archiving each page.
func exportLocal(ctx context.Context, e *env, w io.Writer, opts auditExportOptions, start, end *time.Time) error {
	archive := e.p.Archive()
	if (opts.archive || opts.prune) && archive == nil {
		return errors.New("audit archive is not enabled (audit_archive.enabled)")
	}

	exporter := audit.NewExporter(w)
	archived := 0
	err := e.p.Client().EachAuditPage(ctx, opts.pageSize, opts.limit, func(logs []audit.Log) error {
		logs = inRange(logs, start, end)
		if err := exporter.Write(logs); err != nil {
			return err
		}
		if opts.archive {
			n, err := archive.Save(ctx, logs)
			if err != nil {
				return fmt.Errorf("archiving audit page: %w", err)
			}
			archived += n
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("audit export: %w", err)
	}
	if err := exporter.Flush(); err != nil {
		return err
	}

	msg := fmt.Sprintf("exported %d records", exporter.Rows())
	if opts.archive {
		msg += fmt.Sprintf(", %d newly archived", archived)
	}
	if opts.prune {
		n, err := e.p.CleanupArchive(ctx)
		if err != nil {
			return err
		}
		msg += fmt.Sprintf(", %d pruned", n)
	}
	_, _ = fmt.Fprintln(e.stderr, msg)
	return nil
}

func inRange(logs []audit.Log, start, end *time.Time) []audit.Log {
	if start == nil && end == nil {
		return logs
	}
	out := logs[:0:0]
	for _, l := range logs {
		if start != nil && l.Timestamp.Before(*start) {
			continue
		}
		if end != nil && l.Timestamp.After(*end) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func parseTime(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("-%s: %w", name, err)
	}
	return &t, nil
}

func runGroups(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("groups", e)
	asJSON := fs.Bool("json", false, "Print the tree as JSON")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	groups, err := e.p.Client().AllGroups(ctx)
	if err != nil {
		return fmt.Errorf("listing groups: %w", err)
	}
	roots := group.Tree(groups)
	if *asJSON {
		return printJSON(e.stdout, roots)
	}
	for _, root := range roots {
		root.Walk(func(n *group.Node, depth int) {
			name := n.Group.DisplayName
			if name == "" {
				name = n.Group.Name
			}
			_, _ = fmt.Fprintf(e.stdout, "%s%s (%s)\n", strings.Repeat("  ", depth), name, n.Group.ID)
		})
	}
	return nil
}

func runServe(ctx context.Context, e *env, args []string) error {
	cfg := e.p.Config().MCP
	fs := newFlagSet("serve", e)
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio, http")
	fs.StringVar(&cfg.Address, "address", cfg.Address, "Listen address for the http transport")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	s, err := mcpserver.New(e.p)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return mcpserver.Serve(ctx, s, cfg, mcpserver.NewChecker(e.p))
}
