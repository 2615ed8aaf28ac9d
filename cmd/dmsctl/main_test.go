package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/dms-client/pkg/audit"
	"github.com/txn2/dms-client/pkg/auth"
	"github.com/txn2/dms-client/pkg/dmserr"
	"github.com/txn2/dms-client/pkg/retention"
)

func testToken(t *testing.T, roles ...string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "alice",
		"roles": roles,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// backend fakes the endpoints the commands call.
func backend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{
			"results":    []map[string]any{{"id": "doc-1", "createdAt": time.Now()}},
			"totalCount": 1,
			"totalPages": 1,
		})
	})
	mux.HandleFunc("GET /api/v1/legal-holds", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []map[string]any{{
			"id":            "hold-1",
			"documentId":    "doc-1",
			"caseReference": r.URL.Query().Get("caseReference"),
			"placedAt":      time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		}})
	})
	mux.HandleFunc("GET /api/v1/audit/logs", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"content": []map[string]any{
				{"id": "a-1", "action": "DOCUMENT_VIEWED", "timestamp": time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
				{"id": "a-2", "action": "DOCUMENT_DELETED", "timestamp": time.Date(2026, 1, 3, 3, 4, 5, 0, time.UTC)},
			},
			"totalElements": 2,
			"number":        0,
			"size":          50,
			"totalPages":    1,
		})
	})
	mux.HandleFunc("GET /api/v1/groups", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"content": []map[string]any{
				{"id": "g-2", "name": "platform", "displayName": "Platform", "parentGroupId": "g-1"},
				{"id": "g-1", "name": "engineering", "displayName": "Engineering"},
				{"id": "g-3", "name": "archive", "parentGroupId": "gone"},
			},
			"totalElements": 3,
			"number":        0,
			"size":          100,
			"totalPages":    1,
		})
	})
	// Document responses carry the type's name and no deletion fields;
	// soft-delete state is only visible through retention-status.
	mux.HandleFunc("GET /api/v1/documents/doc-1", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"id":                 "doc-1",
			"documentTypeName":   "invoice",
			"currentVersion":     1,
			"createdAt":          time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			"hasActiveLegalHold": false,
		})
	})
	mux.HandleFunc("GET /api/v1/documents/doc-1/retention-status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"documentId": "doc-1", "softDeleted": true, "eligibleForHardDelete": true})
	})
	mux.HandleFunc("GET /api/v1/document-types/active", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []map[string]any{{"id": "t-1", "name": "invoice", "retentionDays": 365, "active": true}})
	})
	mux.HandleFunc("GET /api/v1/legal-holds/document/doc-1", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, []map[string]any{})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "api:\n  base_url: " + baseURL + "/api/v1\n" +
		"credential:\n  path: " + filepath.Join(dir, "credential.yaml") + "\n"
	path := filepath.Join(dir, "dms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

type result struct {
	stdout string
	stderr string
	err    error
}

func dmsctl(config string, stdin string, args ...string) result {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append([]string{"-config", config}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestRun_Version(t *testing.T) {
	var stdout bytes.Buffer
	err := run(context.Background(), []string{"-version"}, strings.NewReader(""), &stdout, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "dmsctl version dev\n", stdout.String())
}

func TestRun_Usage(t *testing.T) {
	err := run(context.Background(), nil, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, errUsage)

	var stderr bytes.Buffer
	err = run(context.Background(), []string{"-h"}, strings.NewReader(""), &bytes.Buffer{}, &stderr)
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr.String(), "audit-export")
}

func TestRun_UnknownCommand(t *testing.T) {
	res := dmsctl(writeConfig(t, "http://127.0.0.1:1"), "", "frobnicate")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), `unknown command "frobnicate"`)
}

func TestRun_MissingConfig(t *testing.T) {
	res := dmsctl(filepath.Join(t.TempDir(), "missing.yaml"), "", "whoami")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "reading config file")
}

func TestSessionFlow(t *testing.T) {
	config := writeConfig(t, backend(t).URL)

	res := dmsctl(config, "", "whoami")
	require.NoError(t, res.err)
	assert.Equal(t, "not signed in\n", res.stdout)

	res = dmsctl(config, "", "search", "invoice")
	require.Error(t, res.err)
	assert.Equal(t, dmserr.KindAuthenticationMissing, dmserr.KindOf(res.err))

	res = dmsctl(config, testToken(t, auth.RoleDocumentUser)+"\n", "login")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "subject:    alice")
	assert.Contains(t, res.stdout, "roles:      "+auth.RoleDocumentUser)

	// The credential survives into the next invocation.
	res = dmsctl(config, "", "search", "-m", "region=eu", "invoice")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, `"doc-1"`)

	res = dmsctl(config, "", "retention", "doc-1")
	require.Error(t, res.err)
	assert.Equal(t, dmserr.KindAuthorizationDenied, dmserr.KindOf(res.err))

	res = dmsctl(config, "", "logout")
	require.NoError(t, res.err)
	assert.Equal(t, "signed out\n", res.stdout)

	res = dmsctl(config, "", "whoami")
	require.NoError(t, res.err)
	assert.Equal(t, "not signed in\n", res.stdout)
}

func TestLogin_RejectsMalformedToken(t *testing.T) {
	config := writeConfig(t, backend(t).URL)

	res := dmsctl(config, "not-a-token\n", "login")
	require.Error(t, res.err)
	assert.Equal(t, dmserr.KindMalformedCredential, dmserr.KindOf(res.err))

	res = dmsctl(config, "", "login")
	require.Error(t, res.err)
	assert.Equal(t, dmserr.KindValidation, dmserr.KindOf(res.err))
}

func TestHolds_List(t *testing.T) {
	config := writeConfig(t, backend(t).URL)
	require.NoError(t, dmsctl(config, "", "login", "-token", testToken(t, auth.RoleLegalOfficer)).err)

	res := dmsctl(config, "", "holds", "-case", "CASE-9")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, `"caseReference": "CASE-9"`)

	res = dmsctl(config, "", "holds", "bogus")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unknown holds action")
}

func TestGroups_Tree(t *testing.T) {
	config := writeConfig(t, backend(t).URL)

	require.NoError(t, dmsctl(config, "", "login", "-token", testToken(t, auth.RoleDocumentUser)).err)
	res := dmsctl(config, "", "groups")
	require.Error(t, res.err)
	assert.Equal(t, dmserr.KindAuthorizationDenied, dmserr.KindOf(res.err))

	require.NoError(t, dmsctl(config, "", "login", "-token", testToken(t, auth.RoleAdministrator)).err)
	res = dmsctl(config, "", "groups")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "archive (g-3)\nEngineering (g-1)\n  Platform (g-2)\n", res.stdout)
}

func TestAuditExport_Local(t *testing.T) {
	config := writeConfig(t, backend(t).URL)
	require.NoError(t, dmsctl(config, "", "login", "-token", testToken(t, auth.RoleComplianceOfficer)).err)

	out := filepath.Join(t.TempDir(), "audit.csv")
	res := dmsctl(config, "", "audit-export", "-o", out, "-start", "2026-01-03T00:00:00Z")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stderr, "exported 1 records")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(audit.CSVHeader, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "a-2,"))
}

func TestAuditExport_ArchiveDisabled(t *testing.T) {
	config := writeConfig(t, backend(t).URL)
	require.NoError(t, dmsctl(config, "", "login", "-token", testToken(t, auth.RoleComplianceOfficer)).err)

	res := dmsctl(config, "", "audit-export", "-archive")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "audit archive is not enabled")
}

func TestAuditExport_BadTime(t *testing.T) {
	config := writeConfig(t, backend(t).URL)
	require.NoError(t, dmsctl(config, "", "login", "-token", testToken(t, auth.RoleComplianceOfficer)).err)

	res := dmsctl(config, "", "audit-export", "-start", "yesterday")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "-start")
}

func TestMetadataFlag(t *testing.T) {
	m := metadataFlag{}
	require.NoError(t, m.Set("region=eu"))
	require.NoError(t, m.Set(" owner = bob"))
	assert.Equal(t, metadataFlag{"region": "eu", "owner": " bob"}, m)
	assert.Error(t, m.Set("novalue"))
	assert.Error(t, m.Set("=x"))
}

func TestRetention_Local(t *testing.T) {
	config := writeConfig(t, backend(t).URL)
	require.NoError(t, dmsctl(config, "", "login", "-token", testToken(t, auth.RoleAdministrator)).err)

	res := dmsctl(config, "", "retention", "doc-1")
	require.NoError(t, res.err, res.stderr)

	var statuses []retention.Status
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &statuses))
	require.Len(t, statuses, 1)
	s := statuses[0]
	assert.Equal(t, "invoice", s.DocumentType)
	assert.Equal(t, 365, s.DefaultRetentionDays)
	assert.True(t, s.IsSoftDeleted)
	assert.True(t, s.IsEligibleForHardDelete)
	require.NotNil(t, s.RetentionExpiresAt)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), s.RetentionExpiresAt.UTC())
}
