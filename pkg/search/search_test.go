package search

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/dms-client/pkg/paging"
)

func intPtr(i int) *int { return &i }

func TestCompose(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		filters  Request
		metadata map[string]any
	}{
		{"trimmed text", "  policy  ", Request{}, map[string]any{"query": "policy"}},
		{"blank text", "   ", Request{}, nil},
		{"empty everything", "", Request{Metadata: map[string]any{}}, nil},
		{"existing keys kept", "invoice", Request{Metadata: map[string]any{"region": "eu"}}, map[string]any{"region": "eu", "query": "invoice"}},
		{"query overwritten", "new", Request{Metadata: map[string]any{"query": "old"}}, map[string]any{"query": "new"}},
		{"blank text keeps filters", " ", Request{Metadata: map[string]any{"query": "old"}}, map[string]any{"query": "old"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compose(tt.text, tt.filters)
			assert.Equal(t, tt.metadata, got.Metadata)
		})
	}
}

func TestCompose_PassesOtherFieldsThrough(t *testing.T) {
	filters := Request{
		DocumentType:   "invoice",
		DateFrom:       "2026-01-01",
		DateTo:         "2026-02-01",
		IncludeDeleted: true,
		Page:           intPtr(2),
		PageSize:       intPtr(50),
	}
	got := Compose("x", filters)

	assert.Equal(t, "invoice", got.DocumentType)
	assert.Equal(t, "2026-01-01", got.DateFrom)
	assert.Equal(t, "2026-02-01", got.DateTo)
	assert.True(t, got.IncludeDeleted)
	assert.Equal(t, 2, *got.Page)
	assert.Equal(t, 50, *got.PageSize)
}

func TestCompose_PureAndIdempotent(t *testing.T) {
	filters := Request{Metadata: map[string]any{"region": "eu"}, Page: intPtr(1)}

	first := Compose(" invoice ", filters)
	second := Compose(" invoice ", filters)
	assert.Equal(t, first, second)

	assert.Equal(t, map[string]any{"region": "eu"}, filters.Metadata, "input metadata untouched")

	*first.Page = 9
	assert.Equal(t, 1, *filters.Page, "output shares nothing with input")
}

func TestCompose_OmitsEmptyMetadataOnWire(t *testing.T) {
	data, err := json.Marshal(Compose("  ", Request{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	data, err = json.Marshal(Compose("policy", Request{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"metadata":{"query":"policy"}}`, string(data))
}

func TestRequest_WithPage(t *testing.T) {
	r := Request{}.WithPage(paging.Params{Page: 3, PageSize: 500})
	assert.Equal(t, 3, *r.Page)
	assert.Equal(t, paging.MaxPageSize, *r.PageSize)
}

func FuzzCompose(f *testing.F) {
	f.Add("  policy ", "region", "eu")
	f.Add("", "", "")
	f.Fuzz(func(t *testing.T, text, key, value string) {
		filters := Request{}
		if key != "" {
			filters.Metadata = map[string]any{key: value}
		}
		a := Compose(text, filters)
		b := Compose(text, filters)
		assert.Equal(t, a, b)
		if a.Metadata != nil {
			assert.NotEmpty(t, a.Metadata)
		}
	})
}
