package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/txn2/dms-client/pkg/dmserr"
	"github.com/txn2/dms-client/pkg/legalhold"
)

// Place puts a hold on a document and returns the hold id.
func (c *Client) Place(ctx context.Context, req legalhold.PlaceRequest) (string, error) {
	hold, err := c.PlaceHold(ctx, req)
	if err != nil {
		return "", err
	}
	return hold.ID, nil
}

// PlaceHold puts a hold on a document and returns the created record.
func (c *Client) PlaceHold(ctx context.Context, req legalhold.PlaceRequest) (legalhold.LegalHold, error) {
	if err := req.Validate(); err != nil {
		return legalhold.LegalHold{}, err
	}
	var hold legalhold.LegalHold
	err := c.do(ctx, call{method: http.MethodPost, tmpl: legalHoldsPath, json: req}, &hold)
	return hold, err
}

// Release ends a hold. A hold the server reports as already released comes
// back as a PolicyViolation with ReasonHoldReleased.
func (c *Client) Release(ctx context.Context, holdID, releaseReason string) error {
	_, err := c.ReleaseHold(ctx, holdID, releaseReason)
	return err
}

// ReleaseHold ends a hold and returns the released record.
func (c *Client) ReleaseHold(ctx context.Context, holdID, releaseReason string) (legalhold.LegalHold, error) {
	var hold legalhold.LegalHold
	err := c.do(ctx, call{
		method: http.MethodDelete,
		tmpl:   legalHoldReleasePath,
		path:   map[string]string{"id": holdID},
		query:  map[string]string{"reason": releaseReason},
	}, &hold)
	if err != nil {
		return legalhold.LegalHold{}, releaseError(err)
	}
	return hold, nil
}

// releaseError maps the validation failure the server reports for a hold
// that is no longer active. Its message is localized, so only the code is
// read.
func releaseError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) &&
		apiErr.StatusCode == http.StatusBadRequest &&
		apiErr.Response.ErrorCode == CodeValidationFailed {
		return dmserr.Wrap(dmserr.KindPolicyViolation, dmserr.ReasonHoldReleased, apiErr)
	}
	return err
}

// ListActive returns the active holds, optionally for one case.
func (c *Client) ListActive(ctx context.Context, caseReference string) ([]legalhold.LegalHold, error) {
	var holds []legalhold.LegalHold
	err := c.do(ctx, call{
		method: http.MethodGet,
		tmpl:   legalHoldsPath,
		query:  map[string]string{"caseReference": caseReference},
	}, &holds)
	if err != nil {
		return nil, err
	}
	legalhold.SortNewestFirst(holds)
	return holds, nil
}

// History returns every hold placed on a document, newest first.
func (c *Client) History(ctx context.Context, documentID string) ([]legalhold.LegalHold, error) {
	var holds []legalhold.LegalHold
	err := c.do(ctx, call{
		method: http.MethodGet,
		tmpl:   legalHoldDocumentPath,
		path:   map[string]string{"id": documentID},
	}, &holds)
	if err != nil {
		return nil, err
	}
	legalhold.SortNewestFirst(holds)
	return holds, nil
}

// Verify interface compliance.
var _ legalhold.Ledger = (*Client)(nil)
