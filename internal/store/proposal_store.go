package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/rfp-inbound/internal/model"
)

// FindProposal returns the proposal for the (requestID, vendorID) pair, or
// ErrNotFound.
func (s *SQLiteStore) FindProposal(
	ctx context.Context,
	requestID, vendorID string,
) (*model.Proposal, error) {
	var p model.Proposal
	err := s.db.GetContext(ctx, &p,
		"SELECT * FROM proposals WHERE request_id = ? AND vendor_id = ?",
		requestID, vendorID,
	)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("proposal %s/%s", requestID, vendorID))
	}
	return &p, nil
}

// InsertProposal inserts p unless a proposal for the same request and vendor
// already exists, in which case ErrDuplicateProposal is returned. The
// conflict check and the insert are one statement.
func (s *SQLiteStore) InsertProposal(
	ctx context.Context,
	p model.Proposal,
) (*model.Proposal, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO proposals (
			id, request_id, vendor_id, raw_text,
			price, timeline, terms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id, vendor_id) DO NOTHING`,
		p.ID, p.RequestID, p.VendorID, p.RawText,
		p.Price, p.Timeline, p.Terms, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting proposal for %s/%s: %w", p.RequestID, p.VendorID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reading insert result: %w", err)
	}
	if rows == 0 {
		return nil, ErrDuplicateProposal
	}

	return &p, nil
}

// ListProposals returns the proposals for a request with vendor names,
// oldest first.
func (s *SQLiteStore) ListProposals(
	ctx context.Context,
	requestID string,
) ([]model.Proposal, error) {
	var proposals []model.Proposal
	err := s.db.SelectContext(ctx, &proposals, `
		SELECT p.*, COALESCE(v.name, '') AS vendor_name
		FROM proposals p
		LEFT JOIN vendors v ON p.vendor_id = v.id
		WHERE p.request_id = ?
		ORDER BY p.created_at`, requestID)
	if err != nil {
		return nil, fmt.Errorf("querying proposals for request %s: %w", requestID, err)
	}
	return proposals, nil
}
