package store

import (
	"context"
	"errors"

	"github.com/nhle/rfp-inbound/internal/model"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateProposal is returned by InsertProposal when a proposal
	// for the same (request, vendor) pair already exists.
	ErrDuplicateProposal = errors.New("proposal already exists for request and vendor")
)

// Store is the persistence boundary used by the ingestion pipeline.
type Store interface {
	// === Pipeline lookups and writes ===

	FindVendorByEmail(ctx context.Context, email string) (*model.Vendor, error)
	FindRequestByID(ctx context.Context, id string) (*model.Request, error)
	FindProposal(ctx context.Context, requestID, vendorID string) (*model.Proposal, error)

	// InsertProposal persists p. The (request, vendor) uniqueness is
	// enforced atomically; a second insert returns ErrDuplicateProposal.
	InsertProposal(ctx context.Context, p model.Proposal) (*model.Proposal, error)

	// === Reference data ===

	CreateVendor(ctx context.Context, v model.Vendor) (*model.Vendor, error)
	CreateRequest(ctx context.Context, r model.Request) (*model.Request, error)
	ListProposals(ctx context.Context, requestID string) ([]model.Proposal, error)

	// === Run history ===

	RecordRun(ctx context.Context, s model.RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
}
