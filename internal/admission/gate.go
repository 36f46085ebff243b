// Package admission decides whether a correlated vendor reply becomes a
// proposal and persists it when it does.
package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gologme/log"

	"github.com/nhle/rfp-inbound/internal/logging"
	"github.com/nhle/rfp-inbound/internal/model"
	"github.com/nhle/rfp-inbound/internal/store"
)

// Outcome is the result of trying to admit a reply.
type Outcome int

const (
	// Created means a new proposal was persisted.
	Created Outcome = iota
	// Eligible means resolution succeeded and the reply can be admitted.
	Eligible
	// Duplicate means the vendor already has a proposal for the request.
	Duplicate
	// UnknownVendor means no vendor is registered for the sender address.
	UnknownVendor
	// UnknownRequest means the referenced request does not exist.
	UnknownRequest
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Eligible:
		return "eligible"
	case Duplicate:
		return "duplicate"
	case UnknownVendor:
		return "unknown vendor"
	case UnknownRequest:
		return "unknown request"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Skipped reports whether the outcome leaves the store unchanged.
func (o Outcome) Skipped() bool {
	return o != Created && o != Eligible
}

// Resolution carries the entities a reply was resolved against.
type Resolution struct {
	Vendor  *model.Vendor
	Request *model.Request
}

// Gate is the only write path for proposals.
type Gate struct {
	store store.Store
	log   *log.Logger
}

// New creates a Gate over s. A nil logger discards output.
func New(s store.Store, logger *log.Logger) *Gate {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Gate{store: s, log: logger}
}

// Resolve looks up the vendor by exact sender address, then the request,
// then checks for an existing proposal. It returns Eligible with a filled
// Resolution when the reply may be admitted. Lookup misses are outcomes,
// not errors; only store failures are returned as errors.
func (g *Gate) Resolve(ctx context.Context, requestID, sender string) (Resolution, Outcome, error) {
	sender = strings.TrimSpace(sender)

	vendor, err := g.store.FindVendorByEmail(ctx, sender)
	if errors.Is(err, store.ErrNotFound) {
		g.log.Infof("no vendor registered for %s", sender)
		return Resolution{}, UnknownVendor, nil
	}
	if err != nil {
		return Resolution{}, 0, fmt.Errorf("resolving vendor %s: %w", sender, err)
	}

	request, err := g.store.FindRequestByID(ctx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		g.log.Infof("reply from %s references unknown request %s", sender, requestID)
		return Resolution{}, UnknownRequest, nil
	}
	if err != nil {
		return Resolution{}, 0, fmt.Errorf("resolving request %s: %w", requestID, err)
	}

	res := Resolution{Vendor: vendor, Request: request}

	_, err = g.store.FindProposal(ctx, request.ID, vendor.ID)
	switch {
	case err == nil:
		g.log.Infof("proposal from %s for request %s already exists", vendor.Name, request.ID)
		return res, Duplicate, nil
	case errors.Is(err, store.ErrNotFound):
		return res, Eligible, nil
	default:
		return Resolution{}, 0, fmt.Errorf("checking existing proposal: %w", err)
	}
}

// Admit persists a proposal for a resolved reply. A concurrent insert for
// the same pair is reported as Duplicate rather than as an error.
func (g *Gate) Admit(ctx context.Context, res Resolution, rawText string, ext model.Extraction) (Outcome, error) {
	if res.Vendor == nil || res.Request == nil {
		return 0, errors.New("admitting proposal: unresolved vendor or request")
	}

	p, err := g.store.InsertProposal(ctx, model.Proposal{
		RequestID: res.Request.ID,
		VendorID:  res.Vendor.ID,
		RawText:   rawText,
		Price:     ext.Price,
		Timeline:  ext.Timeline,
		Terms:     ext.Terms,
	})
	if errors.Is(err, store.ErrDuplicateProposal) {
		g.log.Infof("proposal from %s for request %s lost an insert race", res.Vendor.Name, res.Request.ID)
		return Duplicate, nil
	}
	if err != nil {
		return 0, fmt.Errorf("inserting proposal: %w", err)
	}

	g.log.Infof("created proposal %s from %s for request %s", p.ID, res.Vendor.Name, res.Request.ID)
	return Created, nil
}
