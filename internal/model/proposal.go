package model

import "time"

// Vendor is a supplier that receives requests for proposal and replies by
// email. Vendors are owned by the procurement service; the pipeline only
// looks them up by address.
type Vendor struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Request is an open procurement request (RFP) that vendors reply to.
type Request struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Request status constants.
const (
	RequestStatusDraft = "DRAFT"
	RequestStatusSent  = "SENT"
)

// Extraction holds the structured fields pulled out of a vendor reply.
type Extraction struct {
	Price    string `json:"price"`
	Timeline string `json:"timeline"`
	Terms    string `json:"terms"`
}

// Proposal is a vendor's answer to a request. At most one exists per
// (RequestID, VendorID) pair.
type Proposal struct {
	ID        string    `json:"id" db:"id"`
	RequestID string    `json:"request_id" db:"request_id"`
	VendorID  string    `json:"vendor_id" db:"vendor_id"`
	RawText   string    `json:"raw_text" db:"raw_text"`
	Price     string    `json:"price" db:"price"`
	Timeline  string    `json:"timeline" db:"timeline"`
	Terms     string    `json:"terms" db:"terms"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// VendorName is optionally populated by join queries.
	VendorName string `json:"vendor_name,omitempty" db:"vendor_name"`
}
