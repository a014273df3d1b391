package models

import (
	"strings"
	"time"

	id "greengate/pkg/domain"
	dErrors "greengate/pkg/domain-errors"
)

// LocalFallbackPrefix marks partner client IDs minted locally when the
// partner call failed during registration. Records carrying it must be
// resynced before the patient can shop.
const LocalFallbackPrefix = "local-"

// AdminApproval is the operator review state of a patient record.
// Normal flow transitions one way, PENDING to VERIFIED or PENDING to
// REJECTED; an operator reset back to PENDING is allowed.
type AdminApproval string

const (
	ApprovalPending  AdminApproval = "PENDING"
	ApprovalVerified AdminApproval = "VERIFIED"
	ApprovalRejected AdminApproval = "REJECTED"
)

// ParseAdminApproval validates an approval value at trust boundaries.
func ParseAdminApproval(s string) (AdminApproval, error) {
	a := AdminApproval(strings.ToUpper(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "admin approval must be PENDING, VERIFIED or REJECTED")
	}
	return a, nil
}

// IsValid checks the approval is one of the supported enum values.
func (a AdminApproval) IsValid() bool {
	switch a {
	case ApprovalPending, ApprovalVerified, ApprovalRejected:
		return true
	}
	return false
}

func (a AdminApproval) String() string { return string(a) }

// Record is one patient's registration state with the fulfilment partner.
//
// Invariants:
//   - UserID is unique across records (one record per user) and immutable
//   - PartnerClientID is unique; the local-fallback prefix marks records
//     created while the partner was unreachable
//   - IsKYCVerified is set only from partner data, never by user action
//   - CountryCode is captured at registration and changed only by resync
type Record struct {
	ID              id.RecordID   `json:"id"`
	UserID          id.UserID     `json:"user_id"`
	PartnerClientID string        `json:"partner_client_id"`
	CountryCode     string        `json:"country_code"`
	Email           string        `json:"email"`
	FirstName       string        `json:"first_name"`
	LastName        string        `json:"last_name"`
	IsKYCVerified   bool          `json:"is_kyc_verified"`
	AdminApproval   AdminApproval `json:"admin_approval"`
	KYCLink         string        `json:"kyc_link,omitempty"` // empty until the partner issues one, cleared on verification
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// NewRecord constructs a Record in its initial state.
func NewRecord(recordID id.RecordID, userID id.UserID, partnerClientID, countryCode, email string, now time.Time) (*Record, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}
	if partnerClientID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "partner_client_id is required")
	}
	if len(countryCode) != 2 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "country_code must be a two-letter ISO code")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	return &Record{
		ID:              recordID,
		UserID:          userID,
		PartnerClientID: partnerClientID,
		CountryCode:     strings.ToUpper(countryCode),
		Email:           email,
		AdminApproval:   ApprovalPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// IsLocalFallback reports whether this record was created without a partner
// acknowledgment and still needs a resync.
func (r *Record) IsLocalFallback() bool {
	return strings.HasPrefix(r.PartnerClientID, LocalFallbackPrefix)
}

// ApplyVerification folds partner-side verification state into the record.
// The KYC link is cleared once verification completes.
func (r *Record) ApplyVerification(kycVerified bool, kycLink string, now time.Time) {
	r.IsKYCVerified = kycVerified
	if kycVerified {
		r.KYCLink = ""
	} else if kycLink != "" {
		r.KYCLink = kycLink
	}
	r.UpdatedAt = now
}

// ApplyApproval records an operator approval decision.
func (r *Record) ApplyApproval(approval AdminApproval, now time.Time) error {
	if !approval.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid admin approval")
	}
	r.AdminApproval = approval
	r.UpdatedAt = now
	return nil
}
