// Package eligibility holds the patient compliance rules that gate shop and
// checkout flows. The evaluation is a pure function over a patient record
// and role flags so any transport or worker can call it without side
// effects.
package eligibility

import "greengate/internal/patient/models"

// Status is the gating outcome for a viewer.
type Status string

const (
	StatusAdminBypass    Status = "admin-bypass"
	StatusNotRegistered  Status = "not-registered"
	StatusSyncRequired   Status = "sync-required"
	StatusVerified       Status = "verified"
	StatusRejected       Status = "rejected"
	StatusActionRequired Status = "action-required"
	StatusPending        Status = "pending"
)

// RoleFlags carries the resolved role assignments relevant to gating.
type RoleFlags struct {
	IsAdmin     bool
	IsModerator bool
}

// Result is the full gating outcome.
type Result struct {
	Status      Status `json:"status"`
	CanCheckout bool   `json:"can_checkout"`
	Message     string `json:"message,omitempty"`
}

// Eligible reports whether the result permits shopping and checkout.
func (r Result) Eligible() bool {
	return r.CanCheckout
}

// Evaluate derives the compliance status for a viewer. First match wins;
// the ordering is a contract:
//
//  1. admin role bypasses patient checks entirely
//  2. no record means registration has not been submitted
//  3. a local-fallback partner ID needs a resync before anything else
//  4. KYC verified plus operator approval unlocks checkout
//  5. an operator rejection is terminal and wins over a still-present KYC link
//  6. an open KYC link with unverified KYC requires patient action
//  7. everything else is pending review
func Evaluate(record *models.Record, roles RoleFlags) Result {
	if roles.IsAdmin {
		return Result{Status: StatusAdminBypass, CanCheckout: true}
	}
	if record == nil {
		return Result{
			Status:  StatusNotRegistered,
			Message: "Complete patient registration to access the shop.",
		}
	}
	if record.IsLocalFallback() {
		return Result{
			Status:  StatusSyncRequired,
			Message: "Your account needs to be synced with our fulfilment partner. Please retry or contact support.",
		}
	}
	if record.IsKYCVerified && record.AdminApproval == models.ApprovalVerified {
		return Result{Status: StatusVerified, CanCheckout: true}
	}
	if record.AdminApproval == models.ApprovalRejected {
		return Result{
			Status:  StatusRejected,
			Message: "Your application was not approved. Contact support for details.",
		}
	}
	if record.KYCLink != "" && !record.IsKYCVerified {
		return Result{
			Status:  StatusActionRequired,
			Message: "Identity verification is incomplete. Follow your verification link to finish.",
		}
	}
	return Result{
		Status:  StatusPending,
		Message: "Your application is being reviewed.",
	}
}
