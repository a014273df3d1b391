package admin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greengate/internal/eligibility"
	"greengate/internal/partner"
	patientmodels "greengate/internal/patient/models"
	id "greengate/pkg/domain"
	"greengate/pkg/requestcontext"
	"greengate/pkg/testutil"
)

type fakePatients struct {
	pending  []*patientmodels.Record
	approved map[id.UserID]patientmodels.AdminApproval
}

func (f *fakePatients) ListPending(context.Context) ([]*patientmodels.Record, error) {
	return f.pending, nil
}

func (f *fakePatients) SetApproval(_ context.Context, userID id.UserID, approval patientmodels.AdminApproval) (*patientmodels.Record, error) {
	if f.approved == nil {
		f.approved = make(map[id.UserID]patientmodels.AdminApproval)
	}
	f.approved[userID] = approval
	record, _ := patientmodels.NewRecord(id.NewRecordID(), userID, "dg-1", "ZA", "p@example.com",
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	_ = record.ApplyApproval(approval, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return record, nil
}

type fakeProxy struct {
	env *partner.Envelope
	err error
}

func (f *fakeProxy) Invoke(context.Context, string, map[string]any) (*partner.Envelope, error) {
	return f.env, f.err
}

type fakeRoles struct {
	admins map[id.UserID]bool
}

func (f *fakeRoles) Resolve(_ context.Context, userID id.UserID) (eligibility.RoleFlags, error) {
	return eligibility.RoleFlags{IsAdmin: f.admins[userID]}, nil
}

func newRouter(patients *fakePatients, proxy *fakeProxy, roles *fakeRoles) chi.Router {
	r := chi.NewRouter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	New(patients, proxy, roles, logger).Register(r)
	return r
}

func authed(req *http.Request, userID id.UserID) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

func TestRequireAdmin(t *testing.T) {
	adminID := id.NewUserID()
	regularID := id.NewUserID()
	router := newRouter(&fakePatients{}, &fakeProxy{}, &fakeRoles{admins: map[id.UserID]bool{adminID: true}})

	t.Run("anonymous refused", func(t *testing.T) {
		rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/admin/patients/pending"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("regular user refused", func(t *testing.T) {
		req := authed(testutil.NewRequest(t, http.MethodGet, "/admin/patients/pending"), regularID)
		rec := testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin allowed", func(t *testing.T) {
		req := authed(testutil.NewRequest(t, http.MethodGet, "/admin/patients/pending"), adminID)
		rec := testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandleApproval(t *testing.T) {
	adminID := id.NewUserID()
	patientID := id.NewUserID()
	patients := &fakePatients{}
	router := newRouter(patients, &fakeProxy{}, &fakeRoles{admins: map[id.UserID]bool{adminID: true}})

	req := authed(testutil.NewJSONRequest(t, http.MethodPost,
		"/admin/patients/"+patientID.String()+"/approval",
		map[string]string{"approval": "REJECTED"}), adminID)
	rec := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, patientmodels.ApprovalRejected, patients.approved[patientID])

	t.Run("invalid approval value refused", func(t *testing.T) {
		req := authed(testutil.NewJSONRequest(t, http.MethodPost,
			"/admin/patients/"+patientID.String()+"/approval",
			map[string]string{"approval": "MAYBE"}), adminID)
		rec := testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleInvoke(t *testing.T) {
	adminID := id.NewUserID()
	roles := &fakeRoles{admins: map[id.UserID]bool{adminID: true}}

	t.Run("passes envelope through", func(t *testing.T) {
		proxy := &fakeProxy{env: &partner.Envelope{Success: true, Data: json.RawMessage(`{"clientId":"dg-1"}`)}}
		router := newRouter(&fakePatients{}, proxy, roles)

		req := authed(testutil.NewJSONRequest(t, http.MethodPost, "/partner/invoke",
			map[string]any{"action": "get-client", "payload": map[string]any{"clientId": "dg-1"}}), adminID)
		rec := testutil.DoRequest(router, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := testutil.UnmarshalResponse[partner.Envelope](t, rec)
		assert.True(t, body.Success)
	})

	t.Run("unknown action refused", func(t *testing.T) {
		router := newRouter(&fakePatients{}, &fakeProxy{}, roles)
		req := authed(testutil.NewJSONRequest(t, http.MethodPost, "/partner/invoke",
			map[string]any{"action": "drop-table"}), adminID)
		rec := testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("partner failure becomes bad gateway", func(t *testing.T) {
		proxy := &fakeProxy{
			env: &partner.Envelope{Success: false, Message: "client not found"},
			err: partner.ErrPartner,
		}
		router := newRouter(&fakePatients{}, proxy, roles)
		req := authed(testutil.NewJSONRequest(t, http.MethodPost, "/partner/invoke",
			map[string]any{"action": "get-client", "payload": map[string]any{"clientId": "nope"}}), adminID)
		rec := testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}
