package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greengate/internal/eligibility"
	"greengate/internal/partner"
	"greengate/internal/patient/models"
	"greengate/internal/patient/store"
	id "greengate/pkg/domain"
	dErrors "greengate/pkg/domain-errors"
)

// fakeProxy scripts partner responses per action.
type fakeProxy struct {
	responses map[string]fakeResponse
	calls     []string
}

type fakeResponse struct {
	data any
	err  error
	msg  string
}

func (f *fakeProxy) Invoke(_ context.Context, action string, _ map[string]any) (*partner.Envelope, error) {
	f.calls = append(f.calls, action)
	resp, ok := f.responses[action]
	if !ok {
		return &partner.Envelope{Success: false, Error: "partner_error", Message: "unscripted action"}, partner.ErrPartner
	}
	if resp.err != nil {
		return &partner.Envelope{Success: false, Message: resp.msg}, resp.err
	}
	raw, _ := json.Marshal(resp.data)
	return &partner.Envelope{Success: true, Data: raw}, nil
}

type fakeRoles struct {
	flags eligibility.RoleFlags
	err   error
}

func (f *fakeRoles) Resolve(context.Context, id.UserID) (eligibility.RoleFlags, error) {
	return f.flags, f.err
}

type recordingNotifier struct {
	welcomes []string
}

func (n *recordingNotifier) SendWelcome(_ context.Context, to, _ string) error {
	n.welcomes = append(n.welcomes, to)
	return nil
}

func newService(t *testing.T, proxy *fakeProxy) (*Service, *store.InMemory, *recordingNotifier) {
	t.Helper()
	st := store.NewInMemory()
	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(st, proxy, &fakeRoles{}, logger, WithNotifier(notifier))
	return svc, st, notifier
}

func testNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func registerReq() RegisterRequest {
	return RegisterRequest{
		UserID:      id.NewUserID(),
		Email:       "Jane.Doe@Example.com",
		CountryCode: "za",
	}
}

func TestRegister(t *testing.T) {
	t.Run("happy path persists partner client", func(t *testing.T) {
		proxy := &fakeProxy{responses: map[string]fakeResponse{
			"create-client": {data: map[string]any{"clientId": "dg-77", "kycLink": "https://kyc.example/77"}},
		}}
		svc, st, notifier := newService(t, proxy)

		req := registerReq()
		result, err := svc.Register(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, result.Record)
		assert.False(t, result.Degraded)
		assert.Equal(t, "dg-77", result.Record.PartnerClientID)
		assert.Equal(t, "https://kyc.example/77", result.Record.KYCLink)
		assert.Equal(t, "ZA", result.Record.CountryCode)
		assert.Equal(t, "jane.doe@example.com", result.Record.Email)
		assert.Equal(t, models.ApprovalPending, result.Record.AdminApproval)

		stored, err := st.FindByUserID(context.Background(), req.UserID)
		require.NoError(t, err)
		assert.Equal(t, "dg-77", stored.PartnerClientID)

		// Name fell back to the email local part.
		assert.Equal(t, "Jane", stored.FirstName)
		assert.Equal(t, []string{"jane.doe@example.com"}, notifier.welcomes)
	})

	t.Run("partner outage creates local fallback", func(t *testing.T) {
		proxy := &fakeProxy{responses: map[string]fakeResponse{
			"create-client": {err: partner.ErrNetwork},
		}}
		svc, st, _ := newService(t, proxy)

		req := registerReq()
		result, err := svc.Register(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, result.Record.IsLocalFallback())

		stored, err := st.FindByUserID(context.Background(), req.UserID)
		require.NoError(t, err)
		assert.True(t, stored.IsLocalFallback())
	})

	t.Run("partner rejection surfaces message", func(t *testing.T) {
		proxy := &fakeProxy{responses: map[string]fakeResponse{
			"create-client": {err: partner.ErrPartner, msg: "duplicate client"},
		}}
		svc, _, _ := newService(t, proxy)

		_, err := svc.Register(context.Background(), registerReq())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("duplicate registration rejected", func(t *testing.T) {
		proxy := &fakeProxy{responses: map[string]fakeResponse{
			"create-client": {data: map[string]any{"clientId": "dg-1"}},
		}}
		svc, _, _ := newService(t, proxy)

		req := registerReq()
		_, err := svc.Register(context.Background(), req)
		require.NoError(t, err)

		proxy.responses["create-client"] = fakeResponse{data: map[string]any{"clientId": "dg-2"}}
		_, err = svc.Register(context.Background(), req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("validation", func(t *testing.T) {
		svc, _, _ := newService(t, &fakeProxy{})

		req := registerReq()
		req.Email = "not-an-email"
		_, err := svc.Register(context.Background(), req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

		req = registerReq()
		req.CountryCode = "ZAF"
		_, err = svc.Register(context.Background(), req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestRegister_DegradedSuccess(t *testing.T) {
	proxy := &fakeProxy{responses: map[string]fakeResponse{
		"create-client": {data: map[string]any{"clientId": "dg-9"}},
	}}
	st := &failingStore{InMemory: store.NewInMemory()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(st, proxy, &fakeRoles{}, logger)

	result, err := svc.Register(context.Background(), registerReq())
	require.NoError(t, err, "a local write failure after partner success must not fail the call")
	assert.True(t, result.Degraded)
	assert.Equal(t, "dg-9", result.Record.PartnerClientID)
}

type failingStore struct {
	*store.InMemory
}

func (f *failingStore) Create(context.Context, *models.Record) error {
	return errors.New("disk full")
}

func TestStatus_FailsClosed(t *testing.T) {
	t.Run("role resolution failure treated as regular user", func(t *testing.T) {
		proxy := &fakeProxy{}
		st := store.NewInMemory()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc := New(st, proxy, &fakeRoles{err: errors.New("db down")}, logger)

		result, record := svc.Status(context.Background(), id.NewUserID())
		assert.Nil(t, record)
		assert.Equal(t, eligibility.StatusNotRegistered, result.Status)
		assert.False(t, result.CanCheckout)
	})

	t.Run("admin bypasses without record", func(t *testing.T) {
		proxy := &fakeProxy{}
		st := store.NewInMemory()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc := New(st, proxy, &fakeRoles{flags: eligibility.RoleFlags{IsAdmin: true}}, logger)

		result, _ := svc.Status(context.Background(), id.NewUserID())
		assert.Equal(t, eligibility.StatusAdminBypass, result.Status)
		assert.True(t, result.CanCheckout)
	})
}

func TestResync(t *testing.T) {
	t.Run("replaces local fallback with partner client", func(t *testing.T) {
		proxy := &fakeProxy{responses: map[string]fakeResponse{
			"create-client": {data: map[string]any{"clientId": "dg-new", "kycLink": "https://kyc.example/new"}},
		}}
		svc, st, _ := newService(t, proxy)

		userID := id.NewUserID()
		record, err := models.NewRecord(id.NewRecordID(), userID, "local-old", "ZA", "p@example.com", testNow())
		require.NoError(t, err)
		require.NoError(t, st.Create(context.Background(), record))

		resynced, err := svc.Resync(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, "dg-new", resynced.PartnerClientID)
		assert.Equal(t, "https://kyc.example/new", resynced.KYCLink)

		// Local fallback records have no partner copy to delete.
		assert.NotContains(t, proxy.calls, "delete-client")
	})

	t.Run("deletes old partner client first for real records", func(t *testing.T) {
		proxy := &fakeProxy{responses: map[string]fakeResponse{
			"delete-client": {data: map[string]any{}},
			"create-client": {data: map[string]any{"clientId": "dg-new"}},
		}}
		svc, st, _ := newService(t, proxy)

		userID := id.NewUserID()
		record, err := models.NewRecord(id.NewRecordID(), userID, "dg-old", "ZA", "p@example.com", testNow())
		require.NoError(t, err)
		require.NoError(t, st.Create(context.Background(), record))

		_, err = svc.Resync(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, []string{"delete-client", "create-client"}, proxy.calls)
	})

	t.Run("no record to resync", func(t *testing.T) {
		svc, _, _ := newService(t, &fakeProxy{})
		_, err := svc.Resync(context.Background(), id.NewUserID())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestRefreshVerification(t *testing.T) {
	proxy := &fakeProxy{responses: map[string]fakeResponse{
		"get-client": {data: map[string]any{"clientId": "dg-5", "kycVerified": true, "adminApproval": "VERIFIED"}},
	}}
	svc, st, _ := newService(t, proxy)

	userID := id.NewUserID()
	record, err := models.NewRecord(id.NewRecordID(), userID, "dg-5", "ZA", "p@example.com", testNow())
	require.NoError(t, err)
	record.KYCLink = "https://kyc.example/5"
	require.NoError(t, st.Create(context.Background(), record))

	require.NoError(t, svc.RefreshVerification(context.Background(), record))

	stored, err := st.FindByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, stored.IsKYCVerified)
	assert.Equal(t, models.ApprovalVerified, stored.AdminApproval)
	assert.Empty(t, stored.KYCLink, "verification clears the KYC link")
}

func TestSetApproval(t *testing.T) {
	svc, st, _ := newService(t, &fakeProxy{})

	userID := id.NewUserID()
	record, err := models.NewRecord(id.NewRecordID(), userID, "dg-8", "ZA", "p@example.com", testNow())
	require.NoError(t, err)
	require.NoError(t, st.Create(context.Background(), record))

	updated, err := svc.SetApproval(context.Background(), userID, models.ApprovalRejected)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, updated.AdminApproval)

	_, err = svc.SetApproval(context.Background(), id.NewUserID(), models.ApprovalVerified)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
