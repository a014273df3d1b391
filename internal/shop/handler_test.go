package shop

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"greengate/internal/eligibility"
	"greengate/internal/partner"
	patientmodels "greengate/internal/patient/models"
	"greengate/internal/region"
	id "greengate/pkg/domain"
	"greengate/pkg/requestcontext"
	"greengate/pkg/testutil"
)

type fakeProxy struct {
	calls int
}

func (f *fakeProxy) Invoke(context.Context, string, map[string]any) (*partner.Envelope, error) {
	f.calls++
	return &partner.Envelope{Success: true, Data: json.RawMessage(`[{"strainId":"s-1"}]`)}, nil
}

type fakeGate struct {
	result eligibility.Result
}

func (f *fakeGate) Status(context.Context, id.UserID) (eligibility.Result, *patientmodels.Record) {
	return f.result, nil
}

func newRouter(gate *region.Gate, proxy *fakeProxy, patient *fakeGate) chi.Router {
	r := chi.NewRouter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	New(gate, proxy, patient, logger).Register(r)
	return r
}

func TestHandleProducts_RegionGating(t *testing.T) {
	t.Run("operational region is public", func(t *testing.T) {
		proxy := &fakeProxy{}
		router := newRouter(region.NewGate(false, nil), proxy, &fakeGate{})

		req := testutil.NewRequest(t, http.MethodGet, "/shop/products")
		req.Host = "healingbuds.co.za"
		rec := testutil.DoRequest(router, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, proxy.calls)
	})

	t.Run("coming soon region is withheld", func(t *testing.T) {
		proxy := &fakeProxy{}
		router := newRouter(region.NewGate(false, nil), proxy, &fakeGate{})

		req := testutil.NewRequest(t, http.MethodGet, "/shop/products")
		req.Host = "healingbuds.co.uk"
		rec := testutil.DoRequest(router, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Zero(t, proxy.calls)
	})

	t.Run("restricted region requires an authenticated eligible patient", func(t *testing.T) {
		gate := region.NewGate(true, []string{"ZA"})
		proxy := &fakeProxy{}
		patient := &fakeGate{result: eligibility.Result{Status: eligibility.StatusVerified, CanCheckout: true}}
		router := newRouter(gate, proxy, patient)

		req := testutil.NewRequest(t, http.MethodGet, "/shop/products")
		req.Host = "healingbuds.co.za"
		rec := testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "anonymous browsing withheld")
		assert.Zero(t, proxy.calls)

		req = testutil.NewRequest(t, http.MethodGet, "/shop/products")
		req.Host = "healingbuds.co.za"
		req = req.WithContext(requestcontext.WithUserID(req.Context(), id.NewUserID()))
		rec = testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusOK, rec.Code, "eligible patient sees products")
		assert.Equal(t, 1, proxy.calls)
	})

	t.Run("restricted region refuses ineligible patients", func(t *testing.T) {
		gate := region.NewGate(true, []string{"ZA"})
		proxy := &fakeProxy{}
		patient := &fakeGate{result: eligibility.Result{
			Status:  eligibility.StatusPending,
			Message: "your account is awaiting approval",
		}}
		router := newRouter(gate, proxy, patient)

		req := testutil.NewRequest(t, http.MethodGet, "/shop/products")
		req.Host = "healingbuds.co.za"
		req = req.WithContext(requestcontext.WithUserID(req.Context(), id.NewUserID()))
		rec := testutil.DoRequest(router, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Zero(t, proxy.calls)
	})
}

func TestHandleRegion_SimulateOverride(t *testing.T) {
	router := newRouter(region.NewGate(true, nil), &fakeProxy{}, &fakeGate{})

	req := testutil.NewRequest(t, http.MethodGet, "/region?simulate=PT")
	req.Host = "healingbuds.co.za"
	rec := testutil.DoRequest(router, req)

	body := testutil.UnmarshalResponse[region.Resolution](t, rec)
	assert.Equal(t, "PT", body.CountryCode)
	assert.Equal(t, region.StatusComingSoon, body.Status)
	assert.Equal(t, "pt", body.Language)
}
