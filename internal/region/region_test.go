package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_HostMapping(t *testing.T) {
	g := NewGate(false, nil)

	tests := []struct {
		host        string
		wantCountry string
		wantStatus  Status
		wantLang    string
	}{
		{"healingbuds.co.za", "ZA", StatusOperational, "en"},
		{"healingbuds.co.uk", "GB", StatusComingSoon, "en"},
		{"healingbuds.pt", "PT", StatusComingSoon, "pt"},
		{"healingbuds.de", "DE", StatusComingSoon, "de"},
		{"healingbuds.us", "US", StatusRedirect, "en"},
		{"localhost", "ZA", StatusOperational, "en"},
		{"shop.example.com", "ZA", StatusOperational, "en"},
		{"HealingBuds.CO.UK", "GB", StatusComingSoon, "en"},
		{"healingbuds.co.uk:8443", "GB", StatusComingSoon, "en"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got := g.Resolve(tt.host, "")
			assert.Equal(t, tt.wantCountry, got.CountryCode)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantLang, got.Language)
			assert.False(t, got.Simulated)
		})
	}
}

func TestResolve_Override(t *testing.T) {
	t.Run("override wins over host outside production", func(t *testing.T) {
		g := NewGate(true, nil)
		got := g.Resolve("healingbuds.co.za", "PT")
		assert.Equal(t, "PT", got.CountryCode)
		assert.Equal(t, StatusComingSoon, got.Status)
		assert.Equal(t, "pt", got.Language)
		assert.True(t, got.Simulated)
	})

	t.Run("override is case-insensitive", func(t *testing.T) {
		g := NewGate(true, nil)
		got := g.Resolve("healingbuds.co.za", "pt")
		assert.Equal(t, "PT", got.CountryCode)
	})

	t.Run("unknown override falls back to host", func(t *testing.T) {
		g := NewGate(true, nil)
		got := g.Resolve("healingbuds.co.uk", "XX")
		assert.Equal(t, "GB", got.CountryCode)
		assert.False(t, got.Simulated)
	})

	t.Run("override ignored in production", func(t *testing.T) {
		g := NewGate(false, nil)
		got := g.Resolve("healingbuds.co.uk", "PT")
		assert.Equal(t, "GB", got.CountryCode)
		assert.False(t, got.Simulated)
	})
}

func TestRequiresPatientGate(t *testing.T) {
	g := NewGate(false, []string{"de", "PT"})

	assert.True(t, g.RequiresPatientGate("DE"))
	assert.True(t, g.RequiresPatientGate("pt"))
	assert.False(t, g.RequiresPatientGate("ZA"))
	assert.False(t, g.RequiresPatientGate(""))
}

func TestKnownCountry(t *testing.T) {
	assert.True(t, KnownCountry("za"))
	assert.True(t, KnownCountry("GB"))
	assert.False(t, KnownCountry("XX"))
	assert.False(t, KnownCountry(""))
}
