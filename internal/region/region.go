// Package region maps a storefront hostname to an operational status and
// language. Jurisdictions where the dispensary cannot trade yet are served a
// holding page instead of the shop; a configured subset of operational
// jurisdictions additionally requires an authenticated, eligible patient
// before product data is returned.
package region

import "strings"

// Status is the operational state of a jurisdiction.
type Status string

const (
	StatusOperational Status = "operational"
	StatusComingSoon  Status = "coming_soon"
	StatusRedirect    Status = "redirect"
)

// Resolution is the outcome of resolving a viewer's jurisdiction.
type Resolution struct {
	Status      Status `json:"status"`
	Language    string `json:"language"`
	CountryCode string `json:"country_code"`
	// Simulated marks resolutions produced by the development override.
	Simulated bool `json:"simulated,omitempty"`
}

// HomeCountry is the jurisdiction unrecognized hosts resolve to.
const HomeCountry = "ZA"

type jurisdiction struct {
	status   Status
	language string
}

// jurisdictions is the deterministic country table. Adding a market means
// adding a row here and a host suffix below.
var jurisdictions = map[string]jurisdiction{
	"ZA": {status: StatusOperational, language: "en"},
	"GB": {status: StatusComingSoon, language: "en"},
	"PT": {status: StatusComingSoon, language: "pt"},
	"DE": {status: StatusComingSoon, language: "de"},
	"US": {status: StatusRedirect, language: "en"},
}

// hostSuffixes maps storefront domain suffixes to country codes. Longest
// suffix wins so ".co.za" beats ".za".
var hostSuffixes = map[string]string{
	".co.za": "ZA",
	".co.uk": "GB",
	".pt":    "PT",
	".de":    "DE",
	".us":    "US",
}

// Gate resolves jurisdictions. allowOverride is true outside production
// builds; the simulated-region override never applies in production.
type Gate struct {
	allowOverride bool
	restricted    map[string]bool
}

// NewGate constructs a Gate. restricted lists jurisdiction codes whose shop
// flows require patient eligibility on top of the base status.
func NewGate(allowOverride bool, restricted []string) *Gate {
	set := make(map[string]bool, len(restricted))
	for _, cc := range restricted {
		set[strings.ToUpper(cc)] = true
	}
	return &Gate{allowOverride: allowOverride, restricted: set}
}

// Resolve maps a hostname, with an optional simulated-region override, to a
// Resolution. Precedence: a valid override (non-production only), then the
// host table, then the home jurisdiction.
func (g *Gate) Resolve(host, override string) Resolution {
	if g.allowOverride && override != "" {
		cc := strings.ToUpper(strings.TrimSpace(override))
		if j, ok := jurisdictions[cc]; ok {
			return Resolution{Status: j.status, Language: j.language, CountryCode: cc, Simulated: true}
		}
		// Unknown override values are ignored, not errors: the shop must
		// still render something sensible.
	}

	cc := countryForHost(host)
	j := jurisdictions[cc]
	return Resolution{Status: j.status, Language: j.language, CountryCode: cc}
}

// RequiresPatientGate reports whether a jurisdiction's shop flow withholds
// product data until the viewer is an authenticated, eligible patient.
func (g *Gate) RequiresPatientGate(countryCode string) bool {
	return g.restricted[strings.ToUpper(countryCode)]
}

func countryForHost(host string) string {
	h := strings.ToLower(host)
	// Strip port if present.
	if idx := strings.LastIndex(h, ":"); idx != -1 && !strings.Contains(h[idx:], "]") {
		h = h[:idx]
	}

	best := ""
	bestLen := 0
	for suffix, cc := range hostSuffixes {
		if strings.HasSuffix(h, suffix) && len(suffix) > bestLen {
			best = cc
			bestLen = len(suffix)
		}
	}
	if best == "" {
		return HomeCountry
	}
	return best
}

// KnownCountry reports whether cc is in the jurisdiction table.
func KnownCountry(cc string) bool {
	_, ok := jurisdictions[strings.ToUpper(cc)]
	return ok
}
