package partner

import "net/http"

// SigningMode selects how the canonical payload for a request is built.
type SigningMode string

const (
	// SignBody signs the serialized JSON body. Used for POST/DELETE and for
	// GETs that fetch a single resource.
	SignBody SigningMode = "body"
	// SignQuery signs the literal encoded query string. Used for GET list
	// endpoints.
	SignQuery SigningMode = "query"
)

// actionSpec pins an internal action name to its partner endpoint. The
// (method, path, signing mode) triple must match the partner's routing
// exactly or the signature check on their side fails.
type actionSpec struct {
	Method string
	Path   string // path template, {param} segments filled from the payload
	Mode   SigningMode
}

var actionTable = map[string]actionSpec{
	"create-client":        {Method: http.MethodPost, Path: "/dapp/clients", Mode: SignBody},
	"create-client-legacy": {Method: http.MethodPost, Path: "/clients", Mode: SignBody},
	"get-client":           {Method: http.MethodGet, Path: "/dapp/clients/{clientId}", Mode: SignBody},
	"delete-client":        {Method: http.MethodDelete, Path: "/dapp/clients/{clientId}", Mode: SignBody},
	"get-strains":          {Method: http.MethodGet, Path: "/dapp/strains", Mode: SignQuery},
	"get-strain":           {Method: http.MethodGet, Path: "/dapp/strains/{strainId}", Mode: SignBody},
	"add-to-cart":          {Method: http.MethodPost, Path: "/dapp/carts/{clientId}/items", Mode: SignBody},
	"remove-from-cart":     {Method: http.MethodDelete, Path: "/dapp/carts/{clientId}/items/{itemId}", Mode: SignBody},
	"place-order":          {Method: http.MethodPost, Path: "/dapp/orders", Mode: SignBody},
	"get-order":            {Method: http.MethodGet, Path: "/dapp/orders/{orderId}", Mode: SignBody},
	"get-orders":           {Method: http.MethodGet, Path: "/dapp/orders", Mode: SignQuery},
}

// Actions returns the supported internal action names.
func Actions() []string {
	names := make([]string, 0, len(actionTable))
	for name := range actionTable {
		names = append(names, name)
	}
	return names
}

// KnownAction reports whether the proxy can dispatch the given action.
func KnownAction(name string) bool {
	_, ok := actionTable[name]
	return ok
}
