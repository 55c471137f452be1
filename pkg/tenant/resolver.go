package tenant

import (
	"net"
	"net/http"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Header names carrying an explicit tenant.
const (
	HeaderTenantID        = "X-Tenant-ID"
	HeaderTenantSubdomain = "X-Tenant-Subdomain"
)

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// Lookup identifies a tenant either by ObjectID or by subdomain.
type Lookup struct {
	ID        bson.ObjectID
	Subdomain string
}

// IsZero reports whether the lookup carries no identifier.
func (l Lookup) IsZero() bool {
	return l.ID.IsZero() && l.Subdomain == ""
}

func (l Lookup) cacheKey() string {
	if !l.ID.IsZero() {
		return "id:" + l.ID.Hex()
	}
	return "sub:" + l.Subdomain
}

// ParseLookup classifies a raw identifier: 24 hex characters are an
// ObjectID, anything else is a subdomain.
func ParseLookup(raw string) Lookup {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Lookup{}
	}
	if objectIDPattern.MatchString(raw) {
		if id, err := bson.ObjectIDFromHex(raw); err == nil {
			return Lookup{ID: id}
		}
	}
	return Lookup{Subdomain: strings.ToLower(raw)}
}

// Resolver extracts a tenant lookup from a request. A zero Lookup means the
// resolver found nothing.
type Resolver interface {
	Resolve(r *http.Request) Lookup
}

// HeaderResolver reads X-Tenant-ID, falling back to X-Tenant-Subdomain.
type HeaderResolver struct{}

func (HeaderResolver) Resolve(r *http.Request) Lookup {
	if v := r.Header.Get(HeaderTenantID); v != "" {
		return ParseLookup(v)
	}
	if v := strings.TrimSpace(r.Header.Get(HeaderTenantSubdomain)); v != "" {
		return Lookup{Subdomain: strings.ToLower(v)}
	}
	return Lookup{}
}

// HostResolver takes the first label of a host with more than two labels,
// e.g. "acme" from "acme.leveledu.com". Reserved labels are ignored.
type HostResolver struct {
	Reserved []string
}

// NewHostResolver creates a host resolver ignoring "www" and "api".
func NewHostResolver() HostResolver {
	return HostResolver{Reserved: []string{"www", "api"}}
}

func (h HostResolver) Resolve(r *http.Request) Lookup {
	host := r.Host
	if host == "" {
		host = r.Header.Get("X-Forwarded-Host")
	}
	sub := SubdomainFromHost(host)
	if sub == "" {
		return Lookup{}
	}
	for _, reserved := range h.Reserved {
		if sub == reserved {
			return Lookup{}
		}
	}
	return Lookup{Subdomain: sub}
}

// SubdomainFromHost returns the first label of host when it has more than
// two labels. Ports are stripped and the result is lowercased.
func SubdomainFromHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if net.ParseIP(host) != nil {
		return ""
	}
	parts := strings.Split(strings.ToLower(host), ".")
	if len(parts) <= 2 || parts[0] == "" {
		return ""
	}
	return parts[0]
}

// Principal is the authenticated caller as seen by tenant isolation.
type Principal struct {
	TenantID   bson.ObjectID
	SuperAdmin bool
}

