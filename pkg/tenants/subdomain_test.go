package tenants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubdomainFromHost(t *testing.T) {
	cases := []struct {
		name string
		host string
		want string
	}{
		{"plain", "acme.example.com", "acme"},
		{"with port", "acme.example.com:8443", "acme"},
		{"trailing dot", "acme.example.com.", "acme"},
		{"uppercased", "ACME.example.com", "acme"},
		{"hyphenated", "acme-co.example.com", "acme-co"},
		{"two labels", "example.com", "example"},
		{"single label", "intranet", ""},
		{"localhost", "localhost", ""},
		{"localhost with port", "localhost:3000", ""},
		{"ipv4", "192.168.1.10", ""},
		{"ipv4 with port", "10.0.0.1:8080", ""},
		{"ipv6", "[::1]:8080", ""},
		{"too short label", "ab.example.com", ""},
		{"leading hyphen", "-bad.example.com", ""},
		{"trailing hyphen", "bad-.example.com", ""},
		{"underscore", "bad_sub.example.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SubdomainFromHost(tc.host))
		})
	}
}

func TestResolveSubdomainOverride(t *testing.T) {
	// explicit query override wins over the hostname
	assert.Equal(t, "beta", ResolveSubdomain("acme.example.com", "beta"))
	assert.Equal(t, "beta", ResolveSubdomain("localhost:3000", "BETA"))
	// invalid override yields nothing rather than falling back silently
	assert.Equal(t, "", ResolveSubdomain("acme.example.com", "x"))
	assert.Equal(t, "acme", ResolveSubdomain("acme.example.com", ""))
}

func TestValidSubdomainBounds(t *testing.T) {
	assert.False(t, ValidSubdomain("ab"))
	assert.True(t, ValidSubdomain("abc"))
	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, ValidSubdomain(string(long)))
	assert.True(t, ValidSubdomain(string(long[:63])))
}

func TestSourceAccessors(t *testing.T) {
	var s Source = Authenticated{TenantID: "t1"}
	assert.Equal(t, "t1", TenantID(s))
	assert.Equal(t, "", Subdomain(s))

	s = PreLoginSubdomain{Subdomain: "acme"}
	assert.Equal(t, "", TenantID(s))
	assert.Equal(t, "acme", Subdomain(s))

	s = None{}
	assert.Equal(t, "", TenantID(s))
	assert.Equal(t, "", Subdomain(s))
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeOnPremise, ParseMode("ONPREMISE"))
	assert.Equal(t, ModeHybrid, ParseMode("HYBRID"))
	assert.Equal(t, ModeDedicated, ParseMode("DEDICATED"))
	assert.Equal(t, ModeShared, ParseMode("SHARED"))
	assert.Equal(t, ModeShared, ParseMode("garbage"))
	assert.Equal(t, ModeShared, ParseMode(""))
}
