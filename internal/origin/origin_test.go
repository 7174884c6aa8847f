package origin

import "testing"

func TestHostAllowed(t *testing.T) {
	cases := []struct {
		name    string
		host    string
		allowed []string
		want    bool
	}{
		{"wildcard all", "anything.com", []string{"*"}, true},
		{"subdomain wildcard matches subdomain", "sub.example.com", []string{"*.example.com"}, true},
		{"subdomain wildcard matches apex", "example.com", []string{"*.example.com"}, true},
		{"subdomain wildcard rejects other domain", "evil.com", []string{"*.example.com"}, false},
		{"deep subdomain", "a.b.example.com", []string{"*.example.com"}, true},
		{"embedded glob", "app-7.corp.io", []string{"app-*.corp.io"}, true},
		{"embedded glob no match", "web.corp.io", []string{"app-*.corp.io"}, false},
		{"exact match", "example.com", []string{"example.com"}, true},
		{"subdomain of exact entry", "chat.example.com", []string{"example.com"}, true},
		{"suffix is not subdomain", "notexample.com", []string{"example.com"}, false},
		{"case insensitive", "Sub.Example.COM", []string{"*.example.com"}, true},
		{"empty list", "example.com", nil, false},
		{"empty host", "", []string{"*"}, false},
		{"second entry matches", "shop.io", []string{"example.com", "shop.io"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HostAllowed(tc.host, tc.allowed); got != tc.want {
				t.Fatalf("HostAllowed(%q, %v) = %v, want %v", tc.host, tc.allowed, got, tc.want)
			}
		})
	}
}

func TestHostFromRequest(t *testing.T) {
	if got := HostFromRequest("https://sub.example.com", ""); got != "sub.example.com" {
		t.Fatalf("unexpected host %q", got)
	}
	if got := HostFromRequest("", "https://example.com/pricing?x=1"); got != "example.com" {
		t.Fatalf("unexpected fallback host %q", got)
	}
	if got := HostFromRequest("https://example.com:8443", ""); got != "example.com" {
		t.Fatalf("expected port stripped, got %q", got)
	}
}

func TestAllowOrigin(t *testing.T) {
	echo, ok := AllowOrigin("https://sub.example.com", []string{"*.example.com"})
	if !ok {
		t.Fatal("expected origin to be allowed")
	}
	if echo != "https://sub.example.com" {
		t.Fatalf("expected concrete origin echoed, got %q", echo)
	}
	if echo == "*" {
		t.Fatal("must never echo a wildcard with credentials")
	}

	if _, ok := AllowOrigin("https://evil.com", []string{"*.example.com"}); ok {
		t.Fatal("expected origin to be rejected")
	}
}
