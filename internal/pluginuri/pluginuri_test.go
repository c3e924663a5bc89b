package pluginuri

import "testing"

func TestParseDefaults(t *testing.T) {
	u := Parse("coreimport")
	if u.Name() != "coreimport" {
		t.Fatalf("Name() = %q, want coreimport", u.Name())
	}
	if u.Registry() != DefaultRegistry {
		t.Fatalf("Registry() = %q, want default", u.Registry())
	}
	if u.Version() != DefaultVersion {
		t.Fatalf("Version() = %q, want default", u.Version())
	}
	if u.HasRegistry() || u.HasVersion() {
		t.Fatalf("expected no explicit registry or version")
	}
}

func TestParseWithRegistryAndVersion(t *testing.T) {
	u := Parse("registry.example.com/coreimport:1.2.3")
	if u.Name() != "coreimport" {
		t.Fatalf("Name() = %q", u.Name())
	}
	if u.Version() != "1.2.3" {
		t.Fatalf("Version() = %q", u.Version())
	}
	if u.Registry() != "https://registry.example.com" {
		t.Fatalf("Registry() = %q", u.Registry())
	}
}

func TestParsePreservesExplicitScheme(t *testing.T) {
	u := Parse("http://registry.example.com/coreimport")
	if u.Registry() != "http://registry.example.com" {
		t.Fatalf("Registry() = %q, want http scheme preserved", u.Registry())
	}
}

func TestParseVersionWithColon(t *testing.T) {
	u := Parse("coreimport:v1:beta")
	if u.Version() != "v1:beta" {
		t.Fatalf("Version() = %q, want v1:beta", u.Version())
	}
}

func TestParseLenientMultiSegmentRegistry(t *testing.T) {
	u := Parse("registry.example.com/team/project/coreimport")
	if u.Name() != "coreimport" {
		t.Fatalf("Name() = %q", u.Name())
	}
	if u.Registry() != "https://registry.example.com/team/project" {
		t.Fatalf("Registry() = %q", u.Registry())
	}
}

func TestStringRoundTrip(t *testing.T) {
	cases := []string{
		"coreimport",
		"registry.example.com/coreimport:1.2.3",
		"http://registry.example.com/coreimport",
		"coreimport:v1:beta",
	}
	for _, s := range cases {
		u1 := Parse(s)
		u2 := Parse(u1.String())
		if u1 != u2 {
			t.Fatalf("round-trip mismatch for %q: %+v vs %+v", s, u1, u2)
		}
	}
}

func TestStringOmitsDefaults(t *testing.T) {
	u := Parse("coreimport")
	if got := u.String(); got != "coreimport" {
		t.Fatalf("String() = %q, want bare name with no defaults emitted", got)
	}
}
