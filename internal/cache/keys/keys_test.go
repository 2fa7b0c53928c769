package keys

import (
	"regexp"
	"strings"
	"testing"
	"unicode"
)

func TestFilterKey_ViewKeys(t *testing.T) {
	cases := []struct {
		scope, session, want string
	}{
		{"map", "", "map_filters"},
		{" Property ", "", "property_filters"},
		{"map", "3f2a-11", "map_filters:3f2a-11"},
		{"property", "  ", "property_filters"},
	}
	for _, c := range cases {
		if got := FilterKey(c.scope, c.session); got != c.want {
			t.Fatalf("FilterKey(%q,%q)=%q want %q", c.scope, c.session, got, c.want)
		}
	}
}

func TestFilterKey_SessionCannotEscapeNamespace(t *testing.T) {
	k := FilterKey("map", "a:b c\nd/Göteborg")
	if !regexp.MustCompile(`^map_filters:#[0-9a-f]+$`).MatchString(k) {
		t.Fatalf("unexpected characters in key: %q", k)
	}
	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k)
		}
	}
}

func TestFilterKey_DistinctSessionsNeverShareAKey(t *testing.T) {
	long := strings.Repeat("a", 64)
	pairs := [][2]string{
		{"a:b", "a-b"},
		{"a b", "a_b"},
		{"a::b", "a:b"},
		{long + "x", long + "y"},
		{long + "x", long},
	}
	for _, p := range pairs {
		if FilterKey("map", p[0]) == FilterKey("map", p[1]) {
			t.Fatalf("sessions %q and %q share key %q", p[0], p[1], FilterKey("map", p[0]))
		}
	}
	if FilterKey("map", "a:b") != FilterKey("map", "a:b") {
		t.Fatalf("session key must be stable")
	}
}

func TestFilterKey_UnknownScopeIsSanitized(t *testing.T) {
	if got := FilterKey("admin:x", ""); got != "admin-x_filters" {
		t.Fatalf("got %q", got)
	}
	if ValidScope("admin") || !ValidScope("MAP") {
		t.Fatalf("ValidScope mismatch")
	}
}

func TestMemoKey_DeterministicAndSensitive(t *testing.T) {
	a := MemoKey(1, []byte(`{"rooms":"4"}`), "newest")
	b := MemoKey(1, []byte(`{"rooms":"4"}`), "newest")
	if a != b {
		t.Fatalf("determinism failed: %x vs %x", a, b)
	}
	if a == MemoKey(2, []byte(`{"rooms":"4"}`), "newest") {
		t.Fatalf("fingerprint must change the key")
	}
	if a == MemoKey(1, []byte(`{"rooms":"4"}`), "price_asc") {
		t.Fatalf("order must change the key")
	}
	if a == MemoKey(1, []byte(`{"rooms":"2"}`), "newest") {
		t.Fatalf("filters must change the key")
	}
}
