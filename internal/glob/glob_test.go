package glob

import "testing"

func TestMatchAll(t *testing.T) {
	m := Compile("*")
	for _, s := range []string{"", "a", "user:1", "line\nbreak", "*"} {
		if !m.Match(s) {
			t.Fatalf("%q should match *", s)
		}
	}
}

func TestPatterns(t *testing.T) {
	cases := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"user:*", "user:1", true},
		{"user:*", "user:", true},
		{"user:*", "auser:1", false},
		{"*:1", "user:1", true},
		{"*:1", "user:12", false},
		{"a*b*c", "abc", true},
		{"a*b*c", "aXXbYYc", true},
		{"a*b*c", "acb", false},
		{"exact", "exact", true},
		{"exact", "exact!", false},
		{"", "", true},
		{"", "x", false},
		// Runs of `*` collapse to one.
		{"a**b", "aXb", true},
		{"a***b", "ab", true},
		// `*` crosses newlines.
		{"a*b", "a\nb", true},
	}
	for _, tc := range cases {
		if got := Compile(tc.pattern).Match(tc.s); got != tc.want {
			t.Fatalf("Compile(%q).Match(%q) = %v, want %v", tc.pattern, tc.s, got, tc.want)
		}
	}
}

func TestMetacharactersAreLiteral(t *testing.T) {
	cases := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"a.b", "a.b", true},
		{"a.b", "axb", false},
		{"price[USD]", "price[USD]", true},
		{"price[USD]", "priceU", false},
		{"q?", "q?", true},
		{"q?", "qx", false},
		{"(group)", "(group)", true},
		{"^start$", "^start$", true},
		{"a+b", "a+b", true},
		{"a+b", "aab", false},
	}
	for _, tc := range cases {
		if got := Compile(tc.pattern).Match(tc.s); got != tc.want {
			t.Fatalf("Compile(%q).Match(%q) = %v, want %v", tc.pattern, tc.s, got, tc.want)
		}
	}
}

func TestMatcherReuse(t *testing.T) {
	m := Compile("session:*")
	for i := 0; i < 3; i++ {
		if !m.Match("session:abc") || m.Match("user:abc") {
			t.Fatalf("matcher not stable across reuse")
		}
	}
}
