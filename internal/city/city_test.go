package city

import "testing"

func TestCanonicalAliases(t *testing.T) {
	cases := map[string]string{
		"Baghdad":   "بغداد",
		" بغداد ":   "بغداد",
		"babil":     "بابل",
		"الحلة":     "بابل",
		"Hilla":     "بابل",
		"Fallujah ": "Fallujah", // unknown: trimmed pass-through
	}
	for in, want := range cases {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMatch(t *testing.T) {
	if !Match("Babil", "بابل") {
		t.Fatal("Babil should match بابل")
	}
	if Match("بابل", "بغداد") {
		t.Fatal("different cities matched")
	}
	if Match("", "") {
		t.Fatal("empty city must never match")
	}
}
