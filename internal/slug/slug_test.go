package slug

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Credit Card":       "credit_card",
		"  cash ":           "cash",
		"credit_card":       "credit_card",
		"Nequi / Daviplata": "nequi_daviplata",
		"__x__":             "x",
		"":                  "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
	long := Slugify(strings.Repeat("ab ", 30))
	if len(long) > 40 || strings.HasSuffix(long, "_") {
		t.Fatalf("bad long slug %q", long)
	}
}

func TestIsSlug(t *testing.T) {
	if !IsSlug("credit_card") || IsSlug("Credit Card") || IsSlug("x") {
		t.Fatalf("IsSlug misclassified input")
	}
}
