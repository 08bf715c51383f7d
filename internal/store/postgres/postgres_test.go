package postgres

import "testing"

func TestEscapeLikeNeutralizesWildcards(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"pen", "pen"},
		{"100%", `100\%`},
		{"_", `\_`},
		{`a\b`, `a\\b`},
		{"%_", `\%\_`},
	}
	for _, tc := range cases {
		if got := escapeLike(tc.in); got != tc.want {
			t.Fatalf("escapeLike(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
