package imap

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestCodePatternPrefersMarkupWrappedCodes(t *testing.T) {

	cases := []struct {
		body string
		want string
	}{
		{`<p>Your verification code is</p><b> 482913 </b>`, "482913"},
		{`Your code: 123456`, "123456"},
		{`<td class="code">998877</td>`, "998877"},
	}

	for _, tc := range cases {

		matches := codePattern.FindStringSubmatch(tc.body)

		if len(matches) < 2 {
			t.Fatalf("no code found in %q", tc.body)
		}

		got := ""

		for _, m := range matches[1:] {
			if m != "" {
				got = m
				break
			}
		}

		if got != tc.want {
			t.Fatalf("extracted %q from %q, want %q", got, tc.body, tc.want)
		}
	}
}

func TestCodePatternIgnoresShortNumbers(t *testing.T) {

	if codePattern.MatchString(`order #4829 confirmed`) {
		t.Fatal("a 4-digit number is not a verification code")
	}
}

func TestFormattedToPatternExtractsAddress(t *testing.T) {

	to := `"Jo Li" <jo.li+fifa@catchall-domain.io>`

	matches := formattedToPattern.FindStringSubmatch(to)

	if len(matches) < 2 {
		t.Fatalf("no address found in %q", to)
	}

	if matches[1] != "jo.li+fifa@catchall-domain.io" {
		t.Fatalf("extracted %q", matches[1])
	}
}

func TestSearchUsesCacheWithoutConnection(t *testing.T) {

	i, err := New("imap.example.com", 993, "user", "pass")

	if err != nil {
		t.Fatal(err)
	}

	i.cache.Set("jo@b.io", "123456", 1)
	i.cache.Wait()

	code, err := i.SearchForFifaEmail("jo@b.io", "JO@b.io", zerolog.Nop())

	if err != nil {
		t.Fatalf("cache hit must not require a connection: %v", err)
	}

	if code != "123456" {
		t.Fatalf("got %q from cache", code)
	}
}
