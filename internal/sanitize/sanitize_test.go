// internal/sanitize/sanitize_test.go
package sanitize

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/colebrumley/nope/internal/rules"
)

func TestSanitize_Scenarios(t *testing.T) {
	rs := rules.Default()

	tests := []struct {
		name        string
		url         string
		allow       Allowlist
		wantCleaned string
		wantRemoved []Param
	}{
		{
			name:        "blocklisted utm parameter",
			url:         "https://example.com/?utm_source=foo&id=5",
			wantCleaned: "https://example.com/?id=5",
			wantRemoved: []Param{{"utm_source", "foo"}},
		},
		{
			name:        "domain allowlist after www normalization",
			url:         "https://www.youtube.com/watch?v=abc123&utm_medium=email&list=xyz",
			wantCleaned: "https://www.youtube.com/watch?v=abc123&list=xyz",
			wantRemoved: []Param{{"utm_medium", "email"}},
		},
		{
			name:        "user allowlist beats blocklist",
			url:         "https://site.com/?fbclid=999&ref=friend123",
			allow:       rules.NewSet("fbclid"),
			wantCleaned: "https://site.com/?fbclid=999",
			wantRemoved: []Param{{"ref", "friend123"}},
		},
		{
			name:        "not a url",
			url:         "not a url at all",
			wantCleaned: "not a url at all",
			wantRemoved: []Param{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.url, tt.allow, rs)
			if got.OriginalURL != tt.url {
				t.Errorf("OriginalURL = %q, want %q", got.OriginalURL, tt.url)
			}
			if got.CleanedURL != tt.wantCleaned {
				t.Errorf("CleanedURL = %q, want %q", got.CleanedURL, tt.wantCleaned)
			}
			if !reflect.DeepEqual(got.Removed, tt.wantRemoved) {
				t.Errorf("Removed = %v, want %v", got.Removed, tt.wantRemoved)
			}
		})
	}
}

func TestSanitize_EdgeCases(t *testing.T) {
	rs := rules.Default()

	tests := []struct {
		name        string
		url         string
		wantCleaned string
		wantRemoved int
	}{
		{
			name:        "all parameters removed drops the question mark",
			url:         "https://example.com/page?utm_source=a&utm_medium=b",
			wantCleaned: "https://example.com/page",
			wantRemoved: 2,
		},
		{
			name:        "fragment is kept",
			url:         "https://example.com/a?gclid=1&x=2#section?utm_source=z",
			wantCleaned: "https://example.com/a?x=2#section?utm_source=z",
			wantRemoved: 1,
		},
		{
			name:        "fragment kept when query emptied",
			url:         "https://example.com/a?gclid=1#top",
			wantCleaned: "https://example.com/a#top",
			wantRemoved: 1,
		},
		{
			name:        "duplicates classified independently",
			url:         "https://example.com/?id=1&ref=a&id=2&ref=b",
			wantCleaned: "https://example.com/?id=1&id=2",
			wantRemoved: 2,
		},
		{
			name:        "kept order mirrors input",
			url:         "https://example.com/?z=1&fbclid=x&a=2",
			wantCleaned: "https://example.com/?z=1&a=2",
			wantRemoved: 1,
		},
		{
			name:        "no query is unchanged",
			url:         "https://example.com/path",
			wantCleaned: "https://example.com/path",
		},
		{
			name:        "unknown parameters are kept",
			url:         "https://example.com/?page=2&sort=asc",
			wantCleaned: "https://example.com/?page=2&sort=asc",
		},
		{
			name:        "raw encoding of kept parameters is preserved",
			url:         "https://example.com/search?q=a+b%20c&utm_term=x&lang=en%2Dus",
			wantCleaned: "https://example.com/search?q=a+b%20c&lang=en%2Dus",
			wantRemoved: 1,
		},
		{
			name:        "percent-encoded key is decoded before lookup",
			url:         "https://example.com/?utm%5Fsource=x&id=1",
			wantCleaned: "https://example.com/?id=1",
			wantRemoved: 1,
		},
		{
			name:        "empty segments dropped when rebuilding",
			url:         "https://example.com/?&a=1&&fbclid=2&",
			wantCleaned: "https://example.com/?a=1",
			wantRemoved: 1,
		},
		{
			name:        "parameter without value",
			url:         "https://example.com/?ref&keep",
			wantCleaned: "https://example.com/?keep",
			wantRemoved: 1,
		},
		{
			name:        "port is not stripped for domain lookup",
			url:         "https://youtube.com:8443/watch?v=1&utm_source=x",
			wantCleaned: "https://youtube.com:8443/watch?v=1",
			wantRemoved: 1,
		},
		{
			name:        "userinfo and path untouched",
			url:         "https://user:pw@example.com/a%2Fb/?mc_cid=1",
			wantCleaned: "https://user:pw@example.com/a%2Fb/",
			wantRemoved: 1,
		},
		{
			name:        "empty string",
			url:         "",
			wantCleaned: "",
		},
		{
			name:        "relative reference is not a url",
			url:         "/path?utm_source=x",
			wantCleaned: "/path?utm_source=x",
		},
		{
			name:        "http without host",
			url:         "http://?utm_source=x",
			wantCleaned: "http://?utm_source=x",
		},
		{
			name:        "invalid host",
			url:         "https://exa mple.com/?utm_source=x",
			wantCleaned: "https://exa mple.com/?utm_source=x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.url, nil, rs)
			if got.CleanedURL != tt.wantCleaned {
				t.Errorf("CleanedURL = %q, want %q", got.CleanedURL, tt.wantCleaned)
			}
			if len(got.Removed) != tt.wantRemoved {
				t.Errorf("removed %d parameters, want %d: %v", len(got.Removed), tt.wantRemoved, got.Removed)
			}
			if got.Changed() != (tt.wantRemoved > 0) {
				t.Errorf("Changed() = %v with %d removed", got.Changed(), tt.wantRemoved)
			}
		})
	}
}

func TestSanitize_HostCaseIsNotFolded(t *testing.T) {
	got := Sanitize("https://www.YouTube.com/watch?v=1&ref=x", nil, rules.Default())
	// YouTube.com does not match the youtube.com allowlist, but v is not
	// blocked either, so only ref goes.
	if got.CleanedURL != "https://www.YouTube.com/watch?v=1" {
		t.Errorf("CleanedURL = %q", got.CleanedURL)
	}

	rs := rules.New([]string{"v"}, nil, map[string][]string{"youtube.com": {"v"}})
	got = Sanitize("https://www.YouTube.com/watch?v=1", nil, rs)
	if got.Changed() != true {
		t.Error("expected v removed when host case differs from the allowlist key")
	}
}

func TestSanitize_DomainAllowBeatsBlocklist(t *testing.T) {
	rs := rules.New([]string{"t"}, []string{"si"}, map[string][]string{"example.com": {"t", "si"}})
	got := Sanitize("https://www.example.com/?t=1&si=2", nil, rs)
	if got.Changed() {
		t.Errorf("domain allowlist should keep blocked and referral names, got %v", got.Removed)
	}

	got = Sanitize("https://other.com/?t=1&si=2", nil, rs)
	if len(got.Removed) != 2 {
		t.Errorf("expected both removed on other domains, got %v", got.Removed)
	}
}

func TestSanitize_NilRuleSet(t *testing.T) {
	got := Sanitize("https://example.com/?utm_source=x", nil, nil)
	if got.Changed() {
		t.Error("nil rule set should keep everything")
	}
}

func TestSanitize_DecodedRemovedValues(t *testing.T) {
	got := Sanitize("https://example.com/?utm_campaign=spring+sale%21", nil, rules.Default())
	want := []Param{{"utm_campaign", "spring sale!"}}
	if !reflect.DeepEqual(got.Removed, want) {
		t.Errorf("Removed = %v, want %v", got.Removed, want)
	}

	got = Sanitize("https://example.com/?ref=%zz", nil, rules.Default())
	if len(got.Removed) != 1 || got.Removed[0].Value != "%zz" {
		t.Errorf("undecodable value should be reported raw, got %v", got.Removed)
	}
}

var propertyCorpus = []string{
	"https://example.com/?utm_source=foo&id=5",
	"https://www.youtube.com/watch?v=abc123&utm_medium=email&list=xyz",
	"https://site.com/?fbclid=999&ref=friend123",
	"https://www.amazon.com/dp/B000?tag=x&ref=sr_1&keywords=book&_hsenc=q",
	"https://shop.example/?a=1&ref=1&a=2&ref=2&mc_eid=z#frag",
	"https://example.com/?&&utm_source=a&&",
	"https://duckduckgo.com/?q=go&ia=web&via=x",
	"mailto:someone@example.com?subject=hi&utm_source=newsletter",
	"https://example.com/?referralCode=abc&spm=a2g0o&friend=me",
	"https://discord.gg/abc?invite=1&channel=2",
	"ftp://files.example.com/pub?aff=1",
	"https://example.com",
	"not a url at all",
	"://broken",
	"",
}

func TestProperty_Idempotence(t *testing.T) {
	rs := rules.Default()
	allow := rules.NewSet("fbclid")
	for _, u := range propertyCorpus {
		first := Sanitize(u, allow, rs)
		second := Sanitize(first.CleanedURL, allow, rs)
		if second.CleanedURL != first.CleanedURL {
			t.Errorf("not idempotent for %q: %q then %q", u, first.CleanedURL, second.CleanedURL)
		}
		if second.Changed() {
			t.Errorf("re-cleaning %q removed %v", first.CleanedURL, second.Removed)
		}
	}
}

func TestProperty_Subsequence(t *testing.T) {
	rs := rules.Default()
	for _, u := range propertyCorpus {
		res := Sanitize(u, nil, rs)
		decisions := Explain(u, nil, rs)

		// Removed must equal the removed decisions, in order.
		var want []Param
		var keptKeys []string
		for _, d := range decisions {
			if d.Disposition.Removed() {
				want = append(want, d.Param)
			} else {
				keptKeys = append(keptKeys, d.Key)
			}
		}
		if len(want) == 0 {
			want = []Param{}
		}
		if !reflect.DeepEqual(res.Removed, want) {
			t.Errorf("%q: Removed = %v, want %v", u, res.Removed, want)
		}

		// Kept and removed names are disjoint.
		removedNames := rules.NewSet(res.RemovedKeys()...)
		for _, k := range keptKeys {
			if removedNames.Has(k) {
				t.Errorf("%q: %s is both kept and removed", u, k)
			}
		}
	}
}

func TestProperty_UserOverrideSupremacy(t *testing.T) {
	rs := rules.Default()
	for _, u := range propertyCorpus {
		for _, d := range Explain(u, nil, rs) {
			allow := rules.NewSet(d.Key)
			res := Sanitize(u, allow, rs)
			for _, p := range res.Removed {
				if p.Key == d.Key {
					t.Errorf("%q: %s removed despite user allowlist", u, d.Key)
				}
			}
		}
	}
}

func TestProperty_MalformedInputSafety(t *testing.T) {
	inputs := []string{
		"not a url at all",
		"",
		"   ",
		"example.com/?utm_source=x",
		"//example.com/?utm_source=x",
		"https://[::1/?utm_source=x",
		"http://exa\x7fmple.com/?fbclid=1",
		"https://example.com/\x00?gclid=1",
		"%%%",
	}
	for _, s := range inputs {
		res := Sanitize(s, nil, rules.Default())
		if res.CleanedURL != s {
			t.Errorf("Sanitize(%q).CleanedURL = %q, want unchanged", s, res.CleanedURL)
		}
		if len(res.Removed) != 0 {
			t.Errorf("Sanitize(%q) removed %v", s, res.Removed)
		}
	}
}

func TestLink(t *testing.T) {
	rs := rules.Default()

	if got := Link("https://site.com/?fbclid=999&id=1", nil, rs); got != "https://site.com/?id=1" {
		t.Errorf("Link() = %q", got)
	}
	if got := Link("https://site.com/?fbclid=999&id=1", rules.NewSet("fbclid"), rs); got != "https://site.com/?fbclid=999&id=1" {
		t.Errorf("Link() with allowlist = %q", got)
	}
	if got := Link("not a url", nil, rs); got != "not a url" {
		t.Errorf("Link() on malformed input = %q", got)
	}
}

func TestExplain(t *testing.T) {
	rs := rules.Default()
	got := Explain("https://www.youtube.com/watch?v=1&fbclid=2&ref=3&page=4&si=5", rules.NewSet("fbclid"), rs)

	want := []Disposition{KeepDomain, KeepUser, RemoveReferral, KeepDefault, KeepDomain}
	if len(got) != len(want) {
		t.Fatalf("Explain() returned %d decisions, want %d", len(got), len(want))
	}
	for i, d := range got {
		if d.Disposition != want[i] {
			t.Errorf("decision %d (%s) = %s, want %s", i, d.Key, d.Disposition, want[i])
		}
	}

	if Explain("not a url", nil, rs) != nil {
		t.Error("Explain() should return nil for malformed input")
	}
	if d := Explain("https://example.com/page", nil, rs); d == nil || len(d) != 0 {
		t.Errorf("Explain() without a query = %v, want empty", d)
	}
}

func TestDisposition_JSON(t *testing.T) {
	data, err := json.Marshal(Decision{Param: Param{Key: "gclid", Value: "1"}, Disposition: RemoveBlocked})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"disposition":"blocked"`) {
		t.Errorf("unexpected JSON: %s", data)
	}
	if !strings.Contains(string(data), `"key":"gclid"`) {
		t.Errorf("expected flattened param in JSON: %s", data)
	}
}

func TestResult_JSONRemovedNeverNull(t *testing.T) {
	data, err := json.Marshal(Sanitize("not a url", nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"removed_params":[]`) {
		t.Errorf("expected empty removed_params array: %s", data)
	}
}

func TestSanitize_Concurrent(t *testing.T) {
	rs := rules.Default()
	done := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 200; j++ {
				for _, u := range propertyCorpus {
					Sanitize(u, nil, rs)
				}
			}
			done <- true
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
