package sanitize_test

import (
	"fmt"

	"github.com/colebrumley/nope/internal/rules"
	"github.com/colebrumley/nope/internal/sanitize"
)

func ExampleSanitize() {
	res := sanitize.Sanitize("https://www.youtube.com/watch?v=abc123&utm_medium=email&list=xyz", nil, rules.Default())
	fmt.Println(res.CleanedURL)
	for _, p := range res.Removed {
		fmt.Printf("%s=%s\n", p.Key, p.Value)
	}
	// Output:
	// https://www.youtube.com/watch?v=abc123&list=xyz
	// utm_medium=email
}

func ExampleSanitize_userAllowlist() {
	allow := rules.NewSet("fbclid")
	res := sanitize.Sanitize("https://site.com/?fbclid=999&ref=friend123", allow, rules.Default())
	fmt.Println(res.CleanedURL)
	fmt.Println(res.RemovedKeys())
	// Output:
	// https://site.com/?fbclid=999
	// [ref]
}

func ExampleLink() {
	fmt.Println(sanitize.Link("https://example.com/?utm_source=foo&id=5", nil, rules.Default()))
	fmt.Println(sanitize.Link("not a url at all", nil, rules.Default()))
	// Output:
	// https://example.com/?id=5
	// not a url at all
}
