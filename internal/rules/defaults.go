// internal/rules/defaults.go
package rules

// DefaultBlocklist holds unambiguous tracking parameters.
var DefaultBlocklist = []string{
	// Google Analytics
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_term",
	"utm_content",
	"utm_id",
	"utm_source_platform",

	// Click identifiers
	"fbclid",  // Facebook
	"gclid",   // Google
	"msclkid", // Microsoft
	"yclid",   // Yandex

	// Drip
	"__s",

	// HubSpot
	"_hsenc",
	"_hsmi",
	"hsa_acc",
	"hsa_cam",
	"hsa_grp",
	"hsa_ad",
	"hsa_src",
	"hsa_tgt",
	"hsa_ver",
	"hsa_la",
	"hsa_ol",

	// Mailchimp
	"mc_cid",
	"mc_eid",

	// Marketo, Vero
	"mkt_tok",
	"vero_conv",
	"vero_id",
}

// DefaultReferral holds referral, affiliate and invite parameters.
var DefaultReferral = []string{
	"ref",
	"refer",
	"affiliate",
	"aff",
	"invite",
	"referral",
	"referralCode",
	"friend",
	"via",
	"spm", // AliExpress
}

var amazonParams = []string{"dp", "gp", "product", "keywords", "field-keywords"}

// DefaultAllowlist holds parameters that specific sites need to work.
var DefaultAllowlist = map[string][]string{
	"youtube.com":    {"v", "t", "list", "index", "si"},
	"youtu.be":       {"t", "si"},
	"google.com":     {"q", "tbm", "tbs", "start", "uule"},
	"amazon.com":     amazonParams,
	"amazon.co.uk":   amazonParams,
	"amazon.de":      amazonParams,
	"amazon.ca":      amazonParams,
	"amazon.jp":      amazonParams,
	"reddit.com":     {"t"},
	"duckduckgo.com": {"q", "ia"},
	"discord.gg":     {}, // invite code lives in the path
	"discord.com":    {"channel", "message"},
}

// Default returns the built-in rule table.
func Default() *RuleSet {
	return New(DefaultBlocklist, DefaultReferral, DefaultAllowlist)
}
