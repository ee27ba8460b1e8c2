// Package fragment preprocesses captured listing-entry fragments before they
// are handed to the extraction service, and recovers what it can from them
// locally when extraction fails.
package fragment

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
)

// Preprocessor converts fragments to a token-lean prompt form. It is
// goroutine-safe and reusable across invocations.
type Preprocessor struct {
	conv *converter.Converter
}

// NewPreprocessor builds the markdown converter used for prompt payloads.
// The base plugin strips script/style/meta noise; commonmark renders the
// remainder as plain Markdown.
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// ToPrompt renders one fragment as Markdown for embedding in an extraction
// prompt. On conversion failure the raw markup is returned unchanged; the
// service can still work with HTML, just at a higher token cost.
func (p *Preprocessor) ToPrompt(fragmentHTML, domain string) string {
	md, err := p.conv.ConvertString(fragmentHTML, converter.WithDomain(domain))
	if err != nil || strings.TrimSpace(md) == "" {
		return fragmentHTML
	}
	return strings.TrimSpace(md)
}

// EstimateTokens provides a fast token count estimate without importing a
// tokenizer: utf8 rune count / 3, a middle ground between English (~4
// chars/token) and CJK (~1.5 chars/token).
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	est := n / 3
	if est < 1 {
		return 1
	}
	return est
}

// ProfileURL extracts the first profile anchor href from a fragment, used to
// enrich degraded records with a best-effort link when the extraction
// service is unavailable. selector narrows the anchor lookup
// (config.HarvestConfig.ProfileLinkSelector); an empty selector matches any
// anchor. Returns "" when no matching anchor is present.
func ProfileURL(fragmentHTML, selector string) string {
	if selector == "" {
		selector = "a[href]"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragmentHTML))
	if err != nil {
		return ""
	}
	var href string
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		h, _ := sel.Attr("href")
		h = strings.TrimSpace(h)
		if h == "" || strings.HasPrefix(h, "#") || strings.HasPrefix(h, "javascript:") {
			return true
		}
		href = h
		return false
	})
	return href
}

// Absolutize resolves a possibly relative href against the listing's
// scheme+host base. Fragment anchors are usually site-relative ("/in/x"),
// which a browser cannot navigate to directly. Unparsable inputs are
// returned unchanged.
func Absolutize(base, href string) string {
	if base == "" || href == "" {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}
