// Package security gates outbound comment text: markup sanitization,
// length validation and the client-side submission cooldown.
package security

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

var allowedTags = map[string]bool{
	"b":  true,
	"i":  true,
	"a":  true,
	"p":  true,
	"br": true,
}

var allowedAttrs = map[string]bool{
	"href":   true,
	"target": true,
}

// Elements whose content is dropped together with the tag.
var droppedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"iframe":   true,
	"object":   true,
	"embed":    true,
	"template": true,
	"noscript": true,
	"title":    true,
	"textarea": true,
}

var allowedSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"mailto": true,
}

// Sanitize strips all markup except b, i, a, p and br. Only href and target
// attributes are kept, and href must be relative or use http(s)/mailto.
// Text is re-escaped, so the result is safe to render as HTML.
func Sanitize(input string) string {
	z := html.NewTokenizer(strings.NewReader(input))
	var b strings.Builder
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF; a strings.Reader cannot fail otherwise.
			return b.String()

		case html.TextToken:
			if skip == 0 {
				b.WriteString(html.EscapeString(string(z.Text())))
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if droppedElements[tok.Data] {
				if tt == html.StartTagToken {
					skip++
				}
				continue
			}
			if skip > 0 || !allowedTags[tok.Data] {
				continue
			}
			writeStartTag(&b, tok, tt == html.SelfClosingTagToken)

		case html.EndTagToken:
			tok := z.Token()
			if droppedElements[tok.Data] {
				if skip > 0 {
					skip--
				}
				continue
			}
			if skip > 0 || !allowedTags[tok.Data] || tok.Data == "br" {
				continue
			}
			b.WriteString("</")
			b.WriteString(tok.Data)
			b.WriteString(">")
		}
		// Comments and doctypes are dropped.
	}
}

func writeStartTag(b *strings.Builder, tok html.Token, selfClosing bool) {
	b.WriteString("<")
	b.WriteString(tok.Data)
	for _, attr := range tok.Attr {
		key := strings.ToLower(attr.Key)
		if attr.Namespace != "" || !allowedAttrs[key] {
			continue
		}
		val := attr.Val
		if key == "href" {
			var ok bool
			if val, ok = safeHref(val); !ok {
				continue
			}
		}
		b.WriteString(" ")
		b.WriteString(key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(val))
		b.WriteString(`"`)
	}
	if selfClosing && tok.Data == "br" {
		b.WriteString(" /")
	}
	b.WriteString(">")
}

func safeHref(raw string) (string, bool) {
	href := strings.TrimSpace(raw)
	if href == "" {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Scheme == "" {
		return href, true
	}
	return href, allowedSchemes[u.Scheme]
}
