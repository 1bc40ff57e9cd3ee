package htmlutil

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("gymops.lib.htmlutil")

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

type Anchor struct {
	Name string
	Href string
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// collapses inner whitespace and drops non-printable runes from
// scraped display text
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	s = innerWhitespace.ReplaceAllString(s, " ")
	return s
}

func GetAnchors(ctx context.Context, sel *goquery.Selection) []Anchor {
	ctx, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}

		link, err := url.Parse(href)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "got error while parsing url")
			continue
		}

		name := CleanText(GetText(n))

		linkStr := link.String()
		anchors = append(anchors, Anchor{
			Name: name,
			Href: linkStr,
		})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("url", linkStr),
		))
	}

	return anchors
}

// returns the name -> value mapping of every <input type="hidden">
// inside the selection, the vendor rotates anti-forgery field names
// so all of them are treated as opaque and must-preserve
func HiddenInputs(form *goquery.Selection) map[string]string {
	fields := map[string]string{}
	form.Find("input[type=hidden]").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if name == "" {
			return
		}
		fields[name] = input.AttrOr("value", "")
	})
	return fields
}

// walks inline <script> tags and returns the first non-empty result
// of extract
func ScanInlineScripts(doc *goquery.Document, extract func(text string) string) string {
	for _, script := range doc.Find("script").Nodes {
		if out := extract(GetText(script)); out != "" {
			return out
		}
	}
	return ""
}
