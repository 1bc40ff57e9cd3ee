package clubhub

import (
	"context"
	"regexp"

	"gymops-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TokenExtractor pulls a bearer token out of inline script text. the
// token's serialization differs between the portal's server-rendered
// pages and its SPA shell, so several patterns coexist.
type TokenExtractor interface {
	Name() string
	Extract(script string) string
}

type regexExtractor struct {
	name string
	re   *regexp.Regexp
}

func (e regexExtractor) Name() string {
	return e.name
}

func (e regexExtractor) Extract(script string) string {
	groups := e.re.FindStringSubmatch(script)
	if len(groups) < 2 {
		return ""
	}
	return groups[1]
}

func DefaultExtractors() []TokenExtractor {
	return []TokenExtractor{
		regexExtractor{
			name: "json_config",
			re:   regexp.MustCompile(`"access_?[tT]oken"\s*:\s*"([A-Za-z0-9._\-]+)"`),
		},
		regexExtractor{
			name: "window_global",
			re:   regexp.MustCompile(`__ACCESS_TOKEN__\s*=\s*['"]([A-Za-z0-9._\-]+)['"]`),
		},
		regexExtractor{
			name: "bearer_var",
			re:   regexp.MustCompile(`bearerToken\s*=\s*['"]([A-Za-z0-9._\-]+)['"]`),
		},
	}
}

func (c *Client) extractToken(ctx context.Context, doc *goquery.Document) string {
	ctx, span := tracer.Start(ctx, "client:extractToken")
	defer span.End()

	return htmlutil.ScanInlineScripts(doc, func(text string) string {
		for _, e := range c.extractors {
			if token := e.Extract(text); token != "" {
				span.AddEvent("token matched", trace.WithAttributes(
					attribute.String("extractor", e.Name()),
				))
				return token
			}
		}
		return ""
	})
}
