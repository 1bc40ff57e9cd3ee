package clubhub

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const delegatePathFormat = "/account/delegate/%s"

// pages known to embed a bearer token in an inline script after a
// delegation switch, in the order they are worth trying
var tokenProbePages = []string{
	"/member/home",
	"/member/billing",
	"/app/dashboard",
}

// SwitchContext makes the server act as the given member. every
// per-member read afterwards reveals that member's data; reads made
// without a switch silently return someone else's.
//
// The returned token is only valid while this delegation is active and
// must never be cached across switches. an empty token with a nil
// error means "no usable token": callers should still attempt
// cookie-only requests, some endpoints accept them.
func (c *Client) SwitchContext(ctx context.Context, memberId string) (string, error) {
	ctx, span := tracer.Start(ctx, "client:SwitchContext")
	defer span.End()
	span.SetAttributes(attribute.String("member_id", memberId))

	res, err := c.http.R().
		SetContext(ctx).
		Get(fmt.Sprintf(delegatePathFormat, url.PathEscape(memberId)))
	if err != nil || res.StatusCode() >= 400 {
		// degraded path: the portal honors the delegation cookie even
		// when the switch endpoint is down
		slog.WarnContext(
			ctx, "delegation switch request failed, setting cookie directly",
			"member_id", memberId, "err", err,
		)
		c.setCookie(cookieDelegate, memberId)
	}
	c.delegatedTo = memberId

	for _, page := range tokenProbePages {
		res, err := c.http.R().
			SetContext(ctx).
			Get(page)
		if err != nil || res.StatusCode() >= 400 {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
		if err != nil {
			continue
		}
		if token := c.extractToken(ctx, doc); token != "" {
			c.lastToken = token
			span.SetAttributes(attribute.String("token_source", page))
			return token, nil
		}
	}

	if token := c.cookie(cookieToken); token != "" {
		c.lastToken = token
		span.SetAttributes(attribute.String("token_source", "cookie"))
		return token, nil
	}

	if c.lastToken != "" {
		// stale and possibly wrong-scope, downstream callers must
		// tolerate unauthorized responses
		slog.WarnContext(ctx, "no token found after delegation, reusing last known token", "member_id", memberId)
		return c.lastToken, nil
	}

	span.SetStatus(codes.Ok, "no usable token")
	return "", nil
}
