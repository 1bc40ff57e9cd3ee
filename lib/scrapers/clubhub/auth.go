package clubhub

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gymops-backend/lib/htmlutil"
	"gymops-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

var ErrLoginFailed = fmt.Errorf("failed to login to the clubhub portal")

const loginPath = "/account/login"

// a successful login stays usable for this long before we bother
// re-running the handshake
const authFreshness = 10 * time.Minute

// there is no structured success/failure signal anywhere, login state
// can only be inferred from what the page looks like. kept behind an
// interface so the heuristics are swappable and testable on their own.
type PageClassifier interface {
	IsLoginPage(pageUrl string, doc *goquery.Document) bool
}

type heuristicClassifier struct{}

func (heuristicClassifier) IsLoginPage(pageUrl string, doc *goquery.Document) bool {
	if strings.Contains(strings.ToLower(pageUrl), "login") {
		return true
	}
	if doc == nil {
		return false
	}
	if doc.Find("input[type=password]").Length() > 0 {
		return true
	}
	return false
}

func DefaultClassifier() PageClassifier {
	return heuristicClassifier{}
}

// Authenticate runs the login handshake, or reuses a login from the
// last ten minutes unless force is set. concurrent callers serialize
// here: only one handshake is ever in flight, the rest block and then
// hit the fast path.
func (c *Client) Authenticate(ctx context.Context, force bool) error {
	ctx, span := tracer.Start(ctx, "client:Authenticate")
	defer span.End()

	c.authMu.Lock()
	defer c.authMu.Unlock()

	if !force && !c.lastLoginAt.IsZero() && timezone.Now().Sub(c.lastLoginAt) < authFreshness {
		span.SetStatus(codes.Ok, "reused fresh login")
		return nil
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		err := c.login(ctx)
		if err == nil {
			c.lastLoginAt = timezone.Now()
			return nil
		}
		lastErr = err
		slog.WarnContext(ctx, "login attempt failed", "attempt", attempt+1, "err", err)
	}

	span.SetStatus(codes.Error, lastErr.Error())
	return fmt.Errorf("%w: %v", ErrLoginFailed, lastErr)
}

func (c *Client) login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:login")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		Get(loginPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login page html")
		return err
	}

	form := doc.Find("form").FilterFunction(func(_ int, f *goquery.Selection) bool {
		return f.Find("input[type=password]").Length() > 0
	}).First()
	if form.Length() == 0 {
		span.SetStatus(codes.Error, "failed to find login form")
		return fmt.Errorf("could not find a form with a password field")
	}

	// every hidden field is carried over verbatim, the anti-forgery
	// fields rotate names between deployments
	payload := htmlutil.HiddenInputs(form)
	if len(payload) == 0 {
		span.SetStatus(codes.Error, "no hidden fields on login form")
		return fmt.Errorf("login form carried no hidden fields, page is likely not fully rendered")
	}

	userField, passField := findCredentialFields(form)
	if userField == "" || passField == "" {
		span.SetStatus(codes.Error, "failed to identify credential fields")
		return fmt.Errorf("could not identify username/password inputs on login form")
	}
	payload[userField] = c.username
	payload[passField] = c.password

	action, err := c.BaseUrl.Parse(form.AttrOr("action", loginPath))
	if err != nil {
		return err
	}

	res, err = c.http.R().
		SetContext(ctx).
		SetFormData(payload).
		Post(action.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit login form")
		return err
	}

	if c.cookie(cookieSession) == "" || c.cookie(cookieUser) == "" {
		span.SetStatus(codes.Error, "session cookies missing after login")
		return fmt.Errorf("session cookies missing after login submit")
	}

	landing, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse post-login page")
		return err
	}
	if c.classifier.IsLoginPage(finalUrl(res), landing) {
		span.SetStatus(codes.Error, "still on login page after submit")
		return fmt.Errorf("still on the login page after submitting credentials")
	}

	// the bearer token cookie is unreliable, fish one out of the
	// landing page scripts when it's missing. best effort only.
	if c.cookie(cookieToken) == "" {
		if token := c.extractToken(ctx, landing); token != "" {
			c.lastToken = token
		}
	} else {
		c.lastToken = c.cookie(cookieToken)
	}

	return nil
}

// the portal's field names are not stable across deployments, identify
// inputs by type and name fragments instead
func findCredentialFields(form *goquery.Selection) (user string, pass string) {
	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		kind := strings.ToLower(input.AttrOr("type", "text"))
		name := input.AttrOr("name", "")
		if name == "" {
			return
		}

		switch kind {
		case "password":
			if pass == "" {
				pass = name
			}
		case "email":
			user = name
		case "text":
			if user != "" {
				return
			}
			lower := strings.ToLower(name)
			for _, fragment := range []string{"user", "email", "login", "account"} {
				if strings.Contains(lower, fragment) {
					user = name
					return
				}
			}
		}
	})

	if user == "" {
		// last resort: the only visible text input on the form
		texts := form.Find("input[type=text]")
		if texts.Length() == 1 {
			user = texts.AttrOr("name", "")
		}
	}
	return user, pass
}
