package clubhub

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"gymops-backend/lib/restyutil"
	"gymops-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/clubhub")

// cookie names observed on the portal. none of this is documented,
// the set was recovered by diffing browser sessions.
const (
	cookieSession  = "ASP.NET_SessionId"
	cookieUser     = "chub_user"
	cookieDelegate = "chub_delegate"
	cookieToken    = "chub_access_token"
)

// Client is a logged-in session against the ClubHub portal.
//
// The delegation context ("which member the server thinks we are
// acting as") is server-side state attached to the session cookie, so
// a Client must not be shared between goroutines that operate on
// different members. Authenticate is the only internally synchronized
// operation; use one Client per worker.
type Client struct {
	BaseUrl *url.URL
	http    *resty.Client

	username string
	password string

	classifier PageClassifier
	extractors []TokenExtractor

	authMu      sync.Mutex
	lastLoginAt time.Time

	delegatedTo string
	lastToken   string

	dir    *directoryIndex
	dirTTL time.Duration
}

type ClientOptions struct {
	BaseUrl  string
	Username string
	Password string

	// defaults to DefaultClassifier
	Classifier PageClassifier
	// defaults to DefaultExtractors
	Extractors []TokenExtractor

	// defaults to 30 seconds
	Timeout time.Duration
	// nil means restyutil.DefaultRetryPolicy
	Retry *restyutil.RetryPolicy
	// the production portal sits behind cloudflare, tests don't
	CloudflareBypass bool
	// defaults to 15 minutes
	DirectoryTTL time.Duration
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client, err := restyutil.NewBrowserClient(restyutil.ClientOptions{
		BaseUrl:          opts.BaseUrl,
		Timeout:          opts.Timeout,
		Retry:            opts.Retry,
		CloudflareBypass: opts.CloudflareBypass,
	})
	if err != nil {
		return nil, err
	}
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	telemetry.InstrumentResty(client, "scrapers/clubhub/http")

	classifier := opts.Classifier
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	extractors := opts.Extractors
	if len(extractors) == 0 {
		extractors = DefaultExtractors()
	}
	dirTTL := opts.DirectoryTTL
	if dirTTL == 0 {
		dirTTL = 15 * time.Minute
	}

	return &Client{
		BaseUrl:    baseUrl,
		http:       client,
		username:   opts.Username,
		password:   opts.Password,
		classifier: classifier,
		extractors: extractors,
		dirTTL:     dirTTL,
	}, nil
}

// enables full request/response transcript dumps, for debugging the
// portal's undocumented pages
func (c *Client) SetInstrumentOutput(output restyutil.InstrumentOutput) {
	restyutil.InstrumentClient(c.http, tracer, output)
}

func (c *Client) cookie(name string) string {
	for _, ck := range c.http.GetClient().Jar.Cookies(c.BaseUrl) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) setCookie(name, value string) {
	c.http.GetClient().Jar.SetCookies(c.BaseUrl, []*http.Cookie{
		{Name: name, Value: value, Path: "/"},
	})
}

// the url the chain of redirects actually landed on
func finalUrl(res *resty.Response) string {
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		return res.RawResponse.Request.URL.String()
	}
	return res.Request.URL
}
