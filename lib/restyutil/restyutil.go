package restyutil

import (
	"net/http/cookiejar"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// transient server failures worth retrying, anything else in the 4xx
// range means the request itself is wrong and must not be repeated
var retryStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

type RetryPolicy struct {
	Count       int
	WaitTime    time.Duration
	MaxWaitTime time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Count:       5,
		WaitTime:    time.Millisecond * 500,
		MaxWaitTime: time.Second * 8,
	}
}

// centralizes retry/backoff on the transport so call sites never roll
// their own sleep loops. resty backs off exponentially (with jitter)
// between WaitTime and MaxWaitTime. POSTs are retried too, the vendor
// treats them as idempotent in practice.
func ApplyRetryPolicy(client *resty.Client, policy RetryPolicy) {
	client.SetRetryCount(policy.Count)
	client.SetRetryWaitTime(policy.WaitTime)
	client.SetRetryMaxWaitTime(policy.MaxWaitTime)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return retryStatuses[res.StatusCode()]
	})
}

type ClientOptions struct {
	BaseUrl string
	// defaults to a desktop chrome user agent
	UserAgent string
	// defaults to 30 seconds
	Timeout time.Duration
	// wraps the transport with a cloudflare bypass, the vendor portal
	// sits behind it
	CloudflareBypass bool
	// nil means DefaultRetryPolicy, a zero-count policy disables retries
	Retry *RetryPolicy
}

// NewBrowserClient builds a cookie-bearing resty client that looks
// like a browser session. the cookie jar is shared across every
// request made through the client and is mutated by every response.
func NewBrowserClient(opts ClientOptions) (*resty.Client, error) {
	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = browserUserAgent
	}
	client.SetHeader("user-agent", userAgent)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	client.SetTimeout(timeout)

	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	retry := DefaultRetryPolicy()
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	if retry.Count > 0 {
		ApplyRetryPolicy(client, retry)
	}

	return client, nil
}
