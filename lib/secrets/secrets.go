package secrets

import (
	"fmt"
	"os"
	"strings"
)

// well-known secret keys used across the repo
const (
	ClubHubUsername = "clubhub.username"
	ClubHubPassword = "clubhub.password"
	InvoicerToken   = "invoicer.token"
	SmtpPassword    = "smtp.password"
)

// fixed key -> environment variable mapping, a key not listed here
// falls back to a mechanical GYMOPS_<KEY> translation
var envTable = map[string]string{
	ClubHubUsername: "CLUBHUB_USERNAME",
	ClubHubPassword: "CLUBHUB_PASSWORD",
	InvoicerToken:   "INVOICER_API_TOKEN",
	SmtpPassword:    "GYMOPS_SMTP_PASSWORD",
}

type Provider struct {
	fallback map[string]string
}

// fallback may be nil, it is typically loaded out of a gitignored
// local config file
func NewProvider(fallback map[string]string) Provider {
	return Provider{fallback: fallback}
}

func envName(key string) string {
	if name, ok := envTable[key]; ok {
		return name
	}
	name := strings.ToUpper(key)
	name = strings.NewReplacer(".", "_", "-", "_").Replace(name)
	return "GYMOPS_" + name
}

// resolution order: mapped environment variable, then the local
// fallback table. the second return reports whether the secret was
// found at all.
func (p Provider) Get(key string) (string, bool) {
	if value := os.Getenv(envName(key)); value != "" {
		return value, true
	}
	if value, ok := p.fallback[key]; ok && value != "" {
		return value, true
	}
	return "", false
}

// a missing secret is a configuration error, callers must treat it as
// fatal rather than retry
func (p Provider) Require(keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		value, ok := p.Get(key)
		if !ok {
			return nil, fmt.Errorf("missing required secret %q (checked env %s and local fallback)", key, envName(key))
		}
		out[key] = value
	}
	return out, nil
}
