package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// Origin is the scheme and host every crawl request must stay within.
// Relative links are resolved against it.
type Origin struct {
	base *url.URL
}

// ParseOrigin accepts an absolute http(s) URL and keeps only its origin.
func ParseOrigin(raw string) (Origin, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Origin{}, fmt.Errorf("parse origin: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Origin{}, fmt.Errorf("origin %q must use http or https", raw)
	}
	if u.Host == "" {
		return Origin{}, fmt.Errorf("origin %q has no host", raw)
	}
	return Origin{base: &url.URL{Scheme: scheme, Host: strings.ToLower(u.Host), Path: "/"}}, nil
}

// String returns the origin as scheme://host/.
func (o Origin) String() string {
	if o.base == nil {
		return ""
	}
	return o.base.String()
}

// Hostname returns the origin host without port.
func (o Origin) Hostname() string {
	if o.base == nil {
		return ""
	}
	return o.base.Hostname()
}

// Contains reports whether rawURL shares the origin's scheme and host.
func (o Origin) Contains(rawURL string) bool {
	if o.base == nil {
		return false
	}
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}
	n, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	return n.Scheme == o.base.Scheme && n.Host == o.normalizedHost()
}

func (o Origin) normalizedHost() string {
	host := o.base.Host
	if o.base.Scheme == "http" {
		host = strings.TrimSuffix(host, ":80")
	}
	if o.base.Scheme == "https" {
		host = strings.TrimSuffix(host, ":443")
	}
	return host
}

// Resolve turns a link into an absolute URL against the origin and rejects
// results outside it with a *CrawlError wrapping ErrOutsideOrigin.
func (o Origin) Resolve(link string) (string, error) {
	if o.base == nil {
		return "", fmt.Errorf("origin is not configured")
	}
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", link, err)
	}
	abs := o.base.ResolveReference(ref).String()
	if !o.Contains(abs) {
		return "", &CrawlError{URL: abs, Reason: ErrOutsideOrigin}
	}
	return abs, nil
}

// NormalizeURL standardizes a URL to avoid duplicates.
// It lowercases the scheme and host, removes default ports, and sorts query parameters.
// It also removes fragments.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	u.Fragment = ""

	q := u.Query()
	u.RawQuery = q.Encode()

	return u.String(), nil
}
