package scrape

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/logger"
)

// ClientOptions configures a Client. Zero values take the defaults.
type ClientOptions struct {
	Timeout           time.Duration // default 60s
	RequestsPerMinute int           // 0 disables pacing
	BlockPrivateIP    *bool         // default true
	MaxRedirects      *int          // default 10
}

// Client fetches HTML documents. It only speaks http(s), paces requests
// and by default refuses private and loopback addresses, including after
// redirects and DNS resolution.
type Client struct {
	http           *http.Client
	limiter        *rate.Limiter
	allowedSchemes []string
	blockPrivateIP bool
	maxRedirects   int
	logger         *zap.SugaredLogger
}

// NewClient creates a client from opts.
func NewClient(opts ClientOptions, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = logger.ComponentLogger("scrape")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	blockPrivateIP := true
	if opts.BlockPrivateIP != nil {
		blockPrivateIP = *opts.BlockPrivateIP
	}
	maxRedirects := 10
	if opts.MaxRedirects != nil {
		maxRedirects = *opts.MaxRedirects
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}

	c := &Client{
		http:           &http.Client{Timeout: timeout},
		limiter:        limiter,
		allowedSchemes: []string{"http", "https"},
		blockPrivateIP: blockPrivateIP,
		maxRedirects:   maxRedirects,
		logger:         log,
	}

	c.http.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return errors.Newf("stopped after %d redirects", c.maxRedirects)
		}
		if err := c.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	if blockPrivateIP {
		dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
		c.http.Transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, _, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, errors.Wrap(err, "invalid address")
				}
				ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
				if err != nil {
					return nil, errors.Wrapf(err, "failed to resolve host %q", host)
				}
				for _, ip := range ips {
					if isPrivateIP(ip) {
						return nil, errors.Newf("private IP address blocked: %s", ip)
					}
				}
				return dialer.DialContext(ctx, network, addr)
			},
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	return c
}

// FetchDocument GETs rawURL with the session's cookie and parses the body.
// A response that landed on the login page yields ErrSessionExpired.
func (c *Client) FetchDocument(ctx context.Context, s *Session, rawURL string) (*goquery.Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := c.validateURL(u); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if s.Cookie != "" {
		req.Header.Set("Cookie", s.Cookie)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	s.Requests++
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", u.Redacted())
	}
	defer resp.Body.Close()

	c.logger.Debugw("Fetched page",
		logger.FieldSessionID, s.ID,
		logger.FieldURL, u.Redacted(),
		logger.FieldStatus, resp.StatusCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || isLoginURL(resp.Request.URL) {
		return nil, errors.WithDetailf(ErrSessionExpired, "GET %s answered %d at %s", u.Redacted(), resp.StatusCode, resp.Request.URL.Path)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, errors.Wrapf(errors.ErrServiceUnavailable, "GET %s: %s", u.Redacted(), resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("GET %s: unexpected status %s", u.Redacted(), resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", u.Redacted())
	}
	return doc, nil
}

func isLoginURL(u *url.URL) bool {
	if u == nil {
		return false
	}
	p := strings.ToLower(u.Path)
	return strings.HasSuffix(p, "/login") || strings.Contains(p, "/auth/login")
}

// validateURL rejects URLs the client must never request.
func (c *Client) validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	if !slices.Contains(c.allowedSchemes, scheme) {
		return errors.Newf("scheme %q not allowed (allowed: %v)", scheme, c.allowedSchemes)
	}
	if u.User != nil {
		return errors.New("URL carries userinfo")
	}

	hostname := u.Hostname()
	if hostname == "" {
		return errors.New("URL missing hostname")
	}

	if c.blockPrivateIP {
		if isLocalhost(hostname) {
			return errors.New("localhost access blocked")
		}
		if ip := net.ParseIP(hostname); ip != nil && isPrivateIP(ip) {
			return errors.Newf("private IP address blocked: %s", hostname)
		}
	}
	return nil
}

var privateBlocks = []net.IPNet{
	{IP: net.IPv4(10, 0, 0, 0), Mask: net.CIDRMask(8, 32)},
	{IP: net.IPv4(172, 16, 0, 0), Mask: net.CIDRMask(12, 32)},
	{IP: net.IPv4(192, 168, 0, 0), Mask: net.CIDRMask(16, 32)},
	{IP: net.IPv4(127, 0, 0, 0), Mask: net.CIDRMask(8, 32)},
	{IP: net.IPv4(169, 254, 0, 0), Mask: net.CIDRMask(16, 32)},
	{IP: net.IPv4(0, 0, 0, 0), Mask: net.CIDRMask(8, 32)},
	{IP: net.IPv4(224, 0, 0, 0), Mask: net.CIDRMask(4, 32)},
	{IP: net.IPv4(240, 0, 0, 0), Mask: net.CIDRMask(4, 32)},
}

// isPrivateIP checks if an IP is in private or special-use ranges.
func isPrivateIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		for _, block := range privateBlocks {
			if block.Contains(ip4) {
				return true
			}
		}
		return false
	}
	// fc00::/7 unique local
	uniqueLocal := len(ip) == net.IPv6len && ip[0]&0xfe == 0xfc
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsMulticast() || ip.IsUnspecified() || uniqueLocal
}

func isLocalhost(hostname string) bool {
	hostname = strings.ToLower(hostname)
	return hostname == "localhost" ||
		hostname == "localhost.localdomain" ||
		strings.HasSuffix(hostname, ".localhost")
}
