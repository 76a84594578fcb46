package rastersvc

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

const maxRedirects = 5

var errBlockedHost = errors.Wrap(errUnsupportedSource, "host is private or loopback")

var privateNets = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"100.64.0.0/10",
	"169.254.0.0/16",
	"fc00::/7",
	"fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return true
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// checkPublicURL accepts http(s) URLs whose host is a public address, or resolves only to public addresses.
func checkPublicURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(errUnsupportedSource, "invalid url")
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return errors.Wrap(errUnsupportedSource, "only http and https urls are fetched")
	}
	host := u.Hostname()
	if host == "" {
		return errors.Wrap(errUnsupportedSource, "url has no host")
	}
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return errBlockedHost
		}
		return nil
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return errBlockedHost
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		// the dial fails as well; the dialer check still applies if it does not
		return nil
	}
	for _, a := range addrs {
		if isPrivateIP(a.IP) {
			return errBlockedHost
		}
	}
	return nil
}

// dialControl refuses connections to private addresses once the name is resolved,
// which covers redirects and DNS rebinding.
func dialControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return errors.Wrap(errUnsupportedSource, "invalid address")
	}
	if ip := net.ParseIP(host); ip == nil || isPrivateIP(ip) {
		return errBlockedHost
	}
	return nil
}

// newPublicClient returns an HTTP client that only reaches public addresses.
func newPublicClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: 10 * time.Second, Control: dialControl}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.Errorf("too many redirects (%d)", len(via))
			}
			return checkPublicURL(req.Context(), req.URL.String())
		},
	}
}
