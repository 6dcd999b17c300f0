package geo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrResolve means the input is not an IP and does not resolve to one
var ErrResolve = errors.New("Invalid domain or IP")

// Resolver turns a host name or IP literal into an IP address
type Resolver interface {
	Resolve(ctx context.Context, host string) (string, error)
}

// ExtractHost pulls the host out of free-form input
// "example.com", "https://example.com/path", "1.2.3.4:80" and bare IPv6
// literals all work
func ExtractHost(input string) (string, error) {
	input = strings.TrimSpace(input)
	if ip := net.ParseIP(strings.Trim(input, "[]")); ip != nil {
		return ip.String(), nil
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		input = "http://" + input
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResolve, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", ErrResolve
	}
	return host, nil
}

// DNSResolver resolves names with the system resolver
type DNSResolver struct {
	resolver *net.Resolver
}

// NewDNSResolver creates a resolver; nil uses net.DefaultResolver
func NewDNSResolver(r *net.Resolver) *DNSResolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &DNSResolver{resolver: r}
}

// Resolve returns IP literals unchanged and otherwise the first IPv4
// address of host, falling back to the first IPv6 one
func (d *DNSResolver) Resolve(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}

	addrs, err := d.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResolve, err)
	}
	if len(addrs) == 0 {
		return "", ErrResolve
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP.String(), nil
		}
	}
	return addrs[0].IP.String(), nil
}

// StaticResolver answers from a fixed table (tests and offline demos)
type StaticResolver map[string]string

func (s StaticResolver) Resolve(_ context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}
	if ip, ok := s[strings.ToLower(host)]; ok {
		return ip, nil
	}
	return "", ErrResolve
}
