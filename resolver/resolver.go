// Package resolver resolves node hostnames to literal IP addresses on
// behalf of the partition parser and the topology monitor's
// endpoint-hostname candidate mode.
package resolver

import (
	"context"
	"net"
)

// Resolver resolves a hostname to zero or more literal addresses.
type Resolver interface {
	// ResolveAll returns every A/AAAA record for host, in resolver order.
	ResolveAll(ctx context.Context, host string) ([]net.IP, error)
}

// NetResolver resolves hostnames using the standard library's net.Resolver.
type NetResolver struct {
	resolver *net.Resolver
}

// NewNetResolver returns a Resolver backed by the given net.Resolver, or
// net.DefaultResolver if r is nil.
func NewNetResolver(r *net.Resolver) *NetResolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &NetResolver{resolver: r}
}

// ResolveAll implements Resolver.
func (n *NetResolver) ResolveAll(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}

	addrs, err := n.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}

	ips := make([]net.IP, len(addrs))
	for i, a := range addrs {
		ips[i] = a.IP
	}
	return ips, nil
}
