package security

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Hostnames that never describe a legitimate facilitator or RPC endpoint.
var blockedHosts = []string{"localhost", "metadata.google.internal", "metadata.google"}

// ValidateEndpointURL checks that a configured outbound endpoint (the x402
// facilitator, a chain RPC node) is safe to call from the server: http(s)
// only, and neither the literal host nor any address it resolves to may be
// loopback, private, link-local, or unspecified.
func ValidateEndpointURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("endpoint is not a valid URL")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("endpoint scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint has no host")
	}

	host := u.Hostname()
	for _, b := range blockedHosts {
		if strings.EqualFold(host, b) {
			return fmt.Errorf("endpoint host %q is not allowed", host)
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		return checkEndpointIP(ip)
	}

	ips, err := net.LookupHost(host)
	if err != nil {
		return fmt.Errorf("endpoint host %q does not resolve", host)
	}
	for _, raw := range ips {
		if resolved := net.ParseIP(raw); resolved != nil {
			if err := checkEndpointIP(resolved); err != nil {
				return fmt.Errorf("endpoint host %q resolves to blocked address: %w", host, err)
			}
		}
	}
	return nil
}

func checkEndpointIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("loopback addresses are not allowed")
	case ip.IsPrivate():
		return fmt.Errorf("private addresses are not allowed")
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("link-local addresses are not allowed")
	case ip.IsUnspecified():
		return fmt.Errorf("unspecified addresses are not allowed")
	}
	return nil
}
