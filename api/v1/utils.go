package v1

import (
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// getClientIP resolves the caller's public IP for the excluded-IP gate and
// conversion metadata. The service sits behind a single reverse proxy, so
// only X-Forwarded-For and X-Real-IP are consulted before the socket address.
func getClientIP(c *fiber.Ctx) string {
	if ip := firstPublicIP(strings.Split(c.Get("X-Forwarded-For"), ",")); ip != "" {
		return ip
	}
	if ip := firstPublicIP([]string{c.Get("X-Real-IP")}); ip != "" {
		return ip
	}

	remoteAddr := c.Context().RemoteAddr().String()
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		remoteAddr = host
	}
	if parsed := net.ParseIP(remoteAddr); parsed != nil && !isPrivateIP(parsed) {
		return remoteAddr
	}

	if ip := strings.TrimSpace(c.IP()); ip != "" {
		if parsed := net.ParseIP(ip); parsed != nil && !isPrivateIP(parsed) {
			return ip
		}
	}

	return "127.0.0.1"
}

// firstPublicIP returns the first public address in a proxy header chain.
// Entries may carry a port or IPv6 brackets; 4-in-6 addresses are unmapped.
func firstPublicIP(values []string) string {
	for _, raw := range values {
		candidate := strings.TrimSpace(raw)
		if candidate == "" {
			continue
		}

		if addrPort, err := netip.ParseAddrPort(candidate); err == nil {
			candidate = addrPort.Addr().Unmap().String()
		} else if addr, err := netip.ParseAddr(strings.Trim(candidate, "[]")); err == nil {
			candidate = addr.Unmap().String()
		} else {
			continue
		}

		if parsed := net.ParseIP(candidate); parsed != nil && !isPrivateIP(parsed) {
			return candidate
		}
	}
	return ""
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
