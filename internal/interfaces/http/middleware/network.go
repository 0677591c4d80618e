package middleware

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tenancy/backend/internal/interfaces/http/dto"
)

// TrustedNetworks is a set of CIDR prefixes
type TrustedNetworks struct {
	prefixes []netip.Prefix
}

// ParseTrustedNetworks parses CIDRs. A bare address is a single-host prefix.
func ParseTrustedNetworks(cidrs []string) (*TrustedNetworks, error) {
	n := &TrustedNetworks{}
	for _, s := range cidrs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			addr, err := netip.ParseAddr(s)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted network %q: %w", s, err)
			}
			n.prefixes = append(n.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted network %q: %w", s, err)
		}
		n.prefixes = append(n.prefixes, p.Masked())
	}
	return n, nil
}

// Contains reports whether ip lies in one of the networks
func (n *TrustedNetworks) Contains(ip string) bool {
	if n == nil {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range n.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Len returns the number of networks
func (n *TrustedNetworks) Len() int {
	if n == nil {
		return 0
	}
	return len(n.prefixes)
}

// TrustedNetworkOnly rejects callers whose client IP is outside networks.
// With no networks configured every caller is rejected.
func TrustedNetworkOnly(networks *TrustedNetworks) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !networks.Contains(c.ClientIP()) {
			abortWithError(c, http.StatusForbidden, dto.ErrCodeUntrustedNetwork, "Caller is not on a trusted network")
			return
		}
		c.Next()
	}
}
