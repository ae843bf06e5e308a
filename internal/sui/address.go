// Package sui holds the bits of the Sui address and signature scheme the service
// needs to build, sign and check transactions against a full node.
package sui

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const addressHexLen = 64

// NormalizeAddress lower-cases a Sui address and left-pads it to 32 bytes.
func NormalizeAddress(s string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(s))
	h = strings.TrimPrefix(h, "0x")
	if h == "" || len(h) > addressHexLen {
		return "", fmt.Errorf("invalid sui address %q", s)
	}
	if len(h)%2 == 1 {
		h = "0" + h
	}
	if _, err := hex.DecodeString(h); err != nil {
		return "", fmt.Errorf("invalid sui address %q: %w", s, err)
	}
	return "0x" + strings.Repeat("0", addressHexLen-len(h)) + h, nil
}

// IsValidAddress reports whether s normalizes cleanly.
func IsValidAddress(s string) bool {
	_, err := NormalizeAddress(s)
	return err == nil
}

// NormalizeCoinType normalizes the package address of "addr::module::Name",
// including nested type parameters.
func NormalizeCoinType(t string) (string, error) {
	t = strings.TrimSpace(t)
	if t == "" {
		return "", fmt.Errorf("empty coin type")
	}

	var b strings.Builder
	depth := 0
	start := 0
	flush := func(end int) error {
		part := strings.TrimSpace(t[start:end])
		if part == "" {
			return nil
		}
		norm, err := normalizeStructTag(part)
		if err != nil {
			return err
		}
		b.WriteString(norm)
		return nil
	}
	for i, r := range t {
		switch r {
		case '<', '>', ',':
			if err := flush(i); err != nil {
				return "", err
			}
			if r == '<' {
				depth++
			} else if r == '>' {
				depth--
			}
			b.WriteRune(r)
			start = i + 1
		}
	}
	if depth != 0 {
		return "", fmt.Errorf("unbalanced type parameters in %q", t)
	}
	if err := flush(len(t)); err != nil {
		return "", err
	}
	return b.String(), nil
}

func normalizeStructTag(tag string) (string, error) {
	parts := strings.Split(tag, "::")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("invalid coin type %q", tag)
	}
	addr, err := NormalizeAddress(parts[0])
	if err != nil {
		return "", err
	}
	return addr + "::" + parts[1] + "::" + parts[2], nil
}

// ShortAddress renders 0x1234...abcd for messages.
func ShortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// IsSUI reports whether coinType is the native gas coin.
func IsSUI(coinType string) bool {
	norm, err := NormalizeCoinType(coinType)
	if err != nil {
		return false
	}
	return norm == "0x0000000000000000000000000000000000000000000000000000000000000002::sui::SUI"
}
