package utils

import "fmt"

// MaskAddress shortens a wallet address to its first and last three
// characters ("0xa…bcd" style). Empty input yields "N/A", which is what the
// rendering layer expects for an unlinked wallet slot.
func MaskAddress(addr string) string {
	if addr == "" {
		return "N/A"
	}
	if len(addr) <= 6 {
		return addr
	}
	return fmt.Sprintf("%s...%s", addr[:3], addr[len(addr)-3:])
}
