package trade

import (
	"github.com/ethereum/go-ethereum/common"
)

// IsAddress reports whether value is a 20-byte hex address
func IsAddress(value string) bool {
	return common.IsHexAddress(value)
}

// ShortenAddress returns the checksummed address cut down to 0x1234...abcd.
// Values that are not addresses are returned unchanged.
func ShortenAddress(value string) string {
	const chars = 4
	if !IsAddress(value) {
		return value
	}
	checksummed := common.HexToAddress(value).Hex()
	return checksummed[:chars+2] + "..." + checksummed[len(checksummed)-chars:]
}

func sameAddress(a, b string) bool {
	if IsAddress(a) && IsAddress(b) {
		return common.HexToAddress(a) == common.HexToAddress(b)
	}
	return a == b
}
