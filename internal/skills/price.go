package skills

import (
	"math/big"
	"strings"
)

var weiPerUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// FormatPrice renders an amount in the smallest currency unit (18 decimals)
// as a decimal string without trailing zeros.
func FormatPrice(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	s := new(big.Rat).SetFrac(wei, weiPerUnit).FloatString(18)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
