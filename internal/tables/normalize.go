package tables

import (
	"regexp"
	"strings"
)

var numericCode = regexp.MustCompile(`^T?-?0*(\d+)$`)

// NormalizeCode masa kodunu tek biçime indirger.
// Sayısal kodlar "T-" önekli ve en az iki haneli olur: "5", "05", "T5", "t-05" -> "T-05".
// Diğer kodlar boşluksuz ve büyük harfli saklanır.
func NormalizeCode(raw string) string {
	s := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	if s == "" {
		return ""
	}

	m := numericCode.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	n := m[1]
	if len(n) < 2 {
		n = "0" + n
	}
	return "T-" + n
}
