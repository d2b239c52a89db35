package domain

import (
	"math"
	"strings"
)

var (
	negInf = math.Inf(-1)
	posInf = math.Inf(1)
)

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
