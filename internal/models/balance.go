package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Currency rates in World Locks
const (
	RateWL  int64 = 1
	RateDL  int64 = 100
	RateBGL int64 = 10000
)

// Balance is a World Lock amount split into BGL, DL and WL
type Balance struct {
	WL  int64 `json:"wl"`
	DL  int64 `json:"dl"`
	BGL int64 `json:"bgl"`
}

// BalanceFromWLs splits a World Lock total into the largest denominations
func BalanceFromWLs(total int64) Balance {
	if total < 0 {
		total = 0
	}
	bgl := total / RateBGL
	rest := total % RateBGL
	return Balance{
		BGL: bgl,
		DL:  rest / RateDL,
		WL:  rest % RateDL,
	}
}

// TotalWLs converts the balance back to World Locks
func (b Balance) TotalWLs() int64 {
	return b.WL*RateWL + b.DL*RateDL + b.BGL*RateBGL
}

// Format renders the balance as "1 BGL + 2 DL + 5 WL", omitting zero parts
func (b Balance) Format() string {
	var parts []string
	if b.BGL > 0 {
		parts = append(parts, groupThousands(b.BGL)+" BGL")
	}
	if b.DL > 0 {
		parts = append(parts, groupThousands(b.DL)+" DL")
	}
	if b.WL > 0 {
		parts = append(parts, groupThousands(b.WL)+" WL")
	}
	if len(parts) == 0 {
		return "0 WL"
	}
	return strings.Join(parts, " + ")
}

func (b Balance) String() string {
	return b.Format()
}

// FormatWL renders a World Lock amount with thousands separators
func FormatWL(amount int64) string {
	return fmt.Sprintf("%s WL", groupThousands(amount))
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
