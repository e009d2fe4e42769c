// Package score maps free-text critic scores onto a 1-5 ordinal scale.
package score

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Score is a normalized critic score. Valid scores are 1 through 5.
type Score int

// Missing marks a score that could not be normalized.
const Missing Score = 0

// Valid reports whether s lies on the 1-5 scale.
func (s Score) Valid() bool {
	return s >= 1 && s <= 5
}

// String renders the score; Missing renders as an empty string.
func (s Score) String() string {
	if !s.Valid() {
		return ""
	}
	return strconv.Itoa(int(s))
}

// gradeTable holds the letter and star grades most outlets use.
var gradeTable = map[string]Score{
	"*****": 5,
	"****":  4,
	"***":   3,
	"**":    2,
	"*":     1,

	"A-PLUS":  5,
	"A PLUS":  5,
	"A+":      5,
	"A":       5,
	"A-":      5,
	"A -":     5,
	"A MINUS": 5,
	"A-MINUS": 5,

	"B PLUS":  4,
	"B-PLUS":  4,
	"B +":     4,
	"B+":      4,
	"B":       4,
	"B-":      4,
	"B MINUS": 4,
	"B-MINUS": 4,

	"C PLUS":  3,
	"C-PLUS":  3,
	"C+":      3,
	"C":       3,
	"C-":      3,
	"C-MINUS": 3,
	"C MINUS": 3,

	"D+":     2,
	"D PLUS": 2,
	"D":      2,
	"D-":     2,

	"E+": 1,
	"E":  1,
	"E-": 1,
	"F+": 1,
	"F":  1,
	"F-": 1,
}

// ratioPhrases are applied one after another, in order.
var ratioPhrases = [][2]string{
	{"'", ""},
	{`"`, ""},
	{" stars out of ", "/"},
	{" stars", "/5"},
	{" out of ", "/"},
	{" of ", "/"},
}

var ratioPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d*)?|\.\d+)\s*(?:/\s*(\d+(?:\.\d*)?|\.\d+)\s*)?$`)

// Normalize converts raw into a Score. Ratios ("4/5", "3 stars",
// "2.5 out of 4") in [0,1] scale to 1-5; anything else is looked up in the
// grade table. Unrecognized input yields Missing.
func Normalize(raw string) Score {
	if strings.TrimSpace(raw) == "" {
		return Missing
	}
	s := strings.ReplaceAll(strings.TrimSpace(raw), "  ", " ")

	if r, ok := parseRatio(rewrite(s)); ok && r >= 0 && r <= 1 {
		scaled := int(math.RoundToEven(r * 5))
		return Score(max(1, scaled))
	}

	if grade, ok := gradeTable[strings.ToUpper(s)]; ok {
		return grade
	}
	return Missing
}

// Table returns a copy of the grade lookup table.
func Table() map[string]Score {
	out := make(map[string]Score, len(gradeTable))
	for k, v := range gradeTable {
		out[k] = v
	}
	return out
}

func rewrite(s string) string {
	for _, p := range ratioPhrases {
		s = strings.ReplaceAll(s, p[0], p[1])
	}
	return s
}

// parseRatio accepts "n" or "n/d" with non-negative decimal operands.
func parseRatio(expr string) (float64, bool) {
	m := ratioPattern.FindStringSubmatch(expr)
	if m == nil {
		return 0, false
	}
	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if m[2] == "" {
		return num, true
	}
	den, err := strconv.ParseFloat(m[2], 64)
	if err != nil || den == 0 {
		return 0, false
	}
	return num / den, true
}
