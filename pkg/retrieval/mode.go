package retrieval

import (
	"fmt"
	"slices"
	"strings"
)

// Mode is a named retrieval aggressiveness level.
type Mode string

const (
	ModeSubtle         Mode = "subtle"
	ModeDefault        Mode = "default"
	ModeAggressive     Mode = "aggressive"
	ModeVeryAggressive Mode = "very-aggressive"
)

var modeTopK = map[Mode]int{
	ModeSubtle:         1,
	ModeDefault:        2,
	ModeAggressive:     5,
	ModeVeryAggressive: 10,
}

// ParseMode validates a mode name. The empty string is ModeDefault.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeDefault, nil
	}
	m := Mode(strings.ToLower(s))
	if _, ok := modeTopK[m]; !ok {
		return "", fmt.Errorf("unknown retrieval mode %q (valid: %s)", s, strings.Join(ModeNames(), ", "))
	}
	return m, nil
}

// TopK is the number of passages retrieved per query in this mode.
func (m Mode) TopK() int {
	if k, ok := modeTopK[m]; ok {
		return k
	}
	return modeTopK[ModeDefault]
}

// ModeNames lists the valid modes from least to most aggressive.
func ModeNames() []string {
	names := make([]string, 0, len(modeTopK))
	for m := range modeTopK {
		names = append(names, string(m))
	}
	slices.SortFunc(names, func(a, b string) int {
		return modeTopK[Mode(a)] - modeTopK[Mode(b)]
	})
	return names
}
