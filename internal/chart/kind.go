package chart

import "strings"

// Kind selects the visual encoding of a chart. The zero value means no chart.
type Kind string

const (
	KindNone Kind = ""
	KindBar  Kind = "bar"
	KindPie  Kind = "pie"
	KindLine Kind = "line"
)

// ParseKind accepts bar, pie and line in any case. Empty input yields
// KindNone.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindNone:
		return KindNone, true
	case KindBar:
		return KindBar, true
	case KindPie:
		return KindPie, true
	case KindLine:
		return KindLine, true
	default:
		return KindNone, false
	}
}
