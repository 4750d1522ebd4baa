package ingest

import "strings"

// classMap corrects the short share-class aliases that appear in index lists
// but that the vendor only recognises with an explicit class suffix.
var classMap = map[string]string{
	// Berkshire Hathaway / Brown-Forman
	"BRK":   "BRK.B",
	"BRK.B": "BRK.B",
	"BRK.A": "BRK.A",
	"BF":    "BF.B",
	"BF.B":  "BF.B",
	"BF.A":  "BF.A",
}

// NormalizeVendorSymbol maps a universe symbol to the spelling the vendor
// expects. Symbols without a known quirk pass through unchanged.
func NormalizeVendorSymbol(sym string) string {
	s := strings.ToUpper(strings.TrimSpace(sym))
	if mapped, ok := classMap[s]; ok {
		return mapped
	}
	return s
}

// AltClassSymbol returns the sibling share class to try when the vendor does
// not know the normalized spelling: BRK.B ⇄ BRK.A and the like. Empty when
// no alternate exists.
func AltClassSymbol(symNorm string) string {
	s := strings.ToUpper(symNorm)
	switch {
	case strings.HasSuffix(s, ".B"):
		return s[:len(s)-2] + ".A"
	case strings.HasSuffix(s, ".A"):
		return s[:len(s)-2] + ".B"
	}
	return ""
}

// symbolMapping pairs the original→vendor spelling map with its inverse.
// When two originals collapse to one vendor spelling the first seen wins;
// the losers are reported so the caller can log the ambiguity.
type symbolMapping struct {
	origToNorm map[string]string
	normToOrig map[string]string
	collisions []string
}

func buildSymbolMapping(universe []string) symbolMapping {
	m := symbolMapping{
		origToNorm: make(map[string]string, len(universe)),
		normToOrig: make(map[string]string, len(universe)),
	}
	for _, orig := range universe {
		norm := NormalizeVendorSymbol(orig)
		m.origToNorm[orig] = norm
		if _, taken := m.normToOrig[norm]; taken {
			m.collisions = append(m.collisions, orig)
			continue
		}
		m.normToOrig[norm] = orig
	}
	return m
}
