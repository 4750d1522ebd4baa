// Package universe resolves the ordered, deduplicated set of symbols a run
// operates over, and fingerprints it for checkpoint keying. Universes come
// from named list files, the active tickers in the store, an explicit list,
// or the DASHBOARD_TICKERS environment variable.
package universe

import (
	"bufio"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/smgonzalez118/blue-quantum-be-pub/internal/store"
)

// DefaultMode is the named universe used when a request selects nothing.
const DefaultMode = "custom"

// KeyAllActive is the checkpoint fingerprint reserved for the all-active
// universe.
const KeyAllActive = "all_active"

// Selection describes which universe a caller wants, mirroring the request
// body of the trigger endpoints. Precedence: Symbols, then AllActive, then
// Mode (empty Mode means DefaultMode).
type Selection struct {
	Symbols   []string
	AllActive bool
	Mode      string
}

// Resolver loads universes from <dataDir>/universes/<mode>.txt and from the
// bar store's active tickers.
type Resolver struct {
	dataDir string
	bars    store.BarStore
}

// NewResolver creates a Resolver rooted at dataDir.
func NewResolver(dataDir string, bars store.BarStore) *Resolver {
	return &Resolver{dataDir: dataDir, bars: bars}
}

// Resolve returns the ordered, deduplicated symbol list for sel. The result
// may be empty; callers treat that as a configuration error.
func (r *Resolver) Resolve(ctx context.Context, sel Selection) ([]string, error) {
	if len(sel.Symbols) > 0 {
		return DedupeUpper(sel.Symbols), nil
	}

	if sel.AllActive {
		symbols, err := r.bars.ListActiveSymbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing active symbols: %w", err)
		}
		return DedupeUpper(symbols), nil
	}

	mode := normalizeMode(sel.Mode)
	path := filepath.Join(r.dataDir, "universes", mode+".txt")
	symbols, err := readSymbolFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading universe file %s: %w", path, err)
	}
	if len(symbols) > 0 {
		return symbols, nil
	}

	// Last resort: a comma-separated list in the environment.
	return fromEnv(), nil
}

// Key returns the checkpoint fingerprint for sel. Explicit lists hash to a
// stable key independent of input order; named modes key by name.
func Key(sel Selection) string {
	if len(sel.Symbols) > 0 {
		symbols := DedupeUpper(sel.Symbols)
		sorted := append([]string(nil), symbols...)
		sort.Strings(sorted)
		sum := md5.Sum([]byte(strings.Join(sorted, ",")))
		return "list_" + hex.EncodeToString(sum[:])[:8]
	}
	if sel.AllActive {
		return KeyAllActive
	}
	return normalizeMode(sel.Mode)
}

func normalizeMode(mode string) string {
	m := strings.ToLower(strings.TrimSpace(mode))
	if m == "" {
		return DefaultMode
	}
	return m
}

// SanitizeSymbol strips BOM/zero-width junk and "SYM,Name" tails, uppercases,
// and rejects anything that is not letters, digits, dots, or dashes.
func SanitizeSymbol(raw string) string {
	s := strings.NewReplacer("\u200b", "", "\ufeff", "").Replace(raw)
	s = strings.ToUpper(strings.TrimSpace(s))
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if s == "" {
		return ""
	}
	for _, ch := range s {
		switch {
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		case ch == '.' || ch == '-':
		default:
			return ""
		}
	}
	return s
}

// DedupeUpper sanitizes every entry and removes duplicates, preserving
// first-seen order.
func DedupeUpper(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, raw := range symbols {
		s := SanitizeSymbol(raw)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// readSymbolFile reads one symbol per line, skipping blanks and # comments.
// A missing file yields an empty list, not an error.
func readSymbolFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var raw []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raw = append(raw, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return DedupeUpper(raw), nil
}

func fromEnv() []string {
	raw := os.Getenv("DASHBOARD_TICKERS")
	if raw == "" {
		return nil
	}
	return DedupeUpper(strings.Split(raw, ","))
}
