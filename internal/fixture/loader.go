// Package fixture loads LDIF-like entry fixtures from disk into an
// in-memory slapi.SearchBackend, for vaslint's offline diagnostic runs
// (spec.md's "the subsystem carries no CLI... as part of its in-process
// contract" leaves a standalone lint tool on top of the same packages
// open, see SPEC_FULL.md §10).
package fixture

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/389ds/389-ds-base-sub010/internal/slapi"
)

// LoadDir reads every *.ldif file in dir and returns a Backend populated
// with the parsed entries.
func LoadDir(dir string) (*Backend, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.ldif"))
	if err != nil {
		return nil, fmt.Errorf("fixture: glob %s: %w", dir, err)
	}
	sort.Strings(matches)

	b := NewBackend()
	for _, path := range matches {
		entries, err := parseFile(path)
		if err != nil {
			return nil, fmt.Errorf("fixture: %s: %w", path, err)
		}
		for _, e := range entries {
			b.Add(e)
		}
	}
	return b, nil
}

func parseFile(path string) ([]*slapi.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []*slapi.Entry
	var dn slapi.DN
	var dnSet bool
	var ocs []string
	attrs := make(map[string][]string)

	flush := func() error {
		if !dnSet {
			return nil
		}
		entries = append(entries, slapi.NewEntry(dn, ocs, attrs))
		dnSet = false
		ocs = nil
		attrs = make(map[string][]string)
		return nil
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		idx := strings.Index(trimmed, ":")
		if idx < 0 {
			return nil, fmt.Errorf("malformed line %q", line)
		}
		key := strings.TrimSpace(trimmed[:idx])
		value := strings.TrimSpace(trimmed[idx+1:])

		if strings.EqualFold(key, "dn") {
			parsed, err := slapi.ParseDN(value)
			if err != nil {
				return nil, fmt.Errorf("invalid dn %q: %w", value, err)
			}
			dn = parsed
			dnSet = true
			continue
		}
		if strings.EqualFold(key, slapi.AttrObjectClass) {
			ocs = append(ocs, value)
			continue
		}
		lower := strings.ToLower(key)
		attrs[lower] = append(attrs[lower], value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return entries, nil
}
