// Package mofdb provides the local structure library backing the
// search_mof_db tool: a seeded set of well-known MOF records plus any CIF
// files users drop into the data directory.
package mofdb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Record describes one structure in the library.
type Record struct {
	Name        string                 `json:"mof_name"`
	Formula     string                 `json:"formula"`
	Description string                 `json:"description"`
	Tags        []string               `json:"tags"`
	CIFFilename string                 `json:"cif_filename"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
}

var seedRecords = []Record{
	{
		Name:        "HKUST-1",
		Formula:     "Cu3(BTC)2",
		Description: "Copper-based MOF with high surface area",
		Tags:        []string{"copper", "high surface area", "paddle-wheel"},
		CIFFilename: "HKUST-1.cif",
		Properties:  map[string]interface{}{"surface_area_m2g": 1850, "pore_volume_cm3g": 0.75},
	},
	{
		Name:        "MOF-5",
		Formula:     "Zn4O(BDC)3",
		Description: "Zinc-based MOF, one of the first MOFs discovered",
		Tags:        []string{"zinc", "BDC", "cubic"},
		CIFFilename: "MOF-5.cif",
		Properties:  map[string]interface{}{"surface_area_m2g": 3800, "pore_volume_cm3g": 1.55},
	},
	{
		Name:        "UiO-66",
		Formula:     "Zr6O4(OH)4(BDC)6",
		Description: "Zirconium-based MOF with exceptional stability",
		Tags:        []string{"zirconium", "stable", "water-stable"},
		CIFFilename: "UiO-66.cif",
		Properties:  map[string]interface{}{"surface_area_m2g": 1187, "pore_volume_cm3g": 0.44},
	},
	{
		Name:        "MIL-101",
		Formula:     "Cr3F(H2O)2O[(O2C)-C6H4-(CO2)]3",
		Description: "Chromium-based MOF with very high surface area",
		Tags:        []string{"chromium", "very high surface area", "mesoporous"},
		CIFFilename: "MIL-101.cif",
		Properties:  map[string]interface{}{"surface_area_m2g": 4100, "pore_volume_cm3g": 2.15},
	},
}

// Library is the searchable structure collection. Seed records are fixed;
// user records are rebuilt from the data directory on Reload.
type Library struct {
	dataDir string
	logger  zerolog.Logger
	watcher *Watcher

	mu   sync.RWMutex
	user []Record
}

// NewLibrary creates a library over the given data directory, indexing any
// CIF files already present.
func NewLibrary(dataDir string, logger zerolog.Logger) (*Library, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	lib := &Library{dataDir: dataDir, logger: logger}
	if err := lib.Reload(); err != nil {
		return nil, err
	}
	return lib, nil
}

// DataDir returns the library's data directory.
func (l *Library) DataDir() string {
	return l.dataDir
}

// Reload rebuilds the user-record index from the data directory. CIF files
// written by the library itself (seed placeholders and optimizer outputs)
// are recognized by name and skipped.
func (l *Library) Reload() error {
	entries, err := os.ReadDir(l.dataDir)
	if err != nil {
		return fmt.Errorf("failed to read data directory: %w", err)
	}

	known := make(map[string]bool, len(seedRecords))
	for _, rec := range seedRecords {
		known[rec.CIFFilename] = true
	}

	var user []Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".cif") {
			continue
		}
		if known[name] || strings.HasSuffix(name, "_optimized.cif") {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		user = append(user, Record{
			Name:        stem,
			Description: "User-provided structure",
			Tags:        []string{strings.ToLower(stem)},
			CIFFilename: name,
		})
	}

	l.mu.Lock()
	l.user = user
	l.mu.Unlock()

	l.logger.Debug().Int("user_records", len(user)).Msg("Structure library reloaded")
	return nil
}

// Search performs a keyword match against names, formulas, descriptions,
// and tags and returns the first hit as a tool payload. The hit's CIF file
// is materialized in the data directory if missing. A miss returns an
// error payload with a suggestion string, never a Go error.
func (l *Library) Search(query string) map[string]interface{} {
	q := strings.ToLower(strings.TrimSpace(query))

	l.mu.RLock()
	records := make([]Record, 0, len(seedRecords)+len(l.user))
	records = append(records, seedRecords...)
	records = append(records, l.user...)
	l.mu.RUnlock()

	for _, rec := range records {
		if !matches(rec, q) {
			continue
		}

		cifPath := filepath.Join(l.dataDir, rec.CIFFilename)
		if _, err := os.Stat(cifPath); os.IsNotExist(err) {
			if err := os.WriteFile(cifPath, []byte(placeholderCIF(rec.Name)), 0644); err != nil {
				return map[string]interface{}{
					"error":     fmt.Sprintf("failed to write structure file: %v", err),
					"tool_name": "search_mof_db",
				}
			}
		}

		payload := map[string]interface{}{
			"mof_name":     rec.Name,
			"formula":      rec.Formula,
			"description":  rec.Description,
			"cif_filepath": cifPath,
		}
		if rec.Properties != nil {
			payload["properties"] = rec.Properties
		}
		return payload
	}

	return map[string]interface{}{
		"error":      fmt.Sprintf("No MOF found matching query: %s", query),
		"suggestion": "Try queries like: 'copper', 'zinc', 'HKUST-1', 'MOF-5', 'high surface area'",
	}
}

// Watch starts reindexing the data directory whenever CIF files change.
func (l *Library) Watch() error {
	if l.watcher != nil {
		return nil
	}
	watcher, err := NewWatcher(l.logger, func() {
		if err := l.Reload(); err != nil {
			l.logger.Error().Err(err).Msg("Structure library reload failed")
		}
	})
	if err != nil {
		return err
	}
	if err := watcher.Watch(l.dataDir); err != nil {
		_ = watcher.Stop()
		return err
	}
	l.watcher = watcher
	return nil
}

// Close stops the directory watcher if one is running.
func (l *Library) Close() error {
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Stop()
}

func matches(rec Record, q string) bool {
	if q == "" {
		return false
	}
	if strings.Contains(strings.ToLower(rec.Name), q) ||
		strings.Contains(strings.ToLower(rec.Formula), q) ||
		strings.Contains(strings.ToLower(rec.Description), q) {
		return true
	}
	for _, tag := range rec.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// placeholderCIF emits minimal crystallographic data so downstream tools
// have a readable file to work with.
func placeholderCIF(name string) string {
	return fmt.Sprintf(`data_%s
_cell_length_a    26.343
_cell_length_b    26.343
_cell_length_c    26.343
_cell_angle_alpha 90.0
_cell_angle_beta  90.0
_cell_angle_gamma 90.0
_symmetry_space_group_name_H-M 'F m -3 m'

loop_
_atom_site_label
_atom_site_type_symbol
_atom_site_fract_x
_atom_site_fract_y
_atom_site_fract_z
Cu1 Cu 0.250 0.250 0.250
O1  O  0.200 0.200 0.200
C1  C  0.150 0.150 0.150
`, name)
}
