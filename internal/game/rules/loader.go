package rules

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the full rules catalog from dir. Expected layout:
//
//	dir/stats/*.yaml      one StatDef per file
//	dir/items/*.yaml      one ItemDef per file
//	dir/statuses/*.yaml   one StatusDef per file
//	dir/checks/*.yaml     one CheckDef per file
//	dir/conflicts/*.yaml  one ConflictDef per file
//	dir/loot/*.yaml       one LootTable per file
//	dir/xp.yaml           XPRule (optional)
//
// Files are processed in lexicographic order; that order is the catalog
// iteration order for stats and conflict definitions. Missing subdirectories
// are treated as empty.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a validated Catalog or a non-nil error naming the
// offending file.
func Load(dir string) (*Catalog, error) {
	cat := NewCatalog()

	if err := loadEach(filepath.Join(dir, "stats"), func(path string, data []byte) error {
		var def StatDef
		if err := decodeStrict(data, &def); err != nil {
			return err
		}
		if err := def.Validate(); err != nil {
			return err
		}
		cat.RegisterStat(&def)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadEach(filepath.Join(dir, "items"), func(path string, data []byte) error {
		var def ItemDef
		if err := decodeStrict(data, &def); err != nil {
			return err
		}
		if def.ID == "" {
			return fmt.Errorf("item definition must have a non-empty id")
		}
		cat.RegisterItem(&def)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadEach(filepath.Join(dir, "statuses"), func(path string, data []byte) error {
		var def StatusDef
		if err := decodeStrict(data, &def); err != nil {
			return err
		}
		if def.ID == "" {
			return fmt.Errorf("status definition must have a non-empty id")
		}
		cat.RegisterStatus(&def)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadEach(filepath.Join(dir, "checks"), func(path string, data []byte) error {
		var def CheckDef
		if err := decodeStrict(data, &def); err != nil {
			return err
		}
		if def.ID == "" || def.Stat == "" {
			return fmt.Errorf("check definition must have a non-empty id and stat")
		}
		cat.RegisterCheck(&def)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadEach(filepath.Join(dir, "conflicts"), func(path string, data []byte) error {
		var def ConflictDef
		if err := decodeStrict(data, &def); err != nil {
			return err
		}
		if err := def.Validate(); err != nil {
			return err
		}
		cat.RegisterConflict(&def)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := loadEach(filepath.Join(dir, "loot"), func(path string, data []byte) error {
		var lt LootTable
		if err := decodeStrict(data, &lt); err != nil {
			return err
		}
		if lt.Template == "" {
			return fmt.Errorf("loot table must name a template")
		}
		if err := lt.Validate(); err != nil {
			return err
		}
		cat.RegisterLoot(lt.Template, &lt)
		return nil
	}); err != nil {
		return nil, err
	}

	xpPath := filepath.Join(dir, "xp.yaml")
	if data, err := os.ReadFile(xpPath); err == nil {
		var rule XPRule
		if err := decodeStrict(data, &rule); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", xpPath, err)
		}
		cat.SetXP(rule)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %q: %w", xpPath, err)
	}

	return cat, nil
}

// loadEach invokes fn for every *.yaml file in dir in lexicographic order.
// A missing dir is not an error.
func loadEach(dir string, fn func(path string, data []byte) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading rules dir %q: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %q: %w", path, err)
		}
		if err := fn(path, data); err != nil {
			return fmt.Errorf("parsing %q: %w", path, err)
		}
	}
	return nil
}

// decodeStrict unmarshals YAML rejecting unknown fields, so typos in rule
// files fail loudly at load time.
func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}
