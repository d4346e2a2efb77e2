package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MaxItems bounds the item palette; item ids are single bytes.
const MaxItems = 256

type Catalogs struct {
	Items ItemCatalog
}

// ItemCatalog maps inventory item names to their ids. Ids are palette
// positions, so items.json order is significant.
type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint8
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID   string `json:"id"`
	Kind string `json:"kind"` // "RESOURCE","WEAPON","ARMOR","REWARD"
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	return &c, nil
}

// FromDefs builds catalogs from in-memory definitions.
func FromDefs(defs []ItemDef) (*Catalogs, error) {
	raw, err := json.Marshal(defs)
	if err != nil {
		return nil, err
	}
	var c Catalogs
	if err := buildItems(raw, defs, &c.Items); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	return buildItems(raw, defs, out)
}

func buildItems(raw []byte, defs []ItemDef, out *ItemCatalog) error {
	if len(defs) > MaxItems {
		return fmt.Errorf("items.json: %d items exceeds %d", len(defs), MaxItems)
	}
	out.DefsDigest = sha256Hex(raw)
	out.Defs = make(map[string]ItemDef, len(defs))
	out.Index = make(map[string]uint8, len(defs))
	out.Palette = make([]string, 0, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("items.json: duplicate id %q", d.ID)
		}
		out.Defs[d.ID] = d
		out.Index[d.ID] = uint8(len(out.Palette))
		out.Palette = append(out.Palette, d.ID)
	}
	palJSON, _ := json.Marshal(out.Palette)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

// ItemName returns the palette name for id, or "" when unknown.
func (c *ItemCatalog) ItemName(id uint8) string {
	if c == nil || int(id) >= len(c.Palette) {
		return ""
	}
	return c.Palette[id]
}

func (c *ItemCatalog) ItemID(name string) (uint8, bool) {
	if c == nil {
		return 0, false
	}
	id, ok := c.Index[name]
	return id, ok
}

// Resolve converts a name-keyed amount map into an id-keyed one.
func (c *ItemCatalog) Resolve(in map[string]int) (map[uint8]int, error) {
	out := make(map[uint8]int, len(in))
	for name, v := range in {
		id, ok := c.ItemID(name)
		if !ok {
			return nil, fmt.Errorf("unknown item %q", name)
		}
		out[id] = v
	}
	return out, nil
}

func (c *ItemCatalog) ResolveFloat(in map[string]float64) (map[uint8]float64, error) {
	out := make(map[uint8]float64, len(in))
	for name, v := range in {
		id, ok := c.ItemID(name)
		if !ok {
			return nil, fmt.Errorf("unknown item %q", name)
		}
		out[id] = v
	}
	return out, nil
}
