package resolver

import (
	"fmt"
	"strings"
)

// Category selects the naming and placement rules applied to an entry.
type Category int

const (
	// CategoryNormal is camera roll style media: prefixes stripped, camera
	// sequence names replaced by capture dates.
	CategoryNormal Category = iota
	// CategoryWhatsapp is chat media: flattened to the base name, split into
	// thumbnails and stickers, always renamed by date. Feeds the WhatsApp index.
	CategoryWhatsapp
	// CategoryApp is opaque application data; file names are never touched.
	CategoryApp
	// CategoryAppGroup is shared application group data, placed under the
	// group's name.
	CategoryAppGroup
)

var categoryNames = map[Category]string{
	CategoryNormal:   "normal",
	CategoryWhatsapp: "whatsapp",
	CategoryApp:      "app",
	CategoryAppGroup: "app-group",
}

// String returns the configuration name of the category.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// ParseCategory maps a configuration name to its category.
func ParseCategory(name string) (Category, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for category, candidate := range categoryNames {
		if candidate == needle {
			return category, nil
		}
	}
	return CategoryNormal, fmt.Errorf("unknown category %q", name)
}

// MarshalText implements encoding.TextMarshaler so categories read naturally in TOML.
func (c Category) MarshalText() ([]byte, error) {
	if _, ok := categoryNames[c]; !ok {
		return nil, fmt.Errorf("unknown category %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
