package parser

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// The crawled boards. All of them run phpBB, so a variant is just a
// name, a display title and a root URL over the shared engine.
var variants = map[string]Variant{
	"wiara": {
		Name:     "wiara",
		Title:    "wiara.pl",
		StartURL: "https://forum.wiara.pl",
	},
	"radio_katolik": {
		Name:     "radio_katolik",
		Title:    "Radio Katolik",
		StartURL: "http://www.radiokatolik.pl/forum",
	},
	"dolina_modlitwy": {
		Name:     "dolina_modlitwy",
		Title:    "Dolina Modlitwy",
		StartURL: "https://forum.dolinamodlitwy.pl",
	},
	"z_chrystusem": {
		Name:     "z_chrystusem",
		Title:    "Z Chrystusem",
		StartURL: "https://zchrystusem.pl",
	},
}

// Names returns the registered forum variant names, sorted.
func Names() []string {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the variant config for a forum name.
func Lookup(name string) (Variant, bool) {
	v, ok := variants[name]
	return v, ok
}

// ForName builds the parser for a registered forum variant.
func ForName(name string, log logrus.FieldLogger) (Parser, error) {
	v, ok := variants[name]
	if !ok {
		return nil, fmt.Errorf("unknown forum %q (known: %v)", name, Names())
	}
	return NewPhpBB(v, log), nil
}
