package ticker

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

type symbolTable struct {
	Symbols map[string]string `yaml:"symbols"`
}

var (
	symbolsOnce sync.Once
	symbols     map[string]string
	symbolsErr  error
)

func loadSymbols() (map[string]string, error) {
	symbolsOnce.Do(func() {
		data, err := configFiles.ReadFile("config/symbols.yaml")
		if err != nil {
			symbolsErr = fmt.Errorf("failed to read symbols.yaml: %w", err)
			return
		}

		var table symbolTable
		if err := yaml.Unmarshal(data, &table); err != nil {
			symbolsErr = fmt.Errorf("failed to unmarshal symbols.yaml: %w", err)
			return
		}

		symbols = make(map[string]string, len(table.Symbols))
		for name, sym := range table.Symbols {
			symbols[strings.ToLower(name)] = strings.ToUpper(sym)
		}
	})
	return symbols, symbolsErr
}

// MapCommonName maps a spoken company name ("apple") to its ticker (AAPL).
// Returns empty string when the text is not a known company name.
func MapCommonName(text string) string {
	table, err := loadSymbols()
	if err != nil {
		// An unreadable embedded table is a build defect; degrade to no match.
		return ""
	}
	return table[strings.ToLower(strings.TrimSpace(text))]
}
