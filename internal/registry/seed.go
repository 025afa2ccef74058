package registry

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// FromStringMap builds a registry from config-style values. Keys are
// uppercased since viper lowercases map keys on read.
func FromStringMap(m map[string]string) FailingCountries {
	fc := make(FailingCountries, len(m))
	for code, delay := range m {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		fc[code] = ParseDelay(delay)
	}
	return fc
}

// LoadSeedFile reads a YAML seed file and returns the initial registry.
// Expected format:
// failing_countries:
//   CA: 500
//   BR: 0
func LoadSeedFile(path string) (FailingCountries, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return FromStringMap(v.GetStringMapString("failing_countries")), nil
}
