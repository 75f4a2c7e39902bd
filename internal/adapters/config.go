package adapters

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// IssuerConfig is one issuer's operator-maintained seed ISIN list, loaded
// from the adapters YAML config (spec.md §4.4's registry has no public
// ISIN-to-issuer directory to discover this mapping from, so it is
// configured rather than derived).
type IssuerConfig struct {
	Name  string   `yaml:"name"`
	ISINs []string `yaml:"isins"`
}

// LoadIssuerConfig reads a YAML list of IssuerConfig entries from path. A
// missing file is returned as-is (os.IsNotExist) so callers can fall back to
// RegisterSeedIssuers' built-in starter table instead of treating it as
// fatal.
func LoadIssuerConfig(path string) ([]IssuerConfig, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfgs []IssuerConfig
	if err := yaml.Unmarshal(body, &cfgs); err != nil {
		return nil, fmt.Errorf("adapters: parse issuer config %s: %w", path, err)
	}
	return cfgs, nil
}

// RegisterIssuerConfig registers every ISIN named in cfgs against its named
// issuer adapter in byName, overriding or extending RegisterSeedIssuers'
// built-in table. An issuer name with no matching adapter is skipped.
func RegisterIssuerConfig(reg *Registry, byName map[string]Adapter, cfgs []IssuerConfig) {
	for _, c := range cfgs {
		adapter, ok := byName[c.Name]
		if !ok {
			continue
		}
		for _, isin := range c.ISINs {
			reg.Register(isin, adapter)
		}
	}
}
