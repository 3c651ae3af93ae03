package config

import "fmt"

// Chain describes one supported chain: how it is displayed, which CoinGecko
// platform it maps to, and which path segment the bubble-map page uses.
// Every chain code maps to exactly one of each.
type Chain struct {
	DisplayName string `yaml:"display_name"`
	Platform    string `yaml:"platform"`
	MapSegment  string `yaml:"map_segment"`
}

// ChainTable maps a lowercase chain code to its settings
type ChainTable map[string]Chain

// DefaultChains returns the supported-chain table for the public setup
func DefaultChains() ChainTable {
	return ChainTable{
		"eth":  {DisplayName: "Ethereum", Platform: "ethereum", MapSegment: "eth"},
		"bsc":  {DisplayName: "BNB Chain", Platform: "binance-smart-chain", MapSegment: "bsc"},
		"ftm":  {DisplayName: "Fantom", Platform: "fantom", MapSegment: "ftm"},
		"avax": {DisplayName: "Avalanche", Platform: "avalanche", MapSegment: "avax"},
		"poly": {DisplayName: "Polygon", Platform: "polygon-pos", MapSegment: "poly"},
		"arbi": {DisplayName: "Arbitrum", Platform: "arbitrum-one", MapSegment: "arbi"},
		"base": {DisplayName: "Base", Platform: "base", MapSegment: "base"},
	}
}

// Validate checks that every entry carries the fields the pipeline relies on
func (t ChainTable) Validate() error {
	for code, chain := range t {
		if chain.Platform == "" {
			return fmt.Errorf("chain %q: missing platform", code)
		}
		if chain.MapSegment == "" {
			return fmt.Errorf("chain %q: missing map_segment", code)
		}
	}
	return nil
}

// Codes returns the supported chain codes, for error messages and the API
func (t ChainTable) Codes() []string {
	codes := make([]string, 0, len(t))
	for code := range t {
		codes = append(codes, code)
	}
	return codes
}
