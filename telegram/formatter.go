package telegram

import (
	"fmt"
	"strings"

	"github.com/tokenlens/tokenlens/analysis"
	"github.com/tokenlens/tokenlens/config"
)

// FormatResult renders an analysis result as the user-facing message.
// Complete results show full detail, partial results name the sections
// that are unavailable, failed results are a single explanatory line.
func FormatResult(result *analysis.Result, chains config.ChainTable) string {
	if result.Status == analysis.StatusFailed {
		return "❌ Analysis failed: no data could be retrieved for this token. Please try again later."
	}

	chainName := result.Token.Chain
	if chain, ok := chains[result.Token.Chain]; ok {
		chainName = chain.DisplayName
	}

	var b strings.Builder

	kind := "Token"
	if result.Holders != nil && result.Holders.IsNFT {
		kind = "NFT"
	}
	b.WriteString(fmt.Sprintf("📊 %s Analysis (%s)\n", kind, chainName))

	if result.Holders != nil {
		b.WriteString(fmt.Sprintf("Name: %s (%s)\n", result.Holders.FullName, result.Holders.Symbol))
	}

	if result.Market != nil {
		b.WriteString(fmt.Sprintf("Price: %s\n", formatUSD(result.Market.PriceUSD, true)))
		b.WriteString(fmt.Sprintf("Market Cap: %s\n", formatUSD(result.Market.MarketCapUSD, false)))
		b.WriteString(fmt.Sprintf("24h Volume: %s\n", formatUSD(result.Market.Volume24hUSD, false)))
		b.WriteString(fmt.Sprintf("24h Change: %+.2f%%\n", result.Market.PriceChange24h))
	} else {
		b.WriteString("Market data: unavailable\n")
	}

	if result.Holders != nil {
		b.WriteString(fmt.Sprintf("Decentralization Score: %.0f/100\n", result.Holders.DecentralizationScore))
		b.WriteString(fmt.Sprintf("In CEXs: %.1f%%\n", result.Holders.Supply.PercentInCEXs))
		b.WriteString(fmt.Sprintf("In Contracts: %.1f%%\n", result.Holders.Supply.PercentInContracts))
		b.WriteString("Top Holders:\n")
		for i, holder := range result.Holders.TopHolders {
			tag := "👤"
			if holder.IsContract {
				tag = "📜"
			}
			name := holder.Name
			if name == "" {
				name = shortAddress(holder.Address)
			}
			b.WriteString(fmt.Sprintf("%d. %s %s - %.2f%%\n", i+1, tag, name, holder.SharePercent))
		}
	} else {
		b.WriteString("Holder data: unavailable\n")
	}

	if result.Capture == nil {
		b.WriteString("Bubble map: unavailable\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// formatUSD renders a dollar value; sub-cent prices keep 8 decimals so
// micro-cap tokens do not render as $0.00.
func formatUSD(value float64, isPrice bool) string {
	if isPrice && value < 0.01 {
		return fmt.Sprintf("$%.8f", value)
	}
	return fmt.Sprintf("$%s", withThousands(value))
}

// withThousands formats value with two decimals and comma separators
func withThousands(value float64) string {
	s := fmt.Sprintf("%.2f", value)
	parts := strings.SplitN(s, ".", 2)
	intPart := parts[0]

	negative := strings.HasPrefix(intPart, "-")
	if negative {
		intPart = intPart[1:]
	}

	var b strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}

	out := b.String() + "." + parts[1]
	if negative {
		out = "-" + out
	}
	return out
}

func shortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}
