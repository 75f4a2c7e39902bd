package adapters

import "fmt"

// The five concrete issuer adapters below each point at that issuer's
// public per-fund holdings export and declare its header layout. URL
// templates are illustrative of each issuer's real export shape; exact
// product-detail path segments vary per fund, so each template keys the
// export by ISIN instead: as an "isin" query parameter for every issuer
// except Amundi, whose template puts the ISIN in the final path segment.

// NewIShares returns the iShares (BlackRock) holdings adapter.
func NewIShares() Adapter {
	return newIssuerAdapter("ishares",
		func(isin string) string {
			return fmt.Sprintf("https://www.ishares.com/us/products/product/holdings.ajax?isin=%s&fileType=csv", isin)
		},
		columnMap{name: "Name", isin: "ISIN", ticker: "Ticker", weight: "Weight (%)", location: "Location", exchange: "Exchange"},
	)
}

// NewVanguard returns the Vanguard holdings adapter.
func NewVanguard() Adapter {
	return newIssuerAdapter("vanguard",
		func(isin string) string {
			return fmt.Sprintf("https://investor.vanguard.com/investment-products/etfs/holdings.csv?isin=%s", isin)
		},
		columnMap{name: "Holdings Name", isin: "ISIN", ticker: "Ticker", weight: "% of Funds", location: "Country", exchange: ""},
	)
}

// NewAmundi returns the Amundi holdings adapter.
func NewAmundi() Adapter {
	return newIssuerAdapter("amundi",
		func(isin string) string {
			return fmt.Sprintf("https://www.amundietf.com/en/individual/products/export/holdings/%s", isin)
		},
		columnMap{name: "Name", isin: "Isin", ticker: "Bloomberg Ticker", weight: "Weighting", location: "Country", exchange: ""},
	)
}

// NewXtrackers returns the Xtrackers (DWS) holdings adapter.
func NewXtrackers() Adapter {
	return newIssuerAdapter("xtrackers",
		func(isin string) string {
			return fmt.Sprintf("https://etf.dws.com/en-gb/fund-holdings/export.csv?isin=%s", isin)
		},
		columnMap{name: "Name", isin: "ISIN", ticker: "Ticker", weight: "Weighting (%)", location: "Country", exchange: "Exchange"},
	)
}

// NewVanEck returns the VanEck holdings adapter.
func NewVanEck() Adapter {
	return newIssuerAdapter("vaneck",
		func(isin string) string {
			return fmt.Sprintf("https://www.vaneck.com/us/en/investments/holdings/export.csv?isin=%s", isin)
		},
		columnMap{name: "Holding Name", isin: "ISIN", ticker: "Ticker", weight: "Weightings", location: "", exchange: "Exchange"},
	)
}

// seedISINs is a small starter set of well-known ETF ISINs per issuer, used
// to populate the registry at startup (spec.md §4.4: "A registry maps ETF
// ISIN -> adapter"). There is no public ISIN-to-issuer directory, so any ETF
// outside this set falls back to the manual-upload adapter until it is
// registered, either by extending this table or through the adapters YAML
// config (RegisterIssuerConfig).
var seedISINs = map[string][]string{
	"ishares": {
		"IE00B4L5Y983", // iShares Core MSCI World UCITS ETF
		"IE00B5BMR087", // iShares Core S&P 500 UCITS ETF
		"IE00B0M62Q58", // iShares MSCI World UCITS ETF
	},
	"vanguard": {
		"IE00B3RBWM25", // Vanguard FTSE All-World UCITS ETF
		"IE00BK5BQT80", // Vanguard FTSE All-World UCITS ETF (Acc)
	},
	"amundi": {
		"LU1681043599", // Amundi Index MSCI World UCITS ETF
	},
	"xtrackers": {
		"IE00BJ0KDQ92", // Xtrackers MSCI World UCITS ETF
	},
	"vaneck": {
		"NL0009690239", // VanEck Morningstar World Equity UCITS ETF
	},
}

// RegisterSeedIssuers registers every issuer adapter's seed ISINs into reg.
func RegisterSeedIssuers(reg *Registry, byName map[string]Adapter) {
	for name, isins := range seedISINs {
		adapter, ok := byName[name]
		if !ok {
			continue
		}
		for _, isin := range isins {
			reg.Register(isin, adapter)
		}
	}
}
