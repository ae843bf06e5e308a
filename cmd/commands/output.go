package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/features/market"
	"memez-terminal/internal/sui"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPools(w io.Writer, pools []domain.Pool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSYMBOL\tPRICE (SUI)\tMCAP\tVOL 24H\tBONDING\tPOOL")
	for i, p := range pools {
		fmt.Fprintf(tw, "%d\t%s\t%s\t$%s\t$%s\t%.1f%%\t%s\n",
			i+1, p.Symbol, market.FormatPrice(p.PriceSUI),
			market.FormatUSD(p.MarketCapUSD), market.FormatUSD(p.Volume24hUSD),
			p.BondingProgress, sui.ShortAddress(p.Address))
	}
	return tw.Flush()
}

func printPortfolio(w io.Writer, p *domain.Portfolio) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Owner: %s\tTotal: %s SUI ($%s)\n", p.Owner, p.TotalSUI.Round(4), market.FormatUSD(p.TotalUSD))
	fmt.Fprintln(tw, "SYMBOL\tBALANCE\tVALUE (SUI)\tVALUE (USD)")
	for _, b := range p.Balances {
		fmt.Fprintf(tw, "%s\t%s\t%s\t$%s\n", b.Symbol, b.Amount.Round(4), b.ValueSUI.Round(4), market.FormatUSD(b.ValueUSD))
	}
	return tw.Flush()
}
