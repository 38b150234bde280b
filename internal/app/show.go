package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"marketdw/internal/model"
)

// Show prints the newest persisted facts and the current forecast table.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	coins, err := store.ListRecentCoinPrices(ctx, opts.Limit)
	if err != nil {
		return err
	}
	stocks, err := store.ListRecentStockPrices(ctx, opts.Limit)
	if err != nil {
		return err
	}
	predictions, err := store.ListRecentPredictions(ctx, opts.Limit)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintln(writer, "== Coin prices ==")
	if len(coins) == 0 {
		fmt.Fprintln(writer, "no coin facts found")
	} else {
		fmt.Fprintln(writer, "Observed\tSymbol\tName\tPrice\tChange%\tRank")
		for _, sample := range coins {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%.2f\t%.2f\t%d\n",
				sample.ObservedAt.Format(time.RFC3339),
				sample.Symbol, sample.Name, sample.Price, sample.Change, sample.Rank)
		}
	}

	fmt.Fprintln(writer, "\n== Stock prices ==")
	if len(stocks) == 0 {
		fmt.Fprintln(writer, "no stock facts found")
	} else {
		fmt.Fprintln(writer, "Observed\tSymbol\tOpen\tHigh\tLow\tClose")
		for _, sample := range stocks {
			fmt.Fprintf(writer, "%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\n",
				sample.ObservedAt.Format(time.RFC3339),
				sample.Symbol, sample.Open, sample.High, sample.Low, sample.Close)
		}
	}

	fmt.Fprintln(writer, "\n== Predictions ==")
	if len(predictions) == 0 {
		fmt.Fprintln(writer, "no predictions found")
	} else {
		fmt.Fprintln(writer, "Entity\tDatetime\tPredicted")
		for _, sample := range predictions {
			fmt.Fprintf(writer, "%s\t%s\t%.4f\n",
				sample.Entity, sample.Datetime.Format(time.RFC3339), sample.Value)
		}
	}

	return writer.Flush()
}

func printPredictions(rows []model.Prediction) error {
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no forecasts produced")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Entity\tDatetime\tPredicted")
	for _, row := range rows {
		fmt.Fprintf(writer, "%s\t%s\t%.4f\n",
			row.Entity, row.Datetime.Format(time.RFC3339), row.Value)
	}
	return writer.Flush()
}
