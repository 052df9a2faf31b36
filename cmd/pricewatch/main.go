// Package main: pricewatch, a command line client of the wallet service.
//
// It values the local holdings file at the prices of a wallet service, either polling the prices endpoint or
// subscribed to the price stream, and prints the portfolio after every update. It can also record a local buy or
// send:
//
//	pricewatch [flags]                     watch the portfolio
//	pricewatch [flags] buy SYMBOL USD      buy USD dollars of SYMBOL at the current price
//	pricewatch [flags] send SYMBOL AMOUNT  remove AMOUNT of SYMBOL from the holdings
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/tarancss/cryptowallet/lib/config"
	"github.com/tarancss/cryptowallet/lib/holdings"
	"github.com/tarancss/cryptowallet/lib/poller"
)

// ErrUsage is returned for malformed command lines.
var ErrUsage = errors.New("usage: pricewatch [flags] [buy SYMBOL USD | send SYMBOL AMOUNT]")

func main() {
	url := flag.String("url", "http://localhost:3030", "wallet service base url")
	interval := flag.Duration("interval", poller.DefaultInterval, "polling interval")
	stream := flag.Bool("stream", false, "subscribe to the price stream instead of polling")
	file := flag.String("holdings", holdings.DefaultFile, "holdings file")
	level := flag.String("log", "warn", "log level")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Error loading .env file: %v", err)
	}

	if err := config.SetupLogging(*level, "text"); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := &watch{store: holdings.NewStore(*file), out: os.Stdout}

	var err error

	switch args := flag.Args(); {
	case len(args) == 0:
		err = w.run(ctx, *url, *interval, *stream)
	case len(args) == 3 && args[0] == "buy":
		err = w.buy(ctx, poller.New(*url), args[1], args[2])
	case len(args) == 3 && args[0] == "send":
		err = w.send(args[1], args[2])
	default:
		err = ErrUsage
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

// watch prints the holdings valued at the latest prices.
type watch struct {
	store *holdings.Store
	out   io.Writer
}

// run keeps the portfolio on screen until ctx is done.
func (w *watch) run(ctx context.Context, url string, interval time.Duration, stream bool) error {
	hs, err := w.store.Load()
	if err != nil {
		return err
	}

	p := poller.New(url, poller.WithInterval(interval), poller.OnUpdate(func(s poller.State) {
		w.print(hs, s)
	}))

	if stream {
		return p.Stream(ctx)
	}

	return p.Run(ctx)
}

// buy records a purchase of usd dollars of symbol at the price currently served.
func (w *watch) buy(ctx context.Context, p *poller.Poller, symbol, usd string) error {
	amount, err := strconv.ParseFloat(usd, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	hs, err := w.store.Load()
	if err != nil {
		return err
	}

	if err = p.Refresh(ctx); err != nil {
		return err
	}

	symbol = strings.ToUpper(symbol)

	q, ok := p.State().Prices[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", holdings.ErrBadPrice, symbol)
	}

	if hs, err = holdings.Buy(hs, symbol, symbol, amount, q.Price); err != nil {
		return err
	}

	if err = w.store.Save(hs); err != nil {
		return err
	}

	fmt.Fprintf(w.out, "Bought %s %s at $%s\n", strconv.FormatFloat(amount/q.Price, 'f', 6, 64), symbol,
		strconv.FormatFloat(q.Price, 'f', 2, 64))

	return nil
}

// send records amount of symbol leaving the holdings.
func (w *watch) send(symbol, amount string) error {
	a, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	hs, err := w.store.Load()
	if err != nil {
		return err
	}

	if hs, err = holdings.Send(hs, symbol, a); err != nil {
		return err
	}

	if err = w.store.Save(hs); err != nil {
		return err
	}

	fmt.Fprintf(w.out, "Sent %s %s\n", amount, strings.ToUpper(symbol))

	return nil
}

// print writes one table with the valued positions and the portfolio totals.
func (w *watch) print(hs []holdings.Holding, s poller.State) {
	if s.Err != nil {
		fmt.Fprintf(w.out, "%s: %v\n", s.Status, s.Err)
	}

	if len(s.Prices) == 0 {
		return
	}

	v := holdings.Value(hs, poller.Round(s.Prices))

	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "SYMBOL\tAMOUNT\tPRICE\t24H %\tVALUE\tPNL\tPNL %\t")

	for _, p := range v.Positions {
		fmt.Fprintf(tw, "%s\t%g\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n", p.Symbol, p.Amount, p.Price, p.Change24h, p.Value,
			p.PnL, p.PnLPercent)
	}

	fmt.Fprintf(tw, "TOTAL\t\t\t\t%.2f\t%.2f\t\t\n", v.Value, v.PnL)
	_ = tw.Flush()

	note := ""
	if s.UsingFallback() {
		note = " (fallback prices)"
	}

	fmt.Fprintf(w.out, "source:%s captured:%s updated:%s%s\n\n", s.Source, s.CapturedAt.Format(time.RFC3339),
		s.LastUpdated.Format(time.RFC3339), note)
}
