package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"ordertrack/internal/order"
	"ordertrack/internal/service"
	"ordertrack/internal/ticker"
)

// Console is the interactive menu-driven frontend. It talks to the
// ledger exclusively through the order service, so it can share the
// process with the fill feed and the archive worker.
type Console struct {
	svc   *service.OrderService
	table *ticker.Table
	log   zerolog.Logger
	in    *bufio.Scanner
	out   io.Writer
}

func New(svc *service.OrderService, table *ticker.Table, in io.Reader, out io.Writer, log zerolog.Logger) *Console {
	return &Console{
		svc:   svc,
		table: table,
		log:   log,
		in:    bufio.NewScanner(in),
		out:   out,
	}
}

// Run loops over the menu until the user exits, input ends, or the
// context is cancelled. Orders are saved after every mutation and once
// more on exit.
func (c *Console) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return c.saveQuietly()
		default:
		}

		fmt.Fprintln(c.out, "\nOrder Manager Menu:")
		fmt.Fprintln(c.out, "1. List all orders")
		fmt.Fprintln(c.out, "2. Add new order")
		fmt.Fprintln(c.out, "3. Fill an existing order")
		fmt.Fprintln(c.out, "4. Show open orders")
		fmt.Fprintln(c.out, "5. Simulate automatic fills")
		fmt.Fprintln(c.out, "6. Exit")

		choice, ok := c.prompt("\nEnter your choice (1-6): ")
		if !ok {
			return c.saveQuietly()
		}

		switch choice {
		case "1":
			c.listOrders()
		case "2":
			c.addOrder()
		case "3":
			c.fillOrder()
		case "4":
			c.showOpenOrders()
		case "5":
			c.simulateFills(ctx)
		case "6":
			if err := c.svc.Save(); err != nil {
				fmt.Fprintf(c.out, "Failed to save orders: %v\n", err)
			} else {
				fmt.Fprintln(c.out, "\nAll orders saved to disk")
			}
			fmt.Fprintln(c.out, "Exiting Order Manager")
			return nil
		default:
			fmt.Fprintln(c.out, "Invalid choice! Please enter a number between 1-6.")
		}
	}
}

func (c *Console) prompt(msg string) (string, bool) {
	fmt.Fprint(c.out, msg)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func (c *Console) promptFloat(msg string) (float64, error) {
	raw, ok := c.prompt(msg)
	if !ok {
		return 0, io.EOF
	}
	return strconv.ParseFloat(raw, 64)
}

func (c *Console) listOrders() {
	views := c.svc.List()
	if len(views) == 0 {
		fmt.Fprintln(c.out, "\nNo orders yet.")
		return
	}

	fmt.Fprintln(c.out, "\nList of all orders:")
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Order#\tTicker\tQuantity\tPrice\tFilled\tRemaining\tAvg Price\tStatus")
	for _, v := range views {
		fmt.Fprintf(w, "%d\t%d\t%.2f\t$%.2f\t%.2f\t%.2f\t$%.2f\t%s\n",
			v.OrderNumber, v.TickerID, v.Quantity, v.Price,
			v.FilledQuantity, v.RemainingQuantity, v.AverageFillPrice, v.Status)
	}
	w.Flush()

	for _, v := range views {
		if len(v.Fills) == 0 {
			continue
		}
		fmt.Fprintf(c.out, "\nOrder #%d fill history:\n", v.OrderNumber)
		for i, f := range v.Fills {
			fmt.Fprintf(c.out, "  Fill #%d: %.2f @ $%.2f (%s)\n",
				i+1, f.Quantity, f.Price, f.FilledAt.Format(time.RFC3339))
		}
	}
}

func (c *Console) addOrder() {
	if c.table.Len() > 0 {
		fmt.Fprintln(c.out, "\nAvailable tickers:")
		w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "Symbol\tName\tType\tExchange")
		for _, e := range c.table.Entries() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Symbol, e.Name, e.Type, e.Exchange)
		}
		w.Flush()
	} else {
		fmt.Fprintln(c.out, "\nNo ticker information available. Enter ticker IDs directly.")
	}

	input, ok := c.prompt("\nEnter ticker symbol, asset name, or ticker ID: ")
	if !ok {
		return
	}

	tickerID, found := c.table.LookupTickerID(input)
	if !found {
		parsed, err := strconv.ParseInt(input, 10, 64)
		if err != nil {
			fmt.Fprintf(c.out, "Unknown ticker: %s\n", input)
			return
		}
		tickerID = parsed
		fmt.Fprintf(c.out, "Using ticker ID: %d\n", tickerID)
	} else {
		fmt.Fprintf(c.out, "Found ticker ID: %d\n", tickerID)
	}

	quantity, err := c.promptFloat("Enter order quantity: ")
	if err != nil {
		fmt.Fprintln(c.out, "Invalid input! Order creation cancelled.")
		return
	}
	price, err := c.promptFloat("Enter order price: ")
	if err != nil {
		fmt.Fprintln(c.out, "Invalid input! Order creation cancelled.")
		return
	}

	terms := order.Terms{TickerID: tickerID, Quantity: quantity, Price: price}
	if exchangeID, ok := c.table.ExchangeIDFor(tickerID); ok {
		terms.ExchangeID = exchangeID
	}

	view, err := c.svc.PlaceOrder(terms)
	if err != nil {
		fmt.Fprintf(c.out, "Order creation failed: %v\n", err)
		return
	}

	fmt.Fprintf(c.out, "\nCreated Order #%d: %.2f shares of ticker %d @ $%.2f\n",
		view.OrderNumber, view.Quantity, view.TickerID, view.Price)
	c.save()
}

func (c *Console) fillOrder() {
	open := c.svc.Open()
	if len(open) == 0 {
		fmt.Fprintln(c.out, "No open orders to fill!")
		return
	}

	c.printOpenSelection(open)
	v, ok := c.selectOrder(open)
	if !ok {
		return
	}

	price, err := c.promptFloat(fmt.Sprintf("Enter fill price (order price: $%.2f): ", v.Price))
	if err != nil {
		fmt.Fprintln(c.out, "Invalid input! Fill operation cancelled.")
		return
	}
	qty, err := c.promptFloat(fmt.Sprintf("Enter fill quantity (max: %.2f): ", v.RemainingQuantity))
	if err != nil {
		fmt.Fprintln(c.out, "Invalid input! Fill operation cancelled.")
		return
	}
	if qty <= 0 || qty > v.RemainingQuantity {
		fmt.Fprintln(c.out, "Invalid fill quantity!")
		return
	}

	if _, err := c.svc.Fill(v.OrderNumber, price, qty); err != nil {
		fmt.Fprintf(c.out, "Fill failed: %v\n", err)
		return
	}

	fmt.Fprintf(c.out, "Filled %.2f shares of Order #%d @ $%.2f\n", qty, v.OrderNumber, price)
	c.save()
}

func (c *Console) showOpenOrders() {
	open := c.svc.Open()
	fmt.Fprintf(c.out, "\nThere are %d open orders remaining\n", len(open))
	for _, v := range open {
		fmt.Fprintf(c.out, "Order #%d: %.2f shares of ticker %d remaining @ $%.2f\n",
			v.OrderNumber, v.RemainingQuantity, v.TickerID, v.Price)
	}
}

func (c *Console) simulateFills(ctx context.Context) {
	open := c.svc.Open()
	if len(open) == 0 {
		fmt.Fprintln(c.out, "No open orders to simulate!")
		return
	}

	c.printOpenSelection(open)
	v, ok := c.selectOrder(open)
	if !ok {
		return
	}

	raw, ok := c.prompt("Enter maximum simulation time in seconds (5-60): ")
	if !ok {
		return
	}
	maxSeconds, err := strconv.Atoi(raw)
	if err != nil || maxSeconds < 5 || maxSeconds > 60 {
		fmt.Fprintln(c.out, "Invalid time! Must be between 5 and 60 seconds.")
		return
	}

	c.runSimulation(ctx, v.OrderNumber, time.Duration(maxSeconds)*time.Second)
}

// runSimulation feeds an order random fills until it completes or the
// time budget runs out. Each fill is 5%-40% of the remaining quantity at
// a price within ±2% of the order price, with a 0.5-3s pause between
// fills.
func (c *Console) runSimulation(ctx context.Context, orderNumber int64, budget time.Duration) {
	v, err := c.svc.Get(orderNumber)
	if err != nil {
		fmt.Fprintf(c.out, "Simulation failed: %v\n", err)
		return
	}

	fmt.Fprintf(c.out, "\nSimulating fills for Order #%d...\n", orderNumber)
	fmt.Fprintf(c.out, "Total quantity to fill: %.2f\n", v.RemainingQuantity)
	fmt.Fprintf(c.out, "Maximum simulation time: %s\n", budget)

	start := time.Now()
	for {
		v, err = c.svc.Get(orderNumber)
		if err != nil || v.Status == order.StatusFilled {
			break
		}

		remaining := budget - time.Since(start)
		if remaining <= 0 {
			fmt.Fprintln(c.out, "Time limit reached!")
			break
		}

		delay := time.Duration(500+rand.Intn(2500)) * time.Millisecond
		if delay > remaining {
			delay = remaining
		}
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out, "Simulation cancelled.")
			return
		case <-time.After(delay):
		}

		minFill := v.RemainingQuantity * 0.05
		maxFill := v.RemainingQuantity * 0.40
		qty := round2(minFill + rand.Float64()*(maxFill-minFill))
		if qty <= 0 || qty > v.RemainingQuantity {
			qty = v.RemainingQuantity
		}

		variation := v.Price * 0.02
		price := round2(v.Price - variation + rand.Float64()*2*variation)

		if _, err := c.svc.Fill(orderNumber, price, qty); err != nil {
			c.log.Warn().Err(err).Int64("order_number", orderNumber).Msg("simulated fill rejected")
			continue
		}

		updated, err := c.svc.Get(orderNumber)
		if err != nil {
			break
		}
		fmt.Fprintf(c.out, "[%.1fs] Filled %.2f shares @ $%.2f (%.2f/%.2f total)\n",
			time.Since(start).Seconds(), qty, price, updated.FilledQuantity, updated.Quantity)
	}

	final, err := c.svc.Get(orderNumber)
	if err == nil {
		if final.Status == order.StatusFilled {
			fmt.Fprintf(c.out, "\nOrder #%d completely filled in %.1f seconds\n", orderNumber, time.Since(start).Seconds())
			fmt.Fprintf(c.out, "Average fill price: $%.2f\n", final.AverageFillPrice)
		} else {
			fmt.Fprintf(c.out, "\nSimulation ended. Order #%d is %.2f/%.2f filled\n",
				orderNumber, final.FilledQuantity, final.Quantity)
			fmt.Fprintf(c.out, "Remaining to fill: %.2f\n", final.RemainingQuantity)
		}
	}

	c.save()
	fmt.Fprintln(c.out, "Order fills saved to disk")
}

func (c *Console) printOpenSelection(open []service.OrderView) {
	fmt.Fprintln(c.out, "\nOpen orders:")
	for i, v := range open {
		fmt.Fprintf(c.out, "%d. Order #%d: %.2f shares of ticker %d remaining @ $%.2f\n",
			i+1, v.OrderNumber, v.RemainingQuantity, v.TickerID, v.Price)
	}
}

func (c *Console) selectOrder(open []service.OrderView) (service.OrderView, bool) {
	raw, ok := c.prompt("\nSelect an order (number): ")
	if !ok {
		return service.OrderView{}, false
	}
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 1 || idx > len(open) {
		fmt.Fprintln(c.out, "Invalid selection!")
		return service.OrderView{}, false
	}
	return open[idx-1], true
}

func (c *Console) save() {
	if err := c.svc.Save(); err != nil {
		fmt.Fprintf(c.out, "Failed to save orders: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, "Orders saved to disk")
}

func (c *Console) saveQuietly() error {
	return c.svc.Save()
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
