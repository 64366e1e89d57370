package main

import (
	"context"
	"flag"
	"math/rand"
	"time"

	"ordertrack/internal/feed"
	"ordertrack/internal/observability"
)

// fillsim publishes randomized fill reports for one order to the fill
// feed, standing in for an external execution venue.
func main() {
	var (
		orderNumber = flag.Int64("order", 0, "order number to fill (required)")
		quantity    = flag.Float64("quantity", 100, "total quantity to fill")
		price       = flag.Float64("price", 50, "reference price for fills")
		natsURL     = flag.String("nats", "nats://localhost:4222", "NATS server URL")
		maxSeconds  = flag.Int("max-seconds", 30, "maximum seconds to spend filling")
	)
	flag.Parse()

	log := observability.NewLogger("fillsim")

	if *orderNumber <= 0 {
		log.Fatal().Msg("-order is required and must be positive")
	}

	nc, js, err := feed.Connect(*natsURL, log)
	if err != nil {
		log.Fatal().Err(err).Str("url", *natsURL).Msg("nats connect")
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*maxSeconds)*time.Second)
	defer cancel()

	if err := feed.EnsureStream(ctx, js); err != nil {
		log.Fatal().Err(err).Msg("ensure fill stream")
	}

	publisher := feed.NewPublisher(js)
	remaining := *quantity

	log.Info().
		Int64("order_number", *orderNumber).
		Float64("quantity", *quantity).
		Msg("simulating fills")

	for remaining > 0 {
		delay := time.Duration(500+rand.Intn(2500)) * time.Millisecond
		select {
		case <-ctx.Done():
			log.Info().Float64("remaining", remaining).Msg("time limit reached")
			return
		case <-time.After(delay):
		}

		// Each fill takes 5%-40% of what's left, at ±2% of the
		// reference price.
		qty := remaining * (0.05 + rand.Float64()*0.35)
		qty = float64(int(qty*100)) / 100
		if qty <= 0 || qty > remaining {
			qty = remaining
		}

		variation := *price * 0.02
		fillPrice := *price - variation + rand.Float64()*2*variation
		fillPrice = float64(int(fillPrice*100)) / 100

		if err := publisher.PublishFill(ctx, *orderNumber, fillPrice, qty); err != nil {
			log.Error().Err(err).Msg("publish fill")
			continue
		}
		remaining -= qty

		log.Info().
			Float64("fill_price", fillPrice).
			Float64("fill_quantity", qty).
			Float64("remaining", remaining).
			Msg("fill published")
	}

	log.Info().Int64("order_number", *orderNumber).Msg("order fully filled")
}
