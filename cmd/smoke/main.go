// Command smoke runs a money-movement round trip against a live pitaka-api and
// checks that balances are conserved.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"pitaka.app/internal/apiclient"
	"pitaka.app/internal/bank"
	"pitaka.app/internal/obs"
)

func main() {
	addr := flag.String("addr", envOr("PITAKA_API_ADDR", "http://localhost:8080"), "API base URL")
	flag.Parse()

	log := obs.Logger()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	c := apiclient.New(*addr, nil)

	alice, err := c.Register(ctx, "Smoke Sender")
	if err != nil {
		log.Fatal("register sender", zap.Error(err))
	}
	bob, err := c.Register(ctx, "Smoke Receiver")
	if err != nil {
		log.Fatal("register receiver", zap.Error(err))
	}

	start := bank.Pesos(1000)
	if _, err := alice.Deposit(ctx, start); err != nil {
		log.Fatal("deposit", zap.Error(err))
	}
	amount := bank.MustAmount("420.00")
	tr, err := alice.Send(ctx, bob.Account.AccountNumber, amount, "smoke")
	if err != nil {
		log.Fatal("transfer", zap.Error(err))
	}

	a, err := alice.Balance(ctx)
	if err != nil {
		log.Fatal("balance A", zap.Error(err))
	}
	b, err := bob.Balance(ctx)
	if err != nil {
		log.Fatal("balance B", zap.Error(err))
	}
	if a+b != start {
		log.Fatal("conservation failed", zap.Stringer("a", a), zap.Stringer("b", b))
	}
	if a != start-amount || b != amount {
		log.Fatal("unexpected balances", zap.Stringer("a", a), zap.Stringer("b", b))
	}
	log.Info("smoke test passed",
		zap.String("transfer", tr.Transfer.Reference),
		zap.String("sender", alice.Account.ID),
		zap.String("receiver", bob.Account.ID))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
