// Command loadgen drives concurrent transfers between a pool of registered users
// and verifies that the total balance is unchanged afterwards.
package main

import (
	"context"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pitaka.app/internal/apiclient"
	"pitaka.app/internal/bank"
	"pitaka.app/internal/obs"
)

type outcomes struct {
	ok, insufficient, conflicts, rateLimited, failed atomic.Int64
	volume                                           atomic.Int64
}

func main() {
	var (
		baseURL  = flag.String("base-url", "http://localhost:8080", "API base URL")
		users    = flag.Int("users", 6, "number of users to register")
		workers  = flag.Int("workers", 4, "concurrent worker count")
		duration = flag.Duration("duration", time.Minute, "duration of the run")
		funding  = flag.Int64("funding", 10_000, "initial deposit per user, in pesos")
	)
	flag.Parse()

	log := obs.Logger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info("launching load", zap.String("base", *baseURL), zap.Int("workers", *workers), zap.Duration("duration", *duration))

	c := apiclient.New(*baseURL, &http.Client{Timeout: 10 * time.Second})
	pool := make([]apiclient.Session, 0, *users)
	for i := 0; i < *users; i++ {
		s, err := c.Register(ctx, "Load User")
		if err != nil {
			log.Fatal("register", zap.Error(err))
		}
		if _, err := s.Deposit(ctx, bank.Pesos(*funding)); err != nil {
			log.Fatal("fund", zap.Error(err))
		}
		pool = append(pool, s)
	}
	if len(pool) < 2 {
		log.Fatal("need at least two users")
	}

	var (
		out      outcomes
		wg       sync.WaitGroup
		deadline = time.Now().Add(*duration)
	)
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id*9973)))
			for time.Now().Before(deadline) && ctx.Err() == nil {
				from := pool[rnd.Intn(len(pool))]
				to := pool[rnd.Intn(len(pool))]
				if from.Account.ID == to.Account.ID {
					continue
				}
				amount := bank.Amount(100 + rnd.Int63n(500_00))
				_, err := from.Send(ctx, to.Account.AccountNumber, amount, "load")
				switch apiclient.Code(err) {
				case 0:
					if err != nil {
						out.failed.Add(1)
						log.Warn("transfer failed", zap.Int("worker", id), zap.Error(err))
						continue
					}
					out.ok.Add(1)
					out.volume.Add(int64(amount))
				case http.StatusUnprocessableEntity:
					out.insufficient.Add(1)
				case http.StatusConflict:
					out.conflicts.Add(1)
				case http.StatusTooManyRequests:
					out.rateLimited.Add(1)
					time.Sleep(250 * time.Millisecond)
				default:
					out.failed.Add(1)
					log.Warn("transfer failed", zap.Int("worker", id), zap.Error(err))
					time.Sleep(200 * time.Millisecond)
				}
				time.Sleep(time.Duration(50+rnd.Intn(120)) * time.Millisecond)
			}
		}(i)
	}
	wg.Wait()

	// Verification must finish even after an interrupt.
	verifyCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	var total bank.Amount
	for _, s := range pool {
		bal, err := s.Balance(verifyCtx)
		if err != nil {
			log.Fatal("read balance", zap.Error(err))
		}
		total += bal
	}
	want := bank.Pesos(*funding) * bank.Amount(len(pool))

	log.Info("run complete",
		zap.Int64("ok", out.ok.Load()),
		zap.Int64("insufficient", out.insufficient.Load()),
		zap.Int64("conflicts", out.conflicts.Load()),
		zap.Int64("rate_limited", out.rateLimited.Load()),
		zap.Int64("failed", out.failed.Load()),
		zap.Stringer("volume", bank.Amount(out.volume.Load())),
		zap.Stringer("total_balance", total))
	if total != want {
		log.Fatal("conservation failed", zap.Stringer("want", want), zap.Stringer("got", total))
	}
}
