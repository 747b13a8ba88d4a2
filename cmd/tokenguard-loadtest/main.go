// Command tokenguard-loadtest measures the Redis revocation stores under
// concurrent revoke, check, bind/lookup and purge traffic.
//
//	go run ./cmd/tokenguard-loadtest -tokens 50000 -concurrency 128
//
// Without -redis-addr or REDIS_ADDR it runs against miniredis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/tokenguard/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type options struct {
	tokens      int
	concurrency int
	ops         int
	expiredPct  int
	redisAddr   string
	prefix      string
}

func (o options) validate() error {
	if o.tokens <= 0 || o.concurrency <= 0 || o.ops <= 0 {
		return errors.New("tokens, concurrency and ops must be > 0")
	}
	if o.expiredPct < 0 || o.expiredPct > 100 {
		return errors.New("expired-pct must be within 0..100")
	}
	return nil
}

func main() {
	var o options
	flag.IntVar(&o.tokens, "tokens", 100000, "number of token IDs to seed")
	flag.IntVar(&o.concurrency, "concurrency", 256, "number of concurrent workers")
	flag.IntVar(&o.ops, "ops", 200000, "operations per phase")
	flag.IntVar(&o.expiredPct, "expired-pct", 20, "percentage of seeded revocations already expired")
	flag.StringVar(&o.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address; miniredis when empty")
	flag.StringVar(&o.prefix, "prefix", "tgload", "key prefix")
	flag.Parse()

	if err := o.validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, o, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, out io.Writer) error {
	client, closeClient, err := connect(o.redisAddr, out)
	if err != nil {
		return err
	}
	defer closeClient()

	blacklist := store.NewRedisBlacklist(client, o.prefix, nil)
	bindings := store.NewRedisBindings(client, o.prefix, nil)

	ids := make([]string, o.tokens)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	if err := seed(ctx, blacklist, ids, o.expiredPct, out); err != nil {
		return err
	}

	pick := func(r *rand.Rand) string { return ids[r.Intn(len(ids))] }
	phases := []struct {
		name string
		op   func(ctx context.Context, r *rand.Rand, i int) error
	}{
		{"revoke", func(ctx context.Context, r *rand.Rand, _ int) error {
			return blacklist.Revoke(ctx, pick(r), time.Now().Add(time.Hour))
		}},
		{"is_revoked", func(ctx context.Context, r *rand.Rand, _ int) error {
			_, err := blacklist.IsRevoked(ctx, pick(r))
			return err
		}},
		{"bind+lookup", func(ctx context.Context, r *rand.Rand, i int) error {
			id := pick(r)
			ip := fmt.Sprintf("10.0.%d.%d", (i/256)%256, i%256)
			if err := bindings.Bind(ctx, id, ip, time.Now().Add(24*time.Hour)); err != nil {
				return err
			}
			_, err := bindings.Lookup(ctx, id)
			return err
		}},
	}

	results := make([]summary, 0, len(phases))
	for _, p := range phases {
		s, err := runPhase(ctx, o.ops, o.concurrency, p.op)
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		s.name = p.name
		results = append(results, s)
	}

	start := time.Now()
	removed, err := blacklist.PurgeExpired(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	took := time.Since(start)

	fmt.Fprintln(out, "---- results ----")
	for _, s := range results {
		fmt.Fprintln(out, s)
	}
	fmt.Fprintf(out, "purge: removed=%d took=%s\n", removed, took.Round(time.Microsecond))
	return nil
}

// seed revokes every id, the first expiredPct percent with an expiry in the past.
func seed(ctx context.Context, b *store.RedisBlacklist, ids []string, expiredPct int, out io.Writer) error {
	fmt.Fprintf(out, "seeding %d revocations...\n", len(ids))
	start := time.Now()
	cut := len(ids) * expiredPct / 100
	for i, id := range ids {
		exp := start.Add(time.Hour)
		if i < cut {
			exp = start.Add(-time.Minute)
		}
		if err := b.Revoke(ctx, id, exp); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func connect(addr string, out io.Writer) (redis.UniversalClient, func(), error) {
	var mr *miniredis.Miniredis
	if addr == "" {
		var err error
		if mr, err = miniredis.Run(); err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		addr = mr.Addr()
		fmt.Fprintf(out, "using miniredis at %s\n", addr)
	} else {
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	return client, func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}, nil
}

// runPhase hands out ops operation indexes to concurrency workers and times
// every call. Failed calls are counted, not fatal; only cancellation of ctx
// stops the phase early.
func runPhase(ctx context.Context, ops, concurrency int, op func(context.Context, *rand.Rand, int) error) (summary, error) {
	var (
		next     atomic.Int64
		failures atomic.Int64
		mu       sync.Mutex
		samples  = make([]time.Duration, 0, ops)
	)

	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := 0; w < concurrency; w++ {
		randSeed := start.UnixNano() + int64(w)*7919
		g.Go(func() error {
			r := rand.New(rand.NewSource(randSeed))
			local := make([]time.Duration, 0, ops/concurrency+1)
			defer func() {
				mu.Lock()
				samples = append(samples, local...)
				mu.Unlock()
			}()
			for i := int(next.Add(1)) - 1; i < ops; i = int(next.Add(1)) - 1 {
				if err := ctx.Err(); err != nil {
					return err
				}
				t0 := time.Now()
				if op(ctx, r, i) != nil {
					failures.Add(1)
				}
				local = append(local, time.Since(t0))
			}
			return nil
		})
	}
	err := g.Wait()
	return summarize(time.Since(start), samples, failures.Load()), err
}

type summary struct {
	name          string
	elapsed       time.Duration
	ops           int
	failures      int64
	p50, p95, p99 time.Duration
}

func summarize(elapsed time.Duration, samples []time.Duration, failures int64) summary {
	slices.Sort(samples)
	return summary{
		elapsed:  elapsed,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
	}
}

func (s summary) opsPerSecond() float64 {
	if s.elapsed <= 0 {
		return 0
	}
	return float64(s.ops) / s.elapsed.Seconds()
}

func (s summary) String() string {
	return fmt.Sprintf("%-12s ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s",
		s.name+":", s.ops, s.failures, s.elapsed.Round(time.Millisecond), s.opsPerSecond(),
		s.p50.Round(time.Microsecond), s.p95.Round(time.Microsecond), s.p99.Round(time.Microsecond))
}

// percentile expects sorted samples.
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted) - 1) * min(max(p, 0), 100) / 100
	return sorted[idx]
}
