// Command particlesim is the workload driver named in spec.md §1/§6: an
// external collaborator that exercises the composite store with the
// bursty, mixed read/write access pattern of a bouncing-particle
// simulation. It is not part of the core and carries none of its
// invariants; it only has to behave correctly under whatever
// interleaving it produces, which the core guarantees (spec.md §6).
//
// Grounded on original_source/main.py: a box of particles is advanced
// step by step, a subset of particle positions is read back each step
// (the "reads" set) and a subset is rewritten (the "writes" set), all
// keyed by "pc_<index>".
package main

import (
	"context"
	"flag"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/edirooss/lrustore/internal/config"
	"github.com/edirooss/lrustore/internal/store"
)

// Particle mirrors the position/velocity pair the original ParticleBox
// tracks per row of its state matrix.
type Particle struct {
	X, Y   float64
	VX, VY float64
}

func (p *Particle) step(dt float64, bounds [4]float64) {
	p.X += p.VX * dt
	p.Y += p.VY * dt
	if p.X < bounds[0] || p.X > bounds[1] {
		p.VX = -p.VX
	}
	if p.Y < bounds[2] || p.Y > bounds[3] {
		p.VY = -p.VY
	}
}

func main() {
	configPath := flag.String("config", "", "YAML config file (LRU/LRU_db sections); defaults used if omitted")
	redisAddr := flag.String("redis-addr", "", "Redis address; empty runs against an in-process backing store")
	particles := flag.Int("particles", 100, "number of particles in the box")
	steps := flag.Int("steps", 200, "simulation steps to run")
	burst := flag.Int("burst", 16, "max concurrent reads/writes fanned out per step")
	seed := flag.Int64("seed", 10101010, "PRNG seed")
	flag.Parse()

	log := buildLogger().Named("particlesim")
	defer log.Sync()

	cfg := store.Config{MaxLen: 64, SyncFraction: 0.25}
	if *configPath != "" {
		f, err := config.Load(*configPath)
		if err != nil {
			log.Fatal("config load failed", zap.Error(err))
		}
		cfg = f.StoreConfig()
		if *redisAddr == "" {
			*redisAddr = f.LRUDatabase.Addr
		}
	}

	ctx := context.Background()
	cs, err := connect(ctx, log, *redisAddr, cfg)
	if err != nil {
		log.Fatal("connect failed", zap.Error(err))
	}
	defer func() {
		if err := cs.Close(ctx); err != nil {
			log.Error("close failed", zap.Error(err))
		}
	}()

	rng := rand.New(rand.NewSource(*seed))
	box := make([]Particle, *particles)
	for i := range box {
		box[i] = Particle{
			X:  rng.Float64()*8 - 4,
			Y:  rng.Float64()*8 - 4,
			VX: rng.Float64()*2 - 1,
			VY: rng.Float64()*2 - 1,
		}
	}
	bounds := [4]float64{-4, 4, -4, 4}

	for i, p := range box {
		if err := cs.Write(ctx, particleKey(i), p); err != nil {
			log.Fatal("initial write failed", zap.Int("particle", i), zap.Error(err))
		}
	}
	log.Info("initial state written", zap.Int("particles", *particles))

	start := time.Now()
	var count int64
	for step := 0; step < *steps; step++ {
		for i := range box {
			box[i].step(1.0/30, bounds)
		}

		reads := sampleIndices(rng, *particles, *particles/4)
		writes := sampleIndices(rng, *particles, *particles/4)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(*burst)
		for _, idx := range reads {
			idx := idx
			g.Go(func() error {
				var got Particle
				_, err := cs.Read(gctx, particleKey(idx), &got)
				return err
			})
		}
		for _, idx := range writes {
			idx := idx
			p := box[idx]
			g.Go(func() error {
				return cs.Write(gctx, particleKey(idx), p)
			})
		}
		if err := g.Wait(); err != nil {
			log.Fatal("step failed", zap.Int("step", step), zap.Error(err))
		}
		count += int64(len(reads) + len(writes))
	}

	elapsed := time.Since(start)
	stats := cs.Stats()
	log.Info("simulation complete",
		zap.Int("steps", *steps),
		zap.Int64("ops", count),
		zap.Duration("elapsed", elapsed),
		zap.Int("resident", stats.Resident),
		zap.Int64("syncs", stats.SyncCount),
		zap.Int64("promoted", stats.PromotedCount),
	)
}

func particleKey(i int) string { return "pc_" + strconv.Itoa(i) }

// sampleIndices draws n distinct indices from [0, count) without
// replacement, mirroring the original ParticleBox's sparse per-step
// reads/writes sets rather than touching every particle every step.
func sampleIndices(rng *rand.Rand, count, n int) []int {
	if n <= 0 || count <= 0 {
		return nil
	}
	if n > count {
		n = count
	}
	perm := rng.Perm(count)
	return perm[:n]
}

func connect(ctx context.Context, log *zap.Logger, addr string, cfg store.Config) (*store.Store, error) {
	if addr == "" {
		return store.ConnectMemory("particlesim", cfg)
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return store.Connect(ctx, log, rdb, "particlesim", cfg)
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	return zap.Must(logConfig.Build())
}
