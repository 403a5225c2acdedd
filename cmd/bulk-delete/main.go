// Command bulk-delete removes a contiguous range of keys from one
// collection, the same range-deletion shape the teacher's bulk-delete
// tool used against its channel repository, adapted here to delete
// "<prefix><id>"-style keys through the composite store instead of
// through a domain-specific service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edirooss/lrustore/internal/store"
)

func main() {
	start := flag.Int("start", 0, "start of key-ID range")
	end := flag.Int("end", 0, "end of key-ID range")
	prefix := flag.String("key-prefix", "pc_", "prefix prepended to each numeric ID to form a key")
	collection := flag.String("collection", "particlesim", "collection name (backing-store key prefix)")
	redisAddr := flag.String("redis-addr", "127.0.0.1:6379", "Redis address")
	flag.Parse()

	if *start == 0 || *end == 0 || *end < *start {
		fmt.Println("Usage: ./bulk-delete -start=<start_id> -end=<end_id>")
		os.Exit(1)
	}

	log := buildLogger().Named("main")
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
	cs, err := store.Connect(ctx, log, rdb, *collection, store.Config{})
	if err != nil {
		log.Fatal("store connect failed", zap.Error(err))
	}
	defer func() {
		if err := cs.Close(ctx); err != nil {
			log.Error("close failed", zap.Error(err))
		}
	}()

	total := (*end - *start) + 1
	for idx, id := 0, *start; id <= *end; idx, id = idx+1, id+1 {
		iterStart := time.Now()
		key := *prefix + strconv.Itoa(id)

		if err := cs.Delete(ctx, key); err != nil {
			log.Fatal("key deletion failed", zap.String("key", key), zap.Error(err))
		}

		log.Info("key deleted",
			zap.String("key", key),
			zap.Int("deleted", idx+1),
			zap.Int("total", total),
			zap.Duration("took", time.Since(iterStart)),
		)
	}
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}
