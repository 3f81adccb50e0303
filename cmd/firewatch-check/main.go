// firewatch-check prints what the side outputs hold: the PostgreSQL alert
// archive and, with --redis, the live-state mirror.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	commoncfg "firewatch/common/config"
	"firewatch/common/database"
	rediscommon "firewatch/common/redis"
	"firewatch/internal/repository"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	var (
		firefighterID string
		limit         int
		withRedis     bool
		prefix        string
	)
	flags := pflag.NewFlagSet("firewatch-check", pflag.ExitOnError)
	flags.StringVar(&firefighterID, "firefighter", "", "only list this firefighter's alerts")
	flags.IntVar(&limit, "limit", 20, "number of recent alerts to list")
	flags.BoolVar(&withRedis, "redis", false, "also inspect the Redis mirror (REDIS_* settings)")
	flags.StringVar(&prefix, "prefix", "firewatch:", "Redis mirror key prefix")
	_ = flags.Parse(os.Args[1:])

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbCfg := &commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "firewatch",
		SSLMode:  "disable",
	}
	dbCfg.LoadFromEnv("DB")

	db, err := database.NewPostgresDB(ctx, dbCfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := repository.NewAlertEventsRepository(db, zap.NewNop())

	// 1. Archive summary per alert type
	section("1. Archived alerts by type")
	summary, err := repo.SummarizeByType(ctx)
	if err != nil {
		log.Fatalf("Failed to summarize alerts: %v", err)
	}
	fmt.Printf("%-20s %8s %8s\n", "alert_type", "total", "open")
	for _, s := range summary {
		fmt.Printf("%-20s %8d %8d\n", s.AlertType, s.Total, s.Open)
	}

	// 2. Most recent alerts
	section(fmt.Sprintf("2. Latest %d alerts", limit))
	alerts, err := repo.ListAlertEvents(ctx, repository.AlertEventFilters{FirefighterID: firefighterID, Limit: limit})
	if err != nil {
		log.Fatalf("Failed to list alerts: %v", err)
	}
	fmt.Printf("%-38s %-18s %-9s %-14s %-25s %s\n", "alert_id", "alert_type", "severity", "subject", "raised_at", "status")
	for _, a := range alerts {
		subject := a.BeaconID
		if a.Firefighter != nil {
			subject = a.Firefighter.ID
		}
		status := "open"
		if a.Resolved {
			status = string(a.Resolution)
			if a.AcknowledgedBy != "" {
				status += " by " + a.AcknowledgedBy
			}
		}
		fmt.Printf("%-38s %-18s %-9s %-14s %-25s %s\n",
			a.ID, a.AlertType, a.Severity, subject, a.Timestamp.Format(time.RFC3339), status)
	}

	if !withRedis {
		return
	}

	// 3. Redis mirror
	section("3. Redis mirror")
	redisCfg := &commoncfg.RedisConfig{Addr: "localhost:6379"}
	redisCfg.LoadFromEnv("REDIS")
	client := rediscommon.NewRedisClient(redisCfg)
	defer client.Close()
	if err := rediscommon.Ping(ctx, client); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	open, err := client.HLen(ctx, prefix+"alerts:open").Result()
	if err != nil {
		log.Fatalf("Failed to read open alerts: %v", err)
	}
	keys, err := client.Keys(ctx, prefix+"ff:*:realtime").Result()
	if err != nil {
		log.Fatalf("Failed to list realtime keys: %v", err)
	}
	fmt.Printf("open alerts:           %d\n", open)
	fmt.Printf("live firefighter keys: %d\n", len(keys))
	for _, k := range keys {
		ttl, _ := client.TTL(ctx, k).Result()
		fmt.Printf("  %-40s ttl=%s\n", k, ttl)
	}
}

func section(title string) {
	line := strings.Repeat("=", 80)
	fmt.Println("\n" + line)
	fmt.Println(title)
	fmt.Println(line)
}
