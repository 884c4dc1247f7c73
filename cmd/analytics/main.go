// Command analytics consumes session events from Kafka and maintains rolling
// aggregates in Redis (event counts and completed-session summaries) for
// dashboards that must not touch the live API process.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/restaurant-matching/internal/models"
)

var (
	eventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_events_consumed_total",
		Help: "Total session events consumed",
	})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_events_invalid_total",
		Help: "Total undecodable events received",
	})
	redisUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_redis_updates_total",
		Help: "Total successful redis aggregate updates",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_redis_errors_total",
		Help: "Total redis errors after retries",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, redisUpdates, redisErrors)
}

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokers := []string{"localhost:9092"}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = brokers[:0]
		for _, b := range strings.Split(v, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	}
	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "session-events"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "restaurant-matching-analytics"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	rc := redis.NewClient(&redis.Options{Addr: redisAddr})
	agg := &redisAggregator{c: rc}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	log.Printf("analytics consumer listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down consumer")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		eventsConsumed.Inc()

		var ev models.SessionEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.Type == "" {
			eventsInvalid.Inc()
			log.Printf("invalid event: %v", err)
			continue
		}

		if err := applyWithRetry(ctx, agg, &ev, 3, 200*time.Millisecond); err != nil {
			redisErrors.Inc()
			log.Printf("redis update failed for session=%s: %v", ev.SessionID, err)
			continue
		}
		redisUpdates.Inc()
	}
}

// Aggregator is the subset of redis operations the consumer needs, small
// enough to fake in tests.
type Aggregator interface {
	IncrCounter(ctx context.Context, key, field string) error
	RecordCompletion(ctx context.Context, ev *models.SessionEvent) error
}

type redisAggregator struct{ c *redis.Client }

func (r *redisAggregator) IncrCounter(ctx context.Context, key, field string) error {
	return r.c.HIncrBy(ctx, key, field, 1).Err()
}

func (r *redisAggregator) RecordCompletion(ctx context.Context, ev *models.SessionEvent) error {
	return r.c.HSet(ctx, "session:summary:"+ev.SessionID, map[string]interface{}{
		"players":      ev.PlayerCount,
		"match_count":  ev.MatchCount,
		"completed_at": ev.At.Format(time.RFC3339),
	}).Err()
}

// applyWithRetry writes one event's aggregates with bounded retry/backoff.
func applyWithRetry(ctx context.Context, agg Aggregator, ev *models.SessionEvent, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		if err := agg.IncrCounter(ctx, "events:counts", ev.Type); err != nil {
			if i == attempts-1 {
				return err
			}
			time.Sleep(delay)
			delay *= 2
			continue
		}
		if ev.Type == models.EventSessionCompleted {
			if err := agg.RecordCompletion(ctx, ev); err != nil {
				if i == attempts-1 {
					return err
				}
				time.Sleep(delay)
				delay *= 2
				continue
			}
		}
		return nil
	}
	return nil
}
