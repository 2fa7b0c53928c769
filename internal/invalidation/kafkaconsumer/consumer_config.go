package kafkaconsumer

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	DedupeSize          int
	// ApplyRetries is how many times a failed message is retried before the
	// claim gives it back to the group.
	ApplyRetries int
	ApplyBackoff time.Duration
	// IgnoreSource skips events this instance published itself.
	IgnoreSource string
}

func FromEnv() Config {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}
	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "property-changes"
	}
	group := os.Getenv("KAFKA_GROUP_ID")
	if group == "" {
		group = "estate-search"
	}
	dedupe := 4096
	if v, err := strconv.Atoi(os.Getenv("KAFKA_DEDUPE_SIZE")); err == nil && v > 0 {
		dedupe = v
	}

	return Config{
		Brokers:             SplitCSV(brokers),
		Topic:               topic,
		GroupID:             group,
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		InitialOffsetOldest: false,
		DedupeSize:          dedupe,
		ApplyRetries:        3,
		ApplyBackoff:        100 * time.Millisecond,
		IgnoreSource:        os.Getenv("INSTANCE_ID"),
	}
}

func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
