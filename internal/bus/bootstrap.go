package bus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

// TopicSpec is one entry in the topics manifest.
type TopicSpec struct {
	Name              string `yaml:"name"`
	Partitions        int    `yaml:"partitions"`
	ReplicationFactor int    `yaml:"replication_factor"`
	RetentionMS       int64  `yaml:"retention_ms"`
}

type topicsManifest struct {
	Topics []TopicSpec `yaml:"topics"`
}

// LoadTopicsManifest parses the YAML topics manifest.
func LoadTopicsManifest(path string) ([]TopicSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topics manifest: %w", err)
	}

	var manifest topicsManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse topics manifest: %w", err)
	}

	for i, t := range manifest.Topics {
		if t.Name == "" {
			return nil, fmt.Errorf("topic %d has no name", i)
		}
		if t.Partitions <= 0 {
			manifest.Topics[i].Partitions = 1
		}
		if t.ReplicationFactor <= 0 {
			manifest.Topics[i].ReplicationFactor = 1
		}
	}
	return manifest.Topics, nil
}

// topicConfig maps a manifest entry onto the broker topic config. Topics
// compress with snappy; retention applies when the manifest sets it.
func topicConfig(spec TopicSpec) kafka.TopicConfig {
	entries := []kafka.ConfigEntry{{
		ConfigName:  "compression.type",
		ConfigValue: "snappy",
	}}
	if spec.RetentionMS > 0 {
		entries = append(entries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: strconv.FormatInt(spec.RetentionMS, 10),
		})
	}
	return kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     spec.Partitions,
		ReplicationFactor: spec.ReplicationFactor,
		ConfigEntries:     entries,
	}
}

// BootstrapTopics creates the manifest's topics on the cluster controller.
// Existing topics are skipped; creation is idempotent.
func BootstrapTopics(ctx context.Context, brokers []string, specs []TopicSpec) error {
	if len(brokers) == 0 {
		return errors.New("no brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to locate controller: %w", err)
	}

	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	admin, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial controller: %w", err)
	}
	defer admin.Close()

	for _, spec := range specs {
		err := admin.CreateTopics(topicConfig(spec))
		switch {
		case err == nil:
			log.Info().Str("topic", spec.Name).Int("partitions", spec.Partitions).
				Msg("topic created")
		case errors.Is(err, kafka.TopicAlreadyExists):
			log.Info().Str("topic", spec.Name).Msg("topic exists, skipping")
		default:
			return fmt.Errorf("failed to create topic %s: %w", spec.Name, err)
		}
	}
	return nil
}
