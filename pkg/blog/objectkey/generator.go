package objectkey

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPrefix is the key prefix used for uploaded images.
const DefaultPrefix = "upload/"

// Key strategies accepted by New.
const (
	StrategyTimestamp = "timestamp"
	StrategySharded   = "sharded"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates an object key for storage backends
	GenerateKey(metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	FileName    string
	ContentType string
}

// TimestampGenerator names objects <prefix><basename><unix millis><ext>.
// Two uploads of the same file name in the same millisecond collide; use
// ShardedGenerator when that matters.
type TimestampGenerator struct {
	Prefix string
	Now    func() time.Time
}

func NewTimestampGenerator() *TimestampGenerator {
	return &TimestampGenerator{
		Prefix: DefaultPrefix,
		Now:    time.Now,
	}
}

func (g *TimestampGenerator) GenerateKey(metadata *KeyMetadata) string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	millis := now().UnixMilli()

	if metadata == nil || metadata.FileName == "" {
		return fmt.Sprintf("%s%d", g.Prefix, millis)
	}

	name := sanitizeFilename(path.Base(strings.ReplaceAll(metadata.FileName, "\\", "/")))
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s%s%d%s", g.Prefix, base, millis, ext)
}

// ShardedGenerator provides Git-style sharded keys with a random id:
// <prefix>ab/cd1234ef5678_filename
type ShardedGenerator struct {
	Prefix string
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{
		Prefix:      DefaultPrefix,
		ShardLength: 2,
	}
}

func (g *ShardedGenerator) GenerateKey(metadata *KeyMetadata) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")

	shardLength := g.ShardLength
	if shardLength <= 0 || shardLength > len(id) {
		shardLength = 2
	}
	shardDir := id[:shardLength]
	filename := id[shardLength:]
	if metadata != nil && metadata.FileName != "" {
		filename = fmt.Sprintf("%s_%s", filename, sanitizeFilename(path.Base(metadata.FileName)))
	}

	return fmt.Sprintf("%s%s/%s", g.Prefix, shardDir, filename)
}

// New returns the generator for a strategy name: "timestamp" or "sharded".
func New(strategy, prefix string) (Generator, error) {
	switch strategy {
	case StrategyTimestamp, "":
		g := NewTimestampGenerator()
		g.Prefix = prefix
		return g, nil
	case StrategySharded:
		g := NewShardedGenerator()
		g.Prefix = prefix
		return g, nil
	default:
		return nil, fmt.Errorf("unknown key strategy %q", strategy)
	}
}

// Helper functions for path sanitization
func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}
