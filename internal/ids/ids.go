package ids

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// Generator hands out identifiers for stored records
type Generator struct {
	node *snowflake.Node
}

// NewGenerator creates a generator for the given snowflake node (0-1023)
func NewGenerator(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

// MustGenerator is NewGenerator for tests and defaults
func MustGenerator(nodeID int64) *Generator {
	g, err := NewGenerator(nodeID)
	if err != nil {
		panic(err)
	}
	return g
}

// NextID returns a time-ordered numeric id for accounts and addresses
func (g *Generator) NextID() int64 {
	return g.node.Generate().Int64()
}

// NewSessionID returns a sortable opaque session id
func NewSessionID() string {
	return ksuid.New().String()
}

// NewChallengeID returns a random challenge id
func NewChallengeID() string {
	return uuid.New().String()
}
