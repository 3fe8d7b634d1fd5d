// Package idgen hands out time-ordered row identifiers backed by snowflake IDs.
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator produces unique, roughly time-ordered string IDs.
type Generator struct {
	node *snowflake.Node
}

// New creates a generator for the given node. Every process writing to the
// same database must use a distinct node in [0, 1023].
func New(node int64) (*Generator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node %d: %w", node, err)
	}
	return &Generator{node: n}, nil
}

// NextID returns the next ID in base 10.
func (g *Generator) NextID() string {
	return g.node.Generate().String()
}
