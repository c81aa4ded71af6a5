package identity

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces globally unique opaque identifiers.
type Generator interface {
	NewID() string
}

// UUIDGenerator hands out random (v4) UUID strings.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (UUIDGenerator) NewID() string {
	return uuid.New().String()
}

// SequenceGenerator hands out "<prefix>-1", "<prefix>-2", ... and is meant for
// tests and fixtures where ids must be predictable.
type SequenceGenerator struct {
	prefix string
	next   atomic.Uint64
}

func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

func (g *SequenceGenerator) NewID() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.next.Add(1))
}
