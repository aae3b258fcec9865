// Package id generates identifiers for batches, staged clippings, and warnings.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the staging identifiers handed out by Default.
const (
	PrefixClipping = "bc"
	PrefixWarning  = "warn"
	PrefixSession  = "sess"
)

// Generate creates a prefixed unique ID using NanoID
// Format: prefix-nanoid (e.g., "bc-V1StGXR8_Z5jdHi6B-myT")
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// NewBatchID returns a random UUID identifying one imported batch.
func NewBatchID() string {
	return uuid.NewString()
}

// Generator hands out identifiers for the staging area.
// Implementations must never return the same value twice.
type Generator interface {
	BatchID() string
	ClippingID() string
	WarningID() string
}

// Default is the production Generator: UUIDs for batches, NanoIDs for the rest.
var Default Generator = defaultGenerator{}

type defaultGenerator struct{}

func (defaultGenerator) BatchID() string    { return NewBatchID() }
func (defaultGenerator) ClippingID() string { return MustGenerate(PrefixClipping) }
func (defaultGenerator) WarningID() string  { return MustGenerate(PrefixWarning) }
