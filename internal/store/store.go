// Package store persists parse results into a graph backend so
// downstream tooling can query the extracted structure. KuzuStore is
// the production backend; MemStore serves tests and CGO-less builds.
package store

import (
	"context"
	"io"

	"github.com/dusk-indust/polyscan/internal/aggregator"
	"github.com/dusk-indust/polyscan/internal/model"
)

// StoredRelationship is the flattened persisted form of an aggregated
// relationship: the edge itself plus the aggregation summary a graph
// consumer needs for ranking.
type StoredRelationship struct {
	model.Relationship

	Precedence  string `json:"precedence"`
	SourceCount int    `json:"sourceCount"`
}

// FromAggregated flattens an aggregated relationship for persistence.
func FromAggregated(agg aggregator.AggregatedRelationship) StoredRelationship {
	rel := agg.Relationship
	rel.Confidence = agg.FinalConfidence
	return StoredRelationship{
		Relationship: rel,
		Precedence:   string(agg.PrecedenceLevel),
		SourceCount:  len(agg.Sources),
	}
}

// Direction controls relationship lookup relative to a component.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionBoth Direction = "both"
)

// GraphStats counts the stored graph.
type GraphStats struct {
	FileCount         int `json:"fileCount"`
	ComponentCount    int `json:"componentCount"`
	RelationshipCount int `json:"relationshipCount"`
}

// Store is the interface for the component graph backend.
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations.
	AddComponent(ctx context.Context, c model.Component) error
	AddRelationship(ctx context.Context, rel StoredRelationship) error

	// Read operations.
	GetComponent(ctx context.Context, id string) (*model.Component, error)
	QueryComponents(ctx context.Context, nameQuery string, limit int) ([]model.Component, error)
	GetRelationshipsFor(ctx context.Context, componentID string, dir Direction) ([]StoredRelationship, error)

	// Stats.
	Stats(ctx context.Context) (*GraphStats, error)
}
