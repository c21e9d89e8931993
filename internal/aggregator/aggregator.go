// Package aggregator merges relationship observations from detection
// passes of differing reliability into one deduplicated,
// confidence-ranked set. An Aggregator is an explicitly constructed,
// explicitly owned object: callers that need a shared graph pass the
// same instance by reference, and each test constructs its own.
package aggregator

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dusk-indust/polyscan/internal/model"
)

// PrecedenceLevel ranks the reliability of a detection pass.
type PrecedenceLevel string

const (
	LevelInitial    PrecedenceLevel = "initial"
	LevelBasic      PrecedenceLevel = "basic"
	LevelStructural PrecedenceLevel = "structural"
	LevelSemantic   PrecedenceLevel = "semantic"
)

var precedenceRank = map[PrecedenceLevel]int{
	LevelInitial:    0,
	LevelBasic:      1,
	LevelStructural: 2,
	LevelSemantic:   3,
}

// levelBoost is the fixed confidence boost applied for the winning
// precedence level.
var levelBoost = map[PrecedenceLevel]float64{
	LevelSemantic:   0.10,
	LevelStructural: 0.05,
	LevelBasic:      0.02,
	LevelInitial:    0,
}

// PrecedenceOf maps a source tag to its precedence level. Tags may
// carry a qualifier after the level name ("semantic:treesitter");
// unknown tags rank as initial.
func PrecedenceOf(sourceTag string) PrecedenceLevel {
	tag := strings.ToLower(sourceTag)
	for _, level := range []PrecedenceLevel{LevelSemantic, LevelStructural, LevelBasic, LevelInitial} {
		if tag == string(level) || strings.HasPrefix(tag, string(level)+":") || strings.HasPrefix(tag, string(level)+"-") {
			return level
		}
	}
	return LevelInitial
}

// RelationshipSource records one contributing observation of a
// relationship.
type RelationshipSource struct {
	SourceTag  string         `json:"sourceTag"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	ObservedAt time.Time      `json:"observedAt"`
}

// AggregatedRelationship is the stored form of a merged relationship:
// the base edge plus every contributing source and the derived
// aggregation metadata.
type AggregatedRelationship struct {
	model.Relationship

	Sources         []RelationshipSource `json:"sources"`
	PrecedenceLevel PrecedenceLevel      `json:"precedenceLevel"`
	FinalConfidence float64              `json:"finalConfidence"`
	ConsensusScore  float64              `json:"consensusScore"`
	MergeCount      int                  `json:"mergeCount"`
	MinConfidence   float64              `json:"minConfidence"`
	MaxConfidence   float64              `json:"maxConfidence"`
	LastUpdated     time.Time            `json:"lastUpdated"`
}

// Options configures an Aggregator.
type Options struct {
	// MaxSources is the default cap on sources returned per
	// relationship when a query does not set its own. 0 means
	// unlimited.
	MaxSources int

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Aggregator accumulates relationship observations keyed by their
// (source, target, type) triple. All mutation is serialized; reads
// return snapshots and never observe a partially merged record.
type Aggregator struct {
	mu         sync.RWMutex
	byKey      map[string]*AggregatedRelationship
	maxSources int
	now        func() time.Time
}

// New creates an empty Aggregator.
func New(opts Options) *Aggregator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		byKey:      make(map[string]*AggregatedRelationship),
		maxSources: opts.MaxSources,
		now:        now,
	}
}

// AddRelationships ingests the observations of one detection pass. The
// first observation of a triple creates its record; every later one
// merges into it, recomputing precedence and confidence. Records are
// never replaced or deleted here.
func (a *Aggregator) AddRelationships(rels []model.Relationship, sourceTag string) {
	if len(rels) == 0 {
		return
	}
	level := PrecedenceOf(sourceTag)
	observedAt := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, rel := range rels {
		key := model.RelationshipID(rel.SourceID, rel.TargetID, rel.Type)
		confidence := model.ClampConfidence(rel.Confidence)

		agg, ok := a.byKey[key]
		if !ok {
			base := rel
			base.ID = key
			base.Confidence = confidence
			agg = &AggregatedRelationship{
				Relationship:    base,
				PrecedenceLevel: level,
				MinConfidence:   confidence,
				MaxConfidence:   confidence,
			}
			a.byKey[key] = agg
		}

		agg.Sources = append(agg.Sources, RelationshipSource{
			SourceTag:  sourceTag,
			Confidence: confidence,
			Metadata:   rel.Metadata,
			ObservedAt: observedAt,
		})
		agg.MergeCount++
		if confidence < agg.MinConfidence {
			agg.MinConfidence = confidence
		}
		if confidence > agg.MaxConfidence {
			agg.MaxConfidence = confidence
		}
		// Precedence only ever moves up.
		if precedenceRank[level] > precedenceRank[agg.PrecedenceLevel] {
			agg.PrecedenceLevel = level
		}
		if !rel.NeedsResolution {
			agg.NeedsResolution = false
		}
		agg.LastUpdated = observedAt
		a.recompute(agg)
	}
}

// recompute derives consensus and final confidence from the full source
// list. Final confidence is the best observation at the winning
// precedence level, boosted for consensus and level, then decayed by
// the average age of all observations.
func (a *Aggregator) recompute(agg *AggregatedRelationship) {
	now := a.now()

	var winning float64
	var sum, ageDays float64
	for _, src := range agg.Sources {
		if PrecedenceOf(src.SourceTag) == agg.PrecedenceLevel && src.Confidence > winning {
			winning = src.Confidence
		}
		sum += src.Confidence
		ageDays += now.Sub(src.ObservedAt).Hours() / 24
	}
	n := float64(len(agg.Sources))
	mean := sum / n

	var variance float64
	for _, src := range agg.Sources {
		d := src.Confidence - mean
		variance += d * d
	}
	variance /= n
	agg.ConsensusScore = 1 - variance

	boosted := winning + levelBoost[agg.PrecedenceLevel]
	if len(agg.Sources) >= 2 {
		consensusBoost := 0.10 * agg.ConsensusScore
		if consensusBoost > 0.10 {
			consensusBoost = 0.10
		}
		boosted += consensusBoost
	}

	decay := 1 - 0.01*(ageDays/n)
	if decay < 0 {
		decay = 0
	}
	agg.FinalConfidence = model.ClampConfidence(boosted) * decay
	agg.Confidence = agg.FinalConfidence
}

// QueryOptions filters GetAllRelationships.
type QueryOptions struct {
	// ConfidenceThreshold drops relationships whose final confidence
	// falls below it.
	ConfidenceThreshold float64

	// MaxSources caps the sources returned per relationship, keeping
	// the highest-confidence ones. 0 falls back to the aggregator
	// default.
	MaxSources int
}

// GetAllRelationships returns the merged set ranked by final
// confidence (descending, id-ordered within ties).
func (a *Aggregator) GetAllRelationships(opts QueryOptions) []AggregatedRelationship {
	maxSources := opts.MaxSources
	if maxSources == 0 {
		maxSources = a.maxSources
	}

	a.mu.RLock()
	out := make([]AggregatedRelationship, 0, len(a.byKey))
	for _, agg := range a.byKey {
		if agg.FinalConfidence < opts.ConfidenceThreshold {
			continue
		}
		out = append(out, snapshot(agg, maxSources))
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FinalConfidence != out[j].FinalConfidence {
			return out[i].FinalConfidence > out[j].FinalConfidence
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Direction selects which end of an edge an entity matches.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionBoth Direction = "both"
)

// GetRelationshipsFor returns the relationships touching entityID as
// target (in), source (out), or either (both).
func (a *Aggregator) GetRelationshipsFor(entityID string, direction Direction) []AggregatedRelationship {
	a.mu.RLock()
	var out []AggregatedRelationship
	for _, agg := range a.byKey {
		in := agg.TargetID == entityID
		outbound := agg.SourceID == entityID
		switch direction {
		case DirectionIn:
			if !in {
				continue
			}
		case DirectionOut:
			if !outbound {
				continue
			}
		default:
			if !in && !outbound {
				continue
			}
		}
		out = append(out, snapshot(agg, a.maxSources))
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Statistics summarizes the aggregator's contents.
type Statistics struct {
	TotalRelationships int                     `json:"totalRelationships"`
	ByPrecedence       map[PrecedenceLevel]int `json:"byPrecedence"`
	ByConfidenceBucket map[string]int          `json:"byConfidenceBucket"`
	BySourceTag        map[string]int          `json:"bySourceTag"`
	AverageSources     float64                 `json:"averageSources"`
}

// GetStatistics reports counts by precedence level, confidence bucket,
// and source tag, plus the average number of sources per relationship.
func (a *Aggregator) GetStatistics() Statistics {
	stats := Statistics{
		ByPrecedence:       make(map[PrecedenceLevel]int),
		ByConfidenceBucket: make(map[string]int),
		BySourceTag:        make(map[string]int),
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	totalSources := 0
	for _, agg := range a.byKey {
		stats.TotalRelationships++
		stats.ByPrecedence[agg.PrecedenceLevel]++
		stats.ByConfidenceBucket[confidenceBucket(agg.FinalConfidence)]++
		for _, src := range agg.Sources {
			stats.BySourceTag[src.SourceTag]++
		}
		totalSources += len(agg.Sources)
	}
	if stats.TotalRelationships > 0 {
		stats.AverageSources = float64(totalSources) / float64(stats.TotalRelationships)
	}
	return stats
}

// Clear discards every aggregated relationship. It is the only way
// records are removed.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	a.byKey = make(map[string]*AggregatedRelationship)
	a.mu.Unlock()
}

// snapshot deep-copies an aggregated relationship, keeping at most
// maxSources of its highest-confidence sources.
func snapshot(agg *AggregatedRelationship, maxSources int) AggregatedRelationship {
	out := *agg
	out.Sources = make([]RelationshipSource, len(agg.Sources))
	copy(out.Sources, agg.Sources)
	if maxSources > 0 && len(out.Sources) > maxSources {
		sort.SliceStable(out.Sources, func(i, j int) bool {
			return out.Sources[i].Confidence > out.Sources[j].Confidence
		})
		out.Sources = out.Sources[:maxSources]
	}
	return out
}

func confidenceBucket(c float64) string {
	switch {
	case c < 0.2:
		return bucketLabel(0.0, 0.2)
	case c < 0.4:
		return bucketLabel(0.2, 0.4)
	case c < 0.6:
		return bucketLabel(0.4, 0.6)
	case c < 0.8:
		return bucketLabel(0.6, 0.8)
	default:
		return bucketLabel(0.8, 1.0)
	}
}

func bucketLabel(lo, hi float64) string {
	return fmt.Sprintf("%.1f-%.1f", lo, hi)
}
