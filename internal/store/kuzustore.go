//go:build cgo

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	kuzu "github.com/kuzudb/go-kuzu"

	"github.com/dusk-indust/polyscan/internal/model"
)

// KuzuStore implements the Store interface using KuzuDB as the graph
// backend. It requires CGO because the go-kuzu driver wraps KuzuDB's C
// library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at
// the given directory path, so graph indexes survive across runs.
// KuzuDB creates the leaf directory itself for new databases.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(path string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// relTables maps a relationship family to its Kuzu table. Specific
// containment labels share the CONTAINS table; the exact label is kept
// in the rel_type property.
var relTables = []string{
	"CONTAINS", "CALLS", "EXTENDS", "IMPLEMENTS", "IMPORTS", "REFERENCES", "EMBEDDED_IN",
}

// ddlStatements defines the Cypher DDL executed by InitSchema.
// Node tables must precede relationship tables.
var ddlStatements = func() []string {
	ddl := []string{
		`CREATE NODE TABLE IF NOT EXISTS Component(
			id STRING,
			name STRING,
			type STRING,
			language STRING,
			file_path STRING,
			start_line INT64,
			end_line INT64,
			parent_id STRING,
			PRIMARY KEY(id)
		)`,
	}
	for _, table := range relTables {
		ddl = append(ddl, fmt.Sprintf(
			`CREATE REL TABLE IF NOT EXISTS %s(FROM Component TO Component,
				rel_type STRING, confidence DOUBLE, precedence STRING, source_count INT64)`,
			table))
	}
	return ddl
}()

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// relTable selects the Kuzu table for a relationship type.
func relTable(t model.RelationshipType) string {
	if t.IsContainment() {
		return "CONTAINS"
	}
	switch t {
	case model.RelCalls:
		return "CALLS"
	case model.RelExtends:
		return "EXTENDS"
	case model.RelImplements:
		return "IMPLEMENTS"
	case model.RelImports:
		return "IMPORTS"
	case model.RelEmbeddedInScope:
		return "EMBEDDED_IN"
	default:
		return "REFERENCES"
	}
}

// ---------- Write operations ----------

// AddComponent inserts a Component node.
func (s *KuzuStore) AddComponent(_ context.Context, c model.Component) error {
	return s.exec(
		`CREATE (c:Component {
			id: $id,
			name: $name,
			type: $type,
			language: $lang,
			file_path: $fp,
			start_line: $sl,
			end_line: $el,
			parent_id: $pid
		})`,
		map[string]any{
			"id":   c.ID,
			"name": c.Name,
			"type": string(c.Type),
			"lang": c.Language,
			"fp":   c.FilePath,
			"sl":   int64(c.Location.StartLine),
			"el":   int64(c.Location.EndLine),
			"pid":  c.ParentID,
		},
	)
}

// AddRelationship inserts an edge into the table of its family. Edges
// whose target is still a symbolic reference match no Component node
// and are silently skipped; they stay queryable from the aggregator.
func (s *KuzuStore) AddRelationship(_ context.Context, rel StoredRelationship) error {
	cypher := fmt.Sprintf(
		`MATCH (a:Component {id: $src}), (b:Component {id: $dst})
		 CREATE (a)-[:%s {rel_type: $type, confidence: $conf, precedence: $prec, source_count: $srcs}]->(b)`,
		relTable(rel.Type))
	return s.exec(cypher, map[string]any{
		"src":  rel.SourceID,
		"dst":  rel.TargetID,
		"type": string(rel.Type),
		"conf": rel.Confidence,
		"prec": rel.Precedence,
		"srcs": int64(rel.SourceCount),
	})
}

// ---------- Read operations ----------

// GetComponent retrieves a single Component by id, or nil if not found.
func (s *KuzuStore) GetComponent(_ context.Context, id string) (*model.Component, error) {
	rows, err := s.query(
		`MATCH (c:Component {id: $id})
		 RETURN c.id, c.name, c.type, c.language, c.file_path, c.start_line, c.end_line, c.parent_id`,
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rowToComponent(rows[0]), nil
}

// QueryComponents returns components whose name contains the query string.
func (s *KuzuStore) QueryComponents(_ context.Context, nameQuery string, limit int) ([]model.Component, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.query(
		`MATCH (c:Component) WHERE c.name CONTAINS $q
		 RETURN c.id, c.name, c.type, c.language, c.file_path, c.start_line, c.end_line, c.parent_id
		 LIMIT $lim`,
		map[string]any{"q": nameQuery, "lim": int64(limit)},
	)
	if err != nil {
		return nil, err
	}
	out := make([]model.Component, 0, len(rows))
	for _, r := range rows {
		out = append(out, *rowToComponent(r))
	}
	return out, nil
}

// GetRelationshipsFor returns edges touching componentID across all
// relationship tables.
func (s *KuzuStore) GetRelationshipsFor(_ context.Context, componentID string, dir Direction) ([]StoredRelationship, error) {
	var out []StoredRelationship
	for _, table := range relTables {
		if dir == DirectionOut || dir == DirectionBoth {
			rows, err := s.query(fmt.Sprintf(
				`MATCH (a:Component {id: $id})-[r:%s]->(b:Component)
				 RETURN a.id, b.id, r.rel_type, r.confidence, r.precedence, r.source_count`, table),
				map[string]any{"id": componentID})
			if err == nil {
				out = append(out, rowsToRelationships(rows)...)
			}
		}
		if dir == DirectionIn || dir == DirectionBoth {
			rows, err := s.query(fmt.Sprintf(
				`MATCH (a:Component)-[r:%s]->(b:Component {id: $id})
				 RETURN a.id, b.id, r.rel_type, r.confidence, r.precedence, r.source_count`, table),
				map[string]any{"id": componentID})
			if err == nil {
				out = append(out, rowsToRelationships(rows)...)
			}
		}
	}
	return out, nil
}

// ---------- Stats ----------

// Stats returns counts of stored components and relationships.
func (s *KuzuStore) Stats(_ context.Context) (*GraphStats, error) {
	components, err := s.count("MATCH (c:Component) RETURN count(c)")
	if err != nil {
		return nil, err
	}
	files, err := s.count(`MATCH (c:Component) WHERE c.type = "file" RETURN count(c)`)
	if err != nil {
		return nil, err
	}
	edges := 0
	for _, table := range relTables {
		n, err := s.count(fmt.Sprintf("MATCH ()-[r:%s]->() RETURN count(r)", table))
		if err != nil {
			// Table may not exist yet; treat as zero.
			continue
		}
		edges += n
	}
	return &GraphStats{
		FileCount:         files,
		ComponentCount:    components,
		RelationshipCount: edges,
	}, nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result
// rows, each as a []any in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

func (s *KuzuStore) count(cypher string) (int, error) {
	rows, err := s.query(cypher, nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// rowToComponent converts an 8-column result row into a Component.
// Column order: id, name, type, language, file_path, start_line,
// end_line, parent_id.
func rowToComponent(r []any) *model.Component {
	return &model.Component{
		ID:       toString(r[0]),
		Name:     toString(r[1]),
		Type:     model.ComponentType(toString(r[2])),
		Language: toString(r[3]),
		FilePath: toString(r[4]),
		Location: model.Location{
			StartLine: toInt(r[5]),
			EndLine:   toInt(r[6]),
		},
		ParentID: toString(r[7]),
	}
}

func rowsToRelationships(rows [][]any) []StoredRelationship {
	out := make([]StoredRelationship, 0, len(rows))
	for _, r := range rows {
		t := model.RelationshipType(toString(r[2]))
		src, dst := toString(r[0]), toString(r[1])
		out = append(out, StoredRelationship{
			Relationship: model.Relationship{
				ID:         model.RelationshipID(src, dst, t),
				Type:       t,
				SourceID:   src,
				TargetID:   dst,
				Confidence: toFloat64(r[3]),
			},
			Precedence:  toString(r[4]),
			SourceCount: toInt(r[5]),
		})
	}
	return out
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
