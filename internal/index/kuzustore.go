//go:build cgo

package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore persists snapshots in a KuzuDB graph: File nodes DEFINE Symbol
// nodes. It requires cgo.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// OpenKuzu opens the database at path, or an in-memory database when path
// is empty or ":memory:". The schema is created if missing.
func OpenKuzu(path string) (*KuzuStore, error) {
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("index: kuzu: create parent directory: %w", err)
		}
	}
	db, err := kuzu.OpenDatabase(path, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, fmt.Errorf("index: kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("index: kuzu: open connection: %w", err)
	}
	s := &KuzuStore{db: db, conn: conn}
	if err := s.initSchema(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Meta(
		key STRING,
		value STRING,
		PRIMARY KEY(key)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS File(
		path STRING,
		language STRING,
		package STRING,
		loc INT64,
		imports STRING,
		PRIMARY KEY(path)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Symbol(
		id STRING,
		name STRING,
		kind STRING,
		receiver STRING,
		signature STRING,
		exported BOOLEAN,
		file_path STRING,
		start_line INT64,
		end_line INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS DEFINES(FROM File TO Symbol)`,
}

func (s *KuzuStore) initSchema() error {
	for _, stmt := range ddlStatements {
		res, err := s.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("index: kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// Save replaces the stored graph with snap.
func (s *KuzuStore) Save(ctx context.Context, snap *Snapshot) error {
	for _, stmt := range []string{
		"MATCH (s:Symbol) DETACH DELETE s",
		"MATCH (f:File) DETACH DELETE f",
		"MATCH (m:Meta) DELETE m",
	} {
		if err := s.exec(stmt, nil); err != nil {
			return err
		}
	}
	if err := s.exec("CREATE (m:Meta {key: 'root', value: $v})", map[string]any{"v": snap.Root()}); err != nil {
		return err
	}

	for _, f := range snap.files {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.exec(
			"CREATE (f:File {path: $path, language: $lang, package: $pkg, loc: $loc, imports: $imports})",
			map[string]any{
				"path":    f.Path,
				"lang":    string(f.Language),
				"pkg":     f.Package,
				"loc":     int64(f.LOC),
				"imports": strings.Join(f.Imports, "\n"),
			},
		)
		if err != nil {
			return err
		}
	}

	for i, sym := range snap.symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := fmt.Sprintf("%s:%d:%s", sym.File, i, sym.QualifiedName())
		err := s.exec(
			`CREATE (s:Symbol {
				id: $id, name: $name, kind: $kind, receiver: $recv, signature: $sig,
				exported: $exported, file_path: $fp, start_line: $sl, end_line: $el
			})`,
			map[string]any{
				"id":       id,
				"name":     sym.Name,
				"kind":     string(sym.Kind),
				"recv":     sym.Receiver,
				"sig":      sym.Signature,
				"exported": sym.Exported,
				"fp":       sym.File,
				"sl":       int64(sym.StartLine),
				"el":       int64(sym.EndLine),
			},
		)
		if err != nil {
			return err
		}
		err = s.exec(
			`MATCH (a:File {path: $fp}), (b:Symbol {id: $id}) CREATE (a)-[:DEFINES]->(b)`,
			map[string]any{"fp": sym.File, "id": id},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Load rebuilds a snapshot from the stored graph. An empty store yields an
// empty snapshot.
func (s *KuzuStore) Load(_ context.Context) (*Snapshot, error) {
	root := ""
	rows, err := s.query("MATCH (m:Meta {key: 'root'}) RETURN m.value", nil)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		root = toString(rows[0][0])
	}

	rows, err = s.query("MATCH (f:File) RETURN f.path, f.language, f.package, f.loc, f.imports", nil)
	if err != nil {
		return nil, err
	}
	files := make([]File, 0, len(rows))
	for _, r := range rows {
		f := File{
			Path:     toString(r[0]),
			Language: Language(toString(r[1])),
			Package:  toString(r[2]),
			LOC:      toInt(r[3]),
		}
		if imp := toString(r[4]); imp != "" {
			f.Imports = strings.Split(imp, "\n")
		}
		files = append(files, f)
	}

	rows, err = s.query(
		`MATCH (s:Symbol) RETURN s.name, s.kind, s.receiver, s.signature, s.exported,
		 s.file_path, s.start_line, s.end_line`, nil)
	if err != nil {
		return nil, err
	}
	symbols := make([]Symbol, 0, len(rows))
	for _, r := range rows {
		symbols = append(symbols, rowToSymbol(r))
	}
	return NewSnapshot(root, files, symbols), nil
}

// FileSymbols returns the symbols a stored file defines.
func (s *KuzuStore) FileSymbols(_ context.Context, path string) ([]Symbol, error) {
	rows, err := s.query(
		`MATCH (f:File {path: $path})-[:DEFINES]->(s:Symbol)
		 RETURN s.name, s.kind, s.receiver, s.signature, s.exported,
		 s.file_path, s.start_line, s.end_line
		 ORDER BY s.start_line`,
		map[string]any{"path": path},
	)
	if err != nil {
		return nil, err
	}
	out := make([]Symbol, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToSymbol(r))
	}
	return out, nil
}

func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	if len(params) == 0 {
		res, err := s.conn.Query(cypher)
		if err != nil {
			return fmt.Errorf("index: kuzu: query: %w", err)
		}
		res.Close()
		return nil
	}
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("index: kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("index: kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("index: kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("index: kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("index: kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("index: kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// rowToSymbol converts an 8-column row: name, kind, receiver, signature,
// exported, file_path, start_line, end_line.
func rowToSymbol(r []any) Symbol {
	return Symbol{
		Name:      toString(r[0]),
		Kind:      SymbolKind(toString(r[1])),
		Receiver:  toString(r[2]),
		Signature: toString(r[3]),
		Exported:  toBool(r[4]),
		File:      toString(r[5]),
		StartLine: toInt(r[6]),
		EndLine:   toInt(r[7]),
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
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
	}
	return 0
}

func toBool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}
