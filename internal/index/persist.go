package index

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pharmagician/pharma-engine/pkg/types"
)

// SaveSnapshot writes a snapshot to a SQLite file so a restart can skip the
// expensive rebuild when the catalog has not changed. Posting lists are not
// stored; the loader reassembles them from the identities.
func SaveSnapshot(path string, snap *Snapshot) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open snapshot file %s: %w", path, err)
	}
	defer db.Close()

	stmts := []string{
		`DROP TABLE IF EXISTS meta`,
		`DROP TABLE IF EXISTS products`,
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE products (
			id       TEXT PRIMARY KEY,
			raw      TEXT NOT NULL,
			identity TEXT NOT NULL,
			vector   BLOB
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("prepare snapshot schema: %w", err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	insert, err := tx.Prepare(`INSERT INTO products (id, raw, identity, vector) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	for _, id := range snap.ids {
		raw, err := json.Marshal(snap.products[id])
		if err != nil {
			return fmt.Errorf("marshal product %s: %w", id, err)
		}
		identity, err := json.Marshal(snap.identities[id])
		if err != nil {
			return fmt.Errorf("marshal identity %s: %w", id, err)
		}
		var vec []byte
		if v, ok := snap.vectors[id]; ok {
			vec = encodeVector(v)
		}
		if _, err := insert.Exec(id, string(raw), string(identity), vec); err != nil {
			return fmt.Errorf("insert product %s: %w", id, err)
		}
	}

	meta := map[string]string{
		"fingerprint": snap.fingerprint,
		"built_at":    snap.builtAt.UTC().Format(time.RFC3339Nano),
		"dim":         strconv.Itoa(snap.dim),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("write meta %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores a snapshot written by SaveSnapshot. The caller is
// expected to compare Fingerprint against the live catalog before trusting
// the restored index.
func LoadSnapshot(path string) (*Snapshot, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot file %s: %w", path, err)
	}
	defer db.Close()

	meta := make(map[string]string)
	rows, err := db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("read snapshot meta: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot meta: %w", err)
	}

	dim, _ := strconv.Atoi(meta["dim"])
	builtAt, err := time.Parse(time.RFC3339Nano, meta["built_at"])
	if err != nil {
		return nil, fmt.Errorf("snapshot missing build timestamp: %w", err)
	}

	products := make(map[string]types.RawProduct)
	identities := make(map[string]types.ProductIdentity)
	var vectors map[string][]float32

	rows, err = db.Query(`SELECT id, raw, identity, vector FROM products`)
	if err != nil {
		return nil, fmt.Errorf("read snapshot products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, raw, identity string
		var vec []byte
		if err := rows.Scan(&id, &raw, &identity, &vec); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		var p types.RawProduct
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", id, err)
		}
		var ident types.ProductIdentity
		if err := json.Unmarshal([]byte(identity), &ident); err != nil {
			return nil, fmt.Errorf("decode identity %s: %w", id, err)
		}
		products[id] = p
		identities[id] = ident
		if len(vec) > 0 {
			if vectors == nil {
				vectors = make(map[string][]float32)
			}
			vectors[id] = decodeVector(vec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot products: %w", err)
	}

	snap := assemble(products, identities, vectors, dim, builtAt)
	if want := meta["fingerprint"]; want != "" && want != snap.fingerprint {
		return nil, fmt.Errorf("snapshot fingerprint mismatch: file says %s, content hashes to %s", want, snap.fingerprint)
	}
	return snap, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
