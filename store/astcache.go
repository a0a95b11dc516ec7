package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/jiangshenghai57/glassbox/formula"
)

// ASTCache memoizes parsed formula ASTs on disk, keyed by a hash of the
// formula text, so that repeated runs of the same (or a lightly
// overridden) model skip re-parsing every calculation's formula.
type ASTCache struct {
	db *badger.DB
}

// NewASTCache opens (or creates) a Badger-backed AST cache at path.
func NewASTCache(path string) (*ASTCache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open ast cache: %w", err)
	}
	return &ASTCache{db: db}, nil
}

func formulaKey(src string) []byte {
	sum := sha256.Sum256([]byte(src))
	return []byte(hex.EncodeToString(sum[:]))
}

// Get returns the cached AST for src, re-parsing and caching it on a miss.
func (c *ASTCache) Get(src string) (*formula.Expr, error) {
	key := formulaKey(src)

	var cached *formula.Expr
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			cached = &formula.Expr{}
			return json.Unmarshal(val, cached)
		})
	})
	if err == nil {
		return cached, nil
	}
	if err != badger.ErrKeyNotFound {
		return nil, fmt.Errorf("read ast cache: %w", err)
	}

	expr, err := formula.Parse(src)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(expr)
	if err != nil {
		return nil, fmt.Errorf("encode ast for cache: %w", err)
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, encoded)
	}); err != nil {
		return nil, fmt.Errorf("write ast cache: %w", err)
	}

	return expr, nil
}

// Close releases the underlying Badger database.
func (c *ASTCache) Close() error {
	return c.db.Close()
}
