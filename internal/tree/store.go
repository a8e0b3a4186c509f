// Package tree is a hierarchical JSON document store addressed by
// slash-delimited paths, with change subscriptions. Documents live in one
// relational table so any gorm dialect can host the tree.
package tree

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrConflict is returned when Transact exhausts its retries
	ErrConflict = errors.New("tree: concurrent modification")
	// ErrAbort lets a Transact callback leave the node untouched
	ErrAbort = errors.New("tree: transaction aborted")
)

const defaultMaxRetries = 8

// Node is one stored document
type Node struct {
	Path      string    `gorm:"column:path;primaryKey;size:760"`
	Parent    string    `gorm:"column:parent;index;size:760"`
	Value     string    `gorm:"column:value;type:text"`
	Version   int64     `gorm:"column:version;not null;default:1"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName returns the table name for Node
func (Node) TableName() string {
	return "tree_nodes"
}

// Snapshot is a read view of a node
type Snapshot struct {
	Key     string
	Path    string
	Value   json.RawMessage
	Version int64
}

// Decode unmarshals the snapshot value into dest
func (s Snapshot) Decode(dest interface{}) error {
	return json.Unmarshal(s.Value, dest)
}

func snapshotOf(n *Node) Snapshot {
	return Snapshot{Key: Key(n.Path), Path: n.Path, Value: json.RawMessage(n.Value), Version: n.Version}
}

// Store implements the tree on top of gorm
type Store struct {
	db         *gorm.DB
	notifier   *Notifier
	maxRetries int
	now        func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithNotifier shares a notifier (and its redis fan-out) with the store
func WithNotifier(n *Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithMaxRetries bounds optimistic retries in Transact
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// New creates a Store
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, maxRetries: defaultMaxRetries, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = NewNotifier(nil)
	}
	return s
}

// AutoMigrate creates the node table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Node{})
}

// Notifier returns the store's change notifier
func (s *Store) Notifier() *Notifier {
	return s.notifier
}

// NewKey returns a unique, time-ordered child key
func (s *Store) NewKey() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Now returns the store clock, used for server-side timestamps
func (s *Store) Now() time.Time {
	return s.now()
}

// Get decodes the node at path into dest. found is false when absent.
func (s *Store) Get(ctx context.Context, path string, dest interface{}) (bool, error) {
	if err := validatePath(path); err != nil {
		return false, err
	}
	var n Node
	err := s.db.WithContext(ctx).Where("path = ?", path).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("tree get %s: %w", path, err)
	}
	if dest != nil {
		if err := json.Unmarshal([]byte(n.Value), dest); err != nil {
			return true, fmt.Errorf("tree decode %s: %w", path, err)
		}
	}
	return true, nil
}

// Exists reports whether a node is stored at path
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	return s.Get(ctx, path, nil)
}

// Children returns the direct children of path ordered by key
func (s *Store) Children(ctx context.Context, path string) ([]Snapshot, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	var nodes []Node
	if err := s.db.WithContext(ctx).Where("parent = ?", path).Order("path ASC").Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("tree children %s: %w", path, err)
	}
	out := make([]Snapshot, len(nodes))
	for i := range nodes {
		out[i] = snapshotOf(&nodes[i])
	}
	return out, nil
}

// LastChildren returns the n children with the greatest keys, in key order
func (s *Store) LastChildren(ctx context.Context, path string, n int) ([]Snapshot, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	var nodes []Node
	if err := s.db.WithContext(ctx).Where("parent = ?", path).Order("path DESC").Limit(n).Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("tree last children %s: %w", path, err)
	}
	out := make([]Snapshot, len(nodes))
	for i := range nodes {
		out[len(nodes)-1-i] = snapshotOf(&nodes[i])
	}
	return out, nil
}

// Set replaces the node at path
func (s *Store) Set(ctx context.Context, path string, value interface{}) error {
	return s.Commit(ctx, SetOp(path, value))
}

// Update shallow-merges fields into the object at path, creating it if absent.
// A nil field value deletes that field.
func (s *Store) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	return s.Commit(ctx, UpdateOp(path, fields))
}

// Remove deletes the node at path and its whole subtree
func (s *Store) Remove(ctx context.Context, path string) error {
	return s.Commit(ctx, RemoveOp(path))
}

// Watch subscribes fn to changes at, below or above path
func (s *Store) Watch(path string, fn func(changed string)) func() {
	return s.notifier.Watch(path, fn)
}

// Subscribe is Watch with an initial callback, so fn can load the current
// snapshot on the same goroutine that delivers later changes
func (s *Store) Subscribe(path string, fn func(changed string)) func() {
	return s.notifier.Subscribe(path, fn)
}

// Commit applies ops atomically in order
func (s *Store) Commit(ctx context.Context, ops ...Op) error {
	for _, op := range ops {
		if err := validatePath(op.path); err != nil {
			return fmt.Errorf("%w: %q", err, op.path)
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			if err := s.apply(tx, op); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	paths := make([]string, len(ops))
	for i, op := range ops {
		paths[i] = op.path
	}
	s.notifier.Notify(paths...)
	return nil
}

func (s *Store) apply(tx *gorm.DB, op Op) error {
	switch op.kind {
	case opSet:
		data, err := json.Marshal(op.value)
		if err != nil {
			return fmt.Errorf("tree encode %s: %w", op.path, err)
		}
		return s.upsert(tx, op.path, string(data))

	case opUpdate:
		var n Node
		q := tx.Where("path = ?", op.path)
		if tx.Dialector.Name() == "mysql" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		current := map[string]json.RawMessage{}
		err := q.First(&n).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return fmt.Errorf("tree update %s: %w", op.path, err)
		default:
			if err := json.Unmarshal([]byte(n.Value), &current); err != nil {
				// Non-object values are replaced by the patch
				current = map[string]json.RawMessage{}
			}
		}
		for k, v := range op.fields {
			if v == nil {
				delete(current, k)
				continue
			}
			raw, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("tree encode %s.%s: %w", op.path, k, err)
			}
			current[k] = raw
		}
		data, err := json.Marshal(current)
		if err != nil {
			return err
		}
		return s.upsert(tx, op.path, string(data))

	case opRemove:
		lo, hi := subtreeBounds(op.path)
		if err := tx.Where("path = ? OR (path >= ? AND path < ?)", op.path, lo, hi).Delete(&Node{}).Error; err != nil {
			return fmt.Errorf("tree remove %s: %w", op.path, err)
		}
		return nil
	}
	return fmt.Errorf("tree: unknown op %d", op.kind)
}

func (s *Store) upsert(tx *gorm.DB, path, value string) error {
	node := &Node{Path: path, Parent: Parent(path), Value: value, Version: 1, UpdatedAt: s.now()}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "path"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"version":    gorm.Expr("version + 1"),
			"updated_at": node.UpdatedAt,
		}),
	}).Create(node).Error
	if err != nil {
		return fmt.Errorf("tree set %s: %w", path, err)
	}
	return nil
}

// Transact runs a compare-and-swap on the node at path. fn receives the current
// value (nil when absent) and returns the replacement; a nil replacement removes
// the node. Any error from fn aborts without writing and is returned as is.
// Concurrent writers cause fn to be re-run against the fresh value.
func (s *Store) Transact(ctx context.Context, path string, fn func(current json.RawMessage) (interface{}, error)) error {
	if err := validatePath(path); err != nil {
		return err
	}
	db := s.db.WithContext(ctx)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var n Node
		exists := true
		err := db.Where("path = ?", path).First(&n).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			exists = false
		} else if err != nil {
			return fmt.Errorf("tree transact %s: %w", path, err)
		}

		var current json.RawMessage
		if exists {
			current = json.RawMessage(n.Value)
		}
		next, err := fn(current)
		if err != nil {
			return err
		}

		ok, err := s.swap(db, path, exists, n.Version, next)
		if err != nil {
			return err
		}
		if ok {
			s.notifier.Notify(path)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s", ErrConflict, path)
}

func (s *Store) swap(db *gorm.DB, path string, exists bool, version int64, next interface{}) (bool, error) {
	if next == nil {
		if !exists {
			return true, nil
		}
		res := db.Where("path = ? AND version = ?", path, version).Delete(&Node{})
		if res.Error != nil {
			return false, fmt.Errorf("tree transact remove %s: %w", path, res.Error)
		}
		return res.RowsAffected == 1, nil
	}

	data, err := json.Marshal(next)
	if err != nil {
		return false, fmt.Errorf("tree encode %s: %w", path, err)
	}

	if !exists {
		node := &Node{Path: path, Parent: Parent(path), Value: string(data), Version: 1, UpdatedAt: s.now()}
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(node)
		if res.Error != nil {
			return false, fmt.Errorf("tree transact insert %s: %w", path, res.Error)
		}
		return res.RowsAffected == 1, nil
	}

	res := db.Model(&Node{}).
		Where("path = ? AND version = ?", path, version).
		Updates(map[string]interface{}{
			"value":      string(data),
			"version":    version + 1,
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("tree transact update %s: %w", path, res.Error)
	}
	return res.RowsAffected == 1, nil
}
