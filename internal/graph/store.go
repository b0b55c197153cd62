// Package graph stores files, nodes and connections and resolves node names
// to identities.
//
// The store keeps no session state: operations that act on "the open file"
// take it as an argument, nil meaning no file is open.
package graph

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/tordrt/socialgraph/internal/apperr"
	"github.com/tordrt/socialgraph/internal/db"
)

// RequiredTables lists the tables and columns the store queries, keyed by
// unprefixed table name
var RequiredTables = map[string][]string{
	"files":       {"name", "id"},
	"nodes":       {"name", "id", "parent_file_id"},
	"connections": {"first_id", "second_id", "connection_id", "parent_file_id"},
}

// IDSource draws a new identity
type IDSource func() int64

// RandomID draws a uniformly random signed 64-bit id. With 2^64 values a
// collision is negligible; the store still re-draws ids that are taken.
func RandomID() int64 {
	return int64(rand.Uint64())
}

const maxIDAttempts = 8

// Tables holds the quoted, prefixed table names
type Tables struct {
	Files       string
	Nodes       string
	Connections string
}

// Store is the graph store
type Store struct {
	client  *db.Client
	dialect db.Dialect
	prefix  string
	tables  Tables
	ids     IDSource
	logger  *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithPrefix sets the table name prefix
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithIDSource replaces the random id generator
func WithIDSource(ids IDSource) Option {
	return func(s *Store) { s.ids = ids }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a store over client's tables
func New(client *db.Client, opts ...Option) *Store {
	s := &Store{
		client:  client,
		dialect: client.Dialect(),
		ids:     RandomID,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tables = Tables{
		Files:       s.dialect.Quote(s.prefix + "files"),
		Nodes:       s.dialect.Quote(s.prefix + "nodes"),
		Connections: s.dialect.Quote(s.prefix + "connections"),
	}
	return s
}

// Prefix returns the table name prefix
func (s *Store) Prefix() string {
	return s.prefix
}

// Connected reports whether the database still answers
func (s *Store) Connected(ctx context.Context) bool {
	return s.client.Ping(ctx) == nil
}

// OpenFileByName finds the file called name. When none exists it is created
// if createIfMissing is set, otherwise a NotFound error is returned. Several
// files with the same name yield a NameConflict.
func (s *Store) OpenFileByName(ctx context.Context, name string, createIfMissing bool) (*File, error) {
	files, err := s.queryFiles(ctx, "WHERE name = ?", name)
	if err != nil {
		return nil, err
	}

	switch len(files) {
	case 0:
		if createIfMissing {
			return s.CreateFile(ctx, name)
		}
		return nil, apperr.Newf(apperr.CodeNotFound, "no file named %q", name).
			WithContext(apperr.CtxName, name)
	case 1:
		return &files[0], nil
	default:
		return nil, apperr.Newf(apperr.CodeNameConflict, "%d files are named %q, open one by id", len(files), name).
			WithContext(apperr.CtxName, name).
			WithContext(apperr.CtxMatches, len(files))
	}
}

// OpenFileByID finds the file with the given id. Anything but exactly one
// match is NotFound.
func (s *Store) OpenFileByID(ctx context.Context, id int64) (*File, error) {
	files, err := s.queryFiles(ctx, "WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(files) != 1 {
		return nil, apperr.Newf(apperr.CodeNotFound, "no file with id %d", id).
			WithContext(apperr.CtxID, id)
	}
	return &files[0], nil
}

// CreateFile creates a file. File names are not unique.
func (s *Store) CreateFile(ctx context.Context, name string) (*File, error) {
	id, err := s.newID(ctx, s.tables.Files, "id")
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("INSERT INTO %s (name, id) VALUES (?, ?)", s.tables.Files)
	if _, err := s.client.GetDB().ExecContext(ctx, s.dialect.Rebind(query), name, id); err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	s.logger.Debug("created file", zap.String("name", name), zap.Int64("id", id))
	return &File{Name: name, ID: id}, nil
}

// ListFiles returns every file ordered by name
func (s *Store) ListFiles(ctx context.Context) ([]File, error) {
	return s.queryFiles(ctx, "")
}

// AddNode creates a node in file. Duplicate names are allowed.
func (s *Store) AddNode(ctx context.Context, file *File, name string) (*Node, error) {
	if file == nil {
		return nil, apperr.New(apperr.CodeNoOpenFile, "open a file before adding nodes")
	}

	id, err := s.newID(ctx, s.tables.Nodes, "id")
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("INSERT INTO %s (name, id, parent_file_id) VALUES (?, ?, ?)", s.tables.Nodes)
	if _, err := s.client.GetDB().ExecContext(ctx, s.dialect.Rebind(query), name, id, file.ID); err != nil {
		return nil, fmt.Errorf("failed to add node: %w", err)
	}

	s.logger.Debug("added node", zap.String("name", name), zap.Int64("id", id), zap.Int64("file", file.ID))
	return &Node{Name: name, ID: id, FileID: file.ID}, nil
}

// ListNodes returns the nodes of file, or of every file when file is nil
func (s *Store) ListNodes(ctx context.Context, file *File) ([]Node, error) {
	if file == nil {
		return s.queryNodes(ctx, "")
	}
	return s.queryNodes(ctx, "WHERE parent_file_id = ?", file.ID)
}

// NodesNamed returns every node called name, scoped to file when it is set
func (s *Store) NodesNamed(ctx context.Context, file *File, name string) ([]Node, error) {
	if file == nil {
		return s.queryNodes(ctx, "WHERE name = ?", name)
	}
	return s.queryNodes(ctx, "WHERE name = ? AND parent_file_id = ?", name, file.ID)
}

// LookupNode resolves ref to a single node. A unique name wins whatever the
// discriminator says. Several nodes sharing the name need a discriminator;
// when two of them also share the discriminator the NameConflict carries it
// under apperr.CtxDiscriminator.
func (s *Store) LookupNode(ctx context.Context, file *File, ref NodeRef) (*Node, error) {
	nodes, err := s.NodesNamed(ctx, file, ref.Name)
	if err != nil {
		return nil, err
	}

	switch {
	case len(nodes) == 0:
		return nil, apperr.Newf(apperr.CodeNotFound, "no node named %q", ref.Name).
			WithContext(apperr.CtxName, ref.Name)
	case len(nodes) == 1:
		return &nodes[0], nil
	case !ref.HasDiscriminator:
		return nil, apperr.Newf(apperr.CodeNameConflict, "%d nodes are named %q, add a discriminator (name:discriminator)", len(nodes), ref.Name).
			WithContext(apperr.CtxName, ref.Name).
			WithContext(apperr.CtxMatches, len(nodes))
	}

	var matches []Node
	for _, n := range nodes {
		if n.Discriminator() == ref.Discriminator {
			matches = append(matches, n)
		}
	}

	switch len(matches) {
	case 0:
		return nil, apperr.Newf(apperr.CodeNotFound, "no node named %q has discriminator %d", ref.Name, ref.Discriminator).
			WithContext(apperr.CtxName, ref.Name).
			WithContext(apperr.CtxDiscriminator, ref.Discriminator)
	case 1:
		return &matches[0], nil
	default:
		return nil, apperr.Newf(apperr.CodeNameConflict, "%d nodes named %q share discriminator %d, connect them by id", len(matches), ref.Name, ref.Discriminator).
			WithContext(apperr.CtxName, ref.Name).
			WithContext(apperr.CtxDiscriminator, ref.Discriminator).
			WithContext(apperr.CtxMatches, len(matches))
	}
}

// Connect links the nodes a and b of file. Unresolvable endpoints yield
// NodesNotFound wrapping the lookup error; an existing edge in either
// orientation yields DuplicateConnection and a loop yields SelfConnection.
// Nothing is written in those cases.
func (s *Store) Connect(ctx context.Context, file *File, a, b NodeRef) (*Connection, error) {
	if file == nil {
		return nil, apperr.New(apperr.CodeNoOpenFile, "open a file before connecting nodes")
	}

	first, err := s.LookupNode(ctx, file, a)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeNodesNotFound, "could not resolve "+a.String())
	}
	second, err := s.LookupNode(ctx, file, b)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeNodesNotFound, "could not resolve "+b.String())
	}

	return s.insertConnection(ctx, file, first.ID, second.ID)
}

// ConnectByID links two nodes of file by id, with the same duplicate rule as
// Connect. Both ids must belong to nodes of file.
func (s *Store) ConnectByID(ctx context.Context, file *File, a, b int64) (*Connection, error) {
	if file == nil {
		return nil, apperr.New(apperr.CodeNoOpenFile, "open a file before connecting nodes")
	}

	var missing []string
	for _, id := range []int64{a, b} {
		nodes, err := s.queryNodes(ctx, "WHERE id = ? AND parent_file_id = ?", id, file.ID)
		if err != nil {
			return nil, err
		}
		if len(nodes) == 0 {
			missing = append(missing, fmt.Sprint(id))
		}
	}
	if len(missing) > 0 {
		return nil, apperr.Newf(apperr.CodeNodesNotFound, "no node with id %s in file %s", strings.Join(missing, ", "), file.Name).
			WithContext(apperr.CtxID, missing)
	}

	return s.insertConnection(ctx, file, a, b)
}

func (s *Store) insertConnection(ctx context.Context, file *File, a, b int64) (*Connection, error) {
	if a == b {
		return nil, apperr.New(apperr.CodeSelfConnection, "a node cannot be connected to itself").
			WithContext(apperr.CtxID, a)
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s
		WHERE parent_file_id = ?
		AND ((first_id = ? AND second_id = ?) OR (first_id = ? AND second_id = ?))`, s.tables.Connections)

	var count int
	if err := s.client.GetDB().QueryRowContext(ctx, s.dialect.Rebind(query), file.ID, a, b, b, a).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to check for duplicate connection: %w", err)
	}
	if count > 0 {
		return nil, apperr.New(apperr.CodeDuplicateConnection, "those nodes are already connected")
	}

	id, err := s.newID(ctx, s.tables.Connections, "connection_id")
	if err != nil {
		return nil, err
	}

	insert := fmt.Sprintf("INSERT INTO %s (first_id, second_id, connection_id, parent_file_id) VALUES (?, ?, ?, ?)", s.tables.Connections)
	if _, err := s.client.GetDB().ExecContext(ctx, s.dialect.Rebind(insert), a, b, id, file.ID); err != nil {
		return nil, fmt.Errorf("failed to add connection: %w", err)
	}

	s.logger.Debug("added connection", zap.Int64("first", a), zap.Int64("second", b), zap.Int64("id", id))
	return &Connection{FirstID: a, SecondID: b, ID: id, FileID: file.ID}, nil
}

// ListConnections returns the connections of file, or of every file when
// file is nil
func (s *Store) ListConnections(ctx context.Context, file *File) ([]Connection, error) {
	query := fmt.Sprintf("SELECT first_id, second_id, connection_id, parent_file_id FROM %s", s.tables.Connections)
	var args []any
	if file != nil {
		query += " WHERE parent_file_id = ?"
		args = append(args, file.ID)
	}
	query += " ORDER BY connection_id"

	rows, err := s.client.GetDB().QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var conns []Connection
	for rows.Next() {
		var c Connection
		if err := rows.Scan(&c.FirstID, &c.SecondID, &c.ID, &c.FileID); err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}

	return conns, rows.Err()
}

func (s *Store) queryFiles(ctx context.Context, where string, args ...any) ([]File, error) {
	query := fmt.Sprintf("SELECT name, id FROM %s %s ORDER BY name, id", s.tables.Files, where)

	rows, err := s.client.GetDB().QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.Name, &f.ID); err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	return files, rows.Err()
}

func (s *Store) queryNodes(ctx context.Context, where string, args ...any) ([]Node, error) {
	query := fmt.Sprintf("SELECT name, id, parent_file_id FROM %s %s ORDER BY name, id", s.tables.Nodes, where)

	rows, err := s.client.GetDB().QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.Name, &n.ID, &n.FileID); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}

	return nodes, rows.Err()
}

// newID draws ids until one is unused in table.column
func (s *Store) newID(ctx context.Context, table, column string) (int64, error) {
	query := s.dialect.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", table, s.dialect.Quote(column)))

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := s.ids()
		var count int
		if err := s.client.GetDB().QueryRowContext(ctx, query, id).Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to check id: %w", err)
		}
		if count == 0 {
			return id, nil
		}
		s.logger.Warn("id already taken, drawing another", zap.String("table", table), zap.Int64("id", id))
	}
	return 0, apperr.Newf(apperr.CodeInternal, "could not find a free id in %s after %d attempts", table, maxIDAttempts)
}
