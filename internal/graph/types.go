package graph

import (
	"strconv"
	"strings"
)

// DiscriminatorModulus bounds the discriminator range to [0, 99999]
const DiscriminatorModulus = 100000

// File is the container every node and connection belongs to
type File struct {
	Name string
	ID   int64
}

// Node is a named vertex of a file's graph
type Node struct {
	Name   string
	ID     int64
	FileID int64
}

// Discriminator returns the node's discriminator
func (n Node) Discriminator() int64 {
	return Discriminator(n.ID)
}

// Label renders the node as name:discriminator
func (n Node) Label() string {
	return n.Name + ":" + strconv.FormatInt(n.Discriminator(), 10)
}

// Connection is an undirected edge between two nodes
type Connection struct {
	FirstID  int64
	SecondID int64
	ID       int64
	FileID   int64
}

// Joins reports whether the connection links a and b, in either order
func (c Connection) Joins(a, b int64) bool {
	return (c.FirstID == a && c.SecondID == b) || (c.FirstID == b && c.SecondID == a)
}

// Discriminator derives the disambiguator shown next to same-named nodes:
// abs(id) mod 100000. Computed on the remainder so MinInt64 cannot overflow.
func Discriminator(id int64) int64 {
	d := id % DiscriminatorModulus
	if d < 0 {
		d = -d
	}
	return d
}

// NodeRef names a node, optionally narrowed by a discriminator
type NodeRef struct {
	Name             string
	Discriminator    int64
	HasDiscriminator bool
}

// Ref creates a reference by name only
func Ref(name string) NodeRef {
	return NodeRef{Name: name}
}

// RefWithDiscriminator creates a reference by name and discriminator
func RefWithDiscriminator(name string, disc int64) NodeRef {
	return NodeRef{Name: name, Discriminator: disc, HasDiscriminator: true}
}

// ParseNodeRef reads "name" or "name:discriminator". A suffix that is not a
// valid discriminator stays part of the name.
func ParseNodeRef(s string) NodeRef {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return Ref(s)
	}
	d, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil || d < 0 || d >= DiscriminatorModulus {
		return Ref(s)
	}
	return RefWithDiscriminator(s[:i], d)
}

func (r NodeRef) String() string {
	if !r.HasDiscriminator {
		return r.Name
	}
	return r.Name + ":" + strconv.FormatInt(r.Discriminator, 10)
}
