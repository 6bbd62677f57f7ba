// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package expr defines concrete shape expressions.
//
// A concrete expression is a tree in which every axis has a known,
// strictly positive value. It is the output of package solve and the
// input of every structural operation: rewriting, marking, extraction.
// Expressions are immutable once constructed, except for the parent
// back-reference which is assigned when a node is attached to its owner.
package expr

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Expr is a node of a concrete shape expression.
type Expr interface {
	fmt.Stringer

	// Value returns the total element count along the axes the
	// expression spans.
	Value() int

	// Length returns the number of axis positions the expression spans.
	Length() int

	// Leaves iterates over the length-1 units the expression spans, in
	// positional order. Markers are transparent: they yield the units of
	// their inner expression. Compositions and concatenations span a
	// single position and yield themselves.
	Leaves() func(yield func(Expr) bool)

	// All iterates over the node and all its descendants in pre-order.
	All() func(yield func(Expr) bool)

	// Shape returns the value of every unit yielded by Leaves.
	Shape() []int

	// Equal returns true if two expressions are structurally equal.
	// Equality never consults node identity or parents.
	Equal(Expr) bool

	// Hash returns a hash consistent with Equal.
	Hash() uint64

	// Copy returns a deep copy of the expression with fresh node
	// identity. The copy is a root: its parent is nil.
	Copy() Expr

	// Parent returns the node owning this node, or nil for a root.
	Parent() Expr

	setParent(Expr)
}

// Axis is a leaf expression: one dimension with a concrete value and an
// optional name. An axis with an empty name is unnamed.
type Axis struct {
	parent Expr
	name   string
	value  int
}

var _ Expr = (*Axis)(nil)

// NewAxis returns a new axis. An empty name makes the axis unnamed.
// The value is expected to be strictly positive.
func NewAxis(name string, value int) *Axis {
	return &Axis{name: name, value: value}
}

// Name of the axis; empty for an unnamed axis.
func (a *Axis) Name() string { return a.name }

// Named returns true if the axis has a name.
func (a *Axis) Named() bool { return a.name != "" }

// Value of the axis.
func (a *Axis) Value() int { return a.value }

// Length returns the number of axis positions the expression spans.
func (a *Axis) Length() int { return 1 }

// Leaves iterates over the length-1 units of the expression.
func (a *Axis) Leaves() func(yield func(Expr) bool) { return yieldSelf(a) }

// All iterates over the node and all its descendants in pre-order.
func (a *Axis) All() func(yield func(Expr) bool) { return yieldSelf(a) }

// Shape returns the value of every unit yielded by Leaves.
func (a *Axis) Shape() []int { return shapeOf(a) }

// Equal returns true if other is an axis with the same name and value.
// A named and an unnamed axis are never equal.
func (a *Axis) Equal(other Expr) bool {
	otherT, ok := other.(*Axis)
	if !ok {
		return false
	}
	return a.name == otherT.name && a.value == otherT.value
}

// Hash returns a hash consistent with Equal.
func (a *Axis) Hash() uint64 {
	h := hashCombine(hashAxis, uint64(a.value))
	if a.Named() {
		h = hashCombine(h, hashString(a.name))
	}
	return h
}

// Copy returns a deep copy of the axis.
func (a *Axis) Copy() Expr { return NewAxis(a.name, a.value) }

// Parent returns the node owning this node.
func (a *Axis) Parent() Expr { return a.parent }

func (a *Axis) setParent(p Expr) { a.parent = p }

// String representation of the axis: its name, or its value if unnamed.
func (a *Axis) String() string {
	if a.Named() {
		return a.name
	}
	return strconv.Itoa(a.value)
}

// List is an ordered sequence of sibling sub-expressions occupying
// successive axis positions. Its value is the product of its children's
// values. A list never directly contains another list.
type List struct {
	parent   Expr
	children []Expr
}

var _ Expr = (*List)(nil)

// NewList returns a new list given its children.
func NewList(children []Expr) (*List, error) {
	for _, c := range children {
		if _, ok := c.(*List); ok {
			return nil, errors.Errorf("list cannot have another list as a direct child")
		}
	}
	l := &List{children: children}
	for _, c := range children {
		c.setParent(l)
	}
	return l, nil
}

// ListOf returns its only element if given a single expression, and a new
// list of the expressions otherwise.
func ListOf(children []Expr) (Expr, error) {
	if len(children) == 1 {
		return children[0], nil
	}
	return NewList(children)
}

// Children returns the sub-expressions of the list.
func (l *List) Children() []Expr { return l.children }

// Value returns the product of the children's values.
func (l *List) Value() int {
	v := 1
	for _, c := range l.children {
		v *= c.Value()
	}
	return v
}

// Length returns the number of axis positions the expression spans.
func (l *List) Length() int {
	n := 0
	for _, c := range l.children {
		n += c.Length()
	}
	return n
}

// Leaves iterates over the length-1 units of the expression.
func (l *List) Leaves() func(yield func(Expr) bool) {
	return func(yield func(Expr) bool) {
		for _, c := range l.children {
			for u := range c.Leaves() {
				if !yield(u) {
					return
				}
			}
		}
	}
}

// All iterates over the node and all its descendants in pre-order.
func (l *List) All() func(yield func(Expr) bool) {
	return yieldChildren(l, l.children)
}

// Shape returns the value of every unit yielded by Leaves.
func (l *List) Shape() []int { return shapeOf(l) }

// Equal returns true if other is a list with equal children.
func (l *List) Equal(other Expr) bool {
	otherT, ok := other.(*List)
	if !ok {
		return false
	}
	return childrenEqual(l.children, otherT.children)
}

// Hash returns a hash consistent with Equal.
func (l *List) Hash() uint64 { return hashChildren(hashList, l.children) }

// Copy returns a deep copy of the list.
func (l *List) Copy() Expr {
	cp, err := NewList(copyAll(l.children))
	if err != nil {
		// The source held the invariant, so the copy does too.
		panic(err)
	}
	return cp
}

// Parent returns the node owning this node.
func (l *List) Parent() Expr { return l.parent }

func (l *List) setParent(p Expr) { l.parent = p }

// String representation of the list.
func (l *List) String() string { return joinChildren(l.children, " ") }

// Concatenation is a single axis position formed by joining tensors along
// that axis: its value is the sum of its children's values. Every child
// must span exactly one position.
type Concatenation struct {
	parent   Expr
	children []Expr
}

var _ Expr = (*Concatenation)(nil)

// NewConcatenation returns a new concatenation given its children.
func NewConcatenation(children []Expr) (*Concatenation, error) {
	if len(children) == 0 {
		return nil, errors.Errorf("concatenation must have at least one child")
	}
	for _, c := range children {
		if c.Length() != 1 {
			return nil, errors.Errorf("concatenation can only be used on expressions of length 1, but got '%s'", c)
		}
	}
	cc := &Concatenation{children: children}
	for _, c := range children {
		c.setParent(cc)
	}
	return cc, nil
}

// ConcatenationOf returns its only element if given a single expression,
// and a new concatenation of the expressions otherwise.
func ConcatenationOf(children []Expr) (Expr, error) {
	if len(children) == 1 {
		return children[0], nil
	}
	return NewConcatenation(children)
}

// Children returns the sub-expressions of the concatenation.
func (cc *Concatenation) Children() []Expr { return cc.children }

// Value returns the sum of the children's values.
func (cc *Concatenation) Value() int {
	v := 0
	for _, c := range cc.children {
		v += c.Value()
	}
	return v
}

// Length returns the number of axis positions the expression spans.
func (cc *Concatenation) Length() int { return 1 }

// Leaves iterates over the length-1 units of the expression.
func (cc *Concatenation) Leaves() func(yield func(Expr) bool) { return yieldSelf(cc) }

// All iterates over the node and all its descendants in pre-order.
func (cc *Concatenation) All() func(yield func(Expr) bool) {
	return yieldChildren(cc, cc.children)
}

// Shape returns the value of every unit yielded by Leaves.
func (cc *Concatenation) Shape() []int { return shapeOf(cc) }

// Equal returns true if other is a concatenation with equal children.
func (cc *Concatenation) Equal(other Expr) bool {
	otherT, ok := other.(*Concatenation)
	if !ok {
		return false
	}
	return childrenEqual(cc.children, otherT.children)
}

// Hash returns a hash consistent with Equal.
func (cc *Concatenation) Hash() uint64 { return hashChildren(hashConcatenation, cc.children) }

// Copy returns a deep copy of the concatenation.
func (cc *Concatenation) Copy() Expr {
	cp, err := NewConcatenation(copyAll(cc.children))
	if err != nil {
		panic(err)
	}
	return cp
}

// Parent returns the node owning this node.
func (cc *Concatenation) Parent() Expr { return cc.parent }

func (cc *Concatenation) setParent(p Expr) { cc.parent = p }

// String representation of the concatenation.
func (cc *Concatenation) String() string { return joinChildren(cc.children, "+") }

// Composition groups an inner multi-axis expression into a single axis
// position of value equal to the inner expression's value, the "(a b)"
// construct.
type Composition struct {
	parent Expr
	inner  Expr
}

var _ Expr = (*Composition)(nil)

// NewComposition returns a new composition wrapping an inner expression.
func NewComposition(inner Expr) *Composition {
	c := &Composition{inner: inner}
	inner.setParent(c)
	return c
}

// Inner returns the grouped expression.
func (c *Composition) Inner() Expr { return c.inner }

// Value returns the value of the inner expression.
func (c *Composition) Value() int { return c.inner.Value() }

// Length returns the number of axis positions the expression spans.
func (c *Composition) Length() int { return 1 }

// Leaves iterates over the length-1 units of the expression.
func (c *Composition) Leaves() func(yield func(Expr) bool) { return yieldSelf(c) }

// All iterates over the node and all its descendants in pre-order.
func (c *Composition) All() func(yield func(Expr) bool) {
	return yieldInner(c, c.inner)
}

// Shape returns the value of every unit yielded by Leaves.
func (c *Composition) Shape() []int { return shapeOf(c) }

// Equal returns true if other is a composition with an equal inner
// expression.
func (c *Composition) Equal(other Expr) bool {
	otherT, ok := other.(*Composition)
	if !ok {
		return false
	}
	return c.inner.Equal(otherT.inner)
}

// Hash returns a hash consistent with Equal.
func (c *Composition) Hash() uint64 {
	return hashCombine(hashComposition, c.inner.Hash())
}

// Copy returns a deep copy of the composition.
func (c *Composition) Copy() Expr { return NewComposition(c.inner.Copy()) }

// Parent returns the node owning this node.
func (c *Composition) Parent() Expr { return c.parent }

func (c *Composition) setParent(p Expr) { c.parent = p }

// String representation of the composition.
func (c *Composition) String() string { return "(" + c.inner.String() + ")" }

// Marker flags its inner expression as selected without altering shape
// semantics: it spans the same positions and has the same value as its
// inner expression.
type Marker struct {
	parent Expr
	inner  Expr
}

var _ Expr = (*Marker)(nil)

// NewMarker returns a new marker wrapping an inner expression.
func NewMarker(inner Expr) (*Marker, error) {
	if inner.Length() == 0 {
		return nil, errors.Errorf("marker cannot wrap an empty expression")
	}
	m := &Marker{inner: inner}
	inner.setParent(m)
	return m, nil
}

// Inner returns the marked expression.
func (m *Marker) Inner() Expr { return m.inner }

// Value returns the value of the inner expression.
func (m *Marker) Value() int { return m.inner.Value() }

// Length returns the number of axis positions the expression spans.
func (m *Marker) Length() int { return m.inner.Length() }

// Leaves iterates over the length-1 units of the inner expression: the
// marker itself is transparent.
func (m *Marker) Leaves() func(yield func(Expr) bool) { return m.inner.Leaves() }

// All iterates over the node and all its descendants in pre-order.
func (m *Marker) All() func(yield func(Expr) bool) {
	return yieldInner(m, m.inner)
}

// Shape returns the value of every unit yielded by Leaves.
func (m *Marker) Shape() []int { return shapeOf(m) }

// Equal returns true if other is a marker with an equal inner expression.
func (m *Marker) Equal(other Expr) bool {
	otherT, ok := other.(*Marker)
	if !ok {
		return false
	}
	return m.inner.Equal(otherT.inner)
}

// Hash returns a hash consistent with Equal.
func (m *Marker) Hash() uint64 {
	return hashCombine(hashMarker, m.inner.Hash())
}

// Copy returns a deep copy of the marker.
func (m *Marker) Copy() Expr {
	cp, err := NewMarker(m.inner.Copy())
	if err != nil {
		panic(err)
	}
	return cp
}

// Parent returns the node owning this node.
func (m *Marker) Parent() Expr { return m.parent }

func (m *Marker) setParent(p Expr) { m.parent = p }

// String representation of the marker.
func (m *Marker) String() string { return "[" + m.inner.String() + "]" }

// Kind salts keep the hashes of structurally different kinds apart.
const (
	hashAxis          uint64 = 9817234
	hashList          uint64 = 6563
	hashConcatenation uint64 = 123
	hashComposition   uint64 = 8716123
	hashMarker        uint64 = 6433236
)

const hashPrime uint64 = 1099511628211

func hashCombine(h, v uint64) uint64 {
	return (h ^ v) * hashPrime
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func hashChildren(salt uint64, children []Expr) uint64 {
	h := salt
	for _, c := range children {
		h = hashCombine(h, c.Hash())
	}
	return h
}

func childrenEqual(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i, c := range a {
		if !c.Equal(b[i]) {
			return false
		}
	}
	return true
}

func copyAll(children []Expr) []Expr {
	cp := make([]Expr, len(children))
	for i, c := range children {
		cp[i] = c.Copy()
	}
	return cp
}

func joinChildren(children []Expr, sep string) string {
	ss := make([]string, len(children))
	for i, c := range children {
		ss[i] = c.String()
	}
	return strings.Join(ss, sep)
}

func shapeOf(e Expr) []int {
	var shape []int
	for u := range e.Leaves() {
		shape = append(shape, u.Value())
	}
	return shape
}

func yieldSelf(e Expr) func(yield func(Expr) bool) {
	return func(yield func(Expr) bool) {
		yield(e)
	}
}

func yieldInner(e, inner Expr) func(yield func(Expr) bool) {
	return func(yield func(Expr) bool) {
		if !yield(e) {
			return
		}
		for n := range inner.All() {
			if !yield(n) {
				return
			}
		}
	}
}

func yieldChildren(e Expr, children []Expr) func(yield func(Expr) bool) {
	return func(yield func(Expr) bool) {
		if !yield(e) {
			return
		}
		for _, c := range children {
			for n := range c.All() {
				if !yield(n) {
					return
				}
			}
		}
	}
}
