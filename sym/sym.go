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

// Package sym defines symbolic shape expressions.
//
// A symbolic expression mirrors the structure of a concrete expression
// (package expr) but its axes may not have a value yet: a NamedAxis stands
// for an unknown to be solved for, while an UnnamedAxis already carries its
// literal value. Symbolic expressions are produced by a notation parser and
// consumed by package solve.
package sym

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Expr is a node of a symbolic shape expression.
type Expr interface {
	fmt.Stringer

	// Length returns the number of axis positions the expression spans.
	Length() int

	// Leaves iterates over the length-1 units the expression spans, in
	// positional order. Markers are transparent: they yield the units of
	// their inner expression. Compositions and concatenations span a
	// single position and yield themselves.
	Leaves() func(yield func(Expr) bool)

	// All iterates over the node and all its descendants in pre-order.
	All() func(yield func(Expr) bool)

	// Parent returns the node owning this node, or nil for a root.
	Parent() Expr

	setParent(Expr)
}

// NamedAxis is an axis whose value is identified by name: every occurrence
// of the same name must resolve to the same value.
type NamedAxis struct {
	parent Expr
	name   string
}

var _ Expr = (*NamedAxis)(nil)

// NewNamedAxis returns a new axis with the given name.
func NewNamedAxis(name string) *NamedAxis {
	return &NamedAxis{name: name}
}

// Name of the axis.
func (a *NamedAxis) Name() string { return a.name }

// Length returns the number of axis positions the expression spans.
func (a *NamedAxis) Length() int { return 1 }

// Leaves iterates over the length-1 units of the expression.
func (a *NamedAxis) Leaves() func(yield func(Expr) bool) {
	return yieldSelf(a)
}

// All iterates over the node and all its descendants in pre-order.
func (a *NamedAxis) All() func(yield func(Expr) bool) {
	return yieldSelf(a)
}

// Parent returns the node owning this node.
func (a *NamedAxis) Parent() Expr { return a.parent }

func (a *NamedAxis) setParent(p Expr) { a.parent = p }

// String representation of the axis.
func (a *NamedAxis) String() string { return a.name }

// UnnamedAxis is an anonymous axis with an already known value.
type UnnamedAxis struct {
	parent Expr
	value  int
}

var _ Expr = (*UnnamedAxis)(nil)

// NewUnnamedAxis returns a new anonymous axis with a known value.
func NewUnnamedAxis(value int) *UnnamedAxis {
	return &UnnamedAxis{value: value}
}

// Value of the axis.
func (a *UnnamedAxis) Value() int { return a.value }

// Length returns the number of axis positions the expression spans.
func (a *UnnamedAxis) Length() int { return 1 }

// Leaves iterates over the length-1 units of the expression.
func (a *UnnamedAxis) Leaves() func(yield func(Expr) bool) {
	return yieldSelf(a)
}

// All iterates over the node and all its descendants in pre-order.
func (a *UnnamedAxis) All() func(yield func(Expr) bool) {
	return yieldSelf(a)
}

// Parent returns the node owning this node.
func (a *UnnamedAxis) Parent() Expr { return a.parent }

func (a *UnnamedAxis) setParent(p Expr) { a.parent = p }

// String representation of the axis.
func (a *UnnamedAxis) String() string { return strconv.Itoa(a.value) }

// List is an ordered sequence of sibling sub-expressions occupying
// successive axis positions. A list never directly contains another list:
// nested grouping goes through Composition.
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

// Children returns the sub-expressions of the list.
func (l *List) Children() []Expr { return l.children }

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

// Parent returns the node owning this node.
func (l *List) Parent() Expr { return l.parent }

func (l *List) setParent(p Expr) { l.parent = p }

// String representation of the list.
func (l *List) String() string {
	ss := make([]string, len(l.children))
	for i, c := range l.children {
		ss[i] = c.String()
	}
	return strings.Join(ss, " ")
}

// Concatenation is a single axis position formed by joining the values of
// its children. Every child must span exactly one position.
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

// Children returns the sub-expressions of the concatenation.
func (cc *Concatenation) Children() []Expr { return cc.children }

// Length returns the number of axis positions the expression spans.
func (cc *Concatenation) Length() int { return 1 }

// Leaves iterates over the length-1 units of the expression.
func (cc *Concatenation) Leaves() func(yield func(Expr) bool) {
	return yieldSelf(cc)
}

// All iterates over the node and all its descendants in pre-order.
func (cc *Concatenation) All() func(yield func(Expr) bool) {
	return yieldChildren(cc, cc.children)
}

// Parent returns the node owning this node.
func (cc *Concatenation) Parent() Expr { return cc.parent }

func (cc *Concatenation) setParent(p Expr) { cc.parent = p }

// String representation of the concatenation.
func (cc *Concatenation) String() string {
	ss := make([]string, len(cc.children))
	for i, c := range cc.children {
		ss[i] = c.String()
	}
	return strings.Join(ss, "+")
}

// Composition groups an inner multi-axis expression into a single axis
// position, the "(a b)" construct.
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

// Length returns the number of axis positions the expression spans.
func (c *Composition) Length() int { return 1 }

// Leaves iterates over the length-1 units of the expression.
func (c *Composition) Leaves() func(yield func(Expr) bool) {
	return yieldSelf(c)
}

// All iterates over the node and all its descendants in pre-order.
func (c *Composition) All() func(yield func(Expr) bool) {
	return func(yield func(Expr) bool) {
		if !yield(c) {
			return
		}
		for n := range c.inner.All() {
			if !yield(n) {
				return
			}
		}
	}
}

// Parent returns the node owning this node.
func (c *Composition) Parent() Expr { return c.parent }

func (c *Composition) setParent(p Expr) { c.parent = p }

// String representation of the composition.
func (c *Composition) String() string { return "(" + c.inner.String() + ")" }

// Marker flags its inner expression as selected. It is transparent: it
// spans the same positions as its inner expression.
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

// Length returns the number of axis positions the expression spans.
func (m *Marker) Length() int { return m.inner.Length() }

// Leaves iterates over the length-1 units of the expression.
func (m *Marker) Leaves() func(yield func(Expr) bool) {
	return m.inner.Leaves()
}

// All iterates over the node and all its descendants in pre-order.
func (m *Marker) All() func(yield func(Expr) bool) {
	return func(yield func(Expr) bool) {
		if !yield(m) {
			return
		}
		for n := range m.inner.All() {
			if !yield(n) {
				return
			}
		}
	}
}

// Parent returns the node owning this node.
func (m *Marker) Parent() Expr { return m.parent }

func (m *Marker) setParent(p Expr) { m.parent = p }

// String representation of the marker.
func (m *Marker) String() string { return "[" + m.inner.String() + "]" }

func yieldSelf(e Expr) func(yield func(Expr) bool) {
	return func(yield func(Expr) bool) {
		yield(e)
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
