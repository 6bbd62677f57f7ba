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

// Package solve resolves symbolic shape expressions into concrete ones.
//
// Solve derives a system of equations from the structure of the
// expressions and from the tensor shapes provided by the caller, solves
// it, and rebuilds every expression with a concrete, strictly positive
// value on every axis. Axis names are shared across all expressions of
// one call: one tensor's shape can pin the axes of another.
package solve

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"github.com/gx-org/shapeexpr/base/ordered"
	"github.com/gx-org/shapeexpr/expr"
	"github.com/gx-org/shapeexpr/solver"
	"github.com/gx-org/shapeexpr/sym"
)

// Unknown marks a shape entry whose value is not provided.
const Unknown = -1

// Error reports that a set of expressions could not be resolved. It
// carries the expressions and the shapes that were given to Solve.
type Error struct {
	roots  []sym.Expr
	shapes [][]int
	reason string
}

func newError(roots []sym.Expr, shapes [][]int, format string, args ...any) *Error {
	return &Error{
		roots:  roots,
		shapes: shapes,
		reason: fmt.Sprintf(format, args...),
	}
}

// Roots returns the expressions that were being solved.
func (e *Error) Roots() []sym.Expr { return e.roots }

// Shapes returns the shapes that were given for the expressions.
func (e *Error) Shapes() [][]int { return e.shapes }

// Error returns the diagnostic, listing every expression with the shape
// it was given.
func (e *Error) Error() string {
	bld := strings.Builder{}
	fmt.Fprintf(&bld, "failed to solve values of expressions: %s\ninput:\n", e.reason)
	for i, root := range e.roots {
		var shape []int
		if i < len(e.shapes) {
			shape = e.shapes[i]
		}
		fmt.Fprintf(&bld, "    '%s' has shape %s\n", root, shapeString(shape))
	}
	return bld.String()
}

func shapeString(shape []int) string {
	if shape == nil {
		return "none"
	}
	ss := make([]string, len(shape))
	for i, v := range shape {
		if v == Unknown {
			ss[i] = "_"
		} else {
			ss[i] = fmt.Sprint(v)
		}
	}
	return "(" + strings.Join(ss, ", ") + ")"
}

// builder assigns one solver variable to every node of every root and
// derives the equations relating them.
type builder struct {
	roots  []sym.Expr
	shapes [][]int

	// nodeVars is keyed by node identity: every node instance gets its
	// own variable, shared across all equations that reference it.
	nodeVars map[sym.Expr]*solver.Variable
	// axisVars holds one variable per distinct axis name, forcing every
	// occurrence of the name to the same value.
	axisVars *ordered.Map[string, *solver.Variable]

	eqs []solver.Equation
}

func newBuilder(roots []sym.Expr, shapes [][]int) *builder {
	b := &builder{
		roots:    roots,
		shapes:   shapes,
		nodeVars: make(map[sym.Expr]*solver.Variable),
		axisVars: ordered.NewMap[string, *solver.Variable](),
	}
	i := 0
	for _, root := range roots {
		for n := range root.All() {
			b.nodeVars[n] = solver.NewVariable(fmt.Sprintf("n%d", i), n.String())
			i++
		}
	}
	return b
}

func (b *builder) equate(left, right solver.Term) {
	b.eqs = append(b.eqs, solver.Equation{Left: left, Right: right})
}

func (b *builder) childTerms(children []sym.Expr) []solver.Term {
	terms := make([]solver.Term, len(children))
	for i, c := range children {
		terms[i] = b.nodeVars[c]
	}
	return terms
}

// build adds all the equation sources: structural relations between a
// node and its children, shape values provided by the caller, literal
// values of unnamed axes, and the identity of named axes across all
// their occurrences.
func (b *builder) build() error {
	for _, root := range b.roots {
		for n := range root.All() {
			switch nT := n.(type) {
			case *sym.List:
				b.equate(solver.NewProduct(b.childTerms(nT.Children())...), b.nodeVars[n])
			case *sym.Concatenation:
				b.equate(solver.NewSum(b.childTerms(nT.Children())...), b.nodeVars[n])
			case *sym.Composition:
				b.equate(b.nodeVars[n], b.nodeVars[nT.Inner()])
			case *sym.Marker:
				b.equate(b.nodeVars[n], b.nodeVars[nT.Inner()])
			case *sym.UnnamedAxis:
				b.equate(b.nodeVars[n], solver.Constant(nT.Value()))
			case *sym.NamedAxis:
				axisVar, ok := b.axisVars.Load(nT.Name())
				if !ok {
					axisVar = solver.NewVariable("axis:"+nT.Name(), nT.Name())
					b.axisVars.Store(nT.Name(), axisVar)
				}
				b.equate(b.nodeVars[n], axisVar)
			}
		}
	}
	for i, root := range b.roots {
		shape := b.shapes[i]
		if shape == nil {
			continue
		}
		if len(shape) != root.Length() {
			return newError(b.roots, b.shapes, "expression '%s' has %d axes but got a shape of length %d", root, root.Length(), len(shape))
		}
		j := 0
		for leaf := range root.Leaves() {
			if shape[j] != Unknown {
				b.equate(b.nodeVars[leaf], solver.Constant(shape[j]))
			}
			j++
		}
	}
	return nil
}

// Solve resolves symbolic expressions into concrete ones given one
// optional shape per expression. A shape is an ordered sequence of
// integers, one per axis position of its expression; a nil shape means
// the tensor shape is unknown, and an Unknown entry leaves a single
// position unprovided. Solve fails with an *Error if the equations are
// unsatisfiable, if any named axis has no unique value, or if an axis
// resolves to a non-positive value.
func Solve(roots []sym.Expr, shapes [][]int) ([]expr.Expr, error) {
	if len(roots) != len(shapes) {
		return nil, errors.Errorf("number of expressions (%d) and shapes (%d) must be equal", len(roots), len(shapes))
	}
	b := newBuilder(roots, shapes)
	if err := b.build(); err != nil {
		return nil, err
	}
	values, err := solver.Solve(b.eqs)
	if err != nil {
		return nil, newError(roots, shapes, "%s", err.Error())
	}
	nodeValues := make(map[sym.Expr]int)
	for n, v := range b.nodeVars {
		if val, ok := values[v.ID()]; ok {
			nodeValues[n] = val
		}
	}
	if err := checkResolved(roots, shapes, nodeValues); err != nil {
		return nil, err
	}
	out := make([]expr.Expr, len(roots))
	for i, root := range roots {
		rootE, err := concrete(root, roots, shapes, nodeValues)
		if err != nil {
			return nil, err
		}
		out[i] = rootE
	}
	return out, nil
}

// checkResolved collects the named axes that the equations left without a
// unique value.
func checkResolved(roots []sym.Expr, shapes [][]int, nodeValues map[sym.Expr]int) error {
	failed := make(map[string]bool)
	for _, root := range roots {
		for n := range root.All() {
			axis, ok := n.(*sym.NamedAxis)
			if !ok {
				continue
			}
			if _, ok := nodeValues[n]; !ok {
				failed[axis.Name()] = true
			}
		}
	}
	if len(failed) == 0 {
		return nil
	}
	names := maps.Keys(failed)
	slices.Sort(names)
	if len(names) == 1 {
		return newError(roots, shapes, "found no unique solution for '%s'", names[0])
	}
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = "'" + name + "'"
	}
	return newError(roots, shapes, "found no unique solutions for %s", strings.Join(quoted, ", "))
}

// concrete maps a symbolic node to its concrete counterpart by structural
// recursion.
func concrete(e sym.Expr, roots []sym.Expr, shapes [][]int, nodeValues map[sym.Expr]int) (expr.Expr, error) {
	axisValue := func(n sym.Expr) (int, error) {
		val, ok := nodeValues[n]
		if !ok {
			return 0, newError(roots, shapes, "found no unique solution for '%s'", n)
		}
		if val <= 0 {
			return 0, newError(roots, shapes, "axis '%s' has value %d <= 0", n, val)
		}
		return val, nil
	}
	switch eT := e.(type) {
	case *sym.NamedAxis:
		val, err := axisValue(e)
		if err != nil {
			return nil, err
		}
		return expr.NewAxis(eT.Name(), val), nil
	case *sym.UnnamedAxis:
		val, err := axisValue(e)
		if err != nil {
			return nil, err
		}
		return expr.NewAxis("", val), nil
	case *sym.List:
		children, err := concreteAll(eT.Children(), roots, shapes, nodeValues)
		if err != nil {
			return nil, err
		}
		return expr.NewList(children)
	case *sym.Concatenation:
		children, err := concreteAll(eT.Children(), roots, shapes, nodeValues)
		if err != nil {
			return nil, err
		}
		return expr.NewConcatenation(children)
	case *sym.Composition:
		inner, err := concrete(eT.Inner(), roots, shapes, nodeValues)
		if err != nil {
			return nil, err
		}
		return expr.NewComposition(inner), nil
	case *sym.Marker:
		inner, err := concrete(eT.Inner(), roots, shapes, nodeValues)
		if err != nil {
			return nil, err
		}
		return expr.NewMarker(inner)
	}
	return nil, errors.Errorf("expression type %T not supported", e)
}

func concreteAll(children []sym.Expr, roots []sym.Expr, shapes [][]int, nodeValues map[sym.Expr]int) ([]expr.Expr, error) {
	out := make([]expr.Expr, len(children))
	for i, c := range children {
		cE, err := concrete(c, roots, shapes, nodeValues)
		if err != nil {
			return nil, err
		}
		out[i] = cE
	}
	return out, nil
}
