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

// Package solver assigns integer values to variables related by equality
// constraints over sums and products.
//
// The solver propagates known values over the equations until a fixed
// point is reached. Every equation produced by shape expressions is, once
// anchored by propagation, linear in at most one unknown, so substitution
// is enough: the solver does not attempt general polynomial solving.
// Variables that the equations leave under-determined are absent from the
// solution; contradictory equations are an error.
package solver

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"github.com/gx-org/shapeexpr/base/ordered"
)

type (
	// Term is a node in an equation: a variable, an integer constant,
	// a sum of terms, or a product of terms.
	Term interface {
		fmt.Stringer
		term()
	}

	// Variable is an unknown to solve for. It is identified by a unique
	// key and carries a display name used in diagnostics.
	Variable struct {
		id   string
		name string
	}

	// Constant is a known integer value.
	Constant int

	// Sum of terms.
	Sum struct {
		terms []Term
	}

	// Product of terms.
	Product struct {
		terms []Term
	}

	// Equation states that two terms must be equal.
	Equation struct {
		Left  Term
		Right Term
	}
)

var (
	_ Term = (*Variable)(nil)
	_ Term = Constant(0)
	_ Term = (*Sum)(nil)
	_ Term = (*Product)(nil)
)

// NewVariable returns a variable given a unique identifier and a display name.
func NewVariable(id, name string) *Variable {
	return &Variable{id: id, name: name}
}

// ID returns the identifier of the variable.
func (v *Variable) ID() string { return v.id }

func (*Variable) term() {}

// String returns the display name of the variable.
func (v *Variable) String() string { return v.name }

func (Constant) term() {}

// String representation of the constant.
func (c Constant) String() string { return fmt.Sprint(int(c)) }

func (s *Sum) term() {}

// NewSum returns a term adding its operands.
func NewSum(terms ...Term) *Sum {
	return &Sum{terms: terms}
}

// Terms returns the operands of the sum.
func (s *Sum) Terms() []Term { return s.terms }

// String representation of the sum.
func (s *Sum) String() string { return joinTerms(s.terms, "+") }

func (p *Product) term() {}

// NewProduct returns a term multiplying its operands.
func NewProduct(terms ...Term) *Product {
	return &Product{terms: terms}
}

// Terms returns the operands of the product.
func (p *Product) Terms() []Term { return p.terms }

// String representation of the product.
func (p *Product) String() string { return joinTerms(p.terms, "*") }

func joinTerms(terms []Term, op string) string {
	ss := make([]string, len(terms))
	for i, t := range terms {
		ss[i] = t.String()
	}
	return strings.Join(ss, op)
}

// String representation of the equation.
func (eq Equation) String() string {
	return eq.Left.String() + " = " + eq.Right.String()
}

// system tracks the solving state: a union-find over variables forced to
// be equal, and a value for every root pinned down so far.
type system struct {
	vars   *ordered.Map[string, *Variable]
	parent map[string]string
	value  map[string]int
}

func newSystem(eqs []Equation) *system {
	s := &system{
		vars:   ordered.NewMap[string, *Variable](),
		parent: make(map[string]string),
		value:  make(map[string]int),
	}
	for _, eq := range eqs {
		s.register(eq.Left)
		s.register(eq.Right)
	}
	return s
}

func (s *system) register(t Term) {
	switch tT := t.(type) {
	case *Variable:
		if !s.vars.Has(tT.id) {
			s.vars.Store(tT.id, tT)
		}
	case *Sum:
		for _, sub := range tT.terms {
			s.register(sub)
		}
	case *Product:
		for _, sub := range tT.terms {
			s.register(sub)
		}
	}
}

func (s *system) find(id string) string {
	p, ok := s.parent[id]
	if !ok {
		return id
	}
	root := s.find(p)
	s.parent[id] = root
	return root
}

// rep returns the representative variable of the equality class of v.
func (s *system) rep(v *Variable) *Variable {
	root, _ := s.vars.Load(s.find(v.id))
	return root
}

func (s *system) valueOf(v *Variable) (int, bool) {
	val, ok := s.value[s.find(v.id)]
	return val, ok
}

func (s *system) assign(v *Variable, val int) error {
	if val < 0 {
		return errors.Errorf("no non-negative integer solution for %s: forced to %d", v, val)
	}
	root := s.find(v.id)
	if cur, ok := s.value[root]; ok {
		if cur != val {
			return errors.Errorf("conflicting values for %s: %d and %d", v, cur, val)
		}
		return nil
	}
	s.value[root] = val
	return nil
}

func (s *system) union(a, b *Variable) error {
	ra, rb := s.find(a.id), s.find(b.id)
	if ra == rb {
		return nil
	}
	va, oka := s.value[ra]
	vb, okb := s.value[rb]
	if oka && okb && va != vb {
		return errors.Errorf("conflicting values for %s: %d and %d", a, va, vb)
	}
	s.parent[rb] = ra
	if okb {
		s.value[ra] = vb
		delete(s.value, rb)
	}
	return nil
}

// reduce substitutes known values, folds constants, and flattens nested
// sums and products. A term with no remaining unknown reduces to a Constant.
func (s *system) reduce(t Term) Term {
	switch tT := t.(type) {
	case Constant:
		return tT
	case *Variable:
		if val, ok := s.valueOf(tT); ok {
			return Constant(val)
		}
		return s.rep(tT)
	case *Sum:
		con := 0
		var rest []Term
		for _, sub := range tT.terms {
			switch red := s.reduce(sub).(type) {
			case Constant:
				con += int(red)
			case *Sum:
				rest = append(rest, red.terms...)
			default:
				rest = append(rest, red)
			}
		}
		if len(rest) == 0 {
			return Constant(con)
		}
		if con == 0 && len(rest) == 1 {
			return rest[0]
		}
		if con != 0 {
			rest = append(rest, Constant(con))
		}
		return &Sum{terms: rest}
	case *Product:
		con := 1
		var rest []Term
		for _, sub := range tT.terms {
			switch red := s.reduce(sub).(type) {
			case Constant:
				con *= int(red)
			case *Product:
				rest = append(rest, red.terms...)
			default:
				rest = append(rest, red)
			}
		}
		if con == 0 || len(rest) == 0 {
			return Constant(con)
		}
		if con == 1 && len(rest) == 1 {
			return rest[0]
		}
		if con != 1 {
			rest = append(rest, Constant(con))
		}
		return &Product{terms: rest}
	}
	return t
}

// split separates a reduced operand list into its constant part and its
// unknowns. solvable is true if exactly one unknown remains and it is a
// bare variable.
func split(terms []Term, neutral int, fold func(int, int) int) (con int, unknown *Variable, solvable bool) {
	con = neutral
	n := 0
	for _, t := range terms {
		switch tT := t.(type) {
		case Constant:
			con = fold(con, int(tT))
		case *Variable:
			n++
			unknown = tT
		default:
			n += 2 // an opaque sub-term can never be back-solved
		}
	}
	return con, unknown, n == 1
}

// literal reports whether eq pins a variable to a constant as written,
// before any substitution.
func literal(eq Equation) (*Variable, int, bool) {
	if v, ok := eq.Left.(*Variable); ok {
		if c, ok := eq.Right.(Constant); ok {
			return v, int(c), true
		}
	}
	if v, ok := eq.Right.(*Variable); ok {
		if c, ok := eq.Left.(Constant); ok {
			return v, int(c), true
		}
	}
	return nil, 0, false
}

// step tries to discharge one equation. It returns true if the equation
// holds and carries no further information.
func (s *system) step(eq Equation) (bool, error) {
	// Route literal assignments through assign without reducing first:
	// reduce would fold an already-valued variable into a constant and
	// a conflict would then surface as a bare constant mismatch instead
	// of naming the variable.
	if v, val, ok := literal(eq); ok {
		return true, s.assign(v, val)
	}
	left, right := s.reduce(eq.Left), s.reduce(eq.Right)
	if _, ok := right.(Constant); ok {
		left, right = right, left
	}
	if _, ok := right.(*Variable); ok {
		if _, isCon := left.(Constant); !isCon {
			left, right = right, left
		}
	}
	switch leftT := left.(type) {
	case Constant:
		return s.stepConstant(int(leftT), right)
	case *Variable:
		if rightT, ok := right.(*Variable); ok {
			return true, s.union(leftT, rightT)
		}
	}
	// Both sides still carry unknowns. Keep the equation for a later
	// pass, once propagation has anchored one of its sides.
	return false, nil
}

func (s *system) stepConstant(want int, right Term) (bool, error) {
	switch rightT := right.(type) {
	case Constant:
		if int(rightT) != want {
			return true, errors.Errorf("equation requires %d = %d", want, int(rightT))
		}
		return true, nil
	case *Variable:
		return true, s.assign(rightT, want)
	case *Sum:
		con, unknown, solvable := split(rightT.terms, 0, func(a, b int) int { return a + b })
		if !solvable {
			return false, nil
		}
		return true, s.assign(unknown, want-con)
	case *Product:
		con, unknown, solvable := split(rightT.terms, 1, func(a, b int) int { return a * b })
		if !solvable {
			return false, nil
		}
		if con == 0 {
			if want != 0 {
				return true, errors.Errorf("equation requires %d = 0", want)
			}
			return true, nil
		}
		if want%con != 0 {
			return true, errors.Errorf("no integer solution for %s: %d is not divisible by %d", unknown, want, con)
		}
		return true, s.assign(unknown, want/con)
	}
	return false, nil
}

// Solve returns a value for every variable that the equations pin down,
// keyed by variable identifier. Variables that the system under-determines
// are absent from the result. Solve returns an error if no consistent
// assignment exists.
func Solve(eqs []Equation) (map[string]int, error) {
	s := newSystem(eqs)
	pending := make([]Equation, len(eqs))
	copy(pending, eqs)
	for {
		var errs error
		var next []Equation
		before := len(s.value) + len(s.parent)
		for _, eq := range pending {
			done, err := s.step(eq)
			if err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "cannot solve %s", eq))
				continue
			}
			if !done {
				next = append(next, eq)
			}
		}
		if errs != nil {
			return nil, errs
		}
		progress := len(next) < len(pending) || len(s.value)+len(s.parent) > before
		pending = next
		if len(pending) == 0 || !progress {
			break
		}
	}
	values := make(map[string]int)
	for id := range s.vars.Keys() {
		if val, ok := s.value[s.find(id)]; ok {
			values[id] = val
		}
	}
	return values, nil
}
