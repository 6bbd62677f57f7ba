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

package expr

import "github.com/pkg/errors"

// Signal directs Rewrite at a node.
type Signal int

const (
	// Continue keeps traversing into the node using the structural
	// recursion rule of its kind. The replacement is ignored.
	Continue Signal = iota

	// CopyAndStop takes a deep copy of the node without visiting its
	// descendants. The replacement is ignored.
	CopyAndStop

	// ReplaceAndStop substitutes the replacement verbatim without
	// visiting it.
	ReplaceAndStop

	// ReplaceAndContinue substitutes the replacement, then keeps
	// traversing into the replacement rather than the original node.
	ReplaceAndContinue
)

// Visitor is called by Rewrite on every node it reaches.
//
// The replacement is read only for ReplaceAndStop and ReplaceAndContinue.
// A nil replacement deletes the node. A *List replacement is spliced as
// that many siblings in place of the node; a replacement of any other
// kind substitutes as a single unit. A non-nil error aborts the rewrite.
type Visitor func(Expr) (Expr, Signal, error)

// Rewrite traverses the expression top-down, applying the visitor at
// every node, and returns a new, normalised expression. The original
// expression is never modified.
func Rewrite(e Expr, v Visitor) (Expr, error) {
	out, err := rewrite(e, v)
	if err != nil {
		return nil, err
	}
	return ListOf(out)
}

// splice expands a replacement into the siblings it stands for.
func splice(e Expr) []Expr {
	if e == nil {
		return nil
	}
	if l, ok := e.(*List); ok {
		return l.Children()
	}
	return []Expr{e}
}

func rewrite(e Expr, v Visitor) ([]Expr, error) {
	repl, sig, err := v(e)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot rewrite '%s'", e)
	}
	switch sig {
	case ReplaceAndStop:
		return splice(repl), nil
	case CopyAndStop:
		return []Expr{e.Copy()}, nil
	case ReplaceAndContinue:
		var out []Expr
		for _, r := range splice(repl) {
			rOut, err := rewrite(r, v)
			if err != nil {
				return nil, err
			}
			out = append(out, rOut...)
		}
		return out, nil
	}
	return rewriteKind(e, v)
}

func rewriteKind(e Expr, v Visitor) ([]Expr, error) {
	switch eT := e.(type) {
	case *Axis:
		return []Expr{eT.Copy()}, nil
	case *Composition:
		inner, err := rewrite(eT.Inner(), v)
		if err != nil {
			return nil, err
		}
		innerE, err := ListOf(inner)
		if err != nil {
			return nil, err
		}
		return []Expr{NewComposition(innerE)}, nil
	case *List:
		var out []Expr
		for _, c := range eT.Children() {
			cOut, err := rewrite(c, v)
			if err != nil {
				return nil, err
			}
			out = append(out, cOut...)
		}
		return out, nil
	case *Concatenation:
		children := make([]Expr, len(eT.Children()))
		for i, c := range eT.Children() {
			cOut, err := rewrite(c, v)
			if err != nil {
				return nil, err
			}
			if len(cOut) == 0 {
				// A concatenation child cannot vanish: substitute
				// a trivial axis to keep the child count.
				children[i] = NewAxis("", 1)
				continue
			}
			child, err := ListOf(cOut)
			if err != nil {
				return nil, err
			}
			children[i] = child
		}
		cc, err := NewConcatenation(children)
		if err != nil {
			return nil, err
		}
		return []Expr{cc}, nil
	case *Marker:
		inner, err := rewrite(eT.Inner(), v)
		if err != nil {
			return nil, err
		}
		if len(inner) == 0 {
			// Drop the now empty marker.
			return nil, nil
		}
		innerE, err := ListOf(inner)
		if err != nil {
			return nil, err
		}
		m, err := NewMarker(innerE)
		if err != nil {
			return nil, err
		}
		return []Expr{m}, nil
	}
	return nil, errors.Errorf("expression type %T not supported", e)
}
