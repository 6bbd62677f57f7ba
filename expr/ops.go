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

func errorUnsupported(e Expr) error {
	return errors.Errorf("expression type %T not supported", e)
}

// Decompose replaces every composition with its inner content, recursing
// into the replacement so that nested compositions are fully un-grouped.
// Concatenations are copied verbatim: concatenated axes never decompose.
func Decompose(e Expr) (Expr, error) {
	return Rewrite(e, func(n Expr) (Expr, Signal, error) {
		switch nT := n.(type) {
		case *Composition:
			return nT.Inner(), ReplaceAndContinue, nil
		case *Concatenation:
			return nil, CopyAndStop, nil
		}
		return nil, Continue, nil
	})
}

// Demark strips every marker, replacing it with its inner content.
func Demark(e Expr) (Expr, error) {
	return Rewrite(e, func(n Expr) (Expr, Signal, error) {
		if nT, ok := n.(*Marker); ok {
			return nT.Inner(), ReplaceAndContinue, nil
		}
		return nil, Continue, nil
	})
}

// Replace substitutes every node for which f returns a non-nil
// expression. Traversal stops at substituted nodes.
func Replace(e Expr, f func(Expr) Expr) (Expr, error) {
	return Rewrite(e, func(n Expr) (Expr, Signal, error) {
		if r := f(n); r != nil {
			return r, ReplaceAndStop, nil
		}
		return nil, Continue, nil
	})
}

// Remove deletes every node matching the predicate, stopping traversal at
// deleted nodes. A concatenation child that is deleted is replaced by a
// trivial axis of value 1 to preserve the concatenation's structure.
func Remove(e Expr, pred func(Expr) bool) (Expr, error) {
	return Rewrite(e, func(n Expr) (Expr, Signal, error) {
		if pred(n) {
			return nil, ReplaceAndStop, nil
		}
		return nil, Continue, nil
	})
}

// RemoveTrivialAxes removes unnamed axes of value 1, except when such an
// axis is a child of a concatenation (directly or through markers), where
// removing it would change the concatenation's meaning.
func RemoveTrivialAxes(e Expr) (Expr, error) {
	return Remove(e, func(n Expr) bool {
		a, ok := n.(*Axis)
		return ok && !a.Named() && a.Value() == 1 && !inConcatenation(a)
	})
}

// inConcatenation returns true if the expression is a direct child of a
// concatenation, possibly through marker wrappers.
func inConcatenation(e Expr) bool {
	switch p := e.Parent().(type) {
	case *Concatenation:
		return true
	case *Marker:
		return inConcatenation(p)
	}
	return false
}

// Mark wraps every node matching the predicate in a fresh marker,
// recursing into the wrapped content. Nodes that are markers or already
// inside a marker are skipped.
func Mark(e Expr, pred func(Expr) bool) (Expr, error) {
	return Rewrite(e, func(n Expr) (Expr, Signal, error) {
		if IsMarked(n) || !pred(n) {
			return nil, Continue, nil
		}
		m, err := NewMarker(n.Copy())
		if err != nil {
			return nil, Continue, err
		}
		return m, ReplaceAndContinue, nil
	})
}

// Marked extracts the marked substructure of the expression: the shape of
// list, concatenation and composition ancestors is preserved while
// unmarked content is dropped. Concatenation children that vanish
// entirely are omitted, and a concatenation with no marked child is
// omitted altogether.
func Marked(e Expr) (Expr, error) {
	out, err := markedOf(e)
	if err != nil {
		return nil, err
	}
	return ListOf(out)
}

func markedOf(e Expr) ([]Expr, error) {
	switch eT := e.(type) {
	case *Axis:
		return nil, nil
	case *Marker:
		return []Expr{eT.Inner().Copy()}, nil
	case *Concatenation:
		parts, err := extractChildren(eT.Children(), markedOf)
		if err != nil || len(parts) == 0 {
			return nil, err
		}
		cc, err := ConcatenationOf(parts)
		if err != nil {
			return nil, err
		}
		return []Expr{cc}, nil
	case *Composition:
		return composeExtracted(eT.Inner(), markedOf)
	case *List:
		parts, err := extractChildren(eT.Children(), markedOf)
		if err != nil {
			return nil, err
		}
		l, err := ListOf(parts)
		if err != nil {
			return nil, err
		}
		return []Expr{l}, nil
	}
	return nil, errorUnsupported(e)
}

// Unmarked extracts the substructure that is not under a marker, with the
// same shape-preservation rules as Marked.
func Unmarked(e Expr) (Expr, error) {
	out, err := unmarkedOf(e)
	if err != nil {
		return nil, err
	}
	return ListOf(out)
}

func unmarkedOf(e Expr) ([]Expr, error) {
	switch eT := e.(type) {
	case *Axis:
		return []Expr{eT.Copy()}, nil
	case *Marker:
		return nil, nil
	case *Concatenation:
		parts, err := extractChildren(eT.Children(), unmarkedOf)
		if err != nil || len(parts) == 0 {
			return nil, err
		}
		cc, err := ConcatenationOf(parts)
		if err != nil {
			return nil, err
		}
		return []Expr{cc}, nil
	case *Composition:
		return composeExtracted(eT.Inner(), unmarkedOf)
	case *List:
		parts, err := extractChildren(eT.Children(), unmarkedOf)
		if err != nil {
			return nil, err
		}
		l, err := ListOf(parts)
		if err != nil {
			return nil, err
		}
		return []Expr{l}, nil
	}
	return nil, errorUnsupported(e)
}

func extractChildren(children []Expr, extract func(Expr) ([]Expr, error)) ([]Expr, error) {
	var parts []Expr
	for _, c := range children {
		cParts, err := extract(c)
		if err != nil {
			return nil, err
		}
		parts = append(parts, cParts...)
	}
	return parts, nil
}

func composeExtracted(inner Expr, extract func(Expr) ([]Expr, error)) ([]Expr, error) {
	parts, err := extract(inner)
	if err != nil {
		return nil, err
	}
	innerE, err := ListOf(parts)
	if err != nil {
		return nil, err
	}
	return []Expr{NewComposition(innerE)}, nil
}
