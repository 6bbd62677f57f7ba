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

// AnyAncestor returns true if the predicate holds for any ancestor of the
// expression, including the expression itself if includeSelf is true.
func AnyAncestor(e Expr, pred func(Expr) bool, includeSelf bool) bool {
	if !includeSelf {
		e = e.Parent()
	}
	for ; e != nil; e = e.Parent() {
		if pred(e) {
			return true
		}
	}
	return false
}

// IsMarked returns true if the expression, or any of its ancestors, is a
// marker.
func IsMarked(e Expr) bool {
	return AnyAncestor(e, func(n Expr) bool {
		_, ok := n.(*Marker)
		return ok
	}, true)
}

// IsAtRoot returns true if the expression is not nested inside a
// composition.
func IsAtRoot(e Expr) bool {
	return !AnyAncestor(e, func(n Expr) bool {
		_, ok := n.(*Composition)
		return ok
	}, true)
}

// IsFlat returns true if the subtree contains no composition and no
// concatenation.
func IsFlat(e Expr) bool {
	for n := range e.All() {
		switch n.(type) {
		case *Composition, *Concatenation:
			return false
		}
	}
	return true
}

// Axes returns every axis of the expression in pre-order.
func Axes(e Expr) []*Axis {
	var axes []*Axis
	for n := range e.All() {
		if a, ok := n.(*Axis); ok {
			axes = append(axes, a)
		}
	}
	return axes
}

// NamedAxes returns every named axis of the expression in pre-order.
func NamedAxes(e Expr) []*Axis {
	var axes []*Axis
	for _, a := range Axes(e) {
		if a.Named() {
			axes = append(axes, a)
		}
	}
	return axes
}
