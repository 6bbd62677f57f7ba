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

package solve_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/shapeexpr/expr"
	"github.com/gx-org/shapeexpr/solve"
	"github.com/gx-org/shapeexpr/sym"
)

func symList(t *testing.T, children ...sym.Expr) *sym.List {
	t.Helper()
	l, err := sym.NewList(children)
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}
	return l
}

func symMarker(t *testing.T, inner sym.Expr) *sym.Marker {
	t.Helper()
	m, err := sym.NewMarker(inner)
	if err != nil {
		t.Fatalf("NewMarker: %v", err)
	}
	return m
}

func symConcat(t *testing.T, children ...sym.Expr) *sym.Concatenation {
	t.Helper()
	cc, err := sym.NewConcatenation(children)
	if err != nil {
		t.Fatalf("NewConcatenation: %v", err)
	}
	return cc
}

func axes(t *testing.T, roots []expr.Expr) map[string]int {
	t.Helper()
	values := make(map[string]int)
	for _, root := range roots {
		for _, a := range expr.NamedAxes(root) {
			if prev, ok := values[a.Name()]; ok && prev != a.Value() {
				t.Errorf("axis %s resolved to both %d and %d", a.Name(), prev, a.Value())
			}
			values[a.Name()] = a.Value()
		}
	}
	return values
}

func TestSolveNamedAxisConsistency(t *testing.T) {
	// "a b" with shape (2, 3) and "b c" with shape (3, 5).
	roots := []sym.Expr{
		symList(t, sym.NewNamedAxis("a"), sym.NewNamedAxis("b")),
		symList(t, sym.NewNamedAxis("b"), sym.NewNamedAxis("c")),
	}
	got, err := solve.Solve(roots, [][]int{{2, 3}, {3, 5}})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	want := map[string]int{"a": 2, "b": 3, "c": 5}
	if diff := cmp.Diff(want, axes(t, got)); diff != "" {
		t.Errorf("unexpected axis values (-want +got):\n%s", diff)
	}
}

func TestSolveAcrossRoots(t *testing.T) {
	// One root's shape pins another root's axes: "b (h w)" with shape
	// (2, 12) and "h" with shape (3) forces w=4.
	roots := []sym.Expr{
		symList(t,
			sym.NewNamedAxis("b"),
			sym.NewComposition(symList(t, sym.NewNamedAxis("h"), sym.NewNamedAxis("w"))),
		),
		symList(t, sym.NewNamedAxis("h")),
	}
	got, err := solve.Solve(roots, [][]int{{2, 12}, {3}})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	want := map[string]int{"b": 2, "h": 3, "w": 4}
	if diff := cmp.Diff(want, axes(t, got)); diff != "" {
		t.Errorf("unexpected axis values (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 12}, got[0].Shape()); diff != "" {
		t.Errorf("unexpected shape (-want +got):\n%s", diff)
	}
}

func TestSolveConcatenation(t *testing.T) {
	// "a+b c" with shape (5, 2) and "a" with shape (2) forces b=3.
	roots := []sym.Expr{
		symList(t,
			symConcat(t, sym.NewNamedAxis("a"), sym.NewNamedAxis("b")),
			sym.NewNamedAxis("c"),
		),
		symList(t, sym.NewNamedAxis("a")),
	}
	got, err := solve.Solve(roots, [][]int{{5, 2}, {2}})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	want := map[string]int{"a": 2, "b": 3, "c": 2}
	if diff := cmp.Diff(want, axes(t, got)); diff != "" {
		t.Errorf("unexpected axis values (-want +got):\n%s", diff)
	}
}

func TestSolveMarkerTransparent(t *testing.T) {
	// Solving "a [b]" with shape (2, 3) and stripping the marker yields
	// the tree built from the resolved axes directly.
	roots := []sym.Expr{
		symList(t, sym.NewNamedAxis("a"), symMarker(t, sym.NewNamedAxis("b"))),
	}
	got, err := solve.Solve(roots, [][]int{{2, 3}})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	demarked, err := expr.Demark(got[0])
	if err != nil {
		t.Fatalf("Demark: %v", err)
	}
	want, err := expr.NewList([]expr.Expr{expr.NewAxis("a", 2), expr.NewAxis("b", 3)})
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}
	if !demarked.Equal(want) {
		t.Errorf("got %s but want %s", demarked, want)
	}
	// The marker survives in the solved tree itself.
	b := expr.NamedAxes(got[0])[1]
	if !expr.IsMarked(b) {
		t.Errorf("axis b lost its marker through solving")
	}
}

func TestSolveUnnamedAxes(t *testing.T) {
	// "a 3" with shape (2, _): the unnamed axis carries its own value.
	roots := []sym.Expr{
		symList(t, sym.NewNamedAxis("a"), sym.NewUnnamedAxis(3)),
	}
	got, err := solve.Solve(roots, [][]int{{2, solve.Unknown}})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if diff := cmp.Diff([]int{2, 3}, got[0].Shape()); diff != "" {
		t.Errorf("unexpected shape (-want +got):\n%s", diff)
	}
}

func checkSolveError(t *testing.T, roots []sym.Expr, shapes [][]int, want string) {
	t.Helper()
	_, err := solve.Solve(roots, shapes)
	if err == nil {
		t.Fatalf("Solve: expected an error, got none")
	}
	solveErr, ok := err.(*solve.Error)
	if !ok {
		t.Fatalf("Solve returned a %T but want a *solve.Error", err)
	}
	if !strings.Contains(solveErr.Error(), want) {
		t.Errorf("error %q does not contain %q", solveErr.Error(), want)
	}
	if len(solveErr.Roots()) != len(roots) {
		t.Errorf("error carries %d roots but want %d", len(solveErr.Roots()), len(roots))
	}
}

func TestSolveUnderDetermined(t *testing.T) {
	// "a b" with shape (6, _) leaves b without a unique value.
	roots := []sym.Expr{
		symList(t, sym.NewNamedAxis("a"), sym.NewNamedAxis("b")),
	}
	checkSolveError(t, roots, [][]int{{6, solve.Unknown}}, "found no unique solution for 'b'")
}

func TestSolveUnderDeterminedPlural(t *testing.T) {
	roots := []sym.Expr{
		symList(t, sym.NewNamedAxis("a"), sym.NewNamedAxis("b")),
	}
	checkSolveError(t, roots, [][]int{nil}, "found no unique solutions for 'a', 'b'")
}

func TestSolveContradiction(t *testing.T) {
	roots := []sym.Expr{
		symList(t, sym.NewNamedAxis("a")),
		symList(t, sym.NewNamedAxis("a")),
	}
	checkSolveError(t, roots, [][]int{{2}, {3}}, "conflicting values")
}

func TestSolveShapeLengthMismatch(t *testing.T) {
	roots := []sym.Expr{
		symList(t, sym.NewNamedAxis("a"), sym.NewNamedAxis("b")),
	}
	checkSolveError(t, roots, [][]int{{2}}, "has 2 axes but got a shape of length 1")
}

func TestSolveNonPositiveAxis(t *testing.T) {
	roots := []sym.Expr{
		symList(t, sym.NewUnnamedAxis(0), sym.NewNamedAxis("a")),
	}
	checkSolveError(t, roots, [][]int{{solve.Unknown, 2}}, "has value 0 <= 0")
}

func TestSolveErrorRendering(t *testing.T) {
	roots := []sym.Expr{
		symList(t, sym.NewNamedAxis("a"), sym.NewNamedAxis("b")),
		symList(t, sym.NewNamedAxis("c")),
	}
	_, err := solve.Solve(roots, [][]int{{6, solve.Unknown}, nil})
	if err == nil {
		t.Fatalf("Solve: expected an error, got none")
	}
	msg := err.Error()
	for _, want := range []string{
		"'a b' has shape (6, _)",
		"'c' has shape none",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not contain %q", msg, want)
		}
	}
}

func TestSolveArgumentMismatch(t *testing.T) {
	roots := []sym.Expr{
		symList(t, sym.NewNamedAxis("a")),
	}
	if _, err := solve.Solve(roots, nil); err == nil {
		t.Errorf("Solve accepted mismatched expression and shape counts")
	}
}

func TestSolveRoundTrip(t *testing.T) {
	// Solve, decompose and demark "(a b) [c]" with shape (6, 2), given
	// "a" with shape (2): the result is the flat tree of resolved axes.
	roots := []sym.Expr{
		symList(t,
			sym.NewComposition(symList(t, sym.NewNamedAxis("a"), sym.NewNamedAxis("b"))),
			symMarker(t, sym.NewNamedAxis("c")),
		),
		symList(t, sym.NewNamedAxis("a")),
	}
	got, err := solve.Solve(roots, [][]int{{6, 2}, {2}})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	decomposed, err := expr.Decompose(got[0])
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	flat, err := expr.Demark(decomposed)
	if err != nil {
		t.Fatalf("Demark: %v", err)
	}
	want, err := expr.NewList([]expr.Expr{
		expr.NewAxis("a", 2),
		expr.NewAxis("b", 3),
		expr.NewAxis("c", 2),
	})
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}
	if !flat.Equal(want) {
		t.Errorf("got %s but want %s", flat, want)
	}
	if !expr.IsFlat(flat) {
		t.Errorf("decomposed and demarked tree is not flat")
	}
}
