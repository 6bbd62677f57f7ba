package ordered_test

import (
	"testing"

	"github.com/gx-org/shapeexpr/base/ordered"
)

type entry struct {
	k string
	v int
}

func fill(entries []entry) *ordered.Map[string, int] {
	m := ordered.NewMap[string, int]()
	for _, entry := range entries {
		m.Store(entry.k, entry.v)
	}
	return m
}

func checkOrder(t *testing.T, ti int, m *ordered.Map[string, int], want []entry) {
	t.Helper()
	if m.Size() != len(want) {
		t.Errorf("test %d: map has %d entries but want %d", ti, m.Size(), len(want))
		return
	}
	i := 0
	for gotK, gotV := range m.Iter() {
		wantK, wantV := want[i].k, want[i].v
		if gotK != wantK || gotV != wantV {
			t.Errorf("test %d entry %d: got %s->%d but want %s->%d", ti, i, gotK, gotV, wantK, wantV)
		}
		i++
	}
}

func TestMap(t *testing.T) {
	tests := []struct {
		entries []entry
		want    []entry
	}{
		{
			entries: []entry{
				{k: "a", v: 1},
				{k: "b", v: 2},
				{k: "c", v: 3},
			},
			want: []entry{
				{k: "a", v: 1},
				{k: "b", v: 2},
				{k: "c", v: 3},
			},
		},
		{
			entries: []entry{
				{k: "a", v: 1},
				{k: "b", v: 2},
				{k: "a", v: 3},
			},
			want: []entry{
				{k: "a", v: 3},
				{k: "b", v: 2},
			},
		},
		{
			entries: []entry{
				{k: "a", v: 1},
				{k: "a", v: 2},
				{k: "a", v: 3},
			},
			want: []entry{
				{k: "a", v: 3},
			},
		},
	}
	for ti, test := range tests {
		m := fill(test.entries)
		checkOrder(t, ti, m, test.want)
		checkOrder(t, ti, m.Clone(), test.want)

		i := 0
		for gotK := range m.Keys() {
			if gotK != test.want[i].k {
				t.Errorf("test %d key %d: got %s but want %s", ti, i, gotK, test.want[i].k)
			}
			i++
		}
		i = 0
		for gotV := range m.Values() {
			if gotV != test.want[i].v {
				t.Errorf("test %d value %d: got %d but want %d", ti, i, gotV, test.want[i].v)
			}
			i++
		}
	}
}

func TestMapHas(t *testing.T) {
	m := fill([]entry{
		{k: "a", v: 1},
		{k: "b", v: 2},
	})
	if !m.Has("b") {
		t.Errorf("key b is missing")
	}
	if m.Has("not-a-key") {
		t.Errorf("Has reported a key that was never stored")
	}
}
