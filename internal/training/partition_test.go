package training

import (
	"reflect"
	"testing"
)

func makeExamples(n int) []Example {
	out := make([]Example, n)
	for i := range out {
		out[i] = Example{ID: uint64(i + 1), InputText: "q", ResponseText: "a", Score: 5}
	}
	return out
}

func TestPartitionSizes(t *testing.T) {
	cases := []struct {
		n        int
		fraction float64
		wantVal  int
	}{
		{0, 0.2, 0},
		{1, 0.2, 0},
		{2, 0.2, 1},
		{5, 0.2, 1},
		{6, 0.2, 2},
		{10, 0.2, 2},
		{15, 0.2, 3},
		{4, 0.99, 3},
		{10, 0, 2},
		{10, 1, 2},
		{10, -3, 2},
		{3, 0.5, 2},
	}
	for _, tc := range cases {
		train, val := Partition(makeExamples(tc.n), tc.fraction, DefaultSeed)
		if len(val) != tc.wantVal || len(train) != tc.n-tc.wantVal {
			t.Fatalf("n=%d f=%v: want val=%d got train=%d val=%d", tc.n, tc.fraction, tc.wantVal, len(train), len(val))
		}
	}
}

func TestPartitionDeterministic(t *testing.T) {
	ex := makeExamples(50)
	t1, v1 := Partition(ex, 0.2, 42)
	t2, v2 := Partition(ex, 0.2, 42)
	if !reflect.DeepEqual(t1, t2) || !reflect.DeepEqual(v1, v2) {
		t.Fatalf("same seed must give the same split")
	}
	_, v3 := Partition(ex, 0.2, 7)
	if reflect.DeepEqual(IDs(v1), IDs(v3)) {
		t.Fatalf("different seeds gave an identical validation set %v", IDs(v1))
	}
}

func TestPartitionCoversInputWithoutOverlap(t *testing.T) {
	ex := makeExamples(37)
	train, val := Partition(ex, 0.3, 99)
	seen := map[uint64]int{}
	for _, e := range train {
		seen[e.ID]++
	}
	for _, e := range val {
		seen[e.ID]++
	}
	if len(seen) != len(ex) {
		t.Fatalf("union: want %d ids got %d", len(ex), len(seen))
	}
	for id, c := range seen {
		if c != 1 {
			t.Fatalf("id %d appears %d times", id, c)
		}
	}
	for _, part := range [][]Example{train, val} {
		for i := 1; i < len(part); i++ {
			if part[i-1].ID >= part[i].ID {
				t.Fatalf("relative order not preserved: %v", IDs(part))
			}
		}
	}
}

func TestPartitionDoesNotAliasInput(t *testing.T) {
	ex := makeExamples(1)
	train, _ := Partition(ex, 0.2, 1)
	train[0].Score = 1
	if ex[0].Score != 5 {
		t.Fatalf("Partition must not alias its input")
	}
}
