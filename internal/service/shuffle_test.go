package service

import (
	"math/rand"
	"testing"
)

func TestShuffledCopyIsPermutation(t *testing.T) {
	s := NewShuffler(rand.NewSource(42))

	in := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	out := shuffledCopy(s, in)

	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}

	seen := make(map[int]int)
	for _, v := range out {
		seen[v]++
	}
	for _, v := range in {
		if seen[v] != 1 {
			t.Errorf("element %d appears %d times", v, seen[v])
		}
	}
}

func TestShuffledCopyLeavesInputUntouched(t *testing.T) {
	s := NewShuffler(rand.NewSource(1))

	in := []string{"a", "b", "c", "d", "e"}
	_ = shuffledCopy(s, in)

	want := []string{"a", "b", "c", "d", "e"}
	for i := range want {
		if in[i] != want[i] {
			t.Fatalf("input mutated at %d: got %s, want %s", i, in[i], want[i])
		}
	}
}

func TestShuffledCopyDeterministicPerSeed(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7, 8}

	a := shuffledCopy(NewShuffler(rand.NewSource(7)), in)
	b := shuffledCopy(NewShuffler(rand.NewSource(7)), in)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at %d: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestShuffledCopyEmpty(t *testing.T) {
	s := NewShuffler(rand.NewSource(1))
	if out := shuffledCopy(s, []int{}); len(out) != 0 {
		t.Errorf("len = %d, want 0", len(out))
	}
}
