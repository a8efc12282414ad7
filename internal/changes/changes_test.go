package changes

import (
	"cmp"
	"reflect"
	"slices"
	"testing"

	"github.com/danmuck/ragent/internal/testutil/testlog"
)

type item struct {
	key string
	val int
}

func compareItem(a, b item) int { return cmp.Compare(a.key, b.key) }
func equalItem(a, b item) bool  { return a.key == b.key && a.val == b.val }

func keys(in []item) []string {
	out := make([]string, 0, len(in))
	for _, it := range in {
		out = append(out, it.key)
	}
	return out
}

func TestComputeClassifiesEveryElement(t *testing.T) {
	testlog.Start(t)
	actual := []item{{"a", 1}, {"b", 1}, {"d", 1}, {"f", 1}}
	desired := []item{{"b", 1}, {"c", 1}, {"d", 2}, {"g", 1}}

	d := Compute(actual, desired, compareItem, equalItem)
	if d == nil {
		t.Fatalf("expected delta")
	}
	if got, want := keys(d.Removed), []string{"a", "f"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("removed: got=%v want=%v", got, want)
	}
	if got, want := keys(d.Added), []string{"c", "g"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("added: got=%v want=%v", got, want)
	}
	if len(d.Modified) != 1 || d.Modified[0].Actual.val != 1 || d.Modified[0].Desired.val != 2 {
		t.Fatalf("modified: %+v", d.Modified)
	}
	if d.Description() != "2 added, 2 removed, 1 modified" {
		t.Fatalf("description: %q", d.Description())
	}
}

func TestComputeReturnsNilWhenEqual(t *testing.T) {
	testlog.Start(t)
	in := []item{{"a", 1}, {"b", 2}}
	if d := Compute(in, slices.Clone(in), compareItem, equalItem); d != nil {
		t.Fatalf("expected nil delta, got %+v", d)
	}
	if d := Compute[item](nil, nil, compareItem, equalItem); d != nil {
		t.Fatalf("expected nil delta for empty inputs")
	}
	var nilDelta *Delta[item]
	if !nilDelta.Empty() || nilDelta.Description() != "no changes" {
		t.Fatalf("nil delta must be empty")
	}
}

func TestComputeTails(t *testing.T) {
	testlog.Start(t)
	d := Compute([]item{{"x", 1}, {"y", 1}}, nil, compareItem, equalItem)
	if got := keys(d.Removed); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Fatalf("removed tail: %v", got)
	}
	d = Compute(nil, []item{{"x", 1}, {"y", 1}}, compareItem, equalItem)
	if got := keys(d.Added); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Fatalf("added tail: %v", got)
	}
}

// Applying the delta to actual must reconstruct the desired identity set, and
// no identity may appear in more than one output.
func TestComputePartitionReconstructsDesired(t *testing.T) {
	testlog.Start(t)
	universe := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for mask := 0; mask < 1<<len(universe); mask += 7 {
		var actual, desired []item
		for i, k := range universe {
			if mask&(1<<i) != 0 {
				actual = append(actual, item{k, i % 2})
			}
			if (mask>>1)&(1<<i) != 0 || i%3 == 0 {
				desired = append(desired, item{k, i % 3})
			}
		}
		d := Compute(actual, desired, compareItem, equalItem)
		if d == nil {
			d = &Delta[item]{}
		}

		seen := map[string]int{}
		for _, it := range d.Added {
			seen[it.key]++
		}
		for _, it := range d.Removed {
			seen[it.key]++
		}
		for _, p := range d.Modified {
			seen[p.Desired.key]++
		}
		for k, n := range seen {
			if n > 1 {
				t.Fatalf("mask=%d key %q appears %d times", mask, k, n)
			}
		}

		set := map[string]bool{}
		for _, it := range actual {
			set[it.key] = true
		}
		for _, it := range d.Removed {
			delete(set, it.key)
		}
		for _, it := range d.Added {
			set[it.key] = true
		}
		got := make([]string, 0, len(set))
		for k := range set {
			got = append(got, k)
		}
		slices.Sort(got)
		want := keys(desired)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("mask=%d reconstructed=%v desired=%v", mask, got, want)
		}
	}
}
