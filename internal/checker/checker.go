// Package checker implements the MAF feasibility decision of spec.md §4.3:
// given an instance of trees over a shared taxon set and a candidate
// forest, decide whether the forest is a bona-fide agreement forest, and if
// so produce its canonical serialization.
package checker

import (
	"fmt"
	"sort"

	"github.com/manpen/pace26stride/internal/treeforest"
)

// Kind is the closed tagged variant of possible check outcomes.
type Kind int

const (
	Valid Kind = iota
	NoSolution
	Infeasible
	InvalidInstance
)

func (k Kind) String() string {
	switch k {
	case Valid:
		return "Valid"
	case NoSolution:
		return "NoSolution"
	case Infeasible:
		return "Infeasible"
	case InvalidInstance:
		return "InvalidInstance"
	default:
		return "Unknown"
	}
}

// LeafPartitionMismatch describes why the forest's leaves do not exactly
// partition the instance's taxon set.
type LeafPartitionMismatch struct {
	Missing    []int
	Extra      []int
	Duplicates []int
}

func (m LeafPartitionMismatch) String() string {
	return fmt.Sprintf("missing=%v extra=%v duplicates=%v", m.Missing, m.Extra, m.Duplicates)
}

// MalformedComponent names a solution component that fails §3's tree
// invariants on its own, independent of any instance tree.
type MalformedComponent struct {
	Index  int
	Reason string
}

// AgreementViolation names the first instance tree / solution component
// pair whose restriction does not match, per §4.3 condition 3.
type AgreementViolation struct {
	TreeIndex      int
	ComponentIndex int
	Witness        string
}

// Result is the closed-variant outcome of Check.
type Result struct {
	Kind Kind

	// Valid only
	Score         int
	CanonicalText string

	// InvalidInstance only
	InstanceReason string

	// Infeasible only (exactly one of these is set)
	LeafPartition *LeafPartitionMismatch
	Malformed     *MalformedComponent
	Agreement     *AgreementViolation
}

// Instance is the subset of a parsed PACE26 instance the checker needs.
type Instance struct {
	NumLeaves int
	Trees     []treeforest.Tree
}

// ValidateInstance checks §3's invariants for an instance: every tree is
// individually well-formed and every tree shares the exact taxon set
// [1..NumLeaves].
func ValidateInstance(inst Instance) error {
	if inst.NumLeaves < 1 {
		return fmt.Errorf("taxon count must be positive, got %d", inst.NumLeaves)
	}
	if len(inst.Trees) < 2 {
		return fmt.Errorf("instance needs at least 2 trees, got %d", len(inst.Trees))
	}
	want := fullRange(inst.NumLeaves)
	for i, tr := range inst.Trees {
		if err := treeforest.Validate(tr); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
		got := treeforest.Leaves(tr)
		if !equalSortedInts(got, want) {
			return fmt.Errorf("tree %d has leaf set %v, want [1..%d]", i, got, inst.NumLeaves)
		}
	}
	return nil
}

// Check decides feasibility of forest against instance, per §4.3.
func Check(inst Instance, forest []treeforest.Tree) Result {
	if err := ValidateInstance(inst); err != nil {
		return Result{Kind: InvalidInstance, InstanceReason: err.Error()}
	}

	m := len(forest)
	if m == 0 {
		return Result{Kind: NoSolution}
	}

	for j, comp := range forest {
		if err := treeforest.Validate(comp); err != nil {
			return Result{
				Kind: Infeasible,
				Malformed: &MalformedComponent{
					Index:  j,
					Reason: err.Error(),
				},
			}
		}
	}

	if mismatch, ok := checkLeafPartition(inst.NumLeaves, forest); !ok {
		return Result{Kind: Infeasible, LeafPartition: &mismatch}
	}

	if violation, ok := checkAgreement(inst, forest); !ok {
		return Result{Kind: Infeasible, Agreement: &violation}
	}

	return Result{
		Kind:          Valid,
		Score:         m,
		CanonicalText: CanonicalSolutionText(forest),
	}
}

// CanonicalSolutionText renders a valid forest's canonical upload text:
// components in ascending order of their minimum leaf label, each in
// canonical form, one per line.
func CanonicalSolutionText(forest []treeforest.Tree) string {
	ordered := orderByMinLeaf(forest)
	out := ""
	for i, tr := range ordered {
		if i > 0 {
			out += "\n"
		}
		out += treeforest.CanonicalForm(tr)
	}
	return out
}

func orderByMinLeaf(forest []treeforest.Tree) []treeforest.Tree {
	ordered := append([]treeforest.Tree(nil), forest...)
	sort.Slice(ordered, func(a, b int) bool {
		return minOf(treeforest.Leaves(ordered[a])) < minOf(treeforest.Leaves(ordered[b]))
	})
	return ordered
}

func minOf(xs []int) int {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func checkLeafPartition(numLeaves int, forest []treeforest.Tree) (LeafPartitionMismatch, bool) {
	counts := map[int]int{}
	for _, comp := range forest {
		for _, l := range treeforest.Leaves(comp) {
			counts[l]++
		}
	}

	var missing, extra, duplicates []int
	for l := 1; l <= numLeaves; l++ {
		if counts[l] == 0 {
			missing = append(missing, l)
		}
	}
	for l, c := range counts {
		if l < 1 || l > numLeaves {
			extra = append(extra, l)
		} else if c > 1 {
			duplicates = append(duplicates, l)
		}
	}
	sort.Ints(missing)
	sort.Ints(extra)
	sort.Ints(duplicates)

	if len(missing) == 0 && len(extra) == 0 && len(duplicates) == 0 {
		return LeafPartitionMismatch{}, true
	}
	return LeafPartitionMismatch{Missing: missing, Extra: extra, Duplicates: duplicates}, false
}

func checkAgreement(inst Instance, forest []treeforest.Tree) (AgreementViolation, bool) {
	for j, comp := range forest {
		leaves := treeforest.LeafSet(comp)
		compText := treeforest.CanonicalForm(comp)
		for i, tr := range inst.Trees {
			restricted := treeforest.Restrict(tr, leaves)
			if treeforest.CanonicalForm(restricted) != compText {
				return AgreementViolation{
					TreeIndex:      i,
					ComponentIndex: j,
					Witness:        fmt.Sprintf("restrict(tree %d, leaves(component %d)) = %q != %q", i, j, treeforest.CanonicalForm(restricted), compText),
				}, false
			}
		}
	}
	return AgreementViolation{}, true
}

func fullRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func equalSortedInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
