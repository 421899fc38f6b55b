package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/miradorstack/anomaly-engine/internal/models"
	"github.com/miradorstack/anomaly-engine/internal/synth"
)

// Node is one entry of a tree's pre-order node table. Internal nodes route
// vectors with v[Feature] <= Threshold to Left; leaves carry the number of
// subsample points that reached them.
type Node struct {
	Leaf      bool    `json:"leaf,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Size      int     `json:"size,omitempty"`
	Depth     int     `json:"depth"`
}

// Tree is a single isolation tree. Nodes[0] is the root and children always
// sit after their parent.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// PathLength walks v to a leaf and returns its depth plus c(leaf size).
func (t *Tree) PathLength(v models.FeatureVector) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return float64(n.Depth) + AveragePathLength(n.Size)
		}
		if v[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Validate guarantees PathLength terminates and never indexes out of range.
func (t *Tree) Validate() error {
	if len(t.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			if n.Size < 0 {
				return fmt.Errorf("node %d: negative leaf size", i)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= models.NumFeatures {
			return fmt.Errorf("node %d: feature index %d out of range", i, n.Feature)
		}
		if n.Left <= i || n.Left >= len(t.Nodes) || n.Right <= i || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

type treeBuilder struct {
	set      synth.TrainingSet
	rng      *rand.Rand
	maxDepth int
	nodes    []Node
}

func growTree(set synth.TrainingSet, subsample, maxDepth int, rng *rand.Rand) Tree {
	idx := rng.Perm(len(set))[:subsample]
	b := &treeBuilder{
		set:      set,
		rng:      rng,
		maxDepth: maxDepth,
		nodes:    make([]Node, 0, 2*subsample),
	}
	b.grow(idx, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	at := len(b.nodes)
	b.nodes = append(b.nodes, Node{Depth: depth, Size: len(idx)})

	if len(idx) <= 1 || depth >= b.maxDepth {
		b.nodes[at].Leaf = true
		return at
	}

	feature, lo, hi, ok := b.pickFeature(idx)
	if !ok {
		// every remaining point is identical
		b.nodes[at].Leaf = true
		return at
	}

	threshold := lo + b.rng.Float64()*(hi-lo)
	if threshold >= hi {
		threshold = lo
	}
	split := partition(b.set, idx, feature, threshold)

	left := b.grow(idx[:split], depth+1)
	right := b.grow(idx[split:], depth+1)

	n := &b.nodes[at]
	n.Feature = feature
	n.Threshold = threshold
	n.Left = left
	n.Right = right
	return at
}

// pickFeature chooses uniformly among the features that still vary inside idx.
func (b *treeBuilder) pickFeature(idx []int) (int, float64, float64, bool) {
	lo := b.set[idx[0]]
	hi := lo
	for _, j := range idx[1:] {
		v := b.set[j]
		for f := 0; f < models.NumFeatures; f++ {
			if v[f] < lo[f] {
				lo[f] = v[f]
			}
			if v[f] > hi[f] {
				hi[f] = v[f]
			}
		}
	}

	candidates := make([]int, 0, models.NumFeatures)
	for f := 0; f < models.NumFeatures; f++ {
		if hi[f] > lo[f] {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return 0, 0, 0, false
	}
	f := candidates[b.rng.IntN(len(candidates))]
	return f, lo[f], hi[f], true
}

// partition reorders idx in place so points with v[feature] <= threshold come
// first, and returns how many there are.
func partition(set synth.TrainingSet, idx []int, feature int, threshold float64) int {
	split := 0
	for i, j := range idx {
		if set[j][feature] <= threshold {
			idx[split], idx[i] = idx[i], idx[split]
			split++
		}
	}
	return split
}
