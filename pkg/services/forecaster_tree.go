package services

import (
	"fmt"
	"math/rand"
	"sort"
)

// アンサンブルのハイパーパラメータは固定。学習コストはこの2つで抑えられるため
// 外部からのキャンセルは不要。
const (
	forestTrees    = 100
	forestMaxDepth = 8
	forestMinLeaf  = 2
)

// forestModel 決定木アンサンブル（ランダムフォレスト回帰）。
// 同じシードからは常に同一の森が育つ：ブートストラップ抽出・特徴量
// サブサンプリングの乱数列はすべて木ごとの固定シードから導出する。
type forestModel struct {
	trees       []*treeNode
	importances []float64 // 特徴量ごとの不純度（SSE）減少量の合計
}

type treeNode struct {
	leaf      bool
	value     float64 // 葉の予測値（ノード内平均）
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

// fitForest ブートストラップ標本ごとに回帰木を学習する。
func fitForest(X [][]float64, y []float64, seed int64) (*forestModel, error) {
	n := len(X)
	if n == 0 {
		return nil, fmt.Errorf("empty design matrix")
	}
	p := len(X[0])
	mtry := p / 3
	if mtry < 1 {
		mtry = 1
	}

	model := &forestModel{
		trees:       make([]*treeNode, forestTrees),
		importances: make([]float64, p),
	}

	for t := 0; t < forestTrees; t++ {
		// 木ごとに独立かつ再現可能な乱数列
		rng := rand.New(rand.NewSource(seed + int64(t)))

		indices := make([]int, n)
		for i := range indices {
			indices[i] = rng.Intn(n)
		}

		model.trees[t] = buildTree(X, y, indices, 0, mtry, rng, model.importances)
	}

	return model, nil
}

// buildTree 分散減少が最大になる分割を貪欲に選んで木を成長させる。
// 分割ごとの不純度減少は importances に加算される。
func buildTree(X [][]float64, y []float64, indices []int, depth, mtry int, rng *rand.Rand, importances []float64) *treeNode {
	mean, sse := meanAndSSE(y, indices)

	if depth >= forestMaxDepth || len(indices) < 2*forestMinLeaf || sse == 0 {
		return &treeNode{leaf: true, value: mean}
	}

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0
	var bestLeft, bestRight []int

	// 特徴量サブサンプリング（回帰の慣例どおり p/3 本）
	candidates := rng.Perm(len(X[0]))[:mtry]

	for _, feature := range candidates {
		sorted := make([]int, len(indices))
		copy(sorted, indices)
		sort.Slice(sorted, func(a, b int) bool {
			va, vb := X[sorted[a]][feature], X[sorted[b]][feature]
			if va != vb {
				return va < vb
			}
			return sorted[a] < sorted[b] // 決定性のためのタイブレーク
		})

		// 前置和でどの分割位置の SSE も O(1) で評価する
		prefixSum := make([]float64, len(sorted)+1)
		prefixSq := make([]float64, len(sorted)+1)
		for i, idx := range sorted {
			prefixSum[i+1] = prefixSum[i] + y[idx]
			prefixSq[i+1] = prefixSq[i] + y[idx]*y[idx]
		}
		total := float64(len(sorted))
		nodeSSE := prefixSq[len(sorted)] - prefixSum[len(sorted)]*prefixSum[len(sorted)]/total

		for i := forestMinLeaf; i <= len(sorted)-forestMinLeaf; i++ {
			// 同値の間では分割できない
			if X[sorted[i-1]][feature] == X[sorted[i]][feature] {
				continue
			}
			nl, nr := float64(i), total-float64(i)
			sseL := prefixSq[i] - prefixSum[i]*prefixSum[i]/nl
			sumR := prefixSum[len(sorted)] - prefixSum[i]
			sqR := prefixSq[len(sorted)] - prefixSq[i]
			sseR := sqR - sumR*sumR/nr

			gain := nodeSSE - sseL - sseR
			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = (X[sorted[i-1]][feature] + X[sorted[i]][feature]) / 2
				bestLeft = append([]int(nil), sorted[:i]...)
				bestRight = append([]int(nil), sorted[i:]...)
			}
		}
	}

	if bestFeature < 0 {
		return &treeNode{leaf: true, value: mean}
	}

	importances[bestFeature] += bestGain

	return &treeNode{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      buildTree(X, y, bestLeft, depth+1, mtry, rng, importances),
		right:     buildTree(X, y, bestRight, depth+1, mtry, rng, importances),
	}
}

func meanAndSSE(y []float64, indices []int) (float64, float64) {
	if len(indices) == 0 {
		return 0, 0
	}
	var sum float64
	for _, idx := range indices {
		sum += y[idx]
	}
	mean := sum / float64(len(indices))
	var sse float64
	for _, idx := range indices {
		d := y[idx] - mean
		sse += d * d
	}
	return mean, sse
}

func (m *forestModel) predictRow(x []float64) float64 {
	var sum float64
	for _, tree := range m.trees {
		node := tree
		for !node.leaf {
			if x[node.feature] <= node.threshold {
				node = node.left
			} else {
				node = node.right
			}
		}
		sum += node.value
	}
	return sum / float64(len(m.trees))
}

func (m *forestModel) importance() []float64 {
	out := make([]float64, len(m.importances))
	copy(out, m.importances)
	return out
}
