package services

import "fmt"

// ridgeLambda 正規方程式の対角に足す微小な正則化項。ラグ系特徴は強く共線に
// なり得るため、これが無いとCholesky分解が特異行列で失敗する。
const ridgeLambda = 1e-6

// linearModel 標準化済み特徴量に対する最小二乗線形回帰。
// 係数は標準化スケール上の値を保持し、予測時に同じ変換を適用する。
type linearModel struct {
	means     []float64
	stds      []float64 // 分散0の列は0のまま（その列は予測に寄与しない）
	coefs     []float64
	intercept float64
}

// fitLinear y ~ X の線形回帰を学習する。各列を平均0・分散1に標準化してから
// 正規方程式 X'X β = X'y をCholesky分解で解く。
func fitLinear(X [][]float64, y []float64) (*linearModel, error) {
	n := len(X)
	if n == 0 {
		return nil, fmt.Errorf("empty design matrix")
	}
	p := len(X[0])

	means := make([]float64, p)
	stds := make([]float64, p)
	for j := 0; j < p; j++ {
		col := make([]float64, n)
		for i := 0; i < n; i++ {
			col[i] = X[i][j]
		}
		means[j] = calculateMean(col)
		stds[j] = calculateStandardDeviation(col)
	}

	// 標準化。分散0の列は全て0になり、正則化により係数も0に落ちる。
	Z := make([][]float64, n)
	for i := 0; i < n; i++ {
		Z[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			if stds[j] > 0 {
				Z[i][j] = (X[i][j] - means[j]) / stds[j]
			}
		}
	}

	meanY := calculateMean(y)

	// Z'Z と Z'(y - meanY) を構築（切片は中心化で分離する）
	ZtZ := make([][]float64, p)
	for j := 0; j < p; j++ {
		ZtZ[j] = make([]float64, p)
		for k := 0; k <= j; k++ {
			var sum float64
			for i := 0; i < n; i++ {
				sum += Z[i][j] * Z[i][k]
			}
			ZtZ[j][k] = sum
			ZtZ[k][j] = sum
		}
		ZtZ[j][j] += ridgeLambda * float64(n)
	}
	Zty := make([]float64, p)
	for j := 0; j < p; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += Z[i][j] * (y[i] - meanY)
		}
		Zty[j] = sum
	}

	coefs, err := solveSymmetric(ZtZ, Zty)
	if err != nil {
		return nil, fmt.Errorf("solve normal equations: %w", err)
	}

	return &linearModel{
		means:     means,
		stds:      stds,
		coefs:     coefs,
		intercept: meanY,
	}, nil
}

func (m *linearModel) predictRow(x []float64) float64 {
	pred := m.intercept
	for j, v := range x {
		if m.stds[j] > 0 {
			pred += m.coefs[j] * (v - m.means[j]) / m.stds[j]
		}
	}
	return pred
}

// importance 標準化係数の絶対値。スケールは呼び出し側で正規化される。
func (m *linearModel) importance() []float64 {
	out := make([]float64, len(m.coefs))
	for j, c := range m.coefs {
		if c < 0 {
			c = -c
		}
		out[j] = c
	}
	return out
}
