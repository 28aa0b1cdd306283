package services

import (
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"sales-forecast-api/pkg/models"
)

// ModelKind 学習するモデルの種別
type ModelKind string

const (
	ModelEnsemble ModelKind = "ensemble" // 決定木アンサンブル（ランダムフォレスト回帰）
	ModelLinear   ModelKind = "linear"   // 標準化済み特徴量に対する線形回帰
)

// DefaultMinTrainingRows 学習に必要な最低行数のデフォルト。
// これ未満の履歴ではラグ特徴量が意味を持たない。
const DefaultMinTrainingRows = 14

// trainSplitRatio 時系列分割での学習データ比率（残りがホールドアウト）
const trainSplitRatio = 0.8

// regressor 学習済みモデルの内部表現。predictRow は状態を変更しない。
type regressor interface {
	predictRow(x []float64) float64
	importance() []float64 // 特徴量数ぶんの生スコア。重要度を持たないモデルは nil
}

// TrainedModel 学習済みモデルとそのメタデータ。学習後は不変であり、
// predict / evaluate / forecast から再学習なしで再利用できる。
type TrainedModel struct {
	Kind         ModelKind
	FeatureNames []string
	TrainedAt    time.Time
	Seed         int64
	reg          regressor
}

// Dataset 特徴量行列と目的変数の組。行は日付順に並ぶ。
type Dataset struct {
	FeatureNames []string
	Dates        []time.Time
	X            [][]float64
	Y            []float64
}

// Rows returns the number of rows in the dataset.
func (d *Dataset) Rows() int {
	return len(d.X)
}

// ForecasterService 回帰モデルの学習・評価・予測を担当するサービス
type ForecasterService struct {
	minTrainingRows int
}

// NewForecasterService 新しい予測サービスを作成。minTrainingRows が0以下なら
// デフォルト値を使う。
func NewForecasterService(minTrainingRows int) *ForecasterService {
	if minTrainingRows <= 0 {
		minTrainingRows = DefaultMinTrainingRows
	}
	return &ForecasterService{minTrainingRows: minTrainingRows}
}

// PrepareTrainingData 特徴量と目的変数（日次売上）を日付で揃え、時系列順の
// 学習/評価データに分割する。分割は常に時系列の前方/後方で行い、シャッフルは
// しない（未来データの混入を防ぐため）。
func (f *ForecasterService) PrepareTrainingData(features []models.FeatureVector, series []models.TimeSeriesPoint) (train, test *Dataset, err error) {
	const op = "prepare_training_data"

	if len(features) == 0 {
		return nil, nil, models.NewDataError(op, -1, "", "特徴量が空です")
	}

	revenueByDate := make(map[time.Time]float64, len(series))
	for _, p := range series {
		revenueByDate[truncateToDay(p.Date)] = p.Revenue
	}

	names := models.FeatureNames()
	all := &Dataset{FeatureNames: names}
	for i, fv := range features {
		target, ok := revenueByDate[truncateToDay(fv.Date)]
		if !ok {
			return nil, nil, models.NewDataError(op, i, "date",
				"特徴量の日付に対応する系列上の点がありません: "+fv.Date.Format("2006-01-02"))
		}
		if len(fv.Values) != len(names) {
			return nil, nil, models.NewValidationError("features",
				"特徴量スキーマが一致しません")
		}
		all.Dates = append(all.Dates, fv.Date)
		all.X = append(all.X, fv.Values)
		all.Y = append(all.Y, target)
	}

	n := all.Rows()
	trainRows := int(float64(n) * trainSplitRatio)
	if trainRows >= n {
		trainRows = n - 1
	}
	if trainRows < 1 {
		return nil, nil, models.NewModelError(op, "分割後の学習データが空になります", nil)
	}

	train = &Dataset{FeatureNames: names, Dates: all.Dates[:trainRows], X: all.X[:trainRows], Y: all.Y[:trainRows]}
	test = &Dataset{FeatureNames: names, Dates: all.Dates[trainRows:], X: all.X[trainRows:], Y: all.Y[trainRows:]}

	log.Printf("✂️ [分割] 学習 %d行 / 評価 %d行（時系列順、シャッフルなし）", train.Rows(), test.Rows())

	return train, test, nil
}

// Train 指定された種別のモデルを学習する。アンサンブルはシードが同じなら
// 常に同一のモデルになる（木の本数・深さ・乱数列すべて固定）。
func (f *ForecasterService) Train(train *Dataset, kind ModelKind, seed int64) (*TrainedModel, error) {
	const op = "train"

	if train == nil || train.Rows() == 0 {
		return nil, models.NewModelError(op, "学習データが空です", nil)
	}
	if train.Rows() < f.minTrainingRows {
		return nil, models.NewModelError(op,
			fmt.Sprintf("学習データが不足しています（%d行 < 最低%d行）", train.Rows(), f.minTrainingRows), nil)
	}
	if len(train.X) != len(train.Y) {
		return nil, models.NewModelError(op, "特徴量と目的変数の行数が一致しません", nil)
	}

	var reg regressor
	var err error
	switch kind {
	case ModelEnsemble:
		reg, err = fitForest(train.X, train.Y, seed)
	case ModelLinear:
		reg, err = fitLinear(train.X, train.Y)
	default:
		return nil, models.NewValidationError("model_kind",
			"未対応のモデル種別です: "+string(kind)+"（ensemble または linear を指定してください）")
	}
	if err != nil {
		return nil, models.NewModelError(op, "学習に失敗しました", err)
	}

	log.Printf("🧠 [学習] %s モデルを学習しました（%d行, seed=%d）", kind, train.Rows(), seed)

	return &TrainedModel{
		Kind:         kind,
		FeatureNames: train.FeatureNames,
		TrainedAt:    time.Now().UTC(),
		Seed:         seed,
		reg:          reg,
	}, nil
}

// Predict 学習済みモデルで予測する。モデルにも入力にも副作用はない。
// 特徴量スキーマがモデルの記録と一致しない場合は ModelError を返す。
func (f *ForecasterService) Predict(model *TrainedModel, ds *Dataset) ([]float64, error) {
	const op = "predict"

	if model == nil || model.reg == nil {
		return nil, models.NewModelError(op, "モデルが学習されていません", nil)
	}
	if err := checkSchema(model, ds.FeatureNames); err != nil {
		return nil, err
	}

	preds := make([]float64, ds.Rows())
	for i, row := range ds.X {
		if len(row) != len(model.FeatureNames) {
			return nil, models.NewModelError(op, "特徴量の列数がモデルと一致しません", nil)
		}
		preds[i] = model.reg.predictRow(row)
	}
	return preds, nil
}

// Evaluate ホールドアウトデータでモデルを評価する。学習も状態変更も行わない。
func (f *ForecasterService) Evaluate(model *TrainedModel, test *Dataset) (*models.EvaluationReport, error) {
	const op = "evaluate"

	if test == nil || test.Rows() == 0 {
		return nil, models.NewModelError(op, "評価データが空です", nil)
	}

	preds, err := f.Predict(model, test)
	if err != nil {
		return nil, err
	}

	n := float64(test.Rows())
	meanY := calculateMean(test.Y)
	var absSum, sqSum, totSum float64
	residuals := make([]float64, test.Rows())
	for i, y := range test.Y {
		r := y - preds[i]
		residuals[i] = r
		absSum += math.Abs(r)
		sqSum += r * r
		d := y - meanY
		totSum += d * d
	}

	mae := absSum / n
	rmse := math.Sqrt(sqSum / n)
	r2 := 0.0
	if totSum > 0 {
		r2 = 1 - sqSum/totSum
	} else if sqSum == 0 {
		r2 = 1
	}

	if math.IsNaN(mae) || math.IsInf(mae, 0) || math.IsNaN(rmse) || math.IsInf(rmse, 0) || math.IsNaN(r2) || math.IsInf(r2, 0) {
		return nil, models.NewModelError(op, "評価指標が有限値になりませんでした", nil)
	}

	report := &models.EvaluationReport{
		MAE:               mae,
		RMSE:              rmse,
		R2:                r2,
		ResidualStd:       calculateStandardDeviation(residuals),
		TestRows:          test.Rows(),
		FeatureImportance: f.FeatureImportance(model),
	}

	log.Printf("📊 [評価] MAE=%.2f RMSE=%.2f R²=%.3f（%d行）", mae, rmse, r2, test.Rows())

	return report, nil
}

// FeatureImportance 特徴量重要度をスコア降順で返す。アンサンブルは不純度減少の
// 合計を1に正規化した値、線形モデルは標準化係数の絶対値を正規化した値。
// 重要度を持たないモデルは nil を返す。
func (f *ForecasterService) FeatureImportance(model *TrainedModel) []models.FeatureScore {
	if model == nil || model.reg == nil {
		return nil
	}
	raw := model.reg.importance()
	if raw == nil {
		return nil
	}

	var total float64
	for _, v := range raw {
		total += v
	}

	scores := make([]models.FeatureScore, len(raw))
	for i, v := range raw {
		score := 0.0
		if total > 0 {
			score = v / total
		}
		scores[i] = models.FeatureScore{Name: model.FeatureNames[i], Score: score}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Name < scores[j].Name
	})
	return scores
}

func checkSchema(model *TrainedModel, names []string) error {
	if len(names) != len(model.FeatureNames) {
		return models.NewModelError("predict", "特徴量スキーマの列数がモデルと一致しません", nil)
	}
	for i, name := range names {
		if name != model.FeatureNames[i] {
			return models.NewModelError("predict",
				"特徴量スキーマが一致しません: "+name+" != "+model.FeatureNames[i], nil)
		}
	}
	return nil
}
