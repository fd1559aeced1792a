package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ashwinyue/next-analytics/internal/model"
)

// 内置算法
const (
	ModelLinearRegression = "linear_regression"
	ModelRidgeRegression  = "ridge_regression"
	ModelMeanBaseline     = "mean_baseline"
	ModelNearestCentroid  = "nearest_centroid"
	ModelKNNClassifier    = "knn_classifier"
	ModelMajorityBaseline = "majority_baseline"
)

const (
	testFraction = 0.2
	ridgeAlpha   = 1.0
	// olsJitter 避免共线特征导致 Cholesky 分解失败
	olsJitter = 1e-9
	knnK      = 5
)

// Builtin 基于 gonum 的内置训练器
// 按固定种子做 80/20 划分，特征在训练集上标准化
type Builtin struct {
	Seed int64
}

// NewBuiltin 创建内置训练器
func NewBuiltin(seed int64) *Builtin {
	return &Builtin{Seed: seed}
}

// Models 问题类型对应的自动模型集合
func (b *Builtin) Models(pt model.ProblemType) []string {
	switch pt {
	case model.ProblemRegression:
		return []string{ModelLinearRegression, ModelRidgeRegression, ModelMeanBaseline}
	case model.ProblemClassification:
		return []string{ModelNearestCentroid, ModelKNNClassifier, ModelMajorityBaseline}
	}
	return nil
}

// Train 训练单个模型并在留出集上评估
func (b *Builtin) Train(ctx context.Context, set *Set, modelName string) (*Fit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !contains(b.Models(set.ProblemType), modelName) {
		return nil, fmt.Errorf("model %s does not support %s", modelName, set.ProblemType)
	}
	if set.Len() < minRows {
		return nil, fmt.Errorf("not enough rows to train: %d", set.Len())
	}

	train, test := split(set.Len(), b.Seed)
	sc := newScaler(set.X, train)

	switch set.ProblemType {
	case model.ProblemRegression:
		return b.trainRegression(ctx, set, modelName, sc, train, test)
	default:
		return b.trainClassification(ctx, set, modelName, sc, train, test)
	}
}

// ========== 回归 ==========

func (b *Builtin) trainRegression(ctx context.Context, set *Set, modelName string, sc *scaler, train, test []int) (*Fit, error) {
	yTrain := pick(set.Y, train)
	intercept := stat.Mean(yTrain, nil)

	var coef []float64
	hyper := map[string]interface{}{}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch modelName {
	case ModelLinearRegression:
		c, err := solveNormal(sc.matrix(set.X, train), yTrain, intercept, olsJitter)
		if err != nil {
			return nil, err
		}
		coef = c
		hyper["fit_intercept"] = true
	case ModelRidgeRegression:
		c, err := solveNormal(sc.matrix(set.X, train), yTrain, intercept, ridgeAlpha)
		if err != nil {
			return nil, err
		}
		coef = c
		hyper["alpha"] = ridgeAlpha
	case ModelMeanBaseline:
		coef = make([]float64, len(set.Features))
		hyper["strategy"] = "mean"
	}

	actual := pick(set.Y, test)
	predicted := make([]float64, len(test))
	for i, r := range test {
		predicted[i] = intercept + floats.Dot(coef, sc.row(set.X[r]))
	}

	return &Fit{
		Metrics:           Evaluate(RegressionMetrics(), &MetricInput{Actual: actual, Predicted: predicted}),
		FeatureImportance: normalizedImportance(set.Features, coef),
		Hyperparameters:   hyper,
	}, nil
}

// solveNormal 求解 (ZᵀZ + λI)β = Zᵀ(y - ȳ)
func solveNormal(z *mat.Dense, y []float64, mean, lambda float64) ([]float64, error) {
	_, p := z.Dims()
	centered := make([]float64, len(y))
	for i, v := range y {
		centered[i] = v - mean
	}

	var ztz mat.SymDense
	ztz.SymOuterK(1, z.T())
	for i := 0; i < p; i++ {
		ztz.SetSym(i, i, ztz.At(i, i)+lambda)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(&ztz); !ok {
		return nil, fmt.Errorf("design matrix is singular")
	}

	var zty mat.VecDense
	zty.MulVec(z.T(), mat.NewVecDense(len(centered), centered))

	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &zty); err != nil {
		return nil, fmt.Errorf("failed to solve least squares: %w", err)
	}

	coef := make([]float64, p)
	for i := range coef {
		coef[i] = beta.AtVec(i)
		if math.IsNaN(coef[i]) || math.IsInf(coef[i], 0) {
			return nil, fmt.Errorf("least squares produced non-finite coefficients")
		}
	}
	return coef, nil
}

// ========== 分类 ==========

func (b *Builtin) trainClassification(ctx context.Context, set *Set, modelName string, sc *scaler, train, test []int) (*Fit, error) {
	trainLabels := make([]string, len(train))
	for i, r := range train {
		trainLabels[i] = set.Labels[r]
	}
	classes := uniqueSorted(trainLabels)
	if len(classes) < 2 {
		return nil, fmt.Errorf("training split contains a single class")
	}

	trainRows := make([][]float64, len(train))
	for i, r := range train {
		trainRows[i] = sc.row(set.X[r])
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	centroids := centroidsOf(trainRows, trainLabels, classes)

	var predict func(x []float64) string
	hyper := map[string]interface{}{}
	importance := centroidSpread(set.Features, centroids)

	switch modelName {
	case ModelNearestCentroid:
		predict = func(x []float64) string { return nearestCentroid(x, classes, centroids) }
		hyper["metric"] = "euclidean"
	case ModelKNNClassifier:
		k := knnK
		if k > len(trainRows) {
			k = len(trainRows)
		}
		predict = func(x []float64) string { return knnVote(x, trainRows, trainLabels, k) }
		hyper["n_neighbors"] = k
	case ModelMajorityBaseline:
		majority := majorityLabel(trainLabels)
		predict = func([]float64) string { return majority }
		hyper["strategy"] = "most_frequent"
		importance = normalizedImportance(set.Features, nil)
	}

	actual := make([]string, len(test))
	predicted := make([]string, len(test))
	for i, r := range test {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		actual[i] = set.Labels[r]
		predicted[i] = predict(sc.row(set.X[r]))
	}

	return &Fit{
		Metrics:           Evaluate(ClassificationMetrics(), &MetricInput{ActualLabels: actual, PredictedLabels: predicted}),
		FeatureImportance: importance,
		Hyperparameters:   hyper,
	}, nil
}

func centroidsOf(rows [][]float64, labels, classes []string) map[string][]float64 {
	p := 0
	if len(rows) > 0 {
		p = len(rows[0])
	}
	sums := make(map[string][]float64, len(classes))
	counts := make(map[string]float64, len(classes))
	for _, c := range classes {
		sums[c] = make([]float64, p)
	}
	for i, row := range rows {
		floats.Add(sums[labels[i]], row)
		counts[labels[i]]++
	}
	for c, s := range sums {
		floats.Scale(1/counts[c], s)
	}
	return sums
}

func nearestCentroid(x []float64, classes []string, centroids map[string][]float64) string {
	best, bestDist := classes[0], math.Inf(1)
	for _, c := range classes {
		if d := floats.Distance(x, centroids[c], 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// knnVote 多数投票，票数相同时取距离之和较小的类别
func knnVote(x []float64, rows [][]float64, labels []string, k int) string {
	type neighbor struct {
		dist  float64
		label string
	}
	ns := make([]neighbor, len(rows))
	for i, row := range rows {
		ns[i] = neighbor{floats.Distance(x, row, 2), labels[i]}
	}
	sort.SliceStable(ns, func(i, j int) bool { return ns[i].dist < ns[j].dist })

	votes := make(map[string]int)
	dist := make(map[string]float64)
	for _, n := range ns[:k] {
		votes[n.label]++
		dist[n.label] += n.dist
	}
	best := ns[0].label
	for label, v := range votes {
		if v > votes[best] || (v == votes[best] && dist[label] < dist[best]) ||
			(v == votes[best] && dist[label] == dist[best] && label < best) {
			best = label
		}
	}
	return best
}

func majorityLabel(labels []string) string {
	counts := make(map[string]int)
	for _, l := range labels {
		counts[l]++
	}
	best := ""
	for l, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && l < best) {
			best = l
		}
	}
	return best
}

// centroidSpread 各特征上类中心的极差，作为重要性
func centroidSpread(features []string, centroids map[string][]float64) map[string]float64 {
	spread := make([]float64, len(features))
	for j := range features {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, c := range centroids {
			lo = math.Min(lo, c[j])
			hi = math.Max(hi, c[j])
		}
		spread[j] = hi - lo
	}
	return normalizedImportance(features, spread)
}

// ========== 辅助函数 ==========

// split 按种子打乱后取 20% 作为测试集，至少 1 行
func split(n int, seed int64) (train, test []int) {
	idx := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(math.Round(float64(n) * testFraction))
	if nTest < 1 {
		nTest = 1
	}
	test = append([]int{}, idx[:nTest]...)
	train = append([]int{}, idx[nTest:]...)
	sort.Ints(test)
	sort.Ints(train)
	return train, test
}

// scaler 训练集上的 z-score 标准化
type scaler struct {
	mean, std []float64
}

func newScaler(x [][]float64, rows []int) *scaler {
	p := len(x[0])
	sc := &scaler{mean: make([]float64, p), std: make([]float64, p)}
	col := make([]float64, len(rows))
	for j := 0; j < p; j++ {
		for i, r := range rows {
			col[i] = x[r][j]
		}
		m, s := stat.MeanStdDev(col, nil)
		if s == 0 || math.IsNaN(s) {
			s = 1
		}
		sc.mean[j], sc.std[j] = m, s
	}
	return sc
}

func (sc *scaler) row(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - sc.mean[j]) / sc.std[j]
	}
	return out
}

func (sc *scaler) matrix(x [][]float64, rows []int) *mat.Dense {
	p := len(sc.mean)
	data := make([]float64, 0, len(rows)*p)
	for _, r := range rows {
		data = append(data, sc.row(x[r])...)
	}
	return mat.NewDense(len(rows), p, data)
}

// normalizedImportance |w| 归一化为和为 1；全零时各特征为 0
func normalizedImportance(features []string, weights []float64) map[string]float64 {
	out := make(map[string]float64, len(features))
	total := 0.0
	for _, w := range weights {
		total += math.Abs(w)
	}
	for j, f := range features {
		if total == 0 || j >= len(weights) {
			out[f] = 0
			continue
		}
		out[f] = math.Abs(weights[j]) / total
	}
	return out
}

func pick(vals []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = vals[r]
	}
	return out
}

func uniqueSorted(vals []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
