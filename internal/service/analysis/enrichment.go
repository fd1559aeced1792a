package analysis

import (
	"fmt"

	"go.uber.org/zap"
)

// Enrichment 可选步骤的结果：要么是计算出的值，要么是记录过日志的缺省值
type Enrichment[T any] struct {
	Step    string
	Value   T
	Omitted bool
	Reason  string
}

// Enrich 执行可选步骤，错误或 panic 都转换为缺省值
func Enrich[T any](logger *zap.SugaredLogger, step string, fallback T, fn func() (T, error)) (e Enrichment[T]) {
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("%s panicked, using default: %v", step, p)
			e = Enrichment[T]{Step: step, Value: fallback, Omitted: true, Reason: fmt.Sprintf("panic: %v", p)}
		}
	}()

	v, err := fn()
	if err != nil {
		logger.Warnf("%s failed, using default: %v", step, err)
		return Enrichment[T]{Step: step, Value: fallback, Omitted: true, Reason: err.Error()}
	}
	return Enrichment[T]{Step: step, Value: v}
}

// composer 收集被降级的步骤
type composer struct {
	logger  *zap.SugaredLogger
	omitted []string
}

func newComposer(logger *zap.SugaredLogger) *composer {
	return &composer{logger: logger}
}

// compose 执行一个可选步骤并记录降级
func compose[T any](c *composer, step string, fallback T, fn func() (T, error)) T {
	e := Enrich(c.logger, step, fallback, fn)
	if e.Omitted {
		c.omitted = append(c.omitted, step)
	}
	return e.Value
}

// pure 包装不会返回错误的步骤
func pure[T any](fn func() T) func() (T, error) {
	return func() (T, error) { return fn(), nil }
}
