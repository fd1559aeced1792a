// Package training 为每个目标构建训练集并以有界并发调度模型训练
// 单个目标失败只影响该目标，不影响其他目标
package training

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ashwinyue/next-analytics/internal/metrics"
	"github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/service/table"
)

// Config 编排器配置
type Config struct {
	MaxWorkers     int
	TaskTimeout    time.Duration
	MaxCategories  int
	ClassThreshold int
}

// Options 单次训练请求的参数
type Options struct {
	ProblemType model.ProblemType
	// SelectedModels 为空时使用自动模型集合
	SelectedModels []string
}

// TargetResult 单个目标的训练结果，Err 非空表示该目标失败
type TargetResult struct {
	Target      string
	ProblemType model.ProblemType
	Features    []string
	Models      []ModelResult
	Excluded    []string
	Notes       []string
	Corrected   string
	Err         error
}

// FailureMessage 目标失败时的反馈
func (r TargetResult) FailureMessage() string {
	if r.Err == nil {
		return ""
	}
	return fmt.Sprintf("Training failed for target '%s': %v", r.Target, r.Err)
}

// Orchestrator 训练编排器
type Orchestrator struct {
	trainer Trainer
	cfg     Config
	logger  *zap.SugaredLogger
}

// NewOrchestrator 创建编排器
func NewOrchestrator(trainer Trainer, cfg Config, logger *zap.SugaredLogger) *Orchestrator {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 2 * time.Minute
	}
	if cfg.MaxCategories <= 0 {
		cfg.MaxCategories = 50
	}
	if cfg.ClassThreshold <= 0 {
		cfg.ClassThreshold = 20
	}
	return &Orchestrator{trainer: trainer, cfg: cfg, logger: logger}
}

// Workers 实际并发数 min(目标数, MaxWorkers)
func (o *Orchestrator) Workers(targets int) int {
	if targets < o.cfg.MaxWorkers {
		return targets
	}
	return o.cfg.MaxWorkers
}

// Run 每个目标一个任务，结果按派发顺序返回，与完成顺序无关
// 并发槽位由训练协程持有直至其退出，超时的任务在真正结束前不释放槽位
func (o *Orchestrator) Run(ctx context.Context, tb *table.Table, jobs []Job, opts Options) []TargetResult {
	results := make([]TargetResult, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	sem := semaphore.NewWeighted(int64(o.Workers(len(jobs))))
	var g errgroup.Group
	for i, job := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = TargetResult{Target: job.Target, Err: err}
			continue
		}
		g.Go(func() error {
			results[i] = o.runWithTimeout(ctx, tb, job, opts, func() { sem.Release(1) })
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		outcome := "success"
		if r.Err != nil {
			outcome = "failure"
			o.logger.Warnf("%s", r.FailureMessage())
		}
		metrics.TrainingTasks.WithLabelValues(outcome).Inc()
	}
	return results
}

// runWithTimeout 超时视为该目标失败，超时后的训练结果被丢弃
// release 在训练协程退出时调用
func (o *Orchestrator) runWithTimeout(ctx context.Context, tb *table.Table, job Job, opts Options, release func()) TargetResult {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.TaskTimeout)
	defer cancel()

	done := make(chan TargetResult, 1)
	go func() {
		defer release()
		defer func() {
			if p := recover(); p != nil {
				done <- TargetResult{Target: job.Target, Err: fmt.Errorf("panic: %v", p)}
			}
		}()
		done <- o.runTarget(ctx, tb, job, opts)
	}()

	select {
	case r := <-done:
		if r.Err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			r.Err = o.timeoutError()
		}
		return r
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = o.timeoutError()
		} else {
			o.logger.Warnf("training for target %s abandoned: %v", job.Target, err)
		}
		return TargetResult{Target: job.Target, Err: err}
	}
}

func (o *Orchestrator) timeoutError() error {
	return fmt.Errorf("timed out after %s", o.cfg.TaskTimeout)
}

func (o *Orchestrator) runTarget(ctx context.Context, tb *table.Table, job Job, opts Options) TargetResult {
	res := TargetResult{Target: job.Target}

	set, asm, err := BuildSet(tb, job, SubsetOptions{
		ProblemType:    opts.ProblemType,
		MaxCategories:  o.cfg.MaxCategories,
		ClassThreshold: o.cfg.ClassThreshold,
	})
	res.ProblemType = asm.ProblemType
	res.Excluded = asm.Excluded
	res.Notes = asm.Notes
	res.Corrected = asm.Corrected
	if asm.Corrected != "" {
		o.logger.Infof("%s", asm.Corrected)
	}
	if err != nil {
		res.Err = err
		return res
	}
	res.Features = set.Selected

	models, note := o.chooseModels(set.ProblemType, opts.SelectedModels)
	if note != "" {
		res.Notes = append(res.Notes, note)
	}

	var failures []string
	for _, name := range models {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		start := time.Now()
		fit, err := o.trainer.Train(ctx, set, name)
		elapsed := time.Since(start)
		if err != nil {
			o.logger.Warnf("model %s skipped for target %s: %v", name, job.Target, err)
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		metrics.TrainingDuration.WithLabelValues(name, string(set.ProblemType)).Observe(elapsed.Seconds())

		res.Models = append(res.Models, ModelResult{
			ModelName:         name,
			Target:            job.Target,
			ProblemType:       set.ProblemType,
			Features:          set.Features,
			Metrics:           fit.Metrics,
			FeatureImportance: fit.FeatureImportance,
			TrainingTime:      elapsed.Seconds(),
			Hyperparameters:   fit.Hyperparameters,
		})
	}

	if len(res.Models) == 0 {
		if len(failures) == 0 {
			res.Err = fmt.Errorf("no models available for %s", set.ProblemType)
		} else {
			res.Err = fmt.Errorf("all models failed (%s)", strings.Join(failures, "; "))
		}
	} else if len(failures) > 0 {
		res.Notes = append(res.Notes, fmt.Sprintf("Skipped models for target '%s': %s", job.Target, strings.Join(failures, "; ")))
	}
	return res
}

// chooseModels 用户选择的模型与支持的集合取交集，为空时回退到自动集合
func (o *Orchestrator) chooseModels(pt model.ProblemType, selected []string) ([]string, string) {
	auto := o.trainer.Models(pt)
	if len(selected) == 0 {
		return auto, ""
	}

	var chosen, unsupported []string
	for _, name := range selected {
		if contains(auto, name) {
			if !contains(chosen, name) {
				chosen = append(chosen, name)
			}
		} else {
			unsupported = append(unsupported, name)
		}
	}
	if len(chosen) == 0 {
		return auto, fmt.Sprintf("Selected models %s do not support %s; using the automatic model set", strings.Join(selected, ", "), pt)
	}
	if len(unsupported) > 0 {
		return chosen, fmt.Sprintf("Ignored models not supported for %s: %s", pt, strings.Join(unsupported, ", "))
	}
	return chosen, ""
}
