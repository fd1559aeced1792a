package sqlquery

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	"github.com/ashwinyue/next-analytics/internal/apperr"
	"github.com/ashwinyue/next-analytics/internal/service/parser"
	"github.com/ashwinyue/next-analytics/internal/service/table"
)

const (
	// DefaultMaxRows 单次查询返回的最大行数
	DefaultMaxRows = 1000
	defaultTimeout = 30 * time.Second
)

// Result 查询结果
type Result struct {
	SQL       string           `json:"sql"`
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
	Elapsed   float64          `json:"elapsed_seconds"`
}

// Runner 查询执行器，每次查询使用独立的 DuckDB 内存库
type Runner struct {
	validator *Validator
	maxRows   int
	timeout   time.Duration
	logger    *zap.SugaredLogger
}

// NewRunner 创建执行器
func NewRunner(maxRows int, timeout time.Duration, logger *zap.SugaredLogger) *Runner {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Runner{validator: NewValidator(), maxRows: maxRows, timeout: timeout, logger: logger}
}

// Run 校验并执行查询，limit 超过上限时按上限截断
func (r *Runner) Run(ctx context.Context, tb *table.Table, query string, limit int) (*Result, error) {
	q, err := r.validator.Validate(query)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > r.maxRows {
		limit = r.maxRows
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := load(ctx, db, tb); err != nil {
		return nil, err
	}
	// 装载完成后禁止访问文件与网络
	if _, err := db.ExecContext(ctx, "SET enable_external_access = false"); err != nil {
		return nil, fmt.Errorf("failed to lock down duckdb: %w", err)
	}

	// 多取一行用于判断是否截断
	wrapped := fmt.Sprintf("SELECT * FROM (\n%s\n) AS q LIMIT %d", q, limit+1)
	rows, err := db.QueryContext(ctx, wrapped)
	if err != nil {
		return nil, apperr.Validation("query failed: %v", err)
	}
	defer rows.Close()

	out, err := parser.ReadRows(rows)
	if err != nil {
		return nil, apperr.Validation("query failed: %v", err)
	}

	res := &Result{SQL: q, Columns: out.Columns()}
	if out.NumRows() > limit {
		res.Truncated = true
		out = out.Head(limit)
	}
	res.Rows = out.Records()
	res.RowCount = len(res.Rows)
	res.Elapsed = time.Since(start).Seconds()
	r.logger.Infof("query on %d rows returned %d rows (truncated=%v) in %s", tb.NumRows(), res.RowCount, res.Truncated, time.Since(start).Round(time.Millisecond))
	return res, nil
}

// load 建表并写入全部行
func load(ctx context.Context, db *sql.DB, tb *table.Table) error {
	columns := tb.Columns()
	if len(columns) == 0 {
		return apperr.Validation("dataset has no columns")
	}
	kinds := tb.DTypes()

	defs := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c) + " " + sqlType(kinds[c])
		marks[i] = "?"
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", TableName, strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create query table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", TableName, strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("failed to prepare load: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for row := 0; row < tb.NumRows(); row++ {
		for i, c := range columns {
			args[i] = bindValue(tb.Value(c, row), kinds[c])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to load row %d: %w", row, err)
		}
	}
	return tx.Commit()
}

func sqlType(k table.Kind) string {
	switch k {
	case table.KindInt:
		return "BIGINT"
	case table.KindFloat:
		return "DOUBLE"
	case table.KindBool:
		return "BOOLEAN"
	case table.KindDatetime:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

// bindValue 将单元格转换为与列类型一致的参数
func bindValue(v any, k table.Kind) any {
	if table.IsMissing(v) {
		return nil
	}
	switch k {
	case table.KindFloat:
		if f, ok := table.ToFloat(v); ok {
			return f
		}
		return nil
	case table.KindString:
		if s, ok := v.(string); ok {
			return s
		}
		return table.Key(v)
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
