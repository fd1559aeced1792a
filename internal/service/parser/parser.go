// Package parser 使用 DuckDB 将上传的文件解析为表格
package parser

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/ashwinyue/next-analytics/internal/apperr"
	"github.com/ashwinyue/next-analytics/internal/service/table"
)

// readers 扩展名对应的 DuckDB 读取函数
var readers = map[string]string{
	".csv":     "read_csv_auto",
	".tsv":     "read_csv_auto",
	".json":    "read_json_auto",
	".ndjson":  "read_json_auto",
	".parquet": "read_parquet",
}

// Supported 判断扩展名是否支持
func Supported(fileName string) bool {
	_, ok := readers[strings.ToLower(filepath.Ext(fileName))]
	return ok
}

// Parse 解析上传内容
// 内容先落盘到临时文件，再由 DuckDB 内存库读取
func Parse(ctx context.Context, fileName string, r io.Reader) (*table.Table, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	reader, ok := readers[ext]
	if !ok {
		return nil, apperr.Validation("unsupported file type: %s", ext)
	}

	tmp, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to buffer upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to buffer upload: %w", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer db.Close()

	query := fmt.Sprintf("SELECT * FROM %s('%s')", reader, strings.ReplaceAll(tmp.Name(), "'", "''"))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperr.Validation("failed to parse %s: %v", fileName, err)
	}
	defer rows.Close()

	tb, err := ReadRows(rows)
	if err != nil {
		return nil, apperr.Validation("failed to parse %s: %v", fileName, err)
	}

	if tb.NumCols() == 0 || tb.NumRows() == 0 {
		return nil, apperr.Validation("file %s contains no rows", fileName)
	}
	return tb, nil
}

// ReadRows 将查询结果读入表格，列顺序与查询一致
func ReadRows(rows *sql.Rows) (*table.Table, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	tb := table.New(columns)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			values[i] = scalar(v)
		}
		tb.AppendRow(values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tb, nil
}

// scalar 将 DuckDB 特有类型转换为表格支持的标量
func scalar(v interface{}) interface{} {
	switch x := v.(type) {
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case interface{ Float64() float64 }:
		// DECIMAL
		return x.Float64()
	}
	return v
}
