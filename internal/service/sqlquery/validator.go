// Package sqlquery 在单个数据集上执行只读 SQL
// 语句先由 PostgreSQL 官方解析器校验，再在 DuckDB 内存库中执行
package sqlquery

import (
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/ashwinyue/next-analytics/internal/apperr"
)

// TableName 查询中数据集的表名
const TableName = "dataset"

const (
	minQueryLen = 6
	maxQueryLen = 4096
)

// Validator SQL 校验器：单条 SELECT，只能读取 dataset 表，函数走白名单
type Validator struct {
	allowedFunctions map[string]bool
}

// NewValidator 创建校验器
func NewValidator() *Validator {
	allowed := map[string]bool{}
	for _, f := range []string{
		// 聚合
		"count", "sum", "avg", "min", "max", "median", "mode",
		"stddev", "stddev_samp", "stddev_pop", "variance", "var_samp", "var_pop",
		"corr", "covar_pop", "covar_samp", "approx_count_distinct",
		"quantile_cont", "quantile_disc", "percentile_cont", "percentile_disc",
		"string_agg", "array_agg", "bool_and", "bool_or",
		// 窗口
		"row_number", "rank", "dense_rank", "ntile", "lag", "lead", "first_value", "last_value",
		// 数值
		"abs", "ceil", "ceiling", "floor", "round", "sqrt", "power", "pow", "exp", "ln", "log", "log10", "sign",
		// 字符串
		"length", "lower", "upper", "trim", "ltrim", "rtrim", "substring", "substr",
		"concat", "concat_ws", "replace", "left", "right", "strpos", "nullif",
		// 时间
		"date_trunc", "date_part", "extract", "strftime", "now", "year", "month", "day", "hour",
	} {
		allowed[f] = true
	}
	return &Validator{allowedFunctions: allowed}
}

// Validate 校验语句，返回去掉结尾分号的原始语句
func (v *Validator) Validate(sqlQuery string) (string, error) {
	q := strings.TrimSpace(sqlQuery)
	q = strings.TrimSpace(strings.TrimRight(q, ";"))
	if strings.Contains(q, "\x00") {
		return "", apperr.Validation("query contains illegal characters")
	}
	if len(q) < minQueryLen {
		return "", apperr.Validation("query is too short")
	}
	if len(q) > maxQueryLen {
		return "", apperr.Validation("query is too long (max %d characters)", maxQueryLen)
	}

	result, err := pg_query.Parse(q)
	if err != nil {
		return "", apperr.Validation("invalid SQL: %v", err)
	}
	if len(result.Stmts) != 1 {
		return "", apperr.Validation("exactly one statement is allowed, got %d", len(result.Stmts))
	}
	stmt := result.Stmts[0].Stmt
	if stmt.GetSelectStmt() == nil {
		return "", apperr.Validation("only SELECT queries are allowed")
	}

	if err := v.walk(stmt.ProtoReflect()); err != nil {
		return "", err
	}
	return q, nil
}

// walk 遍历整棵语法树，任何位置的节点都要通过 check
func (v *Validator) walk(m protoreflect.Message) error {
	if err := v.check(m.Interface()); err != nil {
		return err
	}
	var err error
	m.Range(func(fd protoreflect.FieldDescriptor, val protoreflect.Value) bool {
		if fd.Kind() != protoreflect.MessageKind && fd.Kind() != protoreflect.GroupKind {
			return true
		}
		switch {
		case fd.IsMap():
		case fd.IsList():
			list := val.List()
			for i := 0; i < list.Len() && err == nil; i++ {
				err = v.walk(list.Get(i).Message())
			}
		default:
			err = v.walk(val.Message())
		}
		return err == nil
	})
	return err
}

func (v *Validator) check(msg proto.Message) error {
	switch n := msg.(type) {
	case *pg_query.SelectStmt:
		if n.IntoClause != nil {
			return apperr.Validation("SELECT INTO is not allowed")
		}
		if len(n.LockingClause) > 0 {
			return apperr.Validation("locking clauses are not allowed")
		}
		if n.WithClause != nil {
			return apperr.Validation("WITH clauses are not allowed")
		}
	case *pg_query.RangeVar:
		if n.Schemaname != "" || n.Catalogname != "" {
			return apperr.Validation("schema-qualified tables are not allowed: %s.%s", n.Schemaname, n.Relname)
		}
		if strings.ToLower(n.Relname) != TableName {
			return apperr.Validation("unknown table %q, query the %q table", n.Relname, TableName)
		}
	case *pg_query.RangeFunction, *pg_query.RangeTableFunc:
		return apperr.Validation("table functions are not allowed")
	case *pg_query.FuncCall:
		return v.checkFunc(n)
	}
	return nil
}

func (v *Validator) checkFunc(fc *pg_query.FuncCall) error {
	var parts []string
	for _, n := range fc.Funcname {
		if s := n.GetString_(); s != nil {
			parts = append(parts, strings.ToLower(s.Sval))
		}
	}
	if len(parts) == 0 {
		return apperr.Validation("unrecognized function call")
	}
	if len(parts) > 1 && parts[0] != "pg_catalog" {
		return apperr.Validation("schema-qualified functions are not allowed: %s", strings.Join(parts, "."))
	}
	name := parts[len(parts)-1]
	if !v.allowedFunctions[name] {
		return apperr.Validation("function not allowed: %s", name)
	}
	return nil
}
