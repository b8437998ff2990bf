// Package builder walks a report definition and assembles one executable
// SQL query plus the tabular and chart renderings of its result. The
// pipeline is strictly linear per execution: permission gate, column
// assembly, filter assembly, ordering, execute, shape, plot projection.
// A failure at any step aborts with that step's error; retrying is the
// caller's decision.
package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-report-api/internal/models"
	"github.com/noah-isme/lms-report-api/internal/plugins"
	"github.com/noah-isme/lms-report-api/internal/rbac"
	"github.com/noah-isme/lms-report-api/internal/report"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

// Result bundles the two renderings of one execution.
type Result struct {
	Table  *models.TabularResult
	Charts []models.Chart
}

// Builder assembles and executes report queries.
type Builder struct {
	db              *sqlx.DB
	registry        *plugins.Registry
	evaluator       *rbac.Evaluator
	logger          *zap.Logger
	queryTimeout    time.Duration
	defaultPageSize int
	maxPageSize     int
}

// Options tune execution limits. Zero values fall back to safe defaults.
type Options struct {
	QueryTimeout    time.Duration
	DefaultPageSize int
	MaxPageSize     int
}

func New(db *sqlx.DB, registry *plugins.Registry, evaluator *rbac.Evaluator, logger *zap.Logger, opts Options) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 30 * time.Second
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 50
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 500
	}
	return &Builder{
		db:              db,
		registry:        registry,
		evaluator:       evaluator,
		logger:          logger,
		queryTimeout:    opts.QueryTimeout,
		defaultPageSize: opts.DefaultPageSize,
		maxPageSize:     opts.MaxPageSize,
	}
}

// Execute runs the full pipeline for one definition and request context.
func (b *Builder) Execute(ctx context.Context, def *report.Definition, rctx *models.RequestContext) (*Result, error) {
	if rctx == nil {
		rctx = &models.RequestContext{}
	}

	if err := b.gate(ctx, def, rctx); err != nil {
		return nil, err
	}

	columns := b.assembleColumns(def)
	if len(columns) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "report has no usable columns")
	}

	base, baseOwner, err := b.baseQuery(def)
	if err != nil {
		return nil, err
	}

	predicates, args := b.assembleFilters(def, rctx)
	order := b.orderClause(def, rctx)
	query := b.composeQuery(columns, base, predicates, order, rctx)

	raw, err := b.run(ctx, query, args, def.Report.ID, baseOwner)
	if err != nil {
		return nil, err
	}

	table := b.shape(columns, raw, rctx)
	charts, err := b.project(def, columns, raw, rctx)
	if err != nil {
		return nil, err
	}

	return &Result{Table: table, Charts: charts}, nil
}

// Authorize runs the report's permission gate without executing anything.
// Callers serving precomputed results still go through it.
func (b *Builder) Authorize(ctx context.Context, def *report.Definition, rctx *models.RequestContext) error {
	return b.gate(ctx, def, rctx)
}

// gate evaluates the permission components. Instances OR together; an
// empty kind falls back to the evaluator's default policy. Instances whose
// plugin cannot produce a rule are skipped with a warning, never silently
// widening access: a report whose every rule is broken ends up with the
// default policy, not an open gate.
func (b *Builder) gate(ctx context.Context, def *report.Definition, rctx *models.RequestContext) error {
	var rules []models.RoleRule
	for _, inst := range def.Tree[models.KindPermissions] {
		p, err := b.registry.Permission(inst.Plugin)
		if err != nil {
			b.warnSkip(def.Report.ID, models.KindPermissions, inst, err)
			continue
		}
		rule, err := p.Rule(inst)
		if err != nil {
			b.warnSkip(def.Report.ID, models.KindPermissions, inst, err)
			continue
		}
		rules = append(rules, rule)
	}

	ok, err := b.evaluator.Grants(ctx, rules, rctx.UserID, rctx)
	if err != nil {
		return fmt.Errorf("evaluate permission gate for report %s: %w", def.Report.ID, err)
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrAccessDenied, "")
	}
	return nil
}

// assembleColumns resolves the column fragments in stable input order.
// Unresolvable or misconfigured columns are dropped from the output, never
// fatal. A unique plugin contributes at most once even if the stored tree
// somehow carries duplicates.
func (b *Builder) assembleColumns(def *report.Definition) []plugins.ColumnFragment {
	var out []plugins.ColumnFragment
	seenUnique := map[string]bool{}
	for _, inst := range def.Tree[models.KindColumns] {
		p, err := b.registry.Column(inst.Plugin)
		if err != nil {
			b.warnSkip(def.Report.ID, models.KindColumns, inst, err)
			continue
		}
		if d := p.Descriptor(); d.Unique {
			if seenUnique[d.Name] {
				b.logger.Sugar().Warnw("dropping duplicate unique column",
					"report_id", def.Report.ID, "plugin", d.Name, "instance_id", inst.ID)
				continue
			}
			seenUnique[d.Name] = true
		}
		frag, err := p.Fragment(inst, def.Report.Type)
		if err != nil {
			b.warnSkip(def.Report.ID, models.KindColumns, inst, err)
			continue
		}
		out = append(out, frag)
	}
	return out
}

// baseQuery yields the FROM clause source. Entity report types have a fixed
// base table; sql reports wrap the customsql plugin's statement as a
// subquery.
func (b *Builder) baseQuery(def *report.Definition) (base, owner string, err error) {
	switch def.Report.Type {
	case models.ReportTypeUsers:
		return "users u", "", nil
	case models.ReportTypeCourses:
		return "courses c", "", nil
	case models.ReportTypeSQL, models.ReportTypeStatistics:
		for _, inst := range def.Tree[models.KindCustomSQL] {
			p, perr := b.registry.SQL(inst.Plugin)
			if perr != nil {
				b.warnSkip(def.Report.ID, models.KindCustomSQL, inst, perr)
				continue
			}
			q, qerr := p.Query(inst)
			if qerr != nil {
				return "", "", qerr
			}
			return "(" + q + ") q", inst.Plugin, nil
		}
		return "", "", appErrors.Clone(appErrors.ErrValidation, "sql report has no query component")
	default:
		return "", "", appErrors.Clone(appErrors.ErrValidation, "unsupported report type "+string(def.Report.Type))
	}
}

// assembleFilters collects the predicates whose context value is present.
// Predicates AND together; an absent value omits its predicate entirely.
func (b *Builder) assembleFilters(def *report.Definition, rctx *models.RequestContext) ([]string, []interface{}) {
	var preds []string
	var args []interface{}
	seenUnique := map[string]bool{}
	for _, inst := range def.Tree[models.KindFilters] {
		p, err := b.registry.Filter(inst.Plugin)
		if err != nil {
			b.warnSkip(def.Report.ID, models.KindFilters, inst, err)
			continue
		}
		if d := p.Descriptor(); d.Unique {
			if seenUnique[d.Name] {
				continue
			}
			seenUnique[d.Name] = true
		}
		clause, clauseArgs, ok := p.Predicate(inst, def.Report.Type, rctx)
		if !ok {
			continue
		}
		preds = append(preds, clause)
		args = append(args, clauseArgs...)
	}
	return preds, args
}

// orderClause resolves the effective ORDER BY. A requested sort wins when it
// names an orderable column; otherwise the report's declared default order
// applies; otherwise no ordering.
func (b *Builder) orderClause(def *report.Definition, rctx *models.RequestContext) string {
	if rctx.SortColumn != "" {
		if expr, ok := plugins.SortableColumns(def.Report.Type)[rctx.SortColumn]; ok {
			dir := "ASC"
			if strings.EqualFold(rctx.SortDir, "desc") {
				dir = "DESC"
			}
			return expr + " " + dir
		}
		b.logger.Sugar().Debugw("ignoring non-orderable sort request",
			"report_id", def.Report.ID, "column", rctx.SortColumn)
	}

	for _, inst := range def.Tree[models.KindOrderBy] {
		p, err := b.registry.Ordering(inst.Plugin)
		if err != nil {
			b.warnSkip(def.Report.ID, models.KindOrderBy, inst, err)
			continue
		}
		clause, err := p.OrderBy(inst, def.Report.Type)
		if err != nil {
			b.warnSkip(def.Report.ID, models.KindOrderBy, inst, err)
			continue
		}
		return clause
	}
	return ""
}

func (b *Builder) composeQuery(columns []plugins.ColumnFragment, base string, predicates []string, order string, rctx *models.RequestContext) string {
	selects := make([]string, len(columns))
	for i, c := range columns {
		selects[i] = c.Select
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selects, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(base)
	if len(predicates) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(predicates, " AND "))
	}
	if order != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(order)
	}

	limit := rctx.Limit
	if limit <= 0 {
		limit = b.defaultPageSize
	}
	if limit > b.maxPageSize {
		limit = b.maxPageSize
	}
	offset := rctx.Offset
	if offset <= 0 && rctx.Page > 1 {
		offset = (rctx.Page - 1) * limit
	}
	if offset < 0 {
		offset = 0
	}
	sb.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	return sb.String()
}

// run executes the composed query under the configured timeout. The error
// surfaced to callers names the owning plugin of the failing source but
// never the SQL text; the full detail goes to the log only.
func (b *Builder) run(ctx context.Context, query string, args []interface{}, reportID, baseOwner string) ([][]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, b.queryTimeout)
	defer cancel()

	rows, err := b.db.QueryxContext(ctx, b.db.Rebind(query), args...)
	if err != nil {
		return nil, b.classifyQueryError(ctx, err, reportID, baseOwner)
	}
	defer rows.Close()

	var out [][]interface{}
	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return nil, b.classifyQueryError(ctx, err, reportID, baseOwner)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, b.classifyQueryError(ctx, err, reportID, baseOwner)
	}
	return out, nil
}

func (b *Builder) classifyQueryError(ctx context.Context, err error, reportID, baseOwner string) error {
	b.logger.Sugar().Errorw("report query failed",
		"report_id", reportID, "source_plugin", baseOwner, "error", err)

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return appErrors.Clone(appErrors.ErrQueryTimeout, "")
	}
	msg := appErrors.ErrQueryFailed.Message
	if baseOwner != "" {
		msg = fmt.Sprintf("%s (source: %s)", msg, baseOwner)
	}
	return appErrors.Clone(appErrors.ErrQueryFailed, msg)
}

// shape zips raw rows against each column's display function to build the
// tabular rendering. Layout hints default to left-aligned, auto width,
// no wrap.
func (b *Builder) shape(columns []plugins.ColumnFragment, raw [][]interface{}, rctx *models.RequestContext) *models.TabularResult {
	headers := make([]models.Header, len(columns))
	for i, c := range columns {
		headers[i] = c.Header
		if headers[i].Align == "" {
			headers[i].Align = models.AlignLeft
		}
		if headers[i].Wrap == "" {
			headers[i].Wrap = models.WrapNone
		}
	}

	rows := make([][]string, len(raw))
	for ri, rawRow := range raw {
		row := make([]string, len(columns))
		for ci, c := range columns {
			var v interface{}
			if ci < len(rawRow) {
				v = rawRow[ci]
			}
			row[ci] = c.Format(v, models.RenderTable)
		}
		rows[ri] = row
	}

	return &models.TabularResult{
		Headers:  headers,
		Rows:     rows,
		RowCount: len(rows),
		Filters:  rctx.Filters,
	}
}

// project renders the chart-mode view of the same raw rows and feeds it to
// each plot instance. Chart values come from the chart-mode display
// functions, so a value a table shows as the missing placeholder feeds a
// chart as zero.
func (b *Builder) project(def *report.Definition, columns []plugins.ColumnFragment, raw [][]interface{}, rctx *models.RequestContext) ([]models.Chart, error) {
	instances := def.Tree[models.KindPlot]
	if len(instances) == 0 {
		return nil, nil
	}

	headers := make([]models.Header, len(columns))
	for i, c := range columns {
		headers[i] = c.Header
	}
	rows := make([][]string, len(raw))
	for ri, rawRow := range raw {
		row := make([]string, len(columns))
		for ci, c := range columns {
			var v interface{}
			if ci < len(rawRow) {
				v = rawRow[ci]
			}
			row[ci] = c.Format(v, models.RenderChart)
		}
		rows[ri] = row
	}
	chartView := &models.TabularResult{Headers: headers, Rows: rows, RowCount: len(rows)}

	var charts []models.Chart
	for _, inst := range instances {
		p, err := b.registry.Plot(inst.Plugin)
		if err != nil {
			b.warnSkip(def.Report.ID, models.KindPlot, inst, err)
			continue
		}
		chart, err := p.Project(inst, chartView)
		if err != nil {
			b.warnSkip(def.Report.ID, models.KindPlot, inst, err)
			continue
		}
		charts = append(charts, chart)
	}
	return charts, nil
}

func (b *Builder) warnSkip(reportID string, kind models.ComponentKind, inst models.ComponentInstance, err error) {
	b.logger.Sugar().Warnw("skipping component",
		"report_id", reportID,
		"kind", kind,
		"plugin", inst.Plugin,
		"instance_id", inst.ID,
		"error", err,
	)
}
