// Package plugins holds the component plugin registry and the built-in
// plugin set. The registry is a static table assembled at startup; lookups
// are pure and safe for concurrent use.
package plugins

import (
	"sort"

	"github.com/noah-isme/lms-report-api/internal/models"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

// Descriptor is the immutable metadata of a registered plugin.
type Descriptor struct {
	Kind        models.ComponentKind `json:"kind"`
	Name        string               `json:"name"`
	Fullname    string               `json:"fullname"`
	ReportTypes []models.ReportType  `json:"report_types"`
	Unique      bool                 `json:"unique"`
	RequiresSQL bool                 `json:"requires_sql"`
	HasForm     bool                 `json:"has_form"`
}

// Supports reports whether the plugin applies to the given report type.
func (d Descriptor) Supports(t models.ReportType) bool {
	for _, rt := range d.ReportTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// ColumnFragment is a column plugin's contribution to one execution: a SQL
// select expression, the header metadata, and the display function applied
// to each raw row value.
type ColumnFragment struct {
	Select string
	Alias  string
	Header models.Header
	Format func(raw interface{}, mode models.RenderMode) string
}

// ColumnPlugin contributes a select fragment and a display function.
type ColumnPlugin interface {
	Descriptor() Descriptor
	Fragment(inst models.ComponentInstance, reportType models.ReportType) (ColumnFragment, error)
}

// FilterPlugin contributes a parameterized predicate. The fragment uses `?`
// placeholders; the builder rebinds them for the target driver. ok is false
// when the request context carries no value for the filter, in which case
// the predicate is omitted entirely.
type FilterPlugin interface {
	Descriptor() Descriptor
	Predicate(inst models.ComponentInstance, reportType models.ReportType, rctx *models.RequestContext) (clause string, args []interface{}, ok bool)
}

// PermissionPlugin translates a component instance into a role rule for the
// permission evaluator.
type PermissionPlugin interface {
	Descriptor() Descriptor
	Rule(inst models.ComponentInstance) (models.RoleRule, error)
}

// OrderPlugin contributes the report's declared default ORDER BY fragment.
type OrderPlugin interface {
	Descriptor() Descriptor
	OrderBy(inst models.ComponentInstance, reportType models.ReportType) (string, error)
}

// PlotPlugin projects a tabular result into a chart.
type PlotPlugin interface {
	Descriptor() Descriptor
	Project(inst models.ComponentInstance, result *models.TabularResult) (models.Chart, error)
}

// SQLPlugin supplies the base query for sql-type reports.
type SQLPlugin interface {
	Descriptor() Descriptor
	Query(inst models.ComponentInstance) (string, error)
}

// Registry maps (kind, shortname) to handlers.
type Registry struct {
	columns     map[string]ColumnPlugin
	filters     map[string]FilterPlugin
	permissions map[string]PermissionPlugin
	orderings   map[string]OrderPlugin
	plots       map[string]PlotPlugin
	customsql   map[string]SQLPlugin
}

// NewRegistry builds the registry with the built-in plugin set.
func NewRegistry() *Registry {
	r := &Registry{
		columns:     map[string]ColumnPlugin{},
		filters:     map[string]FilterPlugin{},
		permissions: map[string]PermissionPlugin{},
		orderings:   map[string]OrderPlugin{},
		plots:       map[string]PlotPlugin{},
		customsql:   map[string]SQLPlugin{},
	}

	for _, p := range builtinColumns() {
		r.columns[p.Descriptor().Name] = p
	}
	for _, p := range builtinFilters() {
		r.filters[p.Descriptor().Name] = p
	}
	for _, p := range builtinPermissions() {
		r.permissions[p.Descriptor().Name] = p
	}
	for _, p := range builtinOrderings() {
		r.orderings[p.Descriptor().Name] = p
	}
	for _, p := range builtinPlots() {
		r.plots[p.Descriptor().Name] = p
	}
	for _, p := range builtinSQL() {
		r.customsql[p.Descriptor().Name] = p
	}

	return r
}

// List returns the descriptors available for a kind and report type. Plugins
// flagged unique that already appear in the tree are excluded, so the
// builder UI cannot offer a duplicate add. This is a listing-time courtesy
// only; execution enforces uniqueness independently.
func (r *Registry) List(kind models.ComponentKind, reportType models.ReportType, tree models.ComponentTree) []Descriptor {
	var out []Descriptor
	for _, d := range r.descriptors(kind) {
		if !d.Supports(reportType) {
			continue
		}
		if d.Unique && tree.Has(kind, d.Name) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve returns the descriptor for a (kind, shortname) pair, or
// ErrUnknownPlugin when nothing is registered under it.
func (r *Registry) Resolve(kind models.ComponentKind, name string) (Descriptor, error) {
	for _, d := range r.descriptors(kind) {
		if d.Name == name {
			return d, nil
		}
	}
	return Descriptor{}, appErrors.Clone(appErrors.ErrUnknownPlugin, "no "+string(kind)+" plugin named "+name)
}

// Column resolves a column plugin by shortname.
func (r *Registry) Column(name string) (ColumnPlugin, error) {
	p, ok := r.columns[name]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownPlugin, "no columns plugin named "+name)
	}
	return p, nil
}

// Filter resolves a filter plugin by shortname.
func (r *Registry) Filter(name string) (FilterPlugin, error) {
	p, ok := r.filters[name]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownPlugin, "no filters plugin named "+name)
	}
	return p, nil
}

// Permission resolves a permission plugin by shortname.
func (r *Registry) Permission(name string) (PermissionPlugin, error) {
	p, ok := r.permissions[name]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownPlugin, "no permissions plugin named "+name)
	}
	return p, nil
}

// Ordering resolves an orderby plugin by shortname.
func (r *Registry) Ordering(name string) (OrderPlugin, error) {
	p, ok := r.orderings[name]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownPlugin, "no orderby plugin named "+name)
	}
	return p, nil
}

// Plot resolves a plot plugin by shortname.
func (r *Registry) Plot(name string) (PlotPlugin, error) {
	p, ok := r.plots[name]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownPlugin, "no plot plugin named "+name)
	}
	return p, nil
}

// SQL resolves a customsql plugin by shortname.
func (r *Registry) SQL(name string) (SQLPlugin, error) {
	p, ok := r.customsql[name]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnknownPlugin, "no customsql plugin named "+name)
	}
	return p, nil
}

func (r *Registry) descriptors(kind models.ComponentKind) []Descriptor {
	var out []Descriptor
	switch kind {
	case models.KindColumns:
		for _, p := range r.columns {
			out = append(out, p.Descriptor())
		}
	case models.KindFilters:
		for _, p := range r.filters {
			out = append(out, p.Descriptor())
		}
	case models.KindPermissions:
		for _, p := range r.permissions {
			out = append(out, p.Descriptor())
		}
	case models.KindOrderBy:
		for _, p := range r.orderings {
			out = append(out, p.Descriptor())
		}
	case models.KindPlot:
		for _, p := range r.plots {
			out = append(out, p.Descriptor())
		}
	case models.KindCustomSQL:
		for _, p := range r.customsql {
			out = append(out, p.Descriptor())
		}
	}
	return out
}
