// Package report holds the in-memory composed report model: the persistent
// entity plus its decoded component tree, with edit operations that keep
// both in sync through the codec.
package report

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-report-api/internal/codec"
	"github.com/noah-isme/lms-report-api/internal/models"
	"github.com/noah-isme/lms-report-api/internal/plugins"
	appErrors "github.com/noah-isme/lms-report-api/pkg/errors"
)

// Store is the persistence surface the definition layer needs.
type Store interface {
	GetByID(ctx context.Context, id string) (*models.Report, error)
	UpdateComponents(ctx context.Context, id, components string) error
}

// Definition is one report with its decoded component tree. The tree is
// owned exclusively by the definition; the builder borrows it read-only per
// execution.
type Definition struct {
	Report *models.Report
	Tree   models.ComponentTree
}

// Loader loads, edits and saves report definitions.
type Loader struct {
	store    Store
	registry *plugins.Registry
	logger   *zap.Logger
}

func NewLoader(store Store, registry *plugins.Registry, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{store: store, registry: registry, logger: logger}
}

// Load fetches a report and decodes its components blob. Instances whose
// plugin no longer resolves stay in the tree and are only warned about here;
// the builder skips them per execution, so a disabled plugin's configuration
// survives edits and saves untouched. A decode failure is fatal to this
// report only.
func (l *Loader) Load(ctx context.Context, reportID string) (*Definition, error) {
	rpt, err := l.store.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if rpt == nil {
		return nil, appErrors.Clone(appErrors.ErrReportNotFound, "")
	}

	tree, err := codec.Decode(rpt.Components)
	if err != nil {
		return nil, fmt.Errorf("decode components of report %s: %w", reportID, err)
	}

	for _, kind := range models.Kinds {
		for _, inst := range tree[kind] {
			if _, err := l.registry.Resolve(kind, inst.Plugin); err != nil {
				l.logger.Sugar().Warnw("component plugin unavailable",
					"report_id", reportID,
					"kind", kind,
					"plugin", inst.Plugin,
					"instance_id", inst.ID,
				)
			}
		}
	}

	return &Definition{Report: rpt, Tree: tree}, nil
}

// AddComponent appends a configured plugin instance under kind. The plugin
// must resolve and support the report's type, and a unique plugin may exist
// at most once per report.
func (l *Loader) AddComponent(def *Definition, kind models.ComponentKind, plugin string, form models.FormData) (*models.ComponentInstance, error) {
	desc, err := l.registry.Resolve(kind, plugin)
	if err != nil {
		return nil, err
	}
	if !desc.Supports(def.Report.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "plugin "+plugin+" does not apply to "+string(def.Report.Type)+" reports")
	}
	if desc.Unique && def.Tree.Has(kind, plugin) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "plugin "+plugin+" may appear at most once per report")
	}

	inst := models.ComponentInstance{ID: uuid.NewString(), Plugin: plugin, FormData: form}
	def.Tree[kind] = append(def.Tree[kind], inst)
	return &inst, nil
}

// RemoveComponent deletes the instance with the given id from kind. Removing
// an instance that is not there is not an error.
func (l *Loader) RemoveComponent(def *Definition, kind models.ComponentKind, instanceID string) bool {
	list := def.Tree[kind]
	for i, inst := range list {
		if inst.ID == instanceID {
			def.Tree[kind] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Save encodes the tree and persists it on the report row.
func (l *Loader) Save(ctx context.Context, def *Definition) error {
	encoded, err := codec.Encode(def.Tree)
	if err != nil {
		return fmt.Errorf("encode components of report %s: %w", def.Report.ID, err)
	}
	if err := l.store.UpdateComponents(ctx, def.Report.ID, encoded); err != nil {
		return fmt.Errorf("persist components of report %s: %w", def.Report.ID, err)
	}
	def.Report.Components = encoded
	return nil
}
