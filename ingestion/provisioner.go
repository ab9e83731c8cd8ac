package ingestion

import (
	"context"
	"log/slog"
	"slices"

	"github.com/poiesic/plotdex/core"
	"github.com/poiesic/plotdex/index"
)

// Provisioner makes sure a collection exists before points are uploaded.
//
// The existence check and the creation are two separate calls, so two
// provisioners racing on the same name can both observe "absent" and the
// slower create fails with a ProvisionError.
type Provisioner struct {
	backend index.Backend
	logger  *slog.Logger
}

// NewProvisioner creates a provisioner on backend.
func NewProvisioner(backend index.Backend, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		backend: backend,
		logger:  logger.With("component", "provisioner"),
	}
}

// EnsureCollection creates the collection described by spec unless a
// collection with that name already exists. An existing collection is
// reused as is; its geometry is not compared with spec.
// Reports whether the collection was created.
func (p *Provisioner) EnsureCollection(ctx context.Context, spec core.CollectionSpec) (bool, error) {
	if err := core.ValidateCollectionSpec(spec); err != nil {
		return false, err
	}

	names, err := p.backend.ListCollections(ctx)
	if err != nil {
		return false, core.NewProvisionError(spec.Name, "list", err)
	}
	if slices.Contains(names, spec.Name) {
		p.logger.Info("collection already exists", "collection", spec.Name)
		return false, nil
	}

	if err := p.backend.CreateCollection(ctx, spec); err != nil {
		return false, core.NewProvisionError(spec.Name, "create", err)
	}
	p.logger.Info("created collection",
		"collection", spec.Name,
		"vector_size", spec.VectorSize,
		"distance", spec.Distance,
		"comparator", spec.Comparator)
	return true, nil
}
