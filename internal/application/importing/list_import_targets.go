package importing

import (
	"context"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

type ImportTarget struct {
	EntityType domain.EntityType        `json:"entity_type"`
	NaturalKey []string                 `json:"natural_key"`
	Fields     []domain.FieldDefinition `json:"fields"`
}

type ListImportTargets interface {
	Execute(ctx context.Context) ([]ImportTarget, error)
}

type listImportTargets struct {
	registry *domain.Registry
}

func NewListImportTargets(registry *domain.Registry) ListImportTargets {
	return &listImportTargets{registry: registry}
}

func (uc *listImportTargets) Execute(ctx context.Context) ([]ImportTarget, error) {
	entityTypes := uc.registry.EntityTypes()
	out := make([]ImportTarget, 0, len(entityTypes))
	for _, entityType := range entityTypes {
		schema, err := uc.registry.Schema(entityType)
		if err != nil {
			return nil, err
		}
		out = append(out, ImportTarget{
			EntityType: schema.EntityType,
			NaturalKey: schema.NaturalKey,
			Fields:     schema.Fields,
		})
	}
	return out, nil
}
