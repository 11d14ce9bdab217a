package genops

import (
	"context"

	"github.com/genops-ai/genops-go/models"
)

type contextKey struct{}

var attributesKey contextKey

// WithAttributes returns a context carrying governance attributes that are
// merged over the client defaults for every operation tracked under it.
func WithAttributes(ctx context.Context, attrs models.GovernanceAttributes) context.Context {
	existing := AttributesFromContext(ctx)
	return context.WithValue(ctx, attributesKey, attrs.Merge(existing))
}

// AttributesFromContext returns the governance attributes attached to ctx,
// or the zero value when none are set.
func AttributesFromContext(ctx context.Context) models.GovernanceAttributes {
	attrs, _ := ctx.Value(attributesKey).(models.GovernanceAttributes)
	return attrs
}
