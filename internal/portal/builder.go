package portal

import (
	"context"
	"fmt"

	"github.com/portalize/portal-platform/internal/model"
)

// URLBuilder is the default Builder: site generation happens on the CDN
// side keyed by portal ID, so building here amounts to provisioning the
// public URL.
type URLBuilder struct {
	baseURL string
}

// NewURLBuilder creates a builder that derives portal URLs from a base.
func NewURLBuilder(baseURL string) *URLBuilder {
	return &URLBuilder{baseURL: baseURL}
}

// Build returns the portal's public URL.
func (b *URLBuilder) Build(ctx context.Context, p *model.Portal, doc *model.SourceDocument) (*BuildResult, error) {
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("document %s has no content to publish", doc.ID)
	}
	return &BuildResult{
		URL: fmt.Sprintf("%s/p/%s", b.baseURL, p.ID),
	}, nil
}
