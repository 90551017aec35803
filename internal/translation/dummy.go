package translation

import (
	"context"
	"slices"
)

// DummyProvider returns its input unchanged. Used for development and tests.
type DummyProvider struct{}

func NewDummyProvider() *DummyProvider {
	return &DummyProvider{}
}

func (p *DummyProvider) Name() string {
	return "dummy"
}

func (p *DummyProvider) Translate(_ context.Context, req TranslateRequest) ([]string, error) {
	return slices.Clone(req.Texts), nil
}

func (p *DummyProvider) Usage(context.Context) (*Usage, error) {
	return &Usage{}, nil
}
