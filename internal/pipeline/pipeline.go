package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/DocScrape/internal/types"
)

// Middleware processes a listing and returns the (possibly modified) listing.
// Return nil to drop the listing from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a listing. Return nil to drop it.
	Process(l *types.Listing) (*types.Listing, error)
}

// Pipeline chains middleware processors together and turns surviving
// listings into Doctor records.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates an empty Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// NewDefault creates the normalizer chain used for every run: markup and
// whitespace cleanup, alias mapping, link resolution and the name check.
func NewDefault(logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(NewHTMLSanitizeMiddleware())
	p.Use(NewFieldRenameMiddleware(DefaultAliases))
	p.Use(&FieldFilterMiddleware{Fields: types.DoctorFields})
	p.Use(&ResolveURLMiddleware{Field: types.FieldProfileURL})
	p.Use(&RequiredFieldsMiddleware{Fields: []string{types.FieldName}})
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the listing through all middleware in order.
func (p *Pipeline) Process(l *types.Listing) (*types.Listing, error) {
	current := l

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage:   mw.Name(),
				Listing: current,
				Err:     err,
			}
		}
		if result == nil {
			p.logger.Debug("listing dropped", "stage", mw.Name(), "url", l.URL)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Normalize runs every listing through the chain and converts the
// survivors, preserving order. It reports how many listings were dropped.
// A middleware error drops that listing only.
func (p *Pipeline) Normalize(listings []*types.Listing) ([]*types.Doctor, int) {
	doctors := make([]*types.Doctor, 0, len(listings))
	dropped := 0
	for _, l := range listings {
		out, err := p.Process(l)
		if err != nil {
			p.logger.Warn("listing rejected", "url", l.URL, "error", err)
			dropped++
			continue
		}
		if out == nil {
			dropped++
			continue
		}
		if d := ToDoctor(out); d != nil {
			doctors = append(doctors, d)
		} else {
			dropped++
		}
	}
	return doctors, dropped
}

// ToDoctor builds the immutable record from a normalized listing. It
// returns nil when the listing has no name.
func ToDoctor(l *types.Listing) *types.Doctor {
	name := l.GetString(types.FieldName)
	if name == "" {
		return nil
	}
	opt := func(key string) *string {
		if !l.Has(key) {
			return nil
		}
		return types.StringPtr(l.GetString(key))
	}
	return &types.Doctor{
		Name:       name,
		Specialty:  opt(types.FieldSpecialty),
		Address:    opt(types.FieldAddress),
		Distance:   opt(types.FieldDistance),
		SectorInfo: opt(types.FieldSectorInfo),
		ProfileURL: opt(types.FieldProfileURL),
	}
}
