package relation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/siherrmann/archivist/core/identity"
	"github.com/siherrmann/archivist/core/reference"
	"github.com/siherrmann/archivist/helper"
	"github.com/siherrmann/archivist/model"
)

// State is the progress of one component write.
type State string

const (
	StateNew               State = "NEW"
	StateResolvingOutbound State = "RESOLVING_OUTBOUND"
	StateResolvingInbound  State = "RESOLVING_INBOUND"
	StatePersisted         State = "PERSISTED"
)

// Direction tells which side of a relation a rule was resolved from.
type Direction string

const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
)

// Store defines the component operations the engine needs besides resolution.
type Store interface {
	SelectComponentsCiting(ctx context.Context, field model.RelationField, sourceIdentifiers []string) ([]*model.Component, error)
	UpsertComponent(ctx context.Context, component *model.Component) error
}

// RuleError is a contained failure of a single relation rule.
type RuleError struct {
	Direction Direction
	Rule      model.RelationRule
	Err       error
}

func (e RuleError) Error() string {
	return fmt.Sprintf("%s %s<-%s: %v", e.Direction, e.Rule.Tag, e.Rule.Field, e.Err)
}

func (e RuleError) Unwrap() error {
	return e.Err
}

// Resolution records what one write did.
type Resolution struct {
	ComponentID string
	State       State
	Created     int
	Updated     int
	Skipped     int
	Errors      []RuleError
}

func (r *Resolution) record(created bool) {
	if created {
		r.Created++
	} else {
		r.Updated++
	}
}

// Engine resolves the relations of a component at write time and persists it.
type Engine struct {
	resolver     *identity.Resolver
	materializer *reference.Materializer
	store        Store
	logger       *slog.Logger
}

func NewEngine(resolver *identity.Resolver, materializer *reference.Materializer, store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		resolver:     resolver,
		materializer: materializer,
		store:        store,
		logger:       logger,
	}
}

// Resolve runs outbound then inbound resolution for the component and then
// saves it. Rule failures are recorded on the Resolution and never fail the
// write; only an invalid component or a failed save return an error.
func (e *Engine) Resolve(ctx context.Context, component *model.Component) (*Resolution, error) {
	if component == nil {
		return nil, helper.NewError("resolve", fmt.Errorf("component is nil"))
	}
	err := component.Prepare()
	if err != nil {
		return nil, helper.NewError("prepare", err)
	}

	resolution := &Resolution{ComponentID: component.ID, State: StateNew}

	spec, ok := model.RelationsFor(component.Type)
	if ok {
		resolution.State = StateResolvingOutbound
		for _, rule := range spec.Outbound {
			e.resolveOutbound(ctx, component, rule, resolution)
		}

		resolution.State = StateResolvingInbound
		for _, rule := range spec.Inbound {
			e.resolveInbound(ctx, component, rule, resolution)
		}
	}

	err = e.store.UpsertComponent(ctx, component)
	if err != nil {
		return resolution, helper.NewError("persist", err)
	}
	resolution.State = StatePersisted

	e.logger.Info(
		"Indexed component",
		slog.String("id", component.ID),
		slog.String("type", string(component.Type)),
		slog.Int("created", resolution.Created),
		slog.Int("updated", resolution.Updated),
		slog.Int("skipped", resolution.Skipped),
		slog.Int("errors", len(resolution.Errors)),
	)

	return resolution, nil
}

// resolveOutbound links the component to every component its field cites.
func (e *Engine) resolveOutbound(ctx context.Context, component *model.Component, rule model.RelationRule, resolution *Resolution) {
	for i, citation := range component.Citations(rule.Field) {
		target, err := e.resolver.ResolveCitation(ctx, citation, rule.Tag.TargetTypes()...)
		if errors.Is(err, model.ErrNotFound) {
			resolution.Skipped++
			continue
		}
		if err != nil {
			e.fail(resolution, Outbound, rule, err)
			continue
		}
		if target.ID == component.ID {
			resolution.Skipped++
			continue
		}

		_, created, err := e.materializer.Materialize(ctx, component, target, rule.Tag, citationPosition(rule.Tag, citation, i))
		if err != nil {
			e.fail(resolution, Outbound, rule, err)
			continue
		}
		resolution.record(created)
	}
}

// resolveInbound links every component whose field cites this one back to it.
// A citation that also resolves to another stored component is ambiguous and
// is recorded instead of linked.
func (e *Engine) resolveInbound(ctx context.Context, component *model.Component, rule model.RelationRule, resolution *Resolution) {
	keys := component.SourceIdentifiers()
	citers, err := e.store.SelectComponentsCiting(ctx, rule.Field, keys)
	if err != nil {
		e.fail(resolution, Inbound, rule, err)
		return
	}

	for _, citer := range citers {
		if citer.ID == component.ID {
			continue
		}
		citation, index, ok := citedBy(citer, rule.Field, keys)
		if !ok {
			continue
		}

		err := e.checkUnambiguous(ctx, component, citation, rule.Tag)
		if err != nil {
			e.fail(resolution, Inbound, rule, err)
			continue
		}

		_, created, err := e.materializer.Materialize(ctx, citer, component, rule.Tag, citationPosition(rule.Tag, citation, index))
		if err != nil {
			e.fail(resolution, Inbound, rule, err)
			continue
		}
		resolution.record(created)
	}
}

// checkUnambiguous fails when the citation resolves to a stored component other
// than the one being written, since both then share the cited identifier.
func (e *Engine) checkUnambiguous(ctx context.Context, component *model.Component, citation model.Citation, tag model.RelationTag) error {
	stored, err := e.resolver.ResolveCitation(ctx, citation, tag.TargetTypes()...)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if stored.ID != component.ID {
		return helper.NewError("resolve citation", fmt.Errorf("%w: %s and %s share the identifier", model.ErrAmbiguousMatch, stored.ID, component.ID))
	}
	return nil
}

func (e *Engine) fail(resolution *Resolution, direction Direction, rule model.RelationRule, err error) {
	ruleErr := RuleError{Direction: direction, Rule: rule, Err: err}
	resolution.Errors = append(resolution.Errors, ruleErr)
	e.logger.Warn("Relation rule failed", slog.String("component", resolution.ComponentID), slog.String("rule", ruleErr.Error()))
}

// citationPosition is the citation's order, or its index for ancestors,
// which are cited nearest first.
func citationPosition(tag model.RelationTag, citation model.Citation, index int) *int {
	if citation.Order != nil {
		p := *citation.Order
		return &p
	}
	if tag == model.RelationAncestor {
		return &index
	}
	return nil
}

// citedBy finds the citation of keys in the citer's field and its index.
func citedBy(citer *model.Component, field model.RelationField, keys []string) (model.Citation, int, bool) {
	for i, citation := range citer.Citations(field) {
		for _, key := range citation.SourceIdentifiers() {
			if slices.Contains(keys, key) {
				return citation, i, true
			}
		}
	}
	return model.Citation{}, 0, false
}
