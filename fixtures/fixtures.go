package fixtures

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/siherrmann/archivist/core/relation"
	"github.com/siherrmann/archivist/helper"
	"github.com/siherrmann/archivist/model"
)

// Indexer is the write path fixtures are fed into.
type Indexer interface {
	IndexComponent(ctx context.Context, component *model.Component) (*relation.Resolution, error)
}

// Fixture is one component document read from disk.
type Fixture struct {
	Path      string
	Component *model.Component
}

// Load reads every {agents,collections,objects,terms}/*.json document below fsys.
// Missing type directories are skipped. Documents are returned per type, sorted by path.
func Load(fsys fs.FS) ([]Fixture, error) {
	fixtures := []Fixture{}
	for _, t := range model.ComponentTypes {
		entries, err := fs.ReadDir(fsys, t.Plural())
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, helper.NewError("read "+t.Plural(), err)
		}

		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Name() < entries[j].Name()
		})
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}

			fixture, err := loadFile(fsys, path.Join(t.Plural(), entry.Name()), t)
			if err != nil {
				return nil, err
			}
			fixtures = append(fixtures, fixture)
		}
	}
	return fixtures, nil
}

func loadFile(fsys fs.FS, name string, t model.ComponentType) (Fixture, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return Fixture{}, helper.NewError("read "+name, err)
	}

	component := &model.Component{}
	if err := json.Unmarshal(data, component); err != nil {
		return Fixture{}, helper.NewError("decode "+name, err)
	}
	if len(component.Type) == 0 {
		component.Type = t
	}
	if err := component.Prepare(); err != nil {
		return Fixture{}, helper.NewError("validate "+name, err)
	}
	if component.Type != t {
		return Fixture{}, helper.NewError("validate "+name, fmt.Errorf("component type %s does not match directory %s", component.Type, t.Plural()))
	}

	return Fixture{Path: name, Component: component}, nil
}

// Result summarizes one ingest run.
type Result struct {
	Indexed    int
	References int
	RuleErrors int
}

// Ingest loads all fixtures and indexes them one by one.
// Components may arrive in any order, references converge either way.
func Ingest(ctx context.Context, fsys fs.FS, indexer Indexer, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fixtures, err := Load(fsys)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, fixture := range fixtures {
		resolution, err := indexer.IndexComponent(ctx, fixture.Component)
		if err != nil {
			return result, helper.NewError("index "+fixture.Path, err)
		}
		result.Indexed++
		result.References += resolution.Created
		result.RuleErrors += len(resolution.Errors)
	}

	logger.Info(
		"Ingested fixtures",
		slog.Int("components", result.Indexed),
		slog.Int("references", result.References),
		slog.Int("rule_errors", result.RuleErrors),
	)
	return result, nil
}
