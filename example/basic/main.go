package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/siherrmann/archivist"
	"github.com/siherrmann/archivist/helper"
	"github.com/siherrmann/archivist/model"
)

func identifier(value string) []model.ExternalIdentifier {
	return []model.ExternalIdentifier{{Source: "archivesspace", Identifier: value}}
}

func cite(value string, order int) model.Citation {
	return model.Citation{Order: &order, ExternalIdentifiers: identifier(value)}
}

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	a, err := archivist.NewArchivist(dbConfig)
	if err != nil {
		log.Fatalf("Failed to create archivist: %v", err)
	}
	defer a.Close()

	// Components may be indexed in any order, references converge.
	components := []*model.Component{
		{
			ID:                  "letter-1",
			Type:                model.ComponentTypeObject,
			Title:               "Letter to the board",
			Online:              true,
			ExternalIdentifiers: identifier("/repositories/2/archival_objects/31"),
			Ancestors:           []model.Citation{cite("/repositories/2/archival_objects/30", 0), cite("/repositories/2/resources/1", 1)},
			Dates:               []model.Date{{Expression: "1921 March"}},
		},
		{
			ID:                  "series-1",
			Type:                model.ComponentTypeCollection,
			Title:               "Series 1: Correspondence",
			ExternalIdentifiers: identifier("/repositories/2/archival_objects/30"),
			Ancestors:           []model.Citation{cite("/repositories/2/resources/1", 0)},
			Children:            []model.Citation{cite("/repositories/2/archival_objects/31", 0)},
		},
		{
			ID:                  "foundation",
			Type:                model.ComponentTypeCollection,
			Title:               "Foundation records",
			ExternalIdentifiers: identifier("/repositories/2/resources/1"),
			Children:            []model.Citation{cite("/repositories/2/archival_objects/30", 0)},
			Creators:            []model.Citation{{ExternalIdentifiers: identifier("/agents/corporate_entities/4")}},
		},
		{
			ID:                  "board",
			Type:                "organization",
			Title:               "Board of Trustees",
			ExternalIdentifiers: identifier("/agents/corporate_entities/4"),
		},
	}

	fmt.Println("Indexing components...")
	for _, c := range components {
		resolution, err := a.IndexComponent(ctx, c)
		if err != nil {
			log.Fatalf("Failed to index %s: %v", c.ID, err)
		}
		fmt.Printf("%-12s created=%d updated=%d skipped=%d\n", c.ID, resolution.Created, resolution.Updated, resolution.Skipped)
	}

	chain, err := a.Ancestors(ctx, "letter-1", "board")
	if err != nil {
		log.Fatalf("Failed to build ancestors: %v", err)
	}
	nested, _ := json.MarshalIndent(chain, "", "  ")
	fmt.Printf("\nAncestors of letter-1:\n%s\n", nested)

	page, err := a.Children(ctx, "foundation", 10, 0, "")
	if err != nil {
		log.Fatalf("Failed to list children: %v", err)
	}
	fmt.Printf("\nChildren of foundation (%d):\n", page.Count)
	for _, child := range page.Results {
		fmt.Printf("- %s %s (group %s)\n", child.URI, child.Title, child.Group.Title)
	}

	_, references, err := a.Component(ctx, model.ComponentTypeCollection, "foundation")
	if err != nil {
		log.Fatalf("Failed to load foundation: %v", err)
	}
	fmt.Printf("\nReferences of foundation:\n")
	for _, r := range references {
		fmt.Printf("- %s -> %s\n", r.Relation, r.URI)
	}

	fmt.Println("\nBasic example completed successfully!")
}
