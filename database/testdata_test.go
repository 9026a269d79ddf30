package database

import (
	"github.com/siherrmann/archivist/model"
)

func newTestComponent(id string, componentType model.ComponentType, title string, identifier string) *model.Component {
	c := &model.Component{
		ID:    id,
		Type:  componentType,
		Title: title,
		ExternalIdentifiers: []model.ExternalIdentifier{
			{Source: "archivesspace", Identifier: identifier},
		},
	}
	if err := c.Prepare(); err != nil {
		panic(err)
	}
	return c
}

func citation(identifier string) model.Citation {
	return model.Citation{
		ExternalIdentifiers: []model.ExternalIdentifier{
			{Source: "archivesspace", Identifier: identifier},
		},
	}
}

func intPtr(i int) *int {
	return &i
}
