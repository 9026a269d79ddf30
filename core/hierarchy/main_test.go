package hierarchy

import (
	"context"

	"github.com/siherrmann/archivist/core/mock"
	"github.com/siherrmann/archivist/model"
)

func component(id string, t model.ComponentType, title string) *model.Component {
	return &model.Component{
		ID:                  id,
		Type:                t,
		Title:               title,
		ExternalIdentifiers: []model.ExternalIdentifier{{Source: "archivesspace", Identifier: id}},
	}
}

func link(store *mock.Store, owner *model.Component, target *model.Component, tag model.RelationTag, position *int) {
	if err := store.InsertReference(context.Background(), model.NewReferenceTo(owner.ID, target, tag, position)); err != nil {
		panic(err)
	}
}

func intPtr(i int) *int {
	return &i
}
