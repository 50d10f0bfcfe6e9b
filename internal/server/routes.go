package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/crewdeck/internal/api/v1"
	"github.com/gosuda/crewdeck/internal/api/ws"
)

func registerAPIRoutes(api huma.API, store v1.DataStore, crewSvc v1.CrewService) {
	v1.UseWorkspaceGuard(api)
	v1.RegisterWorkspaceRoutes(api, store, crewSvc)
	v1.RegisterProjectRoutes(api, store)
	v1.RegisterEventRoutes(api, crewSvc)
	v1.RegisterInstanceRoutes(api, crewSvc)
	v1.RegisterFeedRoutes(api, store)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/feed/{workspaceID}", hub.ServeFeed)
	r.Get("/feed/{workspaceID}/{runID}", hub.ServeRun)
}
