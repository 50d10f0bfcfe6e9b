package v1

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/crewdeck/internal/server/middleware"
)

// UseWorkspaceGuard installs workspace scoping on the API: every operation
// addressing a {workspaceID} path is rejected with 403 unless the
// authenticated principal may act in that workspace. Operations without a
// workspace in the path pass through unchanged.
//
// Must be installed after the Auth middleware has populated the request
// context.
func UseWorkspaceGuard(api huma.API) {
	api.UseMiddleware(func(ctx huma.Context, next func(huma.Context)) {
		param := ctx.Param("workspaceID")
		if param == "" {
			next(ctx)
			return
		}

		workspaceID, err := uuid.Parse(param)
		if err != nil {
			// Input validation reports malformed ids.
			next(ctx)
			return
		}

		if !middleware.WorkspaceAllowed(ctx.Context(), workspaceID) {
			_ = huma.WriteErr(api, ctx, http.StatusForbidden, "workspace access denied")
			return
		}

		next(ctx)
	})
}
