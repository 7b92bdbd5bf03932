package api

import (
	"database/sql"
	"net/http"

	"github.com/constructlink/constructlink/internal/config"
	"github.com/constructlink/constructlink/internal/model"
	"github.com/constructlink/constructlink/internal/workflow"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	executor := workflow.NewExecutor(db, cfg)

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	projectsHandler := &ProjectsHandler{DB: db}
	assetsHandler := &AssetsHandler{DB: db}
	batchesHandler := &BatchesHandler{Executor: executor}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleSystemAdmin)
	requireProjectAdmin := RequireRole(model.RoleAssetDirector)
	requireAssetWrite := RequireRole(model.RoleAssetDirector, model.RoleProcurementOfficer,
		model.RoleWarehouseman)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Projects: read (all roles), write (asset director+).
	mux.Handle("GET /api/projects", authMW(http.HandlerFunc(projectsHandler.List)))
	mux.Handle("POST /api/projects", authMW(requireProjectAdmin(http.HandlerFunc(projectsHandler.Create))))
	mux.Handle("GET /api/projects/{id}", authMW(http.HandlerFunc(projectsHandler.Get)))
	mux.Handle("PUT /api/projects/{id}", authMW(requireProjectAdmin(http.HandlerFunc(projectsHandler.Update))))
	mux.Handle("DELETE /api/projects/{id}", authMW(requireProjectAdmin(http.HandlerFunc(projectsHandler.Delete))))

	// Assets: read (all roles), write (procurement and warehouse staff+).
	mux.Handle("GET /api/assets", authMW(http.HandlerFunc(assetsHandler.List)))
	mux.Handle("POST /api/assets", authMW(requireAssetWrite(http.HandlerFunc(assetsHandler.Create))))
	mux.Handle("GET /api/assets/{id}", authMW(http.HandlerFunc(assetsHandler.Get)))
	mux.Handle("PUT /api/assets/{id}", authMW(requireAssetWrite(http.HandlerFunc(assetsHandler.Update))))
	mux.Handle("DELETE /api/assets/{id}", authMW(requireAssetWrite(http.HandlerFunc(assetsHandler.Delete))))
	mux.Handle("PUT /api/assets/{id}/photo", authMW(requireAssetWrite(http.HandlerFunc(assetsHandler.UploadPhoto))))
	mux.Handle("GET /api/assets/{id}/photo", authMW(http.HandlerFunc(assetsHandler.GetPhoto)))
	mux.Handle("GET /api/assets/{id}/thumbnail", authMW(http.HandlerFunc(assetsHandler.GetThumbnail)))
	mux.Handle("GET /api/assets/{id}/history", authMW(http.HandlerFunc(assetsHandler.GetHistory)))

	// Borrowing batches. Role checks happen inside the workflow policy, so
	// every authenticated user reaches the handler and gets a 403/404 from
	// the executor when the action is not theirs to take.
	mux.Handle("POST /api/batches", authMW(http.HandlerFunc(batchesHandler.Create)))
	mux.Handle("GET /api/batches", authMW(http.HandlerFunc(batchesHandler.List)))
	mux.Handle("GET /api/batches/{id}", authMW(http.HandlerFunc(batchesHandler.Get)))
	mux.Handle("PUT /api/batches/{id}", authMW(http.HandlerFunc(batchesHandler.Update)))
	mux.Handle("POST /api/batches/{id}/submit", authMW(http.HandlerFunc(batchesHandler.Submit)))
	mux.Handle("POST /api/batches/{id}/verify", authMW(http.HandlerFunc(batchesHandler.Verify)))
	mux.Handle("POST /api/batches/{id}/approve", authMW(http.HandlerFunc(batchesHandler.Approve)))
	mux.Handle("POST /api/batches/{id}/release", authMW(http.HandlerFunc(batchesHandler.Release)))
	mux.Handle("POST /api/batches/{id}/return", authMW(http.HandlerFunc(batchesHandler.Return)))
	mux.Handle("POST /api/batches/{id}/extend", authMW(http.HandlerFunc(batchesHandler.Extend)))
	mux.Handle("POST /api/batches/{id}/cancel", authMW(http.HandlerFunc(batchesHandler.Cancel)))

	return mux
}
