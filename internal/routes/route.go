package routes

import (
	"cablenet/internal/auth"
	"cablenet/internal/config"
	"cablenet/internal/editor"
	"cablenet/internal/handlers"
	"cablenet/internal/logger"
	"cablenet/internal/metrics"
	mdlwr "cablenet/internal/middleware"
	"cablenet/internal/services"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// NewRouter wires services and handlers. The returned manager owns the
// editing workspaces; its janitor is started by the caller.
func NewRouter(db *bun.DB, cfg *config.Config, logr *logger.Logger, m *metrics.Metrics) (http.Handler, *editor.Manager) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(mdlwr.AccessLog(logr.Logger, m))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTIssuer)
	if err != nil {
		logr.Fatal("failed to init jwt manager", zap.Error(err))
	}

	authSvc := services.NewAuthService(db, jwtMgr, cfg, logr)
	userSvc := services.NewUserService(db)
	areaSvc := services.NewAreaService(db, cfg.DefaultAreaRadius, cfg.CirclePolygonSides)
	locationSvc := services.NewLocationService(db, areaSvc)
	hubSvc := services.NewHubService(db, cfg.CentralHub)
	serviceTypeSvc := services.NewServiceTypeService(db)

	editors := editor.NewManager(userSvc, locationSvc, editor.Options{
		MaxInterval:   cfg.MaxControlInterval,
		SpacingMeters: cfg.RouteVertexSpacing,
		IdleTimeout:   cfg.EditorIdleTimeout,
	}, logr.Logger, m)

	authMW := mdlwr.NewAuthMiddleware(jwtMgr, authSvc, logr.Logger)

	authHandler := handlers.NewAuthHandler(authSvc, logr.Logger, cfg)
	userHandler := handlers.NewUserHandler(userSvc, editors, m, logr.Logger)
	serviceTypeHandler := handlers.NewServiceTypeHandler(serviceTypeSvc, logr.Logger)
	locationHandler := handlers.NewLocationHandler(locationSvc, hubSvc, editors, m, logr.Logger)
	hubHandler := handlers.NewHubHandler(hubSvc, logr.Logger)
	areaHandler := handlers.NewAreaHandler(areaSvc, logr.Logger)
	routeHandler := handlers.NewRouteHandler(locationSvc, editors, logr.Logger)
	editorHandler := handlers.NewEditorHandler(editors, logr.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.LoginLocal)
			r.Post("/ldap", authHandler.LoginLDAP)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMW.JWTAuth)

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", userHandler.Me)
				r.Get("/geojson", userHandler.GetGeoJSON)
				r.Put("/geojson", userHandler.PutGeoJSON)
			})

			r.Route("/service-types", func(r chi.Router) {
				r.Get("/", serviceTypeHandler.List)
				r.Post("/", serviceTypeHandler.Create)
				r.Get("/{id}", serviceTypeHandler.Get)
				r.Put("/{id}", serviceTypeHandler.Update)
				r.Delete("/{id}", serviceTypeHandler.Delete)
			})

			r.Route("/locations", func(r chi.Router) {
				r.Get("/", locationHandler.List)
				r.Post("/", locationHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", locationHandler.Get)
					r.Put("/", locationHandler.Update)
					r.Delete("/", locationHandler.Delete)
					r.Post("/cable", locationHandler.CreateCable)
					r.Post("/junction-boxes", locationHandler.AddJunctionBox)
					r.Delete("/junction-boxes/{boxId}", locationHandler.DeleteJunctionBox)
				})
			})

			r.Route("/hubs", func(r chi.Router) {
				r.Get("/", hubHandler.List)
				r.Post("/", hubHandler.Create)
				r.Get("/{id}", hubHandler.Get)
				r.Put("/{id}", hubHandler.Update)
				r.Delete("/{id}", hubHandler.Delete)
			})

			r.Route("/areas", func(r chi.Router) {
				r.Get("/", areaHandler.List)
				r.Post("/", areaHandler.Create)
				r.Get("/geojson", areaHandler.Coverage)
				r.Get("/{id}", areaHandler.Get)
				r.Delete("/{id}", areaHandler.Delete)
			})

			r.Route("/routes", func(r chi.Router) {
				r.Get("/ghosts", routeHandler.Ghosts)
				r.Post("/ghosts/erase", routeHandler.EraseGhosts)
				r.Get("/export.kml", routeHandler.ExportKML)
			})

			r.Route("/editor", func(r chi.Router) {
				r.Get("/", editorHandler.Status)
				r.Post("/reload", editorHandler.Reload)
				r.Get("/map", editorHandler.Map)
				r.Put("/map/visibility", editorHandler.SetVisibility)

				r.Route("/route", func(r chi.Router) {
					r.Post("/", editorHandler.EditRoute)
					r.Post("/markers/{vertex}", editorHandler.DragMarker)
					r.Put("/interval", editorHandler.SetInterval)
					r.Post("/save", editorHandler.SaveRoute)
					r.Post("/cancel", editorHandler.CancelRoute)
				})

				r.Route("/junctions", func(r chi.Router) {
					r.Post("/", editorHandler.PlaceJunctions)
					r.Post("/pick", editorHandler.PickJunction)
					r.Post("/done", editorHandler.DoneJunctions)
					r.Post("/cancel", editorHandler.CancelJunctions)
					r.Post("/show", editorHandler.ShowJunctions)
				})
			})
		})
	})

	return r, editors
}
