package httpapi

import (
	"net/http"
	"net/url"

	"github.com/DoyleJ11/liars-dice-backend/internal/gateway"
	"github.com/DoyleJ11/liars-dice-backend/internal/registry"
	"github.com/DoyleJ11/liars-dice-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type Deps struct {
	Registry       *registry.Registry
	Gateway        *gateway.Gateway
	WS             ws.Options
	AllowedOrigins []string
	Version        string
	Logger         *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.WS.Logger == nil {
		d.WS.Logger = d.Logger
	}
	if d.WS.OriginPatterns == nil {
		d.WS.OriginPatterns = originHosts(d.AllowedOrigins)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/version", Version(d.Version))
	r.Get("/rooms", ListRooms(d.Registry, d.Logger))
	r.Get("/ws", ws.Handler(d.Gateway, d.WS))

	c := cors.New(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// originHosts turns CORS origins into the host patterns websocket.Accept
// matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}
