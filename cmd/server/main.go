package main

import (
	"fmt"
	"html/template"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/icco/goban"
	"github.com/icco/goban/cmd/server/docs"
	"github.com/icco/gutil/logging"
	"github.com/microcosm-cc/bluemonday"
	"github.com/swaggo/http-swagger"
	"github.com/unrolled/render"
	"github.com/unrolled/secure"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var (
	// Renderer is a renderer for all occasions. These are our preferred default options.
	// See:
	//  - https://github.com/unrolled/render/blob/v1/README.md
	//  - https://godoc.org/gopkg.in/unrolled/render.v1
	Renderer = render.New(render.Options{
		Charset:                   "UTF-8",
		Directory:                 "views",
		DisableHTTPErrorRendering: false,
		Extensions:                []string{".tmpl", ".html"},
		IndentJSON:                false,
		IndentXML:                 true,
		Layout:                    "layout",
		RequirePartials:           true,
		Funcs:                     []template.FuncMap{},
	})

	log       = logging.Must(logging.NewLogger(goban.Service))
	ugcPolicy = bluemonday.StrictPolicy()
)

// @title Goban API
// @version 1.0
// @description A Go/Weiqi game session API. The server persists sessions and their move logs; all game rules live in the client.
// @contact.name API Support
// @contact.url http://github.com/icco/goban
// @license.name MIT
// @license.url https://github.com/icco/goban/blob/main/LICENSE
// @host goban.app
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token in format: Bearer {token}

func main() {
	port := "8080"
	if fromEnv := os.Getenv("PORT"); fromEnv != "" {
		port = fromEnv
	}
	log.Infow("Starting up", "host", fmt.Sprintf("http://localhost:%s", port))

	isDev := os.Getenv("NAT_ENV") != "production"

	db, err := getDB()
	if err != nil {
		log.Panicw("could not get db", zap.Error(err))
		return
	}

	auth, err := newAuthService()
	if err != nil {
		log.Panicw("could not configure auth", zap.Error(err))
		return
	}

	s := &apiServer{db: db, auth: auth}

	metricsHandler, err := setupMetrics()
	if err != nil {
		log.Panicw("could not set up metrics", zap.Error(err))
		return
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(log.Desugar()))

	r.Use(cors.New(cors.Options{
		AllowCredentials:   true,
		OptionsPassthrough: true,
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:     []string{"Link"},
		MaxAge:             300, // Maximum value not ignored by any of major browsers
	}).Handler)

	r.NotFound(notFoundHandler)

	// Stuff that does not ssl redirect
	r.Group(func(r chi.Router) {
		r.Use(secure.New(secure.Options{
			BrowserXssFilter:   true,
			ContentTypeNosniff: true,
			FrameDeny:          true,
			HostsProxyHeaders:  []string{"X-Forwarded-Host"},
			IsDevelopment:      isDev,
			SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		}).Handler)

		r.Get("/healthz", healthCheckHandler)
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	})

	// Everything that does SSL only
	r.Group(func(r chi.Router) {
		r.Use(secure.New(secure.Options{
			BrowserXssFilter:     true,
			ContentTypeNosniff:   true,
			FrameDeny:            true,
			HostsProxyHeaders:    []string{"X-Forwarded-Host"},
			IsDevelopment:        isDev,
			SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
			SSLRedirect:          !isDev,
			STSIncludeSubdomains: true,
			STSPreload:           true,
			STSSeconds:           315360000,
		}).Handler)

		r.Get("/", rootHandler)
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))

		r.Mount("/user", s.userRoutes())

		// Everything below requires a verified identity token.
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Post("/game/new", s.newGameHandler)
			r.Get("/game/active", s.activeGameHandler)
			r.Post("/game/move", s.moveHandler)
			r.Post("/game/pass", s.passHandler)
			r.Post("/game/pause", s.pauseHandler)
			r.Post("/game/finish", s.finishHandler)
			r.Get("/game/history", s.historyHandler)
			r.Get("/game/history/{id}", s.gameMovesHandler)
		})
	})

	server := &http.Server{
		Addr:           ":" + port,
		Handler:        otelhttp.NewHandler(r, goban.Service),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}
	log.Fatal(server.ListenAndServe())
}

// @Summary Get API information
// @Description Returns basic API information and available endpoints
// @Tags info
// @Accept json
// @Produce html
// @Success 200 {string} string "HTML page with API information"
// @Router / [get]
func rootHandler(w http.ResponseWriter, r *http.Request) {
	spec, err := docs.GetSwaggerSpec()
	if err != nil {
		log.Errorw("failed to parse swagger.json", zap.Error(err))
		writeStaticHomePage(w)
		return
	}

	html := `
<html>
  <head>
    <title>Goban API</title>
    <style>
      body { font-family: Arial, sans-serif; max-width: 800px; margin: 40px auto; padding: 20px; }
      h1 { color: #333; }
      .endpoint { margin: 20px 0; padding: 15px; border-left: 4px solid #007acc; background: #f8f9fa; }
      .method { font-weight: bold; color: #007acc; text-transform: uppercase; }
      .path { font-family: monospace; color: #333; margin: 5px 0; }
      .description { color: #666; margin: 5px 0; }
      .tag { background: #e1ecf4; color: #39739d; padding: 2px 6px; border-radius: 3px; font-size: 0.8em; margin-right: 5px; }
    </style>
  </head>
  <body>
    <h1>Goban API</h1>
    <p>A Go/Weiqi game session API. The server stores sessions and move logs; the client owns the rules.</p>
    <p><a href="/swagger/">View Swagger Documentation</a></p>

    <h2>Available Endpoints</h2>`

	for path, methods := range spec.Paths {
		for method, info := range methods {
			html += fmt.Sprintf(`
    <div class="endpoint">
      <div class="method">%s</div>
      <div class="path">%s</div>
      <div class="description">%s</div>
      <div>`, method, path, info.Description)

			for _, tag := range info.Tags {
				html += fmt.Sprintf(`<span class="tag">%s</span>`, tag)
			}

			html += `</div>
    </div>`
		}
	}

	html += `
  </body>
</html>`

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(html)); err != nil {
		log.Errorw("failed to write response", zap.Error(err))
	}
}

func writeStaticHomePage(w http.ResponseWriter) {
	html := `
<html>
  <head>
    <title>Goban API</title>
  </head>
  <body>
    <h1>Goban API</h1>
    <p><a href="/swagger/">View Swagger Documentation</a></p>
    <ul>
      <li>POST /user/signup - Register</li>
      <li>POST /user/login - Login</li>
      <li>POST /game/new - Start a new game</li>
      <li>GET /game/active - Get the active game</li>
      <li>POST /game/move - Record a move</li>
      <li>POST /game/pass - Record a pass</li>
      <li>POST /game/pause - Pause the active game</li>
      <li>POST /game/finish - Finish the active game</li>
      <li>GET /game/history - List session history</li>
      <li>GET /game/history/{id} - Get one session's move log</li>
      <li>GET /healthz - Health check</li>
    </ul>
  </body>
</html>`

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(html)); err != nil {
		log.Errorw("failed to write response", zap.Error(err))
	}
}

// @Summary Health check
// @Description Returns service health status
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, HealthResponse{
		Healthy:  "true",
		Revision: os.Getenv("GIT_REVISION"),
		Tag:      os.Getenv("GIT_TAG"),
		Branch:   os.Getenv("GIT_BRANCH"),
	})
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusNotFound, ErrorResponse{
		Error: "404: This page could not be found",
	})
}
