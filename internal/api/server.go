// Package api serves the workshop REST surface over fiber.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/hurttlocker/taskmine/internal/timehint"
	"github.com/hurttlocker/taskmine/internal/workshop"
)

// MaxUploadFiles bounds one multipart upload.
const MaxUploadFiles = 10

// Options configures a Server. Zero values take defaults.
type Options struct {
	Logger *zap.Logger
	// BodyLimit caps request bodies in bytes; uploads share it.
	BodyLimit  int
	Version    string
	Normalizer *timehint.Normalizer
	// AllowOrigins is passed to the CORS middleware. Empty means "*".
	AllowOrigins string
}

// Server holds the fiber app and the services behind it.
type Server struct {
	app       *fiber.App
	workshops *workshop.Service
	extractor workshop.Extractor
	norm      *timehint.Normalizer
	log       *zap.Logger
	version   string
	started   time.Time
}

// New builds the app and registers every route.
func New(svc *workshop.Service, ex workshop.Extractor, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = MaxUploadFiles*int(workshop.DefaultMaxFileBytes) + 1<<20
	}
	if opts.Normalizer == nil {
		opts.Normalizer = timehint.New()
	}
	if opts.AllowOrigins == "" {
		opts.AllowOrigins = "*"
	}

	s := &Server{
		workshops: svc,
		extractor: ex,
		norm:      opts.Normalizer,
		log:       log.Named("api"),
		version:   opts.Version,
		started:   time.Now(),
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "taskmine",
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(requestLogger(s.log, s.handleError, "/api/health"))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: opts.AllowOrigins,
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       300,
	}))
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api")
	api.Get("/health", s.health)
	api.Post("/extract", s.extract)
	api.Post("/timehint", s.timeHint)

	ws := api.Group("/workshops")
	ws.Get("/", s.listWorkshops)
	ws.Post("/", s.createWorkshop)
	ws.Get("/:id", s.getWorkshop)
	ws.Delete("/:id", s.deleteWorkshop)
	ws.Get("/:id/summary", s.summary)
	ws.Get("/:id/files", s.listFiles)
	ws.Post("/:id/files", s.uploadFiles)
	ws.Post("/:id/analyze", s.analyze)

	ws.Get("/:id/tasks", s.listTasks)
	ws.Post("/:id/tasks", s.addTask)
	ws.Get("/:id/tasks/:taskId", s.getTask)
	ws.Patch("/:id/tasks/:taskId", s.updateTask)
	ws.Put("/:id/tasks/:taskId/status", s.moveTask)
	ws.Delete("/:id/tasks/:taskId", s.deleteTask)
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.log.Info("listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for open requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
