package main

import (
	"context"
	stdlog "log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	api "github.com/mind-engage/mindengage-grades/internal/api/http"
	"github.com/mind-engage/mindengage-grades/internal/auth"
	"github.com/mind-engage/mindengage-grades/internal/config"
	"github.com/mind-engage/mindengage-grades/internal/course"
	"github.com/mind-engage/mindengage-grades/internal/db"
	"github.com/mind-engage/mindengage-grades/internal/events"
	"github.com/mind-engage/mindengage-grades/internal/grades"
	"github.com/mind-engage/mindengage-grades/internal/metrics"
	"github.com/mind-engage/mindengage-grades/internal/rbac"
	"github.com/mind-engage/mindengage-grades/internal/scores"
	"github.com/mind-engage/mindengage-grades/internal/storage"
	"github.com/mind-engage/mindengage-grades/internal/tracing"
	"github.com/mind-engage/mindengage-grades/pkg/logging"
)

func main() {
	cfg := config.FromEnv()

	logger, err := logging.New(logging.Config{FilePath: cfg.LogFile, Level: cfg.LogLevel})
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	metrics.Init()
	if cfg.TracingEnabled {
		if _, err := tracing.InitTracer("mindengage-grades", cfg.JaegerEndpoint); err != nil {
			logger.Fatal("init tracer", zap.Error(err))
		}
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}

	// --- Course structures ---
	var courses course.Store
	switch cfg.CourseStore {
	case "blob":
		var bs storage.BlobStore
		switch cfg.BlobDriver {
		case "minio":
			bs, err = storage.NewMinioStore(ctx, storage.MinioConfig{
				Endpoint:  cfg.MinioEndpoint,
				AccessKey: cfg.MinioAccessKey,
				SecretKey: cfg.MinioSecretKey,
				Bucket:    cfg.MinioBucket,
				UseSSL:    cfg.MinioUseSSL,
			})
		default:
			bs, err = storage.NewFSStore(cfg.BlobBasePath)
		}
		if err != nil {
			logger.Fatal("blob store", zap.Error(err))
		}
		courses = course.NewBlobStore(bs)
	default:
		courses = course.NewSQLStore(dbh, cfg.DBDriver)
	}

	// --- Scores: local rows by default, remote score API when configured ---
	scoreStore := scores.NewSQLStore(dbh, cfg.DBDriver)
	var provider scores.Provider = scoreStore
	if cfg.ScoreAPIURL != "" {
		provider = scores.NewHTTPProvider(scores.HTTPConfig{
			BaseURL:      cfg.ScoreAPIURL,
			TokenURL:     cfg.ScoreAPITokenURL,
			ClientID:     cfg.ScoreAPIClientID,
			ClientSecret: cfg.ScoreAPIClientSecret,
			RateLimit:    cfg.ScoreAPIRPS,
			Burst:        cfg.ScoreAPIBurst,
		})
	}

	ev := events.NewRepo(dbh)
	factory := grades.NewFactory(courses, provider,
		grades.WithLogger(logger),
		grades.WithWorkers(cfg.GradeWorkers),
		grades.WithEvents(ev),
	)

	// --- Auth (local JWT for offline/dev) ---
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(metrics.Middleware)
	if cfg.TracingEnabled {
		r.Use(tracing.Middleware)
	}

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, cfg.AdminUser, cfg.AdminPassHash))
	}

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(middleware.Timeout(30 * time.Second))

		pr.With(rbac.Require("course:import")).
			Post("/courses", api.ImportCourseHandler(courses, ev))
		pr.With(rbac.Require("course:import")).
			Post("/courses/outline", api.ImportOutlineHandler(courses, ev))
		pr.With(rbac.Require("course:view")).
			Get("/courses", api.ListCoursesHandler(courses))
		pr.With(rbac.Require("course:view")).
			Get("/courses/{courseID}", api.GetCourseHandler(courses))
		pr.With(rbac.Require("course:view")).
			Get("/courses/{courseID}/blocks", api.ListBlocksHandler(courses))

		pr.With(rbac.Require("score:write")).
			Put("/courses/{courseID}/learners/{learnerID}/scores", api.UpsertScoresHandler(courses, scoreStore, ev))
		pr.With(rbac.RequireOwnerOr("grade:view-all", ownLearner)).
			Get("/courses/{courseID}/learners/{learnerID}/scores", api.ListScoresHandler(scoreStore))

		pr.With(rbac.RequireOwnerOr("grade:view-all", ownLearner)).
			Get("/courses/{courseID}/learners/{learnerID}/grade", api.GetGradeHandler(factory))
		pr.With(rbac.RequireOwnerOr("grade:view-all", ownLearner)).
			Get("/courses/{courseID}/learners/{learnerID}/grade/blocks/{blockID}", api.GetBlockGradeHandler(factory))

		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	// Batch grading streams NDJSON for as long as the client stays, so it
	// lives outside the request-timeout group.
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.With(rbac.Require("grade:batch")).
			Post("/courses/{courseID}/grades", api.BatchGradesHandler(factory, logger))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})
	r.Method("GET", "/metrics", metrics.Handler())

	logger.Info("listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("mode", string(cfg.Mode)),
		zap.String("db", cfg.DBDriver),
		zap.Int("workers", cfg.GradeWorkers))
	logger.Fatal("server exited", zap.Error(http.ListenAndServe(cfg.HTTPAddr, r)))
}

func ownLearner(r *http.Request) bool {
	sub := auth.SubjectFromContext(r.Context())
	return sub != "" && sub == chi.URLParam(r, "learnerID")
}
