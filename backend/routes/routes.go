package routes

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"finscholars/backend/auth"
	"finscholars/backend/config"
	"finscholars/backend/controllers"
	"finscholars/backend/learning"
	"finscholars/backend/metrics"
	"finscholars/backend/middleware"
	"finscholars/backend/sessions"
	"finscholars/backend/users"
	"finscholars/backend/utils"
)

// Deps are the services the HTTP layer is built from.
type Deps struct {
	Cfg      *config.Config
	Auth     *auth.Manager
	Sessions *sessions.Manager
	Users    *users.Manager
	Learning *learning.Service
	TTS      controllers.Synthesizer
	Models   controllers.Inferencer
	Log      *utils.Logger
}

// NewApp builds the Fiber app with global middleware and all routes.
func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "finscholars",
		ErrorHandler:          utils.ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	origins := strings.Join(d.Cfg.CORSOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		// Fiber rejects credentials combined with a wildcard origin.
		AllowCredentials: !strings.Contains(origins, "*"),
	}))
	app.Use(middleware.LoggingMiddleware(d.Log))

	SetupRoutes(app, d)
	return app
}

func SetupRoutes(app *fiber.App, d Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return utils.OK(c, fiber.Map{
			"status":          "ok",
			"active_sessions": d.Sessions.ActiveCount(),
			"cached_users":    d.Users.ActiveCount(),
		})
	})
	app.Get("/metrics", metrics.Handler())

	// Auth routes
	authController := controllers.NewAuthController(d.Auth, d.Sessions, d.Cfg)
	app.Post("/api/user/signup", authController.Signup)
	app.Post("/api/user/login", authController.Login)
	app.Post("/api/user/reset-password", authController.ResetPassword)
	app.Post("/api/user/reset-password/confirm", authController.ConfirmPasswordReset)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(d.Auth)

	// User routes
	userController := controllers.NewUserController(d.Users)
	user := app.Group("/api/user", authMiddleware)
	user.Post("/logout", authController.Logout)
	user.Post("/password", authController.UpdatePassword)
	user.Get("/sessions", authController.ListSessions)
	user.Post("/session/refresh", authController.RefreshSession)
	user.Get("/me", userController.GetProfile)
	user.Post("/interests", userController.UpdateInterests)
	user.Post("/settings", userController.UpdateSettings)
	user.Post("/focus/start", userController.StartFocus)
	user.Post("/focus/end", userController.EndFocus)

	// Learning routes
	moduleController := controllers.NewModuleController(d.Learning)
	user.Post("/upload-syllabus", moduleController.UploadSyllabus)
	ttsController := controllers.NewTTSController(d.Learning, d.TTS, d.Log)
	inferenceController := controllers.NewInferenceController(d.Models, d.Log)
	api := app.Group("/api", authMiddleware)
	api.Post("/generate-module", moduleController.GenerateModule)
	api.Post("/update-interests", moduleController.UpdateInterests)
	api.Post("/process-syllabus", moduleController.ProcessSyllabus)
	api.Get("/quiz-status/:module_id", moduleController.QuizStatus)
	api.Get("/module-content/:id", moduleController.GetModuleContent)
	api.Get("/modules/:id/quiz", moduleController.GetModuleQuiz)
	api.Post("/submit-answer", moduleController.SubmitAnswer)
	api.Get("/tts/:id", ttsController.GetAudio)
	api.Get("/tts-stream/:id", ttsController.StreamAudio)
	api.Post("/model/inference", inferenceController.RunInference)

	if d.Cfg.StaticDir != "" {
		app.Static("/", d.Cfg.StaticDir)
	}
}
