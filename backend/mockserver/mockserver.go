// Package mockserver serves canned API data so the frontend can run without a
// database or model credentials.
package mockserver

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"finscholars/backend/middleware"
	"finscholars/backend/utils"
)

type Module struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Progress    int      `json:"progress"`
	Topics      []string `json:"topics"`
}

type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

type account struct {
	ID       string
	Name     string
	Password string
}

// Server holds the mock data. Signups and generated modules live until the process exits.
type Server struct {
	mu       sync.RWMutex
	accounts map[string]account // by email
	tokens   map[string]string  // token -> user id
	modules  []Module
	badges   []Badge
}

func New() *Server {
	return &Server{
		accounts: map[string]account{
			"user@example.com": {ID: "1", Name: "Demo User", Password: "password123"},
		},
		tokens: make(map[string]string),
		modules: []Module{
			{ID: "1", Title: "Introduction to Financial Literacy", Description: "Learn the basics of financial literacy and why it matters.", Progress: 75, Topics: []string{"Budgeting", "Saving", "Credit Basics"}},
			{ID: "2", Title: "Investing Fundamentals", Description: "Understand how investing works and different investment options.", Progress: 30, Topics: []string{"Stocks", "Bonds", "Mutual Funds"}},
			{ID: "3", Title: "Debt Management", Description: "Learn strategies to manage and reduce debt effectively.", Progress: 0, Topics: []string{"Credit Cards", "Student Loans", "Debt Reduction"}},
		},
		badges: []Badge{
			{ID: "1", Name: "Budgeting Master", Description: "Completed the budgeting module with a perfect score", Image: "🏆"},
			{ID: "2", Name: "Savings Champion", Description: "Saved your first virtual $1,000", Image: "💰"},
			{ID: "3", Name: "Investment Guru", Description: "Successfully completed all investment modules", Image: "📈"},
		},
	}
}

// App builds the Fiber app. staticDir may be empty.
func (s *Server) App(staticDir string, log *utils.Logger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type, Authorization",
	}))
	app.Use(middleware.LoggingMiddleware(log))

	api := app.Group("/api")
	api.Get("/modules", s.listModules)
	api.Get("/badges", s.listBadges)
	api.Get("/user/profile", s.profile)
	api.Post("/auth/login", s.login)
	api.Post("/auth/signup", s.signup)
	api.Post("/generate-module", s.generateModule)
	api.Use(func(c *fiber.Ctx) error {
		return jsonError(c, fiber.StatusNotFound, "Not found")
	})

	if staticDir != "" {
		app.Get("/", func(c *fiber.Ctx) error {
			return c.Redirect("/homepage.html", fiber.StatusMovedPermanently)
		})
		app.Static("/", staticDir)
	}
	return app
}

func jsonError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

func (s *Server) listModules(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.JSON(s.modules)
}

func (s *Server) listBadges(c *fiber.Ctx) error {
	return c.JSON(s.badges)
}

func (s *Server) profile(c *fiber.Ctx) error {
	token := utils.BearerToken(c)

	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.tokens[token]
	if !ok {
		return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	for email, acc := range s.accounts {
		if acc.ID != userID {
			continue
		}
		return c.JSON(fiber.Map{
			"id":     acc.ID,
			"name":   acc.Name,
			"email":  email,
			"badges": s.badges[:2],
			"progress": fiber.Map{
				"completedModules": 1,
				"totalModules":     len(s.modules),
			},
		})
	}
	return jsonError(c, fiber.StatusUnauthorized, "Unauthorized")
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Server) login(c *fiber.Ctx) error {
	var in credentials
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid JSON")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[in.Email]
	if !ok || acc.Password != in.Password {
		return jsonError(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	token := "token_" + acc.ID
	s.tokens[token] = acc.ID
	return c.JSON(fiber.Map{"token": token, "user": fiber.Map{"name": acc.Name, "id": acc.ID}})
}

func (s *Server) signup(c *fiber.Ctx) error {
	var in credentials
	if err := c.BodyParser(&in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid JSON")
	}
	if in.Email == "" || in.Password == "" || in.Name == "" {
		return jsonError(c, fiber.StatusBadRequest, "Missing required fields")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[in.Email]; exists {
		return jsonError(c, fiber.StatusConflict, "User already exists")
	}
	id := strconv.Itoa(len(s.accounts) + 1)
	s.accounts[in.Email] = account{ID: id, Name: in.Name, Password: in.Password}
	token := "token_" + id
	s.tokens[token] = id
	return c.JSON(fiber.Map{"token": token, "user": fiber.Map{"name": in.Name}})
}

func (s *Server) generateModule(c *fiber.Ctx) error {
	var in struct {
		Topic string `json:"topic"`
		Level string `json:"level"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "Invalid JSON")
		}
	}
	if in.Topic == "" {
		in.Topic = "personal finance"
	}
	title := titleCase(in.Topic)

	s.mu.Lock()
	defer s.mu.Unlock()
	m := Module{
		ID:          strconv.Itoa(len(s.modules) + 1),
		Title:       fmt.Sprintf("Personalized %s Module", title),
		Description: fmt.Sprintf("AI-generated content about %s tailored to your learning style and preferences.", in.Topic),
		Topics: []string{
			"Introduction to " + title,
			"Key Concepts in " + title,
			"Practical Applications of " + title,
			"Advanced Strategies in " + title,
		},
	}
	s.modules = append(s.modules, m)
	return c.JSON(fiber.Map{"success": true, "module": m})
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
