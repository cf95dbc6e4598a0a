package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/pulsemon/internal/console/handler"
	"github.com/xela07ax/pulsemon/internal/infra"
	"github.com/xela07ax/pulsemon/internal/infra/auth"
	"go.uber.org/zap"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Интерфейс для проверки токенов (RS256)
	// Реализуется через embedding BaseValidator в AuthService
	authValidator auth.TokenValidator

	// Обработчики бизнес-доменов
	authHandler     *handler.AuthHandler     // /auth/token
	endpointHandler *handler.EndpointHandler // /v1/endpoints
	incidentHandler *handler.IncidentHandler // /v1/incidents
}

// NewConsoleServer инициализирует сервер консоли со всеми зависимостями
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	validator auth.TokenValidator,
	authH *handler.AuthHandler,
	endpointH *handler.EndpointHandler,
	incidentH *handler.IncidentHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:          chi.NewRouter(),
		logger:          logger.Named("console-api"),
		cfg:             cfg,
		authValidator:   validator,
		authHandler:     authH,
		endpointHandler: endpointH,
		incidentHandler: incidentH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)

		// Healthcheck самой консоли (не путать со здоровьем эндпоинтов)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		// Подключаем универсальный Middleware только для этой группы
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		// Управление эндпоинтами и их read-model
		r.Route("/v1/endpoints", func(r chi.Router) {
			r.Get("/", s.endpointHandler.List)    // Список всех эндпоинтов
			r.Post("/", s.endpointHandler.Create) // Регистрация нового
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.endpointHandler.Get)
				r.Put("/", s.endpointHandler.Update)
				r.Delete("/", s.endpointHandler.Delete)
				r.Get("/health", s.endpointHandler.GetHealth)       // Кэшированная сводка
				r.Get("/score", s.endpointHandler.GetScore)         // Последний рейтинг
				r.Get("/incidents", s.endpointHandler.ListIncidents)
			})
		})

		// Жизненный цикл инцидентов
		r.Route("/v1/incidents", func(r chi.Router) {
			r.Get("/", s.incidentHandler.List) // ?status=active|resolved|...
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.incidentHandler.Get)                  // Инцидент + хронология
				r.Post("/status", s.incidentHandler.UpdateStatus)  // Переход машины состояний
				r.Post("/severity", s.incidentHandler.UpdateSeverity)
				r.Post("/merge", s.incidentHandler.Merge)          // Слияние дубликатов
			})
		})
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
