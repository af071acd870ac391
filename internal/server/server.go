package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bubasket/marketplace-backend/internal/config"
	"github.com/bubasket/marketplace-backend/internal/handler"
	appmw "github.com/bubasket/marketplace-backend/internal/middleware"
	"github.com/bubasket/marketplace-backend/internal/repository"
	"github.com/bubasket/marketplace-backend/internal/service"
	"github.com/bubasket/marketplace-backend/internal/ws"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type Server struct {
	e           *echo.Echo
	hub         *ws.Hub
	convRepo    repository.ConversationRepository
	msgRepo     repository.MessageRepository
	listingRepo repository.ListingRepository
	profileRepo repository.ProfileRepository
	sha         string
	build       string
}

func New(db *gorm.DB, cfg *config.Config, logger *slog.Logger, sha, buildTime string) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			low := strings.ToLower(origin)
			if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
				strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
				return true, nil
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false, nil
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false, nil
			}
			if strings.HasSuffix(u.Hostname(), "vercel.app") {
				return true, nil
			}
			return false, nil
		},
	}))

	hub := ws.NewHub(logger)

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	listingRepo := repository.NewListingRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	convSvc := service.NewConversationService(convRepo, listingRepo, logger)
	msgSvc := service.NewMessageService(msgRepo, convRepo, convSvc, hub, service.MessagePolicy{
		MaxLength:       cfg.MaxMessageLength,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	}, logger)
	unreadSvc := service.NewUnreadService(msgRepo, convSvc, logger)
	inboxSvc := service.NewInboxService(convRepo, msgRepo, listingRepo, profileRepo, logger)

	convHandler := handler.NewConversationHandler(convSvc, inboxSvc, unreadSvc)
	msgHandler := handler.NewMessageHandler(msgSvc)

	authMw, err := appmw.NewAuthMiddleware(context.Background())
	if err != nil {
		return nil, err
	}
	wsHandler := handler.NewWSHandler(convSvc, hub, authMw)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    sha,
			"build_time": buildTime,
		})
	})

	api := e.Group("/api")
	api.POST("/listings/:id/conversations", convHandler.ResolveFromListing, authMw.RequireAuth)
	api.GET("/conversations", convHandler.List, authMw.RequireAuth)
	api.GET("/conversations/:id", convHandler.Get, authMw.RequireAuth)
	api.DELETE("/conversations/:id", convHandler.Delete, authMw.RequireAuth)
	api.GET("/conversations/:id/messages", msgHandler.List, authMw.RequireAuth)
	api.POST("/conversations/:id/messages", msgHandler.Create, authMw.RequireAuth)
	api.POST("/conversations/:id/read", msgHandler.MarkRead, authMw.RequireAuth)
	// Token auth happens inside the handler; see TokenVerifier.
	api.GET("/conversations/:id/ws", wsHandler.Subscribe)
	api.GET("/me/unread-count", convHandler.UnreadCount, authMw.RequireAuth)

	return &Server{
		e:           e,
		hub:         hub,
		convRepo:    convRepo,
		msgRepo:     msgRepo,
		listingRepo: listingRepo,
		profileRepo: profileRepo,
		sha:         sha,
		build:       buildTime,
	}, nil
}

// SetDB swaps in the database connection after the server has started
// listening. Until it is called, repositories answer ErrDBNotReady and
// handlers respond 500.
func (s *Server) SetDB(db *gorm.DB) {
	s.convRepo.SetDB(db)
	s.msgRepo.SetDB(db)
	s.listingRepo.SetDB(db)
	s.profileRepo.SetDB(db)
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}
