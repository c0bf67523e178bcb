// services/http.go
package services

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/riddlehouse/riddle_api/services/handlers"
	"github.com/riddlehouse/riddle_api/shared"
)

type HttpService struct {
	context.DefaultService

	authSvc        *AuthService
	rateLimitSvc   *RateLimitService
	catalogSvc     *CatalogService
	mediaSvc       *MediaService
	progressionSvc *ProgressionService
	monitoringSvc  *MonitoringService

	processHandler  *handlers.ProcessHandler
	progressHandler *handlers.ProgressHandler
	adminHandler    *handlers.AdminHandler

	port   int
	server *fiber.App
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *context.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	svc.authSvc = svc.Service(AUTH_SVC).(*AuthService)
	svc.rateLimitSvc = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	svc.catalogSvc = svc.Service(CATALOG_SVC).(*CatalogService)
	svc.mediaSvc = svc.Service(MEDIA_SVC).(*MediaService)
	svc.progressionSvc = svc.Service(PROGRESSION_SVC).(*ProgressionService)
	svc.monitoringSvc = svc.Service(MONITORING_SVC).(*MonitoringService)

	svc.processHandler = handlers.NewProcessHandler(svc.progressionSvc)
	svc.progressHandler = handlers.NewProgressHandler(svc.progressionSvc)
	svc.adminHandler = handlers.NewAdminHandler(svc.catalogSvc, svc.mediaSvc)

	app := fiber.New(fiber.Config{
		ErrorHandler: shared.ErrorHandler,
		JSONEncoder:  sonic.Marshal,
		JSONDecoder:  sonic.Unmarshal,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(MonitoringMiddleware(svc.monitoringSvc))

	app.Get("/ping", svc.ping)

	v1 := app.Group("/api/v1")

	v1.Post("/process",
		svc.authSvc.RequiredAuth(),
		svc.rateLimitSvc.Limit("process", 600, time.Minute),
		svc.processHandler.ProcessVisit)

	v1.Get("/progress/:riddle",
		svc.authSvc.RequiredAuth(),
		svc.rateLimitSvc.Limit("progress", 60, time.Minute),
		svc.progressHandler.GetProgress)

	v1.Post("/rate/:riddle/:level",
		svc.authSvc.RequiredAuth(),
		svc.rateLimitSvc.Limit("rate", 30, time.Minute),
		svc.progressHandler.RateLevel)

	v1.Get("/leaderboard/:riddle",
		svc.rateLimitSvc.Limit("leaderboard", 60, time.Minute),
		svc.progressHandler.Leaderboard)

	v1.Post("/admin/reload/:riddle",
		svc.authSvc.RequiredAuth(),
		svc.adminHandler.ReloadRiddle)

	v1.Post("/admin/media/:object",
		svc.authSvc.RequiredAuth(),
		svc.adminHandler.UploadMedia)

	svc.server = app
	return app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", "pong")
}
