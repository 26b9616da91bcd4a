package verificationHandler

import (
	verificationService "VerifyGolang/internal/api/verification/service"
	"VerifyGolang/internal/middleware"
	"VerifyGolang/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type VerificationHandler struct {
	log                 *logrus.Logger
	validator           *validator.Validate
	middleware          middleware.Middleware
	verificationService verificationService.IVerificationService
	utils               utils.IUtils
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	vs verificationService.IVerificationService,
	utils utils.IUtils,
) *VerificationHandler {
	return &VerificationHandler{
		verificationService: vs,
		log:                 log,
		validator:           validator,
		middleware:          middleware,
		utils:               utils,
	}
}

func (h *VerificationHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	v := srv.Group("/verification")

	v.Post("/req/new", h.middleware.NewRateLimiter, h.NewSession)
	v.Get("/req/state/:req_id", h.GetSessionState)

	v.Post("/upload-id-still", h.UploadIDStill)
	v.Post("/upload-id-back-still", h.UploadIDBackStill)
	v.Post("/upload-live-clip", h.UploadLiveClip)
	v.Post("/verify-session", h.VerifySession)

	v.Get("/review/:req_id", h.Review)
	v.Post("/manual-review/:req_id", h.middleware.NewTokenMiddleware, h.ManualReview)
	v.Get("/result/:req_id", h.Result)

	v.Use("/ws-id-live", wsMiddleware)
	v.Get("/ws-id-live", websocket.New(h.handleIDLiveStream))

	v.Use("/ws-id-back-live", wsMiddleware)
	v.Get("/ws-id-back-live", websocket.New(h.handleIDBackLiveStream))

	v.Use("/ws-live-verification", wsMiddleware)
	v.Get("/ws-live-verification", websocket.New(h.handleLivenessStream))
}
