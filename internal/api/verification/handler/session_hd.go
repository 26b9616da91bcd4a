package verificationHandler

import (
	"time"

	contextPkg "VerifyGolang/pkg/context"
	"VerifyGolang/pkg/handlerUtil"
	"VerifyGolang/pkg/log"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *VerificationHandler) NewSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing new session request")

	reqID, err := h.verificationService.CreateSession(c)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "create_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, fiber.Map{
			"req_id": reqID,
		})
	}
}

func (h *VerificationHandler) GetSessionState(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	reqID := ctx.Params("req_id")
	if reqID == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			fiber.NewError(fiber.StatusBadRequest, "req_id is required"), ctx.Path())
	}

	state, err := h.verificationService.GetSessionState(c, reqID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session_state")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, state)
	}
}

func (h *VerificationHandler) VerifySession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	// Finalization samples and matches video frames, which can outlive the
	// usual request budget.
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 60*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	reqID := ctx.FormValue("req_id")
	if reqID == "" {
		reqID = ctx.Query("req_id")
	}
	if reqID == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			fiber.NewError(fiber.StatusBadRequest, "req_id is required"), ctx.Path())
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"req_id":     reqID,
		"path":       ctx.Path(),
	}).Info("Processing session verification request")

	result, err := h.verificationService.VerifySession(c, reqID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "verify_session")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}
