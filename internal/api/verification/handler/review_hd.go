package verificationHandler

import (
	"time"

	"VerifyGolang/internal/api/verification"
	contextPkg "VerifyGolang/pkg/context"
	"VerifyGolang/pkg/handlerUtil"
	jwtPkg "VerifyGolang/pkg/jwt"
	"VerifyGolang/pkg/log"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *VerificationHandler) Review(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	reqID := ctx.Params("req_id")
	if reqID == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			fiber.NewError(fiber.StatusBadRequest, "req_id is required"), ctx.Path())
	}

	bundle, err := h.verificationService.ReviewBundle(c, reqID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "review_bundle")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, bundle)
	}
}

func (h *VerificationHandler) ManualReview(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	reviewer, err := jwtPkg.GetReviewerData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "reviewer credentials required")
	}

	reqID := ctx.Params("req_id")
	if reqID == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			fiber.NewError(fiber.StatusBadRequest, "req_id is required"), ctx.Path())
	}

	var req verification.ManualDecisionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"req_id":     reqID,
		"reviewer":   reviewer.ID,
		"decision":   req.Decision,
		"path":       ctx.Path(),
	}).Info("Processing manual review decision")

	resp, err := h.verificationService.ManualDecision(c, reqID, req.Decision)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "manual_decision")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
	}
}

// Result streams the best-match frame back to the caller so review tooling
// can embed it without going through S3.
func (h *VerificationHandler) Result(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	reqID := ctx.Params("req_id")
	if reqID == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			fiber.NewError(fiber.StatusBadRequest, "req_id is required"), ctx.Path())
	}

	path, err := h.verificationService.BestMatchImagePath(c, reqID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "best_match_image")
	}

	return ctx.SendFile(path)
}
