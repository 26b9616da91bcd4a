package verificationHandler

import (
	"time"

	contextPkg "VerifyGolang/pkg/context"
	"VerifyGolang/pkg/handlerUtil"
	"VerifyGolang/pkg/log"
	"VerifyGolang/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *VerificationHandler) UploadIDStill(ctx *fiber.Ctx) error {
	return h.uploadStill(ctx, "upload_id_still", func(c context.Context, reqID string, data []byte) (interface{}, error) {
		return h.verificationService.SaveIDStill(c, reqID, data)
	})
}

func (h *VerificationHandler) UploadIDBackStill(ctx *fiber.Ctx) error {
	return h.uploadStill(ctx, "upload_id_back_still", func(c context.Context, reqID string, data []byte) (interface{}, error) {
		return h.verificationService.SaveIDBackStill(c, reqID, data)
	})
}

func (h *VerificationHandler) uploadStill(
	ctx *fiber.Ctx,
	operation string,
	save func(ctx context.Context, reqID string, data []byte) (interface{}, error),
) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	reqID := ctx.FormValue("req_id")
	if reqID == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			fiber.NewError(fiber.StatusBadRequest, "req_id is required"), ctx.Path())
	}

	file, err := ctx.FormFile("image")
	if err != nil {
		return errHandler.HandleValidationError(ctx, requestID,
			fiber.NewError(fiber.StatusBadRequest, "image file is required"), ctx.Path())
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"req_id":     reqID,
		"file_name":  file.Filename,
		"file_size":  file.Size,
		"path":       ctx.Path(),
	}).Debug("Processing still upload")

	if err := h.utils.ValidateImageFile(file); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	fileContent, err := file.Open()
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "open_file")
	}
	defer fileContent.Close()

	data, err := utils.ReadMultipart(fileContent)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_file")
	}

	resp, err := save(c, reqID, data)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), operation)
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
	}
}

func (h *VerificationHandler) UploadLiveClip(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	// Normalization transcodes the clip, so this route gets a wider budget.
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 60*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	reqID := ctx.FormValue("req_id")
	if reqID == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			fiber.NewError(fiber.StatusBadRequest, "req_id is required"), ctx.Path())
	}

	file, err := ctx.FormFile("video")
	if err != nil {
		return errHandler.HandleValidationError(ctx, requestID,
			fiber.NewError(fiber.StatusBadRequest, "video file is required"), ctx.Path())
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"req_id":     reqID,
		"file_name":  file.Filename,
		"file_size":  file.Size,
		"path":       ctx.Path(),
	}).Info("Processing live clip upload")

	if err := h.utils.ValidateVideoFile(file); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	fileContent, err := file.Open()
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "open_file")
	}
	defer fileContent.Close()

	data, err := utils.ReadMultipart(fileContent)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_file")
	}

	resp, err := h.verificationService.SaveLiveClip(c, reqID, file.Filename, data)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "upload_live_clip")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
	}
}
