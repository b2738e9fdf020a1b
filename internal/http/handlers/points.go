package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/geocoder89/idprint/internal/actorctx"
	"github.com/geocoder89/idprint/internal/domain/points"
	"github.com/geocoder89/idprint/internal/domain/user"
	"github.com/geocoder89/idprint/internal/extractor"
	"github.com/geocoder89/idprint/internal/metering"
	"github.com/gin-gonic/gin"
)

const (
	HeaderPointsRemaining = "X-Points-Remaining"

	multipartMemory = 8 << 20
)

type PointsService interface {
	Process(ctx context.Context, p actorctx.Principal, req metering.ProcessRequest) (metering.Outcome, error)
	Balance(ctx context.Context, p actorctx.Principal) (points.Balance, error)
	History(ctx context.Context, p actorctx.Principal, limit int, cursor string) (metering.HistoryPage, error)
	Credit(ctx context.Context, p actorctx.Principal, req metering.CreditRequest) (user.User, error)
}

type PointsHandler struct {
	svc PointsService
}

func NewPointsHandler(svc PointsService) *PointsHandler {
	return &PointsHandler{svc: svc}
}

func principal(ctx *gin.Context) actorctx.Principal {
	p, _ := actorctx.PrincipalFrom(ctx.Request.Context())
	return p
}

// GetPoints returns the caller's current balance.
func (h *PointsHandler) GetPoints(ctx *gin.Context) {
	b, err := h.svc.Balance(ctx.Request.Context(), principal(ctx))
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, b)
}

func (h *PointsHandler) History(ctx *gin.Context) {
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			RespondBadRequest(ctx, "Invalid request", gin.H{"field": "limit", "message": "must be an integer"})
			return
		}
		limit = n
	}

	page, err := h.svc.History(ctx.Request.Context(), principal(ctx), limit, ctx.Query("cursor"))
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, page)
}

// ChargeAndProcess picks the operation from the "operation" form field,
// falling back to the shape of the upload: a "file" part means PDF.
func (h *PointsHandler) ChargeAndProcess(ctx *gin.Context) {
	h.process(ctx, "")
}

func (h *PointsHandler) ProcessPDF(ctx *gin.Context) {
	h.process(ctx, points.OpProcessPDF)
}

func (h *PointsHandler) ProcessScreenshots(ctx *gin.Context) {
	h.process(ctx, points.OpProcessScreenshots)
}

func (h *PointsHandler) process(ctx *gin.Context, op points.Operation) {
	p := principal(ctx)
	if !p.Authenticated() {
		RespondDomainError(ctx, points.ErrUnauthorized)
		return
	}

	if err := ctx.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large",
				"Upload exceeds the size limit", gin.H{"limitBytes": tooLarge.Limit})
			return
		}
		RespondBadRequest(ctx, "Expected a multipart/form-data upload", nil)
		return
	}
	defer func() { _ = ctx.Request.MultipartForm.RemoveAll() }()

	payload, err := readPayload(ctx.Request.MultipartForm)
	if err != nil {
		RespondBadRequest(ctx, "Could not read uploaded file", nil)
		return
	}

	if op == "" {
		op = detectOperation(ctx.Request.MultipartForm, payload)
	}

	out, err := h.svc.Process(ctx.Request.Context(), p, metering.ProcessRequest{
		Operation: op,
		Payload:   payload,
		RequestID: requestIDFrom(ctx),
	})
	if err != nil {
		RespondDomainError(ctx, err)
		return
	}

	ctx.Header(HeaderPointsRemaining, strconv.Itoa(out.Balance))
	ctx.Data(http.StatusOK, "application/json; charset=utf-8", out.Raw)
}

func detectOperation(form *multipart.Form, payload extractor.Payload) points.Operation {
	if v := form.Value["operation"]; len(v) > 0 && v[0] != "" {
		return points.Operation(v[0])
	}
	if payload.File != nil {
		return points.OpProcessPDF
	}
	return points.OpProcessScreenshots
}

func readPayload(form *multipart.Form) (extractor.Payload, error) {
	var (
		p   extractor.Payload
		err error
	)

	for name, dst := range map[string]**extractor.Part{
		"file":   &p.File,
		"image1": &p.Image1,
		"image2": &p.Image2,
		"image3": &p.Image3,
	} {
		if *dst, err = readPart(form, name); err != nil {
			return extractor.Payload{}, err
		}
	}

	return p, nil
}

func readPart(form *multipart.Form, name string) (*extractor.Part, error) {
	headers := form.File[name]
	if len(headers) == 0 {
		return nil, nil
	}
	fh := headers[0]

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	return &extractor.Part{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
