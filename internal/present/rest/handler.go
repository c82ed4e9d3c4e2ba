package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/multicreator/mintpipe"
	"github.com/multicreator/mintpipe/internal/present/rest/presenter"
	"github.com/multicreator/mintpipe/internal/service"
	"github.com/multicreator/mintpipe/internal/usecase"
)

// maxAssetSize bounds the multipart upload (32 MiB).
const maxAssetSize = 32 << 20

// MintedRepository is the read side of the minted-token store.
type MintedRepository interface {
	GetByTokenID(ctx context.Context, tokenID string) (mintpipe.MintedRecord, error)
	List(ctx context.Context, limit int) ([]mintpipe.MintedRecord, error)
}

type Handler struct {
	coordinator *usecase.Coordinator
	minted      MintedRepository
	primary     usecase.StorageBackend
	events      *service.EventService
}

func NewHandler(
	coordinator *usecase.Coordinator,
	minted MintedRepository,
	primary usecase.StorageBackend,
	events *service.EventService,
) *Handler {
	return &Handler{
		coordinator: coordinator,
		minted:      minted,
		primary:     primary,
		events:      events,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/mint", h.handleMint)
	e.GET("/api/v1/mints", h.handleListMints)
	e.GET("/api/v1/mints/:tokenId", h.handleGetMint)
	e.GET("/api/v1/resource/:address", h.handleResource)
	e.GET("/api/v1/mint/:runId/progress", h.handleProgress)
}

func (h *Handler) handleMint(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := h.buildRequest(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	result := h.coordinator.Mint(ctx, req)
	if result.Succeeded() {
		return presenter.OK(c, result)
	}
	return c.JSON(statusForKind(result.Err.Kind), result)
}

// buildRequest validates the multipart form into a strict MintRequest
// before anything reaches the pipeline.
func (h *Handler) buildRequest(c echo.Context) (mintpipe.MintRequest, error) {

	fileHeader, err := c.FormFile("asset")
	if err != nil {
		return mintpipe.MintRequest{}, fmt.Errorf("missing asset file: %w", err)
	}
	if fileHeader.Size > maxAssetSize {
		return mintpipe.MintRequest{}, fmt.Errorf("asset exceeds %d bytes", maxAssetSize)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return mintpipe.MintRequest{}, fmt.Errorf("failed to open asset: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return mintpipe.MintRequest{}, fmt.Errorf("failed to read asset: %w", err)
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	title := c.FormValue("title")
	if title == "" {
		return mintpipe.MintRequest{}, fmt.Errorf("title is required")
	}

	price, err := mintpipe.ParseEtherPrice(c.FormValue("price"))
	if err != nil {
		return mintpipe.MintRequest{}, err
	}

	var creators []mintpipe.CreatorShare
	if err := json.Unmarshal([]byte(c.FormValue("creators")), &creators); err != nil {
		return mintpipe.MintRequest{}, fmt.Errorf("creators must be a JSON array of {address, share}: %w", err)
	}

	runID := c.FormValue("runId")
	if runID == "" {
		runID = uuid.New().String()
	}

	return mintpipe.MintRequest{
		RunID:             runID,
		Asset:             mintpipe.Asset{Data: data, MimeType: mimeType, Filename: fileHeader.Filename},
		Title:             title,
		Description:       c.FormValue("description"),
		Vision:            c.FormValue("vision"),
		RightsDeclaration: c.FormValue("rightsDeclaration"),
		Price:             price,
		Creators:          creators,
	}, nil
}

func (h *Handler) handleListMints(c echo.Context) error {
	records, err := h.minted.List(c.Request().Context(), 100)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, records)
}

func (h *Handler) handleGetMint(c echo.Context) error {
	record, err := h.minted.GetByTokenID(c.Request().Context(), c.Param("tokenId"))
	if err != nil {
		return presenter.NotFound(c, "token not found")
	}
	return presenter.OK(c, record)
}

func (h *Handler) handleResource(c echo.Context) error {
	ctx := c.Request().Context()

	address := c.Param("address")
	if address == "" {
		return presenter.BadRequestMessage(c, "missing address")
	}

	data, err := h.primary.Get(ctx, address)
	if err != nil {
		return presenter.NotFound(c, "resource not found")
	}

	return c.Blob(http.StatusOK, http.DetectContentType(data), data)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleProgress streams stage events for one run over a websocket.
// Clients pick the runId up front (the runId form field of the mint
// request), so they can open the socket before submitting.
func (h *Handler) handleProgress(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx := c.Request().Context()
	runID := c.Param("runId")

	output := make(chan mintpipe.StageEvent)
	go h.events.Watch(ctx, runID, output)

	quit := make(chan struct{})

	go func() {
		for {
			// Drain client frames; only heartbeats and closes arrive.
			if _, _, err := ws.ReadMessage(); err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				close(quit)
				return
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event, ok := <-output:
			if !ok {
				return nil
			}
			if err := ws.WriteJSON(event); err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}

func statusForKind(kind mintpipe.ErrorKind) int {
	switch kind {
	case mintpipe.KindAssetUnreadable, mintpipe.KindInvalidShares:
		return http.StatusBadRequest
	case mintpipe.KindDuplicateRejected:
		return http.StatusConflict
	case mintpipe.KindOriginalityRejected:
		return http.StatusUnprocessableEntity
	case mintpipe.KindScoringUnavailable, mintpipe.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	case mintpipe.KindChainSubmissionFailed:
		return http.StatusBadGateway
	case mintpipe.KindConfirmationTimeout:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}
