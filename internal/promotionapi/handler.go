package promotionapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/mdcpepper/lattice/internal/promotion/arena"
	"github.com/mdcpepper/lattice/internal/promotion/backend"
	"github.com/mdcpepper/lattice/internal/promotion/compile"
	"github.com/mdcpepper/lattice/internal/promotion/graph"
	"github.com/mdcpepper/lattice/internal/promotion/receipt"
	"github.com/mdcpepper/lattice/internal/promotion/result"
	"github.com/mdcpepper/lattice/internal/promotion/solve"
	pkgerrors "github.com/mdcpepper/lattice/pkg/errors"
	"github.com/mdcpepper/lattice/pkg/logger"
	"github.com/mdcpepper/lattice/pkg/validator"
)

// Handler serves the promotion demo API (SPEC_FULL.md §6.1).
type Handler struct {
	validate *validator.Validator
	back     backend.Backend
}

// NewHandler constructs a Handler. back is the ILP backend every solve in
// a request uses (nil falls back to solve.Solve's own default).
func NewHandler(back backend.Backend) *Handler {
	return &Handler{validate: validator.New(), back: back}
}

// RegisterRoutes mounts the handler's routes on r, mirroring the teacher's
// chi.Router-based RegisterRoutes convention.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Post("/v1/baskets/solve", h.SolveBasket)
}

// NewCORS builds the demo API's CORS middleware from config.CORSConfig
// field values, mirroring the teacher's middleware.CORS constructor.
func NewCORS(allowedOrigins, allowedMethods, allowedHeaders, exposedHeaders []string, allowCredentials bool, maxAge int) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})
}

// RequestID attaches a correlation id to every request's logger context,
// mirroring the teacher's middleware.RequestLogger convention but scoped
// to correlation only -- request/response logging happens per-handler
// here since there is only one resource.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Correlation-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		r.Header.Set("X-Correlation-ID", requestID)
		w.Header().Set("X-Correlation-ID", requestID)
		next.ServeHTTP(w, r.WithContext(r.Context()))
	})
}

// Healthz is a liveness probe. No dependency checks: the engine has no
// external dependencies to probe (persistence is an explicit Non-goal).
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// SolveBasket implements POST /v1/baskets/solve (SPEC_FULL.md §6.1):
// decode -> validate -> call domain -> encode, mirroring the teacher's
// ports/http handler idiom.
func (h *Handler) SolveBasket(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Correlation-ID")
	log := logger.Get().WithField("request_id", requestID)
	start := time.Now()

	var req SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkgerrors.HandleHTTPError(w, pkgerrors.BadRequest("malformed request body: "+err.Error()))
		return
	}

	if err := h.validate.Validate(req); err != nil {
		pkgerrors.HandleHTTPError(w, err)
		return
	}

	dto, err := h.solve(req)
	if err != nil {
		pkgerrors.HandleHTTPError(w, translateCoreError(err))
		return
	}

	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("basket solved")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dto)
}

// solve converts the request into domain values, runs the solve (flat or
// graph-routed per whether the request supplied a graph), and assembles
// the response DTO.
func (h *Handler) solve(req SolveRequest) (ReceiptDTO, error) {
	group, err := toItemGroup(req.Currency, req.Items)
	if err != nil {
		return ReceiptDTO{}, err
	}

	a := arena.New()
	promotions, labels, err := toPromotions(a, group.Currency(), req.Promotions)
	if err != nil {
		return ReceiptDTO{}, err
	}

	var lr result.LayeredResult
	if len(req.Graph) == 0 {
		sr, err := solve.Solve(promotions, group, h.back, nil)
		if err != nil {
			return ReceiptDTO{}, err
		}
		lr = result.LayeredResult{
			ItemApplications: sr.ItemApplications,
			FullPriceItems:   sr.FullPriceItems,
			Total:            sr.Total,
		}
	} else {
		promotionsByID := make(map[string]compile.Promotion, len(promotions))
		for i, dto := range req.Promotions {
			promotionsByID[dto.ID] = promotions[i]
		}

		g, err := toGraph(req.Graph, promotionsByID, h.back)
		if err != nil {
			return ReceiptDTO{}, err
		}

		lr, err = graph.Evaluate(g, group, nil)
		if err != nil {
			return ReceiptDTO{}, err
		}
	}

	rpt, err := receipt.Assemble(group, lr)
	if err != nil {
		return ReceiptDTO{}, err
	}

	return toReceiptDTO(rpt, labels, group.Currency()), nil
}
