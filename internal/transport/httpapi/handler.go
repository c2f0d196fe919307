// Package httpapi связывает действия пользователя (форма ингредиента, форма
// завершения, очистка) с сервисом заказов и после каждого действия заново
// отрисовывает оба списка.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
	"github.com/vladislavdragonenkov/mealorders/internal/mealdb"
	"github.com/vladislavdragonenkov/mealorders/internal/session"
	"github.com/vladislavdragonenkov/mealorders/internal/tracing"
	"github.com/vladislavdragonenkov/mealorders/internal/view"
)

// LookupTokenHeader содержит нормализованный ингредиент, по которому шёл поиск.
const LookupTokenHeader = "X-Lookup-Token"

// OrderService описывает операции над заказами, которые нужны контроллеру.
type OrderService interface {
	CreateOrder(ctx context.Context, sessionID, rawIngredient string) (domain.Order, error)
	CompleteOrder(ctx context.Context, sessionID, rawNumber string) (domain.Completion, error)
	ClearAll(ctx context.Context, sessionID string) error
	Store(sessionID string) *session.Store
}

// Handler — HTTP-контроллер страницы заказов и JSON API.
type Handler struct {
	orders  OrderService
	pages   *view.PageRenderer
	logger  *log.Entry
	version string
}

// NewHandler конструирует контроллер.
func NewHandler(orders OrderService, pages *view.PageRenderer, logger *log.Entry, version string) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Handler{
		orders:  orders,
		pages:   pages,
		logger:  logger,
		version: version,
	}
}

// Router возвращает маршруты приложения.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(tracing.Middleware(nil))
	r.Use(sessionMiddleware)

	r.HandleFunc("/", h.index).Methods(http.MethodGet)
	r.HandleFunc("/orders", h.createOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders/complete", h.completeOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders/clear", h.clearAll).Methods(http.MethodPost)
	r.HandleFunc("/api/orders", h.board).Methods(http.MethodGet)

	return r
}

// actionResponse описывает JSON-ответ на действие пользователя.
type actionResponse struct {
	Order      *domain.Order  `json:"order,omitempty"`
	Outcome    string         `json:"outcome,omitempty"`
	Feedback   *view.Feedback `json:"feedback,omitempty"`
	Board      view.Board     `json:"board"`
	NeedsClear bool           `json:"confirmationRequired,omitempty"`
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK, view.Page{}, actionResponse{})
}

func (h *Handler) board(w http.ResponseWriter, r *http.Request) {
	board, ok := h.renderAll(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionID(r.Context())
	raw := r.PostFormValue("ingredient")
	token := mealdb.NormalizeIngredient(raw)

	if token != "" {
		w.Header().Set(LookupTokenHeader, token)
		h.logger.WithFields(log.Fields{
			"session_id": sessionID,
			"ingredient": token,
		}).Info("looking up meals")
	}

	order, err := h.orders.CreateOrder(r.Context(), sessionID, raw)
	if err != nil && !domain.IsUserError(err) {
		h.logger.WithError(err).WithField("session_id", sessionID).Warn("create order failed")
	}

	feedback, status := createFeedback(order, token, err)
	resp := actionResponse{Feedback: feedback}
	if err == nil {
		resp.Order = &order
	}
	h.respond(w, r, status, view.Page{OrderFeedback: feedback}, resp)
}

func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionID(r.Context())
	raw := r.PostFormValue("orderNumber")

	completion, err := h.orders.CompleteOrder(r.Context(), sessionID, raw)
	if err != nil && !domain.IsUserError(err) {
		h.logger.WithError(err).WithField("session_id", sessionID).Warn("complete order failed")
	}

	feedback, status := completeFeedback(completion, err)
	resp := actionResponse{Feedback: feedback, Outcome: string(completion.Outcome)}
	if err == nil && completion.Outcome != domain.CompletionNothing {
		resp.Order = &completion.Order
	}
	h.respond(w, r, status, view.Page{CompleteFeedback: feedback}, resp)
}

func (h *Handler) clearAll(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionID(r.Context())

	if r.PostFormValue("confirm") != "yes" {
		feedback := view.Feedbackf(view.LevelWarning, "Clear all orders from this session?")
		h.respond(w, r, http.StatusPreconditionRequired,
			view.Page{OrderFeedback: feedback, ConfirmClear: true},
			actionResponse{Feedback: feedback, NeedsClear: true})
		return
	}

	if err := h.orders.ClearAll(r.Context(), sessionID); err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).Error("clear session failed")
		feedback := view.Feedbackf(view.LevelDanger, "Something went wrong. Please try again.")
		h.respond(w, r, http.StatusInternalServerError, view.Page{OrderFeedback: feedback}, actionResponse{Feedback: feedback})
		return
	}

	feedback := view.Feedbackf(view.LevelWarning, "All orders cleared for this session.")
	h.respond(w, r, http.StatusOK, view.Page{OrderFeedback: feedback}, actionResponse{Feedback: feedback})
}

// respond пересчитывает доску из хранилища и отвечает HTML или JSON в
// зависимости от заголовка Accept.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, page view.Page, resp actionResponse) {
	board, ok := h.renderAll(w, r)
	if !ok {
		return
	}

	if wantsJSON(r) {
		resp.Board = board
		writeJSON(w, status, resp)
		return
	}

	page.Board = board
	page.Version = h.version
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.pages.Render(w, page); err != nil {
		h.logger.WithError(err).Error("render page failed")
	}
}

func (h *Handler) renderAll(w http.ResponseWriter, r *http.Request) (view.Board, bool) {
	sessionID := SessionID(r.Context())
	board, err := view.NewRenderer(h.orders.Store(sessionID)).RenderAll(r.Context())
	if err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).Error("read orders failed")
		http.Error(w, "failed to read orders", http.StatusInternalServerError)
		return view.Board{}, false
	}
	return board, true
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
