package httpapi

import (
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
	"github.com/vladislavdragonenkov/mealorders/internal/view"
)

// createFeedback сопоставляет исход создания заказа с сообщением и HTTP статусом.
func createFeedback(order domain.Order, token string, err error) (*view.Feedback, int) {
	switch {
	case err == nil:
		return view.Feedbackf(view.LevelSuccess, "Order <strong>#%d</strong> created: <em>%s</em>.", order.Number, order.Description), http.StatusCreated
	case errors.Is(err, domain.ErrValidation):
		return view.Feedbackf(view.LevelWarning, "Please enter an ingredient."), http.StatusBadRequest
	case errors.Is(err, domain.ErrNoMatch):
		return view.Feedbackf(view.LevelDanger,
			"No meals found for <strong>%s</strong>. Try another ingredient (e.g. <code>beef</code>, <code>lemon</code>, <code>mint</code>).",
			token), http.StatusNotFound
	case errors.Is(err, domain.ErrLookupInFlight):
		return view.Feedbackf(view.LevelWarning, "A lookup is already in progress. Please wait."), http.StatusConflict
	case errors.Is(err, domain.ErrRemote):
		return view.Feedbackf(view.LevelDanger, "Could not reach TheMealDB right now. Please try again."), http.StatusBadGateway
	default:
		return view.Feedbackf(view.LevelDanger, "Something went wrong. Please try again."), http.StatusInternalServerError
	}
}

// completeFeedback сопоставляет исход завершения заказа с сообщением и HTTP статусом.
func completeFeedback(completion domain.Completion, err error) (*view.Feedback, int) {
	var notFound *domain.OrderNotFoundError

	switch {
	case err == nil:
		switch completion.Outcome {
		case domain.CompletionNothing:
			return view.Feedbackf(view.LevelInfo, "No order was completed."), http.StatusOK
		case domain.CompletionAlreadyCompleted:
			return view.Feedbackf(view.LevelInfo, "Order <strong>#%d</strong> is already completed.", completion.Order.Number), http.StatusOK
		default:
			return view.Feedbackf(view.LevelSuccess, "Order <strong>#%d</strong> marked as completed.", completion.Order.Number), http.StatusOK
		}
	case errors.Is(err, domain.ErrValidation):
		return view.Feedbackf(view.LevelWarning, "Please enter a valid number."), http.StatusBadRequest
	case errors.As(err, &notFound):
		return view.Feedbackf(view.LevelDanger, "Order #%s does not exist.", domain.FormatOrderNumber(notFound.Number)), http.StatusNotFound
	case errors.Is(err, domain.ErrOrderNotFound):
		return view.Feedbackf(view.LevelDanger, "Order does not exist."), http.StatusNotFound
	default:
		return view.Feedbackf(view.LevelDanger, "Something went wrong. Please try again."), http.StatusInternalServerError
	}
}
