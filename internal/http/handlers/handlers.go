package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mydiary/mall-server/internal/http/middleware"
	"github.com/mydiary/mall-server/internal/http/response"
	"github.com/mydiary/mall-server/internal/service"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	auth      service.AuthService
	passwords service.PasswordService
	catalog   service.CatalogService
	cart      service.CartService
	orders    service.OrderService
	cookies   middleware.Cookies
}

func New(
	auth service.AuthService,
	passwords service.PasswordService,
	catalog service.CatalogService,
	cart service.CartService,
	orders service.OrderService,
	cookies middleware.Cookies,
) *Handlers {
	return &Handlers{
		auth:      auth,
		passwords: passwords,
		catalog:   catalog,
		cart:      cart,
		orders:    orders,
		cookies:   cookies,
	}
}

func (h *Handlers) Routes() chi.Router {
	requireSession := middleware.RequireSession(h.auth, h.cookies)
	optionalSession := middleware.OptionalSession(h.auth, h.cookies)

	r := chi.NewRouter()

	// Account
	r.Post("/userregister", h.Register)
	r.Post("/userlogin", h.Login)
	r.Post("/userlogout", h.Logout)
	r.With(optionalSession).Get("/username", h.UserName)
	r.With(requireSession).Get("/userinfo", h.UserInfo)
	r.Get("/verify-email", h.VerifyEmail)
	r.Post("/resend-verification", h.ResendVerification)
	r.Get("/check-email/{email}", h.CheckEmail)
	r.Get("/check-phone/{phone}", h.CheckPhone)
	r.Post("/findAccount", h.FindAccount)
	r.Post("/requestPasswordReset", h.RequestPasswordReset)
	r.Get("/verify-reset-token", h.VerifyResetToken)
	r.With(optionalSession).Post("/updatePassword", h.UpdatePassword)

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.With(requireSession).Post("/", h.CreateCategory)
		r.With(requireSession).Put("/{id}", h.RenameCategory)
		r.With(requireSession).Delete("/{id}", h.DeleteCategory)
	})

	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.ListItems)
		r.Get("/{id}", h.GetItem)
		r.With(requireSession).Post("/", h.CreateItem)
		r.With(requireSession).Put("/{id}", h.UpdateItem)
		r.With(requireSession).Delete("/{id}", h.DeleteItem)
	})

	r.Route("/cart", func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/", h.ListCart)
		r.Post("/", h.AddToCart)
		r.Put("/{itemId}", h.SetCartQuantity)
		r.Delete("/{itemId}", h.RemoveFromCart)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(requireSession)
		r.Post("/", h.PlaceOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Put("/{id}", h.UpdateOrderStatus)
		r.Delete("/{id}", h.CancelOrder)
	})

	return r
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	response.WriteJSON(w, status, messageResponse{Message: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large", response.CodeInvalidInput)
			return false
		}
		response.BadRequest(w, "Invalid JSON format")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}
