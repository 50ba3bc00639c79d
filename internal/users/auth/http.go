// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/ecgscan/internal/platform/middleware"
	requestutil "github.com/taibuivan/ecgscan/internal/platform/request"
	"github.com/taibuivan/ecgscan/internal/platform/respond"
	"github.com/taibuivan/ecgscan/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements the authentication HTTP endpoints.
//
// It owns transport concerns only: decoding, shape validation, status codes.
// Policy checks live in [Service].
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] with the authentication routes.
//
// # Endpoints
//   - POST /signup         : Creates an identity and returns a token.
//   - POST /login          : Authenticates and returns a token.
//   - POST /request-reset  : Issues a reset code.
//   - POST /verify-reset   : Checks a reset code without consuming it.
//   - POST /finalize-reset : Consumes a reset code and sets a new password.
//   - GET  /me             : Returns the caller (authenticated).
func (handler *Handler) Routes(guard *middleware.Guard) chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/signup", handler.signup)
	router.Post("/login", handler.login)
	router.Post("/request-reset", handler.requestReset)
	router.Post("/verify-reset", handler.verifyReset)
	router.Post("/finalize-reset", handler.finalizeReset)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(guard.Authenticate)
		r.Get("/me", handler.me)
	})

	return router
}

// # Request Payloads

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type requestResetRequest struct {
	Email string `json:"email"`
}

type verifyResetRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type finalizeResetRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

// sessionResponse is the payload of signup and login.
type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Summary   `json:"user"`
}

func newSessionResponse(session *Session) sessionResponse {
	return sessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      NewSummary(session.User),
	}
}

/*
Signup handles the creation of a new identity.

POST /api/signup

Request:
  - Body: signupRequest (Name, Email, Password)

Response:
  - 201: sessionResponse: Token and identity summary
  - 400: VALIDATION_ERROR: Missing fields, invalid email or weak password
  - 409: CONFLICT: Email already registered
*/
func (handler *Handler) signup(writer http.ResponseWriter, request *http.Request) {
	var input signupRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldName, input.Name).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Signup(request.Context(), SignupInput{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, "User registered successfully", newSessionResponse(session))
}

/*
Login authenticates an identity.

POST /api/login

Response:
  - 200: sessionResponse: Token and identity summary
  - 400: VALIDATION_ERROR: Missing fields
  - 401: INVALID_CREDENTIALS: Wrong email or password
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, "Login successful", newSessionResponse(session))
}

/*
RequestReset starts the password recovery flow.

POST /api/request-reset

Description: The response is identical whether or not the email is registered.

Response:
  - 200: ResetTicket: Masked email
  - 400: VALIDATION_ERROR: Missing or invalid email
  - 429: RATE_LIMITED: Too many attempts for this email
  - 500: RESET_DISPATCH_FAILED: Code could not be handed to the notifier
*/
func (handler *Handler) requestReset(writer http.ResponseWriter, request *http.Request) {
	var input requestResetRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	ticket, err := handler.authService.RequestReset(request.Context(), input.Email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, "If this email is registered, a reset code has been sent", ticket)
}

/*
VerifyReset checks a reset code without consuming it.

POST /api/verify-reset

Response:
  - 200: { verified: true }
  - 400: INVALID_OR_EXPIRED_CODE or VALIDATION_ERROR
*/
func (handler *Handler) verifyReset(writer http.ResponseWriter, request *http.Request) {
	var input verifyResetRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Required(FieldCode, input.Code).
		Digits(FieldCode, input.Code, ResetCodeDigits)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.VerifyCode(request.Context(), input.Email, input.Code); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, "Reset code verified", map[string]bool{FieldVerified: true})
}

/*
FinalizeReset completes the password recovery flow.

POST /api/finalize-reset

Response:
  - 200: Password updated
  - 400: INVALID_OR_EXPIRED_CODE, weak password or missing fields
  - 404: NOT_FOUND: The identity no longer exists
*/
func (handler *Handler) finalizeReset(writer http.ResponseWriter, request *http.Request) {
	var input finalizeResetRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Required(FieldCode, input.Code).
		Digits(FieldCode, input.Code, ResetCodeDigits).
		Required(FieldNewPassword, input.NewPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err := handler.authService.FinalizeReset(request.Context(), FinalizeInput{
		Email:       input.Email,
		Code:        input.Code,
		NewPassword: input.NewPassword,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, "Password has been reset", nil)
}

/*
Me returns the authenticated caller.

GET /api/me

Response:
  - 200: Summary
  - 401: Missing, invalid or expired token
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.CurrentUser(request.Context(), principal.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, "Current user", NewSummary(user))
}
