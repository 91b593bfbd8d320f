package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stormline/dispatch/internal/models"
	"github.com/stormline/dispatch/pkg/repository"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	registry      repository.ContractorRegistry
	jwtSecret     string
	tokenDuration time.Duration
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(registry repository.ContractorRegistry, jwtSecret string, tokenDuration time.Duration) *AuthHandler {
	return &AuthHandler{registry: registry, jwtSecret: jwtSecret, tokenDuration: tokenDuration}
}

type signupRequest struct {
	BusinessName    string `json:"business_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ServiceAreas    string `json:"service_areas"`
	Specializations string `json:"specializations"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token      string             `json:"token"`
	Contractor *models.Contractor `json:"contractor,omitempty"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.BusinessName == "" || req.Email == "" || req.Password == "" {
		writeError(w, "missing fields", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, "error hashing password", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	contractor := models.Contractor{
		BusinessName:    req.BusinessName,
		Email:           req.Email,
		PasswordHash:    string(hash),
		Active:          true,
		ServiceAreas:    req.ServiceAreas,
		Specializations: req.Specializations,
	}

	id, err := h.registry.CreateContractor(ctx, &contractor)
	if err != nil {
		writeError(w, "error creating contractor", http.StatusInternalServerError)
		return
	}
	contractor.ID = id
	contractor.PasswordHash = ""

	tokenStr, err := h.issueToken(id, req.Email)
	if err != nil {
		writeError(w, "error issuing token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, authResponse{Token: tokenStr, Contractor: &contractor}, http.StatusCreated)
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, "missing fields", http.StatusBadRequest)
		return
	}

	contractor, err := h.registry.GetContractorByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, "error loading contractor", http.StatusInternalServerError)
		return
	}
	if contractor == nil || !contractor.Active {
		writeError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(contractor.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	tokenStr, err := h.issueToken(contractor.ID, contractor.Email)
	if err != nil {
		writeError(w, "error issuing token", http.StatusInternalServerError)
		return
	}

	contractor.PasswordHash = ""
	writeJSON(w, authResponse{Token: tokenStr, Contractor: contractor}, http.StatusOK)
}

func (h *AuthHandler) issueToken(contractorID int64, email string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"contractor_id": contractorID,
		"email":         email,
		"exp":           time.Now().Add(h.tokenDuration).Unix(),
	})
	return token.SignedString([]byte(h.jwtSecret))
}
