package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
)

// CreateUserRequest represents the user registration request.
type CreateUserRequest struct {
	Name string `json:"name"`
}

// CreateUserResponse represents the registration response. The API key is
// returned exactly once, here; it is never readable afterwards.
type CreateUserResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

// CreateChannelRequest represents the channel creation request.
type CreateChannelRequest struct {
	Name string `json:"name"`
}

// CreateChannelResponse represents the channel creation response.
type CreateChannelResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateUser registers a user and issues their API key.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := sanitizeName(req.Name)
	if name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to generate api key")
		return
	}

	user, err := h.store.CreateUser(r.Context(), name, apiKey)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.JSON(w, http.StatusCreated, CreateUserResponse{
		ID:     user.ID.String(),
		Name:   user.Name,
		APIKey: apiKey,
	})
}

// CreateChannel creates a channel.
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := sanitizeName(req.Name)
	if name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	channel, err := h.store.CreateChannel(r.Context(), name)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create channel")
		return
	}

	h.JSON(w, http.StatusCreated, CreateChannelResponse{
		ID:   channel.ID.String(),
		Name: channel.Name,
	})
}

// generateAPIKey returns a 256-bit random key in hex.
func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
