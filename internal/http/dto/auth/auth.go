// Package auth contiene los DTOs de las rutas de login social y sesión.
package auth

import "time"

// LoginResponse es la respuesta del callback cuando no hay redirect pendiente.
type LoginResponse struct {
	SubjectID string    `json:"subject_id"`
	Provider  string    `json:"provider"`
	Flow      string    `json:"flow"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MeResponse expone los claims del id token de la sesión.
type MeResponse struct {
	SubjectID string         `json:"subject_id"`
	Provider  string         `json:"provider"`
	Claims    map[string]any `json:"claims"`
}

// ProviderInfo describe un proveedor de login habilitado.
type ProviderInfo struct {
	Name     string `json:"name"`
	LoginURL string `json:"login_url"`
}

// ProvidersResponse lista los proveedores habilitados.
type ProvidersResponse struct {
	Providers []ProviderInfo `json:"providers"`
}
