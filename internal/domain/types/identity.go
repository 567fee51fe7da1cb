// Package types define tipos de dominio compartidos entre paquetes.
package types

import (
	"strings"
	"time"
)

// Provider identifica el proveedor OAuth externo.
// El valor string es también el nombre de grupo en el directorio y el prefijo del username.
type Provider string

const (
	ProviderTwitter Provider = "Twitter"
	ProviderKakao   Provider = "Kakao"
)

// Providers lista los proveedores soportados.
func Providers() []Provider {
	return []Provider{ProviderTwitter, ProviderKakao}
}

// IsValid retorna true si el proveedor es conocido.
func (p Provider) IsValid() bool {
	switch p {
	case ProviderTwitter, ProviderKakao:
		return true
	}
	return false
}

// GroupName es el grupo del directorio al que pertenecen los usuarios del proveedor.
func (p Provider) GroupName() string { return string(p) }

// ParseProvider acepta el nombre en cualquier capitalización ("kakao", "KAKAO", "Kakao").
func ParseProvider(s string) (Provider, bool) {
	s = strings.TrimSpace(s)
	for _, p := range Providers() {
		if strings.EqualFold(string(p), s) {
			return p, true
		}
	}
	return "", false
}

// DirectoryUsername deriva la clave primaria del usuario en el directorio: "{provider}_{externalUserID}".
func DirectoryUsername(p Provider, externalUserID string) string {
	return string(p) + "_" + externalUserID
}

// CanonicalIdentity es la respuesta normalizada de un proveedor. No se persiste.
type CanonicalIdentity struct {
	Provider       Provider
	ExternalUserID string
	DisplayName    string
	AvatarURL      string
	Email          string // vacío si el proveedor no lo entrega
}

// DirectoryUsername retorna el username derivado de la identidad.
func (c CanonicalIdentity) DirectoryUsername() string {
	return DirectoryUsername(c.Provider, c.ExternalUserID)
}

// FederatedUser es el espejo local de una cuenta federada en el directorio.
type FederatedUser struct {
	ID                int64
	SubjectID         string // emitido por el directorio, único e inmutable
	DirectoryUsername string
	Provider          Provider
	ExternalUserID    string
	Email             string
	DisplayName       string
	AvatarURL         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewFederatedUser construye el registro local para un subject recién emitido.
func NewFederatedUser(subjectID string, id CanonicalIdentity, now time.Time) *FederatedUser {
	return &FederatedUser{
		SubjectID:         subjectID,
		DirectoryUsername: id.DirectoryUsername(),
		Provider:          id.Provider,
		ExternalUserID:    id.ExternalUserID,
		Email:             id.Email,
		DisplayName:       id.DisplayName,
		AvatarURL:         id.AvatarURL,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Refresh sobreescribe los datos de perfil con los valores del proveedor.
// El proveedor es la fuente de verdad en cada login.
func (u *FederatedUser) Refresh(id CanonicalIdentity, now time.Time) {
	u.Email = id.Email
	u.DisplayName = id.DisplayName
	u.AvatarURL = id.AvatarURL
	u.UpdatedAt = now
}

// AuthenticationResult son los tokens emitidos por el directorio. Nunca se persisten.
type AuthenticationResult struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	TokenType    string
	ExpiresIn    int32
}
