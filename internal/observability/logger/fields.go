package logger

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field { return zap.String("request_id", v) }

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field { return zap.String("method", v) }

// Path crea un campo para el path del request.
func Path(v string) zap.Field { return zap.String("path", v) }

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field { return zap.Int("status", v) }

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - FEDERACIÓN
// =================================================================================

// Provider crea un campo para el proveedor OAuth.
func Provider(v string) zap.Field { return zap.String("provider", v) }

// ExternalID crea un campo para el ID del usuario en el proveedor.
func ExternalID(v string) zap.Field { return zap.String("external_user_id", v) }

// SubjectID crea un campo para el subject emitido por el directorio.
func SubjectID(v string) zap.Field { return zap.String("subject_id", v) }

// DirectoryUsername crea un campo para el username derivado en el directorio.
func DirectoryUsername(v string) zap.Field { return zap.String("directory_username", v) }

// State crea un campo para el estado de la máquina de provisioning.
func State(v string) zap.Field { return zap.String("state", v) }

// EmailMasked enmascara el email antes de loguearlo.
func EmailMasked(v string) zap.Field { return zap.String("email_masked", MaskEmail(v)) }

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field { return zap.String("component", v) }

// Op crea un campo para la operación actual.
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer crea un campo para la capa (handler, service, repository).
func Layer(v string) zap.Field { return zap.String("layer", v) }

// Err crea un campo para un error.
func Err(err error) zap.Field { return zap.Error(err) }

// String crea un campo string genérico.
func String(key, v string) zap.Field { return zap.String(key, v) }

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field { return zap.Int(key, v) }

// Bool crea un campo bool genérico.
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }

// Any crea un campo genérico para cualquier tipo.
func Any(key string, v any) zap.Field { return zap.Any(key, v) }

// MaskEmail deja los dos primeros caracteres y el dominio: "ki***@example.com".
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	if len(email) < 3 {
		return "***"
	}
	at := strings.IndexByte(email, '@')
	if at < 2 {
		return email[:2] + "***"
	}
	return email[:2] + "***" + email[at:]
}
