package provisioning

import (
	"errors"
	"fmt"

	"github.com/dropDatabas3/socialgate/internal/directory"
	"github.com/dropDatabas3/socialgate/internal/domain/types"
	"github.com/dropDatabas3/socialgate/internal/normalize"
)

var (
	// ErrUnsupportedProvider y ErrMalformedResponse son permanentes: no se reintentan.
	ErrUnsupportedProvider = normalize.ErrUnsupportedProvider
	ErrMalformedResponse   = normalize.ErrMalformedResponse

	// ErrDirectoryUnavailable es transitorio: el flujo completo se reintenta una vez.
	ErrDirectoryUnavailable = directory.ErrDirectoryUnavailable

	// ErrDuplicateRegistrationRace indica que otro request registró la misma identidad
	// entre la clasificación y el registro. Se resuelve reclasificando.
	ErrDuplicateRegistrationRace = errors.New("provisioning: duplicate registration race")

	// ErrInvalidRequest indica argumentos vacíos en Unregister.
	ErrInvalidRequest = errors.New("provisioning: invalid request")
)

// PartialProvisioningError indica que el directorio tiene la cuenta pero el store local no.
// Lleva lo necesario para reconciliar a mano o en un reintento.
type PartialProvisioningError struct {
	Provider       types.Provider
	ExternalUserID string
	SubjectID      string
	Err            error
}

func (e *PartialProvisioningError) Error() string {
	return fmt.Sprintf("provisioning: partial provisioning provider=%s external_user_id=%s subject_id=%s: %v",
		e.Provider, e.ExternalUserID, e.SubjectID, e.Err)
}

func (e *PartialProvisioningError) Unwrap() error { return e.Err }

// PersistenceError es una falla del store local. La transacción ya hizo rollback.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("provisioning: persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Kind clasifica un error para métricas y logs. Nunca se muestra al usuario final.
func Kind(err error) string {
	var partial *PartialProvisioningError
	var persist *PersistenceError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrUnsupportedProvider):
		return "unsupported_provider"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.As(err, &partial):
		return "partial_provisioning"
	case errors.As(err, &persist):
		return "persistence"
	case errors.Is(err, ErrDirectoryUnavailable):
		return "directory_unavailable"
	case errors.Is(err, ErrDuplicateRegistrationRace):
		return "registration_race"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	}
	return "directory"
}
