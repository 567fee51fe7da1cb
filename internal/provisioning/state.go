package provisioning

import "github.com/dropDatabas3/socialgate/internal/domain/types"

// State es el estado de la máquina de provisioning.
type State int

const (
	StateUnclassified State = iota
	StateNewUserFlow
	StateExistingUserFlow
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnclassified:
		return "unclassified"
	case StateNewUserFlow:
		return "new_user"
	case StateExistingUserFlow:
		return "existing_user"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// BuildContext es el resultado de clasificar una identidad: NewUser o ExistingUser.
// Es una unión cerrada; el flujo se elige con un type switch.
type BuildContext interface {
	identity() types.CanonicalIdentity
	state() State
}

// NewUser: el directorio no tiene cuenta para la identidad. El subject se obtiene al registrar.
type NewUser struct {
	Identity types.CanonicalIdentity
}

// ExistingUser: el directorio ya emitió un subject para la identidad.
// Confirmed=false indica una activación interrumpida (registrado pero sin confirmar).
type ExistingUser struct {
	Identity  types.CanonicalIdentity
	SubjectID string
	Confirmed bool
}

func (c NewUser) identity() types.CanonicalIdentity      { return c.Identity }
func (c NewUser) state() State                           { return StateNewUserFlow }
func (c ExistingUser) identity() types.CanonicalIdentity { return c.Identity }
func (c ExistingUser) state() State                      { return StateExistingUserFlow }

// Outcome es el resultado de un login provisionado.
type Outcome struct {
	Auth      *types.AuthenticationResult
	SubjectID string
	// Path es el flujo por el que terminó el login (StateNewUserFlow o StateExistingUserFlow).
	Path State
}
