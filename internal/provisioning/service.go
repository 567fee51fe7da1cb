// Package provisioning implementa la máquina de estados que federa una identidad social
// en el directorio y la refleja en el store local.
//
// Flujo:
//
//	Unclassified ──LookupSubject──▶ NewUserFlow ──▶ Completed | Failed
//	                             └▶ ExistingUserFlow ──▶ Completed | Failed
//
// NewUserFlow: Register → ConfirmRegistration → EnsureGroup → AddUserToGroup → persist → IssueTokens.
// ExistingUserFlow: [activación pendiente] → UpdateAttributes → persist → IssueTokens.
//
// Las escrituras locales de cada flujo van en una sola transacción, después de las llamadas
// remotas de las que dependen. Fallas transitorias del directorio reintentan el flujo
// completo una vez desde la clasificación.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/dropDatabas3/socialgate/internal/directory"
	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	"github.com/dropDatabas3/socialgate/internal/domain/types"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
)

const (
	defaultRetryDelay = 200 * time.Millisecond
	maxAttempts       = 2
)

// Deps son las dependencias del servicio. Directory y Repo son obligatorias.
type Deps struct {
	Directory directory.Client
	Repo      repository.FederatedUserRepository
	Metrics   *Metrics
	// Now se usa para created_at/updated_at. Default: time.Now.
	Now func() time.Time
	// RetryDelay es la espera antes del reintento por falla transitoria. Default: 200ms.
	RetryDelay time.Duration
}

// Service orquesta el provisioning. Es seguro para uso concurrente.
type Service struct {
	dir        directory.Client
	repo       repository.FederatedUserRepository
	metrics    *Metrics
	now        func() time.Time
	retryDelay time.Duration
}

// NewService valida las dependencias y aplica defaults.
func NewService(d Deps) (*Service, error) {
	if d.Directory == nil {
		return nil, errors.New("provisioning: directory client is required")
	}
	if d.Repo == nil {
		return nil, errors.New("provisioning: repository is required")
	}
	s := &Service{
		dir:        d.Directory,
		repo:       d.Repo,
		metrics:    d.Metrics,
		now:        d.Now,
		retryDelay: d.RetryDelay,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.retryDelay <= 0 {
		s.retryDelay = defaultRetryDelay
	}
	return s, nil
}

// ClassifyAndProvision clasifica la identidad, ejecuta el flujo correspondiente y devuelve
// los tokens del directorio.
func (s *Service) ClassifyAndProvision(ctx context.Context, id types.CanonicalIdentity) (*Outcome, error) {
	start := time.Now()
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("provisioning"),
		logger.Provider(string(id.Provider)),
		logger.ExternalID(id.ExternalUserID),
	)

	if err := validateIdentity(id); err != nil {
		s.metrics.observe(StateUnclassified, err, time.Since(start))
		log.Warn("identity rejected", logger.Err(err))
		return nil, err
	}

	path := StateUnclassified
	out, err := retryTransient(ctx, s, log, func() (*Outcome, error) {
		return s.provision(ctx, log, id, &path)
	})
	s.metrics.observe(path, err, time.Since(start))
	if err != nil {
		log.Warn("provisioning failed",
			logger.State(StateFailed.String()),
			logger.String("flow", path.String()),
			logger.String("kind", Kind(err)),
			logger.Err(err),
		)
		return nil, err
	}

	log.Info("provisioning completed",
		logger.State(StateCompleted.String()),
		logger.String("flow", out.Path.String()),
		logger.SubjectID(out.SubjectID),
	)
	return out, nil
}

// Classify consulta el directorio y devuelve el contexto de construcción.
func (s *Service) Classify(ctx context.Context, id types.CanonicalIdentity) (BuildContext, error) {
	sub, found, err := s.dir.LookupSubject(ctx, id.Provider, id.ExternalUserID)
	if err != nil {
		return nil, fmt.Errorf("lookup subject: %w", err)
	}
	if !found {
		return NewUser{Identity: id}, nil
	}
	return ExistingUser{Identity: id, SubjectID: sub.ID, Confirmed: sub.Confirmed}, nil
}

func (s *Service) provision(ctx context.Context, log *zap.Logger, id types.CanonicalIdentity, path *State) (*Outcome, error) {
	*path = StateUnclassified
	bc, err := s.Classify(ctx, id)
	if err != nil {
		return nil, err
	}

	out, err := s.run(ctx, log, bc, path)
	if !errors.Is(err, ErrDuplicateRegistrationRace) {
		return out, err
	}

	// Otro request registró la misma identidad. Se reclasifica una sola vez.
	s.metrics.raced()
	log.Info("registration race, reclassifying", logger.Err(err))
	bc, err = s.Classify(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := bc.(ExistingUser); !ok {
		return nil, fmt.Errorf("%w: %s still absent after duplicate rejection", ErrDuplicateRegistrationRace, id.DirectoryUsername())
	}
	return s.run(ctx, log, bc, path)
}

func (s *Service) run(ctx context.Context, log *zap.Logger, bc BuildContext, path *State) (*Outcome, error) {
	*path = bc.state()
	log.Debug("classified", logger.State(bc.state().String()))

	switch c := bc.(type) {
	case NewUser:
		return s.newUserFlow(ctx, log, c)
	case ExistingUser:
		return s.existingUserFlow(ctx, log, c)
	default:
		return nil, fmt.Errorf("provisioning: unknown build context %T", bc)
	}
}

func (s *Service) newUserFlow(ctx context.Context, log *zap.Logger, c NewUser) (*Outcome, error) {
	id := c.Identity

	subjectID, err := s.dir.Register(ctx, id.Provider, id.ExternalUserID, directory.ProfileOf(id))
	if errors.Is(err, directory.ErrUsernameExists) {
		return nil, fmt.Errorf("%w: %w", ErrDuplicateRegistrationRace, err)
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	log = log.With(logger.SubjectID(subjectID))

	// Sin confirmación no hay tokens; no se persiste nada localmente.
	if err := s.dir.ConfirmRegistration(ctx, id.Provider, id.ExternalUserID); err != nil {
		return nil, fmt.Errorf("confirm registration: %w", err)
	}
	if err := s.assignGroup(ctx, id); err != nil {
		return nil, err
	}

	now := s.now()
	err = s.repo.InTx(ctx, func(tx repository.FederatedUserTx) error {
		return createOrRefresh(ctx, log, tx, subjectID, id, now)
	})
	if err != nil {
		perr := &PartialProvisioningError{
			Provider:       id.Provider,
			ExternalUserID: id.ExternalUserID,
			SubjectID:      subjectID,
			Err:            &PersistenceError{Op: "create", Err: err},
		}
		s.metrics.partialFailure(string(id.Provider))
		log.Error("directory account created but local persist failed",
			logger.DirectoryUsername(id.DirectoryUsername()),
			logger.Err(err),
		)
		return nil, perr
	}

	auth, err := s.dir.IssueTokens(ctx, id.Provider, id.ExternalUserID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return &Outcome{Auth: auth, SubjectID: subjectID, Path: StateNewUserFlow}, nil
}

func (s *Service) existingUserFlow(ctx context.Context, log *zap.Logger, c ExistingUser) (*Outcome, error) {
	id := c.Identity
	log = log.With(logger.SubjectID(c.SubjectID))

	if !c.Confirmed {
		log.Info("resuming interrupted activation")
		if err := s.dir.ConfirmRegistration(ctx, id.Provider, id.ExternalUserID); err != nil {
			return nil, fmt.Errorf("confirm registration: %w", err)
		}
		if err := s.assignGroup(ctx, id); err != nil {
			return nil, err
		}
	}

	if err := s.dir.UpdateAttributes(ctx, id.Provider, id.ExternalUserID, directory.ProfileOf(id)); err != nil {
		return nil, fmt.Errorf("update attributes: %w", err)
	}

	now := s.now()
	err := s.repo.InTx(ctx, func(tx repository.FederatedUserTx) error {
		u, err := tx.GetBySubject(ctx, c.SubjectID)
		if repository.IsNotFound(err) {
			// Divergencia de un fallo parcial anterior: se reconstruye la fila.
			log.Warn("local row missing for directory subject, recreating")
			return createOrRefresh(ctx, log, tx, c.SubjectID, id, now)
		}
		if err != nil {
			return err
		}
		u.Refresh(id, now)
		return tx.Update(ctx, u)
	})
	if err != nil {
		return nil, &PersistenceError{Op: "refresh", Err: err}
	}

	auth, err := s.dir.IssueTokens(ctx, id.Provider, id.ExternalUserID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return &Outcome{Auth: auth, SubjectID: c.SubjectID, Path: StateExistingUserFlow}, nil
}

// createOrRefresh inserta la fila local; si un login concurrente del mismo sujeto
// ya la creó, la refresca en la misma transacción.
func createOrRefresh(ctx context.Context, log *zap.Logger, tx repository.FederatedUserTx, subjectID string, id types.CanonicalIdentity, now time.Time) error {
	err := tx.Create(ctx, types.NewFederatedUser(subjectID, id, now))
	if !repository.IsConflict(err) {
		return err
	}
	u, gerr := tx.GetBySubject(ctx, subjectID)
	if gerr != nil {
		// El conflicto vino de otra restricción única.
		return err
	}
	log.Info("local row already created by concurrent login, refreshing")
	u.Refresh(id, now)
	return tx.Update(ctx, u)
}

func (s *Service) assignGroup(ctx context.Context, id types.CanonicalIdentity) error {
	group := id.Provider.GroupName()
	if err := s.dir.EnsureGroup(ctx, group); err != nil {
		return fmt.Errorf("ensure group %s: %w", group, err)
	}
	if err := s.dir.AddUserToGroup(ctx, id.Provider, id.ExternalUserID, group); err != nil {
		return fmt.Errorf("add user to group %s: %w", group, err)
	}
	return nil
}

// Unregister borra la cuenta del directorio y después la fila local.
// Una cuenta ya ausente en el directorio cuenta como borrada.
func (s *Service) Unregister(ctx context.Context, p types.Provider, externalUserID, subjectID string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("provisioning"),
		logger.Op("unregister"),
		logger.Provider(string(p)),
		logger.ExternalID(externalUserID),
		logger.SubjectID(subjectID),
	)

	if !p.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedProvider, string(p))
	}
	if strings.TrimSpace(externalUserID) == "" || strings.TrimSpace(subjectID) == "" {
		return fmt.Errorf("%w: external user id and subject id are required", ErrInvalidRequest)
	}

	_, err := retryTransient(ctx, s, log, func() (struct{}, error) {
		return struct{}{}, s.dir.DeleteUser(ctx, p, externalUserID)
	})
	switch {
	case errors.Is(err, directory.ErrUserNotFound):
		log.Info("directory account already absent")
	case err != nil:
		return fmt.Errorf("delete directory user: %w", err)
	}

	if err := s.repo.DeleteBySubject(ctx, subjectID); err != nil && !repository.IsNotFound(err) {
		log.Error("directory account deleted but local delete failed", logger.Err(err))
		return &PersistenceError{Op: "delete", Err: err}
	}

	log.Info("account unregistered")
	return nil
}

// retryTransient ejecuta op y la repite una vez si falla con ErrDirectoryUnavailable.
// Cualquier otro error corta de inmediato.
func retryTransient[T any](ctx context.Context, s *Service, log *zap.Logger, op func() (T, error)) (T, error) {
	v, err := backoff.Retry(ctx,
		func() (T, error) {
			v, err := op()
			if err != nil && !errors.Is(err, ErrDirectoryUnavailable) {
				return v, backoff.Permanent(err)
			}
			return v, err
		},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.retryDelay)),
		backoff.WithMaxTries(maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.metrics.retried()
			log.Warn("directory unavailable, retrying", logger.Err(err), logger.Duration(next))
		}),
	)
	// En el último intento Retry devuelve el error sin desenvolver.
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	return v, err
}

func validateIdentity(id types.CanonicalIdentity) error {
	if !id.Provider.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedProvider, string(id.Provider))
	}
	if strings.TrimSpace(id.ExternalUserID) == "" {
		return fmt.Errorf("%w: missing external user id", ErrMalformedResponse)
	}
	if strings.TrimSpace(id.DisplayName) == "" {
		return fmt.Errorf("%w: missing display name", ErrMalformedResponse)
	}
	return nil
}
