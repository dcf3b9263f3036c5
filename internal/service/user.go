package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cmodel "Tianguis/internal/cli/model"
	"Tianguis/internal/model"
	"Tianguis/internal/repo"

	"golang.org/x/crypto/bcrypt"
)

// UserService: регистрация, вход и синхронизация учётных записей.
type UserService struct {
	repo repo.UserRepository
}

func NewUserService(r repo.UserRepository) *UserService {
	return &UserService{repo: r}
}

// SyncResult: ответ пакетной синхронизации.
// Rejected: ключи, которые не приняты и копии которых на сервере нет.
type SyncResult[P cmodel.Payload] struct {
	ServerRecords []cmodel.Record[P]
	Updates       []cmodel.Record[P]
	Rejected      []string
}

func validateUser(rec cmodel.Record[cmodel.User]) error {
	if rec.Key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalid)
	}
	if err := rec.Payload.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := bcrypt.Cost([]byte(rec.Payload.CredentialHash)); err != nil {
		return fmt.Errorf("%w: credential hash is not bcrypt", ErrInvalid)
	}
	return nil
}

// Register создаёт учётную запись. Повтор с тем же ключом идемпотентен.
func (s *UserService) Register(ctx context.Context, rec cmodel.Record[cmodel.User]) (*model.User, error) {
	if err := validateUser(rec); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetUserByLogin(ctx, rec.Payload.Username)
	switch {
	case err == nil && existing != nil:
		if existing.Key == rec.Key {
			return existing, nil
		}
		return nil, ErrLoginTaken
	case err != nil && !repo.IsNotFound(err):
		return nil, err
	}
	if byKey, err := s.repo.GetUserByKey(ctx, rec.Key); err == nil && byKey != nil {
		// ключ занят учётной записью с другим именем
		return nil, ErrLoginTaken
	}
	return s.repo.CreateUser(ctx, model.UserFromRecord(rec))
}

// Login проверяет пароль по хешу учётной записи.
func (s *UserService) Login(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.repo.GetUserByLogin(ctx, strings.TrimSpace(username))
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u == nil || u.Deleted {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.CredentialHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Get возвращает учётную запись по ключу.
func (s *UserService) Get(ctx context.Context, key string) (*model.User, error) {
	u, err := s.repo.GetUserByKey(ctx, key)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// Update перезаписывает собственную учётную запись (last-write-wins по modified_at).
func (s *UserService) Update(ctx context.Context, callerKey string, rec cmodel.Record[cmodel.User]) error {
	if rec.Key != callerKey {
		return ErrForbidden
	}
	if err := validateUser(rec); err != nil {
		return err
	}
	if other, err := s.repo.GetUserByLogin(ctx, rec.Payload.Username); err == nil && other != nil && other.Key != rec.Key {
		return ErrLoginTaken
	}
	_, err := s.repo.SaveIfNewer(ctx, model.UserFromRecord(rec))
	return err
}

// Sync принимает пачку учётных записей. Собственная запись сливается по last-write-wins,
// ещё не известные серверу ключи регистрируются. Непринятая запись возвращается в Updates
// серверной версией, а если её нет, ключ попадает в Rejected.
func (s *UserService) Sync(ctx context.Context, callerKey string, recs []cmodel.Record[cmodel.User]) (SyncResult[cmodel.User], error) {
	var res SyncResult[cmodel.User]
	for _, rec := range recs {
		if rec.Key != callerKey {
			if _, err := s.Register(ctx, rec); err != nil {
				if !errors.Is(err, ErrLoginTaken) && !errors.Is(err, ErrInvalid) {
					return res, err
				}
				res.Rejected = append(res.Rejected, rec.Key)
			}
			continue
		}
		updErr := s.Update(ctx, callerKey, rec)
		if updErr != nil && !errors.Is(updErr, ErrLoginTaken) && !errors.Is(updErr, ErrInvalid) {
			return res, updErr
		}
		cur, err := s.Get(ctx, callerKey)
		if errors.Is(err, ErrNotFound) {
			res.Rejected = append(res.Rejected, rec.Key)
			continue
		}
		if err != nil {
			return res, err
		}
		if updErr != nil || cur.ModifiedAt > rec.ModifiedAt || cur.Username != rec.Payload.Username {
			res.Updates = append(res.Updates, cur.Record())
		}
	}
	if me, err := s.Get(ctx, callerKey); err == nil {
		res.ServerRecords = []cmodel.Record[cmodel.User]{me.Record()}
	} else if !errors.Is(err, ErrNotFound) {
		return res, err
	}
	return res, nil
}
