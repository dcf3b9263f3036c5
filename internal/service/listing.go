package service

import (
	"context"
	"fmt"

	cmodel "Tianguis/internal/cli/model"
	"Tianguis/internal/model"
	"Tianguis/internal/repo"

	"go.uber.org/zap"
)

// ListingService: серверная сторона синхронизации объявлений.
type ListingService struct {
	repo   repo.ListingRepository
	logger *zap.SugaredLogger
}

func NewListingService(r repo.ListingRepository, logger *zap.SugaredLogger) *ListingService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ListingService{repo: r, logger: logger}
}

// List возвращает объявления вместе с удалёнными, чтобы удаление доходило до клиентов.
func (s *ListingService) List(ctx context.Context, ownerKey string) ([]cmodel.Record[cmodel.Listing], error) {
	ls, err := s.repo.List(ctx, ownerKey)
	if err != nil {
		return nil, err
	}
	return model.ListingRecords(ls), nil
}

func validateListing(rec cmodel.Record[cmodel.Listing]) error {
	if rec.Key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalid)
	}
	if err := rec.Payload.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Save создаёт или перезаписывает объявление вызывающего (create и update).
// Более старая версия, чем хранимая, молча игнорируется.
func (s *ListingService) Save(ctx context.Context, callerKey string, rec cmodel.Record[cmodel.Listing]) error {
	if rec.OwnerKey != callerKey {
		return ErrForbidden
	}
	if err := validateListing(rec); err != nil {
		return err
	}
	existing, err := s.repo.GetByKey(ctx, rec.Key)
	switch {
	case err == nil && existing.OwnerKey != callerKey:
		return ErrForbidden
	case err != nil && !repo.IsNotFound(err):
		return err
	}
	applied, err := s.repo.SaveIfNewer(ctx, model.ListingFromRecord(rec))
	if err != nil {
		return err
	}
	if !applied {
		s.logger.Debugw("listing: stale write ignored", "key", rec.Key, "modified_at", rec.ModifiedAt)
	}
	return nil
}

// Sync сливает пачку объявлений вызывающего по last-write-wins. В Updates попадают
// ключи, для которых у сервера осталась другая версия; чужие или невалидные записи без
// серверной копии попадают в Rejected. ServerRecords: все объявления вызывающего.
func (s *ListingService) Sync(ctx context.Context, callerKey string, recs []cmodel.Record[cmodel.Listing]) (SyncResult[cmodel.Listing], error) {
	var res SyncResult[cmodel.Listing]
	for _, rec := range recs {
		applied := false
		if rec.OwnerKey == callerKey && validateListing(rec) == nil {
			ok, err := s.repo.SaveIfNewer(ctx, model.ListingFromRecord(rec))
			if err != nil {
				return res, err
			}
			applied = ok
		}
		if applied {
			continue
		}
		s.logger.Debugw("listing sync: record not applied", "key", rec.Key, "owner", rec.OwnerKey)
		cur, err := s.repo.GetByKey(ctx, rec.Key)
		if err != nil {
			if repo.IsNotFound(err) {
				res.Rejected = append(res.Rejected, rec.Key)
				continue
			}
			return res, err
		}
		res.Updates = append(res.Updates, cur.Record())
	}
	all, err := s.List(ctx, callerKey)
	if err != nil {
		return res, err
	}
	res.ServerRecords = all
	return res, nil
}
