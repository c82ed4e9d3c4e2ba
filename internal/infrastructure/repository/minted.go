package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/multicreator/mintpipe"
	"github.com/multicreator/mintpipe/internal/infrastructure/database/models"
	"github.com/multicreator/mintpipe/internal/usecase"
)

type MintedTokenRepository struct {
	db *gorm.DB
}

func NewMintedTokenRepository(db *gorm.DB) *MintedTokenRepository {
	return &MintedTokenRepository{db: db}
}

// Record persists a confirmed mint together with its durable
// fingerprint claim. Idempotent on replays of the same token.
func (r *MintedTokenRepository) Record(ctx context.Context, record mintpipe.MintedRecord) error {

	creators := make([]string, len(record.Creators))
	shares := make([]int64, len(record.Creators))
	for i, cs := range record.Creators {
		creators[i] = cs.Address
		shares[i] = int64(cs.Share)
	}

	token := models.MintedToken{
		TokenID:     record.TokenID,
		TxHash:      record.TxRef,
		Fingerprint: string(record.Fingerprint),
		Title:       record.Title,
		MetadataURI: record.MetadataURI,
		BackupURI:   record.BackupURI,
		Creators:    creators,
		Shares:      shares,
		Price:       record.Price,
		Degraded:    record.Degraded,
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		if err := tx.Clauses(clause.OnConflict{
			DoNothing: true,
		}).Create(&token).Error; err != nil {
			return err
		}

		reservation := models.FingerprintReservation{
			Fingerprint: string(record.Fingerprint),
			TokenID:     record.TokenID,
		}
		return tx.Clauses(clause.OnConflict{
			DoNothing: true,
		}).Create(&reservation).Error
	})
}

func (r *MintedTokenRepository) GetByTokenID(ctx context.Context, tokenID string) (mintpipe.MintedRecord, error) {
	var token models.MintedToken
	err := r.db.WithContext(ctx).First(&token, "token_id = ?", tokenID).Error
	if err != nil {
		return mintpipe.MintedRecord{}, err
	}
	return toRecord(token), nil
}

func (r *MintedTokenRepository) List(ctx context.Context, limit int) ([]mintpipe.MintedRecord, error) {
	var tokens []models.MintedToken
	err := r.db.WithContext(ctx).Order("c_date DESC").Limit(limit).Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	records := make([]mintpipe.MintedRecord, len(tokens))
	for i, token := range tokens {
		records[i] = toRecord(token)
	}
	return records, nil
}

func toRecord(token models.MintedToken) mintpipe.MintedRecord {
	creators := make([]mintpipe.CreatorShare, len(token.Creators))
	for i, addr := range token.Creators {
		share := 0
		if i < len(token.Shares) {
			share = int(token.Shares[i])
		}
		creators[i] = mintpipe.CreatorShare{Address: addr, Share: share}
	}
	return mintpipe.MintedRecord{
		TokenID:     token.TokenID,
		TxRef:       token.TxHash,
		Fingerprint: mintpipe.Fingerprint(token.Fingerprint),
		Title:       token.Title,
		MetadataURI: token.MetadataURI,
		BackupURI:   token.BackupURI,
		Creators:    creators,
		Price:       token.Price,
		Degraded:    token.Degraded,
		MintedAt:    token.CDate,
	}
}

// RestoreReservations re-seeds a volatile registry with the
// fingerprints of every confirmed mint, restoring cross-restart dedup.
// Restored fingerprints are persisted: they belong to confirmed mints
// and must never expire with the in-flight reservation TTL.
func RestoreReservations(ctx context.Context, db *gorm.DB, registry usecase.DedupRegistry) error {
	var reservations []models.FingerprintReservation
	if err := db.WithContext(ctx).Find(&reservations).Error; err != nil {
		return err
	}
	for _, res := range reservations {
		if err := registry.Persist(ctx, mintpipe.Fingerprint(res.Fingerprint)); err != nil {
			return err
		}
	}
	return nil
}
