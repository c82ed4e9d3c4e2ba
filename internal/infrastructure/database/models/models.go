package models

import (
	"time"

	"github.com/lib/pq"
)

type MintedToken struct {
	TokenID     string         `json:"tokenId" gorm:"primaryKey;type:text"`
	TxHash      string         `json:"txHash" gorm:"type:text;uniqueIndex"`
	Fingerprint string         `json:"fingerprint" gorm:"type:text;index"`
	Title       string         `json:"title" gorm:"type:text"`
	MetadataURI string         `json:"metadataUri" gorm:"type:text"`
	BackupURI   string         `json:"backupUri" gorm:"type:text"`
	Creators    pq.StringArray `json:"creators" gorm:"type:text[]"`
	Shares      pq.Int64Array  `json:"shares" gorm:"type:bigint[]"`
	Price       string         `json:"price" gorm:"type:text"`
	Degraded    bool           `json:"degraded" gorm:"type:boolean;not null;default:false"`
	CDate       time.Time      `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// FingerprintReservation durably records fingerprints of confirmed
// mints so the in-process registry can be re-seeded after a restart.
type FingerprintReservation struct {
	Fingerprint string    `json:"fingerprint" gorm:"primaryKey;type:text"`
	TokenID     string    `json:"tokenId" gorm:"type:text"`
	CDate       time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
