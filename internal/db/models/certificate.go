package models

import (
	"time"
)

type StorageMode string

const (
	StorageOnChain  StorageMode = "ON_CHAIN"
	StorageOffChain StorageMode = "OFF_CHAIN"
)

func ParseStorageMode(s string) (StorageMode, bool) {
	switch StorageMode(s) {
	case StorageOnChain, StorageOffChain:
		return StorageMode(s), true
	}
	return "", false
}

// Certificate is keyed by the content hash of the issued document; the hash
// is computed server-side from the payload, never accepted from the caller.
// Rows are never deleted, revocation is a one-way flag.
type Certificate struct {
	CertHash    string      `gorm:"primaryKey;size:64" json:"cert_hash"`
	Issuer      string      `gorm:"index;not null;size:42" json:"issuer"`
	Recipient   string      `gorm:"index;not null;size:42" json:"recipient"`
	StorageMode StorageMode `gorm:"not null" json:"storage_mode"`
	IPFSHash    string      `json:"ipfs_hash,omitempty"`
	Payload     []byte      `gorm:"type:bytea" json:"-"`
	BlockNumber uint64      `json:"block_number,omitempty"`
	TxHash      string      `json:"tx_hash,omitempty"`
	IssuedAt    time.Time   `gorm:"not null" json:"issued_at"`
	Revoked     bool        `gorm:"not null;default:false" json:"is_revoked"`
	RevokedAt   *time.Time  `json:"revoked_at,omitempty"`
	CreatedAt   time.Time   `json:"-"`
	UpdatedAt   time.Time   `json:"-"`
}

// PayloadRef is the external reference for the stored content: the
// content-addressed hash off-chain, the anchoring transaction on-chain.
func (c *Certificate) PayloadRef() string {
	if c.StorageMode == StorageOffChain {
		return c.IPFSHash
	}
	return c.TxHash
}
