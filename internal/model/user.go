package model

import (
	cmodel "Tianguis/internal/cli/model"
)

// User: серверная модель учётной записи.
type User struct {
	Key            string `gorm:"primaryKey;column:id"`
	Username       string `gorm:"not null;uniqueIndex"`
	DisplayName    string `gorm:"not null"`
	CredentialHash string `gorm:"not null"` // bcrypt, считается на клиенте
	ModifiedAt     int64  `gorm:"not null;index"`
	Deleted        bool   `gorm:"not null"`
}

// UserFromRecord переводит запись протокола синхронизации в серверную модель.
func UserFromRecord(rec cmodel.Record[cmodel.User]) *User {
	return &User{
		Key:            rec.Key,
		Username:       rec.Payload.Username,
		DisplayName:    rec.Payload.DisplayName,
		CredentialHash: rec.Payload.CredentialHash,
		ModifiedAt:     rec.ModifiedAt,
		Deleted:        rec.Deleted,
	}
}

// Record: представление для клиента. Владелец учётной записи: она сама.
func (u *User) Record() cmodel.Record[cmodel.User] {
	return cmodel.Record[cmodel.User]{
		Key:      u.Key,
		OwnerKey: u.Key,
		Payload: cmodel.User{
			Username:       u.Username,
			DisplayName:    u.DisplayName,
			CredentialHash: u.CredentialHash,
		},
		ModifiedAt: u.ModifiedAt,
		Deleted:    u.Deleted,
		Synced:     true,
	}
}
