package database

import "murmur/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Every model that owns a table belongs here; Migrate consumes this list so
// the schema never drifts from what the repositories expect.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Friendship{},
		&models.Message{},
		&models.PasswordResetToken{},
	}
}
