package models

import "github.com/google/uuid"

// ensureID fills a zero uuid before insert so rows can be created on
// databases without gen_random_uuid().
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
