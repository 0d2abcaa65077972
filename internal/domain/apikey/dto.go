// internal/domain/apikey/dto.go
package apikey

// CreateRequest for issuing a new automation key.
type CreateRequest struct {
	Name  string   `json:"name" binding:"required"`
	Site  string   `json:"site" binding:"required"`
	Roles []string `json:"roles" binding:"required"`
}

// Created is returned once at creation time and includes the plaintext key.
type Created struct {
	Key       *Key   `json:"key"`
	Plaintext string `json:"plaintext"`
}
