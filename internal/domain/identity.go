package domain

import "time"

// Principal es la credencial de autenticación; el perfil vive en otro registro.
type Principal struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type ProfileAttributes struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Address1    string `json:"address1"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	DateOfBirth string `json:"date_of_birth"`
	TaxID       string `json:"-"`
}

// Identity es el documento de perfil asociado a un Principal.
type Identity struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	DisplayName string            `json:"display_name"`
	Profile     ProfileAttributes `json:"profile"`
	Customer    PaymentCustomer   `json:"customer"`
	CreatedAt   time.Time         `json:"created_at"`
}
