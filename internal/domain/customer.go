package domain

type CustomerKind string

const (
	CustomerPersonal CustomerKind = "personal"
	CustomerBusiness CustomerKind = "business"
)

type PaymentCustomer struct {
	IdentityID  string       `json:"identity_id"`
	CustomerRef string       `json:"customer_ref"`
	Kind        CustomerKind `json:"kind"`
}
