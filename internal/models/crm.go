package models

// CRMContact is the create-contact payload sent to the CRM
type CRMContact struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	LocationID  string `json:"locationId"`
	Phone       string `json:"phone,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
}

// CRMContactResult is what the service needs back from create-contact
type CRMContactResult struct {
	ID string
}
