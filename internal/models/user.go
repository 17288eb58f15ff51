package models

// User is the local record of an identity-provider subject. Accounts,
// transactions and budgets hang off it.
type User struct {
	Base
	ExternalID   string        `gorm:"uniqueIndex;not null" json:"external_id"`
	Email        string        `gorm:"not null" json:"email"`
	Name         string        `json:"name"`
	Accounts     []Account     `gorm:"foreignKey:UserID" json:"accounts,omitempty"`
	Transactions []Transaction `gorm:"foreignKey:UserID" json:"transactions,omitempty"`
	Budget       *Budget       `gorm:"foreignKey:UserID" json:"budget,omitempty"`
}

// DisplayName returns the name used in greetings, falling back to the email.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
