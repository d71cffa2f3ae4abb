package carwash

import "time"

type Carwash struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	IsActive  bool      `json:"isActive"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	LogoPath  string    `json:"logoPath,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Visible applies the shared visibility rule to this carwash's status.
func (c Carwash) Visible() bool {
	return Visible(c.Status)
}
