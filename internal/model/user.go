package model

type UserProfile struct {
	BaseModel
	Email string  `db:"email" json:"email"`
	Name  *string `db:"name" json:"name"`
	Role  string  `db:"role" json:"role"`
}
