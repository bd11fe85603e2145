package models

import "time"

type User struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Locale    string // "en", "el", "ru"
	BirthDate *time.Time
}
