package model

import "time"

type User struct {
	ID        int64
	Username  string
	Email     string
	Coins     int
	AuthType  string
	CreatedAt time.Time
}
