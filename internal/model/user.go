package model

import "time"

// User is an email-identified account
type User struct {
	ID             int
	Email          string
	HashedPassword string
	FullName       string
	IsActive       bool
	CreatedAt      time.Time
}

// WatchlistEntry is a bill followed by a user
type WatchlistEntry struct {
	UserID    int
	BillID    int
	Title     string
	CreatedAt time.Time
}

// Post is a free-text comment attached to a bill
type Post struct {
	ID        int
	BillID    int
	UserID    int
	Content   string
	Upvotes   int
	Downvotes int
	CreatedAt time.Time
}

// StateBillCount is a state with its number of active bills
type StateBillCount struct {
	Code        string
	Name        string
	ActiveBills int
}
