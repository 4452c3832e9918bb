package model

import (
	"time"
)

// Referral is one row per user who has generated a code. RedeemedCodes keeps
// insertion order: it is the order in which the user redeemed other codes.
type Referral struct {
	UserID        int64
	Code          string
	ReferralCount int
	RedeemedCodes []string
	CreatedAt     time.Time
}

// Redemption is the outcome of a successful code redemption.
type Redemption struct {
	AppliedCode   string
	OwnerUsername string
}
