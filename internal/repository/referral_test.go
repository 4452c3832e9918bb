package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckRedemption(t *testing.T) {
	tests := []struct {
		name          string
		redeemedCodes []string
		code          string
		expectedError error
	}{
		{
			name:          "Fresh redeemer",
			redeemedCodes: nil,
			code:          "AB12CD34",
		},
		{
			name:          "Repeat of an already redeemed code",
			redeemedCodes: []string{"AB12CD34"},
			code:          "AB12CD34",
			expectedError: ErrAlreadyRedeemed,
		},
		{
			name:          "Different code after earlier redemptions",
			redeemedCodes: []string{"AB12CD34", "EF56GH78"},
			code:          "ZZ99YY88",
		},
		{
			name:          "Sixth redemption is the last one allowed",
			redeemedCodes: []string{"C1", "C2", "C3", "C4", "C5"},
			code:          "C6",
		},
		{
			name:          "Seventh redemption is rejected",
			redeemedCodes: []string{"C1", "C2", "C3", "C4", "C5", "C6"},
			code:          "C7",
			expectedError: ErrRedemptionLimit,
		},
		{
			name:          "Repeat check wins over limit at the cap",
			redeemedCodes: []string{"C1", "C2", "C3", "C4", "C5", "C6"},
			code:          "C3",
			expectedError: ErrAlreadyRedeemed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkRedemption(&referralRow{RedeemedCodes: tt.redeemedCodes}, tt.code)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
