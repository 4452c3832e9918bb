package service

import (
	"context"
	"strings"
	"testing"

	"referral_rewards/internal/model"
	"referral_rewards/internal/repository"
	"referral_rewards/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestReferralService_GenerateCode(t *testing.T) {
	mockRepo := &mocks.MockReferralRepository{}
	service := NewReferralService(mockRepo)

	tests := []struct {
		name          string
		userID        int64
		setupMocks    func(mockRepo *mocks.MockReferralRepository)
		checkCode     func(*testing.T, string)
		expectedError bool
	}{
		{
			name:   "Existing record is returned unchanged",
			userID: 123,
			setupMocks: func(mockRepo *mocks.MockReferralRepository) {
				mockRepo.On("GetReferralByUserID", mock.Anything, int64(123)).
					Return(&model.Referral{UserID: 123, Code: "AB12CD34"}, nil)
			},
			checkCode: func(t *testing.T, code string) {
				assert.Equal(t, "AB12CD34", code)
			},
		},
		{
			name:   "First call inserts a fresh code",
			userID: 124,
			setupMocks: func(mockRepo *mocks.MockReferralRepository) {
				mockRepo.On("GetReferralByUserID", mock.Anything, int64(124)).
					Return(nil, repository.ErrNotFound)
				mockRepo.On("CreateReferral", mock.Anything, int64(124), mock.AnythingOfType("string")).
					Return(nil)
			},
			checkCode: func(t *testing.T, code string) {
				assert.Len(t, code, 8)
				for _, c := range code {
					assert.Contains(t, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", string(c))
				}
			},
		},
		{
			name:   "Collision triggers retry with a new candidate",
			userID: 125,
			setupMocks: func(mockRepo *mocks.MockReferralRepository) {
				mockRepo.On("GetReferralByUserID", mock.Anything, int64(125)).
					Return(nil, repository.ErrNotFound)
				mockRepo.On("CreateReferral", mock.Anything, int64(125), mock.AnythingOfType("string")).
					Return(repository.ErrCodeTaken).Twice()
				mockRepo.On("CreateReferral", mock.Anything, int64(125), mock.AnythingOfType("string")).
					Return(nil).Once()
			},
			checkCode: func(t *testing.T, code string) {
				assert.Len(t, code, 8)
			},
		},
		{
			name:   "Lost first-call race returns the winning row's code",
			userID: 126,
			setupMocks: func(mockRepo *mocks.MockReferralRepository) {
				mockRepo.On("GetReferralByUserID", mock.Anything, int64(126)).
					Return(nil, repository.ErrNotFound).Once()
				mockRepo.On("CreateReferral", mock.Anything, int64(126), mock.AnythingOfType("string")).
					Return(repository.ErrUserExists)
				mockRepo.On("GetReferralByUserID", mock.Anything, int64(126)).
					Return(&model.Referral{UserID: 126, Code: "ZZ99YY88"}, nil).Once()
			},
			checkCode: func(t *testing.T, code string) {
				assert.Equal(t, "ZZ99YY88", code)
			},
		},
		{
			name:   "Exhausted retries surface as an error",
			userID: 127,
			setupMocks: func(mockRepo *mocks.MockReferralRepository) {
				mockRepo.On("GetReferralByUserID", mock.Anything, int64(127)).
					Return(nil, repository.ErrNotFound)
				mockRepo.On("CreateReferral", mock.Anything, int64(127), mock.AnythingOfType("string")).
					Return(repository.ErrCodeTaken)
			},
			expectedError: true,
		},
		{
			name:   "Storage failure on insert is not retried",
			userID: 128,
			setupMocks: func(mockRepo *mocks.MockReferralRepository) {
				mockRepo.On("GetReferralByUserID", mock.Anything, int64(128)).
					Return(nil, repository.ErrNotFound)
				mockRepo.On("CreateReferral", mock.Anything, int64(128), mock.AnythingOfType("string")).
					Return(assert.AnError).Once()
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo.ExpectedCalls = nil
			mockRepo.Calls = nil

			tt.setupMocks(mockRepo)

			code, err := service.GenerateCode(context.Background(), tt.userID)

			if tt.expectedError {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			if tt.checkCode != nil {
				tt.checkCode(t, code)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestReferralService_GenerateCode_Idempotent(t *testing.T) {
	mockRepo := &mocks.MockReferralRepository{}
	service := NewReferralService(mockRepo)

	mockRepo.On("GetReferralByUserID", mock.Anything, int64(42)).
		Return(&model.Referral{UserID: 42, Code: "AB12CD34"}, nil)

	first, err := service.GenerateCode(context.Background(), 42)
	assert.NoError(t, err)
	second, err := service.GenerateCode(context.Background(), 42)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	mockRepo.AssertNotCalled(t, "CreateReferral", mock.Anything, mock.Anything, mock.Anything)
}

func TestReferralService_RedeemCode(t *testing.T) {
	mockRepo := &mocks.MockReferralRepository{}
	service := NewReferralService(mockRepo)

	tests := []struct {
		name          string
		userID        int64
		code          string
		setupMocks    func(mockRepo *mocks.MockReferralRepository)
		expected      *model.Redemption
		expectedError error
	}{
		{
			name:   "Successful redemption",
			userID: 2,
			code:   "AB12CD34",
			setupMocks: func(mockRepo *mocks.MockReferralRepository) {
				mockRepo.On("RedeemCode", mock.Anything, int64(2), "AB12CD34").
					Return(&model.Redemption{AppliedCode: "AB12CD34", OwnerUsername: "A"}, nil)
			},
			expected: &model.Redemption{AppliedCode: "AB12CD34", OwnerUsername: "A"},
		},
		{
			name:          "Empty code is rejected without touching the store",
			userID:        2,
			code:          "",
			setupMocks:    func(mockRepo *mocks.MockReferralRepository) {},
			expectedError: ErrInvalidCode,
		},
		{
			name:   "Unknown code",
			userID: 2,
			code:   "NOPE0000",
			setupMocks: func(mockRepo *mocks.MockReferralRepository) {
				mockRepo.On("RedeemCode", mock.Anything, int64(2), "NOPE0000").
					Return(nil, repository.ErrCodeNotFound)
			},
			expectedError: ErrInvalidCode,
		},
		{
			name:   "Own code",
			userID: 1,
			code:   "AB12CD34",
			setupMocks: func(mockRepo *mocks.MockReferralRepository) {
				mockRepo.On("RedeemCode", mock.Anything, int64(1), "AB12CD34").
					Return(nil, repository.ErrSelfRedemption)
			},
			expectedError: ErrSelfRedemption,
		},
		{
			name:   "Redeemer never generated a code",
			userID: 3,
			code:   "AB12CD34",
			setupMocks: func(mockRepo *mocks.MockReferralRepository) {
				mockRepo.On("RedeemCode", mock.Anything, int64(3), "AB12CD34").
					Return(nil, repository.ErrNoReferralRecord)
			},
			expectedError: ErrNoReferralRecord,
		},
		{
			name:   "Repeat redemption of the same code",
			userID: 2,
			code:   "AB12CD34",
			setupMocks: func(mockRepo *mocks.MockReferralRepository) {
				mockRepo.On("RedeemCode", mock.Anything, int64(2), "AB12CD34").
					Return(nil, repository.ErrAlreadyRedeemed)
			},
			expectedError: ErrAlreadyRedeemed,
		},
		{
			name:   "Lifetime limit reached",
			userID: 2,
			code:   "EF56GH78",
			setupMocks: func(mockRepo *mocks.MockReferralRepository) {
				mockRepo.On("RedeemCode", mock.Anything, int64(2), "EF56GH78").
					Return(nil, repository.ErrRedemptionLimit)
			},
			expectedError: ErrRedemptionLimit,
		},
		{
			name:   "Storage failure propagates without a validation verdict",
			userID: 2,
			code:   "AB12CD34",
			setupMocks: func(mockRepo *mocks.MockReferralRepository) {
				mockRepo.On("RedeemCode", mock.Anything, int64(2), "AB12CD34").
					Return(nil, assert.AnError)
			},
			expectedError: assert.AnError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo.ExpectedCalls = nil
			mockRepo.Calls = nil

			tt.setupMocks(mockRepo)

			redemption, err := service.RedeemCode(context.Background(), tt.userID, tt.code)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, redemption)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, redemption)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestReferralService_GetReferralStatus(t *testing.T) {
	mockRepo := &mocks.MockReferralRepository{}
	service := NewReferralService(mockRepo)

	mockRepo.On("GetReferralByUserID", mock.Anything, int64(7)).
		Return(&model.Referral{
			UserID:        7,
			Code:          "AB12CD34",
			ReferralCount: 2,
			RedeemedCodes: []string{"ZZ99YY88"},
		}, nil)
	mockRepo.On("GetReferralByUserID", mock.Anything, int64(8)).
		Return(nil, repository.ErrNotFound)

	status, err := service.GetReferralStatus(context.Background(), 7)
	assert.NoError(t, err)
	assert.Equal(t, "AB12CD34", status.Code)
	assert.Equal(t, 2, status.ReferralCount)
	assert.Equal(t, []string{"ZZ99YY88"}, status.RedeemedCodes)

	_, err = service.GetReferralStatus(context.Background(), 8)
	assert.ErrorIs(t, err, ErrNoReferralRecord)
}

func TestRandomCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code, err := randomCode(codeLength)
		assert.NoError(t, err)
		assert.Len(t, code, codeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c),
				"unexpected character %q in code %q", c, code)
		}
		seen[code] = struct{}{}
	}

	// 100 draws from a 36^8 space should never repeat.
	assert.Len(t, seen, 100)
}
