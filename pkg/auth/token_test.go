package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenAuth_IssueAndParse(t *testing.T) {
	ta := NewTokenAuth("test-secret-at-least-16-chars", "referral-rewards")

	token, err := ta.Issue(42, time.Hour)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	userID, err := ta.parseUserID(token)
	assert.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestTokenAuth_ExpiredToken(t *testing.T) {
	ta := NewTokenAuth("test-secret-at-least-16-chars", "referral-rewards")

	token, err := ta.Issue(42, -time.Minute)
	assert.NoError(t, err)

	_, err = ta.parseUserID(token)
	assert.Error(t, err)
}

func TestTokenAuth_WrongSecret(t *testing.T) {
	issuer := NewTokenAuth("correct-secret-32-chars-long!!!!", "referral-rewards")
	verifier := NewTokenAuth("wrong-secret-32-chars-long!!!!!!", "referral-rewards")

	token, err := issuer.Issue(42, time.Hour)
	assert.NoError(t, err)

	_, err = verifier.parseUserID(token)
	assert.Error(t, err)
}

func TestTokenAuth_WrongIssuer(t *testing.T) {
	issuer := NewTokenAuth("test-secret-at-least-16-chars", "some-other-app")
	verifier := NewTokenAuth("test-secret-at-least-16-chars", "referral-rewards")

	token, err := issuer.Issue(42, time.Hour)
	assert.NoError(t, err)

	_, err = verifier.parseUserID(token)
	assert.Error(t, err)
}

func TestTokenAuth_GarbageToken(t *testing.T) {
	ta := NewTokenAuth("test-secret-at-least-16-chars", "referral-rewards")

	_, err := ta.parseUserID("not.a.token")
	assert.Error(t, err)
}
