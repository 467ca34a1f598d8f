package auth

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codebreakers/domain"
)

type memoryUserRepo struct {
	users  map[string]domain.User
	nextId int
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[string]domain.User{}}
}

func (r *memoryUserRepo) CreateUser(ctx context.Context, username, passwordHash string) (string, error) {
	if _, exists := r.users[username]; exists {
		return "", domain.ErrDuplicateUsername
	}
	r.nextId++
	id := fmt.Sprintf("user-%d", r.nextId)
	r.users[username] = domain.User{Id: id, Username: username, PasswordHash: passwordHash}
	return id, nil
}

func (r *memoryUserRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	user, exists := r.users[username]
	if !exists {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (r *memoryUserRepo) GetUserById(ctx context.Context, id string) (domain.User, error) {
	for _, user := range r.users {
		if user.Id == id {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

type xorHasher struct{}

func (xorHasher) Hash(password string) (string, error) {
	arr := []rune(password)
	for i := range arr {
		arr[i] = arr[i] ^ 7
	}
	return string(arr), nil
}

func (h xorHasher) Compare(hash, password string) (bool, error) {
	rehashed, _ := h.Hash(password)
	return rehashed == hash, nil
}

type fakeTokenManager struct{}

func (fakeTokenManager) Generate(id string, now time.Time) (string, error) {
	return "token." + id, nil
}

func (fakeTokenManager) Verify(token string) (string, error) {
	id, ok := strings.CutPrefix(token, "token.")
	if !ok {
		return "", domain.ErrCorruptedToken
	}
	return id, nil
}

func newTestService() (*service, *memoryUserRepo) {
	repo := newMemoryUserRepo()
	return NewService(repo, xorHasher{}, fakeTokenManager{}), repo
}

func TestSignup(t *testing.T) {
	cases := []struct {
		description string
		username    string
		password    string
		wantErr     error
	}{
		{"valid credentials", "alice_01", "hunter2hunter2", nil},
		{"username too short", "al", "hunter2hunter2", ErrInvalidUsernameFormat},
		{"username too long", strings.Repeat("a", 21), "hunter2hunter2", ErrInvalidUsernameFormat},
		{"uppercase username", "Alice", "hunter2hunter2", ErrInvalidUsernameFormat},
		{"username with spaces", "al ice", "hunter2hunter2", ErrInvalidUsernameFormat},
		{"password too short", "alice_01", "hunter2", ErrWeakPassword},
		{"password too long", "alice_01", strings.Repeat("x", 129), ErrPasswordTooLong},
		{"password of exactly 8 runes", "alice_01", "12345678", nil},
		{"password of exactly 128 runes", "alice_01", strings.Repeat("x", 128), nil},
	}

	for _, tc := range cases {
		t.Run(tc.description, func(t *testing.T) {
			svc, _ := newTestService()
			token, err := svc.Signup(context.Background(), tc.username, tc.password)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token)
		})
	}
}

func TestSignup_DuplicateUsername(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Signup(context.Background(), "alice_01", "hunter2hunter2")
	require.NoError(t, err)

	_, err = svc.Signup(context.Background(), "alice_01", "different-password")
	assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
}

func TestSignup_NeverStoresThePlainPassword(t *testing.T) {
	svc, repo := newTestService()

	_, err := svc.Signup(context.Background(), "alice_01", "hunter2hunter2")
	require.NoError(t, err)

	assert.NotEqual(t, "hunter2hunter2", repo.users["alice_01"].PasswordHash)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Signup(context.Background(), "alice_01", "hunter2hunter2")
	require.NoError(t, err)

	t.Run("correct credentials", func(t *testing.T) {
		token, err := svc.Login(context.Background(), "alice_01", "hunter2hunter2")
		require.NoError(t, err)
		assert.Equal(t, "token.user-1", token)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(context.Background(), "alice_01", "not-the-password")
		assert.ErrorIs(t, err, ErrIncorrectPassword)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Login(context.Background(), "nobody_here", "hunter2hunter2")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestVerifyToken(t *testing.T) {
	svc, _ := newTestService()

	id, err := svc.VerifyToken("token.user-42")
	require.NoError(t, err)
	assert.Equal(t, "user-42", id)

	_, err = svc.VerifyToken("garbage")
	assert.Error(t, err)
}

func TestIsCredentialMismatch(t *testing.T) {
	assert.True(t, IsCredentialMismatch(ErrIncorrectPassword))
	assert.True(t, IsCredentialMismatch(domain.ErrUserNotFound))
	assert.False(t, IsCredentialMismatch(domain.ErrDuplicateUsername))
	assert.False(t, IsCredentialMismatch(nil))
}
