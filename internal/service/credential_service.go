package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	config "github.com/maheshrc27/threadflow/configs"
	"github.com/maheshrc27/threadflow/internal/lock"
	"github.com/maheshrc27/threadflow/internal/models"
	"github.com/maheshrc27/threadflow/internal/repository"
	"github.com/maheshrc27/threadflow/pkg/utils"
	"golang.org/x/oauth2"
)

type CredentialService interface {
	GetClient(ctx context.Context, accountID int64) (XClient, error)
	Refresh(ctx context.Context, accountID int64, within time.Duration) (bool, error)
	Register(ctx context.Context, username, clientID, clientSecret string) (int64, error)
	Connect(ctx context.Context, accountID int64, code, verifier, redirectURI string) error
}

type credentialService struct {
	cfg      config.Config
	accounts repository.AccountRepository
	cipher   *utils.Cipher
	locker   lock.Locker
	now      func() time.Time
}

func NewCredentialService(cfg config.Config, accounts repository.AccountRepository, cipher *utils.Cipher, locker lock.Locker) CredentialService {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &credentialService{
		cfg:      cfg,
		accounts: accounts,
		cipher:   cipher,
		locker:   locker,
		now:      time.Now,
	}
}

// GetClient returns a client for the account, refreshing and persisting its tokens
// first when the access token expires within the refresh buffer.
func (s *credentialService) GetClient(ctx context.Context, accountID int64) (XClient, error) {
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account %d: %w", accountID, err)
	}

	if s.expiresWithin(acc, s.cfg.TokenRefreshBuffer) {
		acc, _, err = s.refresh(ctx, accountID, s.cfg.TokenRefreshBuffer)
		if err != nil {
			return nil, err
		}
	}

	accessToken, err := s.cipher.Decrypt(acc.AccessToken)
	if err != nil || accessToken == "" {
		return nil, fmt.Errorf("%w: account %d has no usable access token", ErrConfig, accountID)
	}

	return NewXClient(s.cfg.X, accessToken, s.cfg.HTTPTimeout, s.cfg.MediaChunkSize), nil
}

// Refresh rotates the account's tokens if they expire within the given window. It
// reports whether this call performed the refresh.
func (s *credentialService) Refresh(ctx context.Context, accountID int64, within time.Duration) (bool, error) {
	_, refreshed, err := s.refresh(ctx, accountID, within)
	return refreshed, err
}

func (s *credentialService) Register(ctx context.Context, username, clientID, clientSecret string) (int64, error) {
	err := validation.Errors{
		"username":      validation.Validate(username, validation.Required),
		"client_id":     validation.Validate(clientID, validation.Required),
		"client_secret": validation.Validate(clientSecret, validation.Required),
	}.Filter()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	encryptedID, err := s.cipher.Encrypt(clientID)
	if err != nil {
		return 0, err
	}
	encryptedSecret, err := s.cipher.Encrypt(clientSecret)
	if err != nil {
		return 0, err
	}

	return s.accounts.Create(ctx, &models.Account{
		Username:     username,
		ClientID:     encryptedID,
		ClientSecret: encryptedSecret,
	})
}

// Connect exchanges an authorization code for the account's first token pair.
func (s *credentialService) Connect(ctx context.Context, accountID int64, code, verifier, redirectURI string) error {
	if code == "" {
		return fmt.Errorf("%w: authorization code is empty", ErrConfig)
	}

	unlock, err := s.locker.Lock(ctx, lockKey(accountID))
	if err != nil {
		return err
	}
	defer unlock()

	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account %d: %w", accountID, err)
	}

	conf, err := s.oauthConfig(acc)
	if err != nil {
		return err
	}
	conf.RedirectURL = redirectURI

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := conf.Exchange(s.httpContext(ctx), code, opts...)
	if err != nil {
		return tokenError("exchange code", err)
	}

	_, err = s.store(ctx, acc, token)
	return err
}

func (s *credentialService) refresh(ctx context.Context, accountID int64, within time.Duration) (*models.Account, bool, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(accountID))
	if err != nil {
		return nil, false, fmt.Errorf("lock account %d: %w", accountID, err)
	}
	defer unlock()

	// Another refresher may have rotated the token while we waited.
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, false, fmt.Errorf("load account %d: %w", accountID, err)
	}
	if !s.expiresWithin(acc, within) {
		return acc, false, nil
	}

	refreshToken, err := s.cipher.Decrypt(acc.RefreshToken)
	if err != nil || refreshToken == "" {
		return nil, false, fmt.Errorf("%w: account %d has no usable refresh token", ErrConfig, accountID)
	}

	conf, err := s.oauthConfig(acc)
	if err != nil {
		return nil, false, err
	}

	token, err := conf.TokenSource(s.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, false, tokenError("refresh token", err)
	}

	updated, err := s.store(ctx, acc, token)
	if errors.Is(err, repository.ErrTokenConflict) {
		slog.Info("token rotated elsewhere, using stored token", "account_id", accountID)
		acc, err = s.accounts.GetByID(ctx, accountID)
		if err != nil {
			return nil, false, err
		}
		return acc, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	slog.Info("account token refreshed", "account_id", accountID, "expires_at", updated.TokenExpiresAt)
	return updated, true, nil
}

// store encrypts the token pair and writes it only if the row still holds acc's expiry.
func (s *credentialService) store(ctx context.Context, acc *models.Account, token *oauth2.Token) (*models.Account, error) {
	encryptedAccess, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return nil, err
	}

	encryptedRefresh := acc.RefreshToken
	if token.RefreshToken != "" {
		encryptedRefresh, err = s.cipher.Encrypt(token.RefreshToken)
		if err != nil {
			return nil, err
		}
	}

	updated := *acc
	updated.AccessToken = encryptedAccess
	updated.RefreshToken = encryptedRefresh
	updated.TokenExpiresAt = tokenExpiry(token)

	if err := s.accounts.SetToken(ctx, acc.ID, acc.TokenExpiresAt, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *credentialService) oauthConfig(acc *models.Account) (*oauth2.Config, error) {
	clientID, err := s.cipher.Decrypt(acc.ClientID)
	if err != nil || clientID == "" {
		return nil, fmt.Errorf("%w: account %d has no usable client id", ErrConfig, acc.ID)
	}
	clientSecret, err := s.cipher.Decrypt(acc.ClientSecret)
	if err != nil || clientSecret == "" {
		return nil, fmt.Errorf("%w: account %d has no usable client secret", ErrConfig, acc.ID)
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{"tweet.read", "tweet.write", "users.read", "media.write", "offline.access"},
		Endpoint: oauth2.Endpoint{
			TokenURL:  s.cfg.X.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}, nil
}

func (s *credentialService) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: s.cfg.HTTPTimeout})
}

func (s *credentialService) expiresWithin(acc *models.Account, d time.Duration) bool {
	return !acc.TokenExpiresAt.After(s.now().Add(d))
}

func lockKey(accountID int64) string {
	return fmt.Sprintf("account:%d", accountID)
}

func tokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return &APIError{Op: op, Status: status, Body: string(re.Body)}
	}
	slog.Info(err.Error())
	return fmt.Errorf("%s: %w", op, err)
}
