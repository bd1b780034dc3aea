// Package token implements the rotating per-club check-in token.
//
// Each club owns a random secret that is replaced lazily: the first issuance
// after the rotation interval has elapsed rotates the secret before deriving
// the token. A token is HMAC-SHA256(secret, clubID:issuedAt:salt), which binds
// it to one club and one issuance second. Validation always recomputes against
// the secret currently stored, so rotation invalidates every older token.
package token

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Kerhoff/clubleague/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SecretBytes is the width of a freshly generated club secret
const SecretBytes = 32

// SecretStore persists the per-club secret. Implementations return
// models.ErrClubNotFound for unknown or inactive clubs.
type SecretStore interface {
	GetTokenSecret(ctx context.Context, clubID uuid.UUID) (secret string, lastRotation *time.Time, err error)
	RotateTokenSecret(ctx context.Context, clubID uuid.UUID, secret string, at time.Time) error
}

// Token is what a club display renders for members to scan
type Token struct {
	ClubID    uuid.UUID `json:"club_id"`
	Value     string    `json:"token"`
	IssuedAt  int64     `json:"issued_at"`
	ExpiresAt int64     `json:"expires_at"`
}

// Protocol issues and validates club tokens
type Protocol struct {
	store    SecretStore
	interval time.Duration
	salt     string
	random   io.Reader
	logger   logrus.FieldLogger
}

// New creates a Protocol. interval is both the secret rotation period and
// the lifetime of an issued token.
func New(store SecretStore, interval time.Duration, salt string, logger logrus.FieldLogger) *Protocol {
	return &Protocol{
		store:    store,
		interval: interval,
		salt:     salt,
		random:   rand.Reader,
		logger:   logger,
	}
}

// Interval returns the rotation interval
func (p *Protocol) Interval() time.Duration {
	return p.interval
}

func (p *Protocol) lifetime() int64 {
	return int64(p.interval / time.Second)
}

// Issue returns a token for clubID at now, rotating the club secret first
// when the current one is older than the interval.
func (p *Protocol) Issue(ctx context.Context, clubID uuid.UUID, now time.Time) (*Token, error) {
	secret, lastRotation, err := p.store.GetTokenSecret(ctx, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to load token secret for club %s: %w", clubID, err)
	}

	if secret == "" || lastRotation == nil || now.Sub(*lastRotation) >= p.interval {
		secret, err = p.rotate(ctx, clubID, now)
		if err != nil {
			return nil, err
		}
	}

	issuedAt := now.Unix()
	return &Token{
		ClubID:    clubID,
		Value:     p.sign(clubID, secret, issuedAt),
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt + p.lifetime(),
	}, nil
}

// Validate checks a scanned token. It returns models.ErrTokenExpired when
// now is past issuedAt plus the interval and models.ErrTokenInvalid when the
// token does not match the club's current secret.
func (p *Protocol) Validate(ctx context.Context, clubID uuid.UUID, token string, issuedAt int64, now time.Time) error {
	if now.Unix() > issuedAt+p.lifetime() {
		return models.ErrTokenExpired
	}

	secret, _, err := p.store.GetTokenSecret(ctx, clubID)
	if err != nil {
		return fmt.Errorf("failed to load token secret for club %s: %w", clubID, err)
	}
	if secret == "" {
		return models.ErrTokenInvalid
	}

	expected := p.sign(clubID, secret, issuedAt)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return models.ErrTokenInvalid
	}
	return nil
}

// Rotate replaces the club secret immediately
func (p *Protocol) Rotate(ctx context.Context, clubID uuid.UUID, now time.Time) error {
	_, err := p.rotate(ctx, clubID, now)
	return err
}

func (p *Protocol) rotate(ctx context.Context, clubID uuid.UUID, now time.Time) (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := io.ReadFull(p.random, buf); err != nil {
		return "", fmt.Errorf("failed to generate token secret: %w", err)
	}
	secret := hex.EncodeToString(buf)

	if err := p.store.RotateTokenSecret(ctx, clubID, secret, now); err != nil {
		return "", fmt.Errorf("failed to rotate token secret for club %s: %w", clubID, err)
	}

	p.logger.WithField("club_id", clubID).Debug("Rotated club token secret")
	return secret, nil
}

func (p *Protocol) sign(clubID uuid.UUID, secret string, issuedAt int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(clubID.String() + ":" + strconv.FormatInt(issuedAt, 10) + ":" + p.salt))
	return hex.EncodeToString(mac.Sum(nil))
}
