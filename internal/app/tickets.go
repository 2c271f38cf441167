package app

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"paddleduel/internal/domain"

	"github.com/form3tech-oss/jwt-go"
)

// TicketIssuer is the iss claim on every join ticket.
const TicketIssuer = "paddleduel"

var (
	// ErrTicketInvalid rejects tickets that fail signature or claim checks.
	ErrTicketInvalid = errors.New("invalid join ticket")
	// ErrTicketExpired rejects tickets past their exp claim.
	ErrTicketExpired = errors.New("join ticket expired")
)

// TicketClaims is what a join ticket grants: one player, one session, one relay match.
type TicketClaims struct {
	SessionID domain.SessionID
	MatchID   string
	UserID    domain.UserID
	AccountID string
	ExpiresAt time.Time
}

// TicketService signs and checks the short-lived tokens players present when
// joining a session's relay match.
type TicketService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTicketService builds a service signing with secret. now may be nil to use time.Now.
func NewTicketService(secret string, ttl time.Duration, now func() time.Time) *TicketService {
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    now,
	}
}

// Issue signs a ticket admitting accountID (player userID) to the relay match of a session.
func (s *TicketService) Issue(sessionID domain.SessionID, matchID string, userID domain.UserID, accountID string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("ticket service is nil")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("ticket secret is not configured")
	}
	if sessionID == "" || matchID == "" || accountID == "" {
		return "", fmt.Errorf("session, match and account are required")
	}
	if !userID.Valid() {
		return "", fmt.Errorf("invalid user id %d", userID)
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss": TicketIssuer,
		"sub": accountID,
		"uid": int64(userID),
		"sid": string(sessionID),
		"mid": matchID,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
		"jti": fmt.Sprintf("%d-%d", now.UnixNano(), rand.Int63()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the signature and expiry of a ticket and returns its claims.
func (s *TicketService) Verify(ticket string) (TicketClaims, error) {
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}, SkipClaimsValidation: true}
	token, err := parser.Parse(ticket, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return TicketClaims{}, fmt.Errorf("%w: %v", ErrTicketInvalid, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return TicketClaims{}, ErrTicketInvalid
	}
	if iss, _ := claims["iss"].(string); iss != TicketIssuer {
		return TicketClaims{}, fmt.Errorf("%w: unexpected issuer %q", ErrTicketInvalid, iss)
	}

	sid, _ := claims["sid"].(string)
	mid, _ := claims["mid"].(string)
	sub, _ := claims["sub"].(string)
	uid, _ := claims["uid"].(float64)
	exp, _ := claims["exp"].(float64)
	out := TicketClaims{
		SessionID: domain.SessionID(sid),
		MatchID:   mid,
		UserID:    domain.UserID(uid),
		AccountID: sub,
		ExpiresAt: time.Unix(int64(exp), 0),
	}
	if out.SessionID == "" || out.MatchID == "" || out.AccountID == "" || !out.UserID.Valid() {
		return TicketClaims{}, fmt.Errorf("%w: missing claims", ErrTicketInvalid)
	}
	if !s.now().Before(out.ExpiresAt) {
		return TicketClaims{}, ErrTicketExpired
	}
	return out, nil
}
