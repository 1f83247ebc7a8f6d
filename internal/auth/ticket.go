package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// A ticket authorizes a single WebSocket handshake for callers that cannot
// put a JWT on the upgrade request. Opaque format:
//
//	id.subject.expiry.signature
//
// where signature = HMAC-SHA256(id.subject.expiry, secret). TTL is tens of
// seconds; tickets are not meant for ongoing API calls.

const ticketDelimiter = "."

// ErrInvalidTicket covers malformed, expired and forged tickets alike, so a
// caller cannot use the error as an oracle.
var ErrInvalidTicket = errors.New("invalid ticket")

// IssueTicket mints a ticket for the given subject identity.
func IssueTicket(secret string, subject uint, ttl time.Duration) string {
	id := uuid.New().String()
	expiry := time.Now().Add(ttl).Unix()
	base := fmt.Sprintf("%s%s%d%s%d", id, ticketDelimiter, subject, ticketDelimiter, expiry)
	return base + ticketDelimiter + sign(secret, base)
}

// VerifyTicket checks structure, expiry and signature, returning the subject
// identity on success.
func VerifyTicket(secret, ticket string) (uint, error) {
	parts := strings.Split(ticket, ticketDelimiter)
	if len(parts) != 4 {
		return 0, ErrInvalidTicket
	}
	id, subjectStr, expiryStr, signature := parts[0], parts[1], parts[2], parts[3]

	subject, err := strconv.ParseUint(subjectStr, 10, 64)
	if err != nil {
		return 0, ErrInvalidTicket
	}
	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return 0, ErrInvalidTicket
	}

	base := id + ticketDelimiter + subjectStr + ticketDelimiter + expiryStr
	expected := sign(secret, base)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return 0, ErrInvalidTicket
	}
	if expiry < time.Now().Unix() {
		return 0, ErrInvalidTicket
	}
	return uint(subject), nil
}

func sign(secret, base string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}
