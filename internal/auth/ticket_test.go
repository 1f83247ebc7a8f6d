package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketRoundTrip(t *testing.T) {
	ticket := IssueTicket("s3cret", 42, 45*time.Second)

	subject, err := VerifyTicket("s3cret", ticket)
	require.NoError(t, err)
	assert.Equal(t, uint(42), subject)
}

func TestTicketExpired(t *testing.T) {
	ticket := IssueTicket("s3cret", 42, -1*time.Second)

	_, err := VerifyTicket("s3cret", ticket)
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestTicketWrongSecret(t *testing.T) {
	ticket := IssueTicket("s3cret", 42, 45*time.Second)

	_, err := VerifyTicket("other", ticket)
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestTicketTampered(t *testing.T) {
	ticket := IssueTicket("s3cret", 42, 45*time.Second)
	parts := strings.Split(ticket, ".")
	require.Len(t, parts, 4)

	// Swap in a different subject while keeping the original signature.
	parts[1] = "7"
	_, err := VerifyTicket("s3cret", strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestTicketMalformed(t *testing.T) {
	for _, ticket := range []string{"", "a.b", "a.b.c", "a.b.c.d.e", "id.notanumber.123.sig"} {
		_, err := VerifyTicket("s3cret", ticket)
		assert.ErrorIs(t, err, ErrInvalidTicket, "ticket %q", ticket)
	}
}

func TestTicketFailuresIndistinguishable(t *testing.T) {
	expired := IssueTicket("s3cret", 42, -1*time.Second)
	_, errExpired := VerifyTicket("s3cret", expired)

	forged := IssueTicket("other", 42, 45*time.Second)
	_, errForged := VerifyTicket("s3cret", forged)

	_, errMalformed := VerifyTicket("s3cret", "garbage")

	assert.Equal(t, errExpired, errForged)
	assert.Equal(t, errForged, errMalformed)
}
