package cpim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	msg := Message{
		From:            Address{Name: "Alice", URI: "im:alice@example.com"},
		To:              []Address{{Name: "Bob", URI: "im:bob@example.com"}},
		DateTime:        "2000-12-13T13:40:00-08:00",
		Subject:         []string{"the weather will be fine today"},
		MIMEContentType: "text/plain",
		Body:            []byte("Here is a picture of my car crash"),
	}
	out := Build(msg)

	parsed, err := Parse(out)
	require.NoError(t, err)
	require.Equal(t, msg.From, parsed.From)
	require.Equal(t, msg.To, parsed.To)
	require.Equal(t, msg.DateTime, parsed.DateTime)
	require.Equal(t, msg.Subject, parsed.Subject)
	require.Equal(t, msg.MIMEContentType, parsed.MIMEContentType)
	require.Equal(t, msg.Body, parsed.Body)
}

func TestParseAddressNoURIBrackets(t *testing.T) {
	a := parseAddress("sip:alice@example.com")
	require.Equal(t, "", a.Name)
	require.Equal(t, "sip:alice@example.com", a.URI)
}

func TestMalformedMissingBlankLine(t *testing.T) {
	_, err := Parse([]byte("From: Alice <im:a@b>\r\n"))
	require.Error(t, err)
}
