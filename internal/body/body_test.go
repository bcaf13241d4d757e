package body

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMultipartRoundTrip(t *testing.T) {
	jpeg := make([]byte, 47382)
	_, err := rand.Read(jpeg)
	require.NoError(t, err)

	parts := []Part{
		{
			ContentType: "message/cpim",
			Text:        "From: Alice <sip:alice@example.com>\r\n\r\nHere is a picture of my car crash",
		},
		{
			ContentType:      "image/jpeg",
			TransferEncoding: "binary",
			Binary:           true,
			Bytes:            jpeg,
		},
	}

	const boundary = "boundary-42"
	built := Build(parts, boundary)

	parsed, err := Parse(built, `multipart/mixed;boundary="`+boundary+`"`)
	require.NoError(t, err)
	require.Len(t, parsed, len(parts))

	for i := range parts {
		require.Equal(t, parts[i].ContentType, parsed[i].ContentType)
		require.Equal(t, parts[i].Payload(), parsed[i].Payload())
	}
}

func TestBinaryPreservation(t *testing.T) {
	jpeg := make([]byte, 47382)
	_, err := rand.Read(jpeg)
	require.NoError(t, err)

	parts := []Part{{
		ContentType: "image/jpeg",
		Binary:      true,
		Bytes:       jpeg,
	}}
	built := Build(parts, "b1")
	parsed, err := Parse(built, "multipart/mixed; boundary=b1")
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	require.True(t, parsed[0].Binary)
	require.Len(t, parsed[0].Bytes, len(jpeg))
	require.Equal(t, jpeg, parsed[0].Bytes)
}

func TestMissingBoundary(t *testing.T) {
	_, err := Parse([]byte("garbage"), "multipart/mixed")
	require.ErrorIs(t, err, ErrMissingBoundary)
}

func TestMalformedBodyEmpty(t *testing.T) {
	_, err := Parse(nil, "multipart/mixed; boundary=x")
	require.ErrorIs(t, err, ErrMalformedBody)
}

func TestContentTypeParams(t *testing.T) {
	typ, params, err := parseTypeAndParams(`text/plain; charset=utf-8; foo="bar baz"`)
	require.NoError(t, err)
	require.Equal(t, "text/plain", typ)
	v, ok := params.Get("charset")
	require.True(t, ok)
	require.Equal(t, "utf-8", v)
	v, ok = params.Get("foo")
	require.True(t, ok)
	require.Equal(t, "bar baz", v)
}
