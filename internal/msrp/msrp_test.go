package msrp

import (
	"crypto/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustURI(t *testing.T, s string) URI {
	u, err := ParseURI(s)
	require.NoError(t, err)
	return u
}

func TestURIRoundTrip(t *testing.T) {
	u := mustURI(t, "msrp://example.com:2855/session123abc;tcp")
	require.Equal(t, "example.com", u.Host)
	require.Equal(t, 2855, u.Port)
	require.Equal(t, "session123abc", u.SessionID)
	require.Equal(t, "tcp", u.Transport)
	require.False(t, u.Secure)
	require.Equal(t, "msrp://example.com:2855/session123abc;tcp", u.String())
}

func TestURIDefaultPort(t *testing.T) {
	u := mustURI(t, "msrps://[::1]/abc;tcp")
	require.True(t, u.Secure)
	require.Equal(t, "::1", u.Host)
	require.Equal(t, 2855, u.Port)
}

func TestChunkMarshalEmptyBody(t *testing.T) {
	c := &Chunk{
		TransactionID: "tid1",
		Method:        "SEND",
		Completion:    Complete,
	}
	c.addHeader("To-Path", "msrp://a/b;tcp")
	out := c.Marshal()
	require.Contains(t, string(out), "MSRP tid1 SEND\r\n")
	require.Contains(t, string(out), "-------tid1$\r\n")
}

func TestParserRoundTripRequest(t *testing.T) {
	c := &Chunk{
		TransactionID: "dkei38sd",
		Method:        "SEND",
		Body:          []byte("hello"),
		Completion:    Complete,
	}
	c.addHeader("To-Path", "msrp://bob.example.com:2855/9di4eae923wzd;tcp")
	c.addHeader("From-Path", "msrp://alice.example.com:7654/iau39soe2843z;tcp")
	c.addHeader("Message-ID", "12339sdqwer")
	c.addHeader("Byte-Range", "1-5/5")

	p := NewParser(0)
	p.Feed(c.Marshal())

	got, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "dkei38sd", got.TransactionID)
	require.Equal(t, "SEND", got.Method)
	require.Equal(t, []byte("hello"), got.Body)
	require.Equal(t, Complete, got.Completion)
	v, ok := got.Header("Message-ID")
	require.True(t, ok)
	require.Equal(t, "12339sdqwer", v)
}

func TestParserRoundTripResponse(t *testing.T) {
	c := &Chunk{
		TransactionID: "dkei38sd",
		StatusCode:    200,
		ReasonPhrase:  "OK",
		Completion:    Complete,
	}
	p := NewParser(0)
	p.Feed(c.Marshal())
	got, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.False(t, got.IsRequest())
	require.Equal(t, 200, got.StatusCode)
	require.Equal(t, "OK", got.ReasonPhrase)
}

func TestParserIncrementalFeed(t *testing.T) {
	c := &Chunk{
		TransactionID: "abc123",
		Method:        "SEND",
		Body:          []byte("split across reads"),
		Completion:    Complete,
	}
	c.addHeader("Message-ID", "m1")
	full := c.Marshal()

	p := NewParser(0)
	got, err := p.Next()
	require.NoError(t, err)
	require.Nil(t, got)

	mid := len(full) / 2
	p.Feed(full[:mid])
	got, err = p.Next()
	require.NoError(t, err)
	require.Nil(t, got)

	p.Feed(full[mid:])
	got, err = p.Next()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, []byte("split across reads"), got.Body)
}

func TestParserMessageTooLarge(t *testing.T) {
	p := NewParser(16)
	p.Feed([]byte("MSRP tid SEND\r\nMessage-ID: x\r\n\r\nthis body never ends and keeps going"))
	_, err := p.Next()
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestByteRangeParse(t *testing.T) {
	br, err := ParseByteRange("1-2048/4096")
	require.NoError(t, err)
	require.Equal(t, int64(1), br.Start)
	require.Equal(t, int64(2048), br.End)
	require.Equal(t, int64(4096), br.Total)
	require.Equal(t, "1-2048/4096", br.String())

	br2, err := ParseByteRange("1-*/*")
	require.NoError(t, err)
	require.Equal(t, int64(-1), br2.End)
	require.Equal(t, int64(-1), br2.Total)
	require.Equal(t, "1-*/*", br2.String())
}

func TestReassemblerSingleChunk(t *testing.T) {
	r := NewReassembler(0)
	c := &Chunk{TransactionID: "t1", Method: "SEND", Body: []byte("hi"), Completion: Complete}
	c.addHeader("Message-ID", "m1")
	c.addHeader("Byte-Range", "1-2/2")
	msg, err := r.Feed(c)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, []byte("hi"), msg.Content)
}

func TestReassemblerFragmented(t *testing.T) {
	r := NewReassembler(0)
	const messageID = "m-frag"

	c1 := &Chunk{TransactionID: "t1", Method: "SEND", Body: []byte("hello "), Completion: Continuation}
	c1.addHeader("Message-ID", messageID)
	c1.addHeader("Byte-Range", "1-6/12")
	c1.addHeader("Content-Type", "text/plain")
	msg, err := r.Feed(c1)
	require.NoError(t, err)
	require.Nil(t, msg)

	c2 := &Chunk{TransactionID: "t2", Method: "SEND", Body: []byte("world!"), Completion: Complete}
	c2.addHeader("Message-ID", messageID)
	c2.addHeader("Byte-Range", "7-12/12")
	msg, err = r.Feed(c2)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, "hello world!", string(msg.Content))
	require.Equal(t, "text/plain", msg.ContentType)
}

func TestReassemblerTooLarge(t *testing.T) {
	r := NewReassembler(8)
	c := &Chunk{TransactionID: "t1", Method: "SEND", Body: []byte("this is way too long"), Completion: Complete}
	c.addHeader("Message-ID", "m1")
	_, err := r.Feed(c)
	require.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestReassemblerAbortClearsPartial(t *testing.T) {
	r := NewReassembler(0)
	const messageID = "m-abort"

	c1 := &Chunk{TransactionID: "t1", Method: "SEND", Body: []byte("partial"), Completion: Abort}
	c1.addHeader("Message-ID", messageID)
	c1.addHeader("Byte-Range", "1-7/20")
	msg, err := r.Feed(c1)
	require.Nil(t, msg)
	require.Error(t, err)
	require.Empty(t, r.partials)

	c2 := &Chunk{TransactionID: "t2", Method: "SEND", Body: []byte("fresh"), Completion: Complete}
	c2.addHeader("Message-ID", messageID)
	c2.addHeader("Byte-Range", "1-5/5")
	msg, err = r.Feed(c2)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, "fresh", string(msg.Content))
}

func TestReportGating(t *testing.T) {
	require.True(t, wantsReport("yes", "no", 200) == false) // success, Success-Report default no
	require.True(t, wantsReport("yes", "yes", 200))
	require.True(t, wantsReport("yes", "no", 400))
	require.False(t, wantsReport("no", "no", 400))
	require.True(t, wantsReport("partial", "no", 400))
	require.False(t, wantsReport("partial", "yes", 200))
}

func TestBuildAndParseReport(t *testing.T) {
	local := []URI{mustURI(t, "msrp://alice.example.com:7654/iau39soe2843z;tcp")}
	remote := []URI{mustURI(t, "msrp://bob.example.com:2855/9di4eae923wzd;tcp")}
	msg := &Message{
		MessageID: "12339sdqwer",
		ByteRange: ByteRange{Start: 1, End: 2048, Total: 2048},
	}
	c := buildReport(msg, 200, "OK", local, remote)
	require.Equal(t, "REPORT", c.Method)

	rt := NewParser(0)
	rt.Feed(c.Marshal())
	got, err := rt.Next()
	require.NoError(t, err)
	require.Equal(t, "REPORT", got.Method)

	rpt, err := parseReport(got)
	require.NoError(t, err)
	require.Equal(t, "12339sdqwer", rpt.MessageID)
	require.Equal(t, 200, rpt.Status.Code)
}

func TestFragmentRespectsPayloadCap(t *testing.T) {
	content := make([]byte, 5000)
	_, err := rand.Read(content)
	require.NoError(t, err)

	chunks := fragment("msg1", "application/octet-stream", content, 2048, nil, nil, "", "")
	require.Len(t, chunks, 3)
	require.Equal(t, Continuation, chunks[0].Completion)
	require.Equal(t, Continuation, chunks[1].Completion)
	require.Equal(t, Complete, chunks[2].Completion)

	var reassembled []byte
	for _, c := range chunks {
		reassembled = append(reassembled, c.Body...)
	}
	require.Equal(t, content, reassembled)
}

// TestSessionFragmentedJPEGExchange sends a 47382-byte image/jpeg body as
// one SEND whose 2048-byte fragments reassemble on the peer, which
// responds 200 OK to each chunk and issues no REPORT (Success-Report left
// at its default "no").
func TestSessionFragmentedJPEGExchange(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	localClient := []URI{mustURI(t, "msrp://alice.example.com:7654/iau39soe2843z;tcp")}
	remoteClient := []URI{mustURI(t, "msrp://bob.example.com:2855/9di4eae923wzd;tcp")}

	client := NewSession(clientConn, Config{LocalPath: localClient, RemotePath: remoteClient, ChunkPayloadBytes: 2048})
	server := NewSession(serverConn, Config{LocalPath: remoteClient, RemotePath: localClient})

	received := make(chan *Message, 1)
	server.OnMessage(func(m *Message) {
		received <- m
	})

	go client.Run()
	go server.Run()
	defer client.Close()
	defer server.Close()

	jpeg := make([]byte, 47382)
	_, err := rand.Read(jpeg)
	require.NoError(t, err)

	require.NoError(t, client.Send("msg-jpeg-1", "image/jpeg", jpeg, "", ""))

	select {
	case msg := <-received:
		require.Equal(t, jpeg, msg.Content)
		require.Equal(t, "image/jpeg", msg.ContentType)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reassembled message")
	}
}

func TestSessionEndToEndReport(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	localClient := []URI{mustURI(t, "msrp://alice.example.com:7654/iau39soe2843z;tcp")}
	remoteClient := []URI{mustURI(t, "msrp://bob.example.com:2855/9di4eae923wzd;tcp")}

	client := NewSession(clientConn, Config{LocalPath: localClient, RemotePath: remoteClient})
	server := NewSession(serverConn, Config{LocalPath: remoteClient, RemotePath: localClient})

	reports := make(chan *Report, 1)
	client.OnReport(func(r *Report) { reports <- r })

	go client.Run()
	go server.Run()
	defer client.Close()
	defer server.Close()

	require.NoError(t, client.Send("msg-report-1", "text/plain", []byte("hi"), "", "yes"))

	select {
	case r := <-reports:
		require.Equal(t, "msg-report-1", r.MessageID)
		require.Equal(t, 200, r.Status.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for end-to-end REPORT")
	}
}

func TestSessionPathMismatchRejected(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	wrongLocal := []URI{mustURI(t, "msrp://wrong.example.com:2855/zzzzzz;tcp")}
	remote := []URI{mustURI(t, "msrp://bob.example.com:2855/9di4eae923wzd;tcp")}

	server := NewSession(serverConn, Config{LocalPath: wrongLocal, RemotePath: remote})
	go server.Run()
	defer server.Close()

	c := &Chunk{TransactionID: "t1", Method: "SEND", Body: []byte("hi"), Completion: Complete}
	c.addHeader("To-Path", "msrp://bob.example.com:2855/9di4eae923wzd;tcp")
	c.addHeader("Message-ID", "m1")

	_, err := clientConn.Write(c.Marshal())
	require.NoError(t, err)

	p := NewParser(0)
	buf := make([]byte, 4096)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := clientConn.Read(buf)
	require.NoError(t, err)
	p.Feed(buf[:n])
	resp, err := p.Next()
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 400, resp.StatusCode)
}
