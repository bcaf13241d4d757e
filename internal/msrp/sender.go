package msrp

// fragment splits content into a sequence of SEND chunks, each carrying
// at most chunkPayloadBytes of body, per RFC 4975 §7.1.1. The first
// chunk's Byte-Range starts at 1. Content is always fully buffered here,
// so every chunk's Byte-Range carries the known total size.
func fragment(messageID, contentType string, content []byte, chunkPayloadBytes int, localPath, remotePath []URI, failureReport, successReport string) []*Chunk {
	if chunkPayloadBytes <= 0 {
		chunkPayloadBytes = DefaultChunkPayloadBytes
	}
	total := int64(len(content))
	if total == 0 {
		c := newSendChunk(messageID, contentType, nil, ByteRange{Start: 1, End: 0, Total: 0}, Complete, localPath, remotePath, failureReport, successReport)
		return []*Chunk{c}
	}

	var chunks []*Chunk
	var offset int64
	for offset < total {
		end := offset + int64(chunkPayloadBytes)
		if end > total {
			end = total
		}
		completion := Continuation
		if end == total {
			completion = Complete
		}
		br := ByteRange{Start: offset + 1, End: end, Total: total}
		chunk := newSendChunk(messageID, contentType, content[offset:end], br, completion, localPath, remotePath, failureReport, successReport)
		chunks = append(chunks, chunk)
		offset = end
	}
	return chunks
}

func newSendChunk(messageID, contentType string, body []byte, br ByteRange, completion Completion, localPath, remotePath []URI, failureReport, successReport string) *Chunk {
	c := &Chunk{
		TransactionID: newTransactionID(),
		Method:        "SEND",
		Body:          body,
		Completion:    completion,
	}
	c.addHeader("To-Path", joinURIs(remotePath))
	c.addHeader("From-Path", joinURIs(localPath))
	c.addHeader("Message-ID", messageID)
	c.addHeader("Byte-Range", br.String())
	if contentType != "" {
		c.addHeader("Content-Type", contentType)
	}
	if failureReport != "" && failureReport != "yes" {
		c.addHeader("Failure-Report", failureReport)
	}
	if successReport != "" && successReport != "no" {
		c.addHeader("Success-Report", successReport)
	}
	return c
}

// response builds the 200 OK (or other status) transaction-level
// response to a request chunk, per RFC 4975 §7.1.
func response(req *Chunk, statusCode int, reason string, localPath, remotePath []URI) *Chunk {
	return &Chunk{
		TransactionID: req.TransactionID,
		StatusCode:    statusCode,
		ReasonPhrase:  reason,
		Completion:    Complete,
		Headers: []Header{
			{Name: "To-Path", Value: joinURIs(remotePath)},
			{Name: "From-Path", Value: joinURIs(localPath)},
		},
	}
}
