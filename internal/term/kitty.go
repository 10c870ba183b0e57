package term

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
)

// KittyEncoder transmits raw RGBA frames via the kitty graphics protocol.
// Pixels are base64 encoded and sent in chunks so escape payloads stay under
// the protocol's 4096-byte limit.
type KittyEncoder struct{}

const (
	kittyChunkSize = 4096

	kittyCellW = 10
	kittyCellH = 20
)

func (e *KittyEncoder) Name() string { return "kitty" }

func (e *KittyEncoder) PixelSize(cols, rows int) (int, int) {
	return cols * kittyCellW, rows * kittyCellH
}

func (e *KittyEncoder) Encode(w io.Writer, pix []byte, width, height int) error {
	bw := bufio.NewWriterSize(w, len(pix)/2)

	payload := base64.StdEncoding.EncodeToString(pix)

	firstLen := len(payload)
	if firstLen > kittyChunkSize {
		firstLen = kittyChunkSize
	}
	more := 0
	if firstLen < len(payload) {
		more = 1
	}
	// f=32 is raw RGBA, a=T transmits and displays in one command.
	fmt.Fprintf(bw, "\x1b_Gf=32,s=%d,v=%d,a=T,q=2,m=%d;%s\x1b\\", width, height, more, payload[:firstLen])
	payload = payload[firstLen:]

	for len(payload) > 0 {
		n := len(payload)
		if n > kittyChunkSize {
			n = kittyChunkSize
		}
		more = 0
		if n < len(payload) {
			more = 1
		}
		fmt.Fprintf(bw, "\x1b_Gm=%d;%s\x1b\\", more, payload[:n])
		payload = payload[n:]
	}

	return bw.Flush()
}
