package term

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewEncoder(t *testing.T) {
	for _, name := range []string{"halfblock", "sixel", "kitty"} {
		enc, err := NewEncoder(name)
		if err != nil {
			t.Fatalf("NewEncoder(%q): %v", name, err)
		}
		if enc.Name() != name {
			t.Errorf("encoder name = %q, want %q", enc.Name(), name)
		}
	}
	if _, err := NewEncoder("bogus"); err == nil {
		t.Error("expected error for unknown encoder name")
	}
}

func TestHalfblockEncode(t *testing.T) {
	// 1x2 image: red pixel over blue pixel, one cell.
	pix := []byte{
		255, 0, 0, 255,
		0, 0, 255, 255,
	}

	var buf bytes.Buffer
	enc := &HalfblockEncoder{}
	if err := enc.Encode(&buf, pix, 1, 2); err != nil {
		t.Fatal(err)
	}

	want := "\x1b[38;2;255;0;0m\x1b[48;2;0;0;255m▀\x1b[0m\r\n"
	if got := buf.String(); got != want {
		t.Errorf("halfblock output = %q, want %q", got, want)
	}
}

func TestHalfblockPixelSize(t *testing.T) {
	w, h := (&HalfblockEncoder{}).PixelSize(80, 24)
	if w != 80 || h != 48 {
		t.Errorf("PixelSize = %dx%d, want 80x48", w, h)
	}
}

func TestSixelPaletteIndex(t *testing.T) {
	if got := paletteIndex(0, 0, 0); got != 0 {
		t.Errorf("black index = %d, want 0", got)
	}
	if got := paletteIndex(255, 255, 255); got != sixelLevelsR*sixelLevelsG*sixelLevelsB-1 {
		t.Errorf("white index = %d, want %d", got, sixelLevelsR*sixelLevelsG*sixelLevelsB-1)
	}
	// All indices must stay inside the palette.
	for _, v := range []byte{0, 1, 127, 128, 254, 255} {
		idx := paletteIndex(v, v, v)
		if idx < 0 || idx >= sixelLevelsR*sixelLevelsG*sixelLevelsB {
			t.Errorf("paletteIndex(%d) = %d out of range", v, idx)
		}
	}
}

func TestSixelEncodeFraming(t *testing.T) {
	// 2x6 solid white band.
	pix := make([]byte, 2*6*4)
	for i := range pix {
		pix[i] = 255
	}

	var buf bytes.Buffer
	enc := &SixelEncoder{}
	if err := enc.Encode(&buf, pix, 2, 6); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "\x1bPq\"1;1;2;6") {
		t.Errorf("missing DCS header: %q", out[:20])
	}
	if !strings.HasSuffix(out, "\x1b\\") {
		t.Error("missing string terminator")
	}
	// Palette entry 0 is black.
	if !strings.Contains(out, "#0;2;0;0;0") {
		t.Error("missing palette entry 0")
	}
	// A full 6-pixel column of one color is sixel char '~' (63+63).
	if !strings.Contains(out, "~") {
		t.Error("expected full-column sixel char for solid band")
	}
	if !strings.Contains(out, "-") {
		t.Error("missing band separator")
	}
}

func TestSixelPixelSizeBandAligned(t *testing.T) {
	_, h := (&SixelEncoder{}).PixelSize(80, 24)
	if h%6 != 0 {
		t.Errorf("height %d not a multiple of 6", h)
	}
}

func TestKittyEncodeChunks(t *testing.T) {
	// Large enough that base64 spans several chunks.
	width, height := 64, 32
	pix := make([]byte, width*height*4)

	var buf bytes.Buffer
	enc := &KittyEncoder{}
	if err := enc.Encode(&buf, pix, width, height); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "\x1b_Gf=32,s=64,v=32,a=T,q=2,m=1;") {
		t.Errorf("bad first chunk header: %q", out[:40])
	}
	// Continuation chunks carry only the m key; the last has m=0.
	if !strings.Contains(out, "\x1b_Gm=1;") {
		t.Error("missing continuation chunk")
	}
	if !strings.Contains(out, "\x1b_Gm=0;") {
		t.Error("missing final chunk")
	}

	// No payload segment may exceed the chunk limit.
	for _, part := range strings.Split(out, "\x1b\\") {
		if i := strings.IndexByte(part, ';'); i >= 0 {
			if len(part)-i-1 > kittyChunkSize {
				t.Errorf("chunk payload %d bytes exceeds %d", len(part)-i-1, kittyChunkSize)
			}
		}
	}
}

func TestKittyEncodeSingleChunk(t *testing.T) {
	pix := make([]byte, 2*2*4)

	var buf bytes.Buffer
	if err := (&KittyEncoder{}).Encode(&buf, pix, 2, 2); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "\x1b_Gf=32,s=2,v=2,a=T,q=2,m=0;") {
		t.Errorf("small frame should fit one chunk: %q", out)
	}
	if strings.Count(out, "\x1b\\") != 1 {
		t.Error("expected exactly one escape terminator")
	}
}
