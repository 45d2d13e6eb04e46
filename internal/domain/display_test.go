package domain

import "testing"

func TestDisplayMode_Next_Cycles(t *testing.T) {
	order := []DisplayMode{ModeBinary, ModeDecimal8, ModeDecimal16, ModeDecoded, ModeBinary}
	m := ModeBinary
	for i := 1; i < len(order); i++ {
		m = m.Next()
		if m != order[i] {
			t.Fatalf("step %d: got %v, want %v", i, m, order[i])
		}
	}
}

func TestFormatPayload(t *testing.T) {
	tests := []struct {
		name      string
		mode      DisplayMode
		data      []byte
		bigEndian bool
		want      string
	}{
		{"binary", ModeBinary, []byte{0x05, 0xFF}, false, "00000101 11111111"},
		{"binary empty", ModeBinary, nil, false, ""},
		{"dec8", ModeDecimal8, []byte{0, 127, 255}, false, "0 127 255"},
		{"dec16 little endian", ModeDecimal16, []byte{0x01, 0x02}, false, "513"},
		{"dec16 big endian", ModeDecimal16, []byte{0x01, 0x02}, true, "258"},
		{"dec16 odd length", ModeDecimal16, []byte{0x01, 0x02, 0x03}, false, "N/A (odd bytes)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatPayload(tt.mode, tt.data, tt.bigEndian, nil, false)
			if got != tt.want {
				t.Errorf("FormatPayload() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatPayload_Decoded(t *testing.T) {
	signals := map[string]float64{"speed": 42.5, "battery": 80}
	got := FormatPayload(ModeDecoded, nil, false, signals, false)
	want := "battery: 80, speed: 42.5"
	if got != want {
		t.Errorf("decoded = %q, want %q", got, want)
	}

	if got := FormatPayload(ModeDecoded, nil, false, nil, true); got != DecodeErrorText {
		t.Errorf("decode error = %q, want %q", got, DecodeErrorText)
	}
	if got := FormatPayload(ModeDecoded, nil, false, nil, false); got != noDecoderText {
		t.Errorf("no decoder = %q, want %q", got, noDecoderText)
	}
}
