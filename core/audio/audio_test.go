package audio

import "testing"

func TestFormatByteSize(t *testing.T) {
	for _, tc := range []struct {
		format Format
		want   int
	}{
		{FormatLinear16, 2},
		{FormatMulaw, 1},
		{Format("opus"), -1},
	} {
		t.Run(string(tc.format), func(t *testing.T) {
			if got := tc.format.ByteSize(); got != tc.want {
				t.Fatalf("expected byte size %d, got %d", tc.want, got)
			}
		})
	}
}

func TestDefaultEncoding(t *testing.T) {
	encoding := Default()
	if encoding.IsZero() {
		t.Fatalf("expected default encoding to be complete, got %+v", encoding)
	}
	if got := encoding.BytesPerSecond(); got != DefaultSampleRate*2 {
		t.Fatalf("expected %d bytes per second, got %d", DefaultSampleRate*2, got)
	}
}
