package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBinary_EmptyData(t *testing.T) {
	t.Parallel()

	assert.False(t, IsBinary(nil))
	assert.False(t, IsBinary([]byte{}))
}

func TestIsBinary_PureText(t *testing.T) {
	t.Parallel()

	assert.False(t, IsBinary([]byte("SF:src/a.c\nDA:1,1\n")))
}

func TestIsBinary_NullByte(t *testing.T) {
	t.Parallel()

	assert.True(t, IsBinary([]byte("hello\x00world")))
}

func TestIsBinary_NullBeyondSniffBoundary(t *testing.T) {
	t.Parallel()

	// Null byte beyond the sniff window should NOT be detected.
	data := make([]byte, BinarySniffLength+100)
	for i := range data {
		data[i] = 'a'
	}

	data[BinarySniffLength+50] = 0x00

	assert.False(t, IsBinary(data))
}

func TestFirstLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "single", in: "mode: set", want: "mode: set"},
		{name: "skips blanks", in: "\n  \n\t<?xml version=\"1.0\"?>\n<root/>", want: "<?xml version=\"1.0\"?>"},
		{name: "bom", in: "\xEF\xBB\xBF{\"a\":1}", want: "{\"a\":1}"},
		{name: "crlf", in: "TN:\r\nSF:a.c\r\n", want: "TN:"},
		{name: "only blanks", in: "\n\n  \n", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, FirstLine([]byte(tt.in)))
		})
	}
}

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := "\x1b[0;36m    1|\x1b[0m\x1b[0;35m      1|\x1b[0mimport Foundation"

	assert.Equal(t, "    1|      1|import Foundation", string(StripANSI([]byte(in))))
	assert.Equal(t, "plain", string(StripANSI([]byte("plain"))))
}
