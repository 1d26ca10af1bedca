package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/covfold/pkg/coverage"
)

// Compression selects how report payloads are stored.
type Compression string

// Compression modes.
const (
	CompressionNone Compression = "none"
	CompressionLZ4  Compression = "lz4"
)

// lz4Magic opens every LZ4 frame.
var lz4Magic = []byte{0x04, 0x22, 0x4D, 0x18}

// ParseCompression validates a configured compression name.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case CompressionNone, "":
		return CompressionNone, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	default:
		return "", fmt.Errorf("%w: compression %q", ErrInvalidConfig, name)
	}
}

// Encode serializes report as JSON, wrapped in an LZ4 frame when requested.
func Encode(report *coverage.Report, compression Compression) ([]byte, error) {
	data, marshalErr := json.Marshal(report)
	if marshalErr != nil {
		return nil, fmt.Errorf("encode report: %w", marshalErr)
	}

	if compression != CompressionLZ4 {
		return data, nil
	}

	var buf bytes.Buffer

	zw := lz4.NewWriter(&buf)

	_, writeErr := zw.Write(data)
	if writeErr != nil {
		return nil, fmt.Errorf("compress report: %w", writeErr)
	}

	closeErr := zw.Close()
	if closeErr != nil {
		return nil, fmt.Errorf("compress report: %w", closeErr)
	}

	return buf.Bytes(), nil
}

// Decode is the inverse of [Encode]; LZ4 frames are recognized by their magic
// number. Undecodable data yields [ErrCorrupt] with the cause in the message.
func Decode(data []byte) (*coverage.Report, error) {
	if IsCompressed(data) {
		raw, readErr := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if readErr != nil {
			return nil, fmt.Errorf("%w: decompress: %v", ErrCorrupt, readErr) //nolint:errorlint // lz4 errors stay out of the chain.
		}

		data = raw
	}

	report := coverage.NewReport()

	decodeErr := json.Unmarshal(data, report)
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrCorrupt, decodeErr) //nolint:errorlint // json errors stay out of the chain.
	}

	return report, nil
}

// IsCompressed reports whether data is an LZ4 frame.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, lz4Magic)
}
