package gaussian

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"github.com/google/uuid"
)

// PointCloud is a loaded splat asset: the raw records plus an id the viewer
// shell uses to refer to it.
type PointCloud struct {
	Id        string
	Gaussians []RawGaussian
}

// LoadPLY reads a binary little-endian gaussian-splat PLY file.
func LoadPLY(path string) (*PointCloud, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ply %s: %w", path, err)
	}
	cloud, err := ParsePLY(data)
	if err != nil {
		return nil, fmt.Errorf("parse ply %s: %w", path, err)
	}
	return cloud, nil
}

// ParsePLY decodes an in-memory PLY image. The header is ASCII up to an
// end_header line (LF or CRLF); the body is vertexCount packed 248-byte
// records. A body shorter than the declared count is an error.
func ParsePLY(data []byte) (*PointCloud, error) {
	headerEnd, bodyStart, err := findHeaderEnd(data)
	if err != nil {
		return nil, err
	}

	count, err := parseVertexCount(string(data[:headerEnd]))
	if err != nil {
		return nil, err
	}

	body := data[bodyStart:]
	expected := count * RawGaussianSize
	if len(body) < expected {
		return nil, fmt.Errorf("ply body too small: need %d bytes for %d vertices, have %d",
			expected, count, len(body))
	}

	// The body may start at any byte offset, so copy into an aligned slice
	// instead of casting in place.
	records := make([]RawGaussian, count)
	if count > 0 {
		dst := unsafe.Slice((*byte)(unsafe.Pointer(&records[0])), expected)
		copy(dst, body[:expected])
	}

	return &PointCloud{
		Id:        uuid.NewString(),
		Gaussians: records,
	}, nil
}

func findHeaderEnd(data []byte) (headerEnd, bodyStart int, err error) {
	if i := bytes.Index(data, []byte("end_header\r\n")); i >= 0 {
		return i, i + len("end_header\r\n"), nil
	}
	if i := bytes.Index(data, []byte("end_header\n")); i >= 0 {
		return i, i + len("end_header\n"), nil
	}
	return 0, 0, fmt.Errorf("ply header has no end_header line")
}

func parseVertexCount(header string) (int, error) {
	for _, line := range strings.Split(header, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "element vertex "); ok {
			count, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return 0, fmt.Errorf("ply vertex count %q: %w", rest, err)
			}
			if count < 0 {
				return 0, fmt.Errorf("ply vertex count is negative: %d", count)
			}
			return count, nil
		}
	}
	return 0, fmt.Errorf("ply header has no element vertex line")
}
