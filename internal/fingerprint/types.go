package fingerprint

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/kozaktomas/sigboard/internal/signature"
)

// Properties contains everything computed from uploaded content that is
// needed to create a post or run a reverse search.
type Properties struct {
	Token     string               `json:"token"`
	Checksum  string               `json:"checksum"` // SHA-256 as hex string
	MD5       string               `json:"md5"`
	MimeType  string               `json:"mime_type"`
	Width     int                  `json:"width"`
	Height    int                  `json:"height"`
	FileSize  int64                `json:"file_size"`
	Signature signature.Compressed `json:"signature"`
	Words     signature.Words      `json:"words"`
	Thumbnail []byte               `json:"-"` // JPEG, filled by the upload service
}

// mimeTypes maps supported image formats to their file extension.
var mimeTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/bmp":  "bmp",
	"image/webp": "webp",
	"image/tiff": "tiff",
}

// ComputeProperties decodes content once and computes its checksums,
// dimensions and signature.
func ComputeProperties(token string, data []byte) (*Properties, error) {
	img, _, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	c, words := signature.Compute(ToGray(img))
	bounds := img.Bounds()

	return &Properties{
		Token:     token,
		Checksum:  ComputeChecksum(data),
		MD5:       ComputeMD5(data),
		MimeType:  DetectMimeType(data),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		FileSize:  int64(len(data)),
		Signature: c,
		Words:     words,
	}, nil
}

// ComputeChecksum returns the SHA-256 of data as hex string.
func ComputeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ComputeMD5 returns the MD5 of data as hex string.
func ComputeMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// DetectMimeType sniffs the content type of data.
func DetectMimeType(data []byte) string {
	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	// http.DetectContentType does not know TIFF.
	if mime == "application/octet-stream" && len(data) >= 4 {
		if string(data[:4]) == "II*\x00" || string(data[:4]) == "MM\x00*" {
			return "image/tiff"
		}
	}
	return mime
}

// ExtensionForMime returns the file extension for a supported image type.
func ExtensionForMime(mime string) (string, error) {
	ext, ok := mimeTypes[mime]
	if !ok {
		return "", fmt.Errorf("unsupported content type: %s", mime)
	}
	return ext, nil
}
