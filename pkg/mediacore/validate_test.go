package mediacore_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carhub/mediacore/pkg/mediacore"
)

func makeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func makePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func requireReject(t *testing.T, err error, reason mediacore.RejectReason) {
	t.Helper()
	require.Error(t, err)
	ve, ok := mediacore.IsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Equal(t, reason, ve.Reason)
}

func newEngine() *mediacore.Engine {
	return mediacore.NewEngine(mediacore.DefaultPolicy(), nil, nil)
}

func TestValidateAcceptsRealJPEG(t *testing.T) {
	data := makeJPEG(t, 4, 4)
	err := newEngine().Validate(context.Background(), data, "car.jpg", "image/jpeg", int64(len(data)), "")
	assert.NoError(t, err)
}

func TestValidateAcceptsRealPNG(t *testing.T) {
	data := makePNG(t, 4, 4)
	err := newEngine().Validate(context.Background(), data, "shot.png", "image/png", int64(len(data)), "")
	assert.NoError(t, err)
}

func TestValidateEmptyAndBlank(t *testing.T) {
	e := newEngine()
	requireReject(t, e.Validate(context.Background(), nil, "car.jpg", "image/jpeg", 0, ""), mediacore.RejectEmptyFile)
	data := makeJPEG(t, 2, 2)
	requireReject(t, e.Validate(context.Background(), data, "   ", "image/jpeg", int64(len(data)), ""), mediacore.RejectBlankName)
}

func TestValidateSizeUsesLargerOfDeclaredAndActual(t *testing.T) {
	data := makeJPEG(t, 2, 2)
	// Declared size far above the image ceiling must reject even though the
	// actual bytes are tiny.
	err := newEngine().Validate(context.Background(), data, "car.jpg", "image/jpeg", 11<<20, "")
	requireReject(t, err, mediacore.RejectTooLarge)
}

func TestValidateExtensionRules(t *testing.T) {
	e := newEngine()
	data := makeJPEG(t, 2, 2)

	requireReject(t, e.Validate(context.Background(), data, "README", "image/jpeg", 0, ""), mediacore.RejectNoExtension)
	requireReject(t, e.Validate(context.Background(), data, "tool.exe", "image/jpeg", 0, ""), mediacore.RejectBlacklistedExtension)
	requireReject(t, e.Validate(context.Background(), data, "notes.xyz", "image/jpeg", 0, ""), mediacore.RejectExtensionNotAllowed)
}

func TestValidateDoubleExtension(t *testing.T) {
	// A script hidden behind an image suffix must be called out as a double
	// extension, not as a generic type failure.
	data := makeJPEG(t, 2, 2)
	err := newEngine().Validate(context.Background(), data, "photo.php.jpg", "image/jpeg", int64(len(data)), "")
	requireReject(t, err, mediacore.RejectDoubleExtension)
}

func TestValidateExecutableDisguisedAsImage(t *testing.T) {
	// MZ bytes named car.jpg: the rejection reason must be the executable
	// signature, regardless of the innocent name and declared type.
	data := append([]byte{0x4D, 0x5A, 0x90, 0x00}, bytes.Repeat([]byte{0x00}, 64)...)
	err := newEngine().Validate(context.Background(), data, "car.jpg", "image/jpeg", int64(len(data)), "")
	requireReject(t, err, mediacore.RejectExecutableSignature)
}

func TestValidateELFRejected(t *testing.T) {
	data := append([]byte{0x7F, 0x45, 0x4C, 0x46}, bytes.Repeat([]byte{0x01}, 32)...)
	err := newEngine().Validate(context.Background(), data, "clip.mp4", "video/mp4", int64(len(data)), "")
	requireReject(t, err, mediacore.RejectExecutableSignature)
}

func TestValidateDeclaredTypeMismatch(t *testing.T) {
	// JPEG bytes declared as PNG: sniffing wins.
	data := makeJPEG(t, 2, 2)
	err := newEngine().Validate(context.Background(), data, "shot.png", "image/png", int64(len(data)), "")
	requireReject(t, err, mediacore.RejectContentTypeMismatch)
}

func TestValidateJpgJpegDeclarationAccepted(t *testing.T) {
	data := makeJPEG(t, 2, 2)
	err := newEngine().Validate(context.Background(), data, "car.jpg", "image/jpg", int64(len(data)), "")
	assert.NoError(t, err)
}

func TestValidateSignatureMismatch(t *testing.T) {
	// Binary junk named .mp4: the sniffer cannot classify it, the declared
	// type is allowed, so the magic-number stage must catch it.
	data := append([]byte{0x00, 0x01, 0x02, 0x03}, bytes.Repeat([]byte{0xAB}, 64)...)
	err := newEngine().Validate(context.Background(), data, "clip.mp4", "video/mp4", int64(len(data)), "")
	requireReject(t, err, mediacore.RejectSignatureMismatch)
}

func TestValidateChecksum(t *testing.T) {
	e := newEngine()
	data := makeJPEG(t, 2, 2)
	sum := sha256.Sum256(data)

	err := e.Validate(context.Background(), data, "car.jpg", "image/jpeg", int64(len(data)), hex.EncodeToString(sum[:]))
	assert.NoError(t, err)

	err = e.Validate(context.Background(), data, "car.jpg", "image/jpeg", int64(len(data)), "deadbeef")
	requireReject(t, err, mediacore.RejectChecksumMismatch)
}

func TestValidateImageDimensions(t *testing.T) {
	policy := mediacore.DefaultPolicy()
	policy.MaxImageWidth = 8
	policy.MaxImageHeight = 8
	e := mediacore.NewEngine(policy, nil, nil)

	small := makePNG(t, 4, 4)
	assert.NoError(t, e.Validate(context.Background(), small, "ok.png", "image/png", int64(len(small)), ""))

	big := makePNG(t, 16, 16)
	err := e.Validate(context.Background(), big, "big.png", "image/png", int64(len(big)), "")
	requireReject(t, err, mediacore.RejectBadDimensions)
}

type rejectingScanner struct{}

func (rejectingScanner) Scan(ctx context.Context, data []byte) error {
	return errors.New("eicar match")
}

func TestValidateScannerFailureRejects(t *testing.T) {
	e := mediacore.NewEngine(mediacore.DefaultPolicy(), rejectingScanner{}, nil)
	data := makeJPEG(t, 2, 2)
	err := e.Validate(context.Background(), data, "car.jpg", "image/jpeg", int64(len(data)), "")
	requireReject(t, err, mediacore.RejectMalware)
}

func TestValidateMetadata(t *testing.T) {
	e := newEngine()
	assert.NoError(t, e.ValidateMetadata("car.jpg", 1024, "image/jpeg"))
	requireReject(t, e.ValidateMetadata("car.jpg", 11<<20, "image/jpeg"), mediacore.RejectTooLarge)
	requireReject(t, e.ValidateMetadata("run.sh", 10, ""), mediacore.RejectBlacklistedExtension)
	requireReject(t, e.ValidateMetadata("page.jpg", 10, "text/html"), mediacore.RejectContentTypeNotAllowed)
}

func TestValidateFolderName(t *testing.T) {
	e := newEngine()
	assert.NoError(t, e.ValidateFolderName("cars/123/images"))
	assert.NoError(t, e.ValidateFolderName("users/abc_def-1"))

	for _, folder := range []string{
		"",
		"../etc/passwd",
		"cars/%2E%2E/secrets",
		"/absolute/path",
		"cars/~root",
		"cars/with space",
		"cars/semi;colon",
	} {
		requireReject(t, e.ValidateFolderName(folder), mediacore.RejectBadFolder)
	}
}
