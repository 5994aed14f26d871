// Package objectkey generates collision-free object keys for uploads.
package objectkey

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator builds keys of the form
//
//	{folder}/{uploaderID}_{timestamp}_{random8}.{ext}
//
// The uploader id and timestamp make keys traceable in store listings; the
// random suffix guarantees uniqueness for same-second uploads. The client's
// filename never reaches the key, only its extension.
type Generator struct {
	// Now overrides the time source. Nil means time.Now.
	Now func() time.Time
}

func (g Generator) Generate(folder string, uploaderID uuid.UUID, originalName string) string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	name := fmt.Sprintf("%s_%s_%s", uploaderID, now().UTC().Format("20060102_150405"), randomSuffix())
	if ext := extensionOf(originalName); ext != "" {
		name += "." + ext
	}
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

func randomSuffix() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand only fails when the platform entropy source is broken;
		// fall back to a uuid fragment rather than panic in the upload path.
		return uuid.NewString()[:8]
	}
	return hex.EncodeToString(b[:])
}

func extensionOf(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	ext := strings.ToLower(name[i+1:])
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
