package upload

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage persists cover images. Save returns the reference recorded on the
// article: a relative path for local storage, a URL for object storage.
// Save does not return before the data is durably written or has failed.
type Storage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Remove(ctx context.Context, ref string) error
}

var reExt = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)

// GenerateName builds "<random><unix-millis><ext>" from the uploaded file's name
func GenerateName(original string, now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	ext := strings.ToLower(filepath.Ext(original))
	if !reExt.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("%s%d%s", random, now.UnixMilli(), ext)
}
