package content

import (
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/navindex/internal/frontmatter"
)

// Front matter keys left out of the fingerprint: they change without the
// document changing.
var volatileKeys = []string{mdfp.FingerprintField, "lastmod", "last_update", "uid"}

// Fingerprint hashes a document's front matter and body. Fields are
// serialised with sorted keys and LF line endings, so equal documents hash
// equally regardless of key order or platform.
func Fingerprint(fields map[string]any, body []byte) (string, error) {
	hashed := make(map[string]any, len(fields))
	for k, v := range fields {
		hashed[k] = v
	}
	for _, k := range volatileKeys {
		delete(hashed, k)
	}

	fm := ""
	if len(hashed) > 0 {
		out, err := frontmatter.SerializeYAML(hashed, "\n")
		if err != nil {
			return "", err
		}
		fm = strings.TrimSuffix(string(out), "\n")
	}
	normalized := strings.ReplaceAll(string(body), "\r\n", "\n")
	return mdfp.CalculateFingerprintFromParts(fm, normalized), nil
}
