package namespace

import (
	"path"
	"strings"

	"github.com/mermaidai/drive/internal/config"
)

// Separator splits key segments
const Separator = "/"

// NormalizePrefix makes a non-empty prefix end with the separator. The empty
// prefix addresses the bucket root.
func NormalizePrefix(prefix string) string {
	if prefix != "" && !strings.HasSuffix(prefix, Separator) {
		return prefix + Separator
	}
	return prefix
}

// folderPrefix validates a folder argument and returns it as a prefix
func folderPrefix(field, folder string) (string, error) {
	if strings.Trim(folder, Separator+" ") == "" {
		return "", invalidArgument("%s is required", field)
	}
	return NormalizePrefix(folder), nil
}

// folderPath validates a folder argument and strips trailing separators
func folderPath(field, folder string) (string, error) {
	trimmed := strings.TrimRight(folder, Separator)
	if strings.TrimSpace(trimmed) == "" {
		return "", invalidArgument("%s is required", field)
	}
	return trimmed, nil
}

// Contains reports whether folder dst is src itself or nested under it.
// Comparison is per segment: "docs2" is not inside "docs".
func Contains(src, dst string) bool {
	src = strings.TrimRight(src, Separator)
	dst = strings.TrimRight(dst, Separator)
	return dst == src || strings.HasPrefix(dst, src+Separator)
}

// Rekey substitutes the source prefix of key with the destination prefix
func Rekey(key, srcPrefix, dstPrefix string) string {
	return dstPrefix + strings.TrimPrefix(key, srcPrefix)
}

// baseName returns the last segment of a client-supplied file name, accepting
// either separator style
func baseName(name string) string {
	name = strings.ReplaceAll(name, `\`, Separator)
	name = strings.TrimRight(name, Separator)
	if i := strings.LastIndex(name, Separator); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
}

// extensionSet is the set of listable file extensions, lower-cased with the dot
type extensionSet map[string]struct{}

func newExtensionSet(exts []string) extensionSet {
	set := make(extensionSet, len(exts))
	for _, ext := range exts {
		if ext = config.NormalizeExtension(ext); ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}

func (s extensionSet) allows(key string) bool {
	_, ok := s[strings.ToLower(path.Ext(key))]
	return ok
}
