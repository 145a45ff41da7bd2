// Package filestore keeps submission uploads on the local disk.
//
// Files live under <root>/<student id>/<assignment id>/<timestamp>_<sanitized name>,
// where ids are internal database ids. Paths handed out are relative to the root and use
// forward slashes, so they can be used as-is in download URLs.
package filestore

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core"
)

const (
	timestampLayout  = "20060102_150405"
	defaultMaxLength = 100
	maxCollisions    = 1000
)

var (
	nowFunc = time.Now // mockable

	prefixRegex = regexp.MustCompile(`^\d{8}_\d{6}_\d{6}_`)
)

type FileStore struct {
	root      string // absolute
	maxLength int
}

// New creates the root directory if needed.
func New(conf *core.Config) (*FileStore, error) {
	root, err := filepath.Abs(conf.Storage.Root)
	if err != nil {
		return nil, errors.Wrap(err, "resolving storage root")
	}
	if err = os.MkdirAll(root, 0o750); err != nil {
		return nil, errors.Wrapf(err, "creating storage root %s", root)
	}
	maxLength := conf.Storage.MaxNameLength
	if maxLength <= 0 {
		maxLength = defaultMaxLength
	}
	return &FileStore{root: root, maxLength: maxLength}, nil
}

func (fs *FileStore) Root() string {
	return fs.root
}

// SanitizeFilename keeps letters, digits, dots, underscores and hyphens; anything else becomes '_'.
// A dot following another dot also becomes '_', so a stored name never contains "..".
// The result is at most maxLength runes and never empty.
func SanitizeFilename(name string, maxLength int) string {
	// browsers may send a full client-side path
	name = name[strings.LastIndexAny(name, `/\`)+1:]

	name = strings.TrimLeft(strings.TrimSpace(name), ".")

	out := make([]rune, 0, len(name))
	for _, r := range name {
		if len(out) == maxLength {
			break
		}
		switch {
		case r == '.' && len(out) > 0 && out[len(out)-1] == '.':
			out = append(out, '_')
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "file"
	}
	return string(out)
}

// DisplayName strips the timestamp prefix from a stored file's base name.
func DisplayName(p string) string {
	return prefixRegex.ReplaceAllString(path.Base(filepath.ToSlash(p)), "")
}

// StudentDir is the relative directory holding every upload of a student.
func StudentDir(studentID int64) string {
	return strconv.FormatInt(studentID, 10)
}

// BelongsTo reports whether the relative path p is inside the student's directory.
func BelongsTo(p string, studentID int64) bool {
	first := strings.SplitN(strings.TrimPrefix(filepath.ToSlash(p), "./"), "/", 2)[0]
	return first == StudentDir(studentID)
}

// Save writes r to a new file for (studentID, assignmentID) and returns its relative path and size.
// An existing file is never overwritten: a numeric suffix is added on a name collision.
func (fs *FileStore) Save(studentID, assignmentID int64, name string, r io.Reader) (string, int64, error) {
	dir := path.Join(StudentDir(studentID), strconv.FormatInt(assignmentID, 10))
	if err := os.MkdirAll(filepath.Join(fs.root, filepath.FromSlash(dir)), 0o750); err != nil {
		return "", 0, errors.Wrap(err, "creating submission directory")
	}

	now := nowFunc().UTC()
	prefix := fmt.Sprintf("%s_%06d_", now.Format(timestampLayout), now.Nanosecond()/1000)
	clean := SanitizeFilename(name, fs.maxLength)
	ext := path.Ext(clean)
	stem := strings.TrimSuffix(clean, ext)

	var (
		f   *os.File
		rel string
		err error
	)
	for i := 0; i < maxCollisions; i++ {
		base := prefix + clean
		if i > 0 {
			base = fmt.Sprintf("%s%s_%d%s", prefix, stem, i, ext)
		}
		rel = path.Join(dir, base)
		f, err = os.OpenFile(fs.abs(rel), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if err == nil || !os.IsExist(err) {
			break
		}
	}
	if err != nil {
		return "", 0, errors.Wrapf(err, "creating file for %q", name)
	}

	size, err := io.Copy(f, r)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(fs.abs(rel))
		return "", 0, errors.Wrapf(err, "writing %q", name)
	}
	return rel, size, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (fs *FileStore) Remove(p string) error {
	if err := os.Remove(fs.abs(p)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", p)
	}
	return nil
}

func (fs *FileStore) abs(rel string) string {
	return filepath.Join(fs.root, filepath.FromSlash(rel))
}

// CheckPath rejects empty, absolute and parent-referencing paths.
func CheckPath(requested string) error {
	slashed := filepath.ToSlash(requested)
	if slashed == "" || strings.Contains(slashed, "..") || strings.HasPrefix(slashed, "/") || filepath.IsAbs(requested) {
		return core.NewFieldError("path", "invalid file path")
	}
	return nil
}

// Resolve maps a requested relative path to an absolute path of an existing file inside the root.
// Traversal attempts are rejected before touching the filesystem.
func (fs *FileStore) Resolve(requested string) (string, error) {
	if err := CheckPath(requested); err != nil {
		return "", err
	}

	target := fs.abs(requested)
	if !within(fs.root, target) {
		return "", core.ErrForbidden
	}

	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		if os.IsNotExist(err) {
			return "", core.NewNotFoundError("file")
		}
		return "", errors.Wrap(err, "resolving file path")
	}
	root, err := filepath.EvalSymlinks(fs.root)
	if err != nil {
		return "", errors.Wrap(err, "resolving storage root")
	}
	if !within(root, resolved) {
		return "", core.ErrForbidden
	}

	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return "", core.NewNotFoundError("file")
	}
	return resolved, nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
