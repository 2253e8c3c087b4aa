// Package document decides what a user's input refers to and pulls text out of it.
package document

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// InputKind says how an input string was interpreted.
type InputKind string

const (
	// KindText is literal text to translate as-is.
	KindText InputKind = "text"
	// KindFile is an existing file on disk.
	KindFile InputKind = "file"
)

const fileURIPrefix = "file://"

// Input is the result of locating a raw input string.
type Input struct {
	Kind InputKind
	// Path is the native path of the file when Kind is KindFile.
	Path string
	// Ext is the lower-cased extension of Path, including the dot.
	Ext string
	// Text is the original string when Kind is KindText.
	Text string
}

// Locate decides whether raw names an existing file or is literal text.
//
// A file:// URI is decoded to a native path before the existence check.
// Anything that does not resolve to a regular file is literal text, so a
// sentence that happens to match a file name is always read as that file.
func Locate(raw string) Input {
	path := ResolvePath(raw)
	if path != "" {
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return Input{
				Kind: KindFile,
				Path: path,
				Ext:  strings.ToLower(filepath.Ext(path)),
			}
		}
	}
	return Input{Kind: KindText, Text: raw}
}

// ResolvePath turns raw into the path it would name on disk. Quotes around
// the input or around the path part of a file:// URI are dropped.
func ResolvePath(raw string) string {
	s := trimQuotes(strings.TrimSpace(raw))
	if !strings.HasPrefix(strings.ToLower(s), fileURIPrefix) {
		return s
	}

	rest := trimQuotes(s[len(fileURIPrefix):])
	if strings.HasPrefix(strings.ToLower(rest), "localhost/") {
		rest = rest[len("localhost"):]
	}
	if decoded, err := url.PathUnescape(rest); err == nil {
		rest = decoded
	}
	// file:///C:/x names C:/x, not /C:/x
	if hasDriveLetter(strings.TrimPrefix(rest, "/")) {
		rest = rest[1:]
	}
	return filepath.FromSlash(rest)
}

func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func trimQuotes(s string) string {
	return strings.Trim(s, `"'`)
}
