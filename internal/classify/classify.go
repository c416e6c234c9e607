// Package classify maps a response's content type to a file extension.
package classify

import "strings"

// DefaultExtension is used when neither the header nor the path say anything.
const DefaultExtension = ".txt"

// Extension picks a dot-prefixed extension from the Content-Type header,
// falling back to the suffix of urlPath. It never fails.
//
// The header checks are deliberately coarse substring matches; they are
// evaluated in order and the first hit wins.
func Extension(contentType, urlPath string) string {
	switch {
	case strings.Contains(contentType, "image"):
		if strings.Contains(contentType, "jpeg") {
			return ".jpg"
		}
		return ".png"
	case strings.Contains(contentType, "pdf"):
		return ".pdf"
	case strings.Contains(contentType, "zip"):
		return ".zip"
	case strings.Contains(contentType, "excel"), strings.Contains(contentType, "spreadsheet"):
		return ".xlsx"
	}

	if ext := pathExtension(urlPath); ext != "" {
		return ext
	}
	return DefaultExtension
}

// pathExtension returns the suffix starting at the last "." of the final
// path segment, or "" when that segment has no dot.
func pathExtension(urlPath string) string {
	segment := urlPath[strings.LastIndex(urlPath, "/")+1:]
	dot := strings.LastIndex(segment, ".")
	if dot < 0 {
		return ""
	}
	return segment[dot:]
}
