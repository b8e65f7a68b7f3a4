package ingest

import (
	"bytes"
	"path/filepath"
	"strings"

	"ordercancel/internal"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// DetectFormat picks a reader from the file extension and checks the first
// bytes agree with it. Web shops often serve an HTML table as ".xls"; those
// are accepted, real Excel 97-2003 workbooks are not.
func DetectFormat(name string, content []byte) (internal.Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".csv":
		return internal.FormatCSV, nil
	case ".xlsx":
		if !bytes.HasPrefix(content, zipMagic) {
			return "", &internal.UnsupportedFileFormatError{Name: name, Reason: "not an xlsx workbook"}
		}
		return internal.FormatXLSX, nil
	case ".xls":
		switch {
		case bytes.HasPrefix(content, oleMagic):
			return "", &internal.UnsupportedFileFormatError{Name: name, Reason: "binary Excel 97-2003 workbook, save it as xlsx or csv"}
		case bytes.HasPrefix(content, zipMagic):
			return internal.FormatXLSX, nil
		case looksLikeHTML(content):
			return internal.FormatHTML, nil
		}
		return "", &internal.UnsupportedFileFormatError{Name: name, Reason: "unrecognised xls content"}
	case "":
		return "", &internal.UnsupportedFileFormatError{Name: name, Reason: "missing file extension"}
	}
	return "", &internal.UnsupportedFileFormatError{Name: name, Reason: "extension " + ext}
}

func looksLikeHTML(content []byte) bool {
	head := content
	if len(head) > 4096 {
		head = head[:4096]
	}
	head = bytes.ToLower(bytes.TrimSpace(bytes.TrimPrefix(head, utf8BOM)))
	return bytes.HasPrefix(head, []byte("<")) && bytes.Contains(head, []byte("<table"))
}
