package workbook

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/dashlift/dashlift/lifterr"
)

// Archive is an opened .twbx workbook archive.
type Archive struct {
	path string
	zr   zipReader
	cl   io.Closer
}

type zipReader interface {
	files() []*zip.File
}

type diskZip struct{ rc *zip.ReadCloser }

func (d diskZip) files() []*zip.File { return d.rc.File }

type memZip struct{ r *zip.Reader }

func (m memZip) files() []*zip.File { return m.r.File }

// OpenArchive opens a .twbx file on disk.
func OpenArchive(twbxPath string) (*Archive, error) {
	rc, err := zip.OpenReader(twbxPath)
	if err != nil {
		return nil, lifterr.NewParseErrorInArchive(twbxPath, "", "not a readable zip archive: "+err.Error())
	}
	return &Archive{path: twbxPath, zr: diskZip{rc}, cl: rc}, nil
}

// OpenArchiveBytes opens an in-memory .twbx, used by tests and by
// callers that already hold the archive contents.
func OpenArchiveBytes(name string, data []byte) (*Archive, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, lifterr.NewParseErrorInArchive(name, "", "not a readable zip archive: "+err.Error())
	}
	return &Archive{path: name, zr: memZip{r}}, nil
}

func (a *Archive) Close() error {
	if a.cl != nil {
		return a.cl.Close()
	}
	return nil
}

// Workbook locates the .twb entry and parses it.
func (a *Archive) Workbook() (*Structure, error) {
	for _, f := range a.zr.files() {
		if !strings.EqualFold(path.Ext(f.Name), ".twb") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, lifterr.NewParseErrorInArchive(a.path, f.Name, err.Error())
		}
		defer rc.Close()
		s, err := Parse(rc)
		if err != nil {
			return nil, lifterr.NewParseErrorInArchive(a.path, f.Name, err.Error())
		}
		return s, nil
	}
	return nil, lifterr.NewParseErrorInArchive(a.path, "", "no .twb entry in archive")
}

// DataEntries lists the bundled data files (.xlsx, .csv, .hyper) the
// archive carries, usually under Data/.
func (a *Archive) DataEntries() []string {
	var names []string
	for _, f := range a.zr.files() {
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".xlsx", ".csv", ".hyper":
			names = append(names, f.Name)
		}
	}
	return names
}

func (a *Archive) open(name string) (io.ReadCloser, error) {
	for _, f := range a.zr.files() {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, lifterr.NewParseErrorInArchive(a.path, name, "entry not found")
}

// charsetReader decodes the legacy encodings workbook XML declares.
// UTF-8 passes through untouched.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return input, nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	case "utf-16", "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Reader(input), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Reader(input), nil
	default:
		return nil, lifterr.NewParseError("unsupported XML charset " + charset)
	}
}
