package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/lectorapp/lector/internal/domain"
)

// ContainerPath is the well-known location of the container descriptor
// inside an EPUB archive.
const ContainerPath = "META-INF/container.xml"

// containerXML models the container descriptor used to locate the OPF.
type containerXML struct {
	XMLName   xml.Name   `xml:"container"`
	RootFiles []rootFile `xml:"rootfiles>rootfile"`
}

// rootFile represents a single <rootfile> element.
type rootFile struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

// ParseContainer resolves the package-document path from raw container
// descriptor bytes. The first rootfile carrying a full-path attribute wins.
func ParseContainer(data []byte) (ContainerResult, error) {
	data = stripBOM(data)

	var c containerXML
	if err := xml.Unmarshal(data, &c); err != nil {
		return ContainerResult{}, fmt.Errorf("%w: %w", domain.ErrMalformedInput, err)
	}

	for _, rf := range c.RootFiles {
		if path := strings.TrimSpace(rf.FullPath); path != "" {
			return ContainerResult{OPFPath: path}, nil
		}
	}

	return ContainerResult{}, domain.ErrRootfileNotFound
}

// stripBOM removes a UTF-8 byte order mark if present.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
}
