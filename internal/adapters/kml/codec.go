// Package kml encodes placemark documents as KML and stores them on disk.
package kml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/kmlx/internal/domain"
)

const (
	Namespace   = "http://www.opengis.net/kml/2.2"
	ContentType = "application/vnd.google-earth.kml+xml"
	Extension   = ".kml"
)

type kmlFile struct {
	XMLName  xml.Name       `xml:"kml"`
	Xmlns    string         `xml:"xmlns,attr,omitempty"`
	Document documentSchema `xml:"Document"`
}

type documentSchema struct {
	Name       string            `xml:"name,omitempty"`
	Placemarks []placemarkSchema `xml:"Placemark"`
	Folders    []folderSchema    `xml:"Folder,omitempty"`
}

type folderSchema struct {
	Name       string            `xml:"name,omitempty"`
	Placemarks []placemarkSchema `xml:"Placemark"`
	Folders    []folderSchema    `xml:"Folder,omitempty"`
}

type placemarkSchema struct {
	Name        string      `xml:"name"`
	Description string      `xml:"description"`
	Point       pointSchema `xml:"Point"`
}

type pointSchema struct {
	Coordinates string `xml:"coordinates"`
}

func Encode(w io.Writer, doc domain.Document) error {
	file := kmlFile{
		Xmlns:    Namespace,
		Document: documentSchema{Name: doc.Name, Placemarks: make([]placemarkSchema, 0, len(doc.Placemarks))},
	}
	for _, pm := range doc.Placemarks {
		file.Document.Placemarks = append(file.Document.Placemarks, placemarkSchema{
			Name:        pm.Name,
			Description: pm.Description,
			Point:       pointSchema{Coordinates: pm.Coordinates},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write kml header: %w", err)
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(file); err != nil {
		return fmt.Errorf("encode kml: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("flush kml: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Decode reads a KML document. Placemarks nested in folders are flattened
// in document order.
func Decode(r io.Reader) (domain.Document, error) {
	var file kmlFile
	if err := xml.NewDecoder(r).Decode(&file); err != nil {
		return domain.Document{}, fmt.Errorf("decode kml: %w", err)
	}

	doc := domain.Document{Name: strings.TrimSpace(file.Document.Name)}
	doc.Placemarks = appendPlacemarks(doc.Placemarks, file.Document.Placemarks)
	for _, folder := range file.Document.Folders {
		doc.Placemarks = appendFolder(doc.Placemarks, folder)
	}
	return doc, nil
}

func appendFolder(dst []domain.Placemark, folder folderSchema) []domain.Placemark {
	dst = appendPlacemarks(dst, folder.Placemarks)
	for _, child := range folder.Folders {
		dst = appendFolder(dst, child)
	}
	return dst
}

func appendPlacemarks(dst []domain.Placemark, src []placemarkSchema) []domain.Placemark {
	for _, pm := range src {
		dst = append(dst, domain.Placemark{
			Name:        strings.TrimSpace(pm.Name),
			Description: strings.TrimSpace(pm.Description),
			Coordinates: strings.TrimSpace(pm.Point.Coordinates),
			RowNumber:   len(dst) + 1,
		})
	}
	return dst
}
