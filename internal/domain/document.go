package domain

type Document struct {
	Name       string
	Placemarks []Placemark
}

// Split chunks the document into documents of at most perFile placemarks.
// A non-positive perFile keeps the document whole.
func (d Document) Split(perFile int) []Document {
	if perFile <= 0 || len(d.Placemarks) <= perFile {
		return []Document{d}
	}

	docs := make([]Document, 0, (len(d.Placemarks)+perFile-1)/perFile)
	for start := 0; start < len(d.Placemarks); start += perFile {
		end := min(start+perFile, len(d.Placemarks))
		chunk := make([]Placemark, end-start)
		copy(chunk, d.Placemarks[start:end])
		docs = append(docs, Document{Name: d.Name, Placemarks: chunk})
	}

	return docs
}
