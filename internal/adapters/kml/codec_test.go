package kml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() domain.Document {
	return domain.Document{
		Name: "trip",
		Placemarks: []domain.Placemark{
			{Name: "Camp & Lake", Description: "North Fork. quiet <3", Coordinates: "-106.32,38.61", RowNumber: 1},
			{Name: "Hill", Description: "", Coordinates: "-112.333,33.895", RowNumber: 2},
		},
	}
}

func TestEncodeWritesNamespacedDocument(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleDocument()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, `<kml xmlns="http://www.opengis.net/kml/2.2">`)
	assert.Contains(t, out, "<name>trip</name>")
	assert.Contains(t, out, "<name>Camp &amp; Lake</name>")
	assert.Contains(t, out, "<description>North Fork. quiet &lt;3</description>")
	assert.Contains(t, out, "<coordinates>-106.32,38.61</coordinates>")
	assert.Equal(t, 2, strings.Count(out, "<Placemark>"))
}

func TestDecodeReadsWhatEncodeWrote(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	doc := sampleDocument()
	require.NoError(t, Encode(&buf, doc))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

func TestDecodeFlattensFolders(t *testing.T) {
	t.Parallel()

	input := `<?xml version="1.0" encoding="UTF-8"?>
<kml xmlns="http://www.opengis.net/kml/2.1">
  <Document>
    <name> exported </name>
    <Placemark><name>top</name><Point><coordinates>1,2</coordinates></Point></Placemark>
    <Folder>
      <name>outer</name>
      <Placemark><name>a</name><Point><coordinates>3,4,0</coordinates></Point></Placemark>
      <Folder>
        <Placemark><name>b</name><Point><coordinates> 5,6 </coordinates></Point></Placemark>
      </Folder>
    </Folder>
  </Document>
</kml>`

	doc, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "exported", doc.Name)
	require.Len(t, doc.Placemarks, 3)
	assert.Equal(t, []string{"top", "a", "b"}, []string{doc.Placemarks[0].Name, doc.Placemarks[1].Name, doc.Placemarks[2].Name})
	assert.Equal(t, "5,6", doc.Placemarks[2].Coordinates)
	assert.Equal(t, 3, doc.Placemarks[2].RowNumber)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	_, err := Decode(strings.NewReader("<kml><Document>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode kml")
}
