package build

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"os"
	"strconv"

	// Icon sources may be JPEG or GIF as well as PNG.
	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"

	"github.com/ffyyc/web/internal/errors"
)

// Icon is one generated favicon file.
type Icon struct {
	// Name is the output path relative to the build output.
	Name string

	// Rel, Sizes and Type describe the <link> tag for the icon.
	Rel   string
	Sizes string
	Type  string

	Data []byte
}

type iconSpec struct {
	name string
	size int
	rel  string
}

var iconSpecs = []iconSpec{
	{name: "icons/apple-touch-icon.png", size: 180, rel: "apple-touch-icon"},
	{name: "icons/favicon-32x32.png", size: 32, rel: "icon"},
	{name: "icons/favicon-16x16.png", size: 16, rel: "icon"},
}

// GenerateFavicons scales the icon source into the PNG favicon set plus a
// favicon.ico holding the 16 and 32 pixel images.
func GenerateFavicons(sourcePath string) ([]Icon, error) {
	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, errors.New("E153").WithDetail("Cannot open " + sourcePath).Wrap(err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.New("E153").
			WithDetail("Cannot decode " + sourcePath).
			WithSuggestion("Use a square PNG of at least 180x180 pixels").
			Wrap(err)
	}

	icons := make([]Icon, 0, len(iconSpecs)+1)
	pngs := make(map[int][]byte, len(iconSpecs))
	for _, spec := range iconSpecs {
		data, err := encodeScaled(src, spec.size)
		if err != nil {
			return nil, errors.New("E153").Wrap(err)
		}
		pngs[spec.size] = data
		icons = append(icons, Icon{
			Name:  spec.name,
			Rel:   spec.rel,
			Sizes: sizeAttr(spec.size),
			Type:  "image/png",
			Data:  data,
		})
	}

	icons = append(icons, Icon{
		Name: "icons/favicon.ico",
		Rel:  "shortcut icon",
		Data: encodeICO([][]byte{pngs[16], pngs[32]}, []int{16, 32}),
	})
	return icons, nil
}

func encodeScaled(src image.Image, size int) ([]byte, error) {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeICO writes an ICO container whose entries are embedded PNGs.
func encodeICO(images [][]byte, sizes []int) []byte {
	const headerSize, entrySize = 6, 16

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, uint16(len(images))})

	offset := uint32(headerSize + entrySize*len(images))
	for i, data := range images {
		dim := byte(sizes[i])
		if sizes[i] >= 256 {
			dim = 0
		}
		buf.Write([]byte{dim, dim, 0, 0})
		_ = binary.Write(&buf, binary.LittleEndian, [2]uint16{1, 32})
		_ = binary.Write(&buf, binary.LittleEndian, [2]uint32{uint32(len(data)), offset})
		offset += uint32(len(data))
	}
	for _, data := range images {
		buf.Write(data)
	}
	return buf.Bytes()
}

func sizeAttr(n int) string {
	s := strconv.Itoa(n)
	return s + "x" + s
}
