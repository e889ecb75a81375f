package library

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder for folder art
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/nfnt/resize"
)

const (
	artworkSize    = 300
	artworkQuality = 80
)

// Common cover art filenames to look for in album folders.
var coverArtFilenames = []string{
	"cover.jpg", "cover.jpeg", "cover.png",
	"folder.jpg", "folder.jpeg", "folder.png",
	"album.jpg", "album.jpeg", "album.png",
	"front.jpg", "front.jpeg", "front.png",
}

// Artwork returns a JPEG thumbnail of a track's cover art, or nil when the
// track has none. Embedded art wins over folder images.
func Artwork(path string) []byte {
	if path == "" {
		return nil
	}
	data := embeddedArt(path)
	if data == nil {
		data = folderArt(filepath.Dir(path))
	}
	if data == nil {
		return nil
	}
	return thumbnail(data)
}

func embeddedArt(path string) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil
	}
	pic := m.Picture()
	if pic == nil {
		return nil
	}
	return pic.Data
}

func folderArt(dir string) []byte {
	for _, filename := range coverArtFilenames {
		data, err := os.ReadFile(filepath.Join(dir, filename))
		if err != nil {
			// Try case-insensitive match
			data, err = os.ReadFile(filepath.Join(dir, strings.ToUpper(filename)))
			if err != nil {
				continue
			}
		}
		return data
	}
	return nil
}

// thumbnail scales the image to fit artworkSize and re-encodes it as JPEG.
func thumbnail(data []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	resized := resize.Thumbnail(artworkSize, artworkSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: artworkQuality}); err != nil {
		return nil
	}
	return buf.Bytes()
}
