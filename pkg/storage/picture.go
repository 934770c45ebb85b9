package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"path"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

var (
	ErrPictureTooLarge = errors.New("picture exceeds size limit")
	ErrNotAnImage      = errors.New("unsupported image")
)

// Picture is the stored pair produced for one upload.
type Picture struct {
	Original  string
	Thumbnail string
}

// PictureStore keeps profile pictures and a square-bounded thumbnail next to each.
type PictureStore struct {
	files     *LocalStorage
	maxBytes  int64
	thumbSize int
}

// NewPictureStore wires a PictureStore over files.
func NewPictureStore(files *LocalStorage, maxBytes int64, thumbSize int) *PictureStore {
	if thumbSize <= 0 {
		thumbSize = 300
	}
	return &PictureStore{files: files, maxBytes: maxBytes, thumbSize: thumbSize}
}

// Save decodes r, rejecting anything over the size limit or not an image, and writes both renditions.
func (p *PictureStore) Save(ownerID string, r io.Reader) (*Picture, error) {
	raw, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read picture: %w", err)
	}
	if int64(len(raw)) > p.maxBytes {
		return nil, ErrPictureTooLarge
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, ErrNotAnImage
	}

	base := path.Join("pictures", ownerID, uuid.NewString())
	original, err := p.files.Save(base+"."+format, raw)
	if err != nil {
		return nil, err
	}

	thumb := &bytes.Buffer{}
	if err := png.Encode(thumb, Thumbnail(img, p.thumbSize)); err != nil {
		_ = p.files.Delete(original)
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	thumbnail, err := p.files.Save(base+"_thumb.png", thumb.Bytes())
	if err != nil {
		_ = p.files.Delete(original)
		return nil, err
	}
	return &Picture{Original: original, Thumbnail: thumbnail}, nil
}

// Delete removes both renditions. Empty names are ignored.
func (p *PictureStore) Delete(pic Picture) error {
	for _, name := range []string{pic.Original, pic.Thumbnail} {
		if name == "" {
			continue
		}
		if err := p.files.Delete(name); err != nil {
			return err
		}
	}
	return nil
}

// Files exposes the underlying storage for serving.
func (p *PictureStore) Files() *LocalStorage {
	return p.files
}

// Thumbnail scales img to fit inside a size x size box, preserving aspect ratio. Smaller images are left as is.
func Thumbnail(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= size && h <= size {
		return img
	}
	if w >= h {
		h = h * size / w
		w = size
	} else {
		w = w * size / h
		h = size
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
