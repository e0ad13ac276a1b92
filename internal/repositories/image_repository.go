package repositories

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"messenger-service/internal/store"
)

var ErrImageNotFound = errors.New("image not found")

// ImageResourcePrefix is the public path under which stored images are
// served; message image fields carry references of this form.
const ImageResourcePrefix = "/resource/images/"

// ImageRepository stores message image payloads out-of-band so the
// conversation log only carries short references.
type ImageRepository interface {
	SaveImage(ctx context.Context, mime string, data []byte) (string, error)
	GetImage(ctx context.Context, id string) (string, []byte, error)
}

type imageBlob struct {
	Mime string `json:"mime"`
	Data string `json:"data"`
}

// ImageRepo is the Store-backed ImageRepository.
type ImageRepo struct {
	store store.Store
	newID func() string
}

// NewImageRepo constructs an ImageRepo.
func NewImageRepo(st store.Store) *ImageRepo {
	return &ImageRepo{store: st, newID: uuid.NewString}
}

// SaveImage persists the blob under image:{id} and returns the public
// resource reference.
func (r *ImageRepo) SaveImage(ctx context.Context, mime string, data []byte) (string, error) {
	id := r.newID()
	blob, err := json.Marshal(imageBlob{Mime: mime, Data: base64.StdEncoding.EncodeToString(data)})
	if err != nil {
		return "", err
	}
	if err := r.store.Set(ctx, "image:"+id, string(blob)); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return ImageResourcePrefix + id, nil
}

// GetImage loads a stored blob by id.
func (r *ImageRepo) GetImage(ctx context.Context, id string) (string, []byte, error) {
	raw, err := r.store.Get(ctx, "image:"+id)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, ErrImageNotFound
	}
	if err != nil {
		return "", nil, err
	}
	var blob imageBlob
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return "", nil, ErrImageNotFound
	}
	data, err := base64.StdEncoding.DecodeString(blob.Data)
	if err != nil {
		return "", nil, ErrImageNotFound
	}
	mime := blob.Mime
	if mime == "" {
		mime = "application/octet-stream"
	}
	return mime, data, nil
}

// parseImageDataURL splits a data:image/...;base64,... payload into
// mime type and raw bytes.
func parseImageDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, errors.New("not a data url")
	}
	meta, encoded, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, errors.New("unsupported data url encoding")
	}
	mime := strings.TrimSuffix(meta, ";base64")
	if !strings.HasPrefix(mime, "image/") {
		return "", nil, errors.New("unsupported image mime type")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("decode image payload: %w", err)
	}
	return mime, data, nil
}

var _ ImageRepository = (*ImageRepo)(nil)
