package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/genius-academy-api/pkg/storage"
)

func TestMediaServesSignedFiles(t *testing.T) {
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	name, err := files.Save("acc-1/picture.png", []byte("png-bytes"))
	require.NoError(t, err)

	signer := storage.NewURLSigner("media-secret", time.Minute)
	f := newFixture(t, NewMediaHandler(signer, files, nil), nil)

	token, _, err := signer.Sign(name)
	require.NoError(t, err)
	w := f.do(http.MethodGet, "/api/v1/media/"+token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png-bytes", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/media/forged", "", nil).Code)

	other := storage.NewURLSigner("other-secret", time.Minute)
	foreign, _, err := other.Sign(name)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/api/v1/media/"+foreign, "", nil).Code)

	missing, _, err := signer.Sign("acc-1/gone.png")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/media/"+missing, "", nil).Code)
}
