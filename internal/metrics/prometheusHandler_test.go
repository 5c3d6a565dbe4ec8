package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHttpStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	r := &HttpStatusRecorder{ResponseWriter: rec}
	r.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, r.Status)
	assert.Equal(t, http.StatusTeapot, rec.Code)

	implicit := &HttpStatusRecorder{ResponseWriter: httptest.NewRecorder()}
	_, err := implicit.Write([]byte("ok"))
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, implicit.Status)

	implicit.Flush()
	assert.True(t, implicit.ResponseWriter.(*httptest.ResponseRecorder).Flushed)
}
