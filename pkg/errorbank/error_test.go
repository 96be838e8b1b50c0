package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestKindsMapToTransportCodes(t *testing.T) {
	tests := []struct {
		err  *AppError
		http int
		grpc codes.Code
	}{
		{BadRequest("bad"), http.StatusBadRequest, codes.InvalidArgument},
		{NotFound("gone"), http.StatusNotFound, codes.NotFound},
		{Unprocessable("no"), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{Unavailable("db down"), http.StatusServiceUnavailable, codes.Unavailable},
		{Internal("boom"), http.StatusInternalServerError, codes.Internal},
		{New(Kind("teapot"), ""), http.StatusInternalServerError, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Kind()), func(t *testing.T) {
			assert.Equal(t, tt.http, tt.err.StatusCode())
			assert.Equal(t, tt.grpc, tt.err.GRPCCode())
		})
	}
}

func TestCauseAndDetails(t *testing.T) {
	cause := errors.New("store down")
	err := Internal("scenario failed",
		WithCause(cause),
		WithDetail("scenario", "orders-with-customers"),
		WithDetail("round_trips", 3),
	)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "scenario failed: store down", err.Error())
	assert.Equal(t, "orders-with-customers", err.Details()["scenario"])
	assert.Equal(t, 3, err.Details()["round_trips"])
}

func TestFrom(t *testing.T) {
	assert.Nil(t, From(nil))

	nf := NotFound("missing")
	assert.Same(t, nf, From(fmt.Errorf("wrapped: %w", nf)))

	plain := From(errors.New("raw"))
	assert.Equal(t, KindInternal, plain.Kind())
	assert.Equal(t, "internal error", plain.Message())
}

func TestNilAppError(t *testing.T) {
	var err *AppError
	assert.Equal(t, "<nil>", err.Error())
	assert.Equal(t, KindInternal, err.Kind())
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("raw")))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("ctx: %w", NotFound("gone"))))

	assert.True(t, IsKind(BadRequest("bad"), KindBadRequest))
	assert.False(t, IsKind(nil, KindInternal))
	assert.False(t, IsKind(Unavailable("db down"), KindNotFound))
}
