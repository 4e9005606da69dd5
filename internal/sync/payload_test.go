package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/unicode/norm"

	"github.com/cidadao-activo/sca-go/internal/store"
)

func TestBuildRequest(t *testing.T) {
	occurred := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)

	rec := &store.Record{
		LocalID:          1,
		UploadKey:        "key-abc",
		Description:      "tree down across the road",
		SymbolicLocation: "Praça da Liberdade",
		Latitude:         41.1496,
		Longitude:        -8.6110,
		OccurredAt:       occurred.UnixNano(),
		Urgent:           true,
	}

	req := buildRequest(rec, 42)

	assert.Equal(t, "2026-03-14T09:26:53", req.Datetime)
	assert.Equal(t, "tree down across the road", req.Description)
	assert.Equal(t, "Praça da Liberdade", req.Title)
	assert.True(t, req.Urgency)
	assert.Equal(t, int64(42), req.UserID)
	assert.Equal(t, "key-abc", req.ClientKey)
	assert.InDelta(t, 41.1496, req.Latitude, 1e-9)
}

func TestBuildRequest_NormalizesDecomposedText(t *testing.T) {
	// "São João" with the combining marks peers tend to produce.
	decomposed := norm.NFD.String("São João")
	assert.NotEqual(t, "São João", decomposed, "precondition: input is decomposed")

	rec := &store.Record{
		Description:      decomposed,
		SymbolicLocation: decomposed,
		OccurredAt:       store.NowNano(),
	}

	req := buildRequest(rec, 1)

	assert.Equal(t, "São João", req.Description)
	assert.Equal(t, "São João", req.Title)
}
