package sync

import (
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/cidadao-activo/sca-go/internal/api"
	"github.com/cidadao-activo/sca-go/internal/store"
)

// WireTimeLayout is the timestamp format the backend expects: local time,
// second precision, no zone designator.
const WireTimeLayout = "2006-01-02T15:04:05"

// buildRequest adapts a stored record into the backend's create payload.
// Text fields are NFC-normalized at this boundary: records ingested from a
// peer share may arrive in decomposed form, and the backend matches on
// byte-identical strings.
func buildRequest(rec *store.Record, userID int64) *api.NewIncidentRequest {
	return &api.NewIncidentRequest{
		Title:       norm.NFC.String(rec.SymbolicLocation),
		Description: norm.NFC.String(rec.Description),
		Latitude:    rec.Latitude,
		Longitude:   rec.Longitude,
		Datetime:    time.Unix(0, rec.OccurredAt).Format(WireTimeLayout),
		Urgency:     rec.Urgent,
		UserID:      userID,
		ClientKey:   rec.UploadKey,
	}
}
