package writer

import (
	"errors"
	"net/http"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	transientHTTP = map[int]bool{
		http.StatusRequestTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	}
	transientGRPC = map[codes.Code]bool{
		codes.Aborted:           true,
		codes.DeadlineExceeded:  true,
		codes.Internal:          true,
		codes.ResourceExhausted: true,
		codes.Unavailable:       true,
	}
)

// transient reports whether retrying the insert can succeed. Aggregate errors
// are transient only when every member is.
func transient(err error) bool {
	if err == nil {
		return false
	}

	if multi := (cbigquery.MultiError)(nil); errors.As(err, &multi) {
		return len(multi) > 0 && all(multi, transient)
	}
	if rows := (cbigquery.PutMultiError)(nil); errors.As(err, &rows) {
		return len(rows) > 0 && all(rows, func(row cbigquery.RowInsertionError) bool {
			return transient(row.Errors)
		})
	}
	if apiErr := (*googleapi.Error)(nil); errors.As(err, &apiErr) {
		return transientHTTP[apiErr.Code]
	}
	if st, ok := status.FromError(err); ok {
		return transientGRPC[st.Code()]
	}
	return false
}

func all[T any](items []T, pred func(T) bool) bool {
	for _, item := range items {
		if !pred(item) {
			return false
		}
	}
	return true
}
