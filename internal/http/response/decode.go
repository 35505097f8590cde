package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
)

const maxBodyBytes = 1 << 20

// DecodeJSON reads r's body into v. On failure it writes the 400 itself and
// returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			BadRequest(w, "request body is required")
		case errors.As(err, &maxErr):
			WriteError(w, http.StatusRequestEntityTooLarge, "request body too large", CodeInvalidInput)
		default:
			BadRequest(w, "invalid json")
		}
		return false
	}
	return true
}

// Pagination reads limit and offset query parameters. Missing values are 0
// and left for the store to default.
func Pagination(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, errors.New("limit must be a non-negative integer")
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}
