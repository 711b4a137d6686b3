package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	jujuerrors "github.com/juju/errors"

	apiContext "landr/internal/api/context"
)

const maxBodyBytes = 1 << 20

func param(r *http.Request, name string) string {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return params.ByName(name)
}

// decodeBody reads a JSON request body into v. Malformed input is reported
// as a bad request.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err == io.EOF {
			return jujuerrors.BadRequestf("request body is empty")
		}
		return jujuerrors.NewBadRequest(err, "invalid request body")
	}
	return nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return n
}
