package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/domain"
)

// writeDomainError maps a lookup miss to 404 and every other failure to 400
// with the error message as is.
func writeDomainError(w http.ResponseWriter, err error) {
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	middleware.WriteError(w, http.StatusBadRequest, err.Error())
}
