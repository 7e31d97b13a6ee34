package httpapi

import (
	"net/http"

	"github.com/goliatone/go-catalog-api/authz"
)

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	params := a.pages.FromQuery(r.URL.Query())

	page, err := a.products.ListPage(r.Context(), authz.Catalog(), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, page.Total, page.Items)
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.products.Get(r.Context(), authz.Catalog(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}
