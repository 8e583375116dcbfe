package httpapi

import (
	"net/http"
	"strconv"

	"github.com/baihao/MedTest-Backend-sub000/internal/store"
)

func toNewItems(items []ocrItemRequest) []store.NewItem {
	out := make([]store.NewItem, len(items))
	for i, it := range items {
		out[i] = store.NewItem{Image: it.Image, OCRText: it.OCRText}
	}
	return out
}

// pageParams reads ?limit=&offset= query parameters, defaulting to 0
// (the store layer applies its own default limit when 0 is passed).
func pageParams(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	return limit, offset
}
