// internal/upstream/envelope.go
package upstream

import (
	"encoding/json"
)

// ListPage is the normalized form of a list response regardless of how the
// upstream wrapped it.
type ListPage struct {
	Items      []json.RawMessage `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
}

// EmptyListPage is the safe fallback: no results, one empty page.
func EmptyListPage() ListPage {
	return ListPage{Items: []json.RawMessage{}, Total: 0, Page: 1, TotalPages: 1}
}

// A shapeMatcher tries one known envelope layout and reports whether the
// body structurally matched it.
type shapeMatcher func(body []byte) (ListPage, bool)

// shapeMatchers are tried in this fixed order; the first structural match
// wins:
//  1. bare JSON array
//  2. {data: [...]}
//  3. {data: {data: [...], total, last_page, current_page}} (pagination
//     wrapping applied twice upstream)
var shapeMatchers = []shapeMatcher{
	matchBareArray,
	matchDataArray,
	matchNestedData,
}

// NormalizeList maps any of the known list envelope shapes onto a ListPage.
// An unrecognized shape yields the empty page, never an error.
func NormalizeList(body []byte) ListPage {
	for _, match := range shapeMatchers {
		if page, ok := match(body); ok {
			return page
		}
	}
	return EmptyListPage()
}

func matchBareArray(body []byte) (ListPage, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return ListPage{}, false
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return ListPage{Items: items, Total: len(items), Page: 1, TotalPages: 1}, true
}

func matchDataArray(body []byte) (ListPage, bool) {
	var env struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Data == nil {
		return ListPage{}, false
	}
	return ListPage{Items: env.Data, Total: len(env.Data), Page: 1, TotalPages: 1}, true
}

func matchNestedData(body []byte) (ListPage, bool) {
	var env struct {
		Data struct {
			Data        []json.RawMessage `json:"data"`
			Total       int               `json:"total"`
			LastPage    int               `json:"last_page"`
			CurrentPage int               `json:"current_page"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Data.Data == nil {
		return ListPage{}, false
	}

	page := env.Data.CurrentPage
	if page < 1 {
		page = 1
	}
	totalPages := env.Data.LastPage
	if totalPages < 1 {
		totalPages = 1
	}
	total := env.Data.Total
	if total < len(env.Data.Data) {
		total = len(env.Data.Data)
	}

	return ListPage{Items: env.Data.Data, Total: total, Page: page, TotalPages: totalPages}, true
}
