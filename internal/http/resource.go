package http

import (
	"strconv"

	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmehdipour/customers-api/internal/service/customers"
)

// customerResource is the public shape of a customer. Timestamps are not exposed.
type customerResource struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	OptIn     bool   `json:"opt_in"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func toResource(c model.Customer) customerResource {
	return customerResource{
		ID:        c.ID,
		Email:     c.Email,
		OptIn:     c.OptIn,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
}

type resourceEnvelope struct {
	Data customerResource `json:"data"`
}

type paginationLinks struct {
	First string  `json:"first"`
	Last  string  `json:"last"`
	Prev  *string `json:"prev"`
	Next  *string `json:"next"`
}

type paginationMeta struct {
	CurrentPage int    `json:"current_page"`
	From        *int   `json:"from"`
	LastPage    int    `json:"last_page"`
	Path        string `json:"path"`
	PerPage     int    `json:"per_page"`
	To          *int   `json:"to"`
	Total       int64  `json:"total"`
}

type collectionEnvelope struct {
	Data  []customerResource `json:"data"`
	Links paginationLinks    `json:"links"`
	Meta  paginationMeta     `json:"meta"`
}

func pageURL(path string, page int) string {
	return path + "?page=" + strconv.Itoa(page)
}

func toCollection(p customers.Page, path string) collectionEnvelope {
	data := make([]customerResource, 0, len(p.Items))
	for _, c := range p.Items {
		data = append(data, toResource(c))
	}

	last := p.LastPage()
	links := paginationLinks{
		First: pageURL(path, 1),
		Last:  pageURL(path, last),
	}
	if p.Page > 1 {
		prev := pageURL(path, p.Page-1)
		links.Prev = &prev
	}
	if p.Page < last {
		next := pageURL(path, p.Page+1)
		links.Next = &next
	}

	meta := paginationMeta{
		CurrentPage: p.Page,
		LastPage:    last,
		Path:        path,
		PerPage:     p.PerPage,
		Total:       p.Total,
	}
	if len(data) > 0 {
		from := (p.Page-1)*p.PerPage + 1
		to := from + len(data) - 1
		meta.From, meta.To = &from, &to
	}

	return collectionEnvelope{Data: data, Links: links, Meta: meta}
}
