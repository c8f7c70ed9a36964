package api

import (
	"context"
	"net/http"
	"net/url"
)

// ElectionClient performs election CRUD. Elections are unscoped; the scope
// argument of the generic contract is ignored.
type ElectionClient struct {
	c *Client
}

// Elections returns the election resource client.
func (c *Client) Elections() *ElectionClient { return &ElectionClient{c: c} }

func (ec *ElectionClient) List(ctx context.Context, _ string) ([]Election, error) {
	var out []Election
	if err := ec.c.do(ctx, http.MethodGet, "/elections", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (ec *ElectionClient) Create(ctx context.Context, _ string, draft Election) (Election, error) {
	var out Election
	if err := ec.c.do(ctx, http.MethodPost, "/elections", draft, &out); err != nil {
		return Election{}, err
	}
	return out, nil
}

func (ec *ElectionClient) Update(ctx context.Context, _, id string, draft Election) (Election, error) {
	var out Election
	if err := ec.c.do(ctx, http.MethodPut, "/elections/"+url.PathEscape(id), draft, &out); err != nil {
		return Election{}, err
	}
	return out, nil
}

func (ec *ElectionClient) Remove(ctx context.Context, _, id string) error {
	return ec.c.do(ctx, http.MethodDelete, "/elections/"+url.PathEscape(id), nil, nil)
}
