package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// ErrMissingScope is returned when a candidate call lacks its parent
// election id. Candidates cannot exist without a parent election.
var ErrMissingScope = errors.New("api: election id scope is required")

// CandidateClient performs candidate CRUD scoped to a parent election.
type CandidateClient struct {
	c *Client
}

// Candidates returns the candidate resource client.
func (c *Client) Candidates() *CandidateClient { return &CandidateClient{c: c} }

func (cc *CandidateClient) List(ctx context.Context, electionID string) ([]Candidate, error) {
	if electionID == "" {
		return nil, ErrMissingScope
	}
	var out []Candidate
	if err := cc.c.do(ctx, http.MethodGet, "/candidates/"+url.PathEscape(electionID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (cc *CandidateClient) Create(ctx context.Context, electionID string, draft Candidate) (Candidate, error) {
	if electionID == "" {
		return Candidate{}, ErrMissingScope
	}
	var out Candidate
	if err := cc.c.do(ctx, http.MethodPost, "/candidates/"+url.PathEscape(electionID), draft, &out); err != nil {
		return Candidate{}, err
	}
	return out, nil
}

func (cc *CandidateClient) Update(ctx context.Context, electionID, id string, draft Candidate) (Candidate, error) {
	if electionID == "" {
		return Candidate{}, ErrMissingScope
	}
	var out Candidate
	path := "/candidates/" + url.PathEscape(electionID) + "/" + url.PathEscape(id)
	if err := cc.c.do(ctx, http.MethodPut, path, draft, &out); err != nil {
		return Candidate{}, err
	}
	return out, nil
}

func (cc *CandidateClient) Remove(ctx context.Context, electionID, id string) error {
	if electionID == "" {
		return ErrMissingScope
	}
	return cc.c.do(ctx, http.MethodDelete, "/candidates/"+url.PathEscape(electionID)+"/"+url.PathEscape(id), nil, nil)
}

// Get fetches a single candidate by id, unscoped.
func (cc *CandidateClient) Get(ctx context.Context, id string) (Candidate, error) {
	var out Candidate
	if err := cc.c.do(ctx, http.MethodGet, "/candidate/"+url.PathEscape(id), nil, &out); err != nil {
		return Candidate{}, err
	}
	return out, nil
}
