// Marquee - Cast Popularity Ranking for Media Libraries
// Copyright 2026 D. Beaumont (dbeaumont-media)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dbeaumont-media/marquee

// Package tmdb implements the external person-popularity lookup against a
// TMDB-compatible REST API. The client is safe for concurrent use up to
// the enrichment batch size; a shared client-side rate limiter and an
// optional circuit breaker sit in front of the wire calls.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/dbeaumont-media/marquee/internal/config"
	"github.com/dbeaumont-media/marquee/internal/models"
)

// ErrPersonNotFound indicates the service has no person for the ID.
var ErrPersonNotFound = errors.New("tmdb: person not found")

// PopularityLookup is the boundary the enrichment cache consumes.
// Implemented by Client and BreakerClient.
type PopularityLookup interface {
	PersonPopularity(ctx context.Context, id models.PersonID) (float64, error)
}

// Client calls the TMDB person API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// personResponse is the subset of the person payload Marquee reads.
type personResponse struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Popularity float64 `json:"popularity"`
}

// NewClient creates a TMDB client from configuration.
func NewClient(cfg *config.TMDBConfig) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
	}
}

// PersonPopularity fetches the popularity score for one person.
// Scores are non-negative; a missing or negative value comes back as 0.
func (c *Client) PersonPopularity(ctx context.Context, id models.PersonID) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	url := c.baseURL + "/3/person/" + strconv.FormatInt(int64(id), 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("tmdb: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("tmdb: person request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, ErrPersonNotFound
	case resp.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("tmdb: person %d: unexpected status %d", id, resp.StatusCode)
	}

	var person personResponse
	if err := json.NewDecoder(resp.Body).Decode(&person); err != nil {
		return 0, fmt.Errorf("tmdb: decode person %d: %w", id, err)
	}

	if person.Popularity < 0 {
		return 0, nil
	}
	return person.Popularity, nil
}
