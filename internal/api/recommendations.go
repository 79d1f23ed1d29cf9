package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// LatestGeneration fetches the live generation for a brand. A brand with no
// generations yet returns a zero-value Generation, not an error.
func (c *Client) LatestGeneration(ctx context.Context, brandID string) (*Generation, error) {
	if brandID == "" {
		return nil, fmt.Errorf("brand id is required")
	}

	var gen Generation
	path := fmt.Sprintf("/brands/%s/generations/latest", url.PathEscape(brandID))
	if err := c.call(ctx, "GET", path, nil, &gen); err != nil {
		if errors.Is(err, ErrEmptyResult) {
			return &Generation{}, nil
		}
		return nil, err
	}

	gen.Recommendations = ValidRecommendations(gen.Recommendations)
	return &gen, nil
}

// RecommendationsByStep fetches the recommendations scoped to one workflow
// step. An empty step is a normal state and returns an empty result.
func (c *Client) RecommendationsByStep(ctx context.Context, generationID string, step int) (*StepResult, error) {
	if generationID == "" {
		return nil, fmt.Errorf("generation id is required")
	}

	var res StepResult
	path := fmt.Sprintf("/generations/%s/recommendations?step=%d", url.PathEscape(generationID), step)
	if err := c.call(ctx, "GET", path, nil, &res); err != nil {
		if errors.Is(err, ErrEmptyResult) {
			return &StepResult{}, nil
		}
		return nil, err
	}

	res.Recommendations = ValidRecommendations(res.Recommendations)
	return &res, nil
}

// UpdateStatus changes the review status of one recommendation.
func (c *Client) UpdateStatus(ctx context.Context, id string, status ReviewStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid review status %q", status)
	}

	body := map[string]string{"status": string(status)}
	path := fmt.Sprintf("/recommendations/%s/status", url.PathEscape(id))
	return c.call(ctx, "PATCH", path, body, nil)
}

// GenerateContent requests content generation for a single recommendation
// and returns the raw content payload for the envelope parser.
func (c *Client) GenerateContent(ctx context.Context, id string) (json.RawMessage, error) {
	var data struct {
		Content json.RawMessage `json:"content"`
	}
	path := fmt.Sprintf("/recommendations/%s/content", url.PathEscape(id))
	if err := c.call(ctx, "POST", path, nil, &data); err != nil {
		return nil, err
	}
	return data.Content, nil
}

// GenerateContentBulk requests content generation for every eligible
// recommendation in a generation. Partial failure is reported per item in
// the result, not as an error.
func (c *Client) GenerateContentBulk(ctx context.Context, generationID string) (*BulkGenerateResult, error) {
	if generationID == "" {
		return nil, fmt.Errorf("generation id is required")
	}

	var res BulkGenerateResult
	path := fmt.Sprintf("/generations/%s/content/bulk", url.PathEscape(generationID))
	if err := c.call(ctx, "POST", path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Complete marks one recommendation as done.
func (c *Client) Complete(ctx context.Context, id string) error {
	path := fmt.Sprintf("/recommendations/%s/complete", url.PathEscape(id))
	return c.call(ctx, "POST", path, nil, nil)
}

// RegenerateContent regenerates a recommendation's content with feedback
// from the user. The backend enforces the retry cap and reports the updated
// regenRetry count.
func (c *Client) RegenerateContent(ctx context.Context, id, feedback string) (*RegenerateResult, error) {
	body := map[string]string{"feedback": feedback}
	var res RegenerateResult
	path := fmt.Sprintf("/recommendations/%s/content/regenerate", url.PathEscape(id))
	if err := c.call(ctx, "POST", path, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ContentLatest fetches the most recent content payload for a
// recommendation.
func (c *Client) ContentLatest(ctx context.Context, id string) (json.RawMessage, error) {
	var data struct {
		Content json.RawMessage `json:"content"`
	}
	path := fmt.Sprintf("/recommendations/%s/content/latest", url.PathEscape(id))
	if err := c.call(ctx, "GET", path, nil, &data); err != nil {
		return nil, err
	}
	return data.Content, nil
}
