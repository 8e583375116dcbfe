package extractor

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/baihao/MedTest-Backend-sub000/internal/apperr"
	"github.com/baihao/MedTest-Backend-sub000/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LLMClient calls a batch lab-report extraction endpoint over HTTP,
// the way aistore's S3 proxy layer shells out to backend HTTP calls:
// one request, a bearer header, a bounded context, jsoniter on the
// wire (ais/prxs3.go's jsoniter.Unmarshal idiom).
type LLMClient struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
	log      *logrus.Logger
}

// NewLLMClient builds an LLMClient. endpoint is the batch-extraction
// URL; apiKey is sent as a bearer token; timeout bounds every call.
func NewLLMClient(endpoint, apiKey string, timeout time.Duration, log *logrus.Logger) *LLMClient {
	return &LLMClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

type llmBatchItem struct {
	JobID   int64  `json:"jobId"`
	Image   string `json:"reportImage"`
	OCRText string `json:"ocrPrimitive"`
}

type llmRequest struct {
	Items []llmBatchItem `json:"items"`
}

type llmResponse struct {
	Drafts []*Draft `json:"drafts"`
}

// Extract POSTs the batch to the configured endpoint and parses the
// structured drafts back out. A non-2xx response or malformed body is
// an error for the whole call; the orchestrator treats that as
// "restore every reserved job and back off" (spec.md §4.C).
func (c *LLMClient) Extract(ctx context.Context, jobs []*model.OcrJob) ([]*Draft, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := llmRequest{Items: make([]llmBatchItem, len(jobs))}
	for i, j := range jobs {
		req.Items[i] = llmBatchItem{JobID: j.ID, Image: j.Image, OCRText: j.OCRText}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "marshaling extraction request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "building extraction request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "calling extraction endpoint")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "reading extraction response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.WithFields(logrus.Fields{"status": resp.StatusCode, "body": string(respBody)}).Warn("extraction endpoint returned non-2xx")
		return nil, apperr.New(apperr.Internal, "extraction endpoint returned non-2xx")
	}

	var parsed llmResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "parsing extraction response")
	}

	valid := make([]*Draft, 0, len(parsed.Drafts))
	for _, d := range parsed.Drafts {
		if err := ValidateDraft(d); err != nil {
			c.log.WithError(err).WithField("jobId", d.JobID).Warn("dropping malformed draft")
			continue
		}
		valid = append(valid, d)
	}
	return valid, nil
}
