// internal/clients/catalog_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"bookshelf/internal/catalog"
)

// StatusError is returned for responses the client does not map to a result.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d: %s", e.Code, e.Message)
}

// CatalogClient talks to a catalog service over HTTP. It satisfies catalog.Service.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ catalog.Service = (*CatalogClient)(nil)

func NewCatalogClient(baseURL string, httpClient *http.Client) *CatalogClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &CatalogClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

type bookBody struct {
	Title string        `json:"title"`
	Genre catalog.Genre `json:"genre"`
}

func (c *CatalogClient) AddBook(ctx context.Context, title string, genre catalog.Genre) (catalog.Book, error) {
	var book catalog.Book
	if _, err := c.do(ctx, http.MethodPost, "/books", bookBody{Title: title, Genre: genre}, &book, http.StatusCreated); err != nil {
		return catalog.Book{}, err
	}
	return book, nil
}

func (c *CatalogClient) ListBooks(ctx context.Context) ([]catalog.Book, error) {
	var books []catalog.Book
	if _, err := c.do(ctx, http.MethodGet, "/books", nil, &books, http.StatusOK); err != nil {
		return nil, err
	}
	if books == nil {
		books = []catalog.Book{}
	}
	return books, nil
}

func (c *CatalogClient) GetBook(ctx context.Context, id uint32) (catalog.Book, bool, error) {
	var book catalog.Book
	status, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/books/%d", id), nil, &book, http.StatusOK, http.StatusNotFound)
	if err != nil {
		return catalog.Book{}, false, err
	}
	return book, status == http.StatusOK, nil
}

func (c *CatalogClient) UpdateBook(ctx context.Context, id uint32, title string, genre catalog.Genre) (bool, error) {
	status, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/books/%d", id), bookBody{Title: title, Genre: genre}, nil, http.StatusOK, http.StatusNotFound)
	if err != nil {
		return false, err
	}
	return status == http.StatusOK, nil
}

func (c *CatalogClient) RemoveBook(ctx context.Context, id uint32) (bool, error) {
	status, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/books/%d", id), nil, nil, http.StatusNoContent, http.StatusNotFound)
	if err != nil {
		return false, err
	}
	return status == http.StatusNoContent, nil
}

// do sends the request and decodes the body into out on the want status.
// Statuses in accept are returned without error and without decoding.
// Responses tagged with catalog.ErrorCodeHeader map back to their sentinel;
// anything else is a *StatusError.
func (c *CatalogClient) do(ctx context.Context, method, path string, in, out interface{}, want int, accept ...int) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == want {
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return 0, fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return resp.StatusCode, nil
	}
	if slices.Contains(accept, resp.StatusCode) {
		return resp.StatusCode, nil
	}

	msg, _ := io.ReadAll(resp.Body)
	text := strings.TrimSpace(string(msg))
	switch resp.Header.Get(catalog.ErrorCodeHeader) {
	case catalog.CodeInvalidGenre:
		return 0, fmt.Errorf("%w: %s", catalog.ErrInvalidGenreCode, text)
	case catalog.CodeIDSpaceExhausted:
		return 0, fmt.Errorf("%w: %s", catalog.ErrIDSpaceExhausted, text)
	}
	return 0, &StatusError{Code: resp.StatusCode, Message: text}
}
