// Package pocketsmith implements a client for the PocketSmith REST API,
// the external ledger this system categorizes against.
package pocketsmith

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ozbooks/agent-smith/internal/common"
	"github.com/ozbooks/agent-smith/internal/model"
	"github.com/ozbooks/agent-smith/internal/service"
)

const defaultBaseURL = "https://api.pocketsmith.com/v2"

// Client talks to the PocketSmith API with developer-key authentication.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	developerKey string
	userID       int
}

// PocketSmith API response types.
type apiUser struct {
	ID    int    `json:"id"`
	Login string `json:"login"`
}

type apiCategory struct {
	ID       int           `json:"id"`
	Title    string        `json:"title"`
	Children []apiCategory `json:"children"`
}

type apiTransaction struct {
	ID                 int64        `json:"id"`
	Payee              string       `json:"payee"`
	Amount             float64      `json:"amount"`
	Date               string       `json:"date"`
	Memo               string       `json:"memo"`
	Labels             []string     `json:"labels"`
	Category           *apiCategory `json:"category"`
	TransactionAccount struct {
		ID int `json:"id"`
	} `json:"transaction_account"`
}

// NewClient creates a PocketSmith client and resolves the authorised user.
func NewClient(ctx context.Context, developerKey string) (*Client, error) {
	return newClientWithBaseURL(ctx, developerKey, defaultBaseURL)
}

func newClientWithBaseURL(ctx context.Context, developerKey, baseURL string) (*Client, error) {
	if developerKey == "" {
		return nil, fmt.Errorf("%w: pocketsmith developer key", common.ErrMissingConfig)
	}

	c := &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		developerKey: developerKey,
	}

	var user apiUser
	if err := c.get(ctx, "/me", nil, &user); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrPocketSmithAuth, err)
	}
	c.userID = user.ID

	slog.Debug("authorised against PocketSmith", "user_id", user.ID, "login", user.Login)

	return c, nil
}

// GetTransactions fetches transactions for the authorised user, paging
// until the API returns an empty page.
func (c *Client) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	query := url.Values{}
	if filter.StartDate != nil {
		query.Set("start_date", filter.StartDate.Format("2006-01-02"))
	}
	if filter.EndDate != nil {
		query.Set("end_date", filter.EndDate.Format("2006-01-02"))
	}
	if filter.Uncategorized {
		query.Set("uncategorised", "1")
	}

	var all []model.Transaction
	for page := 1; ; page++ {
		query.Set("page", strconv.Itoa(page))

		var batch []apiTransaction
		path := fmt.Sprintf("/users/%d/transactions", c.userID)
		if err := c.get(ctx, path, query, &batch); err != nil {
			return nil, fmt.Errorf("failed to fetch transactions page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}

		for _, txn := range batch {
			converted, err := convertTransaction(txn)
			if err != nil {
				slog.Warn("skipping malformed transaction", "id", txn.ID, "error", err)
				continue
			}
			all = append(all, converted)
			if filter.Limit > 0 && len(all) >= filter.Limit {
				return all[:filter.Limit], nil
			}
		}
	}

	slog.Debug("fetched PocketSmith transactions", "count", len(all))

	return all, nil
}

func convertTransaction(txn apiTransaction) (model.Transaction, error) {
	date, err := time.Parse("2006-01-02", txn.Date)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid date %q: %w", txn.Date, err)
	}

	category := ""
	if txn.Category != nil {
		category = txn.Category.Title
	}

	return model.Transaction{
		ID:        strconv.FormatInt(txn.ID, 10),
		Payee:     txn.Payee,
		Amount:    txn.Amount,
		Date:      date,
		Memo:      txn.Memo,
		Labels:    txn.Labels,
		Category:  category,
		AccountID: strconv.Itoa(txn.TransactionAccount.ID),
	}, nil
}

// GetCategories fetches the category catalog, flattening PocketSmith's
// parent/child tree into {title, parent} entries.
func (c *Client) GetCategories(ctx context.Context) ([]model.Category, error) {
	var tree []apiCategory
	path := fmt.Sprintf("/users/%d/categories", c.userID)
	if err := c.get(ctx, path, nil, &tree); err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}

	var flat []model.Category
	var walk func(cats []apiCategory, parent string)
	walk = func(cats []apiCategory, parent string) {
		for _, cat := range cats {
			flat = append(flat, model.Category{
				ID:     cat.ID,
				Title:  cat.Title,
				Parent: parent,
			})
			walk(cat.Children, cat.Title)
		}
	}
	walk(tree, "")

	return flat, nil
}

// UpdateTransaction writes a confirmed category and label set back to
// PocketSmith. Labels are sent comma-joined per the API contract.
func (c *Client) UpdateTransaction(ctx context.Context, id string, category string, labels []string) error {
	categoryID, err := c.resolveCategoryID(ctx, category)
	if err != nil {
		return err
	}

	body := map[string]any{
		"labels": strings.Join(labels, ","),
	}
	if categoryID != 0 {
		body["category_id"] = categoryID
	}

	return c.put(ctx, "/transactions/"+id, body)
}

// resolveCategoryID maps a category title to its PocketSmith id.
func (c *Client) resolveCategoryID(ctx context.Context, title string) (int, error) {
	if title == "" {
		return 0, nil
	}

	categories, err := c.GetCategories(ctx)
	if err != nil {
		return 0, err
	}

	for _, cat := range categories {
		if strings.EqualFold(cat.Title, title) {
			return cat.ID, nil
		}
	}

	return 0, fmt.Errorf("%w: category %q", common.ErrNotFound, title)
}

// CreateCategory adds a new category for the authorised user.
func (c *Client) CreateCategory(ctx context.Context, title string) error {
	path := fmt.Sprintf("/users/%d/categories", c.userID)
	return c.post(ctx, path, map[string]any{"title": title})
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) put(ctx context.Context, path string, body any) error {
	return c.send(ctx, http.MethodPut, path, body)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	return c.send(ctx, http.MethodPost, path, body)
}

func (c *Client) send(ctx context.Context, method, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("X-Developer-Key", c.developerKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		return common.ErrPocketSmithRateLimit
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return common.ErrPocketSmithAuth
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pocketsmith API error %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
