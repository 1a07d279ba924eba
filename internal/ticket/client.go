// Package ticket resolves a ticket identifier to its seller through the
// remote ticket-catalog service.
package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrTicketNotFound is returned when the catalog has no such ticket.
	ErrTicketNotFound = errors.New("ticket: not found")
	// ErrUnavailable is returned when the catalog cannot be reached or
	// answers with something other than a usable seller identity.
	ErrUnavailable = errors.New("ticket: catalog unavailable")
)

// DefaultTimeout bounds one catalog lookup.
const DefaultTimeout = 5 * time.Second

// Client calls the ticket-catalog HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	BaseURL string
	Timeout time.Duration // defaults to DefaultTimeout
	Logger  *slog.Logger  // optional
}

// NewClient creates a catalog client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("ticket: base URL is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logger,
	}, nil
}

// envelope matches the catalog's ApiResponse wrapper.
type envelope struct {
	Data *ticketInfo `json:"data"`
}

type ticketInfo struct {
	SellerID *uint `json:"sellerId"`
	OwnerID  *uint `json:"ownerId"`
}

// SellerID resolves the seller identity for a ticket. The catalog reports
// the seller as sellerId or, for listings it owns outright, as ownerId.
func (c *Client) SellerID(ctx context.Context, ticketID uint) (uint, error) {
	url := fmt.Sprintf("%s/api/tickets/%d", c.baseURL, ticketID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("ticket: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("ticket lookup failed", "ticketID", ticketID, "err", err)
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, fmt.Errorf("%w: ticket %d", ErrTicketNotFound, ticketID)
	case resp.StatusCode != http.StatusOK:
		c.log.Error("ticket lookup bad status", "ticketID", ticketID, "status", resp.StatusCode)
		return 0, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if env.Data == nil {
		return 0, fmt.Errorf("%w: empty data for ticket %d", ErrUnavailable, ticketID)
	}

	var sellerID uint
	switch {
	case env.Data.SellerID != nil:
		sellerID = *env.Data.SellerID
	case env.Data.OwnerID != nil:
		sellerID = *env.Data.OwnerID
	}
	if sellerID == 0 {
		return 0, fmt.Errorf("%w: ticket %d has no seller identity", ErrUnavailable, ticketID)
	}

	c.log.Debug("ticket resolved", "ticketID", ticketID, "sellerID", sellerID)
	return sellerID, nil
}
