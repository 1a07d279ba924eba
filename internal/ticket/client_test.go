package ticket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientOpts{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClient_MissingBaseURL(t *testing.T) {
	if _, err := NewClient(ClientOpts{}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
}

func TestSellerID_FromSellerField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tickets/42" {
			t.Errorf("path = %s, want /api/tickets/42", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":{"sellerId":7,"ownerId":8}}`)
	})

	id, err := c.SellerID(context.Background(), 42)
	if err != nil {
		t.Fatalf("SellerID: %v", err)
	}
	if id != 7 {
		t.Errorf("sellerID = %d, want 7 (sellerId preferred over ownerId)", id)
	}
}

func TestSellerID_FallsBackToOwner(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"ownerId":8}}`)
	})

	id, err := c.SellerID(context.Background(), 42)
	if err != nil {
		t.Fatalf("SellerID: %v", err)
	}
	if id != 8 {
		t.Errorf("sellerID = %d, want owner fallback 8", id)
	}
}

func TestSellerID_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.SellerID(context.Background(), 42)
	if !errors.Is(err, ErrTicketNotFound) {
		t.Fatalf("err = %v, want ErrTicketNotFound", err)
	}
}

func TestSellerID_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.SellerID(context.Background(), 42)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestSellerID_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": not-json`)
	})

	_, err := c.SellerID(context.Background(), 42)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestSellerID_EmptyData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":null}`)
	})

	_, err := c.SellerID(context.Background(), 42)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestSellerID_NoSellerIdentity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{}}`)
	})

	_, err := c.SellerID(context.Background(), 42)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestSellerID_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(ClientOpts{BaseURL: url})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.SellerID(context.Background(), 42)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
