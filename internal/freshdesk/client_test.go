package freshdesk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/psds-microservice/freshdesk-service/internal/errs"
	"github.com/psds-microservice/freshdesk-service/internal/model"
)

// newTestClient creates a Client backed by the given TLS test server with
// a tiny backoff so retry tests stay fast.
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:    server.URL,
		APIKey:     "test-key",
		HTTPClient: server.Client(),
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClient_HTTPSEnforcement(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://acme.freshdesk.com/api/v2", APIKey: "k"})
	if err == nil {
		t.Fatal("expected error for HTTP URL")
	}
	if got := err.Error(); got != `freshdesk: API client requires HTTPS (got "http://acme.freshdesk.com/api/v2")` {
		t.Errorf("unexpected error: %s", got)
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "https://acme.freshdesk.com/api/v2"}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestClient_AuthHeaders(t *testing.T) {
	var user, pass, accept string
	var ok bool
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok = r.BasicAuth()
		accept = r.Header.Get("Accept")
		w.Write([]byte(`{"id":1,"requester_id":9,"status":2}`))
	}))
	defer server.Close()

	if _, err := newTestClient(t, server).GetTicket(context.Background(), "1"); err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if !ok || user != "test-key" || pass != "X" {
		t.Errorf("basic auth = (%q, %q, %v), want (test-key, X, true)", user, pass, ok)
	}
	if accept != "application/json" {
		t.Errorf("Accept = %q", accept)
	}
}

func TestClient_ListTicketsQuery(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tickets" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("email") != "ann+qa@example.com" || q.Get("order_by") != "updated_at" ||
			q.Get("per_page") != "100" || q.Get("page") != "3" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Write([]byte(`[{"id":7,"status":3},{"id":8,"status":5}]`))
	}))
	defer server.Close()

	tickets, err := newTestClient(t, server).ListTickets(context.Background(), ListOptions{
		Email: "ann+qa@example.com", OrderBy: "updated_at", PerPage: 100, Page: 3,
	})
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(tickets) != 2 || tickets[0].Status != StatusPending || tickets[1].Status != StatusClosed {
		t.Errorf("unexpected tickets %+v", tickets)
	}
}

func TestClient_NoContactIsNotFound(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"description":"Validation failed","errors":[{"field":"email","message":"There is no contact matching the given email","code":"invalid_value"}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).ListTickets(context.Background(), ListOptions{Email: "x@example.com"})
	if !errors.Is(err, errs.ErrNoContact) {
		t.Fatalf("err = %v, want ErrNoContact", err)
	}
	if errs.IsUpstream(err) {
		t.Error("no-contact must not surface as a generic upstream error")
	}
}

func TestClient_OtherErrorsAreUpstream(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":[{"message":"not here"}]}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).GetTicket(context.Background(), "5")
	var upstream *errs.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if upstream.Status != http.StatusNotFound || upstream.Path != "/tickets/5" {
		t.Errorf("unexpected upstream error %+v", upstream)
	}
}

func TestClient_AcceptsOnly200And201(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server).UpdateTicketStatus(context.Background(), "1", StatusClosed)
	if !errs.IsUpstream(err) {
		t.Fatalf("err = %v, want UpstreamError for 202", err)
	}
}

func TestClient_RetriesGetOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	if _, err := newTestClient(t, server).TicketFields(context.Background()); err != nil {
		t.Fatalf("TicketFields: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestClient_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(t, server).GetAgent(context.Background(), "3")
	var upstream *errs.UpstreamError
	if !errors.As(err, &upstream) || upstream.Status != http.StatusBadGateway {
		t.Fatalf("err = %v, want 502 UpstreamError", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3 (1 + 2 retries)", got)
	}
}

func TestClient_DoesNotRetryPostOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(t, server).CreateTicket(context.Background(), NewTicket{Email: "a@example.com"})
	if !errs.IsUpstream(err) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestClient_RetriesPostOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":11,"name":"Ann","email":"a@example.com"}`))
	}))
	defer server.Close()

	contact, err := newTestClient(t, server).CreateContact(context.Background(), NewContact{Name: "Ann", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("CreateContact: %v", err)
	}
	if contact.ID != 11 || calls.Load() != 2 {
		t.Errorf("contact = %+v, calls = %d", contact, calls.Load())
	}
}

func TestClient_CreateTicketJSON(t *testing.T) {
	var got map[string]any
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":42}`))
	}))
	defer server.Close()

	resp, err := newTestClient(t, server).CreateTicket(context.Background(), NewTicket{
		Email: "a@example.com", Subject: "Help", Priority: PriorityLow, Status: StatusOpen,
		CustomFields: map[string]any{"cf_site": "example.com"},
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if resp.StatusCode != http.StatusCreated || resp.ID() != 42 {
		t.Errorf("resp = %d %s", resp.StatusCode, resp.Body)
	}
	if got["priority"] != float64(1) || got["status"] != float64(2) || got["subject"] != "Help" {
		t.Errorf("unexpected payload %v", got)
	}
	if _, ok := got["description"]; ok {
		t.Error("empty description should be omitted")
	}
}

func TestClient_AddNoteMultipart(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if r.FormValue("body") != "thanks" || r.FormValue("private") != "false" || r.FormValue("user_id") != "9" {
			t.Errorf("unexpected form %v", r.MultipartForm.Value)
		}
		if emails := r.MultipartForm.Value["notify_emails[]"]; len(emails) != 1 || emails[0] != "agent@example.com" {
			t.Errorf("notify_emails[] = %v", emails)
		}
		files := r.MultipartForm.File["attachments[]"]
		if len(files) != 1 || files[0].Filename != "log.txt" {
			t.Errorf("attachments[] = %v", files)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":100,"ticket_id":7}`))
	}))
	defer server.Close()

	resp, err := newTestClient(t, server).AddNote(context.Background(), "7", NewNote{
		Body: "thanks", UserID: 9, NotifyEmails: []string{"agent@example.com"},
		Attachments: []model.Attachment{{Filename: "log.txt", ContentType: "text/plain", Data: []byte("line")}},
	})
	if err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if resp.ID() != 7 {
		t.Errorf("ID() = %d, want ticket id 7", resp.ID())
	}
}

func TestClient_ContextCancelStopsRetries(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(Config{
		BaseURL: server.URL, APIKey: "k", HTTPClient: server.Client(),
		MaxRetries: 5, Backoff: time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := client.TicketFields(ctx); err == nil {
		t.Fatal("expected error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took %v", elapsed)
	}
}

func TestClient_TicketPayloadIsKept(t *testing.T) {
	const ticket = `{"id":7,"requester_id":9,"status":2,"spam":false,"product_id":3}`
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tickets/7/conversations" {
			w.Write([]byte(`[{"id":1,"private":false,"source":2},{"id":2,"body":"note"}]`))
			return
		}
		w.Write([]byte(ticket))
	}))
	defer server.Close()
	client := newTestClient(t, server)

	got, err := client.GetTicket(context.Background(), "7")
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if got.RequesterID != 9 || got.Status != StatusOpen {
		t.Errorf("decoded = %+v", got)
	}
	b, _ := json.Marshal(got)
	if string(b) != ticket {
		t.Errorf("marshal = %s, want %s", b, ticket)
	}

	conversations, err := client.ListConversations(context.Background(), "7")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(conversations) != 2 || !conversations[0].IsPublic() || conversations[1].IsPublic() {
		t.Errorf("IsPublic: %+v", conversations)
	}
}

func TestTicket_MarshalWithoutPayload(t *testing.T) {
	b, err := json.Marshal(Ticket{ID: 3, Status: StatusClosed})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	json.Unmarshal(b, &m)
	if m["id"] != float64(3) || m["status"] != float64(5) {
		t.Errorf("json = %s", b)
	}
}
