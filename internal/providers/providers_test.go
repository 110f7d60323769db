package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandiflow/core/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Service: "providers-test", Format: "console"})
}

func TestOCRClientExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ocrResponse{Text: "5 cases Coke 330ml", Confidence: 0.9})
	}))
	defer srv.Close()

	c := NewOCRClient(srv.URL, time.Second, testLogger())
	text, err := c.ExtractText(context.Background(), "https://images.example/order.jpg")
	require.NoError(t, err)
	assert.Equal(t, "5 cases Coke 330ml", text)
}

func TestOCRClientPropagatesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewOCRClient(srv.URL, time.Second, testLogger())
	_, err := c.ExtractText(context.Background(), "https://images.example/order.jpg")
	assert.Error(t, err)
}

func TestLLMClientExtractItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(llmResponse{Items: []LLMItem{
			{ProductText: "Coke 330ml", Quantity: 5, Unit: "case", Confidence: 0.95},
		}})
	}))
	defer srv.Close()

	c := NewLLMClient(srv.URL, time.Second, testLogger())
	items, err := c.ExtractItems(context.Background(), "extract items", ItemSchema)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Coke 330ml", items[0].ProductText)
}

func TestWhatsAppSenderSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(whatsappSendResponse{MessageID: "wamid.123"})
	}))
	defer srv.Close()

	s := NewWhatsAppSender(srv.URL, time.Second, testLogger())
	id, err := s.Send(context.Background(), "+15550001111", "order_confirmed", map[string]string{"order_id": "o1"})
	require.NoError(t, err)
	assert.Equal(t, "wamid.123", id)
}

func TestWhatsAppSenderThrottlesWithinSecond(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(whatsappSendResponse{MessageID: "wamid.x"})
	}))
	defer srv.Close()

	s := NewWhatsAppSender(srv.URL, time.Second, testLogger())
	start := time.Now()
	for i := 0; i < WhatsAppRateLimit+1; i++ {
		_, err := s.Send(context.Background(), "+15550001111", "order_confirmed", nil)
		require.NoError(t, err)
	}
	assert.True(t, time.Since(start) > 0, "throttle should not error, only delay")
}

func TestObjectStoreSignedURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/signed-upload":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(signedUploadResponse{UploadURL: "https://store/put/abc", ObjectKey: "abc"})
		case "/v1/signed-read":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(signedReadResponse{ReadURL: "https://store/get/abc"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store := NewObjectStore(srv.URL, time.Second, testLogger())

	uploadURL, key, err := store.SignedUploadURL(context.Background(), "uo-1")
	require.NoError(t, err)
	assert.Equal(t, "abc", key)
	assert.Contains(t, uploadURL, "put/abc")

	readURL, err := store.SignedReadURL(context.Background(), key, 2*SignedURLTTL)
	require.NoError(t, err)
	assert.Contains(t, readURL, "get/abc")
}

func TestTieredExtractorPrefersLLM(t *testing.T) {
	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(llmResponse{Items: []LLMItem{{ProductText: "Pepsi 500ml", Quantity: 3, Unit: "case"}}})
	}))
	defer llmSrv.Close()
	ocrSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("ocr tier should not be reached when llm tier succeeds")
	}))
	defer ocrSrv.Close()

	llm := NewLLMClient(llmSrv.URL, time.Second, testLogger())
	ocr := NewOCRClient(ocrSrv.URL, time.Second, testLogger())
	extractor := NewTieredExtractor(llm, ocr, testLogger())

	result := extractor.Extract(context.Background(), "https://images.example/order.jpg")
	assert.Equal(t, TierLLMVision, result.Tier)
	assert.Contains(t, result.Text, "Pepsi 500ml")
}

func TestTieredExtractorFallsBackToOCR(t *testing.T) {
	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer llmSrv.Close()
	ocrSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ocrResponse{Text: "3 cases Pepsi 500ml", Confidence: 0.7})
	}))
	defer ocrSrv.Close()

	llm := NewLLMClient(llmSrv.URL, time.Second, testLogger())
	ocr := NewOCRClient(ocrSrv.URL, time.Second, testLogger())
	extractor := NewTieredExtractor(llm, ocr, testLogger())

	result := extractor.Extract(context.Background(), "https://images.example/order.jpg")
	assert.Equal(t, TierOCR, result.Tier)
	assert.Equal(t, "3 cases Pepsi 500ml", result.Text)
}

func TestTieredExtractorFallsBackToRuleBasedWhenBothFail(t *testing.T) {
	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer llmSrv.Close()
	ocrSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ocrSrv.Close()

	llm := NewLLMClient(llmSrv.URL, time.Second, testLogger())
	ocr := NewOCRClient(ocrSrv.URL, time.Second, testLogger())
	extractor := NewTieredExtractor(llm, ocr, testLogger())

	result := extractor.Extract(context.Background(), "https://images.example/order.jpg")
	assert.Equal(t, TierRuleBased, result.Tier)
	assert.Empty(t, result.Text)
}
