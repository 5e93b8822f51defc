package waha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client fala com a API HTTP da WAHA (gateway WhatsApp).
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// SendText envia uma mensagem de texto pela sessão informada.
// Erro só é retornado em falha de transporte/serialização; rejeição do
// gateway volta em SendTextResult{OK:false} com o corpo preservado.
func (c *Client) SendText(ctx context.Context, session, chatID, text string) (*SendTextResult, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("waha não configurado (WAHA_BASE_URL/WAHA_API_KEY)")
	}

	body, err := json.Marshal(SendTextInput{Session: session, ChatID: chatID, Text: text})
	if err != nil {
		return nil, fmt.Errorf("erro ao serializar payload: %w", err)
	}

	url := fmt.Sprintf("%s/api/sendText", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erro ao chamar waha: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	result := &SendTextResult{
		StatusCode: resp.StatusCode,
		Raw:        json.RawMessage(respBody),
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Printf("❌ waha: API retornou status %d: %s", resp.StatusCode, string(respBody))
		return result, nil
	}

	var parsed sendTextResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		log.Printf("⚠️ waha: resposta 2xx não parseável: %v", err)
	}

	result.OK = true
	result.MessageID = parsed.messageID()
	return result, nil
}
