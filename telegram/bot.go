package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tokenlens/tokenlens/analysis"
	"github.com/tokenlens/tokenlens/config"
	"github.com/tokenlens/tokenlens/storage"
	"github.com/tokenlens/tokenlens/token"
)

const welcomeMessage = "👋 Welcome! Send me a token contract address to analyze.\n" +
	"Example: `0x1234... eth`"

// Bot is the Telegram messaging adapter. It long-polls the Bot API, feeds
// each contract message into the analysis service and replies with the
// composed text and screenshot. It is a thin collaborator: all pipeline
// logic lives behind analysis.Service.
type Bot struct {
	cfg             config.TelegramConfig
	chains          config.ChainTable
	analysisService *analysis.Service
	store           *storage.Store
	client          *http.Client

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewBot creates the adapter. The bot stays disabled when no token is
// configured.
func NewBot(cfg *config.Config, analysisService *analysis.Service, store *storage.Store) *Bot {
	return &Bot{
		cfg:             cfg.Telegram,
		chains:          cfg.Chains,
		analysisService: analysisService,
		store:           store,
		client: &http.Client{
			// Long poll requests stay open up to poll_timeout seconds
			Timeout: time.Duration(cfg.Telegram.PollTimeout+10) * time.Second,
		},
	}
}

// Start implements core.Interface
func (b *Bot) Start(ctx context.Context) error {
	if b.cfg.BotToken == "" {
		log.Println("Telegram: no bot token configured, adapter disabled")
		return nil
	}

	ctx, b.cancel = context.WithCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.poll(ctx)
	}()

	log.Println("Telegram: bot polling started")
	return nil
}

// Stop implements core.Interface
func (b *Bot) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

// telegramUpdate is one long-polling update
type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// poll long-polls getUpdates until ctx is cancelled
func (b *Bot) poll(ctx context.Context) {
	offset := 0

	for {
		select {
		case <-ctx.Done():
			log.Println("Telegram: polling stopped")
			return
		default:
		}

		updates, err := b.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Telegram: polling failed: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			chatID := update.Message.Chat.ID
			text := strings.TrimSpace(update.Message.Text)

			// Each message gets its own goroutine so one slow analysis
			// never blocks the poll loop; identical tokens are
			// deduplicated inside the coordinator anyway.
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleMessage(ctx, chatID, text)
			}()
		}
	}
}

func (b *Bot) getUpdates(ctx context.Context, offset int) ([]telegramUpdate, error) {
	apiURL := fmt.Sprintf("%s/getUpdates?offset=%d&timeout=%d", b.apiBase(), offset, b.cfg.PollTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result struct {
		OK     bool             `json:"ok"`
		Result []telegramUpdate `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode getUpdates response: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("getUpdates returned not ok: %s", string(body))
	}
	return result.Result, nil
}

// handleMessage processes one user message
func (b *Bot) handleMessage(ctx context.Context, chatID int64, text string) {
	if text == "/start" {
		b.sendMessage(chatID, welcomeMessage)
		return
	}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		b.sendMessage(chatID, welcomeMessage)
		return
	}
	address := fields[0]
	chain := ""
	if len(fields) > 1 {
		chain = fields[1]
	}

	b.sendMessage(chatID, "🔍 Analyzing contract...")

	result, err := b.analysisService.Analyze(ctx, address, chain)
	if err != nil {
		var validationErr *token.ValidationError
		if errors.As(err, &validationErr) {
			b.sendMessage(chatID, "❌ "+validationErr.Detail)
			return
		}
		log.Printf("Telegram: analysis failed: %v", err)
		b.sendMessage(chatID, "❌ An error occurred.")
		return
	}

	caption := FormatResult(result, b.chains)

	if result.Capture == nil {
		b.sendMessage(chatID, caption)
		return
	}

	// The screenshot lives in ephemeral storage only for the delivery and
	// is removed on every exit path.
	path, err := b.store.Save(result.RequestID, result.Capture.PNG)
	if err != nil {
		log.Printf("Telegram: storing screenshot failed: %v", err)
		b.sendMessage(chatID, caption)
		return
	}
	defer func() {
		if err := b.store.Remove(result.RequestID); err != nil {
			log.Printf("Telegram: removing screenshot failed: %v", err)
		}
	}()

	if err := b.sendPhoto(chatID, path, caption); err != nil {
		log.Printf("Telegram: sending photo failed: %v", err)
		b.sendMessage(chatID, caption)
	}
}

// sendMessage sends a plain text message to the chat
func (b *Bot) sendMessage(chatID int64, text string) {
	payload := map[string]string{
		"chat_id": strconv.FormatInt(chatID, 10),
		"text":    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Telegram: marshal payload: %v", err)
		return
	}

	resp, err := b.client.Post(b.apiBase()+"/sendMessage", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("Telegram: send message: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		log.Printf("Telegram: sendMessage status %d: %s", resp.StatusCode, string(respBody))
	}
}

// sendPhoto uploads the stored screenshot with the caption attached
func (b *Bot) sendPhoto(chatID int64, path, caption string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return err
	}
	if err := writer.WriteField("caption", caption); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("photo", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	resp, err := b.client.Post(b.apiBase()+"/sendPhoto", writer.FormDataContentType(), &buf)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sendPhoto status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (b *Bot) apiBase() string {
	return "https://api.telegram.org/bot" + b.cfg.BotToken
}
